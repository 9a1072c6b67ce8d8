package models

const (
	// DefaultLimit is the max number of rows that are retrieved from the DB per listing API call
	DefaultLimit = 50
)

// ListOptions represents pagination options for list operations
type ListOptions struct {
	Limit  int `json:"limit"`  // Number of items to return
	Offset int `json:"offset"` // Number of items to skip
}

// WithDefaults returns a copy of the options with the limit clamped to a sane range.
func (o *ListOptions) WithDefaults() ListOptions {
	opts := ListOptions{}
	if o != nil {
		opts = *o
	}
	if opts.Limit <= 0 || opts.Limit > DefaultLimit {
		opts.Limit = DefaultLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	return opts
}
