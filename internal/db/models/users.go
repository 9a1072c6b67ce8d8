package models

import (
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
)

// User represents a registered user in the system
type User struct {
	gorm.Model
	Username     string `json:"username" gorm:"not null;uniqueIndex"`
	PasswordHash string `json:"-" gorm:"not null"`
	Token        string `json:"-" gorm:"index"` // opaque API token issued at login
}

// MarshalJSON implements the json.Marshaler interface for User
func (u User) MarshalJSON() ([]byte, error) {
	type Alias User // Create an alias to avoid infinite recursion
	return json.Marshal(Alias(u))
}

// MinPasswordLength is the minimum accepted password length at registration
const MinPasswordLength = 6

// Validate ensures that the user data is valid
func (u *User) Validate() error {
	if u.Username == "" {
		return fmt.Errorf("username cannot be empty")
	}
	if u.PasswordHash == "" {
		return fmt.Errorf("password hash cannot be empty")
	}
	return nil
}

// BeforeCreate is a GORM hook that runs before creating a new user
func (u *User) BeforeCreate(_ *gorm.DB) error {
	return u.Validate()
}
