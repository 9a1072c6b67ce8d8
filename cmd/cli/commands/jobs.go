package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// Job flag names
const (
	flagJobID    = "id"
	flagJobImage = "image"
	flagJobStage = "stage"
	flagJobOut   = "output"
)

// jobOutput represents the filtered output for a job
type jobOutput struct {
	ID      uint   `json:"id"`
	Breed   string `json:"breed,omitempty"`
	Status  string `json:"status"`
	Created string `json:"created_at"`
}

func init() {
	jobsCmd.AddCommand(submitJobCmd)
	jobsCmd.AddCommand(listJobsCmd)
	jobsCmd.AddCommand(getJobCmd)
	jobsCmd.AddCommand(downloadStageCmd)

	submitJobCmd.Flags().StringP(flagJobImage, "f", "", "Path to the portrait image to upload")
	_ = submitJobCmd.MarkFlagRequired(flagJobImage)

	getJobCmd.Flags().UintP(flagJobID, "i", 0, "Job ID")
	_ = getJobCmd.MarkFlagRequired(flagJobID)

	downloadStageCmd.Flags().UintP(flagJobID, "i", 0, "Job ID")
	downloadStageCmd.Flags().String(flagJobStage, "final", "Stage to download (original, transition1, ..., final)")
	downloadStageCmd.Flags().StringP(flagJobOut, "o", "", "Output file path (defaults to job-<id>-<stage>.png)")
	_ = downloadStageCmd.MarkFlagRequired(flagJobID)
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage transformation jobs",
}

// GetJobsCmd returns the jobs command
func GetJobsCmd() *cobra.Command {
	return jobsCmd
}

var submitJobCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a portrait for transformation",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString(flagJobImage)

		image, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("error reading image file: %w", err)
		}

		response, err := apiClient.SubmitJob(context.Background(), filepath.Base(path), image)
		if err != nil {
			return fmt.Errorf("error submitting job: %w", err)
		}

		prettyJSON, err := json.MarshalIndent(response, "", "  ")
		if err != nil {
			return fmt.Errorf("error formatting response: %w", err)
		}
		fmt.Println(string(prettyJSON))
		return nil
	},
}

var listJobsCmd = &cobra.Command{
	Use:   "list",
	Short: "List your jobs, newest first",
	RunE: func(_ *cobra.Command, _ []string) error {
		jobs, err := apiClient.ListJobs(context.Background())
		if err != nil {
			return fmt.Errorf("error fetching jobs: %w", err)
		}

		output := make([]jobOutput, len(jobs))
		for i, job := range jobs {
			output[i] = jobOutput{
				ID:      job.ID,
				Breed:   job.Breed,
				Status:  job.Status.String(),
				Created: job.CreatedAt.Format("2006-01-02 15:04:05"),
			}
		}

		prettyJSON, err := json.MarshalIndent(output, "", "  ")
		if err != nil {
			return fmt.Errorf("error formatting response: %w", err)
		}
		fmt.Println(string(prettyJSON))
		return nil
	},
}

var getJobCmd = &cobra.Command{
	Use:   "get",
	Short: "Get a specific job by its ID",
	RunE: func(cmd *cobra.Command, _ []string) error {
		jobID, err := cmd.Flags().GetUint(flagJobID)
		if err != nil {
			return fmt.Errorf("error getting job ID flag: %w", err)
		}
		if jobID == 0 {
			return fmt.Errorf("job ID must be a positive number")
		}

		job, err := apiClient.GetJob(context.Background(), jobID)
		if err != nil {
			return fmt.Errorf("error getting job: %w", err)
		}

		prettyJSON, err := json.MarshalIndent(job, "", "  ")
		if err != nil {
			return fmt.Errorf("error formatting response: %w", err)
		}
		fmt.Println(string(prettyJSON))
		return nil
	},
}

var downloadStageCmd = &cobra.Command{
	Use:   "download",
	Short: "Download one stage image of a job",
	RunE: func(cmd *cobra.Command, _ []string) error {
		jobID, err := cmd.Flags().GetUint(flagJobID)
		if err != nil {
			return fmt.Errorf("error getting job ID flag: %w", err)
		}
		if jobID == 0 {
			return fmt.Errorf("job ID must be a positive number")
		}
		stage, _ := cmd.Flags().GetString(flagJobStage)
		outPath, _ := cmd.Flags().GetString(flagJobOut)
		if outPath == "" {
			outPath = fmt.Sprintf("job-%d-%s.png", jobID, stage)
		}

		data, err := apiClient.StageImage(context.Background(), jobID, stage)
		if err != nil {
			return fmt.Errorf("error fetching stage image: %w", err)
		}
		if len(data) == 0 {
			return fmt.Errorf("stage %q is not ready yet", stage)
		}

		if err := os.WriteFile(outPath, data, 0o644); err != nil {
			return fmt.Errorf("error writing image file: %w", err)
		}
		fmt.Printf("Wrote %d bytes to %s\n", len(data), outPath)
		return nil
	},
}
