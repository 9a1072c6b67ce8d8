// Package commands implements the shaggydog CLI commands
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaggydog-ai/shaggydog/internal/api/v1/routes"
	"github.com/shaggydog-ai/shaggydog/pkg/api/v1/client"
)

// flag names
const (
	flagServerAddress = "server-address"
	flagToken         = "token"
)

// environment variable names
const (
	envServerAddress = "SHAGGYDOG_SERVER_ADDRESS"
	envToken         = "SHAGGYDOG_TOKEN"
)

var (
	// apiClient is the shared API client instance
	apiClient client.Client
	// serverAddress holds the target API server address. Flag parsing sets this.
	serverAddress string
	// authToken is the bearer token used on authenticated endpoints
	authToken string
)

// initClient initializes the API client
func initClient() error {
	opts := client.DefaultOptions()
	opts.BaseURL = serverAddress

	var err error
	apiClient, err = client.NewClient(opts)
	if err != nil {
		return err
	}
	if authToken != "" {
		apiClient.SetToken(authToken)
	}
	return nil
}

func init() {
	// Defaults only; PersistentPreRunE applies the env var overrides.
	RootCmd.PersistentFlags().StringVarP(&serverAddress, flagServerAddress, "s", routes.DefaultBaseURL, "Address of the ShaggyDog API server (env: SHAGGYDOG_SERVER_ADDRESS)")
	RootCmd.PersistentFlags().StringVarP(&authToken, flagToken, "t", "", "Bearer token for authenticated endpoints (env: SHAGGYDOG_TOKEN)")

	RootCmd.AddCommand(GetUsersCmd())
	RootCmd.AddCommand(GetJobsCmd())
}

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "shaggydog",
	Short: "ShaggyDog CLI - A command line interface for the ShaggyDog API",
	Long: `ShaggyDog CLI is a command line tool for submitting portraits and
retrieving transformation jobs through the ShaggyDog API.`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		// Precedence: flag > env var > default.
		if !cmd.Flags().Changed(flagServerAddress) {
			if envAddr := os.Getenv(envServerAddress); envAddr != "" {
				serverAddress = envAddr
			}
		}
		if !cmd.Flags().Changed(flagToken) {
			if envTok := os.Getenv(envToken); envTok != "" {
				authToken = envTok
			}
		}

		if serverAddress == "" {
			return fmt.Errorf("server address cannot be empty")
		}
		return initClient()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return RootCmd.Execute()
}
