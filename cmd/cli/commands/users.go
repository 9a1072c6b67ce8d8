package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	userCmd.AddCommand(registerUserCmd)
	userCmd.AddCommand(loginUserCmd)

	registerUserCmd.Flags().StringP("username", "u", "", "username of the user to be created")
	registerUserCmd.Flags().StringP("password", "p", "", "password for the new user")
	_ = registerUserCmd.MarkFlagRequired("username")
	_ = registerUserCmd.MarkFlagRequired("password")

	loginUserCmd.Flags().StringP("username", "u", "", "username to log in as")
	loginUserCmd.Flags().StringP("password", "p", "", "password for the user")
	_ = loginUserCmd.MarkFlagRequired("username")
	_ = loginUserCmd.MarkFlagRequired("password")
}

var userCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage users",
}

// GetUsersCmd returns the users command
func GetUsersCmd() *cobra.Command {
	return userCmd
}

var registerUserCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a user",
	Long:  "Register a user with the given username and password",
	RunE: func(cmd *cobra.Command, _ []string) error {
		username, _ := cmd.Flags().GetString("username")
		password, _ := cmd.Flags().GetString("password")

		response, err := apiClient.CreateUser(context.Background(), username, password)
		if err != nil {
			return fmt.Errorf("error creating a user: %w", err)
		}

		prettyJSON, err := json.MarshalIndent(response, "", "  ")
		if err != nil {
			return fmt.Errorf("error formatting response: %w", err)
		}
		fmt.Println(string(prettyJSON))
		return nil
	},
}

var loginUserCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and print a bearer token",
	Long: `Log in with a username and password. The printed token can be passed to
authenticated commands via --token or SHAGGYDOG_TOKEN.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		username, _ := cmd.Flags().GetString("username")
		password, _ := cmd.Flags().GetString("password")

		token, err := apiClient.Login(context.Background(), username, password)
		if err != nil {
			return fmt.Errorf("error logging in: %w", err)
		}
		fmt.Println(token)
		return nil
	},
}
