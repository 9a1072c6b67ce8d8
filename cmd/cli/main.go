package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/shaggydog-ai/shaggydog/cmd/cli/commands"
)

func main() {
	// Load .env file if present; real env vars take precedence
	_ = godotenv.Load()

	if err := commands.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
