// Command autoeval drives a model endpoint through a tabular test set and
// scores the results with a judge endpoint.
package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// Optional .env for API keys; absence is not an error.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
