package main

import (
	"github.com/joho/godotenv"

	"github.com/rhaynes/electrack/cmd"
)

func main() {
	// A missing .env is fine; configuration falls back to real environment
	// variables and defaults.
	_ = godotenv.Load()

	cmd.Execute()
}
