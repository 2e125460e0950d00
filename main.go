package main

import (
	"github.com/joho/godotenv"

	"github.com/dimasma0305/opsrelay/cmd"
)

func main() {
	// Best effort: local development keeps the token in a .env file
	_ = godotenv.Load()

	cmd.Execute()
}
