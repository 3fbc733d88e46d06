// Package main provides the smartsql command.
package main

import (
	"os"

	"github.com/JonnyJiang123/smart-sql/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
