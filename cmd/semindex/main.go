package main

import (
	"github.com/semindex/semindex/internal/cli"
)

func main() {
	cli.Execute()
}
