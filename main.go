package main

import (
	"fmt"
	"os"

	"github.com/cybermate-sg/cybermatecissp-sub003/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
