package main

import (
	"fmt"
	"os"

	"github.com/amar74/n-be-sub001/internal/bootstrap"
)

func main() {
	if err := bootstrap.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
