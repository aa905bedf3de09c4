package main

import (
	"fmt"
	"os"

	"github.com/howjmay/coreutils/internal/app"
)

func main() {
	if err := app.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "tail: %v\n", err)
		os.Exit(1)
	}
}
