package main

import (
	"os"

	"github.com/RyanBlaney/sonido-midi/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
