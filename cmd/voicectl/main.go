// Command voicectl is a command-line client for the voice backend: health
// checks, text-to-speech, voice conversion, speaker profiles, batch jobs and
// downloads.
package main

import (
	"fmt"
	"os"
)

func main() {
	err := newRootCommand().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
