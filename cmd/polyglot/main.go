// Command polyglot transcodes LLM wire payloads between the OpenAI, Claude
// and Gemini shapes, and serves the same operations over HTTP.
package main

import (
	"os"

	"github.com/fatih/color"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
