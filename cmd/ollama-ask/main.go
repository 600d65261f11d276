// Command ollama-ask sends one prompt to a local Ollama generate endpoint
// and prints the answer.
package main

import (
	"os"

	"github.com/quailyquaily/llmask/internal/askcmd"
)

func main() {
	os.Exit(askcmd.Execute(askcmd.Ollama))
}
