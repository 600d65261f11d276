// Command llamastack-ask sends one chat prompt to a local LlamaStack server
// and prints the answer.
package main

import (
	"os"

	"github.com/quailyquaily/llmask/internal/askcmd"
)

func main() {
	os.Exit(askcmd.Execute(askcmd.LlamaStack))
}
