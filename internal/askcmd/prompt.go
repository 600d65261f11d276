package askcmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

const stdinPrompt = "-"

// resolvePrompt returns prompt unchanged unless it is "-", in which case the
// prompt is read from in until EOF.
func resolvePrompt(prompt string, in io.Reader, errOut io.Writer) (string, error) {
	if strings.TrimSpace(prompt) != stdinPrompt {
		return prompt, nil
	}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		_, _ = fmt.Fprintln(errOut, "Reading prompt from stdin (end with Ctrl-D).")
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("read prompt from stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
