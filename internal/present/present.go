// Package present writes the outcome of one request to the terminal.
package present

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/quailyquaily/llmask/providers/localhttp"
)

// Answer prints the extracted text.
func Answer(out io.Writer, text string) error {
	_, err := fmt.Fprintf(out, "Response: %s\n", text)
	return err
}

// FullDocument prints the raw response body on one line so the caller can
// inspect a shape the extractor did not recognize. Key order is preserved.
func FullDocument(out io.Writer, body []byte) error {
	_, err := fmt.Fprintf(out, "Full response JSON: %s\n", compact(body))
	return err
}

// Failure prints err to the error stream. HTTP status failures keep the
// server body verbatim.
func Failure(errOut io.Writer, err error) {
	if err == nil {
		return
	}
	var statusErr *localhttp.StatusError
	if errors.As(err, &statusErr) {
		_, _ = fmt.Fprintln(errOut, statusErr.Error())
		return
	}
	_, _ = fmt.Fprintf(errOut, "Error: %s\n", strings.TrimSpace(err.Error()))
}

func compact(body []byte) string {
	var b bytes.Buffer
	if err := json.Compact(&b, body); err != nil {
		return strings.TrimSpace(string(body))
	}
	return b.String()
}
