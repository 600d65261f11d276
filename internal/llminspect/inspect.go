package llminspect

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const dumpTimestampFormat = "20060102_150405"

type Options struct {
	Mode            string
	Endpoint        string
	Model           string
	DumpDir         string
}

type header struct {
	Mode     string `yaml:"mode"`
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	Datetime string `yaml:"datetime"`
}

// RequestInspector appends request and response payloads to a markdown file
// under DumpDir, one fenced block per event.
type RequestInspector struct {
	mu    sync.Mutex
	file  *os.File
	path  string
	count int
}

func NewRequestInspector(opts Options) (*RequestInspector, error) {
	startedAt := time.Now()
	dumpDir := strings.TrimSpace(opts.DumpDir)
	if dumpDir == "" {
		dumpDir = "dump"
	}
	if err := os.MkdirAll(dumpDir, 0o755); err != nil {
		return nil, fmt.Errorf("create dump dir: %w", err)
	}
	path := filepath.Join(dumpDir, buildFilename("request", opts.Mode, startedAt))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open request dump file: %w", err)
	}
	inspector := &RequestInspector{file: file, path: path}
	h := header{
		Mode:     strings.TrimSpace(opts.Mode),
		Endpoint: strings.TrimSpace(opts.Endpoint),
		Model:    strings.TrimSpace(opts.Model),
		Datetime: startedAt.Format(time.RFC3339),
	}
	if err := inspector.writeHeader(h); err != nil {
		_ = file.Close()
		return nil, err
	}
	return inspector, nil
}

func (r *RequestInspector) Path() string {
	if r == nil {
		return ""
	}
	return r.path
}

func (r *RequestInspector) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	return r.file.Close()
}

func (r *RequestInspector) Dump(label, payload string) {
	if r == nil || r.file == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.count++
	var b strings.Builder
	fmt.Fprintf(&b, "\n## Event #%d\n\n", r.count)
	fmt.Fprintf(&b, "### %s\n\n", label)
	b.WriteString("```\n")
	b.WriteString(payload)
	if !strings.HasSuffix(payload, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("```\n\n")

	_, _ = r.file.WriteString(b.String())
	_ = r.file.Sync()
}

// SetDebugHook installs dumpFn on clients that expose SetDebugFn.
func SetDebugHook(client any, dumpFn func(label, payload string)) error {
	setter, ok := client.(interface {
		SetDebugFn(func(label, payload string))
	})
	if !ok {
		return fmt.Errorf("client does not support debug hook")
	}
	setter.SetDebugFn(dumpFn)
	return nil
}

func (r *RequestInspector) writeHeader(h header) error {
	var b bytes.Buffer
	b.WriteString("---\n")
	enc := yaml.NewEncoder(&b)
	if err := enc.Encode(h); err != nil {
		return fmt.Errorf("encode dump header: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode dump header: %w", err)
	}
	b.WriteString("---\n\n")
	if _, err := r.file.Write(b.Bytes()); err != nil {
		return err
	}
	return r.file.Sync()
}

func buildFilename(kind string, mode string, t time.Time) string {
	mode = strings.TrimSpace(mode)
	ts := t.Format(dumpTimestampFormat)
	if mode == "" {
		return fmt.Sprintf("%s_%s.md", kind, ts)
	}
	return fmt.Sprintf("%s_%s_%s.md", kind, mode, ts)
}
