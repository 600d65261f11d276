package askcmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

type runOutput struct {
	Stdout string
	Stderr string
	Code   int
}

func runVariant(t *testing.T, variant Variant, stdin string, args ...string) runOutput {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), variant, args, strings.NewReader(stdin), &stdout, &stderr)
	return runOutput{Stdout: stdout.String(), Stderr: stderr.String(), Code: code}
}

type captured struct {
	Path        string
	ContentType string
	Body        map[string]any
}

func newServer(t *testing.T, status int, body string) (*httptest.Server, <-chan captured) {
	t.Helper()
	ch := make(chan captured, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var got map[string]any
		_ = json.NewDecoder(r.Body).Decode(&got)
		select {
		case ch <- captured{Path: r.URL.Path, ContentType: r.Header.Get("Content-Type"), Body: got}:
		default:
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, ch
}

func TestLlamaStackPrintsCompletionMessage(t *testing.T) {
	srv, reqs := newServer(t, http.StatusOK, `{"completion_message":{"role":"assistant","content":"Austin"}}`)

	out := runVariant(t, LlamaStack, "", "--endpoint", srv.URL+"/v1/inference/chat-completion")
	if out.Code != 0 {
		t.Fatalf("exit code = %d, stderr = %q", out.Code, out.Stderr)
	}
	if out.Stdout != "Response: Austin\n" {
		t.Fatalf("stdout = %q", out.Stdout)
	}

	req := <-reqs
	if req.Path != "/v1/inference/chat-completion" {
		t.Fatalf("path = %q", req.Path)
	}
	if req.ContentType != "application/json" {
		t.Fatalf("content-type = %q", req.ContentType)
	}
	if req.Body["model_id"] != "llama3.1:8b" {
		t.Fatalf("model_id = %#v", req.Body["model_id"])
	}
	if req.Body["max_tokens"] != float64(512) {
		t.Fatalf("max_tokens = %#v", req.Body["max_tokens"])
	}
	msgs, _ := req.Body["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("messages = %#v", req.Body["messages"])
	}
	msg, _ := msgs[0].(map[string]any)
	if msg["role"] != "user" || msg["content"] != "What is the capital city of Texas?" {
		t.Fatalf("message = %#v", msg)
	}
}

func TestLlamaStackHTTPErrorExitsOne(t *testing.T) {
	srv, _ := newServer(t, http.StatusInternalServerError, `"internal error"`)

	out := runVariant(t, LlamaStack, "", "-e", srv.URL)
	if out.Code != 1 {
		t.Fatalf("exit code = %d, want 1", out.Code)
	}
	if out.Stdout != "" {
		t.Fatalf("stdout should be empty, got %q", out.Stdout)
	}
	if !strings.Contains(out.Stderr, "500") || !strings.Contains(out.Stderr, `"internal error"`) {
		t.Fatalf("stderr = %q", out.Stderr)
	}
	if strings.Contains(out.Stderr, "Usage:") {
		t.Fatalf("HTTP errors should not print usage, got %q", out.Stderr)
	}
}

func TestLlamaStackCustomFlags(t *testing.T) {
	srv, reqs := newServer(t, http.StatusOK, `{"choices":[{"message":{"content":"Hi"}}]}`)

	out := runVariant(t, LlamaStack, "", "-e", srv.URL, "-p", "Say hi", "-m", "llama3.2:3b", "--max-tokens", "16")
	if out.Code != 0 || out.Stdout != "Response: Hi\n" {
		t.Fatalf("code = %d, stdout = %q, stderr = %q", out.Code, out.Stdout, out.Stderr)
	}
	req := <-reqs
	if req.Body["model_id"] != "llama3.2:3b" || req.Body["max_tokens"] != float64(16) {
		t.Fatalf("body = %#v", req.Body)
	}
}

func TestOllamaPrintsResponse(t *testing.T) {
	srv, reqs := newServer(t, http.StatusOK, `{"model":"llama3.1:8b","created_at":"2024-01-01T00:00:00Z","response":"Austin","done":true}`)

	out := runVariant(t, Ollama, "", "--url", srv.URL+"/api/generate", "-m", "llama3")
	if out.Code != 0 || out.Stdout != "Response: Austin\n" {
		t.Fatalf("code = %d, stdout = %q, stderr = %q", out.Code, out.Stdout, out.Stderr)
	}
	req := <-reqs
	want := map[string]any{"model": "llama3", "prompt": "What is the capital city of Texas?", "stream": false}
	if len(req.Body) != len(want) {
		t.Fatalf("body = %#v", req.Body)
	}
	for k, v := range want {
		if req.Body[k] != v {
			t.Fatalf("body[%s] = %#v, want %#v", k, req.Body[k], v)
		}
	}
}

func TestOllamaIgnoresCompletionMessage(t *testing.T) {
	body := `{"completion_message":{"content":"Austin"}}`
	srv, _ := newServer(t, http.StatusOK, body)

	out := runVariant(t, Ollama, "", "-u", srv.URL)
	if out.Code != 0 {
		t.Fatalf("exit code = %d", out.Code)
	}
	if out.Stdout != "Full response JSON: "+body+"\n" {
		t.Fatalf("stdout = %q", out.Stdout)
	}
}

func TestUnrecognizedShapePrintsFullJSON(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, "{\n  \"foo\": \"bar\"\n}")

	out := runVariant(t, LlamaStack, "", "-e", srv.URL)
	if out.Code != 0 {
		t.Fatalf("exit code = %d, stderr = %q", out.Code, out.Stderr)
	}
	if out.Stdout != "Full response JSON: {\"foo\":\"bar\"}\n" {
		t.Fatalf("stdout = %q", out.Stdout)
	}
}

func TestNonJSONSuccessBodyFails(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, "<html>oops</html>")

	out := runVariant(t, Ollama, "", "-u", srv.URL)
	if out.Code == 0 {
		t.Fatalf("expected non-zero exit, stdout = %q", out.Stdout)
	}
	if !strings.HasPrefix(out.Stderr, "Error: decode response body") {
		t.Fatalf("stderr = %q", out.Stderr)
	}
}

func TestTransportErrorFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	out := runVariant(t, Ollama, "", "-u", url)
	if out.Code != 1 {
		t.Fatalf("exit code = %d, want 1", out.Code)
	}
	if !strings.HasPrefix(out.Stderr, "Error: ") {
		t.Fatalf("stderr = %q", out.Stderr)
	}
}

func TestUsageErrorsSkipNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	cases := []struct {
		name    string
		variant Variant
		args    []string
	}{
		{name: "unknown_flag", variant: LlamaStack, args: []string{"-e", srv.URL, "--nope"}},
		{name: "positional_arg", variant: Ollama, args: []string{"-u", srv.URL, "extra"}},
		{name: "bad_scheme", variant: LlamaStack, args: []string{"-e", "ftp://localhost/x"}},
		{name: "missing_host", variant: Ollama, args: []string{"-u", "http://"}},
		{name: "empty_model", variant: LlamaStack, args: []string{"-e", srv.URL, "-m", " "}},
		{name: "empty_prompt", variant: Ollama, args: []string{"-u", srv.URL, "-p", ""}},
		{name: "bad_timeout", variant: Ollama, args: []string{"-u", srv.URL, "--timeout", "soon"}},
		{name: "zero_max_tokens", variant: LlamaStack, args: []string{"-e", srv.URL, "--max-tokens", "0"}},
		{name: "max_tokens_not_on_ollama", variant: Ollama, args: []string{"-u", srv.URL, "--max-tokens", "5"}},
		{name: "bad_log_level", variant: Ollama, args: []string{"-u", srv.URL, "--log-level", "loud"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := runVariant(t, tc.variant, "", tc.args...)
			if out.Code != 2 {
				t.Fatalf("exit code = %d, want 2 (stderr = %q)", out.Code, out.Stderr)
			}
			if !strings.Contains(out.Stderr, "Usage:") {
				t.Fatalf("expected usage on stderr, got %q", out.Stderr)
			}
			if out.Stdout != "" {
				t.Fatalf("stdout should be empty, got %q", out.Stdout)
			}
		})
	}
	if n := hits.Load(); n != 0 {
		t.Fatalf("usage errors reached the server %d times", n)
	}
}

func TestPromptFromStdin(t *testing.T) {
	srv, reqs := newServer(t, http.StatusOK, `{"response":"ok"}`)

	out := runVariant(t, Ollama, "  Why is the sky blue?\n", "-u", srv.URL, "-p", "-")
	if out.Code != 0 {
		t.Fatalf("exit code = %d, stderr = %q", out.Code, out.Stderr)
	}
	req := <-reqs
	if req.Body["prompt"] != "Why is the sky blue?" {
		t.Fatalf("prompt = %#v", req.Body["prompt"])
	}
}

func TestEndpointFromEnv(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{"output":"from env"}`)
	t.Setenv("LLMASK_ENDPOINT", srv.URL)

	out := runVariant(t, Ollama, "")
	if out.Code != 0 || out.Stdout != "Response: from env\n" {
		t.Fatalf("code = %d, stdout = %q, stderr = %q", out.Code, out.Stdout, out.Stderr)
	}
}

func TestFlagBeatsEnv(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{"text":"from flag"}`)
	t.Setenv("LLMASK_ENDPOINT", "http://127.0.0.1:1/unused")

	out := runVariant(t, LlamaStack, "", "-e", srv.URL)
	if out.Code != 0 || out.Stdout != "Response: from flag\n" {
		t.Fatalf("code = %d, stdout = %q, stderr = %q", out.Code, out.Stdout, out.Stderr)
	}
}

func TestConfigFileSetsModel(t *testing.T) {
	srv, reqs := newServer(t, http.StatusOK, `{"response":"ok"}`)
	cfgPath := filepath.Join(t.TempDir(), "llmask.yaml")
	if err := os.WriteFile(cfgPath, []byte("model: qwen2.5:7b\nendpoint: "+srv.URL+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out := runVariant(t, Ollama, "", "--config", cfgPath)
	if out.Code != 0 {
		t.Fatalf("exit code = %d, stderr = %q", out.Code, out.Stderr)
	}
	if req := <-reqs; req.Body["model"] != "qwen2.5:7b" {
		t.Fatalf("model = %#v", req.Body["model"])
	}
}

func TestInspectRequestWritesDump(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{"results":[{"content":["A","us","tin"]}]}`)
	dir := t.TempDir()

	out := runVariant(t, LlamaStack, "", "-e", srv.URL, "--inspect-request", "--inspect-dir", dir)
	if out.Code != 0 || out.Stdout != "Response: Austin\n" {
		t.Fatalf("code = %d, stdout = %q, stderr = %q", out.Code, out.Stdout, out.Stderr)
	}
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("dump dir entries = %v, err = %v", entries, err)
	}
	if !strings.HasPrefix(entries[0].Name(), "request_chat_") {
		t.Fatalf("dump file = %q", entries[0].Name())
	}
	raw, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"model_id": "llama3.1:8b"`, "### response 200", `"tin"`} {
		if !strings.Contains(string(raw), want) {
			t.Fatalf("dump missing %q:\n%s", want, raw)
		}
	}
}

func TestTraceLogsToStderr(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{"response":"ok"}`)

	out := runVariant(t, Ollama, "", "-u", srv.URL, "--trace")
	if out.Code != 0 || out.Stdout != "Response: ok\n" {
		t.Fatalf("code = %d, stdout = %q", out.Code, out.Stdout)
	}
	for _, want := range []string{"request_start", "request_done", "extract_ok", "rule=response"} {
		if !strings.Contains(out.Stderr, want) {
			t.Fatalf("stderr missing %q: %q", want, out.Stderr)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	out := runVariant(t, Ollama, "", "version")
	if out.Code != 0 || !strings.HasPrefix(out.Stdout, "ollama-ask ") {
		t.Fatalf("code = %d, stdout = %q", out.Code, out.Stdout)
	}
}

func TestVersionCommandRejectsArguments(t *testing.T) {
	out := runVariant(t, LlamaStack, "", "version", "extra")
	if out.Code != 2 {
		t.Fatalf("code = %d, want 2; stderr = %q", out.Code, out.Stderr)
	}
	if !strings.Contains(out.Stderr, "unexpected arguments: extra") || !strings.Contains(out.Stderr, "Usage:") {
		t.Fatalf("stderr = %q", out.Stderr)
	}
	if out.Stdout != "" {
		t.Fatalf("stdout = %q", out.Stdout)
	}
}

func TestExitCode(t *testing.T) {
	if ExitCode(nil) != 0 {
		t.Fatalf("nil error should exit 0")
	}
	if ExitCode(&UsageError{Err: io.EOF}) != 2 {
		t.Fatalf("usage error should exit 2")
	}
	if ExitCode(io.ErrUnexpectedEOF) != 1 {
		t.Fatalf("other errors should exit 1")
	}
}
