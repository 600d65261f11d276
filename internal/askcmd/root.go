package askcmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/quailyquaily/llmask/extract"
	"github.com/quailyquaily/llmask/internal/configutil"
	"github.com/quailyquaily/llmask/internal/llminspect"
	"github.com/quailyquaily/llmask/internal/logutil"
	"github.com/quailyquaily/llmask/internal/payload"
	"github.com/quailyquaily/llmask/internal/present"
	"github.com/quailyquaily/llmask/llm"
	"github.com/quailyquaily/llmask/providers/localhttp"
)

// UsageError marks malformed command-line input. It is reported before any
// network activity.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }

func (e *UsageError) Unwrap() error { return e.Err }

func usageErrorf(format string, args ...any) error {
	return &UsageError{Err: fmt.Errorf(format, args...)}
}

// Execute runs the variant's command against the process arguments and
// returns the exit code. Ctrl-C cancels the in-flight request.
func Execute(variant Variant) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return Run(ctx, variant, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}

func Run(ctx context.Context, variant Variant, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if args == nil {
		// cobra falls back to os.Args for a nil slice.
		args = []string{}
	}
	root := New(variant)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	cmd, err := root.ExecuteContextC(ctx)
	if err != nil {
		present.Failure(stderr, err)
		var usageErr *UsageError
		if errors.As(err, &usageErr) && cmd != nil {
			_, _ = fmt.Fprint(stderr, cmd.UsageString())
		}
	}
	return ExitCode(err)
}

// ExitCode maps a command error to a process exit code: 0 on success, 2 for
// usage errors and 1 for everything else, HTTP status failures included.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var usageErr *UsageError
	if errors.As(err, &usageErr) {
		return 2
	}
	return 1
}

func New(variant Variant) *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:           variant.Use,
		Short:         variant.Short,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usageErrorf("unexpected arguments: %s", strings.Join(args, " "))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, v, variant)
		},
	}
	cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &UsageError{Err: err}
	})

	cmd.Flags().StringP("prompt", "p", variant.DefaultPrompt, "The user prompt to send (- reads stdin).")
	cmd.Flags().StringP(variant.Model.Name, variant.Model.Shorthand, variant.DefaultModel, variant.Model.Usage)
	cmd.Flags().StringP(variant.Endpoint.Name, variant.Endpoint.Shorthand, variant.DefaultEndpoint, variant.Endpoint.Usage)
	if variant.MaxTokens {
		cmd.Flags().Int("max-tokens", payload.DefaultMaxTokens, "Max output tokens.")
	}
	cmd.Flags().Duration("timeout", 0, "Overall HTTP request timeout (0 waits indefinitely).")
	cmd.Flags().Bool("inspect-request", false, "Dump request/response payloads to <inspect-dir>/request_<dialect>_YYYYMMDD_HHMMSS.md.")
	cmd.Flags().String("inspect-dir", defaultInspectDir, "Directory for --inspect-request dumps.")

	pf := cmd.PersistentFlags()
	pf.String("config", "", "Config file path (optional).")
	pf.String("env-file", "", "Dotenv file to load before reading LLMASK_* variables (optional).")
	pf.String("log-level", "", "Logging level: debug|info|warn|error (defaults to warn; debug if --trace).")
	pf.String("log-format", "text", "Logging format: text|json.")
	pf.Bool("log-add-source", false, "Include source file:line in logs.")
	pf.Bool("trace", false, "Print extra debug info to stderr.")

	bindPFlag(v, "config", pf.Lookup("config"))
	bindPFlag(v, "env_file", pf.Lookup("env-file"))
	bindPFlag(v, "logging.level", pf.Lookup("log-level"))
	bindPFlag(v, "logging.format", pf.Lookup("log-format"))
	bindPFlag(v, "logging.add_source", pf.Lookup("log-add-source"))
	bindPFlag(v, "trace", pf.Lookup("trace"))

	initViperDefaults(v)

	cmd.AddCommand(newVersionCmd(variant.Use))
	return cmd
}

func bindPFlag(v *viper.Viper, key string, flag *pflag.Flag) {
	_ = v.BindPFlag(key, flag)
}

type askConfig struct {
	Endpoint       string
	Model          string
	Prompt         string
	MaxTokens      int
	Timeout        time.Duration
	InspectRequest bool
	InspectDir     string
}

func resolveConfig(cmd *cobra.Command, v *viper.Viper, variant Variant) (askConfig, error) {
	if err := configutil.Init(v, envPrefix); err != nil {
		return askConfig{}, &UsageError{Err: err}
	}

	cfg := askConfig{
		Endpoint:       strings.TrimSpace(configutil.FlagOrViperString(v, cmd, variant.Endpoint.Name, "endpoint")),
		Model:          strings.TrimSpace(configutil.FlagOrViperString(v, cmd, variant.Model.Name, "model")),
		Timeout:        configutil.FlagOrViperDuration(v, cmd, "timeout", "timeout"),
		InspectRequest: configutil.FlagOrViperBool(v, cmd, "inspect-request", "inspect_request"),
		InspectDir:     configutil.FlagOrViperString(v, cmd, "inspect-dir", "inspect_dir"),
	}
	if variant.MaxTokens {
		cfg.MaxTokens = configutil.FlagOrViperInt(v, cmd, "max-tokens", "max_tokens")
		if cfg.MaxTokens <= 0 {
			return askConfig{}, usageErrorf("--max-tokens must be positive, got %d", cfg.MaxTokens)
		}
	}
	if cfg.Timeout < 0 {
		return askConfig{}, usageErrorf("--timeout must not be negative, got %s", cfg.Timeout)
	}

	prompt, err := resolvePrompt(configutil.FlagOrViperString(v, cmd, "prompt", "prompt"), cmd.InOrStdin(), cmd.ErrOrStderr())
	if err != nil {
		return askConfig{}, &UsageError{Err: err}
	}
	cfg.Prompt = prompt

	if err := validateEndpoint(cfg.Endpoint); err != nil {
		return askConfig{}, &UsageError{Err: fmt.Errorf("--%s: %w", variant.Endpoint.Name, err)}
	}
	return cfg, nil
}

func validateEndpoint(raw string) error {
	if raw == "" {
		return errors.New("endpoint must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return fmt.Errorf("unsupported scheme %q (expected http or https)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}

func runAsk(cmd *cobra.Command, v *viper.Viper, variant Variant) error {
	cfg, err := resolveConfig(cmd, v, variant)
	if err != nil {
		return err
	}

	logger, err := logutil.LoggerFromViper(v, cmd.ErrOrStderr())
	if err != nil {
		return &UsageError{Err: err}
	}

	req, err := payload.NewRequest(variant.Dialect, cfg.Model, cfg.Prompt, cfg.MaxTokens)
	if err != nil {
		return &UsageError{Err: err}
	}

	httpClient := localhttp.New(cfg.Timeout, userAgent())
	httpClient.Logger = logger
	var client llm.Client = httpClient

	if cfg.InspectRequest {
		inspector, err := llminspect.NewRequestInspector(llminspect.Options{
			Mode:     string(variant.Dialect),
			Endpoint: cfg.Endpoint,
			Model:    cfg.Model,
			DumpDir:  cfg.InspectDir,
		})
		if err != nil {
			return err
		}
		defer func() { _ = inspector.Close() }()
		if err := llminspect.SetDebugHook(client, inspector.Dump); err != nil {
			return err
		}
		logger.Info("inspect_request", "path", inspector.Path())
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	res, err := client.Do(ctx, variant.Dialect, cfg.Endpoint, req)
	if err != nil {
		return err
	}
	return printResult(cmd, logger, variant.Dialect, res)
}

func printResult(cmd *cobra.Command, logger *slog.Logger, dialect llm.Dialect, res llm.Result) error {
	text, rule := extract.Explain(res.Document, dialect)
	if rule == "" {
		logger.Debug("extract_miss", "request_id", res.RequestID, "bytes", len(res.Body))
		return present.FullDocument(cmd.OutOrStdout(), res.Body)
	}
	logger.Debug("extract_ok", "request_id", res.RequestID, "rule", rule)
	return present.Answer(cmd.OutOrStdout(), text)
}
