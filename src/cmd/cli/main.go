package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"quick-capture/src/capture"
	"quick-capture/src/config"
	"quick-capture/src/session"
	"quick-capture/src/store"
)

type cliOptions struct {
	configFile  string
	outputDir   string
	format      string
	modifierKey string
	cancelKey   string
	clipboard   bool
	jsonOutput  bool
	verbose     bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(normalizeLegacyArgs(os.Args))
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"quickcapture-cli"}
	}

	opts := &cliOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "quickcapture-cli",
		Short:         "Headless drag-to-capture: hold the modifier and drag, press the cancel key to quit",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWithOptions(ctx, *opts, cmd.OutOrStdout(), cmd.ErrOrStderr(), session.Options{})
		},
	}

	cmd.Flags().StringVar(&opts.configFile, "config", "", "Path to a YAML config file")
	cmd.Flags().StringVar(&opts.outputDir, "output", "", "Output directory for captures")
	cmd.Flags().StringVar(&opts.format, "format", "", "Image format: jpg, png, bmp or webp")
	cmd.Flags().StringVar(&opts.modifierKey, "modifier", "", "Key to hold while dragging (e.g. ctrl, alt, ctrl+shift)")
	cmd.Flags().StringVar(&opts.cancelKey, "cancel", "", "Key that ends the session (e.g. esc, f12)")
	cmd.Flags().BoolVar(&opts.clipboard, "clipboard", false, "Also copy each capture to the clipboard")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print one JSON object per saved capture")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")

	return cmd
}

// runWithOptions runs one capture session until the cancel key is pressed or
// ctx is done. base carries injectable session dependencies for tests.
func runWithOptions(ctx context.Context, opts cliOptions, stdout, stderr io.Writer, base session.Options) error {
	lo := config.LoadOptions{
		ConfigFile:  opts.configFile,
		OutputDir:   opts.outputDir,
		FileExt:     opts.format,
		ModifierKey: opts.modifierKey,
		CancelKey:   opts.cancelKey,
	}
	if opts.clipboard {
		on := true
		lo.CopyToClipboard = &on
	}
	cfg, err := config.LoadWithOptions(lo)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	// The headless runner has no preview surface.
	cfg.ShowPreview = false

	// Configure logging BEFORE any other operations.
	if opts.verbose {
		logrus.SetOutput(stderr)
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetOutput(io.Discard)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Status lines share stdout with JSON records unless JSON is requested.
	statusOut := stdout
	if opts.jsonOutput {
		statusOut = stderr
	}

	stopped := make(chan error, 1)
	sessOpts := base
	sessOpts.Config = cfg
	sessOpts.Status = capture.StatusFunc(func(msg string) { fmt.Fprintln(statusOut, msg) })
	sessOpts.OnStarted = func() {
		fmt.Fprintf(statusOut, "Press %s to quit\n", strings.ToLower(cfg.CancelKey))
	}
	sessOpts.OnStopped = func(err error) { stopped <- err }
	if opts.jsonOutput {
		enc := json.NewEncoder(stdout)
		sessOpts.OnSaved = func(frame capture.Frame, saved store.Saved) {
			if err := enc.Encode(newCaptureRecord(frame, saved)); err != nil {
				logrus.Warnf("Failed to encode capture record: %v", err)
			}
		}
	}

	sess, err := session.New(sessOpts)
	if err != nil {
		return err
	}
	if err := sess.Start(ctx); err != nil {
		return err
	}

	return exitError(<-stopped)
}

// exitError maps a loop exit reason to the command result. Normal ways of
// quitting are not errors.
func exitError(err error) error {
	if err == nil || errors.Is(err, capture.ErrCancelled) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type captureRecord struct {
	Path      string `json:"path"`
	Index     int    `json:"index"`
	Bytes     int64  `json:"bytes"`
	Region    string `json:"region"`
	Timestamp string `json:"timestamp"`
}

func newCaptureRecord(frame capture.Frame, saved store.Saved) captureRecord {
	return captureRecord{
		Path:      saved.Path,
		Index:     saved.Index,
		Bytes:     saved.Size,
		Region:    frame.Region.String(),
		Timestamp: frame.CapturedAt.UTC().Format(time.RFC3339),
	}
}

func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	long := []string{"config", "output", "format", "modifier", "cancel", "clipboard", "json", "verbose"}
	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range long {
			if arg == "-"+name || strings.HasPrefix(arg, "-"+name+"=") {
				normalized[i] = "-" + arg
				break
			}
		}
	}

	return normalized
}
