package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"quick-capture/src/config"
	"quick-capture/src/gui"
	"quick-capture/src/logutil"
	"quick-capture/src/session"
	"quick-capture/src/singleinstance"
	"quick-capture/src/tray"
)

const appID = "io.github.quickcapture"

var (
	errNoResident = errors.New("no running QuickCapture instance found")
	// errAlreadyRunning has been explained to the user already.
	errAlreadyRunning = errors.New("already running")
)

type mainOptions struct {
	configFile string
	outputDir  string
	format     string
	noPreview  bool
	clipboard  bool
	tray       bool

	toggle bool
	start  bool
	stop   bool
	status bool
}

func main() {
	// fyne and the Win32 hooks expect the main goroutine to stay on one thread.
	runtime.LockOSThread()

	if err := run(); err != nil {
		if !errors.Is(err, errAlreadyRunning) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run() error {
	args := normalizeLegacyArgs(os.Args)
	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "quickcapture",
		Short:         "Hold a key and drag to save screen regions as numbered images",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithOptions(cmd, *opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configFile, "config", "", "Path to a YAML config file")
	f.StringVar(&opts.outputDir, "output", "", "Output directory for captures")
	f.StringVar(&opts.format, "format", "", "Image format: jpg, png, bmp or webp")
	f.BoolVar(&opts.noPreview, "no-preview", false, "Disable the live preview")
	f.BoolVar(&opts.clipboard, "clipboard", false, "Also copy each capture to the clipboard")
	f.BoolVar(&opts.tray, "tray", false, "Run in the system tray instead of a window")

	f.BoolVar(&opts.toggle, "toggle", false, "Toggle capture mode in the running instance")
	f.BoolVar(&opts.start, "start", false, "Start capture mode in the running instance")
	f.BoolVar(&opts.stop, "stop", false, "Stop capture mode in the running instance")
	f.BoolVar(&opts.status, "status", false, "Print the state of the running instance")
	cmd.MarkFlagsMutuallyExclusive("toggle", "start", "stop", "status")

	return cmd
}

// normalizeLegacyArgs maps single-dash long flags (-tray, -output=dir) to the
// double-dash form cobra expects.
func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return []string{"quickcapture"}
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	long := []string{"config", "output", "format", "no-preview", "clipboard", "tray", "toggle", "start", "stop", "status"}
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

func (o mainOptions) loadOptions() config.LoadOptions {
	lo := config.LoadOptions{
		ConfigFile: o.configFile,
		OutputDir:  o.outputDir,
		FileExt:    o.format,
	}
	if o.noPreview {
		off := false
		lo.ShowPreview = &off
	}
	if o.clipboard {
		on := true
		lo.CopyToClipboard = &on
	}
	return lo
}

// controlVerb returns the remote-control verb selected by flags, if any.
func (o mainOptions) controlVerb() (singleinstance.Verb, bool) {
	switch {
	case o.toggle:
		return singleinstance.VerbToggle, true
	case o.start:
		return singleinstance.VerbStart, true
	case o.stop:
		return singleinstance.VerbStop, true
	case o.status:
		return singleinstance.VerbStatus, true
	}
	return "", false
}

func runWithOptions(cmd *cobra.Command, opts mainOptions) error {
	// Loads .env early so SINGLEINSTANCE_PORT_* apply to delegation.
	cfg, err := config.LoadWithOptions(opts.loadOptions())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logutil.Setup(cfg.EnableFileLogging, cfg.LogLevel)

	if verb, ok := opts.controlVerb(); ok {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return handleControl(ctx, verb, singleinstance.NewClient(), cmd.OutOrStdout())
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	enableDPIAwareness()
	logMonitorConfiguration()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Pre-flight: binding the control port is the single-instance lock.
	srv := singleinstance.NewServer()
	if err := srv.Start(ctx); err != nil {
		port, ok := singleinstance.DetectResidentPort(ctx)
		if !ok {
			port, _ = singleinstance.PortRange()
		}
		logrus.Infof("Pre-flight: port %d busy, resident already exists: %v", port, err)
		fmt.Fprintf(cmd.OutOrStdout(), "already running on port %d\n", port)
		return errAlreadyRunning
	}
	defer srv.Close()
	logrus.Infof("QuickCapture resident on 127.0.0.1:%d, output %s (.%s)", srv.Port(), cfg.OutputDir, cfg.FileExt)

	if opts.tray {
		return runTray(ctx, cfg, srv)
	}
	return runWindow(ctx, cfg, srv)
}

func runWindow(ctx context.Context, cfg *config.Config, srv singleinstance.Server) error {
	a := app.NewWithID(appID)
	w, err := gui.New(ctx, a, cfg, session.Options{})
	if err != nil {
		return err
	}
	go serveControl(ctx, srv, w.Session())
	go func() {
		<-ctx.Done()
		fyne.Do(a.Quit)
	}()
	w.ShowAndRun()
	w.Session().Stop()
	return nil
}

func runTray(ctx context.Context, cfg *config.Config, srv singleinstance.Server) error {
	t, err := tray.New(ctx, cfg, session.Options{}, nil)
	if err != nil {
		return err
	}
	go serveControl(ctx, srv, t.Session())
	t.Run()
	return nil
}

func serveControl(ctx context.Context, srv singleinstance.Server, ctl controller) {
	if err := singleinstance.Serve(ctx, srv, controlHandler(ctl)); err != nil && ctx.Err() == nil {
		logrus.Warnf("Control server stopped: %v", err)
	}
}

// controller is the part of session.Session the control server drives.
type controller interface {
	Start(ctx context.Context) error
	Stop()
	Toggle(ctx context.Context) (session.State, error)
	State() session.State
}

func controlHandler(ctl controller) singleinstance.Handler {
	return func(ctx context.Context, verb singleinstance.Verb) (string, error) {
		switch verb {
		case singleinstance.VerbToggle:
			st, err := ctl.Toggle(ctx)
			return string(st), err
		case singleinstance.VerbStart:
			if err := ctl.Start(ctx); err != nil {
				return "", err
			}
		case singleinstance.VerbStop:
			ctl.Stop()
		case singleinstance.VerbStatus:
		default:
			return "", fmt.Errorf("unsupported command %s", verb)
		}
		return string(ctl.State()), nil
	}
}

func handleControl(ctx context.Context, verb singleinstance.Verb, client singleinstance.Client, out io.Writer) error {
	delegated, reply, err := client.Send(ctx, verb)
	if err != nil {
		return fmt.Errorf("%s failed: %w", strings.ToLower(string(verb)), err)
	}
	if !delegated {
		return errNoResident
	}
	logrus.Infof("Delegated %s to resident: %s", verb, reply)
	fmt.Fprintln(out, reply)
	return nil
}
