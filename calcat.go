package main

import (
	"context"
	_ "embed"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/perbu/calcat/category"
	"github.com/perbu/calcat/colorize"
	"github.com/perbu/calcat/config"
	"github.com/perbu/calcat/dateparse"
	"github.com/perbu/calcat/export"
	"github.com/perbu/calcat/gcal"
	"github.com/perbu/calcat/session"
	"github.com/perbu/calcat/tui"
)

//go:embed .version
var embeddedVersion string

func run(ctx context.Context, args []string, stdout io.Writer) error {
	cmd := "tui"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "help", "-h", "-help", "--help":
		printUsage(stdout)
		return nil
	case "version", "-version", "--version":
		_, _ = fmt.Fprintln(stdout, "calcat", strings.TrimSpace(embeddedVersion))
		return nil
	}

	// Initialize configuration loader
	loader, err := config.NewFileLoader()
	if err != nil {
		return fmt.Errorf("config.NewFileLoader: %w", err)
	}
	cfg, err := loader.LoadConfig()
	if err != nil {
		return fmt.Errorf("loader.LoadConfig: %w", err)
	}

	switch cmd {
	case "tui":
		return runTUI(ctx, loader, cfg)
	case "auth":
		return runAuth(ctx, loader, stdout)
	case "run":
		loc, err := cfg.Location()
		if err != nil {
			return err
		}
		// Validate the range before touching credentials or the network.
		opts, err := parseBatchArgs(args, time.Now().In(loc))
		if err != nil {
			return err
		}
		deps, err := newDeps(ctx, loader, cfg, newLogger(os.Stderr))
		if err != nil {
			return err
		}
		return runBatch(ctx, deps, opts, stdout)
	default:
		printUsage(stdout)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "calcat - categorize Google Calendar events with Gemini, version", strings.TrimSpace(embeddedVersion))
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  calcat [tui]                          interactive mode")
	_, _ = fmt.Fprintln(w, "  calcat auth                           authorize Google Calendar access")
	_, _ = fmt.Fprintln(w, "  calcat run [-csv path] [-dry-run] [start [end]]")
	_, _ = fmt.Fprintln(w, "Dates: today, tomorrow, yesterday, +Nd, -Nd or YYYY-MM-DD")
	_, _ = fmt.Fprintln(w, "Example: calcat run -7d today -csv .")
}

func newLogger(w io.Writer) *log.Logger {
	level := log.InfoLevel
	if os.Getenv("CALCAT_DEBUG") != "" {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{ReportTimestamp: true, Level: level, Prefix: "calcat"})
}

func newAuthenticator(loader *config.FileLoader, logger *log.Logger) (*gcal.Authenticator, error) {
	credBytes, err := loader.LoadCredentials()
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}
	auth, err := gcal.NewAuthenticator(credBytes, loader, logger)
	if err != nil {
		return nil, fmt.Errorf("gcal.NewAuthenticator: %w", err)
	}
	return auth, nil
}

// newDeps wires the production collaborators shared by the TUI and batch mode.
func newDeps(ctx context.Context, loader *config.FileLoader, cfg config.Config, logger *log.Logger) (tui.Deps, error) {
	auth, err := newAuthenticator(loader, logger)
	if err != nil {
		return tui.Deps{}, err
	}
	gen, err := category.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.Model)
	if err != nil {
		return tui.Deps{}, err
	}
	return tui.Deps{
		Config: cfg,
		Auth:   auth,
		NewService: func(ctx context.Context, ts oauth2.TokenSource) (gcal.CalendarService, error) {
			svc, err := gcal.NewGCalService(ctx, ts, logger)
			if err != nil {
				return nil, err
			}
			return svc, nil
		},
		Classifier: category.NewCategorizer(gen, logger),
		Sessions:   session.NewStore(cfg.TTL()),
		Logger:     logger,
		Now:        time.Now,
	}, nil
}

func runAuth(ctx context.Context, loader *config.FileLoader, stdout io.Writer) error {
	logger := newLogger(os.Stderr)
	auth, err := newAuthenticator(loader, logger)
	if err != nil {
		return err
	}
	err = auth.AuthorizeLoopback(ctx, gcal.LoopbackAddr, func(authURL string) {
		_, _ = fmt.Fprintf(stdout, "Go to the following link in your browser:\n%v\n", authURL)
	})
	if err != nil {
		return fmt.Errorf("authorization: %w", err)
	}
	_, _ = fmt.Fprintf(stdout, "Authorized. Token saved in %s\n", loader.Dir())
	return nil
}

// batchOptions are the parsed arguments of "calcat run".
type batchOptions struct {
	rng     dateparse.Range
	csvPath string
	dryRun  bool
}

// parseBatchArgs accepts flags before, between or after the dates. Arguments
// that are not defined flags, such as -7d, are dates. "--" ends flag parsing.
func parseBatchArgs(args []string, now time.Time) (batchOptions, error) {
	var opts batchOptions
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.StringVar(&opts.csvPath, "csv", "", "write the results as CSV to this file or directory")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "classify without changing any colors")

	var flags, dates []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			dates = append(dates, args[i+1:]...)
			break
		}
		name, inline := flagName(arg)
		f := fs.Lookup(name)
		if f == nil {
			dates = append(dates, arg)
			continue
		}
		flags = append(flags, arg)
		if bf, ok := f.Value.(interface{ IsBoolFlag() bool }); ok && bf.IsBoolFlag() {
			continue
		}
		if !inline && i+1 < len(args) {
			i++
			flags = append(flags, args[i])
		}
	}
	if err := fs.Parse(flags); err != nil {
		return batchOptions{}, err
	}

	parser := &dateparse.DefaultParser{Now: func() time.Time { return now }}
	rng, err := parser.Parse(dates)
	if err != nil {
		return batchOptions{}, err
	}
	opts.rng = rng
	return opts, nil
}

// flagName returns the name of a -name, --name or -name=value argument.
func flagName(arg string) (name string, inline bool) {
	if len(arg) < 2 || arg[0] != '-' {
		return "", false
	}
	name = strings.TrimPrefix(arg[1:], "-")
	if i := strings.IndexByte(name, '='); i >= 0 {
		return name[:i], true
	}
	return name, false
}

func runBatch(ctx context.Context, deps tui.Deps, opts batchOptions, stdout io.Writer) error {
	loc, err := deps.Config.Location()
	if err != nil {
		return err
	}
	ts, err := deps.Auth.TokenSource(ctx)
	if errors.Is(err, gcal.ErrAuthorizationRequired) {
		return fmt.Errorf("%w: run 'calcat auth' first", err)
	}
	if err != nil {
		return err
	}
	svc, err := deps.NewService(ctx, ts)
	if err != nil {
		return fmt.Errorf("gcal.NewGCalService: %w", err)
	}

	driver := colorize.NewDriver(deps.Classifier, svc, deps.Config.CalendarID,
		colorize.WithDryRun(opts.dryRun), colorize.WithLogger(deps.Logger))
	rows, err := colorize.Run(ctx, gcal.NewFetcher(svc, deps.Config.CalendarID, loc), driver, opts.rng,
		func(done, total int, row colorize.ResultRow) {
			deps.Logger.Debug("categorized", "n", done, "of", total, "title", row.Title, "category", row.Category)
		})
	if err != nil {
		return fmt.Errorf("colorize.Run: %w", err)
	}

	printRows(stdout, opts.rng, rows, loc)

	if opts.csvPath != "" && len(rows) > 0 {
		path, err := export.Save(opts.csvPath, rows, deps.Now())
		if err != nil {
			return fmt.Errorf("export.Save: %w", err)
		}
		_, _ = fmt.Fprintf(stdout, "CSV written to %s\n", path)
	}
	return nil
}

func runTUI(ctx context.Context, loader *config.FileLoader, cfg config.Config) error {
	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o700); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer func() { _ = logFile.Close() }()

	deps, err := newDeps(ctx, loader, cfg, newLogger(logFile))
	if err != nil {
		return err
	}

	p := tea.NewProgram(tui.NewModel(ctx, deps), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		stop()
		log.Fatal(err)
	}
}
