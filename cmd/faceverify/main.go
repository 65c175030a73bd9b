// faceverify runs a face verification attempt from the terminal against
// an iProov-compatible service and keeps an optional attempt history.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	faceverify "github.com/goliatone/go-faceverify"
	"github.com/goliatone/go-faceverify/adapters/gologger"
	"github.com/goliatone/go-faceverify/core"
)

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }
func (e *exitError) ExitCode() int { return e.code }

var errQuit = errors.New("verification not completed")

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			if !errors.Is(err, errQuit) {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			}
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) error {
	var opts cliOptions
	flagSet := pflag.NewFlagSet("faceverify", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&opts.userID, "user", "u", "", "user id to verify")
	flagSet.StringVar(&opts.claimType, "claim", "", "claim type: enrol or verify")
	flagSet.StringVar(&opts.assuranceType, "assurance", "", "assurance type: genuine_presence or liveness")
	flagSet.StringVar(&opts.tokenURL, "token-url", "", "token service base URL")
	flagSet.StringVar(&opts.verificationURL, "verify-url", "", "verification websocket URL")
	flagSet.IntVar(&opts.maxRetries, "max-retries", 0, "failed attempts allowed before giving up")
	flagSet.BoolVar(&opts.skipTips, "skip-tips", false, "start scanning without showing tips")
	flagSet.StringVar(&opts.dbDriver, "db-driver", "", "attempt history driver: sqlite3 or postgres")
	flagSet.StringVar(&opts.dbDSN, "db-dsn", "", "attempt history data source name")
	flagSet.BoolVar(&opts.history, "history", false, "list recorded attempts for --user and exit")
	flagSet.IntVar(&opts.historyLimit, "limit", 20, "attempts to list with --history")
	flagSet.StringVar(&opts.logLevel, "log-level", "warn", "log level: trace, debug, info, warn, error")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return &exitError{code: 2, err: err}
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return &exitError{code: 2, err: fmt.Errorf("unexpected argument: %s", rest[0])}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newSlogLogger(stderr, parseLevel(opts.logLevel))
	provider := slogProvider{root: root}
	logger := gologger.Named(provider, "cli")

	var storage *attemptStorage
	if dbCfg := storageConfig(opts, os.Getenv); dbCfg.driver != "" {
		var err error
		storage, err = openAttemptStorage(ctx, dbCfg)
		if err != nil {
			return err
		}
		defer storage.Close()
	}

	if opts.history {
		if storage == nil {
			return &exitError{code: 2, err: fmt.Errorf("--history needs --db-driver and --db-dsn")}
		}
		return printHistory(ctx, stdout, storage, opts)
	}

	cfg, err := loadConfig(ctx, opts, os.Getenv)
	if err != nil {
		return err
	}

	presenter := newConsolePresenter(stdout)
	orchestratorOpts := []faceverify.Option{}
	if storage != nil {
		orchestratorOpts = append(orchestratorOpts, faceverify.WithAttemptRecorder(storage.store))
	}
	orchestrator, err := faceverify.NewIProovOrchestrator(ctx, cfg, presenter, faceverify.Runtime{
		LoggerProvider: provider,
	}, orchestratorOpts...)
	if err != nil {
		return err
	}
	defer orchestrator.Close()
	if err := orchestrator.Start(context.Background()); err != nil {
		return err
	}

	logger.Debug("verification session starting", "user_id", opts.userID, "claim_type", cfg.ClaimType)
	return interact(ctx, orchestrator, presenter, readLines(stdin), stdout, opts)
}

type verifier interface {
	Submit(ctx context.Context, userID string) error
	Cancel(ctx context.Context) error
	Snapshot(ctx context.Context) (core.OrchestratorSnapshot, error)
}

// interact drives attempts until one succeeds, the user quits, or the
// retry limit is reached. ctx ending cancels the active attempt.
func interact(
	ctx context.Context,
	orchestrator verifier,
	presenter *consolePresenter,
	lines <-chan string,
	out io.Writer,
	opts cliOptions,
) error {
	if err := orchestrator.Submit(ctx, opts.userID); err != nil {
		return &exitError{code: 1, err: err}
	}

	var acknowledge func()
	awaitingRetry := false
	interrupted := false
	done := ctx.Done()
	for {
		// stdin is only read while a prompt is open
		var input <-chan string
		if acknowledge != nil || awaitingRetry {
			input = lines
		}
		select {
		case <-done:
			done = nil
			interrupted = true
			cancelCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			err := orchestrator.Cancel(cancelCtx)
			cancel()
			if err != nil {
				return &exitError{code: 130, err: err}
			}
			snapshot, err := orchestrator.Snapshot(context.Background())
			if err != nil || snapshot.Phase == core.PhaseIdle {
				return &exitError{code: 130, err: errQuit}
			}
		case ev := <-presenter.Events():
			switch ev.kind {
			case uiTips:
				acknowledge = ev.acknowledge
			case uiOutcome:
				acknowledge = nil
				if ev.outcome.Kind == core.OutcomeSucceeded {
					return nil
				}
				if interrupted || ev.outcome.Kind == core.OutcomeCanceled {
					return &exitError{code: 130, err: errQuit}
				}
				snapshot, err := orchestrator.Snapshot(ctx)
				if err != nil {
					return &exitError{code: 1, err: err}
				}
				if !snapshot.CanAttempt() {
					fmt.Fprintln(out, core.MessageRetryLimitReached)
					return &exitError{code: 1, err: errQuit}
				}
				fmt.Fprintf(out, "Attempts used: %d/%d. Press Enter to retry or type q to quit.\n",
					snapshot.RetryCount, snapshot.MaxRetries)
				awaitingRetry = true
			}
		case line, ok := <-input:
			if !ok {
				return &exitError{code: 1, err: errQuit}
			}
			switch {
			case acknowledge != nil:
				ack := acknowledge
				acknowledge = nil
				ack()
			case awaitingRetry:
				if strings.EqualFold(strings.TrimSpace(line), "q") {
					return &exitError{code: 1, err: errQuit}
				}
				awaitingRetry = false
				if err := orchestrator.Submit(context.WithoutCancel(ctx), opts.userID); err != nil {
					return &exitError{code: 1, err: err}
				}
			}
		}
	}
}

func readLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

func printHistory(ctx context.Context, out io.Writer, storage *attemptStorage, opts cliOptions) error {
	page, err := storage.store.List(ctx, core.AttemptFilter{
		UserID:  opts.userID,
		Page:    1,
		PerPage: opts.historyLimit,
	})
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FINISHED\tUSER\tCLAIM\tOUTCOME\tRETRIES\tDETAIL")
	for _, item := range page.Items {
		detail := item.Message
		if item.FeedbackCode != "" {
			detail = strings.TrimSpace(detail + " [" + item.FeedbackCode + "]")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			item.FinishedAt.Local().Format(time.DateTime),
			item.UserID,
			item.ClaimType,
			item.Outcome,
			item.RetryCount,
			detail,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d of %d attempts\n", len(page.Items), page.Total)
	return nil
}

func parseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "trace":
		return levelTrace
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
