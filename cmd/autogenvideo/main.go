// Package main implements the entry point for the video generation
// automation tool: batch submission, state polling, history reconciliation,
// the periodic monitor loop, and the local status server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alexfaker/autoGenVideo/internal/api"
	"github.com/alexfaker/autoGenVideo/internal/auth"
	"github.com/alexfaker/autoGenVideo/internal/config"
	"github.com/alexfaker/autoGenVideo/internal/platform/jsonfile"
	"github.com/alexfaker/autoGenVideo/internal/platform/logger"
	"github.com/alexfaker/autoGenVideo/internal/platform/vidu"
	"github.com/alexfaker/autoGenVideo/internal/service"
)

const usage = `usage: autogenvideo <command> [flags]

commands:
  submit-batch  submit one task per image in the input directory
  poll          refresh the state of every active task
  download      download the artifact of one completed task: download <task-id>
  reconcile     fetch the remote history, repair the ledger, download artifacts
  monitor       run the periodic poll and reconcile loop
  serve         run the local status API
  report        print the ledger summary
  cleanup       remove ledger records older than the retention window
  save-token    store a session token: save-token <token> [phone]
`

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app bundles everything the subcommands need.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	tokens     *auth.TokenStore
	engine     *service.Engine
	batch      *service.BatchSubmitter
	reconciler *service.Reconciler
	monitor    *service.Monitor
	handler    *api.StatusHandler
}

func run() error {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		return errors.New("no command given")
	}
	command := os.Args[1]
	args := os.Args[2:]

	a, err := initializeApp()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch command {
	case "submit-batch":
		return a.runSubmitBatch(ctx, args)
	case "poll":
		return a.runPoll(ctx)
	case "download":
		return a.runDownload(ctx, args)
	case "reconcile":
		return a.runReconcile(ctx)
	case "monitor":
		return a.runMonitor(ctx)
	case "serve":
		return a.runServe(ctx)
	case "report":
		return a.runReport(ctx)
	case "cleanup":
		return a.runCleanup(ctx)
	case "save-token":
		return a.runSaveToken(args)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

// initializeApp loads configuration and wires every component together.
func initializeApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	for _, dir := range []string{cfg.Storage.DataDir, cfg.Storage.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	tokens, err := auth.NewTokenStore(cfg.Storage.DataDir, log)
	if err != nil {
		return nil, err
	}

	client, err := vidu.NewClient(cfg.Remote, tokens, log)
	if err != nil {
		return nil, err
	}
	transfer, err := vidu.NewTransfer(cfg.Remote, cfg.Storage.OutputDir, tokens, log)
	if err != nil {
		return nil, err
	}

	ledger, err := jsonfile.NewTaskLedger(filepath.Join(cfg.Storage.DataDir, "tasks.json"), log)
	if err != nil {
		return nil, err
	}
	subLog, err := jsonfile.NewSubmissionLog(filepath.Join(cfg.Storage.DataDir, "submissions.csv"), log)
	if err != nil {
		return nil, err
	}

	engine, err := service.NewEngine(ledger, subLog, client, transfer, cfg.Remote, cfg.Behavior, log)
	if err != nil {
		return nil, err
	}
	batch, err := service.NewBatchSubmitter(engine, log)
	if err != nil {
		return nil, err
	}
	reconciler, err := service.NewReconciler(ledger, subLog, client, transfer, cfg.Behavior, log)
	if err != nil {
		return nil, err
	}
	monitor, err := service.NewMonitor(engine, reconciler, cfg.Behavior, log)
	if err != nil {
		return nil, err
	}
	handler, err := api.NewStatusHandler(ledger, engine, log)
	if err != nil {
		return nil, err
	}

	slog.Info("application initialized",
		"data_dir", cfg.Storage.DataDir,
		"output_dir", cfg.Storage.OutputDir,
		"token_present", tokens.Valid())

	return &app{
		cfg:        cfg,
		logger:     log,
		tokens:     tokens,
		engine:     engine,
		batch:      batch,
		reconciler: reconciler,
		monitor:    monitor,
		handler:    handler,
	}, nil
}

func (a *app) runSubmitBatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("submit-batch", flag.ContinueOnError)
	imagesDir := fs.String("images", a.cfg.Storage.InputDir, "directory of source images")
	promptsFile := fs.String("prompts", filepath.Join(a.cfg.Storage.InputDir, "prompts.txt"), "prompts file, one per line")
	offPeak := fs.Bool("off-peak", false, "request off-peak scheduling")
	if err := fs.Parse(args); err != nil {
		return err
	}

	report, err := a.batch.SubmitBatch(ctx, *imagesDir, *promptsFile, *offPeak, a.cfg.Behavior.SubmitDelay)
	if err != nil {
		return err
	}

	if report.Mismatch != "" {
		fmt.Println("warning:", report.Mismatch)
	}
	fmt.Printf("submitted %d/%d tasks (%.1f%% success)\n", report.Succeeded, report.Total, report.SuccessRate)
	for _, line := range report.Errors {
		fmt.Println("failed:", line)
	}
	return nil
}

func (a *app) runPoll(ctx context.Context) error {
	report, err := a.engine.PollAll(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("checked %d tasks: %d completed, %d failed, %d still active\n",
		report.Checked, report.CompletedNow, report.FailedNow, report.StillActive)
	for _, line := range report.Failures {
		fmt.Println("poll failed:", line)
	}
	return nil
}

func (a *app) runDownload(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: download <task-id>")
	}
	task, err := a.engine.DownloadCompleted(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Println("downloaded:", task.DownloadedPath)
	return nil
}

func (a *app) runReconcile(ctx context.Context) error {
	report, err := a.reconciler.ReconcilePass(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("fetched %d history items, matched %d, completed %d\n",
		report.FetchedRemote, len(report.Match.MatchedIDs), len(report.Match.CompletedIDs))
	fmt.Printf("downloads: %d new, %d already on disk, %d failed\n",
		report.Downloads.Downloaded, report.Downloads.Skipped, len(report.Downloads.Failures))
	return nil
}

func (a *app) runMonitor(ctx context.Context) error {
	err := a.monitor.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *app) runServe(ctx context.Context) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           api.NewRouter(a.handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("status server listening", "port", a.cfg.Server.Port)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

func (a *app) runReport(ctx context.Context) error {
	report, err := a.engine.Report(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("total tasks: %d\n", report.Total)
	for status, count := range report.Counts {
		fmt.Printf("  %s: %d\n", status, count)
	}
	fmt.Printf("downloaded: %d\n", report.Downloaded)
	fmt.Printf("completion rate: %.1f%%\n", report.CompletionRate)
	return nil
}

func (a *app) runCleanup(ctx context.Context) error {
	age := time.Duration(a.cfg.Behavior.RetentionDays) * 24 * time.Hour
	removed, err := a.engine.CleanupOlderThan(ctx, age)
	if err != nil {
		return err
	}
	fmt.Printf("removed %d tasks older than %d days\n", removed, a.cfg.Behavior.RetentionDays)
	return nil
}

func (a *app) runSaveToken(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errors.New("usage: save-token <token> [phone]")
	}
	phone := ""
	if len(args) == 2 {
		phone = args[1]
	}
	if err := a.tokens.Save(args[0], phone); err != nil {
		return err
	}
	expiry, err := a.tokens.ExpiresAt()
	if err != nil {
		return err
	}
	fmt.Println("token saved, expires", expiry.Format(time.RFC3339))
	return nil
}
