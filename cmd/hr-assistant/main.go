package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath  string
	metricsAddr string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "hr-assistant",
		Short:        "Answers questions about HR data in Russian",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default: search ./configs)")
	root.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address")

	vocabularyCmd := &cobra.Command{
		Use:   "vocabulary",
		Short: "Inspect and preload dataset vocabulary",
	}
	vocabularyCmd.AddCommand(
		&cobra.Command{
			Use:   "warm",
			Short: "Load distinct values of all text columns into the cache",
			Args:  cobra.NoArgs,
			RunE:  runWarm,
		},
		&cobra.Command{
			Use:   "columns",
			Short: "List dataset columns with their storage types",
			Args:  cobra.NoArgs,
			RunE:  runColumns,
		},
	)

	root.AddCommand(
		&cobra.Command{
			Use:   "ask [question]",
			Short: "Answer a single question",
			Args:  cobra.MinimumNArgs(1),
			RunE:  runAsk,
		},
		&cobra.Command{
			Use:   "repl",
			Short: "Answer questions read from stdin, one per line",
			Args:  cobra.NoArgs,
			RunE:  runREPL,
		},
		&cobra.Command{
			Use:   "ping",
			Short: "Check that the completion service answers",
			Args:  cobra.NoArgs,
			RunE:  runPing,
		},
		vocabularyCmd,
	)
	return root
}

// start builds the app, optionally with the dataset store, and the metrics
// server when an address is configured.
func start(ctx context.Context, withStore bool) (*app, func(), error) {
	a, err := newApp(configPath)
	if err != nil {
		return nil, nil, err
	}
	if withStore {
		if err := a.openStore(ctx); err != nil {
			a.Close()
			return nil, nil, err
		}
	}

	addr := metricsAddr
	if addr == "" {
		addr = a.cfg.Observability.MetricsAddress
	}
	stopMetrics := serveMetrics(addr, a)

	return a, func() {
		stopMetrics()
		a.Close()
	}, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, stop, err := start(ctx, true)
	if err != nil {
		return err
	}
	defer stop()

	fmt.Fprintln(cmd.OutOrStdout(), a.assistant.ProcessQuery(ctx, strings.Join(args, " ")))
	return nil
}

func runREPL(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, stop, err := start(ctx, true)
	if err != nil {
		return err
	}
	defer stop()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "🤖 Эйчарик на связи. Задайте вопрос или напишите «выход».")

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit", "выход":
			return nil
		}
		fmt.Fprintln(out, a.assistant.ProcessQuery(ctx, line))
		fmt.Fprintln(out)
		if ctx.Err() != nil {
			return nil
		}
	}
}

func runPing(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, stop, err := start(ctx, false)
	if err != nil {
		return err
	}
	defer stop()

	if !a.parser.Enabled() {
		return errors.New("completion service is not configured (set YANDEX_API_KEY and YANDEX_FOLDER_ID)")
	}
	if !a.parser.TestConnection(ctx) {
		return errors.New("❌ completion service did not answer")
	}
	fmt.Fprintln(cmd.OutOrStdout(), "✅ completion service is reachable")
	return nil
}

func runWarm(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, stop, err := start(ctx, true)
	if err != nil {
		return err
	}
	defer stop()

	columns := a.textColumns()
	started := time.Now()
	if err := a.cache.Warm(ctx, columns); err != nil {
		return fmt.Errorf("warm vocabulary: %w", err)
	}
	for _, c := range columns {
		values, err := a.cache.Values(ctx, c)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-22s %d values\n", c, len(values))
	}
	a.zapLog.Info("vocabulary warmed", zap.Int("columns", len(columns)), zap.Duration("took", time.Since(started)))
	return nil
}

func runColumns(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, stop, err := start(ctx, true)
	if err != nil {
		return err
	}
	defer stop()

	lines, err := a.describe(ctx)
	if err != nil {
		return err
	}
	for _, line := range lines {
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	return nil
}

// serveMetrics exposes prometheus metrics and a health probe. The returned
// func stops the server.
func serveMetrics(addr string, a *app) func() {
	if addr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status, code := "healthy", http.StatusOK
		if a.db != nil {
			if err := a.db.PingContext(r.Context()); err != nil {
				status, code = "degraded", http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{
			"status": status,
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		a.zapLog.Info("metrics server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.zapLog.Error("metrics server failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}
