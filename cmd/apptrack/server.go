package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/apptrack/internal/api"
	"github.com/kalambet/apptrack/internal/assist"
	"github.com/kalambet/apptrack/internal/config"
	"github.com/kalambet/apptrack/internal/engine"
	"github.com/kalambet/apptrack/internal/extract"
	"github.com/kalambet/apptrack/internal/ingest"
	"github.com/kalambet/apptrack/internal/jobdesc"
	"github.com/kalambet/apptrack/internal/logging"
	"github.com/kalambet/apptrack/internal/profile"
	"github.com/kalambet/apptrack/internal/storage"
)

const (
	workerPollInterval = 500 * time.Millisecond
	shutdownTimeout    = 5 * time.Second
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the apptrack server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		mcp, _ := cmd.Flags().GetBool("mcp")
		return runServer(mcp)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running apptrack server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show apptrack system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func init() {
	startCmd.Flags().Bool("mcp", false, "also serve MCP over stdio as cli.user_id")
}

// pidFile holds the PID of the running server inside the data directory.
type pidFile string

func pidFileIn(dataDir string) pidFile {
	return pidFile(filepath.Join(dataDir, "apptrack.pid"))
}

func (p pidFile) write() error {
	if err := os.MkdirAll(filepath.Dir(string(p)), 0o755); err != nil {
		return err
	}
	return os.WriteFile(string(p), []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func (p pidFile) read() (int, error) {
	data, err := os.ReadFile(string(p))
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func (p pidFile) remove() {
	os.Remove(string(p))
}

// probeHealth asks the server at addr for /health. A non-nil error means
// nothing answered.
func probeHealth(addr string) (map[string]string, int, error) {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + addr + "/health")
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	var health map[string]string
	json.NewDecoder(resp.Body).Decode(&health)
	return health, resp.StatusCode, nil
}

// app is the set of long-running components served by 'apptrack start'.
type app struct {
	store     *storage.Store
	profiles  *profile.Manager
	extractor *extract.Extractor
	assistant *assist.Assistant

	http   *http.Server
	worker *ingest.Worker
	mcp    *server.StdioServer
}

func newApp(cfg config.Config, eng engine.Engine, store *storage.Store, token string) *app {
	a := &app{store: store, profiles: profile.NewManager(store)}
	a.extractor = extract.NewExtractor(eng, "", a.profiles)
	a.assistant = assist.New(eng, "", a.profiles, jobdesc.NewFetcher(nil))

	a.http = &http.Server{
		Addr: cfg.Server.Addr(),
		Handler: api.NewHandler(api.Deps{
			Store:          store,
			Profiles:       a.profiles,
			Extractor:      a.extractor,
			Assistant:      a.assistant,
			Engine:         eng,
			Token:          token,
			MaxUploadBytes: int64(cfg.CV.MaxUploadMB) << 20,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.worker = ingest.NewWorker(store, a.extractor, workerPollInterval)
	return a
}

// enableMCP adds a stdio MCP server acting as userID.
func (a *app) enableMCP(userID int64) error {
	if userID <= 0 {
		return fmt.Errorf("--mcp needs cli.user_id; set it with 'apptrack config set cli.user_id <id>'")
	}
	a.mcp = server.NewStdioServer(api.NewMCPServer(api.MCPDeps{
		Store:     a.store,
		Profiles:  a.profiles,
		Extractor: a.extractor,
		Assistant: a.assistant,
		UserID:    userID,
	}))
	return nil
}

// serve runs every component until ctx is cancelled or one of them fails.
func (a *app) serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.worker.Run(gctx)
		return nil
	})
	g.Go(func() error {
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.http.Shutdown(shutdownCtx)
	})
	if a.mcp != nil {
		g.Go(func() error {
			if err := a.mcp.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}

func runServer(withMCP bool) error {
	fmt.Fprintf(os.Stderr, "apptrack version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(os.Stderr, cfg.Log.Level)

	token, err := config.EnsureAuthToken(&cfg)
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	slog.Info("API bearer token available")

	pid := pidFileIn(cfg.Storage.DataDir)
	if _, _, err := probeHealth(cfg.Server.Addr()); err == nil {
		if n, err := pid.read(); err == nil {
			printWarning("apptrack is already running (PID %d)", n)
			return fmt.Errorf("server already running (PID %d)", n)
		}
		printWarning("apptrack is already running on %s", cfg.Server.Addr())
		return fmt.Errorf("server already running on %s", cfg.Server.Addr())
	}
	if err := pid.write(); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer pid.remove()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, err := engine.Detect(ctx, cfg)
	if err != nil {
		return fmt.Errorf("detecting llm backend: %w", err)
	}
	defer engine.Close(eng)
	if err := engine.EnsureReady(ctx, eng, effectiveModel(cfg), os.Stderr); err != nil {
		return err
	}
	if !cfg.LLMConfigured() {
		printWarning("no LLM configured (%s); CV import extracts nothing and drafts use templates", eng.Name())
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("closing storage", "error", err)
		}
	}()

	a := newApp(cfg, eng, store, token)
	if withMCP {
		if err := a.enableMCP(int64(cfg.CLI.UserID)); err != nil {
			return err
		}
		slog.Info("MCP server started (stdio transport)", "user_id", cfg.CLI.UserID)
	}

	fmt.Fprintf(os.Stderr, "apptrack listening on %s (llm: %s)\n", cfg.Server.Addr(), eng.Name())
	return a.serve(ctx)
}

func effectiveModel(cfg config.Config) string {
	if cfg.LLM.Model != "" {
		return cfg.LLM.Model
	}
	return config.DefaultModel(cfg.LLM.Provider)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pid := pidFileIn(cfg.Storage.DataDir)
	n, err := pid.read()
	if err != nil {
		printError("apptrack is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}
	process, err := os.FindProcess(n)
	if err != nil {
		printError("could not find process %d", n)
		return err
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop apptrack (PID %d): %v", n, err)
		pid.remove()
		return err
	}
	printSuccess("Sent stop signal to apptrack (PID %d)", n)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	switch health, code, err := probeHealth(cfg.Server.Addr()); {
	case err != nil:
		printStatus("Server", "stopped")
	case code == http.StatusOK:
		printStatus("Server", "running on %s", cfg.Server.Addr())
		printStatus("LLM backend", "%s", health["llm"])
	default:
		printStatus("Server", "error (HTTP %d)", code)
	}

	printStatus("Provider", "%s", cfg.LLM.Provider)
	printStatus("Model", "%s", effectiveModel(cfg))
	if !cfg.LLMConfigured() {
		printWarning("llm.provider %s is missing credentials", cfg.LLM.Provider)
	}
	if cfg.CLI.UserID > 0 {
		printStatus("CLI user", "%d", cfg.CLI.UserID)
	}
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
