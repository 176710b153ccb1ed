package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	charmLog "github.com/charmbracelet/log"
	serveradapter "github.com/evanschultz/weekgrid/internal/adapters/server"
	servercommon "github.com/evanschultz/weekgrid/internal/adapters/server/common"
	"github.com/evanschultz/weekgrid/internal/adapters/server/mcpapi"
	"github.com/evanschultz/weekgrid/internal/adapters/storage/sqlite"
	"github.com/evanschultz/weekgrid/internal/app"
	"github.com/evanschultz/weekgrid/internal/config"
	"github.com/evanschultz/weekgrid/internal/platform"
	"github.com/evanschultz/weekgrid/internal/tui"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// version stores a package-level helper value.
var version = "dev"

// agendaTitle heads the rendered agenda and the MCP agenda tool output.
const agendaTitle = "Week schedule"

// program represents program data used by this package.
type program interface {
	Run() (tea.Model, error)
}

// programFactory stores a package-level helper value.
var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

// serveCommandRunner starts the HTTP+MCP serve flow.
var serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
	return serveradapter.Run(ctx, cfg, deps)
}

// mcpCommandRunner serves MCP tools over stdio.
var mcpCommandRunner = func(ctx context.Context, cfg mcpapi.Config, cards servercommon.CardService, in io.Reader, out io.Writer) error {
	return mcpapi.ServeStdio(ctx, cfg, cards, in, out)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	root := newRootCommand(os.Stdout, os.Stderr)
	if err := fang.Execute(ctx, root, fang.WithVersion(version)); err != nil {
		os.Exit(1)
	}
}

// run executes one command line against explicit output streams.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	dbPath     string
	appName    string
	devMode    bool
	stdout     io.Writer
	stderr     io.Writer
}

// newRootCommand builds the weekgrid command tree. The bare command opens the schedule.
func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	opts := &rootOptions{stdout: stdout, stderr: stderr}

	defaultDevMode := version == "dev"
	if envDev, ok := parseBoolEnv("WEEKGRID_DEV_MODE"); ok {
		defaultDevMode = envDev
	}
	defaultApp := platform.DefaultAppName
	if envApp := strings.TrimSpace(os.Getenv("WEEKGRID_APP_NAME")); envApp != "" {
		defaultApp = envApp
	}

	root := &cobra.Command{
		Use:           "weekgrid",
		Short:         "A weekly schedule of draggable cards in the terminal",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context(), opts)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetVersionTemplate("weekgrid {{.Version}}\n")

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config TOML")
	flags.StringVar(&opts.dbPath, "db", "", "path to sqlite database")
	flags.StringVar(&opts.appName, "app", defaultApp, "application name for config/data path resolution")
	flags.BoolVar(&opts.devMode, "dev", defaultDevMode, "use dev mode paths (<app>-dev)")

	root.AddCommand(
		newPathsCommand(opts),
		newInitCommand(opts),
		newExportCommand(opts),
		newImportCommand(opts),
		newAgendaCommand(opts),
		newMCPCommand(opts),
		newServeCommand(opts),
	)
	return root
}

// newPathsCommand prints the resolved on-disk locations.
func newPathsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config, data, and database paths",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			paths, configPath, dbPath, _, err := opts.resolvePaths()
			if err != nil {
				return err
			}
			out := opts.stdout
			_, _ = fmt.Fprintf(out, "app: %s\n", opts.appName)
			_, _ = fmt.Fprintf(out, "dev_mode: %t\n", opts.devMode)
			_, _ = fmt.Fprintf(out, "config: %s\n", configPath)
			_, _ = fmt.Fprintf(out, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(out, "db: %s\n", dbPath)
			_, _ = fmt.Fprintf(out, "log_dir: %s\n", paths.LogDir)
			return nil
		},
	}
}

// newInitCommand writes the default config file at the resolved config path.
func newInitCommand(opts *rootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			_, configPath, dbPath, _, err := opts.resolvePaths()
			if err != nil {
				return err
			}
			if err := config.Write(configPath, config.Default(dbPath), force); err != nil {
				return fmt.Errorf("write config %q: %w", configPath, err)
			}
			_, _ = fmt.Fprintf(opts.stdout, "wrote %s\n", configPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

// newExportCommand writes the persisted card mapping as JSON.
func newExportCommand(opts *rootOptions) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the card mapping as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), opts, "export", true, func(ctx context.Context, rt *runtimeEnv) error {
				return runExport(ctx, rt, outPath, opts.stdout)
			})
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "-", "output file path ('-' for stdout)")
	return cmd
}

// newImportCommand validates a JSON file and replaces the card mapping with it.
func newImportCommand(opts *rootOptions) *cobra.Command {
	var inPath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace the card mapping from a JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(inPath) == "" {
				return fmt.Errorf("--in is required")
			}
			return withRuntime(cmd.Context(), opts, "import", true, func(ctx context.Context, rt *runtimeEnv) error {
				return runImport(ctx, rt, inPath)
			})
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "input card mapping JSON file")
	return cmd
}

// newAgendaCommand prints the week as an agenda.
func newAgendaCommand(opts *rootOptions) *cobra.Command {
	var (
		width int
		plain bool
	)
	cmd := &cobra.Command{
		Use:   "agenda",
		Short: "Print the week as an agenda",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), opts, "agenda", true, func(_ context.Context, rt *runtimeEnv) error {
				cards := rt.store.Cards()
				out := app.AgendaMarkdown(agendaTitle, cards)
				if !plain {
					out = tui.RenderAgenda(agendaTitle, cards, width)
				}
				if !strings.HasSuffix(out, "\n") {
					out += "\n"
				}
				_, err := io.WriteString(opts.stdout, out)
				return err
			})
		},
	}
	cmd.Flags().IntVar(&width, "width", 80, "wrap width for rendered output")
	cmd.Flags().BoolVar(&plain, "plain", false, "print raw markdown")
	return cmd
}

// newMCPCommand serves card tools over stdio.
func newMCPCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve card tools over MCP stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), opts, "mcp", true, func(ctx context.Context, rt *runtimeEnv) error {
				adapter := servercommon.NewAppServiceAdapter(rt.store, agendaTitle)
				return mcpCommandRunner(ctx, mcpapi.Config{
					ServerName:    opts.appName,
					ServerVersion: version,
				}, adapter, cmd.InOrStdin(), opts.stdout)
			})
		},
	}
}

// newServeCommand serves the REST API and MCP streamable HTTP endpoints.
func newServeCommand(opts *rootOptions) *cobra.Command {
	var (
		httpBind    string
		apiEndpoint string
		mcpEndpoint string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the card API and MCP over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), opts, "serve", true, func(ctx context.Context, rt *runtimeEnv) error {
				adapter := servercommon.NewAppServiceAdapter(rt.store, agendaTitle)
				return serveCommandRunner(ctx, serveradapter.Config{
					HTTPBind:      httpBind,
					APIEndpoint:   apiEndpoint,
					MCPEndpoint:   mcpEndpoint,
					ServerName:    opts.appName,
					ServerVersion: version,
				}, serveradapter.Dependencies{Cards: adapter, Logger: rt.logger})
			})
		},
	}
	cmd.Flags().StringVar(&httpBind, "http", "127.0.0.1:8080", "HTTP listen address")
	cmd.Flags().StringVar(&apiEndpoint, "api-endpoint", "/api/v1", "HTTP API base endpoint")
	cmd.Flags().StringVar(&mcpEndpoint, "mcp-endpoint", "/mcp", "MCP streamable HTTP endpoint")
	return cmd
}

// runTUI opens the schedule and blocks until the user quits.
func runTUI(ctx context.Context, opts *rootOptions) error {
	// Keep TUI rendering clean: runtime logs stay in the dev-file sink while the grid is active.
	return withRuntime(ctx, opts, "tui", false, func(_ context.Context, rt *runtimeEnv) error {
		cfg := rt.cfg
		m := tui.NewModel(
			rt.store,
			tui.WithTitle(agendaTitle),
			tui.WithKeyConfig(tui.KeyConfig{
				Delete: cfg.Keys.Delete,
				Copy:   cfg.Keys.Copy,
				Yank:   cfg.Keys.Yank,
				Agenda: cfg.Keys.Agenda,
				Quit:   cfg.Keys.Quit,
				Help:   cfg.Keys.Help,
			}),
			tui.WithDragThreshold(cfg.Interaction.DragThreshold),
			tui.WithEditDelay(time.Duration(cfg.Interaction.EditDelayMS)*time.Millisecond),
			tui.WithLogger(rt.logger),
		)
		rt.logger.Info("starting tui program loop")
		if _, err := programFactory(m).Run(); err != nil {
			rt.logger.Error("tui program terminated with error", "err", err)
			return fmt.Errorf("run tui program: %w", err)
		}
		return nil
	})
}

// runtimeEnv bundles the resources one command flow needs.
type runtimeEnv struct {
	cfg    config.Config
	logger *runtimeLogger
	repo   *sqlite.Repository
	store  *app.Store
}

// resolvePaths applies flag, environment, and platform defaults in that order.
func (o *rootOptions) resolvePaths() (platform.Paths, string, string, bool, error) {
	paths, err := platform.Resolve(platform.Options{
		AppName: o.appName,
		DevMode: o.devMode,
	})
	if err != nil {
		return platform.Paths{}, "", "", false, err
	}
	configPath := strings.TrimSpace(o.configPath)
	if configPath == "" {
		if envPath := strings.TrimSpace(os.Getenv("WEEKGRID_CONFIG")); envPath != "" {
			configPath = envPath
		} else {
			configPath = paths.ConfigPath
		}
	}
	dbPath := strings.TrimSpace(o.dbPath)
	dbOverridden := dbPath != ""
	if !dbOverridden {
		if envPath := strings.TrimSpace(os.Getenv("WEEKGRID_DB_PATH")); envPath != "" {
			dbPath = envPath
			dbOverridden = true
		} else {
			dbPath = paths.DBPath
		}
	}
	return paths.WithOverrides(configPath, dbPath), configPath, dbPath, dbOverridden, nil
}

// withRuntime loads config, opens storage and the card store, runs fn, and releases everything.
func withRuntime(ctx context.Context, opts *rootOptions, command string, console bool, fn func(context.Context, *runtimeEnv) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	paths, configPath, dbPath, dbOverridden, err := opts.resolvePaths()
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath, config.Default(dbPath))
	if err != nil {
		return fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = dbPath
	}
	palette, err := cfg.Palette()
	if err != nil {
		return fmt.Errorf("load config %q: %w", configPath, err)
	}

	logger, err := newRuntimeLogger(opts.stderr, opts.appName, opts.devMode, cfg.Logging, time.Now)
	if err != nil {
		return fmt.Errorf("configure runtime logger: %w", err)
	}
	logger.SetConsoleEnabled(console)
	defer func() {
		if closeErr := logger.Close(); closeErr != nil && logger.shouldLogToSink(logger.consoleSink) {
			_, _ = fmt.Fprintf(opts.stderr, "warning: close runtime log sink: %v\n", closeErr)
		}
	}()

	logger.Info("startup configuration resolved", "app", opts.appName, "dev_mode", opts.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", configPath, "data_dir", paths.DataDir, "db_path", dbPath)
	logger.Info("configuration loaded", "config_path", configPath, "db_path", cfg.Database.Path, "log_level", cfg.Logging.Level)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	logger.Info("opening sqlite repository", "db_path", cfg.Database.Path)
	repo, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
		return fmt.Errorf("open sqlite repository: %w", err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			logger.Warn("sqlite close failed", "db_path", cfg.Database.Path, "err", closeErr)
		}
	}()

	store, err := app.OpenStore(ctx, repo, uuid.NewString, app.StoreConfig{
		BlobKey:     cfg.Storage.BlobKey,
		Palette:     palette,
		DefaultText: cfg.Cards.DefaultText,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("card store open failed", "key", cfg.Storage.BlobKey, "err", err)
		return fmt.Errorf("open card store: %w", err)
	}

	rt := &runtimeEnv{cfg: cfg, logger: logger, repo: repo, store: store}
	logger.Info("command flow start", "command", command)
	if err := fn(ctx, rt); err != nil {
		logger.Error("command flow failed", "command", command, "err", err)
		return fmt.Errorf("run %s command: %w", command, err)
	}
	logger.Info("command flow complete", "command", command)
	return nil
}

// runExport writes the card mapping to outPath, or stdout for "-".
func runExport(ctx context.Context, rt *runtimeEnv, outPath string, stdout io.Writer) error {
	info, err := rt.repo.Stat(ctx, rt.cfg.Storage.BlobKey)
	switch {
	case errors.Is(err, app.ErrNotFound):
		rt.logger.Info("no persisted cards, exporting empty mapping")
	case err != nil:
		return fmt.Errorf("stat persisted cards: %w", err)
	default:
		rt.logger.Debug("persisted cards found", "bytes", info.Size, "updated_at", info.UpdatedAt)
	}

	raw, err := rt.store.Snapshot().Encode()
	if err != nil {
		return err
	}
	var encoded bytes.Buffer
	if err := json.Indent(&encoded, raw, "", "  "); err != nil {
		return fmt.Errorf("indent cards json: %w", err)
	}
	encoded.WriteByte('\n')

	if outPath == "" || outPath == "-" {
		if _, err := stdout.Write(encoded.Bytes()); err != nil {
			return fmt.Errorf("write cards to stdout: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create export output dir: %w", err)
	}
	if err := os.WriteFile(outPath, encoded.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	return nil
}

// runImport validates a card mapping file and replaces the store contents with it.
func runImport(ctx context.Context, rt *runtimeEnv, inPath string) error {
	content, err := os.ReadFile(inPath)
	if err != nil {
		return fmt.Errorf("read import file: %w", err)
	}
	snap, err := app.DecodeSnapshot(content)
	if err != nil {
		return err
	}
	if err := rt.store.Replace(ctx, snap); err != nil {
		return fmt.Errorf("import cards: %w", err)
	}
	rt.logger.Info("cards imported", "path", inPath, "count", rt.store.Len())
	return nil
}

// parseBoolEnv parses input into a normalized form.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

// runtimeLogger fans log events to a styled console sink and an optional dev-file sink.
type runtimeLogger struct {
	sinks          []*charmLog.Logger
	consoleSink    *charmLog.Logger
	consoleEnabled bool
	closeFile      func() error
	devLog         string
}

// newRuntimeLogger configures runtime log sinks from CLI/config state.
func newRuntimeLogger(stderr io.Writer, appName string, devMode bool, cfg config.LoggingConfig, now func() time.Time) (*runtimeLogger, error) {
	level, err := charmLog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse logging level %q: %w", cfg.Level, err)
	}
	if now == nil {
		now = time.Now
	}
	if stderr == nil {
		stderr = io.Discard
	}

	consoleLogger := charmLog.NewWithOptions(stderr, charmLog.Options{
		Level:           level,
		Prefix:          appName,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       charmLog.TextFormatter,
	})
	logger := &runtimeLogger{
		sinks:          []*charmLog.Logger{consoleLogger},
		consoleSink:    consoleLogger,
		consoleEnabled: true,
	}
	if !devMode || !cfg.DevFile.Enabled {
		return logger, nil
	}

	devLogPath, err := devLogFilePath(cfg.DevFile.Dir, appName, now().UTC())
	if err != nil {
		return nil, fmt.Errorf("resolve dev log file path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(devLogPath), 0o755); err != nil {
		return nil, fmt.Errorf("create dev log dir: %w", err)
	}
	logFile, err := os.OpenFile(devLogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open dev log file: %w", err)
	}

	fileLogger := charmLog.NewWithOptions(logFile, charmLog.Options{
		Level:           level,
		Prefix:          appName,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       charmLog.LogfmtFormatter,
	})
	logger.sinks = append(logger.sinks, fileLogger)
	logger.closeFile = logFile.Close
	logger.devLog = devLogPath
	return logger, nil
}

// DevLogPath returns the active dev log file path.
func (l *runtimeLogger) DevLogPath() string {
	if l == nil {
		return ""
	}
	return l.devLog
}

// Close closes the optional dev-file sink.
func (l *runtimeLogger) Close() error {
	if l == nil || l.closeFile == nil {
		return nil
	}
	return l.closeFile()
}

// SetConsoleEnabled toggles whether the console sink receives runtime events.
func (l *runtimeLogger) SetConsoleEnabled(enabled bool) {
	if l == nil {
		return
	}
	l.consoleEnabled = enabled
}

// shouldLogToSink reports whether one sink should receive runtime output.
func (l *runtimeLogger) shouldLogToSink(sink *charmLog.Logger) bool {
	if l == nil || sink == nil {
		return false
	}
	return sink != l.consoleSink || l.consoleEnabled
}

// each forwards one event to every enabled sink.
func (l *runtimeLogger) each(fn func(*charmLog.Logger)) {
	if l == nil {
		return
	}
	for _, sink := range l.sinks {
		if l.shouldLogToSink(sink) {
			fn(sink)
		}
	}
}

// Debug logs a debug event to all configured sinks.
func (l *runtimeLogger) Debug(msg string, keyvals ...any) {
	l.each(func(s *charmLog.Logger) { s.Debug(msg, keyvals...) })
}

// Info logs an informational event to all configured sinks.
func (l *runtimeLogger) Info(msg string, keyvals ...any) {
	l.each(func(s *charmLog.Logger) { s.Info(msg, keyvals...) })
}

// Warn logs a warning event to all configured sinks.
func (l *runtimeLogger) Warn(msg string, keyvals ...any) {
	l.each(func(s *charmLog.Logger) { s.Warn(msg, keyvals...) })
}

// Error logs an error event to all configured sinks.
func (l *runtimeLogger) Error(msg string, keyvals ...any) {
	l.each(func(s *charmLog.Logger) { s.Error(msg, keyvals...) })
}

// devLogFilePath resolves a workspace-local dev log file path for the current run day.
func devLogFilePath(configDir, appName string, now time.Time) (string, error) {
	baseDir := strings.TrimSpace(configDir)
	if baseDir == "" {
		baseDir = ".weekgrid/log"
	}
	if !filepath.IsAbs(baseDir) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve working dir: %w", err)
		}
		baseDir = filepath.Join(workspaceRootFrom(cwd), baseDir)
	}
	fileName := fmt.Sprintf("%s-%s.log", sanitizeLogFileStem(appName), now.Format("20060102"))
	return filepath.Join(filepath.Clean(baseDir), fileName), nil
}

// workspaceRootFrom resolves the nearest ancestor workspace marker for stable local log placement.
func workspaceRootFrom(start string) string {
	start = filepath.Clean(strings.TrimSpace(start))
	if start == "" {
		return "."
	}
	dir := start
	for {
		if hasWorkspaceMarker(dir) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start
		}
		dir = parent
	}
}

// hasWorkspaceMarker reports whether a directory looks like a project workspace root.
func hasWorkspaceMarker(dir string) bool {
	for _, marker := range []string{"go.mod", ".git"} {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}

// sanitizeLogFileStem normalizes app names into safe file-name segments.
func sanitizeLogFileStem(appName string) string {
	replacer := strings.NewReplacer("/", "-", "\\", "-", ":", "-", " ", "-")
	stem := strings.Trim(replacer.Replace(strings.TrimSpace(appName)), "-")
	if stem == "" {
		return platform.DefaultAppName
	}
	return stem
}
