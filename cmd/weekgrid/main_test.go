package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	serveradapter "github.com/evanschultz/weekgrid/internal/adapters/server"
	servercommon "github.com/evanschultz/weekgrid/internal/adapters/server/common"
	"github.com/evanschultz/weekgrid/internal/adapters/server/mcpapi"
	"github.com/evanschultz/weekgrid/internal/app"
	"github.com/evanschultz/weekgrid/internal/config"
	"github.com/evanschultz/weekgrid/internal/tui"
)

// TestMain sets deterministic environment defaults for CLI tests.
func TestMain(m *testing.M) {
	_ = os.Setenv("WEEKGRID_DEV_MODE", "false")
	os.Exit(m.Run())
}

// fakeProgram represents fake program data used by this package.
type fakeProgram struct {
	model  tea.Model
	runErr error
}

// Run runs the requested command flow.
func (f fakeProgram) Run() (tea.Model, error) {
	return f.model, f.runErr
}

const sampleCards = `{
  "cards": {
    "a1": {"id": "a1", "col": 1, "topRowFrac": 2, "heightFrac": 1.5, "text": "Standup", "color": "#43a047"},
    "b2": {"id": "b2", "col": 3, "topRowFrac": 0, "heightFrac": 1, "text": "Gym", "color": "#NOT-IN-PALETTE"}
  }
}
`

// testPaths returns isolated db and config paths.
func testPaths(t *testing.T) (string, string) {
	t.Helper()
	tmp := t.TempDir()
	return filepath.Join(tmp, "weekgrid.db"), filepath.Join(tmp, "config.toml")
}

// importSample seeds the db with sampleCards.
func importSample(t *testing.T, dbPath, cfgPath string) {
	t.Helper()
	inPath := filepath.Join(t.TempDir(), "cards.json")
	if err := os.WriteFile(inPath, []byte(sampleCards), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := run(context.Background(), []string{"--db", dbPath, "--config", cfgPath, "import", "--in", inPath}, io.Discard, io.Discard); err != nil {
		t.Fatalf("run(import) error = %v", err)
	}
}

// TestRunVersion verifies behavior for the covered scenario.
func TestRunVersion(t *testing.T) {
	var out strings.Builder
	if err := run(context.Background(), []string{"--version"}, &out, io.Discard); err != nil {
		t.Fatalf("run(version) error = %v", err)
	}
	if strings.TrimSpace(out.String()) != "weekgrid dev" {
		t.Fatalf("expected version output, got %q", out.String())
	}
}

// TestRunStartsProgram verifies the bare command builds the schedule model and runs it.
func TestRunStartsProgram(t *testing.T) {
	origFactory := programFactory
	t.Cleanup(func() { programFactory = origFactory })

	var started tea.Model
	programFactory = func(m tea.Model) program {
		started = m
		return fakeProgram{model: m}
	}

	dbPath, cfgPath := testPaths(t)
	if err := run(context.Background(), []string{"--db", dbPath, "--config", cfgPath}, io.Discard, io.Discard); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if _, ok := started.(tui.Model); !ok {
		t.Fatalf("expected tui.Model, got %T", started)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected db created, stat error %v", err)
	}
}

// TestRunInvalidFlag verifies behavior for the covered scenario.
func TestRunInvalidFlag(t *testing.T) {
	if err := run(context.Background(), []string{"--unknown-flag"}, io.Discard, io.Discard); err == nil {
		t.Fatal("expected flag parse error")
	}
}

// TestRunUnknownCommand verifies behavior for the covered scenario.
func TestRunUnknownCommand(t *testing.T) {
	err := run(context.Background(), []string{"unknown-command"}, io.Discard, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

// TestRunImportExportRoundTrip verifies import validation and export output.
func TestRunImportExportRoundTrip(t *testing.T) {
	dbPath, cfgPath := testPaths(t)
	importSample(t, dbPath, cfgPath)

	outPath := filepath.Join(t.TempDir(), "nested", "export.json")
	if err := run(context.Background(), []string{"--db", dbPath, "--config", cfgPath, "export", "--out", outPath}, io.Discard, io.Discard); err != nil {
		t.Fatalf("run(export) error = %v", err)
	}
	content, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	snap, err := app.DecodeSnapshot(content)
	if err != nil {
		t.Fatalf("DecodeSnapshot() error = %v", err)
	}
	if len(snap.Cards) != 2 {
		t.Fatalf("expected 2 exported cards, got %d", len(snap.Cards))
	}
	if got := snap.Cards["a1"]; got.Text != "Standup" || got.TopRowFrac != 2 || got.HeightFrac != 1.5 {
		t.Fatalf("unexpected exported card %#v", got)
	}
	palette, err := config.Default(dbPath).Palette()
	if err != nil {
		t.Fatalf("Palette() error = %v", err)
	}
	if got := snap.Cards["b2"].Color; got != palette.Default() {
		t.Fatalf("expected off-palette color reset to default, got %q", got)
	}

	var stdout bytes.Buffer
	if err := run(context.Background(), []string{"--db", dbPath, "--config", cfgPath, "export"}, &stdout, io.Discard); err != nil {
		t.Fatalf("run(export stdout) error = %v", err)
	}
	if !strings.Contains(stdout.String(), `"a1"`) || !strings.HasSuffix(stdout.String(), "\n") {
		t.Fatalf("unexpected stdout export %q", stdout.String())
	}
}

// TestRunExportEmpty verifies an untouched db exports an empty mapping.
func TestRunExportEmpty(t *testing.T) {
	dbPath, cfgPath := testPaths(t)
	var stdout bytes.Buffer
	if err := run(context.Background(), []string{"--db", dbPath, "--config", cfgPath, "export", "--out", "-"}, &stdout, io.Discard); err != nil {
		t.Fatalf("run(export) error = %v", err)
	}
	snap, err := app.DecodeSnapshot(stdout.Bytes())
	if err != nil {
		t.Fatalf("DecodeSnapshot() error = %v", err)
	}
	if len(snap.Cards) != 0 {
		t.Fatalf("expected empty export, got %#v", snap.Cards)
	}
}

// TestRunImportErrors verifies import input validation.
func TestRunImportErrors(t *testing.T) {
	dbPath, cfgPath := testPaths(t)
	if err := run(context.Background(), []string{"--db", dbPath, "--config", cfgPath, "import"}, io.Discard, io.Discard); err == nil || !strings.Contains(err.Error(), "--in is required") {
		t.Fatalf("expected missing --in error, got %v", err)
	}

	missing := filepath.Join(t.TempDir(), "missing.json")
	if err := run(context.Background(), []string{"--db", dbPath, "--config", cfgPath, "import", "--in", missing}, io.Discard, io.Discard); err == nil {
		t.Fatal("expected read error for missing import file")
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	content := `{"cards":{"x":{"id":"x","col":9,"topRowFrac":0,"heightFrac":1,"text":"","color":"#43a047"}}}`
	if err := os.WriteFile(bad, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := run(context.Background(), []string{"--db", dbPath, "--config", cfgPath, "import", "--in", bad}, io.Discard, io.Discard); err == nil {
		t.Fatal("expected validation error for out-of-range column")
	}
}

// TestRunAgenda verifies plain and rendered agenda output.
func TestRunAgenda(t *testing.T) {
	dbPath, cfgPath := testPaths(t)
	importSample(t, dbPath, cfgPath)

	var plain bytes.Buffer
	if err := run(context.Background(), []string{"--db", dbPath, "--config", cfgPath, "agenda", "--plain"}, &plain, io.Discard); err != nil {
		t.Fatalf("run(agenda --plain) error = %v", err)
	}
	out := plain.String()
	for _, want := range []string{agendaTitle, "Monday", "09:00", "10:30", "Standup", "Wednesday", "Gym"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in plain agenda, got %q", want, out)
		}
	}
	if strings.Index(out, "Monday") > strings.Index(out, "Wednesday") {
		t.Fatalf("expected days in order, got %q", out)
	}

	var rendered bytes.Buffer
	if err := run(context.Background(), []string{"--db", dbPath, "--config", cfgPath, "agenda", "--width", "60"}, &rendered, io.Discard); err != nil {
		t.Fatalf("run(agenda) error = %v", err)
	}
	if !strings.Contains(rendered.String(), "Standup") {
		t.Fatalf("expected card text in rendered agenda, got %q", rendered.String())
	}
}

// TestRunConfigAndDBEnvOverrides verifies behavior for the covered scenario.
func TestRunConfigAndDBEnvOverrides(t *testing.T) {
	tmp := t.TempDir()
	dbPath := filepath.Join(tmp, "env.db")
	cfgPath := filepath.Join(tmp, "env.toml")
	if err := os.WriteFile(cfgPath, []byte("[database]\npath = \"/tmp/ignore-me.db\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	t.Setenv("WEEKGRID_CONFIG", cfgPath)
	t.Setenv("WEEKGRID_DB_PATH", dbPath)

	if err := run(context.Background(), []string{"export", "--out", filepath.Join(tmp, "out.json")}, io.Discard, io.Discard); err != nil {
		t.Fatalf("run(export with env paths) error = %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected db created at env path, stat error %v", err)
	}
}

// TestRunPathsCommand verifies behavior for the covered scenario.
func TestRunPathsCommand(t *testing.T) {
	var out strings.Builder
	if err := run(context.Background(), []string{"--app", "weekgridx", "--dev", "--db", "/tmp/custom.db", "paths"}, &out, io.Discard); err != nil {
		t.Fatalf("run(paths) error = %v", err)
	}
	output := out.String()
	for _, want := range []string{"app: weekgridx", "dev_mode: true", "db: /tmp/custom.db", "weekgridx-dev"} {
		if !strings.Contains(output, want) {
			t.Fatalf("expected %q in paths output, got %q", want, output)
		}
	}
}

// TestRunInitWritesLoadableConfig verifies init output is accepted by later runs.
func TestRunInitWritesLoadableConfig(t *testing.T) {
	dbPath, cfgPath := testPaths(t)
	var out strings.Builder
	if err := run(context.Background(), []string{"--db", dbPath, "--config", cfgPath, "init"}, &out, io.Discard); err != nil {
		t.Fatalf("run(init) error = %v", err)
	}
	if !strings.Contains(out.String(), cfgPath) {
		t.Fatalf("expected written path in output, got %q", out.String())
	}
	loaded, err := config.Load(cfgPath, config.Default("unused.db"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Database.Path != dbPath {
		t.Fatalf("expected db path %q in written config, got %q", dbPath, loaded.Database.Path)
	}
	if err := run(context.Background(), []string{"--db", dbPath, "--config", cfgPath, "init"}, io.Discard, io.Discard); err == nil {
		t.Fatal("expected init to refuse overwriting without --force")
	}
	if err := run(context.Background(), []string{"--db", dbPath, "--config", cfgPath, "init", "--force"}, io.Discard, io.Discard); err != nil {
		t.Fatalf("run(init --force) error = %v", err)
	}
}

// TestRunServeWiresCardService verifies serve flags and dependencies reach the server.
func TestRunServeWiresCardService(t *testing.T) {
	origRunner := serveCommandRunner
	t.Cleanup(func() { serveCommandRunner = origRunner })

	var (
		gotCfg  serveradapter.Config
		gotDeps serveradapter.Dependencies
	)
	serveCommandRunner = func(_ context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
		gotCfg = cfg
		gotDeps = deps
		return nil
	}

	dbPath, cfgPath := testPaths(t)
	importSample(t, dbPath, cfgPath)
	args := []string{"--db", dbPath, "--config", cfgPath, "serve", "--http", "127.0.0.1:9999", "--api-endpoint", "/v2"}
	if err := run(context.Background(), args, io.Discard, io.Discard); err != nil {
		t.Fatalf("run(serve) error = %v", err)
	}
	if gotCfg.HTTPBind != "127.0.0.1:9999" || gotCfg.APIEndpoint != "/v2" || gotCfg.MCPEndpoint != "/mcp" {
		t.Fatalf("unexpected serve config %#v", gotCfg)
	}
	if gotCfg.ServerName != "weekgrid" || gotCfg.ServerVersion != version {
		t.Fatalf("unexpected server identity %#v", gotCfg)
	}
	if gotDeps.Cards == nil || gotDeps.Logger == nil {
		t.Fatalf("expected cards and logger dependencies, got %#v", gotDeps)
	}
	cards, err := gotDeps.Cards.ListCards(context.Background())
	if err != nil {
		t.Fatalf("ListCards() error = %v", err)
	}
	if len(cards) != 2 {
		t.Fatalf("expected 2 served cards, got %d", len(cards))
	}
}

// TestRunMCPUsesStdio verifies the mcp command serves over the command streams.
func TestRunMCPUsesStdio(t *testing.T) {
	origRunner := mcpCommandRunner
	t.Cleanup(func() { mcpCommandRunner = origRunner })

	var stdout bytes.Buffer
	called := false
	mcpCommandRunner = func(_ context.Context, cfg mcpapi.Config, cards servercommon.CardService, _ io.Reader, out io.Writer) error {
		called = true
		if cfg.ServerName != "weekgrid" {
			t.Fatalf("unexpected server name %q", cfg.ServerName)
		}
		if cards == nil {
			t.Fatal("expected card service")
		}
		_, err := io.WriteString(out, "ok")
		return err
	}

	dbPath, cfgPath := testPaths(t)
	if err := run(context.Background(), []string{"--db", dbPath, "--config", cfgPath, "mcp"}, &stdout, io.Discard); err != nil {
		t.Fatalf("run(mcp) error = %v", err)
	}
	if !called || stdout.String() != "ok" {
		t.Fatalf("expected mcp runner to write to stdout, called=%t out=%q", called, stdout.String())
	}
}

// TestRunTUIModeWritesRuntimeLogsToFileOnly verifies TUI runtime logs stay out of stderr and persist to the dev log file.
func TestRunTUIModeWritesRuntimeLogsToFileOnly(t *testing.T) {
	origFactory := programFactory
	t.Cleanup(func() { programFactory = origFactory })
	programFactory = func(m tea.Model) program { return fakeProgram{model: m} }

	workspace := t.TempDir()
	t.Chdir(workspace)

	dbPath := filepath.Join(workspace, "weekgrid.db")
	cfgPath := filepath.Join(workspace, "config.toml")
	if err := os.WriteFile(cfgPath, []byte("[logging.dev_file]\nenabled = true\ndir = \".weekgrid/log\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	var stderr bytes.Buffer
	if err := run(context.Background(), []string{"--dev", "--db", dbPath, "--config", cfgPath}, io.Discard, &stderr); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if got := strings.TrimSpace(stderr.String()); got != "" {
		t.Fatalf("expected no runtime stderr output in TUI mode, got %q", got)
	}

	logDir := filepath.Join(workspace, ".weekgrid", "log")
	entries, err := os.ReadDir(logDir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	var logPath string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".log") {
			logPath = filepath.Join(logDir, entry.Name())
			break
		}
	}
	if logPath == "" {
		t.Fatalf("expected a .log file in %s", logDir)
	}
	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(content), "starting tui program loop") {
		t.Fatalf("expected runtime log file to include TUI lifecycle entries, got %q", string(content))
	}
}

// TestRunRejectsInvalidConfig verifies config validation errors surface from run.
func TestRunRejectsInvalidConfig(t *testing.T) {
	cases := map[string]struct {
		content string
		want    string
	}{
		"logging level": {content: "[logging]\nlevel = \"verbose\"\n", want: "invalid logging.level"},
		"palette size":  {content: "[cards]\npalette = [\"#000000\"]\n", want: "cards.palette"},
		"threshold":     {content: "[interaction]\ndrag_threshold = -1.0\n", want: "drag_threshold"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			dbPath, cfgPath := testPaths(t)
			if err := os.WriteFile(cfgPath, []byte(tc.content), 0o644); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}
			err := run(context.Background(), []string{"--db", dbPath, "--config", cfgPath, "export"}, io.Discard, io.Discard)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q error, got %v", tc.want, err)
			}
		})
	}
}

// TestParseBoolEnv verifies behavior for the covered scenario.
func TestParseBoolEnv(t *testing.T) {
	t.Setenv("WEEKGRID_BOOL_TEST", "true")
	if v, ok := parseBoolEnv("WEEKGRID_BOOL_TEST"); !ok || !v {
		t.Fatalf("expected true, got %t %t", v, ok)
	}
	t.Setenv("WEEKGRID_BOOL_TEST", "nope")
	if _, ok := parseBoolEnv("WEEKGRID_BOOL_TEST"); ok {
		t.Fatal("expected invalid bool to be ignored")
	}
	if _, ok := parseBoolEnv("WEEKGRID_BOOL_UNSET"); ok {
		t.Fatal("expected unset env to be ignored")
	}
}

// TestWorkspaceRootFromUsesNearestMarker verifies workspace-root resolution behavior.
func TestWorkspaceRootFromUsesNearestMarker(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/test\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	nested := filepath.Join(root, "cmd", "weekgrid")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if got := workspaceRootFrom(nested); filepath.Clean(got) != filepath.Clean(root) {
		t.Fatalf("expected workspace root %q, got %q", root, got)
	}
}

// TestDevLogFilePath verifies log file naming and sanitization.
func TestDevLogFilePath(t *testing.T) {
	dir := t.TempDir()
	got, err := devLogFilePath(dir, "week grid/dev", time.Date(2026, 2, 22, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("devLogFilePath() error = %v", err)
	}
	want := filepath.Join(dir, "week-grid-dev-20260222.log")
	if got != want {
		t.Fatalf("devLogFilePath() = %q, want %q", got, want)
	}
	if sanitizeLogFileStem(" / ") != "weekgrid" {
		t.Fatalf("expected blank stem fallback, got %q", sanitizeLogFileStem(" / "))
	}
}

// TestRuntimeLoggerCanMuteConsoleSink verifies console muting.
func TestRuntimeLoggerCanMuteConsoleSink(t *testing.T) {
	var console bytes.Buffer
	cfg := config.Default("/tmp/weekgrid.db").Logging

	logger, err := newRuntimeLogger(&console, "weekgrid", false, cfg, func() time.Time {
		return time.Date(2026, 2, 23, 12, 0, 0, 0, time.UTC)
	})
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}

	logger.Info("before")
	logger.SetConsoleEnabled(false)
	logger.Warn("during")
	logger.SetConsoleEnabled(true)
	logger.Info("after")

	out := console.String()
	if !strings.Contains(out, "before") || !strings.Contains(out, "after") {
		t.Fatalf("expected enabled console output, got %q", out)
	}
	if strings.Contains(out, "during") {
		t.Fatalf("expected muted console log to omit 'during', got %q", out)
	}
}
