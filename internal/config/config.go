package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/evanschultz/weekgrid/internal/domain"
	toml "github.com/pelletier/go-toml/v2"
)

type Config struct {
	Database    DatabaseConfig    `toml:"database"`
	Logging     LoggingConfig     `toml:"logging"`
	Storage     StorageConfig     `toml:"storage"`
	Cards       CardsConfig       `toml:"cards"`
	Interaction InteractionConfig `toml:"interaction"`
	Keys        KeyConfig         `toml:"keys"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"` // debug | info | warn | error
	DevFile DevFileConfig `toml:"dev_file"`
}

type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type StorageConfig struct {
	BlobKey string `toml:"blob_key"`
}

type CardsConfig struct {
	DefaultText string   `toml:"default_text"`
	Palette     []string `toml:"palette"`
}

type InteractionConfig struct {
	DragThreshold float64 `toml:"drag_threshold"` // terminal cells
	EditDelayMS   int     `toml:"edit_delay_ms"`
}

type KeyConfig struct {
	Delete string `toml:"delete"`
	Copy   string `toml:"copy"`
	Yank   string `toml:"yank"`
	Agenda string `toml:"agenda"`
	Quit   string `toml:"quit"`
	Help   string `toml:"help"`
}

func defaultPalette() []string {
	out := make([]string, 0, len(domain.DefaultPalette))
	for _, c := range domain.DefaultPalette {
		out = append(out, string(c))
	}
	return out
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: false,
				Dir:     ".weekgrid/log",
			},
		},
		Storage: StorageConfig{
			BlobKey: "weekgrid.cards",
		},
		Cards: CardsConfig{
			DefaultText: "New card",
			Palette:     defaultPalette(),
		},
		Interaction: InteractionConfig{
			DragThreshold: 1,
			EditDelayMS:   50,
		},
		Keys: KeyConfig{
			Delete: "delete",
			Copy:   "ctrl+c",
			Yank:   "y",
			Agenda: "a",
			Quit:   "q",
			Help:   "?",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}

	switch strings.TrimSpace(strings.ToLower(c.Logging.Level)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}
	if c.Logging.DevFile.Enabled && strings.TrimSpace(c.Logging.DevFile.Dir) == "" {
		return errors.New("logging.dev_file.dir is required when enabled")
	}

	if strings.TrimSpace(c.Storage.BlobKey) == "" {
		return errors.New("storage.blob_key is required")
	}

	if _, err := c.Palette(); err != nil {
		return fmt.Errorf("cards.palette must list %d distinct #rrggbb colors: %w", domain.PaletteSize, err)
	}

	if c.Interaction.DragThreshold <= 0 {
		return errors.New("interaction.drag_threshold must be > 0")
	}
	if c.Interaction.EditDelayMS < 0 {
		return errors.New("interaction.edit_delay_ms must be >= 0")
	}

	seen := map[string]string{"esc": "close menu", "enter": "finish edit"}
	for _, b := range []struct{ name, keys string }{
		{"delete", c.Keys.Delete},
		{"copy", c.Keys.Copy},
		{"yank", c.Keys.Yank},
		{"agenda", c.Keys.Agenda},
		{"quit", c.Keys.Quit},
		{"help", c.Keys.Help},
	} {
		for _, k := range SplitKeys(b.keys) {
			k = canonicalKey(k)
			if other, ok := seen[k]; ok && other != "keys."+b.name {
				return fmt.Errorf("keys.%s reuses %q already bound to %s", b.name, k, other)
			}
			seen[k] = "keys." + b.name
		}
	}

	return nil
}

// Palette returns the validated card palette.
func (c Config) Palette() (domain.Palette, error) {
	return domain.NewPalette(c.Cards.Palette)
}

// SplitKeys parses a comma-separated key binding into trimmed key names.
func SplitKeys(raw string) []string {
	out := make([]string, 0, 2)
	for _, part := range strings.Split(raw, ",") {
		if k := strings.TrimSpace(part); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// canonicalKey folds a configured key to the form the key matcher sees:
// "Y" and "shift+y" are one key, as are "Esc" and "esc".
func canonicalKey(k string) string {
	if strings.EqualFold(k, "space") || k == " " {
		return "space"
	}
	if r, size := utf8.DecodeRuneInString(k); size == len(k) {
		if unicode.IsUpper(r) {
			return "shift+" + string(unicode.ToLower(r))
		}
		return k
	}
	return strings.ToLower(k)
}

// Write encodes cfg as TOML at path. An existing file is kept unless overwrite is set.
func Write(path string, cfg Config, overwrite bool) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("config path is required")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config %q already exists", path)
		}
	}
	encoded, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode toml: %w", err)
	}
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
