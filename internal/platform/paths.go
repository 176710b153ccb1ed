package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// baseDirVars override the per-user base directories on linux and windows.
var baseDirVars = []string{"XDG_CONFIG_HOME", "XDG_DATA_HOME", "APPDATA", "LOCALAPPDATA"}

// DefaultAppName names the config and data directories.
const DefaultAppName = "weekgrid"

// Paths holds the resolved on-disk locations for one app instance.
type Paths struct {
	ConfigPath string
	DataDir    string
	DBPath     string
	LogDir     string
}

// Options selects the directory name. DevMode keeps a "-dev" copy apart from real data.
type Options struct {
	AppName string
	DevMode bool
}

// Resolve locates the config file, schedule database, and log dir for this OS user.
func Resolve(opts Options) (Paths, error) {
	appName := strings.TrimSpace(opts.AppName)
	if appName == "" {
		appName = DefaultAppName
	}
	if opts.DevMode {
		appName += "-dev"
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("user config dir: %w", err)
	}
	dataDir := configDir
	if runtime.GOOS == "linux" {
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return Paths{}, fmt.Errorf("user home dir: %w", homeErr)
		}
		dataDir = filepath.Join(home, ".local", "share")
	}

	env := make(map[string]string, len(baseDirVars))
	for _, k := range baseDirVars {
		env[k] = os.Getenv(k)
	}
	return PathsFor(runtime.GOOS, env, configDir, dataDir, appName)
}

// PathsFor lays out config.toml, <app>.db, and log/ under the base dirs for goos.
func PathsFor(goos string, env map[string]string, userConfigDir, userDataDir, appName string) (Paths, error) {
	if userConfigDir == "" || userDataDir == "" {
		return Paths{}, errors.New("empty base dirs")
	}
	appName = strings.TrimSpace(appName)
	if appName == "" {
		return Paths{}, errors.New("empty app name")
	}

	configBase, dataBase := userConfigDir, userDataDir

	switch goos {
	case "linux":
		if v := env["XDG_CONFIG_HOME"]; v != "" {
			configBase = v
		}
		if v := env["XDG_DATA_HOME"]; v != "" {
			dataBase = v
		}
	case "windows":
		if v := env["APPDATA"]; v != "" {
			configBase = v
		}
		if v := env["LOCALAPPDATA"]; v != "" {
			dataBase = v
		}
	}

	data := filepath.Join(dataBase, appName)
	return Paths{
		ConfigPath: filepath.Join(configBase, appName, "config.toml"),
		DataDir:    data,
		DBPath:     filepath.Join(data, appName+".db"),
		LogDir:     filepath.Join(data, "log"),
	}, nil
}

// WithOverrides swaps in --config/--db (or their env vars) when set.
func (p Paths) WithOverrides(configPath, dbPath string) Paths {
	if v := strings.TrimSpace(configPath); v != "" {
		p.ConfigPath = v
	}
	if v := strings.TrimSpace(dbPath); v != "" {
		p.DBPath = v
	}
	return p
}
