package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/kkyr/fig"
)

const (
	EnvPrefix = "AVSYNC"
	FileName  = "config.yaml"
)

// Dirs returns the directories searched for the configuration file.
// A custom path replaces the defaults.
func Dirs(path string) []string {
	if path != "" {
		return []string{path}
	}
	dirs := []string{".", "configs", "../../configs"}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".avsync"))
	}
	return dirs
}

// LoadConfig loads a configuration file into the given struct.
// The path param specifies a custom directory of the configuration file.
// Reads and puts environment variables with the prefix AVSYNC_.
// Params from the config should be in uppercase separated with _.
// Without a file only the defaults and the environment are used.
func LoadConfig(config any, path string) error {
	err := fig.Load(config, fig.File(FileName), fig.Dirs(Dirs(path)...), fig.UseEnv(EnvPrefix))
	if errors.Is(err, fig.ErrFileNotFound) {
		return LoadConfigEnv(config)
	}
	return err
}

func LoadConfigEnv(config any) error {
	return fig.Load(config, fig.IgnoreFile(), fig.UseEnv(EnvPrefix))
}

// Locate returns the configuration file LoadConfig would read.
func Locate(path string) (string, bool) {
	for _, dir := range Dirs(path) {
		f := filepath.Join(dir, FileName)
		if st, err := os.Stat(f); err == nil && !st.IsDir() {
			return f, true
		}
	}
	return "", false
}
