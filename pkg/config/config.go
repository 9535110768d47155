package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	xdgAppName = "taskfile"
	// FileName is the config file inside Dir.
	FileName  = "config.json"
	envPrefix = "TASKFILE"

	DefaultFile     = "tasks.csv"
	DefaultEncoding = "plain"
	DefaultCalendar = "Tasks"
)

type Config struct {
	File     string `json:"file" mapstructure:"file"`
	Encoding string `json:"encoding" mapstructure:"encoding"`
	Calendar string `json:"calendar" mapstructure:"calendar"`
}

func Default() *Config {
	return &Config{File: DefaultFile, Encoding: DefaultEncoding, Calendar: DefaultCalendar}
}

// Dir is where the config file and calendar state live.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", xdgAppName), nil
}

func GetConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

func Load() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the config at path. A missing file yields the defaults;
// TASKFILE_* environment variables override both.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("file", DefaultFile)
	v.SetDefault("encoding", DefaultEncoding)
	v.SetDefault("calendar", DefaultCalendar)
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to decode config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.File == "" {
		cfg.File = DefaultFile
	}
	if cfg.Calendar == "" {
		cfg.Calendar = DefaultCalendar
	}
	return cfg, nil
}

func Save(cfg *Config) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(path, cfg)
}

func SaveTo(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file for writing: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	return encoder.Encode(cfg)
}
