// Package config loads the runtime configuration and the coordinate
// profile, and builds the collaborators they describe.
package config

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/mj1618/vbs-autopilot/internal/model"
)

const (
	// EnvPrefix marks environment variables that override the file.
	EnvPrefix = "VBS_"
	// EnvFileVar names an alternative .env file.
	EnvFileVar = EnvPrefix + "ENV_FILE"
	// DefaultFile is looked up in the working directory when no path is given.
	DefaultFile = "vbs-autopilot.yaml"

	maxConfigFileSize = 1024 * 1024
)

// Load reads configuration with this precedence, highest first:
//
//  1. VBS_-prefixed environment variables (VBS_CREDENTIALS_COMPANY_CODE
//     sets credentials.company_code)
//  2. the YAML file at path, or ./vbs-autopilot.yaml when path is empty
//  3. defaults
//
// A .env file (VBS_ENV_FILE, or .env in the working directory) is loaded
// into the environment first without overriding variables already set.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	k := koanf.New(".")
	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, configError("parse %s: %v", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, configError("load environment: %v", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, configError("unmarshal: %v", err)
	}
	applyDefaults(&cfg)
	if path != "" {
		cfg.resolveRelative(filepath.Dir(path))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps VBS_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, found := strings.Cut(lower, "_")
	if !found {
		return lower
	}
	return section + "." + field
}

func loadDotEnv() error {
	path := os.Getenv(EnvFileVar)
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if explicit {
			return configError("env file %s: %v", path, err)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return configError("load env file %s: %v", path, err)
	}
	return nil
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, configError("open config file: %v", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, configError("stat config file: %v", err)
	}
	if info.IsDir() {
		return nil, configError("config path %s is a directory", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, configError("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, configError("read config file: %v", err)
	}
	return content, nil
}

// resolveRelative anchors relative paths in the file to its directory.
func (c *Config) resolveRelative(dir string) {
	for _, p := range []*string{
		&c.Profile.Path,
		&c.Paths.InputRoot,
		&c.Paths.OutputRoot,
		&c.Diagnostics.Dir,
		&c.Notify.OutboxDir,
		&c.Metrics.Textfile,
		&c.Logging.File,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}

func configError(format string, args ...any) error {
	return model.NewError(model.KindConfigurationError, "config", format, args...)
}

// IsConfigError reports whether err came from configuration.
func IsConfigError(err error) bool {
	return errors.Is(err, model.ErrConfiguration)
}
