package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix = "FUNNEL_"

	// EnvConfigFile names the YAML file to load.
	EnvConfigFile = envPrefix + "CONFIG"
	// EnvDotenvFile names the .env file to load.
	EnvDotenvFile = envPrefix + "DOTENV"
)

// listKeys are comma separated when they come from flat sources.
var listKeys = map[string]bool{"pixel_endpoints": true}

// Load builds a Config by layering defaults, optional files, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. .env file if FUNNEL_DOTENV is set and the file exists
//  3. YAML file if FUNNEL_CONFIG is set
//  4. env (prefix FUNNEL_)
func Load() (*Config, error) {
	base := New()
	k := koanf.New(".")

	if path := os.Getenv(EnvDotenvFile); path != "" {
		values, err := godotenv.Read(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("%w: dotenv %s: %w", ErrLoadConfig, path, err)
		default:
			if err := k.Load(dotenvProvider(values), nil); err != nil {
				return nil, fmt.Errorf("%w: dotenv %s: %w", ErrLoadConfig, path, err)
			}
		}
	}

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// FUNNEL_QUEUE_SIZE -> queue_size. Underscores are kept to match the
	// koanf tags on the struct.
	envProvider := env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, any) {
		name := envKey(key)
		if name == "config" || name == "dotenv" {
			return "", nil
		}
		return name, flatValue(name, value)
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if k.Exists("quiz") {
		cfg.Quiz = nil
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(key string) string {
	return strings.TrimPrefix(strings.ToLower(key), strings.ToLower(envPrefix))
}

func flatValue(name, value string) any {
	if !listKeys[name] {
		return value
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// dotenvProvider feeds FUNNEL_ entries of a parsed .env file to koanf.
type dotenvProvider map[string]string

func (d dotenvProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("dotenv provider does not support ReadBytes")
}

func (d dotenvProvider) Read() (map[string]any, error) {
	out := make(map[string]any, len(d))
	for key, value := range d {
		if !strings.HasPrefix(strings.ToUpper(key), envPrefix) {
			continue
		}
		name := envKey(key)
		if name == "config" || name == "dotenv" {
			continue
		}
		out[name] = flatValue(name, value)
	}
	return out, nil
}
