// Package config loads process configuration from defaults, an optional
// YAML file and DLIB_ environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "DLIB_"

const (
	SourceSQLite = "sqlite"
	SourceHTTP   = "http"
)

type Config struct {
	Source   string         `koanf:"source" validate:"oneof=sqlite http"`
	Store    StoreConfig    `koanf:"store"`
	HTTP     HTTPConfig     `koanf:"http"`
	Cache    CacheConfig    `koanf:"cache"`
	Reader   ReaderConfig   `koanf:"reader"`
	Log      LogConfig      `koanf:"log"`
	Settings SettingsConfig `koanf:"settings"`
}

type StoreConfig struct {
	Path               string `koanf:"path"`
	DefaultTranslation string `koanf:"default_translation"`
}

type HTTPConfig struct {
	BaseURL string        `koanf:"base_url" validate:"omitempty,url"`
	Timeout time.Duration `koanf:"timeout"  validate:"gt=0"`
}

type CacheConfig struct {
	Size int `koanf:"size" validate:"min=0"`
}

type ReaderConfig struct {
	Translation string `koanf:"translation"`
	StartRef    string `koanf:"start_ref"`
	// Collections whose books read straight into the next book.
	CrossBook      []string `koanf:"cross_book"`
	SentinelMargin int      `koanf:"sentinel_margin" validate:"min=0"`
}

type LogConfig struct {
	Level  string `koanf:"level"  validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=auto text json"`
	// File receives logs while the reader owns the terminal.
	File string `koanf:"file"`
}

type SettingsConfig struct {
	// Path overrides the settings file location.
	Path string `koanf:"path"`
}

func Default() *Config {
	return &Config{
		Source: SourceSQLite,
		Store: StoreConfig{
			Path:               "library.db",
			DefaultTranslation: "en",
		},
		HTTP: HTTPConfig{
			Timeout: 10 * time.Second,
		},
		Cache: CacheConfig{Size: 256},
		Reader: ReaderConfig{
			StartRef:       "Genesis.1",
			CrossBook:      []string{"tanakh"},
			SentinelMargin: 50,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load builds a Config. An empty path or a missing file means no file layer.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if path != "" {
		data, err := readYAML(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawMap(data), nil); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return transformEnvKey(key), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// transformEnvKey maps DLIB_READER_START_REF to reader.start_ref: the first
// segment is the section, the rest is the field name.
func transformEnvKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '_' })
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	return parts[0] + "." + strings.Join(parts[1:], "_")
}

func readYAML(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return filterNil(m), nil
}

// filterNil drops empty YAML keys so they do not blank out defaults.
func filterNil(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if v == nil {
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			if f := filterNil(nested); len(f) > 0 {
				out[k] = f
			}
			continue
		}
		out[k] = v
	}
	return out
}

type rawMap map[string]any

func (r rawMap) Read() (map[string]any, error) { return r, nil }

func (r rawMap) ReadBytes() ([]byte, error) {
	return nil, errors.New("ReadBytes not implemented")
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	switch c.Source {
	case SourceSQLite:
		if c.Store.Path == "" {
			return errors.New("configuration validation failed: store.path is required for the sqlite source")
		}
	case SourceHTTP:
		if c.HTTP.BaseURL == "" {
			return errors.New("configuration validation failed: http.base_url is required for the http source")
		}
	}
	return nil
}
