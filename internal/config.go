package internal

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tuannm99/novaquery/internal/record"
)

type NovaQueryConfig struct {
	AppName string `mapstructure:"app_name"`

	Server struct {
		Addr        string `mapstructure:"addr"`
		MetricsAddr string `mapstructure:"metrics_addr"`
		Debug       bool   `mapstructure:"debug"`
	} `mapstructure:"server"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`

	Schema struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"schema"`

	Cache struct {
		// Statements is the plan cache capacity; negative disables it.
		Statements int `mapstructure:"statements"`
	} `mapstructure:"cache"`

	Data struct {
		Path string      `mapstructure:"path"`
		CSV  []CSVSource `mapstructure:"csv"`
	} `mapstructure:"data"`
}

// CSVSource preloads one table from a CSV file. Tables are listed rather
// than keyed because config keys are case-insensitive.
type CSVSource struct {
	Table string `mapstructure:"table"`
	Path  string `mapstructure:"path"`
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("NOVAQUERY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app_name", "novaquery")
	v.SetDefault("server.addr", "127.0.0.1:8866")
	v.SetDefault("server.metrics_addr", "")
	v.SetDefault("server.debug", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("schema.path", "")
	v.SetDefault("data.path", "")
	v.SetDefault("cache.statements", 128)
	return v
}

// LoadConfig reads a YAML config file. An empty path yields the defaults;
// NOVAQUERY_* environment variables override either.
func LoadConfig(path string) (*NovaQueryConfig, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg NovaQueryConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// LoadSchemaFile reads table declarations of the form
//
//	tables:
//	  Invoice: {id: Number, total: Number, due: Date}
//
// from a YAML or JSON file. Names are case-sensitive, so the file is decoded
// directly instead of through viper.
func LoadSchemaFile(path string) (*record.SchemaSet, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}

	var decl struct {
		Tables map[string]map[string]string `yaml:"tables"`
	}
	if err := yaml.Unmarshal(b, &decl); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	if len(decl.Tables) == 0 {
		return nil, fmt.Errorf("schema %s declares no tables", path)
	}
	return record.SchemaSetFromTypes(decl.Tables)
}

// NewLogger builds the process logger from the log section.
func (c *NovaQueryConfig) NewLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	if c.Server.Debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
