package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jward/mclens"
)

// configName is the project config file, read from the project root.
const configName = "mclens.yaml"

// Config is the per-project configuration. Values come from mclens.yaml,
// then MCLENS_* environment variables, then flags.
type Config struct {
	JungleFiles         []string `mapstructure:"jungle_files" yaml:"jungle_files" validate:"required,min=1,dive,required"`
	Product             string   `mapstructure:"product" yaml:"product,omitempty"`
	DebounceMillis      int      `mapstructure:"debounce_ms" yaml:"debounce_ms" validate:"gte=0,lte=60000"`
	MaxDelayMillis      int      `mapstructure:"max_delay_ms" yaml:"max_delay_ms" validate:"gtefield=DebounceMillis"`
	DisableAnalysis     bool     `mapstructure:"disable_analysis" yaml:"disable_analysis,omitempty"`
	CheckInvalidSymbols string   `mapstructure:"check_invalid_symbols" yaml:"check_invalid_symbols" validate:"oneof=ERROR WARNING INFO OFF"`
	DBPath              string   `mapstructure:"db_path" yaml:"db_path,omitempty"`
}

// DefaultConfig values.
var DefaultConfig = Config{
	JungleFiles:         []string{"monkey.jungle"},
	DebounceMillis:      int(mclens.DefaultDebounce / time.Millisecond),
	MaxDelayMillis:      int(mclens.DefaultMaxDelay / time.Millisecond),
	CheckInvalidSymbols: "WARNING",
}

var configValidate = validator.New()

// loadConfig reads the configuration for the project at root. An explicit
// file must exist; the default mclens.yaml is optional.
func loadConfig(cmd *cobra.Command, root, file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MCLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", file, err)
		}
	} else {
		v.SetConfigName(strings.TrimSuffix(configName, filepath.Ext(configName)))
		v.SetConfigType("yaml")
		v.AddConfigPath(root)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	bindFlags(v, cmd)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := configValidate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("jungle_files", DefaultConfig.JungleFiles)
	v.SetDefault("product", DefaultConfig.Product)
	v.SetDefault("debounce_ms", DefaultConfig.DebounceMillis)
	v.SetDefault("max_delay_ms", DefaultConfig.MaxDelayMillis)
	v.SetDefault("disable_analysis", DefaultConfig.DisableAnalysis)
	v.SetDefault("check_invalid_symbols", DefaultConfig.CheckInvalidSymbols)
	v.SetDefault("db_path", DefaultConfig.DBPath)
}

// bindFlags lets flags the user set override the file and environment.
func bindFlags(v *viper.Viper, cmd *cobra.Command) {
	flags := cmd.Flags()
	_ = v.BindPFlag("jungle_files", flags.Lookup("jungle"))
	_ = v.BindPFlag("product", flags.Lookup("product"))
	_ = v.BindPFlag("db_path", flags.Lookup("db"))
	_ = v.BindPFlag("check_invalid_symbols", flags.Lookup("check-invalid-symbols"))
}

// projectOptions turns cfg into library options.
func (c *Config) projectOptions() []mclens.Option {
	return []mclens.Option{
		mclens.WithJungleFiles(c.JungleFiles...),
		mclens.WithProduct(c.Product),
		mclens.WithDebounce(time.Duration(c.DebounceMillis)*time.Millisecond, time.Duration(c.MaxDelayMillis)*time.Millisecond),
		mclens.WithAnalysis(!c.DisableAnalysis),
		mclens.WithCheckInvalidSymbols(c.CheckInvalidSymbols),
	}
}

// dbPath returns the configured index path resolved against root, or "".
func (c *Config) dbPath(root string) string {
	if c.DBPath == "" || filepath.IsAbs(c.DBPath) {
		return c.DBPath
	}
	return filepath.Join(root, c.DBPath)
}

// writeConfig writes cfg to path as YAML. It refuses to overwrite unless
// force is set.
func writeConfig(path string, cfg Config, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
