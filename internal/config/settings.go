package config

import (
	"benwidget/internal/relay"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	EnvPrefix     = "BEN"
	EnvConfigFile = "BEN_CONFIG"

	DefaultEngineID    = relay.DefaultEngineID
	DefaultChannelName = relay.DefaultChannelName
)

type Settings struct {
	Engine  EngineSettings  `mapstructure:"engine"`
	Spool   SpoolSettings   `mapstructure:"spool"`
	Log     LogSettings     `mapstructure:"log"`
	Metrics MetricsSettings `mapstructure:"metrics"`
	Journal JournalSettings `mapstructure:"journal"`
	Player  PlayerSettings  `mapstructure:"player"`
}

// EngineSettings names the single engine the widget talks to. The id must
// match what the application registers at startup.
type EngineSettings struct {
	ID        string `mapstructure:"id"`
	Channel   string `mapstructure:"channel"`
	QueueSize int    `mapstructure:"queue_size"`
}

type SpoolSettings struct {
	Dir string `mapstructure:"dir"`
}

type LogSettings struct {
	Level string `mapstructure:"level"`
}

type MetricsSettings struct {
	Addr string `mapstructure:"addr"`
}

type JournalSettings struct {
	Enabled bool `mapstructure:"enabled"`
	Buffer  int  `mapstructure:"buffer"`
}

type PlayerSettings struct {
	Tracks []string `mapstructure:"tracks"`
}

// Load reads widget.yaml (or the file named by BEN_CONFIG) on top of the
// defaults. BEN_* environment variables override both, e.g. BEN_ENGINE_ID.
func Load(paths Paths) (Settings, error) {
	v := viper.New()

	v.SetDefault("engine.id", DefaultEngineID)
	v.SetDefault("engine.channel", DefaultChannelName)
	v.SetDefault("engine.queue_size", 64)
	v.SetDefault("spool.dir", paths.SpoolDir)
	v.SetDefault("log.level", "info")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.buffer", 256)
	v.SetDefault("player.tracks", []string{})

	v.SetConfigType("yaml")
	if cfgPath := os.Getenv(EnvConfigFile); cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.SetConfigFile(paths.ConfigFile)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return Settings{}, fmt.Errorf("read config: %w", err)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return Settings{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}

	return settings, nil
}

func (s Settings) Validate() error {
	if strings.TrimSpace(s.Engine.ID) == "" {
		return errors.New("engine.id is required")
	}
	if strings.TrimSpace(s.Engine.Channel) == "" {
		return errors.New("engine.channel is required")
	}
	if strings.TrimSpace(s.Spool.Dir) == "" {
		return errors.New("spool.dir is required")
	}
	return nil
}
