// Package config merges quake's CLI flags with an optional .quake.yaml
// project file via github.com/spf13/viper, the ambient configuration
// layer SPEC_FULL.md's expansion adds alongside the teacher's own
// config.Loader.
package config

import (
	"runtime"

	"github.com/spf13/viper"
)

// Config holds the resolved settings for one invocation.
type Config struct {
	Jobs      int    // max concurrent workers
	Color     bool   // colorize console output
	LogFormat string // "console" or "json"
}

// Load reads projectDir/.quake.yaml if present, then layers CLI flag
// values on top (flags always win: every key explicitly set on flags is
// copied in with v.Set, viper's highest-precedence "overrides" layer).
func Load(projectDir string, flags *viper.Viper) (*Config, error) {
	v := viper.New()
	v.SetDefault("jobs", runtime.NumCPU())
	v.SetDefault("color", true)
	v.SetDefault("log_format", "console")

	v.SetConfigName(".quake")
	v.SetConfigType("yaml")
	v.AddConfigPath(projectDir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if flags != nil {
		for _, key := range []string{"jobs", "color", "log_format"} {
			if flags.IsSet(key) {
				v.Set(key, flags.Get(key))
			}
		}
	}

	return &Config{
		Jobs:      v.GetInt("jobs"),
		Color:     v.GetBool("color"),
		LogFormat: v.GetString("log_format"),
	}, nil
}
