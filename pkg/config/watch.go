package config

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watch reloads the configuration whenever the file at configPath changes
// and delivers the result to onChange. A reload that fails to parse or
// validate is reported with a nil config so the caller can keep the last
// good one.
//
// Watch returns after installing the watcher; callbacks arrive on the
// watcher's goroutine.
func Watch(configPath string, onChange func(*Config, error)) error {
	if configPath == "" {
		return fmt.Errorf("config watch requires an explicit file path")
	}

	v := viper.New()
	setupViper(v, configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		var cfg Config
		if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
			onChange(nil, fmt.Errorf("failed to unmarshal config: %w", err))
			return
		}
		if err := Validate(&cfg); err != nil {
			onChange(nil, fmt.Errorf("configuration validation failed: %w", err))
			return
		}
		onChange(&cfg, nil)
	})
	v.WatchConfig()

	return nil
}
