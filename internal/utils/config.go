package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// ConfigurationLoader reads a config file, environment overrides and defaults through viper.
type ConfigurationLoader struct {
	name      string
	kind      string
	envPrefix string
	paths     []string
}

// NewConfigurationLoader searches paths for name.kind; env vars are PREFIX_SECTION_KEY.
func NewConfigurationLoader(name, kind, envPrefix string, paths []string) *ConfigurationLoader {
	return &ConfigurationLoader{name: name, kind: kind, envPrefix: envPrefix, paths: append([]string(nil), paths...)}
}

// Load fills target. An explicit file must exist; a missing searched file is fine.
// It returns the config file used, if any.
func (l *ConfigurationLoader) Load(file string, defaults map[string]any, target any) (string, error) {
	v := viper.New()
	v.SetConfigName(l.name)
	v.SetConfigType(l.kind)
	for _, p := range l.paths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix(l.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	if file != "" {
		v.SetConfigFile(file)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return "", fmt.Errorf("read configuration: %w", err)
		}
	}
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(target, hook); err != nil {
		return "", fmt.Errorf("parse configuration: %w", err)
	}
	return v.ConfigFileUsed(), nil
}
