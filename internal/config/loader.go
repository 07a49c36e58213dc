package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override. A double underscore
// separates path segments: UEDUMP_GAME__SHORT sets game.short.
const EnvPrefix = "UEDUMP_"

// Load builds the configuration. Sources apply in order: defaults, the
// YAML file at path (skipped when path is empty), environment, then
// overrides (flat dotted keys, typically from CLI flags).
func Load(path string, overrides map[string]any) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if path != "" {
		if err := loadYAML(k, path); err != nil {
			return nil, err
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return transformEnvKey(key), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	for key, value := range overrides {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("config: set %s: %w", key, err)
		}
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
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct constraints and cross-field rules.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config: validation failed: %w", err)
	}
	if cfg.Target.Image != "" && (cfg.Target.PID != 0 || cfg.Target.Process != "") {
		return fmt.Errorf("config: target.image cannot be combined with target.pid or target.process")
	}
	if cfg.Target.PID != 0 && cfg.Target.Process != "" {
		return fmt.Errorf("config: target.pid and target.process are mutually exclusive")
	}
	if cfg.Target.Library != "" && cfg.Target.Image == "" {
		return fmt.Errorf("config: target.library requires target.image")
	}
	return nil
}

func loadYAML(k *koanf.Koanf, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	for key, value := range flattenMap("", raw) {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("config: set %s from %s: %w", key, path, err)
		}
	}
	return nil
}

// transformEnvKey maps UEDUMP_LAYOUT__OBJECTS_OFFSET to
// layout.objects_offset.
func transformEnvKey(key string) string {
	key = strings.TrimPrefix(key, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(key), "__", ".")
}

// flattenMap flattens nested maps into dotted keys. Lists are kept whole.
func flattenMap(prefix string, m map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			for fk, fv := range flattenMap(key, nested) {
				out[fk] = fv
			}
			continue
		}
		out[key] = v
	}
	return out
}
