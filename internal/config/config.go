// Package config loads uedump configuration from defaults, an optional
// YAML file and UEDUMP_ environment variables.
package config

import (
	"time"

	"uedump/internal/ue"
)

type Config struct {
	Target     TargetConfig `koanf:"target"`
	Layout     ue.Layout    `koanf:"layout"`
	Game       GameConfig   `koanf:"game"`
	Output     OutputConfig `koanf:"output"`
	Wait       WaitConfig   `koanf:"wait"`
	Signatures []Signature  `koanf:"signatures" validate:"dive"`
	Log        LogConfig    `koanf:"log"`
}

// TargetConfig selects what to read: a live process (PID or Process) or
// a raw memory image mapped at ImageBase.
type TargetConfig struct {
	PID       int    `koanf:"pid" validate:"gte=0"`
	Process   string `koanf:"process"`
	Module    string `koanf:"module" validate:"required"`
	Image     string `koanf:"image"`
	ImageBase uint64 `koanf:"image_base"`
	// Library is the engine module file on disk. With an image target its
	// segments are mapped at the module base so signatures can be scanned
	// when the memory dump holds only data.
	Library string `koanf:"library"`
	// Arch selects the disassembler for the offsets dump.
	Arch string `koanf:"arch" validate:"oneof=arm arm64"`
}

type GameConfig struct {
	Name      string   `koanf:"name" validate:"required"`
	Version   string   `koanf:"version" validate:"required"`
	Short     string   `koanf:"short" validate:"required"`
	Includes  []string `koanf:"includes"`
	Alignment int      `koanf:"alignment" validate:"oneof=1 2 4 8 16"`
	// FunctionParameters emits a <Short>_<Pkg>_parameters.hpp per package.
	FunctionParameters bool `koanf:"function_parameters"`
	// BasicDeclarations and BasicDefinitions, when set, are files that
	// replace the built-in basic units.
	BasicDeclarations string `koanf:"basic_declarations"`
	BasicDefinitions  string `koanf:"basic_definitions"`
}

type OutputConfig struct {
	Dir         string `koanf:"dir" validate:"required"`
	CorePackage string `koanf:"core_package" validate:"required"`
	Graph       bool   `koanf:"graph"`
}

type WaitConfig struct {
	Timeout  time.Duration `koanf:"timeout" validate:"gte=0"`
	Interval time.Duration `koanf:"interval" validate:"gt=0"`
}

// Signature is a named byte pattern searched in the engine module for
// the offsets dump. Pattern bytes are hex pairs; "??" matches any byte.
type Signature struct {
	Name    string `koanf:"name" validate:"required"`
	Pattern string `koanf:"pattern" validate:"required"`
	// Window is the number of bytes disassembled from each match.
	Window int `koanf:"window" validate:"gte=0"`
	// Adjust is added to each match before it is reported, for patterns
	// that anchor inside the function they locate.
	Adjust int64 `koanf:"adjust"`
}

type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `koanf:"json"`
}

// Default returns the built-in configuration for a 64-bit ARM target.
func Default() *Config {
	return &Config{
		Target: TargetConfig{
			Module: "libUE4.so",
			Arch:   "arm64",
		},
		Layout: ue.DefaultLayout64(),
		Game: GameConfig{
			Name:      "Game",
			Version:   "1.0",
			Short:     "Game",
			Alignment: 8,
		},
		Output: OutputConfig{
			Dir:         ".",
			CorePackage: "CoreUObject",
			Graph:       true,
		},
		Wait: WaitConfig{
			Timeout:  2 * time.Minute,
			Interval: time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}
