package sdk

import "context"

// Generator supplies the game-specific parts of an SDK.
type Generator interface {
	Initialize(ctx context.Context) error

	GameName() string
	GameVersion() string
	GameNameShort() string
	// OutputDirectory is the root under which per-run directories are made.
	OutputDirectory() string

	// Includes are the global includes of SDK.hpp, e.g. "<Windows.h>".
	Includes() []string
	// BasicDeclarations and BasicDefinitions are the bodies of the
	// <Short>_Basic.hpp and <Short>_Basic.cpp units.
	BasicDeclarations() string
	BasicDefinitions() string

	ShouldGenerateFunctionParametersFile() bool
	// Alignment is the #pragma pack value of generated headers.
	Alignment() int
}
