package ir

// Version constants for the statement representation and engine.
const (
	// IRVersion is the statement representation version. It is folded into
	// hash domains so a representation change invalidates persisted hashes.
	IRVersion = "1"

	// EngineVersion is the luma engine version.
	EngineVersion = "0.1.0"
)
