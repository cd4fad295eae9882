// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Face matching constants
const (
	// ANNMaxNeighbors is the M parameter of the HNSW graph built over the population
	ANNMaxNeighbors = 16

	// ANNCandidates is how many approximate neighbors are scanned exactly when MATCH_ANN_INDEX is on
	ANNCandidates = 32
)

// Image constants
const (
	// JPEGQuality is used for every image sent to the face encoder
	JPEGQuality = 90

	// MaxRegistrationImageSize is the maximum dimension (width or height) of registration photos
	MaxRegistrationImageSize = 1920
)

// Processing constants
const (
	// MaxConsecutiveReadErrors stops the capture loop when the source keeps failing
	MaxConsecutiveReadErrors = 30

	// ReadErrorBackoff is the pause after a failed frame read
	ReadErrorBackoff = 500 * time.Millisecond

	// ShutdownTimeout bounds the control server shutdown
	ShutdownTimeout = 5 * time.Second

	// FinalDrainTimeout bounds the last spool retry before exit
	FinalDrainTimeout = 10 * time.Second
)
