package viewanalysis

import "errors"

var (
	// ErrInvalidArgument marks a precondition violation: empty inputs,
	// non-positive counts, angles or distances, an invalid point or surface.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDegenerateInput marks a vector too short to derive a direction from,
	// such as a zero normal or a zero first view ray.
	ErrDegenerateInput = errors.New("degenerate input")
)

// minVectorLength is the magnitude below which a normal or the nudge
// reference direction is rejected as degenerate.
const minVectorLength = 1e-9
