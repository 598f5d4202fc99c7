package metrics

import "errors"

// ErrRefinementTimeout is returned by Refiner.Refine when the
// meta-prompt request does not complete within the configured await
// window. The refinement cycle is skipped for that agent this round;
// no partial version is written.
var ErrRefinementTimeout = errors.New("metrics: refinement request timed out")
