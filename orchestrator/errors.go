package orchestrator

import (
	"errors"
	"fmt"
)

// ErrCycle is returned when a phase's dependsOn graph contains a cycle.
var ErrCycle = errors.New("orchestrator: cycle detected in dependsOn")

// parseError carries a truncated preview of the text that failed to
// parse, grounded on the teacher's JSON-extraction error shape.
type parseError struct {
	reason  string
	preview string
}

func (e *parseError) Error() string {
	return fmt.Sprintf("orchestrator: %s: %q", e.reason, e.preview)
}

func newParseError(reason, text string) error {
	preview := text
	if len(preview) > 100 {
		preview = preview[:100] + "..."
	}
	return &parseError{reason: reason, preview: preview}
}

// IsParseError reports whether err is a directive parse failure.
func IsParseError(err error) bool {
	var pe *parseError
	return errors.As(err, &pe)
}
