package reminder

import (
	"errors"
	"fmt"
	"time"
)

// DefaultClarificationQuestion is asked when no duration could be resolved
const DefaultClarificationQuestion = "How long will this take?"

// ErrClarificationRequired matches any ClarificationRequiredError via errors.Is
var ErrClarificationRequired = errors.New("clarification required")

// ClarificationRequiredError is returned when neither the parser nor the
// estimator produced a duration. The caller should ask the user, not re-parse.
// DueAt and Location carry what the parser did resolve so the answer can be
// applied without parsing the text again.
type ClarificationRequiredError struct {
	Description string
	Question    string
	DueAt       time.Time
	Location    string
}

func (e *ClarificationRequiredError) Error() string {
	return fmt.Sprintf("clarification required for %q: %s", e.Description, e.Question)
}

// Is lets errors.Is(err, ErrClarificationRequired) match
func (e *ClarificationRequiredError) Is(target error) bool {
	return target == ErrClarificationRequired
}
