package wizard

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alimatrix/alimatrix/internal/form"
)

// RedirectError means the requested step may not be shown yet; To is the
// earliest step that still needs answers.
type RedirectError struct {
	To form.StepID
}

func (e *RedirectError) Error() string {
	return "redirect to " + string(e.To)
}

// ValidationError carries per-field messages for the step.
type ValidationError struct {
	Errors map[string]string
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Errors))
	for f := range e.Errors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return "invalid fields: " + strings.Join(fields, ", ")
}

// SaveError means the draft could not be stored even by the fallback
// write.
type SaveError struct {
	Attempts int
	Err      error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("draft not saved after %d attempts: %v", e.Attempts, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }
