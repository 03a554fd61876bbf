package upload

import "fmt"

type (
	// ValidationError reports a locally-detectable problem with the draft.
	// No persistence is attempted when one of these is raised.
	ValidationError struct {
		Field   string
		Message string
	}

	// ConflictError reports a duplicate detected by a store query (video
	// link or series chapter already taken). Handled the same way as a
	// validation failure: surfaced to the user, draft preserved.
	ConflictError struct {
		Message string
	}
)

func (err *ValidationError) Error() string { return err.Message }

func (err *ConflictError) Error() string { return err.Message }

func requiredField(field string) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf("%s is required", field)}
}
