package firestore

import "fmt"

// notFoundError reports a missing document for lookups that do not go
// through a document reference, such as queries by field.
type notFoundError struct {
	resource string
	id       string
}

func (e *notFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.resource, e.id)
}

func (e *notFoundError) IsNotFound() bool    { return true }
func (e *notFoundError) IsConflict() bool    { return false }
func (e *notFoundError) IsUnavailable() bool { return false }
