package collection

import "errors"

// Error is a structured, error-shaped result carrying the backend's error code.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message + " (" + e.Code + ")"
}

// NotFoundCode is the code the real backend reports when a single-row read
// matches nothing.
const NotFoundCode = "PGRST116"

var (
	// ErrNotFound reports that a lookup expecting one row matched none.
	// Callers branch on it to tell "no record yet" from a failed query.
	ErrNotFound = &Error{Code: NotFoundCode, Message: "Not found"}

	ErrEmptyName = errors.New("collection: empty collection name")
	ErrCorrupt   = errors.New("collection: stored data is corrupt")
	ErrPersist   = errors.New("collection: persist failed")
)
