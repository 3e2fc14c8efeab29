package store

import (
	"errors"
	"fmt"
)

// ErrRunNotFound is returned when no run has the requested id.
var ErrRunNotFound = errors.New("run not found")

// FingerprintError reports an attempt to resume or extend a run with a
// problem other than the one it was saved for.
type FingerprintError struct {
	RunID     string
	Stored    string
	Requested string
}

func (e *FingerprintError) Error() string {
	return fmt.Sprintf("run %s was saved for problem %s, not %s", e.RunID, short(e.Stored), short(e.Requested))
}

// IsFingerprintError reports whether err is a FingerprintError.
func IsFingerprintError(err error) bool {
	var fe *FingerprintError
	return errors.As(err, &fe)
}

// IsRunNotFound reports whether err is ErrRunNotFound.
func IsRunNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound)
}

func short(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
