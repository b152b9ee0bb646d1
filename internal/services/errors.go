package services

import (
	"errors"
	"fmt"

	"divvy/internal/usage"
)

var (
	// ErrNotMember is returned when the acting user does not belong to
	// the group they are operating on.
	ErrNotMember = errors.New("not a member of this group")

	// ErrForbidden is returned when the user is a member but lacks the
	// required role, e.g. renaming a group they did not create.
	ErrForbidden = errors.New("not allowed")

	// ErrAlreadyMember is returned when a user joins a group they are
	// already part of.
	ErrAlreadyMember = errors.New("already a member of this group")
)

// LimitError reports a denied usage gate check.
type LimitError struct {
	Check usage.Check
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s (%d/%d)", e.Check.Reason, e.Check.Current, e.Check.Limit)
}

// IsLimitError reports whether err is a usage limit denial.
func IsLimitError(err error) bool {
	var le *LimitError
	return errors.As(err, &le)
}
