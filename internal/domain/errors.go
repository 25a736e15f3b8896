package domain

import (
	"errors"
	"fmt"
)

// ErrMalformedRecord marks a record missing a field the schema treats as
// mandatory. It is never recovered locally: loading the rest of the batch
// under conflict-ignore semantics would report success for an incomplete load.
var ErrMalformedRecord = errors.New("malformed record")

// FieldError names the missing or unusable field of a malformed record.
type FieldError struct {
	Field  string // dotted source path, e.g. "user.screen_name"
	PostID int64  // zero when the post id itself is missing
	Err    error  // optional cause, e.g. a timestamp parse error
}

func (e *FieldError) Error() string {
	msg := fmt.Sprintf("%s: field %q", ErrMalformedRecord, e.Field)
	if e.PostID != 0 {
		msg += fmt.Sprintf(" (post %d)", e.PostID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FieldError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMalformedRecord}
	}
	return []error{ErrMalformedRecord, e.Err}
}
