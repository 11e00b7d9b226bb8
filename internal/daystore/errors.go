package daystore

import "errors"

var (
	// ErrDayNotFound means no collection exists for the requested date.
	ErrDayNotFound = errors.New("daystore: day not found")
	// ErrConversationNotFound means the day exists but holds no conversation
	// with the requested id.
	ErrConversationNotFound = errors.New("daystore: conversation not found")
	// ErrLockTimeout means the day lock could not be acquired in time. The
	// caller may retry.
	ErrLockTimeout = errors.New("daystore: timed out waiting for day lock")
	// ErrInvalidDate means the date is not a YYYY-MM-DD calendar date.
	ErrInvalidDate = errors.New("daystore: invalid date")
)
