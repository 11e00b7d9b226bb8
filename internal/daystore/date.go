package daystore

import (
	"fmt"
	"regexp"
	"time"
)

const dateLayout = "2006-01-02"

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ValidateDate accepts only real YYYY-MM-DD dates. Dates become file names and
// object keys, so anything else is rejected before it reaches a backend.
func ValidateDate(date string) error {
	if !dateRe.MatchString(date) {
		return fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return nil
}

// DateFromFileName returns the date of a "YYYY-MM-DD.json" name.
func DateFromFileName(name string) (string, bool) {
	const suffix = ".json"
	if len(name) != len(dateLayout)+len(suffix) || name[len(dateLayout):] != suffix {
		return "", false
	}
	date := name[:len(dateLayout)]
	if ValidateDate(date) != nil {
		return "", false
	}
	return date, true
}
