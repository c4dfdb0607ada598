package utils

import "time"

// ISODateLayout is the layout of entry and delivery dates
const ISODateLayout = "2006-01-02"

// ParseISODate parses a YYYY-MM-DD date
func ParseISODate(value string) (time.Time, error) {
	return time.Parse(ISODateLayout, value)
}

// IsISODate reports whether value is a valid YYYY-MM-DD date
func IsISODate(value string) bool {
	_, err := ParseISODate(value)
	return err == nil
}

// Today returns now's UTC date in ISODateLayout
func Today(now time.Time) string {
	return now.UTC().Format(ISODateLayout)
}
