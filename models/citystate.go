package models

import "strings"

// StateSeparator joins city and state inside the single cidade_cliente column
const StateSeparator = "||"

// EncodeCityState packs city and state into one column value.
// Both parts are trimmed. A city that is already packed, or that contains the
// separator, is reduced to the part before it.
func EncodeCityState(city, state string) string {
	baseCity, _ := DecodeCityState(city)
	state = strings.TrimSpace(state)
	if state == "" {
		return baseCity
	}
	return baseCity + StateSeparator + state
}

// DecodeCityState splits a packed column value at the first separator and
// trims both parts. State is nil when absent or blank.
func DecodeCityState(value string) (string, *string) {
	if value == "" {
		return "", nil
	}
	city, state, found := strings.Cut(value, StateSeparator)
	if !found {
		return strings.TrimSpace(value), nil
	}
	state = strings.TrimSpace(state)
	if state == "" {
		return strings.TrimSpace(city), nil
	}
	return strings.TrimSpace(city), &state
}
