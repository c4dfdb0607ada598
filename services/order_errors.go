package services

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrOrderNotFound is returned when no order has the requested id
	ErrOrderNotFound = errors.New("order not found")
	// ErrItemNotFound is returned when no order holds the requested item id
	ErrItemNotFound = errors.New("item not found")
	// ErrImageNotFound is returned when an item carries no image
	ErrImageNotFound = errors.New("item has no image")
	// ErrOrderNumberConflict is returned when another order already uses the number
	ErrOrderNumberConflict = errors.New("order number already exists")
	// ErrOrderSave wraps every other persistence failure during a mutation
	ErrOrderSave = errors.New("could not save order")
)

// ValidationError reports a rejected input field
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
