package models

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Status is the production stage of an order
type Status string

const (
	StatusPending      Status = "pendente"
	StatusInProduction Status = "em_producao"
	StatusReady        Status = "pronto"
	StatusDelivered    Status = "entregue"
	StatusCancelled    Status = "cancelado"
)

// Statuses lists the canonical states in lifecycle order
var Statuses = []Status{
	StatusPending,
	StatusInProduction,
	StatusReady,
	StatusDelivered,
	StatusCancelled,
}

// statusSynonyms maps folded spellings onto canonical states.
// Keys are in the form produced by foldStatus.
var statusSynonyms = map[string]Status{
	"pendente":      StatusPending,
	"pending":       StatusPending,
	"em producao":   StatusInProduction,
	"in production": StatusInProduction,
	"producao":      StatusInProduction,
	"pronto":        StatusReady,
	"ready":         StatusReady,
	"entregue":      StatusDelivered,
	"delivered":     StatusDelivered,
	"concluido":     StatusDelivered,
	"concluded":     StatusDelivered,
	"cancelado":     StatusCancelled,
	"cancelled":     StatusCancelled,
	"canceled":      StatusCancelled,
}

// NormalizeStatus maps any spelling onto a canonical status.
// Unknown or empty input maps to StatusPending; it never fails, so it must not
// be used to validate user input (see ParseStatus).
func NormalizeStatus(raw string) Status {
	if status, ok := lookupStatus(raw); ok {
		return status
	}
	return StatusPending
}

// ParseStatus is the strict counterpart of NormalizeStatus: it consults the same
// table but rejects input it does not recognize.
func ParseStatus(raw string) (Status, error) {
	if status, ok := lookupStatus(raw); ok {
		return status, nil
	}
	return "", fmt.Errorf("unknown order status %q", raw)
}

// IsValid reports whether s is one of the canonical states
func (s Status) IsValid() bool {
	for _, candidate := range Statuses {
		if s == candidate {
			return true
		}
	}
	return false
}

func lookupStatus(raw string) (Status, bool) {
	folded := foldStatus(raw)
	if folded == "" {
		return "", false
	}
	status, ok := statusSynonyms[folded]
	return status, ok
}

// foldStatus lowercases, removes diacritics and treats underscores and hyphens as spaces.
func foldStatus(raw string) string {
	// a transform chain is stateful, so each call builds its own
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripMarks, strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		folded = strings.ToLower(strings.TrimSpace(raw))
	}
	folded = strings.NewReplacer("_", " ", "-", " ").Replace(folded)
	return strings.Join(strings.Fields(folded), " ")
}

// Priority of an order on the production floor
type Priority string

const (
	PriorityNormal Priority = "NORMAL"
	PriorityHigh   Priority = "ALTA"
)
