package models

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Status
	}{
		{"canonical pending", "pendente", StatusPending},
		{"canonical in production", "em_producao", StatusInProduction},
		{"canonical ready", "pronto", StatusReady},
		{"canonical delivered", "entregue", StatusDelivered},
		{"canonical cancelled", "cancelado", StatusCancelled},
		{"in production with space", "em producao", StatusInProduction},
		{"in production with diacritics", "em produção", StatusInProduction},
		{"in production upper case", "EM_PRODUÇÃO", StatusInProduction},
		{"surrounding whitespace", "  Pronto  ", StatusReady},
		{"concluded is delivered", "concluido", StatusDelivered},
		{"concluded with accent", "Concluído", StatusDelivered},
		{"english synonym", "Cancelled", StatusCancelled},
		{"american spelling", "canceled", StatusCancelled},
		{"unknown falls back to pending", "arquivado", StatusPending},
		{"empty falls back to pending", "", StatusPending},
		{"punctuation only", "___", StatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeStatus(tt.raw))
		})
	}
}

func TestNormalizeStatus_EverySynonymIsCanonical(t *testing.T) {
	for synonym, want := range statusSynonyms {
		got := NormalizeStatus(synonym)
		assert.Equal(t, want, got, "synonym %q", synonym)
		assert.True(t, got.IsValid(), "synonym %q should map onto a canonical status", synonym)
	}
}

func TestNormalizeStatus_CanonicalValuesPassThrough(t *testing.T) {
	for _, status := range Statuses {
		assert.Equal(t, status, NormalizeStatus(string(status)))
	}
}

func TestNormalizeStatus_Concurrent(t *testing.T) {
	inputs := map[string]Status{
		"Em Produção": StatusInProduction,
		"concluído":   StatusDelivered,
		"PRONTO":      StatusReady,
		"Cancelado":   StatusCancelled,
		"pendente":    StatusPending,
	}

	var (
		wg         sync.WaitGroup
		mismatches atomic.Int64
	)
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 2000; i++ {
				for raw, want := range inputs {
					if NormalizeStatus(raw) != want {
						mismatches.Add(1)
					}
					if _, err := ParseStatus(raw); err != nil {
						mismatches.Add(1)
					}
				}
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, mismatches.Load())
}

func TestParseStatus(t *testing.T) {
	status, err := ParseStatus("Em Produção")
	assert.NoError(t, err)
	assert.Equal(t, StatusInProduction, status)

	_, err = ParseStatus("arquivado")
	assert.Error(t, err, "strict parsing must reject unknown statuses")

	_, err = ParseStatus("")
	assert.Error(t, err)
}

func TestStatusIsValid(t *testing.T) {
	assert.True(t, StatusReady.IsValid())
	assert.False(t, Status("em producao").IsValid())
	assert.False(t, Status("").IsValid())
}
