package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/sgp-fichas/fichas-api/models"
	"github.com/sgp-fichas/fichas-api/utils"
)

// OrderInput is the payload for creating or patching an order. A nil field is
// absent: create applies its default, update leaves the stored value alone.
// JSON null is treated as absent.
type OrderInput struct {
	Number       *string `json:"numero"`
	EntryDate    *string `json:"data_entrada" binding:"omitempty,isodate"`
	DeliveryDate *string `json:"data_entrega" binding:"omitempty,isodate"`
	Note         *string `json:"observacao"`
	Priority     *string `json:"prioridade"`
	Status       *string `json:"status"`

	Client      *string `json:"cliente"`
	ClientPhone *string `json:"telefone_cliente"`
	City        *string `json:"cidade_cliente"`
	State       *string `json:"estado_cliente"`

	TotalValue       *string      `json:"valor_total"`
	FreightValue     *string      `json:"valor_frete"`
	ItemsValue       *string      `json:"valor_itens"`
	PaymentType      *string      `json:"tipo_pagamento"`
	PaymentNote      *string      `json:"obs_pagamento"`
	ShippingMethod   *string      `json:"forma_envio"`
	ShippingMethodID *FlexibleInt `json:"forma_envio_id"`

	Financial    *bool   `json:"financeiro"`
	Checked      *bool   `json:"conferencia"`
	Printing     *bool   `json:"sublimacao"`
	Sewing       *bool   `json:"costura"`
	Shipping     *bool   `json:"expedicao"`
	Ready        *bool   `json:"pronto"`
	PrintMachine *string `json:"sublimacao_maquina"`
	PrintedAt    *string `json:"sublimacao_data_impressao"`

	Items *[]models.Item `json:"items"`
}

// FlexibleInt accepts a JSON number, a numeric string or a blank string (zero)
type FlexibleInt int

func (f *FlexibleInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("forma_envio_id: %q is not an integer", s)
		}
		*f = FlexibleInt(n)
		return nil
	}

	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexibleInt(n)
	return nil
}

func (in *OrderInput) validate() error {
	for field, value := range map[string]*string{
		"data_entrada": in.EntryDate,
		"data_entrega": in.DeliveryDate,
	} {
		if value != nil && *value != "" && !utils.IsISODate(*value) {
			return &ValidationError{Field: field, Reason: "must be a YYYY-MM-DD date"}
		}
	}
	if in.Priority != nil {
		if _, ok := parsePriority(*in.Priority); !ok {
			return &ValidationError{Field: "prioridade", Reason: "must be NORMAL or ALTA"}
		}
	}
	return nil
}

// parsePriority accepts NORMAL/ALTA in any case; blank means NORMAL
func parsePriority(raw string) (models.Priority, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "", string(models.PriorityNormal):
		return models.PriorityNormal, true
	case string(models.PriorityHigh):
		return models.PriorityHigh, true
	}
	return "", false
}

func valueOr(p *string, fallback string) string {
	if p == nil {
		return fallback
	}
	return *p
}

func trimmedOr(p *string, fallback string) string {
	if p == nil || strings.TrimSpace(*p) == "" {
		return fallback
	}
	return strings.TrimSpace(*p)
}

// optional maps a supplied blank string to NULL
func optional(p *string) *string {
	if p == nil || *p == "" {
		return nil
	}
	v := *p
	return &v
}
