package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

const finishingKey = "acabamento"

// Finishing holds the fixed finishing options of an item
type Finishing struct {
	Overloque bool `json:"overloque"`
	Elastico  bool `json:"elastico"`
	Ilhos     bool `json:"ilhos"`
}

// Item is one production line of an order. The named fields are the ones every
// production type shares; anything else the client sends (per-type quantities,
// extra charges, adornment flags) is kept verbatim in Extra.
type Item struct {
	ID             *int       `json:"id,omitempty"`
	ProductionType *string    `json:"tipo_producao,omitempty"` // painel, totem, lona, adesivo...
	Description    *string    `json:"descricao,omitempty"`
	Width          *string    `json:"largura,omitempty"`
	Height         *string    `json:"altura,omitempty"`
	SquareMeters   *string    `json:"metro_quadrado,omitempty"`
	Vendor         *string    `json:"vendedor,omitempty"`
	Designer       *string    `json:"designer,omitempty"`
	Fabric         *string    `json:"tecido,omitempty"`
	Finishing      *Finishing `json:"acabamento,omitempty"`
	Seam           *string    `json:"emenda,omitempty"` // sem-emenda or com-emenda
	Note           *string    `json:"observacao,omitempty"`
	UnitPrice      *string    `json:"valor_unitario,omitempty"`
	Image          *string    `json:"imagem,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// itemFields mirrors Item without its JSON methods
type itemFields Item

var knownItemKeys = map[string]bool{
	"id": true, "tipo_producao": true, "descricao": true, "largura": true, "altura": true,
	"metro_quadrado": true, "vendedor": true, "designer": true, "tecido": true,
	finishingKey: true, "emenda": true, "observacao": true, "valor_unitario": true, "imagem": true,
}

// MarshalJSON flattens the named fields and Extra into one object. Named fields
// win over Extra keys of the same name.
func (it Item) MarshalJSON() ([]byte, error) {
	fields := itemFields(it)
	if fields.Finishing == nil {
		fields.Finishing = decodeFinishing(it.Extra[finishingKey])
	}

	known, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	if len(it.Extra) == 0 {
		return known, nil
	}

	merged := make(map[string]json.RawMessage, len(it.Extra)+len(knownItemKeys))
	for key, value := range it.Extra {
		if knownItemKeys[key] || len(value) == 0 {
			continue
		}
		merged[key] = value
	}
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}
	return json.Marshal(merged)
}

// UnmarshalJSON splits an encoded item back into named fields and Extra.
// The acabamento key decodes to a Finishing only when it holds an object.
func (it *Item) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("item must be a JSON object")
	}

	finishing := decodeFinishing(raw[finishingKey])
	delete(raw, finishingKey)

	known := make(map[string]json.RawMessage, len(raw))
	var extra map[string]json.RawMessage
	for key, value := range raw {
		if knownItemKeys[key] {
			known[key] = value
			continue
		}
		if extra == nil {
			extra = make(map[string]json.RawMessage)
		}
		extra[key] = value
	}

	knownJSON, err := json.Marshal(known)
	if err != nil {
		return err
	}
	var fields itemFields
	if err := json.Unmarshal(knownJSON, &fields); err != nil {
		return err
	}

	*it = Item(fields)
	it.Finishing = finishing
	it.Extra = extra
	return nil
}

// EffectiveID returns the item id, or the id synthesized from the owning order and position
func (it Item) EffectiveID(orderID uint, position int) int {
	if it.ID != nil {
		return *it.ID
	}
	return int(orderID)*1000 + position
}

func decodeFinishing(raw json.RawMessage) *Finishing {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	var finishing Finishing
	if err := json.Unmarshal(trimmed, &finishing); err != nil {
		return nil
	}
	return &finishing
}

// EncodeItems serializes the items of an order for the items column
func EncodeItems(items []Item) (string, error) {
	if items == nil {
		items = []Item{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to encode items: %w", err)
	}
	return string(data), nil
}

// DecodeItems parses the items column. Empty or corrupt input yields an empty
// slice; the failure is logged and never returned, so one bad row cannot break a listing.
func DecodeItems(encoded string) []Item {
	if len(bytes.TrimSpace([]byte(encoded))) == 0 {
		return []Item{}
	}

	var items []Item
	if err := json.Unmarshal([]byte(encoded), &items); err != nil {
		zap.L().Debug("discarding undecodable items payload",
			zap.Error(err),
			zap.Int("payload_bytes", len(encoded)))
		return []Item{}
	}
	if items == nil {
		return []Item{}
	}
	return items
}
