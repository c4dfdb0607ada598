package models

import (
	"time"

	"gorm.io/gorm"
)

// Order is a customer production request (a "pedido"). Items are stored as a
// single JSON text blob; city and state share the cidade_cliente column.
type Order struct {
	ID           uint     `gorm:"primaryKey"`
	Number       string   `gorm:"column:numero;uniqueIndex;not null"`
	EntryDate    string   `gorm:"column:data_entrada;not null;index"`
	DeliveryDate string   `gorm:"column:data_entrega;not null;index"`
	Note         *string  `gorm:"column:observacao"`
	Priority     Priority `gorm:"column:prioridade;not null;default:'NORMAL'"`
	Status       Status   `gorm:"column:status;not null;default:'pendente';index"`

	Client      string `gorm:"column:cliente;not null;index"`
	ClientPhone string `gorm:"column:telefone_cliente"`
	CityState   string `gorm:"column:cidade_cliente"` // packed with EncodeCityState

	TotalValue   string  `gorm:"column:valor_total"`
	FreightValue string  `gorm:"column:valor_frete"`
	ItemsValue   string  `gorm:"column:valor_itens"`
	PaymentType  string  `gorm:"column:tipo_pagamento"`
	PaymentNote  *string `gorm:"column:obs_pagamento"`

	ShippingMethod   *string `gorm:"column:forma_envio"`
	ShippingMethodID int     `gorm:"column:forma_envio_id;not null;default:0"`

	// production stages
	Financial    bool    `gorm:"column:financeiro;not null;default:false"`
	Checked      bool    `gorm:"column:conferencia;not null;default:false"`
	Printing     bool    `gorm:"column:sublimacao;not null;default:false"`
	Sewing       bool    `gorm:"column:costura;not null;default:false"`
	Shipping     bool    `gorm:"column:expedicao;not null;default:false"`
	Ready        bool    `gorm:"column:pronto;not null;default:false"`
	PrintMachine *string `gorm:"column:sublimacao_maquina"`
	PrintedAt    *string `gorm:"column:sublimacao_data_impressao"`

	Items string `gorm:"column:items;type:text"`

	CreatedAt time.Time `gorm:"column:data_criacao"`
	UpdatedAt time.Time `gorm:"column:ultima_atualizacao"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "pedidos"
}

// BeforeSave keeps the stored status canonical whichever path writes the row
func (o *Order) BeforeSave(tx *gorm.DB) error {
	o.Status = NormalizeStatus(string(o.Status))
	if o.Priority == "" {
		o.Priority = PriorityNormal
	}
	return nil
}

// AfterFind re-normalizes status for rows written before the synonym table existed
func (o *Order) AfterFind(tx *gorm.DB) error {
	o.Status = NormalizeStatus(string(o.Status))
	return nil
}

// OrderResponse is the materialized form of an order sent to clients and
// carried in change events.
type OrderResponse struct {
	ID           uint     `json:"id"`
	Number       string   `json:"numero"`
	EntryDate    string   `json:"data_entrada"`
	DeliveryDate string   `json:"data_entrega"`
	Note         *string  `json:"observacao"`
	Priority     Priority `json:"prioridade"`
	Status       Status   `json:"status"`

	Client      string  `json:"cliente"`
	ClientPhone string  `json:"telefone_cliente"`
	City        string  `json:"cidade_cliente"`
	State       *string `json:"estado_cliente"`

	TotalValue       string  `json:"valor_total"`
	FreightValue     string  `json:"valor_frete"`
	ItemsValue       string  `json:"valor_itens"`
	ComputedTotal    string  `json:"valor_total_calculado"`
	PaymentType      string  `json:"tipo_pagamento"`
	PaymentNote      *string `json:"obs_pagamento"`
	ShippingMethod   *string `json:"forma_envio"`
	ShippingMethodID int     `json:"forma_envio_id"`

	Financial    bool    `json:"financeiro"`
	Checked      bool    `json:"conferencia"`
	Printing     bool    `json:"sublimacao"`
	Sewing       bool    `json:"costura"`
	Shipping     bool    `json:"expedicao"`
	Ready        bool    `json:"pronto"`
	PrintMachine *string `json:"sublimacao_maquina"`
	PrintedAt    *string `json:"sublimacao_data_impressao"`

	Items []Item `json:"items"`

	CreatedAt time.Time `json:"data_criacao"`
	UpdatedAt time.Time `json:"ultima_atualizacao"`
}

// Materialize unpacks the stored row: items are decoded, city and state split,
// status re-normalized and the computed total filled in.
func (o *Order) Materialize() OrderResponse {
	city, state := DecodeCityState(o.CityState)
	return OrderResponse{
		ID:               o.ID,
		Number:           o.Number,
		EntryDate:        o.EntryDate,
		DeliveryDate:     o.DeliveryDate,
		Note:             o.Note,
		Priority:         o.Priority,
		Status:           NormalizeStatus(string(o.Status)),
		Client:           o.Client,
		ClientPhone:      o.ClientPhone,
		City:             city,
		State:            state,
		TotalValue:       o.TotalValue,
		FreightValue:     o.FreightValue,
		ItemsValue:       o.ItemsValue,
		ComputedTotal:    FormatMoneyBR(SumMoney(o.FreightValue, o.ItemsValue)),
		PaymentType:      o.PaymentType,
		PaymentNote:      o.PaymentNote,
		ShippingMethod:   o.ShippingMethod,
		ShippingMethodID: o.ShippingMethodID,
		Financial:        o.Financial,
		Checked:          o.Checked,
		Printing:         o.Printing,
		Sewing:           o.Sewing,
		Shipping:         o.Shipping,
		Ready:            o.Ready,
		PrintMachine:     o.PrintMachine,
		PrintedAt:        o.PrintedAt,
		Items:            DecodeItems(o.Items),
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
}
