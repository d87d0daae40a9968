package models

import (
	"strings"
	"time"
)

// Kind classifies a ledger row.
type Kind string

const (
	KindCreated  Kind = "Created"
	KindInbound  Kind = "Inbound"
	KindOutbound Kind = "Outbound"
)

// Valid reports whether k is one of the known record kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindCreated, KindInbound, KindOutbound:
		return true
	}
	return false
}

// IsMovement reports whether k is a stock movement rather than an item creation.
func (k Kind) IsMovement() bool {
	return k == KindInbound || k == KindOutbound
}

// Status marks whether a ledger row still contributes to stock.
type Status string

const (
	StatusValid Status = "Valid"
	StatusVoid  Status = "Void"
)

// Ledger column positions, zero based, in sheet order.
const (
	ColCategory = iota
	ColSerial
	ColName
	ColModel
	ColSpec
	ColUnit
	ColQuantity
	ColKind
	ColStatus
	ColVoidReason
	ColActor
	ColTimestamp
	ColPhoto

	LedgerColumns
)

// TimestampLayout is how ledger timestamps are written to the sheet.
const TimestampLayout = "2006-01-02 15:04:05"

// Record is one row of the transaction ledger.
type Record struct {
	Category    string    `json:"category"`
	Serial      string    `json:"serial"`
	Name        string    `json:"name"`
	Model       string    `json:"model,omitempty"`
	Spec        string    `json:"spec,omitempty"`
	Unit        string    `json:"unit"`
	Quantity    int       `json:"quantity"`
	Kind        Kind      `json:"kind"`
	Status      Status    `json:"status"`
	VoidReason  string    `json:"void_reason,omitempty"`
	ActorName   string    `json:"actor_name"`
	Timestamp   time.Time `json:"timestamp"`
	PhotoRef    string    `json:"photo_ref,omitempty"`
	RowPosition int       `json:"row_position"`
}

// Key returns the composite key of the item the record belongs to.
func (r Record) Key() string {
	return CompositeKey(r.Category, r.Serial)
}

// IsVoid reports whether the record has been voided.
func (r Record) IsVoid() bool {
	return r.Status == StatusVoid
}

// Magnitude returns the absolute quantity of the record.
func (r Record) Magnitude() int {
	if r.Quantity < 0 {
		return -r.Quantity
	}
	return r.Quantity
}

// Values renders the record as a ledger row in column order.
func (r Record) Values() []interface{} {
	row := make([]interface{}, LedgerColumns)
	row[ColCategory] = r.Category
	row[ColSerial] = r.Serial
	row[ColName] = r.Name
	row[ColModel] = r.Model
	row[ColSpec] = r.Spec
	row[ColUnit] = r.Unit
	row[ColQuantity] = r.Quantity
	row[ColKind] = string(r.Kind)
	row[ColStatus] = string(r.Status)
	row[ColVoidReason] = r.VoidReason
	row[ColActor] = r.ActorName
	row[ColTimestamp] = r.Timestamp.Format(TimestampLayout)
	row[ColPhoto] = r.PhotoRef
	return row
}

// SignedQuantity normalizes a magnitude to the sign implied by kind.
func SignedQuantity(kind Kind, quantity int) int {
	if quantity < 0 {
		quantity = -quantity
	}
	if kind == KindOutbound {
		return -quantity
	}
	return quantity
}

// Material is the derived current view of one inventory item.
type Material struct {
	Category string `json:"category"`
	Serial   string `json:"serial"`
	Name     string `json:"name"`
	Model    string `json:"model,omitempty"`
	Spec     string `json:"spec,omitempty"`
	Unit     string `json:"unit"`
	PhotoRef string `json:"photo_ref,omitempty"`
	Stock    int    `json:"stock"`
	// Records counts the Valid rows folded into the material.
	Records  int    `json:"records"`
}

// Key returns the composite key of the material.
func (m Material) Key() string {
	return CompositeKey(m.Category, m.Serial)
}

// CompositeKey joins category and serial into the lookup key used across the ledger.
func CompositeKey(category, serial string) string {
	return NormalizeKey(category + serial)
}

// NormalizeKey upper-cases a user supplied key and strips whitespace.
func NormalizeKey(key string) string {
	return strings.ToUpper(strings.Join(strings.Fields(key), ""))
}
