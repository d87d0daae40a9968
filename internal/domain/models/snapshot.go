package models

import "time"

// SnapshotItem is one material as captured in an inventory snapshot.
type SnapshotItem struct {
	Key   string `bson:"key" json:"key"`
	Name  string `bson:"name" json:"name"`
	Model string `bson:"model,omitempty" json:"model,omitempty"`
	Spec  string `bson:"spec,omitempty" json:"spec,omitempty"`
	Unit  string `bson:"unit" json:"unit"`
	Stock int    `bson:"stock" json:"stock"`
}

// InventorySnapshot is the materialized inventory at a point in time, archived in MongoDB.
type InventorySnapshot struct {
	Date       time.Time      `bson:"date" json:"date"`
	Items      []SnapshotItem `bson:"items" json:"items"`
	TotalItems int            `bson:"total_items" json:"total_items"`
	TotalUnits int            `bson:"total_units" json:"total_units"`
	LowStock   []SnapshotItem `bson:"low_stock" json:"low_stock"`
	CreatedAt  time.Time      `bson:"created_at" json:"created_at"`
}
