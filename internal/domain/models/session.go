package models

import "time"

// Flow identifies one of the fixed conversations.
type Flow string

const (
	FlowQuery  Flow = "query"
	FlowAdd    Flow = "add"
	FlowStock  Flow = "stock"
	FlowEdit   Flow = "edit"
	FlowDelete Flow = "delete"
)

// Known reports whether f is one of the five flows.
func (f Flow) Known() bool {
	switch f {
	case FlowQuery, FlowAdd, FlowStock, FlowEdit, FlowDelete:
		return true
	}
	return false
}

// Step is a position inside a flow. Its string form is what gets persisted.
type Step string

const (
	StepQueryAwaitingType   Step = "query_awaiting_type"
	StepQueryAwaitingName   Step = "query_awaiting_name"
	StepQueryAwaitingSerial Step = "query_awaiting_serial"

	StepAddAwaitingCategory     Step = "add_awaiting_category"
	StepAddAwaitingUnitChoice   Step = "add_awaiting_unit_choice"
	StepAddAwaitingManualUnit   Step = "add_awaiting_manual_unit"
	StepAddAwaitingName         Step = "add_awaiting_name"
	StepAddAwaitingModel        Step = "add_awaiting_model"
	StepAddAwaitingSpec         Step = "add_awaiting_spec"
	StepAddAwaitingQuantity     Step = "add_awaiting_quantity"
	StepAddAwaitingPhoto        Step = "add_awaiting_photo"
	StepAddAwaitingConfirmation Step = "add_awaiting_confirmation"

	StepStockAwaitingSearchType   Step = "stock_awaiting_search_type"
	StepStockAwaitingSearchInput  Step = "stock_awaiting_search_input"
	StepStockAwaitingQuantity     Step = "stock_awaiting_quantity"
	StepStockAwaitingConfirmation Step = "stock_awaiting_confirmation"

	StepEditNewAwaitingChoice     Step = "edit_new_awaiting_choice"
	StepEditNewAwaitingValue      Step = "edit_new_awaiting_new_value"
	StepEditNewAwaitingUnitChoice Step = "edit_new_awaiting_unit_choice"
	StepEditNewAwaitingManualUnit Step = "edit_new_awaiting_manual_unit"
	StepEditStockAwaitingChoice   Step = "edit_stock_awaiting_choice"
	StepEditStockAwaitingQuantity Step = "edit_stock_awaiting_quantity"
	StepEditStockAwaitingType     Step = "edit_stock_awaiting_type"

	StepDeleteAwaitingConfirmation Step = "delete_awaiting_confirmation"
)

var stepFlows = map[Step]Flow{
	StepQueryAwaitingType:   FlowQuery,
	StepQueryAwaitingName:   FlowQuery,
	StepQueryAwaitingSerial: FlowQuery,

	StepAddAwaitingCategory:     FlowAdd,
	StepAddAwaitingUnitChoice:   FlowAdd,
	StepAddAwaitingManualUnit:   FlowAdd,
	StepAddAwaitingName:         FlowAdd,
	StepAddAwaitingModel:        FlowAdd,
	StepAddAwaitingSpec:         FlowAdd,
	StepAddAwaitingQuantity:     FlowAdd,
	StepAddAwaitingPhoto:        FlowAdd,
	StepAddAwaitingConfirmation: FlowAdd,

	StepStockAwaitingSearchType:   FlowStock,
	StepStockAwaitingSearchInput:  FlowStock,
	StepStockAwaitingQuantity:     FlowStock,
	StepStockAwaitingConfirmation: FlowStock,

	StepEditNewAwaitingChoice:     FlowEdit,
	StepEditNewAwaitingValue:      FlowEdit,
	StepEditNewAwaitingUnitChoice: FlowEdit,
	StepEditNewAwaitingManualUnit: FlowEdit,
	StepEditStockAwaitingChoice:   FlowEdit,
	StepEditStockAwaitingQuantity: FlowEdit,
	StepEditStockAwaitingType:     FlowEdit,

	StepDeleteAwaitingConfirmation: FlowDelete,
}

// Flow returns the flow owning the step. Unknown steps report false.
func (s Step) Flow() (Flow, bool) {
	f, ok := stepFlows[s]
	return f, ok
}

// Session is the per-user conversation state. Only the draft belonging to
// the flow of Step is populated.
type Session struct {
	Step      Step         `json:"step"`
	Add       *AddDraft    `json:"add,omitempty"`
	Stock     *StockDraft  `json:"stock,omitempty"`
	Edit      *EditDraft   `json:"edit,omitempty"`
	Delete    *DeleteDraft `json:"delete,omitempty"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// AddDraft accumulates a new item across the add flow.
type AddDraft struct {
	Category string `json:"category" validate:"required"`
	Unit     string `json:"unit" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Model    string `json:"model,omitempty"`
	Spec     string `json:"spec,omitempty"`
	Quantity int    `json:"quantity" validate:"gt=0"`
	PhotoRef string `json:"photo_ref,omitempty"`
}

// SearchMode selects how an item is looked up.
type SearchMode string

const (
	SearchByName   SearchMode = "by_name"
	SearchBySerial SearchMode = "by_serial"
)

// StockDraft holds an in-progress inbound or outbound movement.
type StockDraft struct {
	Direction Kind       `json:"direction" validate:"oneof=Inbound Outbound"`
	SearchBy  SearchMode `json:"search_by,omitempty"`
	Item      *Material  `json:"item,omitempty" validate:"required"`
	Quantity  int        `json:"quantity,omitempty" validate:"gt=0"`
}

// EditMode distinguishes corrections of item creations from movement corrections.
type EditMode string

const (
	EditNewItem  EditMode = "new"
	EditMovement EditMode = "stock"
)

// EditField names a field that can be corrected.
type EditField string

const (
	FieldName     EditField = "name"
	FieldModel    EditField = "model"
	FieldSpec     EditField = "spec"
	FieldUnit     EditField = "unit"
	FieldQuantity EditField = "quantity"
	FieldType     EditField = "type"
)

// EditDraft carries the original record and its corrected copy. Corrected
// keeps the quantity as a magnitude; the sign is applied when it is saved.
type EditDraft struct {
	Mode      EditMode  `json:"mode"`
	Row       int       `json:"row" validate:"gt=1"`
	Original  Record    `json:"original"`
	Corrected Record    `json:"corrected"`
	Pending   EditField `json:"pending,omitempty"`
	Updated   EditField `json:"updated,omitempty"`
}

// DeleteDraft remembers which row the user asked to delete.
type DeleteDraft struct {
	Row  int    `json:"row"`
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}
