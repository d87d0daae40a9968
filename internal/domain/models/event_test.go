package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePostback(t *testing.T) {
	pb := ParsePostback("stock_select&action=outbound&key=T01001")

	assert.True(t, pb.Has("stock_select"))
	assert.Equal(t, "outbound", pb.Get("action"))
	assert.Equal(t, "T01001", pb.Get("key"))
	assert.Equal(t, FlowStock, pb.Flow())
	assert.False(t, pb.IsAction())
	assert.Empty(t, pb.Action())
}

func TestParsePostbackAction(t *testing.T) {
	pb := ParsePostback("action=add")

	assert.True(t, pb.IsAction())
	assert.Equal(t, "add", pb.Action())
}

func TestParsePostbackKeepsMalformedEscape(t *testing.T) {
	pb := ParsePostback("add_unit=100%")
	assert.Equal(t, "100%", pb.Get("add_unit"))

	pb = ParsePostback("add_category=" + "E%2F01")
	assert.Equal(t, "E/01", pb.Get("add_category"))
}

func TestStepFlow(t *testing.T) {
	flow, ok := StepEditStockAwaitingType.Flow()
	assert.True(t, ok)
	assert.Equal(t, FlowEdit, flow)

	_, ok = Step("unknown_step").Flow()
	assert.False(t, ok)
	assert.False(t, Flow("report").Known())
}

func TestSignedQuantity(t *testing.T) {
	assert.Equal(t, -4, SignedQuantity(KindOutbound, 4))
	assert.Equal(t, -4, SignedQuantity(KindOutbound, -4))
	assert.Equal(t, 4, SignedQuantity(KindInbound, -4))
	assert.Equal(t, "T01001", CompositeKey(" t01", "001 "))
}
