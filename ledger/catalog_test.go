package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fieldstone/inventory-engine/ledger"
)

func TestCatalog_OrderPreservedAndDeduplicated(t *testing.T) {
	c := ledger.NewCatalog("GI Strip", "Cable-95mm", "GI Strip", "Cement OPC-53")

	assert.Equal(t, []string{"GI Strip", "Cable-95mm", "Cement OPC-53"}, c.List())
	assert.Equal(t, 3, c.Len())
	assert.True(t, c.Contains("Cable-95mm"))
	assert.False(t, c.Contains("Unobtainium"))
}

func TestCatalog_ListReturnsCopy(t *testing.T) {
	c := ledger.NewCatalog("GI Strip", "Cable-95mm")

	got := c.List()
	got[0] = "mutated"
	assert.Equal(t, []string{"GI Strip", "Cable-95mm"}, c.List())
}

func TestDefaultCatalog_NonEmptyAndStable(t *testing.T) {
	a, b := ledger.DefaultCatalog(), ledger.DefaultCatalog()
	assert.NotZero(t, a.Len())
	assert.Equal(t, a.List(), b.List())
}
