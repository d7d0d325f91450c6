// ABOUTME: Tests for the service catalog tree
// ABOUTME: Covers default catalog validity, lookups, and validation failures

package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/intake-gateway/internal/session"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestCatalog_Lookups(t *testing.T) {
	c := Default()

	e, ok := c.Entry("2")
	require.True(t, ok)
	assert.Equal(t, KindSubmenu, e.Kind)
	assert.Equal(t, "springs", e.Category)

	arch, ok := e.Option("2")
	require.True(t, ok)
	assert.True(t, arch.Immediate)
	assert.Equal(t, "Arquear mola", arch.ServiceType)

	_, ok = e.Option("9")
	assert.False(t, ok)

	cat, ok := c.Category("tie_rod")
	require.True(t, ok)
	assert.Equal(t, "5", cat.Key)

	_, ok = c.Category("exhaust")
	assert.False(t, ok)

	_, ok = c.Entry(BackKey)
	assert.False(t, ok)
}

func TestCatalog_Validate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Catalog)
	}{
		{"no entries", func(c *Catalog) { c.Entries = nil }},
		{"reserved key", func(c *Catalog) { c.Entries[0].Key = BackKey }},
		{"duplicate key", func(c *Catalog) { c.Entries[1].Key = c.Entries[0].Key }},
		{"missing label", func(c *Catalog) { c.Entries[0].Label = "" }},
		{"unknown kind", func(c *Catalog) { c.Entries[0].Kind = "video" }},
		{"submenu without options", func(c *Catalog) { c.Entries[1].Options = nil }},
		{"submenu bad category", func(c *Catalog) { c.Entries[1].Category = "" }},
		{"duplicate category", func(c *Catalog) { c.Entries[2].Category = c.Entries[1].Category }},
		{"option bad track", func(c *Catalog) { c.Entries[1].Options[0].Track = "express" }},
		{"option missing service type", func(c *Catalog) { c.Entries[1].Options[0].ServiceType = "" }},
		{"option reserved key", func(c *Catalog) { c.Entries[1].Options[0].Key = BackKey }},
		{"description financial topic", func(c *Catalog) { c.Entries[0].Topic = session.TopicFinancial }},
		{"description missing prompt", func(c *Catalog) { c.Entries[0].Prompt = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
