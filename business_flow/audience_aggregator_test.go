package businessflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregate(t *testing.T) {
	categories := testCategories()

	t.Run("sums selected categories", func(t *testing.T) {
		summary := Aggregate([]string{"A", "B"}, categories)
		assert.Equal(t, int64(25000), summary.RecipientCount)
		assert.InDelta(t, 85.0, summary.HealthScore, 0.0001)
		assert.Equal(t, []string{"Shoppers", "Readers"}, summary.Names)
	})

	t.Run("empty selection", func(t *testing.T) {
		summary := Aggregate(nil, categories)
		assert.Zero(t, summary.RecipientCount)
		assert.Zero(t, summary.HealthScore)
		require.NotNil(t, summary.Names)
		assert.Empty(t, summary.Names)
	})

	t.Run("duplicates count once", func(t *testing.T) {
		summary := Aggregate([]string{"A", "A", "A"}, categories)
		assert.Equal(t, int64(15000), summary.RecipientCount)
		assert.Equal(t, []string{"Shoppers"}, summary.Names)
	})

	t.Run("unknown ids are ignored", func(t *testing.T) {
		summary := Aggregate([]string{"B", "missing"}, categories)
		assert.Equal(t, int64(10000), summary.RecipientCount)
		assert.InDelta(t, 75.0, summary.HealthScore, 0.0001)
	})

	t.Run("selection order does not matter", func(t *testing.T) {
		assert.Equal(t, Aggregate([]string{"A", "B"}, categories).RecipientCount,
			Aggregate([]string{"B", "A"}, categories).RecipientCount)
	})
}
