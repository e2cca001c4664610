package pipette

import (
	"testing"

	"github.com/panda-sdl/backend/internal/domain/vessel"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func createTestTracker(t *testing.T) *Tracker {
	t.Helper()
	tracker, err := NewTracker(d("200"))
	require.NoError(t, err)
	return tracker
}

func TestTracker_AspirateDispense(t *testing.T) {
	t.Run("air and liquid are tracked separately", func(t *testing.T) {
		tracker := createTestTracker(t)

		require.NoError(t, tracker.AddAir(d("20")))
		require.NoError(t, tracker.AddLiquid(vessel.Contents{"edot": d("120")}))
		require.NoError(t, tracker.AddAir(d("5")))

		assert.True(t, tracker.Volume.Equal(d("145")))
		assert.True(t, tracker.LiquidVolume().Equal(d("120")))
		assert.Equal(t, 1, tracker.Uses)
	})

	t.Run("aspiration beyond capacity is rejected", func(t *testing.T) {
		tracker := createTestTracker(t)
		require.NoError(t, tracker.AddLiquid(vessel.Contents{"water": d("150")}))

		err := tracker.AddLiquid(vessel.Contents{"water": d("60")})

		require.Error(t, err)
		assert.True(t, tracker.Volume.Equal(d("150")))
	})

	t.Run("dispense splits the held mixture proportionally", func(t *testing.T) {
		tracker := createTestTracker(t)
		require.NoError(t, tracker.AddLiquid(vessel.Contents{"A": d("60"), "B": d("40")}))

		removed, err := tracker.RemoveLiquid(d("50"))

		require.NoError(t, err)
		assert.True(t, removed["A"].Equal(d("30")))
		assert.True(t, removed["B"].Equal(d("20")))
		assert.True(t, tracker.LiquidVolume().Equal(d("50")))
	})

	t.Run("dispense beyond held liquid is rejected", func(t *testing.T) {
		tracker := createTestTracker(t)
		require.NoError(t, tracker.AddAir(d("25")))
		require.NoError(t, tracker.AddLiquid(vessel.Contents{"A": d("100")}))

		_, err := tracker.RemoveLiquid(d("110"))

		require.Error(t, err)
		assert.True(t, tracker.LiquidVolume().Equal(d("100")))
	})

	t.Run("vent clamps at empty", func(t *testing.T) {
		tracker := createTestTracker(t)
		require.NoError(t, tracker.AddAir(d("10")))

		tracker.Vent(d("25"))

		assert.True(t, tracker.Volume.IsZero())
	})

	t.Run("reset empties the ledger", func(t *testing.T) {
		tracker := createTestTracker(t)
		require.NoError(t, tracker.AddLiquid(vessel.Contents{"A": d("80")}))

		tracker.Reset()

		assert.True(t, tracker.Volume.IsZero())
		assert.Empty(t, tracker.Held)
	})
}
