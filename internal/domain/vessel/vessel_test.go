package vessel

import (
	"math"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func createTestStockVial(t *testing.T, name string, volume, capacity string) *StockVial {
	t.Helper()
	vial, err := NewStockVial("vial_1", name, d(volume), d(capacity), Coordinates{X: 10, Y: 20, ZTop: 50, ZBottom: 5})
	require.NoError(t, err)
	return vial
}

func createTestWell(t *testing.T, capacity string) *Well {
	t.Helper()
	well, err := NewWell(1, "A1", d(capacity), 3.5, Coordinates{X: 100, Y: 80, ZTop: 40, ZBottom: 2})
	require.NoError(t, err)
	return well
}

func TestStockVial_Withdraw(t *testing.T) {
	t.Run("reduces volume but not composition", func(t *testing.T) {
		vial := createTestStockVial(t, "edot", "5000", "20000")

		removed, err := vial.Withdraw(d("120"))

		require.NoError(t, err)
		assert.True(t, vial.Volume.Equal(d("4880")), "volume: %s", vial.Volume)
		assert.True(t, removed["edot"].Equal(d("120")))
		assert.True(t, vial.Composition["edot"].Equal(d("5000")), "composition must stay declared")
	})

	t.Run("overdraft leaves state unchanged", func(t *testing.T) {
		vial := createTestStockVial(t, "edot", "100", "20000")

		_, err := vial.Withdraw(d("100.000001"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot remove")
		assert.True(t, vial.Volume.Equal(d("100")))
	})

	t.Run("exact drain succeeds", func(t *testing.T) {
		vial := createTestStockVial(t, "licl", "100", "20000")

		removed, err := vial.Withdraw(d("100"))

		require.NoError(t, err)
		assert.True(t, vial.Volume.IsZero())
		assert.True(t, removed["licl"].Equal(d("100")))
	})

	t.Run("deposit is rejected", func(t *testing.T) {
		vial := createTestStockVial(t, "edot", "100", "20000")

		err := vial.Deposit(Contents{"edot": d("10")})

		require.Error(t, err)
		assert.True(t, vial.Volume.Equal(d("100")))
	})
}

func TestWasteVial_Deposit(t *testing.T) {
	newWaste := func(t *testing.T, capacity string) *WasteVial {
		t.Helper()
		w, err := NewWasteVial("waste_1", d(capacity), Coordinates{})
		require.NoError(t, err)
		return w
	}

	t.Run("merges contents additively", func(t *testing.T) {
		waste := newWaste(t, "20000")

		require.NoError(t, waste.Deposit(Contents{"edot": d("30"), "water": d("70")}))
		require.NoError(t, waste.Deposit(Contents{"water": d("50")}))

		assert.True(t, waste.Volume.Equal(d("150")))
		assert.True(t, waste.Held["edot"].Equal(d("30")))
		assert.True(t, waste.Held["water"].Equal(d("120")))
	})

	t.Run("overfill leaves state unchanged", func(t *testing.T) {
		waste := newWaste(t, "100")
		require.NoError(t, waste.Deposit(Contents{"water": d("90")}))

		err := waste.Deposit(Contents{"water": d("10.000001")})

		require.Error(t, err)
		assert.True(t, waste.Volume.Equal(d("90")))
		assert.True(t, waste.Held["water"].Equal(d("90")))
	})

	t.Run("withdrawal is rejected", func(t *testing.T) {
		waste := newWaste(t, "100")
		require.NoError(t, waste.Deposit(Contents{"water": d("50")}))

		_, err := waste.Withdraw(d("10"))

		require.Error(t, err)
		assert.True(t, waste.Volume.Equal(d("50")))
	})
}

func TestWell_Withdraw(t *testing.T) {
	t.Run("proportional split", func(t *testing.T) {
		well := createTestWell(t, "300")
		require.NoError(t, well.Deposit(Contents{"A": d("60"), "B": d("40")}))

		removed, err := well.Withdraw(d("50"))

		require.NoError(t, err)
		assert.True(t, removed["A"].Equal(d("30")), "removed A: %s", removed["A"])
		assert.True(t, removed["B"].Equal(d("20")), "removed B: %s", removed["B"])
		assert.True(t, well.Held["A"].Equal(d("30")))
		assert.True(t, well.Held["B"].Equal(d("20")))
		assert.True(t, well.Volume.Equal(d("50")))
	})

	t.Run("conservation across a mutation chain", func(t *testing.T) {
		well := createTestWell(t, "300")
		require.NoError(t, well.Deposit(Contents{"edot": d("33.333333"), "licl": d("66.666667")}))
		_, err := well.Withdraw(d("25"))
		require.NoError(t, err)
		require.NoError(t, well.Deposit(Contents{"water": d("10.5")}))
		_, err = well.Withdraw(d("40.25"))
		require.NoError(t, err)

		drift := well.Held.Total().Sub(well.Volume).Abs()
		assert.True(t, drift.LessThanOrEqual(d("0.000001")), "drift: %s", drift)
	})

	t.Run("full drain clears contents", func(t *testing.T) {
		well := createTestWell(t, "300")
		require.NoError(t, well.Deposit(Contents{"A": d("120")}))

		_, err := well.Withdraw(d("120"))

		require.NoError(t, err)
		assert.True(t, well.Volume.IsZero())
		assert.Empty(t, well.Held)
	})

	t.Run("overdraft leaves state unchanged", func(t *testing.T) {
		well := createTestWell(t, "300")
		require.NoError(t, well.Deposit(Contents{"A": d("100")}))

		_, err := well.Withdraw(d("150"))

		require.Error(t, err)
		assert.True(t, well.Volume.Equal(d("100")))
		assert.True(t, well.Held["A"].Equal(d("100")))
	})
}

func TestVessels_RejectedMutationLeavesStateUnchanged(t *testing.T) {
	rng := rand.New(rand.NewSource(20260827))
	randVol := func(maxUL int64) decimal.Decimal {
		return decimal.New(rng.Int63n(maxUL*1000000+1), -6)
	}
	snapshot := func(volume decimal.Decimal, held Contents) (string, map[string]string) {
		contents := make(map[string]string, len(held))
		for name, v := range held {
			contents[name] = v.String()
		}
		return volume.String(), contents
	}

	t.Run("stock withdrawals", func(t *testing.T) {
		for i := 0; i < 200; i++ {
			vial, err := NewStockVial("vial_1", "edot", randVol(1000), d("1000"), Coordinates{})
			require.NoError(t, err)
			volume, composition := snapshot(vial.Volume, vial.Composition)

			if _, err := vial.Withdraw(randVol(2000)); err != nil {
				assert.Equal(t, volume, vial.Volume.String(), "iteration %d", i)
				gotVolume, gotComposition := snapshot(vial.Volume, vial.Composition)
				assert.Equal(t, volume, gotVolume, "iteration %d", i)
				assert.Equal(t, composition, gotComposition, "iteration %d", i)
			}
		}
	})

	t.Run("waste deposits", func(t *testing.T) {
		for i := 0; i < 200; i++ {
			waste, err := NewWasteVial("waste_1", d("1000"), Coordinates{})
			require.NoError(t, err)
			require.NoError(t, waste.Deposit(Contents{"water": randVol(1000)}))
			volume, held := snapshot(waste.Volume, waste.Held)

			if err := waste.Deposit(Contents{"edot": randVol(2000)}); err != nil {
				gotVolume, gotHeld := snapshot(waste.Volume, waste.Held)
				assert.Equal(t, volume, gotVolume, "iteration %d", i)
				assert.Equal(t, held, gotHeld, "iteration %d", i)
			}
		}
	})

	t.Run("well deposits and withdrawals", func(t *testing.T) {
		for i := 0; i < 200; i++ {
			well, err := NewWell(1, "A1", d("300"), 3.5, Coordinates{})
			require.NoError(t, err)
			require.NoError(t, well.Deposit(Contents{"edot": randVol(100), "licl": randVol(100)}))
			volume, held := snapshot(well.Volume, well.Held)

			var mutErr error
			if rng.Intn(2) == 0 {
				mutErr = well.Deposit(Contents{"water": randVol(600)})
			} else {
				_, mutErr = well.Withdraw(randVol(600))
			}
			if mutErr != nil {
				gotVolume, gotHeld := snapshot(well.Volume, well.Held)
				assert.Equal(t, volume, gotVolume, "iteration %d", i)
				assert.Equal(t, held, gotHeld, "iteration %d", i)
			}
		}
	})
}

func TestWell_Depth(t *testing.T) {
	well := createTestWell(t, "300")

	t.Run("empty well sits at the bottom", func(t *testing.T) {
		assert.Equal(t, well.Coords.ZBottom, well.Depth())
	})

	t.Run("depth follows cylinder geometry", func(t *testing.T) {
		require.NoError(t, well.Deposit(Contents{"water": d("150")}))

		area := math.Pi * 3.5 * 3.5
		assert.InDelta(t, 150/area+well.Coords.ZBottom, well.Depth(), 1e-9)
	})
}

func TestWell_Assign(t *testing.T) {
	expA := uuid.New()
	expB := uuid.New()

	t.Run("binds experiment and stamps status", func(t *testing.T) {
		well := createTestWell(t, "300")

		require.NoError(t, well.Assign(expA, 7, "queued"))

		require.NotNil(t, well.ExperimentID)
		assert.Equal(t, expA, *well.ExperimentID)
		assert.Equal(t, 7, well.ProjectID)
		assert.Equal(t, "queued", well.Status)
		assert.False(t, well.StatusDate.IsZero())
	})

	t.Run("rejects double assignment", func(t *testing.T) {
		well := createTestWell(t, "300")
		require.NoError(t, well.Assign(expA, 7, "queued"))

		err := well.Assign(expB, 7, "queued")

		require.Error(t, err)
		assert.Equal(t, expA, *well.ExperimentID)
	})

	t.Run("reassigning the same experiment is idempotent", func(t *testing.T) {
		well := createTestWell(t, "300")
		require.NoError(t, well.Assign(expA, 7, "queued"))
		require.NoError(t, well.Assign(expA, 7, "running"))
		assert.Equal(t, "running", well.Status)
	})
}
