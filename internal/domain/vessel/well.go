package vessel

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/panda-sdl/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// WellStatusNew marks a well that has never been allocated to an experiment.
const WellStatusNew = "new"

// Well is a reaction site on a wellplate. Deposits merge additively and
// withdrawals remove each solution in proportion to its share of the held
// volume, so the well models an ideally mixed liquid.
type Well struct {
	PlateID      int
	WellID       string
	Status       string
	StatusDate   time.Time
	ExperimentID *uuid.UUID
	ProjectID    int
	Volume       decimal.Decimal
	Capacity     decimal.Decimal
	Held         Contents
	Coords       Coordinates
	RadiusMM     float64
}

// NewWell creates an empty well at the given plate location.
func NewWell(plateID int, wellID string, capacity decimal.Decimal, radiusMM float64, coords Coordinates) (*Well, error) {
	if wellID == "" {
		return nil, shared.NewDomainError(shared.ErrInvalidInput.Code, "well id is required")
	}
	if capacity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError(shared.ErrInvalidInput.Code, "well capacity must be positive")
	}
	if radiusMM <= 0 {
		return nil, shared.NewDomainError(shared.ErrInvalidInput.Code, "well radius must be positive")
	}
	return &Well{
		PlateID:    plateID,
		WellID:     wellID,
		Status:     WellStatusNew,
		StatusDate: time.Now(),
		Volume:     decimal.Zero,
		Capacity:   capacity,
		Held:       Contents{},
		Coords:     coords,
		RadiusMM:   radiusMM,
	}, nil
}

func (w *Well) Label() string                  { return fmt.Sprintf("well %s", w.WellID) }
func (w *Well) Kind() Kind                     { return KindWell }
func (w *Well) CurrentVolume() decimal.Decimal { return w.Volume }
func (w *Well) MaxCapacity() decimal.Decimal   { return w.Capacity }
func (w *Well) CurrentContents() Contents      { return w.Held.Clone() }
func (w *Well) Position() Coordinates          { return w.Coords }

// Depth returns the z height of the liquid surface in millimeters, derived
// from the held volume and the cylindrical well geometry. Never below the
// well bottom.
func (w *Well) Depth() float64 {
	area := math.Pi * w.RadiusMM * w.RadiusMM
	vol, _ := w.Volume.Float64()
	depth := vol/area + w.Coords.ZBottom
	if depth < w.Coords.ZBottom {
		return w.Coords.ZBottom
	}
	return depth
}

// CheckDeposit reports whether volume uL fits below capacity.
func (w *Well) CheckDeposit(volume decimal.Decimal) error {
	return checkDeposit(w.Label(), volume, w.Volume, w.Capacity)
}

// CheckWithdraw reports whether volume uL can be drawn.
func (w *Well) CheckWithdraw(volume decimal.Decimal) error {
	return checkWithdraw(w.Label(), volume, w.Volume)
}

// Deposit merges the contents into the well.
func (w *Well) Deposit(contents Contents) error {
	total := contents.Total()
	if err := w.CheckDeposit(total); err != nil {
		return err
	}
	w.Held.Merge(contents)
	w.Volume = Round(w.Volume.Add(total))
	return nil
}

// Withdraw draws volume uL out of the well. Each held solution is reduced in
// proportion to its share of the held volume.
func (w *Well) Withdraw(volume decimal.Decimal) (Contents, error) {
	if err := w.CheckWithdraw(volume); err != nil {
		return nil, err
	}
	removed := w.Held.Split(volume, w.Volume)
	for name, share := range removed {
		remaining := Round(w.Held[name].Sub(share))
		if remaining.IsPositive() {
			w.Held[name] = remaining
		} else {
			delete(w.Held, name)
		}
	}
	w.Volume = Round(w.Volume.Sub(volume))
	if w.Volume.IsZero() {
		w.Held = Contents{}
	}
	return removed, nil
}

// Assign binds the well to an experiment and marks it with the given status.
func (w *Well) Assign(experimentID uuid.UUID, projectID int, status string) error {
	if w.ExperimentID != nil && *w.ExperimentID != experimentID {
		return shared.NewDomainError(shared.ErrConcurrencyConflict.Code,
			fmt.Sprintf("%s is already assigned to experiment %s", w.Label(), w.ExperimentID.String()))
	}
	id := experimentID
	w.ExperimentID = &id
	w.ProjectID = projectID
	w.SetStatus(status)
	return nil
}

// SetStatus updates the well status and stamps the transition time.
func (w *Well) SetStatus(status string) {
	w.Status = status
	w.StatusDate = time.Now()
}

var _ Vessel = (*Well)(nil)
