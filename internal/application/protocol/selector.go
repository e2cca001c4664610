package protocol

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/panda-sdl/backend/internal/domain/shared"
	"github.com/panda-sdl/backend/internal/domain/vessel"
	"github.com/shopspring/decimal"
)

// SelectSolution returns the first stock vial, in deck order, that holds the
// named solution with the requested volume still reachable above the dead
// volume margin.
func (s *Service) SelectSolution(ctx context.Context, name string, volume decimal.Decimal) (*vessel.StockVial, error) {
	if s.stocks == nil {
		return nil, shared.NewDomainError(shared.ErrInvalidState.Code, "no stock repository configured")
	}
	vials, err := s.stocks.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(vials, func(i, j int) bool { return vials[i].PositionLabel < vials[j].PositionLabel })

	want := strings.ToLower(strings.TrimSpace(name))
	for i := range vials {
		vial := &vials[i]
		if !strings.EqualFold(vial.Name, want) {
			continue
		}
		margin := vial.Capacity.Mul(s.consts.StockMarginFraction)
		if vial.Volume.Sub(margin).GreaterThan(volume) {
			return vial, nil
		}
	}
	return nil, shared.NewDomainError(shared.ErrNoAvailableSolution.Code, fmt.Sprintf(
		"no stock vial can supply %s uL of %s", volume.String(), want))
}

// SelectWaste returns the first waste vial, in deck order, with headroom for
// the given volume.
func (s *Service) SelectWaste(ctx context.Context, volume decimal.Decimal) (*vessel.WasteVial, error) {
	if s.wastes == nil {
		return nil, shared.NewDomainError(shared.ErrInvalidState.Code, "no waste repository configured")
	}
	vials, err := s.wastes.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(vials, func(i, j int) bool { return vials[i].PositionLabel < vials[j].PositionLabel })

	for i := range vials {
		vial := &vials[i]
		if vial.CheckDeposit(volume) == nil {
			return vial, nil
		}
	}
	return nil, shared.NewDomainError(shared.ErrNoAvailableWaste.Code, fmt.Sprintf(
		"no waste vial has headroom for %s uL", volume.String()))
}
