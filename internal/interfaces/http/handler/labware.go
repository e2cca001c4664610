package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/panda-sdl/backend/internal/domain/pipette"
	"github.com/panda-sdl/backend/internal/domain/vessel"
	"github.com/shopspring/decimal"
)

// LabwareHandler handles deck inspection endpoints: wells, vials and the
// pipette tip ledger. All endpoints are read only; the deck changes through
// runs, not through the API.
type LabwareHandler struct {
	BaseHandler
	wells   vessel.WellRepository
	plates  vessel.PlateRepository
	stocks  vessel.StockRepository
	wastes  vessel.WasteRepository
	pipette pipette.Repository
}

// NewLabwareHandler creates a new LabwareHandler
func NewLabwareHandler(
	wells vessel.WellRepository,
	plates vessel.PlateRepository,
	stocks vessel.StockRepository,
	wastes vessel.WasteRepository,
	pip pipette.Repository,
) *LabwareHandler {
	return &LabwareHandler{
		wells:   wells,
		plates:  plates,
		stocks:  stocks,
		wastes:  wastes,
		pipette: pip,
	}
}

// WellResponse represents one well of a plate
type WellResponse struct {
	PlateID      int             `json:"plate_id"`
	WellID       string          `json:"well_id"`
	Status       string          `json:"status"`
	StatusDate   time.Time       `json:"status_date"`
	ExperimentID *uuid.UUID      `json:"experiment_id,omitempty"`
	ProjectID    int             `json:"project_id"`
	Volume       decimal.Decimal `json:"volume"`
	Capacity     decimal.Decimal `json:"capacity"`
	Contents     vessel.Contents `json:"contents"`
}

// VialResponse represents one stock or waste vial on the deck
type VialResponse struct {
	Position string          `json:"position"`
	Kind     string          `json:"kind"`
	Name     string          `json:"name"`
	Volume   decimal.Decimal `json:"volume"`
	Capacity decimal.Decimal `json:"capacity"`
	Contents vessel.Contents `json:"contents"`
}

// PipetteResponse represents the shared tip ledger
type PipetteResponse struct {
	Capacity     decimal.Decimal `json:"capacity"`
	Volume       decimal.Decimal `json:"volume"`
	LiquidVolume decimal.Decimal `json:"liquid_volume"`
	Contents     vessel.Contents `json:"contents"`
	Uses         int             `json:"uses"`
}

func newWellResponse(w *vessel.Well) WellResponse {
	return WellResponse{
		PlateID:      w.PlateID,
		WellID:       w.WellID,
		Status:       w.Status,
		StatusDate:   w.StatusDate,
		ExperimentID: w.ExperimentID,
		ProjectID:    w.ProjectID,
		Volume:       w.Volume,
		Capacity:     w.Capacity,
		Contents:     w.CurrentContents(),
	}
}

// ListWells returns every well of a plate in well order. Without a plate_id
// query parameter the current plate is used.
func (h *LabwareHandler) ListWells(c *gin.Context) {
	ctx := c.Request.Context()

	plateID := 0
	if raw := c.Query("plate_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			h.BadRequest(c, "Invalid plate_id")
			return
		}
		plateID = id
	} else {
		id, err := h.plates.CurrentPlateID(ctx)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		plateID = id
	}

	wells, err := h.wells.FindByPlate(ctx, plateID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]WellResponse, 0, len(wells))
	for i := range wells {
		responses = append(responses, newWellResponse(&wells[i]))
	}

	h.Success(c, responses)
}

// GetWell returns one well of the current plate
func (h *LabwareHandler) GetWell(c *gin.Context) {
	ctx := c.Request.Context()

	plateID, err := h.plates.CurrentPlateID(ctx)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	well, err := h.wells.Find(ctx, plateID, c.Param("well_id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, newWellResponse(well))
}

// ListVials returns every stock and waste vial on the deck
func (h *LabwareHandler) ListVials(c *gin.Context) {
	ctx := c.Request.Context()

	stocks, err := h.stocks.FindAll(ctx)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	wastes, err := h.wastes.FindAll(ctx)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]VialResponse, 0, len(stocks)+len(wastes))
	for i := range stocks {
		v := &stocks[i]
		responses = append(responses, VialResponse{
			Position: v.PositionLabel,
			Kind:     string(vessel.KindStock),
			Name:     v.Name,
			Volume:   v.Volume,
			Capacity: v.Capacity,
			Contents: v.CurrentContents(),
		})
	}
	for i := range wastes {
		v := &wastes[i]
		responses = append(responses, VialResponse{
			Position: v.PositionLabel,
			Kind:     string(vessel.KindWaste),
			Name:     v.Name,
			Volume:   v.Volume,
			Capacity: v.Capacity,
			Contents: v.CurrentContents(),
		})
	}

	h.Success(c, responses)
}

// GetPipette returns the current tip ledger
func (h *LabwareHandler) GetPipette(c *gin.Context) {
	tracker, err := h.pipette.Load(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, PipetteResponse{
		Capacity:     tracker.Capacity,
		Volume:       tracker.Volume,
		LiquidVolume: tracker.LiquidVolume(),
		Contents:     tracker.Held.Clone(),
		Uses:         tracker.Uses,
	})
}
