package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/panda-sdl/backend/internal/application/scheduling"
	"github.com/panda-sdl/backend/internal/domain/experiment"
	"github.com/panda-sdl/backend/internal/domain/shared"
	"github.com/panda-sdl/backend/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
)

// ExperimentHandler handles experiment submission and inspection endpoints
type ExperimentHandler struct {
	BaseHandler
	allocator   *scheduling.Allocator
	scheduler   *scheduling.Scheduler
	experiments experiment.Repository
	results     experiment.ResultRepository
	queue       scheduling.QueueRepository
}

// NewExperimentHandler creates a new ExperimentHandler
func NewExperimentHandler(
	allocator *scheduling.Allocator,
	scheduler *scheduling.Scheduler,
	experiments experiment.Repository,
	results experiment.ResultRepository,
	queue scheduling.QueueRepository,
) *ExperimentHandler {
	return &ExperimentHandler{
		allocator:   allocator,
		scheduler:   scheduler,
		experiments: experiments,
		results:     results,
		queue:       queue,
	}
}

// SolutionRequestDTO is one named solution and how much of it to dispense
type SolutionRequestDTO struct {
	Volume        decimal.Decimal `json:"volume" binding:"required"`
	Concentration decimal.Decimal `json:"concentration"`
}

// CreateExperimentRequest represents a request to submit a new experiment
type CreateExperimentRequest struct {
	Name       string                        `json:"name" binding:"required,min=1,max=255"`
	ProtocolID int                           `json:"protocol_id" binding:"required,gt=0"`
	ProjectID  int                           `json:"project_id" binding:"gte=0"`
	Priority   *int                          `json:"priority" binding:"omitempty,gte=0"`
	PumpRate   decimal.Decimal               `json:"pump_rate"`
	WellID     string                        `json:"well_id" binding:"omitempty,max=8"`
	Solutions  map[string]SolutionRequestDTO `json:"solutions" binding:"required,min=1"`
	Params     experiment.StageParams        `json:"params"`
}

// defaultPriority is assigned when a submission does not name one.
const defaultPriority = 10

// ExperimentResponse represents an experiment in API responses
type ExperimentResponse struct {
	ID         uuid.UUID            `json:"id"`
	Name       string               `json:"name"`
	ProtocolID int                  `json:"protocol_id"`
	ProjectID  int                  `json:"project_id"`
	Priority   int                  `json:"priority"`
	PlateID    *int                 `json:"plate_id,omitempty"`
	WellID     *string              `json:"well_id,omitempty"`
	PumpRate   decimal.Decimal      `json:"pump_rate"`
	Solutions  experiment.Solutions `json:"solutions"`
	Status     string               `json:"status"`
	StatusDate time.Time            `json:"status_date"`
	Version    int                  `json:"version"`
	CreatedAt  time.Time            `json:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at"`
	Results    []ResultResponse     `json:"results,omitempty"`
}

// ResultResponse represents one measured value of a run
type ResultResponse struct {
	ID          uint      `json:"id"`
	ResultType  string    `json:"result_type"`
	ResultValue string    `json:"result_value"`
	CreatedAt   time.Time `json:"created_at"`
}

// QueueEntryResponse represents one waiting experiment in the queue
type QueueEntryResponse struct {
	ExperimentID uuid.UUID `json:"experiment_id"`
	Name         string    `json:"name"`
	Priority     int       `json:"priority"`
	PlateID      int       `json:"plate_id"`
	WellID       string    `json:"well_id"`
	ProjectID    int       `json:"project_id"`
	QueuedAt     time.Time `json:"queued_at"`
}

func newExperimentResponse(exp *experiment.Experiment) ExperimentResponse {
	return ExperimentResponse{
		ID:         exp.ID,
		Name:       exp.Name,
		ProtocolID: exp.ProtocolID,
		ProjectID:  exp.ProjectID,
		Priority:   exp.Priority,
		PlateID:    exp.PlateID,
		WellID:     exp.WellID,
		PumpRate:   exp.PumpRate,
		Solutions:  exp.Solutions,
		Status:     string(exp.Status),
		StatusDate: exp.StatusDate,
		Version:    exp.Version,
		CreatedAt:  exp.CreatedAt,
		UpdatedAt:  exp.UpdatedAt,
	}
}

func newResultResponses(results []experiment.Result) []ResultResponse {
	out := make([]ResultResponse, 0, len(results))
	for _, r := range results {
		out = append(out, ResultResponse{
			ID:          r.ID,
			ResultType:  r.ResultType,
			ResultValue: r.ResultValue,
			CreatedAt:   r.CreatedAt,
		})
	}
	return out
}

// Create accepts a new experiment, allocates a well on the current plate and
// queues it. Responds 202 since the run happens later; a full plate comes
// back as 409 so submitting clients back off.
func (h *ExperimentHandler) Create(c *gin.Context) {
	var req CreateExperimentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	priority := defaultPriority
	if req.Priority != nil {
		priority = *req.Priority
	}

	solutions := make(experiment.Solutions, len(req.Solutions))
	for name, s := range req.Solutions {
		solutions[name] = experiment.SolutionRequest{
			Volume:        s.Volume,
			Concentration: s.Concentration,
		}
	}

	exp, err := experiment.NewExperiment(req.Name, req.ProtocolID, req.ProjectID, priority, solutions, req.Params)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	exp.PumpRate = req.PumpRate

	if err := h.allocator.Enqueue(c.Request.Context(), exp, req.WellID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.Accepted(c, newExperimentResponse(exp))
}

// List returns experiments, optionally filtered by status
func (h *ExperimentHandler) List(c *gin.Context) {
	listReq := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&listReq); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter := shared.Filter{
		Page:     listReq.Page,
		PageSize: listReq.PageSize,
		OrderBy:  listReq.OrderBy,
		OrderDir: listReq.OrderDir,
		Filters:  make(map[string]interface{}),
	}
	if status := c.Query("status"); status != "" {
		if !experiment.Status(status).IsValid() {
			h.BadRequest(c, "unknown status filter: "+status)
			return
		}
		filter.Filters["status"] = status
	}

	experiments, total, err := h.experiments.FindAll(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]ExperimentResponse, 0, len(experiments))
	for i := range experiments {
		responses = append(responses, newExperimentResponse(&experiments[i]))
	}

	h.SuccessWithMeta(c, responses, total, filter.Page, filter.PageSize)
}

// GetByID returns one experiment with its recorded results
func (h *ExperimentHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid experiment ID")
		return
	}

	exp, err := h.experiments.FindByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := newExperimentResponse(exp)
	results, err := h.results.FindByExperiment(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	resp.Results = newResultResponses(results)

	h.Success(c, resp)
}

// ListResults returns the measured values of one experiment
func (h *ExperimentHandler) ListResults(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid experiment ID")
		return
	}

	results, err := h.results.FindByExperiment(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, newResultResponses(results))
}

// UpdatePriorityRequest changes where a waiting experiment sits in the queue
type UpdatePriorityRequest struct {
	Priority *int `json:"priority" binding:"required,gte=0"`
}

// UpdatePriority reprioritizes a waiting experiment. The queue view picks up
// the new priority immediately.
func (h *ExperimentHandler) UpdatePriority(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid experiment ID")
		return
	}

	var req UpdatePriorityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	exp, err := h.scheduler.UpdatePriority(c.Request.Context(), id, *req.Priority)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, newExperimentResponse(exp))
}

// ListQueue returns the waiting experiments in scheduling order
func (h *ExperimentHandler) ListQueue(c *gin.Context) {
	entries, err := h.queue.List(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]QueueEntryResponse, 0, len(entries))
	for _, e := range entries {
		responses = append(responses, QueueEntryResponse{
			ExperimentID: e.ExperimentID,
			Name:         e.Name,
			Priority:     e.Priority,
			PlateID:      e.PlateID,
			WellID:       e.WellID,
			ProjectID:    e.ProjectID,
			QueuedAt:     e.QueuedAt,
		})
	}

	h.Success(c, responses)
}
