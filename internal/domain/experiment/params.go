package experiment

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// SolutionRequest is the amount of one named solution an experiment needs.
type SolutionRequest struct {
	Volume        decimal.Decimal `json:"volume"`
	Concentration decimal.Decimal `json:"concentration"`
}

// Solutions maps a lowercase solution name to its request.
type Solutions map[string]SolutionRequest

// Value implements driver.Valuer, storing solutions as a JSON object.
func (s Solutions) Value() (driver.Value, error) {
	if s == nil {
		return "{}", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (s *Solutions) Scan(value interface{}) error {
	if value == nil {
		*s = Solutions{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported solutions column type %T", value)
	}
	if len(data) == 0 {
		*s = Solutions{}
		return nil
	}
	return json.Unmarshal(data, s)
}

// OCPParams configures the open circuit potential check that guards an
// electrochemical stage.
type OCPParams struct {
	DurationS  float64 `json:"duration_s"`
	IntervalS  float64 `json:"interval_s"`
	ToleranceV float64 `json:"tolerance_v"`
}

// CAParams configures a chronoamperometry (deposition) step.
type CAParams struct {
	StepVoltageV float64 `json:"step_voltage_v"`
	DurationS    float64 `json:"duration_s"`
	IntervalS    float64 `json:"interval_s"`
}

// CVParams configures a cyclic voltammetry (characterization) sweep.
type CVParams struct {
	StartV        float64 `json:"start_v"`
	FirstVertexV  float64 `json:"first_vertex_v"`
	SecondVertexV float64 `json:"second_vertex_v"`
	ScanRateMVs   float64 `json:"scan_rate_mvs"`
	Cycles        int     `json:"cycles"`
}

// StageParams bundles the liquid handling and electrochemistry settings of
// one experiment.
type StageParams struct {
	MixCount         int             `json:"mix_count"`
	MixVolume        decimal.Decimal `json:"mix_volume"`
	RinseCount       int             `json:"rinse_count"`
	RinseVolume      decimal.Decimal `json:"rinse_volume"`
	FlushCount       int             `json:"flush_count"`
	FlushVolume      decimal.Decimal `json:"flush_volume"`
	OCP              OCPParams       `json:"ocp"`
	Deposition       CAParams        `json:"deposition"`
	Characterization CVParams        `json:"characterization"`
}

// Value implements driver.Valuer, storing the stage bundle as JSON.
func (p StageParams) Value() (driver.Value, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (p *StageParams) Scan(value interface{}) error {
	if value == nil {
		*p = StageParams{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported stage params column type %T", value)
	}
	if len(data) == 0 {
		*p = StageParams{}
		return nil
	}
	return json.Unmarshal(data, p)
}
