// Package hardware provides the drivers behind the motion, pump and
// potentiostat ports. Only the simulated drivers are built in; the real
// serial drivers live behind the same interfaces on the rig host.
package hardware

import (
	"context"
	"math"
	"time"

	"github.com/panda-sdl/backend/internal/application/protocol"
	"github.com/panda-sdl/backend/internal/application/run"
	"github.com/panda-sdl/backend/internal/domain/experiment"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MockMotion simulates the gantry. Each move sleeps for the configured step
// time so run pacing stays observable in development.
type MockMotion struct {
	stepTime time.Duration
	logger   *zap.Logger
}

// NewMockMotion creates a simulated motion system.
func NewMockMotion(stepTime time.Duration, logger *zap.Logger) *MockMotion {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MockMotion{stepTime: stepTime, logger: logger}
}

// SafeMoveTo simulates a routed move to the target coordinates.
func (m *MockMotion) SafeMoveTo(ctx context.Context, x, y, z float64, tool protocol.Tool) error {
	if err := sleepStep(ctx, m.stepTime); err != nil {
		return err
	}
	m.logger.Debug("mock motion move",
		zap.Float64("x", x), zap.Float64("y", y), zap.Float64("z", z),
		zap.String("tool", string(tool)))
	return nil
}

// MoveToSafePosition simulates retracting to the travel height.
func (m *MockMotion) MoveToSafePosition(ctx context.Context) error {
	if err := sleepStep(ctx, m.stepTime); err != nil {
		return err
	}
	m.logger.Debug("mock motion at safe position")
	return nil
}

// MockPump simulates the syringe pump.
type MockPump struct {
	stepTime time.Duration
	logger   *zap.Logger
}

// NewMockPump creates a simulated pump.
func NewMockPump(stepTime time.Duration, logger *zap.Logger) *MockPump {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MockPump{stepTime: stepTime, logger: logger}
}

// Aspirate simulates drawing volume into the tip.
func (p *MockPump) Aspirate(ctx context.Context, volume, rate decimal.Decimal) error {
	if err := sleepStep(ctx, p.stepTime); err != nil {
		return err
	}
	p.logger.Debug("mock pump aspirate",
		zap.String("volume_ul", volume.String()), zap.String("rate_ml_min", rate.String()))
	return nil
}

// Dispense simulates pushing volume out of the tip with blowout travel.
func (p *MockPump) Dispense(ctx context.Context, volume, rate, blowout decimal.Decimal) error {
	if err := sleepStep(ctx, p.stepTime); err != nil {
		return err
	}
	p.logger.Debug("mock pump dispense",
		zap.String("volume_ul", volume.String()),
		zap.String("rate_ml_min", rate.String()),
		zap.String("blowout_ul", blowout.String()))
	return nil
}

// MockPotentiostat simulates the electrochemistry channel with plausible
// signal shapes so downstream result handling sees realistic values.
type MockPotentiostat struct {
	stepTime time.Duration
	logger   *zap.Logger
}

// NewMockPotentiostat creates a simulated potentiostat.
func NewMockPotentiostat(stepTime time.Duration, logger *zap.Logger) *MockPotentiostat {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MockPotentiostat{stepTime: stepTime, logger: logger}
}

// RunOCP simulates an open circuit potential check that settles within
// tolerance.
func (s *MockPotentiostat) RunOCP(ctx context.Context, params experiment.OCPParams) (run.OCPResult, error) {
	if err := sleepStep(ctx, s.stepTime); err != nil {
		return run.OCPResult{}, err
	}
	final := params.ToleranceV / 2
	s.logger.Debug("mock ocp complete", zap.Float64("final_voltage_v", final))
	return run.OCPResult{Passed: true, FinalVoltageV: final}, nil
}

// RunCA simulates a chronoamperometry step and reports the integrated charge.
func (s *MockPotentiostat) RunCA(ctx context.Context, params experiment.CAParams) (run.StepResult, error) {
	if err := sleepStep(ctx, s.stepTime); err != nil {
		return run.StepResult{}, err
	}
	// Exponentially decaying current integrated over the step duration.
	charge := math.Abs(params.StepVoltageV) * (1 - math.Exp(-params.DurationS/10)) * 4.0
	s.logger.Debug("mock ca complete", zap.Float64("charge_mc", charge))
	return run.StepResult{Values: map[string]string{
		"deposition_charge_mc": decimal.NewFromFloat(charge).Round(3).String(),
	}}, nil
}

// RunCV simulates a cyclic voltammetry sweep and reports the peak current.
func (s *MockPotentiostat) RunCV(ctx context.Context, params experiment.CVParams) (run.StepResult, error) {
	if err := sleepStep(ctx, s.stepTime); err != nil {
		return run.StepResult{}, err
	}
	window := math.Abs(params.FirstVertexV - params.SecondVertexV)
	peak := window * params.ScanRateMVs / 10
	s.logger.Debug("mock cv complete", zap.Float64("peak_current_ua", peak))
	return run.StepResult{Values: map[string]string{
		"cv_peak_current_ua": decimal.NewFromFloat(peak).Round(3).String(),
	}}, nil
}

func sleepStep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Interface assertions
var _ protocol.Motion = (*MockMotion)(nil)
var _ protocol.Pump = (*MockPump)(nil)
var _ run.Potentiostat = (*MockPotentiostat)(nil)
