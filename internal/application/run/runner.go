package run

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/panda-sdl/backend/internal/application/protocol"
	"github.com/panda-sdl/backend/internal/domain/experiment"
	"github.com/panda-sdl/backend/internal/domain/shared"
	"github.com/panda-sdl/backend/internal/domain/vessel"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// defaultRinseSolution is the stock solution used for well rinses and tip
// flushes unless overridden.
const defaultRinseSolution = "water"

// defaultPurgeRate is the pump rate for pre-run tip purges, in mL/min.
var defaultPurgeRate = decimal.NewFromFloat(0.5)

// Runner executes one experiment end to end: liquid handling stages through
// the protocol service, electrochemistry through the potentiostat, with the
// status set immediately before each stage so a crash leaves the last
// attempted stage on record. Failures funnel through a single catch site
// that stamps the terminal error state; there is no automatic retry.
type Runner struct {
	queue       Dequeuer
	protocols   *protocol.Service
	stat        Potentiostat
	experiments experiment.Repository
	results     experiment.ResultRepository
	wells       vessel.WellRepository
	events      shared.EventPublisher
	rinseWith   string
	logger      *zap.Logger
}

// RunnerParams collects the dependencies of a Runner.
type RunnerParams struct {
	Queue        Dequeuer
	Protocols    *protocol.Service
	Potentiostat Potentiostat
	Experiments  experiment.Repository
	Results      experiment.ResultRepository
	Wells        vessel.WellRepository
	// Events receives the experiment's lifecycle events, when set.
	Events shared.EventPublisher
	// RinseSolution overrides the stock solution used for rinsing.
	RinseSolution string
	Logger        *zap.Logger
}

// NewRunner creates a Runner.
func NewRunner(p RunnerParams) (*Runner, error) {
	if p.Queue == nil || p.Protocols == nil || p.Potentiostat == nil {
		return nil, shared.NewDomainError(shared.ErrInvalidInput.Code,
			"queue, protocol service and potentiostat are required")
	}
	if p.RinseSolution == "" {
		p.RinseSolution = defaultRinseSolution
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	return &Runner{
		queue:       p.Queue,
		protocols:   p.Protocols,
		stat:        p.Potentiostat,
		experiments: p.Experiments,
		results:     p.Results,
		wells:       p.Wells,
		events:      p.Events,
		rinseWith:   p.RinseSolution,
		logger:      p.Logger,
	}, nil
}

// RunNext claims the next queued experiment and runs it. Returns
// scheduling.ErrQueueEmpty unchanged when nothing is waiting.
func (r *Runner) RunNext(ctx context.Context) error {
	exp, well, err := r.queue.Dequeue(ctx)
	if err != nil {
		return err
	}
	return r.Run(ctx, exp, well)
}

// Run executes the full stage list for a claimed experiment. A demotion for
// insufficient stock is not an error; any stage failure moves the experiment
// to the terminal error state before the error is returned.
func (r *Runner) Run(ctx context.Context, exp *experiment.Experiment, well *vessel.Well) (err error) {
	log := r.logger.With(zap.String("experiment", exp.Name), zap.String("well_id", well.WellID))
	log.Info("experiment started")

	defer func() {
		if err == nil {
			return
		}
		exp.Fail()
		well.SetStatus(string(experiment.StatusError))
		if persistErr := r.persist(ctx, exp, well); persistErr != nil {
			log.Error("failed to persist error state", zap.Error(persistErr))
		}
		r.publish(ctx, exp)
		log.Error("experiment failed", zap.Error(err))
	}()

	if err = r.prepareTip(ctx); err != nil {
		return err
	}

	demoted, err := r.ensureStock(ctx, exp, well)
	if err != nil || demoted {
		return err
	}

	if err = r.mix(ctx, exp, well); err != nil {
		return err
	}
	if err = r.deposit(ctx, exp, well); err != nil {
		return err
	}
	if err = r.rinse(ctx, exp, well, experiment.StatusRinsing); err != nil {
		return err
	}
	if err = r.characterize(ctx, exp, well); err != nil {
		return err
	}
	if err = r.flush(ctx, exp, well); err != nil {
		return err
	}
	if err = r.rinse(ctx, exp, well, experiment.StatusFinalRinse); err != nil {
		return err
	}
	if err = r.clear(ctx, exp, well); err != nil {
		return err
	}

	if err = r.setStage(ctx, exp, well, experiment.StatusSaving); err != nil {
		return err
	}
	if err = exp.Complete(); err != nil {
		return err
	}
	well.SetStatus(string(experiment.StatusComplete))
	if err = r.persist(ctx, exp, well); err != nil {
		return err
	}
	r.publish(ctx, exp)
	log.Info("experiment complete")
	return nil
}

// publish flushes the experiment's pending domain events. Delivery is best
// effort once the state has been persisted.
func (r *Runner) publish(ctx context.Context, exp *experiment.Experiment) {
	if r.events == nil {
		return
	}
	if err := r.events.Publish(ctx, exp.GetDomainEvents()...); err != nil {
		r.logger.Warn("failed to publish domain events",
			zap.String("experiment", exp.Name), zap.Error(err))
	}
	exp.ClearDomainEvents()
}

// prepareTip purges whatever a crashed run left in the pipette.
func (r *Runner) prepareTip(ctx context.Context) error {
	tip := r.protocols.Tip()
	if tip.Volume.IsZero() {
		return nil
	}
	r.logger.Warn("residual volume in pipette, purging before run",
		zap.String("volume_ul", tip.Volume.String()))
	waste, err := r.protocols.SelectWaste(ctx, tip.LiquidVolume())
	if err != nil {
		return err
	}
	return r.protocols.PurgePipette(ctx, waste, defaultPurgeRate)
}

// ensureStock verifies every requested solution is available. On a shortage
// the experiment is demoted and requeued rather than failed.
func (r *Runner) ensureStock(ctx context.Context, exp *experiment.Experiment, well *vessel.Well) (bool, error) {
	for name, req := range exp.Solutions {
		if _, err := r.protocols.SelectSolution(ctx, name, req.Volume); err != nil {
			var domainErr *shared.DomainError
			if errors.As(err, &domainErr) && domainErr.Code == shared.ErrNoAvailableSolution.Code {
				r.logger.Warn("insufficient stock, demoting experiment",
					zap.String("experiment", exp.Name), zap.String("solution", name))
				return true, r.queue.Demote(ctx, exp, well)
			}
			return false, err
		}
	}
	return false, nil
}

func (r *Runner) mix(ctx context.Context, exp *experiment.Experiment, well *vessel.Well) error {
	if err := r.setStage(ctx, exp, well, experiment.StatusMixing); err != nil {
		return err
	}
	for name, req := range exp.Solutions {
		vial, err := r.protocols.SelectSolution(ctx, name, req.Volume)
		if err != nil {
			return err
		}
		if err := r.protocols.Forward(ctx, vial, well, req.Volume, exp.PumpRate); err != nil {
			return err
		}
	}
	if exp.Params.MixCount > 0 {
		if err := r.protocols.Mix(ctx, well, exp.Params.MixCount, exp.Params.MixVolume, exp.PumpRate); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) deposit(ctx context.Context, exp *experiment.Experiment, well *vessel.Well) error {
	if err := r.setStage(ctx, exp, well, experiment.StatusOCPCheck); err != nil {
		return err
	}
	if err := r.checkOCP(ctx, exp); err != nil {
		return err
	}

	if err := r.setStage(ctx, exp, well, experiment.StatusDepositing); err != nil {
		return err
	}
	res, err := r.stat.RunCA(ctx, exp.Params.Deposition)
	if err != nil {
		return shared.NewDomainError(shared.ErrCAFailure.Code,
			fmt.Sprintf("chronoamperometry failed for %s: %v", exp.Name, err))
	}
	return r.saveResults(ctx, exp, res)
}

func (r *Runner) characterize(ctx context.Context, exp *experiment.Experiment, well *vessel.Well) error {
	if err := r.setStage(ctx, exp, well, experiment.StatusBaselining); err != nil {
		return err
	}
	if err := r.checkOCP(ctx, exp); err != nil {
		return err
	}

	if err := r.setStage(ctx, exp, well, experiment.StatusCharacterizing); err != nil {
		return err
	}
	res, err := r.stat.RunCV(ctx, exp.Params.Characterization)
	if err != nil {
		return shared.NewDomainError(shared.ErrCVFailure.Code,
			fmt.Sprintf("cyclic voltammetry failed for %s: %v", exp.Name, err))
	}
	return r.saveResults(ctx, exp, res)
}

func (r *Runner) checkOCP(ctx context.Context, exp *experiment.Experiment) error {
	res, err := r.stat.RunOCP(ctx, exp.Params.OCP)
	if err != nil {
		return shared.NewDomainError(shared.ErrOCPFailure.Code,
			fmt.Sprintf("open circuit check errored for %s: %v", exp.Name, err))
	}
	if err := r.saveResult(ctx, exp, "ocp_final_voltage", strconv.FormatFloat(res.FinalVoltageV, 'f', 6, 64)); err != nil {
		return err
	}
	if !res.Passed {
		return shared.NewDomainError(shared.ErrOCPFailure.Code, fmt.Sprintf(
			"open circuit potential out of tolerance for %s at %.4f V", exp.Name, res.FinalVoltageV))
	}
	return nil
}

func (r *Runner) rinse(ctx context.Context, exp *experiment.Experiment, well *vessel.Well, stage experiment.Status) error {
	if exp.Params.RinseCount <= 0 {
		return nil
	}
	if err := r.setStage(ctx, exp, well, stage); err != nil {
		return err
	}
	rinse, err := r.protocols.SelectSolution(ctx, r.rinseWith,
		exp.Params.RinseVolume.Mul(decimal.NewFromInt(int64(exp.Params.RinseCount))))
	if err != nil {
		return err
	}
	waste, err := r.protocols.SelectWaste(ctx,
		exp.Params.RinseVolume.Mul(decimal.NewFromInt(int64(exp.Params.RinseCount))))
	if err != nil {
		return err
	}
	return r.protocols.RinseWell(ctx, well, rinse, waste, exp.Params.RinseCount, exp.Params.RinseVolume, exp.PumpRate)
}

func (r *Runner) flush(ctx context.Context, exp *experiment.Experiment, well *vessel.Well) error {
	if exp.Params.FlushCount <= 0 || exp.Params.FlushVolume.IsZero() {
		return nil
	}
	if err := r.setStage(ctx, exp, well, experiment.StatusFlushing); err != nil {
		return err
	}
	flush, err := r.protocols.SelectSolution(ctx, r.rinseWith,
		exp.Params.FlushVolume.Mul(decimal.NewFromInt(int64(exp.Params.FlushCount))))
	if err != nil {
		return err
	}
	waste, err := r.protocols.SelectWaste(ctx,
		exp.Params.FlushVolume.Mul(decimal.NewFromInt(int64(exp.Params.FlushCount))))
	if err != nil {
		return err
	}
	return r.protocols.FlushTip(ctx, flush, waste, exp.Params.FlushCount, exp.Params.FlushVolume, exp.PumpRate)
}

func (r *Runner) clear(ctx context.Context, exp *experiment.Experiment, well *vessel.Well) error {
	if err := r.setStage(ctx, exp, well, experiment.StatusClearing); err != nil {
		return err
	}
	waste, err := r.protocols.SelectWaste(ctx, well.CurrentVolume())
	if err != nil {
		return err
	}
	return r.protocols.ClearWell(ctx, well, waste, exp.PumpRate)
}

// setStage moves experiment and well into the stage status and persists
// both before the stage begins.
func (r *Runner) setStage(ctx context.Context, exp *experiment.Experiment, well *vessel.Well, stage experiment.Status) error {
	if err := exp.SetStatus(stage); err != nil {
		return err
	}
	well.SetStatus(string(stage))
	r.logger.Info("stage started", zap.String("experiment", exp.Name), zap.String("stage", string(stage)))
	return r.persist(ctx, exp, well)
}

func (r *Runner) persist(ctx context.Context, exp *experiment.Experiment, well *vessel.Well) error {
	if r.experiments != nil {
		if err := r.experiments.Save(ctx, exp); err != nil {
			return err
		}
	}
	if r.wells != nil {
		if err := r.wells.Save(ctx, well); err != nil {
			return err
		}
	}
	return nil
}

// saveResults appends every measured value as its own row, as they are
// produced, so a later failure cannot lose them.
func (r *Runner) saveResults(ctx context.Context, exp *experiment.Experiment, res StepResult) error {
	for resultType, value := range res.Values {
		if err := r.saveResult(ctx, exp, resultType, value); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) saveResult(ctx context.Context, exp *experiment.Experiment, resultType, value string) error {
	if r.results == nil {
		return nil
	}
	result, err := experiment.NewResult(exp.ID, resultType, value)
	if err != nil {
		return err
	}
	return r.results.Append(ctx, result)
}
