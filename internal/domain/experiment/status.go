package experiment

// Status tracks an experiment through its lifecycle. Stage statuses are set
// immediately before the stage begins, so a crash leaves the last attempted
// stage on record.
type Status string

const (
	StatusNew              Status = "new"
	StatusPending          Status = "pending"
	StatusQueued           Status = "queued"
	StatusRunning          Status = "running"
	StatusOCPCheck         Status = "ocpcheck"
	StatusMixing           Status = "mixing"
	StatusDepositing       Status = "depositing"
	StatusEDepositing      Status = "e_depositing"
	StatusRinsing          Status = "rinsing"
	StatusRinsingElectrode Status = "rinsing_electrode"
	StatusBaselining       Status = "baselining"
	StatusCharacterizing   Status = "characterizing"
	StatusFinalRinse       Status = "final_rinse"
	StatusImaging          Status = "imaging"
	StatusClearing         Status = "clearing"
	StatusFlushing         Status = "flushing"
	StatusSaving           Status = "saving"
	StatusComplete         Status = "complete"
	StatusError            Status = "error"
	StatusCancelled        Status = "cancelled"
)

// IsTerminal reports whether no further stage may run. Recovery from an
// error state is an operator decision, never automatic.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusComplete, StatusError, StatusCancelled:
		return true
	}
	return false
}

// IsValid reports whether the value is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusNew, StatusPending, StatusQueued, StatusRunning, StatusOCPCheck,
		StatusMixing, StatusDepositing, StatusEDepositing, StatusRinsing,
		StatusRinsingElectrode, StatusBaselining, StatusCharacterizing,
		StatusFinalRinse, StatusImaging, StatusClearing, StatusFlushing,
		StatusSaving, StatusComplete, StatusError, StatusCancelled:
		return true
	}
	return false
}
