package models

import "time"

const (
	PhaseFlagCount = 10

	LoanStatusActive = "o"
	LoanStatusNone   = ""
)

// TransactionRecord is one row of a bank deposit statement.
type TransactionRecord struct {
	ID              int64
	RowNumber       int
	TransactionTime *time.Time
	Description     string
	Details         string
	Contractor      string
	WithdrawnAmount int64
	DepositAmount   int64
	BalanceAfter    int64
	Branch          string
	Account         string

	PhaseFlags [PhaseFlagCount]bool
	SelfRecord string
	LoanRecord string

	LoanStatus   string
	TargetPhases []int

	BuyerID  *int
	Unlinked bool
	Warnings []string
}

type ProgressStage string

const (
	StageProgress ProgressStage = "progress"
	StageComplete ProgressStage = "complete"
	StageError    ProgressStage = "error"
)

type ProgressEvent struct {
	ImportRecordID string        `json:"import_record_id,omitempty"`
	Stage          ProgressStage `json:"stage"`
	Current        int           `json:"current,omitempty"`
	Total          int           `json:"total,omitempty"`
	Message        string        `json:"message,omitempty"`
}

// Terminal reports whether no further events follow for the import.
func (e ProgressEvent) Terminal() bool {
	return e.Stage == StageComplete || e.Stage == StageError
}
