package models

type FeePlan struct {
	ID       int64
	GroupKey string
	Batch    string
	Phases   []FeePhaseDefinition
}

type FeePhaseDefinition struct {
	PhaseNumber int
	Fee         int64
	Offset      string
}
