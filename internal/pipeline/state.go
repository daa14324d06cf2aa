package pipeline

import (
	"newsletter-digest/internal/failure"
	"newsletter-digest/internal/models"
)

type Stage string

const (
	StageFetch     Stage = "fetch"
	StageClean     Stage = "clean"
	StageSummarize Stage = "summarize"
)

type Status int

const (
	StatusNew Status = iota
	StatusFetched
	StatusCleaned
	StatusSummarized
)

func (s Status) String() string {
	switch s {
	case StatusFetched:
		return "fetched"
	case StatusCleaned:
		return "cleaned"
	case StatusSummarized:
		return "summarized"
	default:
		return "new"
	}
}

// State is the value threaded between stages. Stages never mutate the State they
// receive; they return a new one.
type State struct {
	RunID     string
	Status    Status
	Raw       []models.RawMessage
	Cleaned   []models.SanitizedMessage
	Digest    *models.Digest
	SourceIDs []string
}

func (s State) withRaw(raw []models.RawMessage, ids []string) State {
	s.Status = StatusFetched
	s.Raw = raw
	s.SourceIDs = ids
	return s
}

func (s State) withCleaned(cleaned []models.SanitizedMessage) State {
	s.Status = StatusCleaned
	s.Cleaned = cleaned
	return s
}

func (s State) withDigest(d *models.Digest) State {
	s.Status = StatusSummarized
	s.Digest = d
	return s
}

// Outcome is the tagged result of a run: the final State, or the stage that failed and why
type Outcome struct {
	State State
	Stage Stage
	Err   *failure.Error
}

func (o Outcome) Ok() bool { return o.Err == nil }

func (o Outcome) Failed() bool { return o.Err != nil }
