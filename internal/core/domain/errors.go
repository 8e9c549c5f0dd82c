package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrTemporary            = errors.New("temporary failure")
	ErrDeadline             = errors.New("deadline exceeded")
	ErrAggregation          = errors.New("aggregation failure")
	ErrEvidenceNotFound     = errors.New("evidence document not found")
	ErrVerificationNotFound = errors.New("verification not found")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

type PipelineStage string

const (
	StageCacheCheck  PipelineStage = "cache_check"
	StageEmbedding   PipelineStage = "embedding"
	StageRetrieval   PipelineStage = "retrieval"
	StageNLIScoring  PipelineStage = "nli_scoring"
	StageAggregation PipelineStage = "aggregation"
	StagePersistence PipelineStage = "persistence"
	StageCacheUpdate PipelineStage = "cache_update"
	StageDone        PipelineStage = "done"
	StageFailed      PipelineStage = "failed"
)

// StageError identifies which pipeline stage a verification failed in.
type StageError struct {
	Stage PipelineStage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage reports the stage a pipeline error originated in, if known.
func FailedStage(err error) (PipelineStage, bool) {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage, true
	}
	return "", false
}
