package models

import (
	"context"
	"sync"
	"time"

	"github.com/mmdatafocus/docgen_backend/utils"
)

// MemoryJobStore keeps jobs in process memory. Used by tests and local runs;
// it enforces the same transition rules as the DB store.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*GenerationJob
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: map[string]*GenerationJob{}}
}

func (s *MemoryJobStore) Create(ctx context.Context, job *GenerationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	now := time.Now().UTC()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.jobs[cp.ID] = &cp
	return nil
}

func (s *MemoryJobStore) MarkRunning(ctx context.Context, jobId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobId]
	if !ok {
		return utils.ErrorRecordNotFound
	}
	if job.Status != JobStatusPending {
		return &utils.InvalidStateError{JobId: jobId, From: string(job.Status), To: string(JobStatusRunning)}
	}
	now := time.Now().UTC()
	job.Status = JobStatusRunning
	job.StartedAt = &now
	job.UpdatedAt = now
	return nil
}

func (s *MemoryJobStore) Complete(ctx context.Context, jobId string, resultLocation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobId]
	if !ok {
		return utils.ErrorRecordNotFound
	}
	if job.Status != JobStatusRunning {
		return &utils.InvalidStateError{JobId: jobId, From: string(job.Status), To: string(JobStatusCompleted)}
	}
	now := time.Now().UTC()
	job.Status = JobStatusCompleted
	job.ResultLocation = &resultLocation
	job.CompletedAt = &now
	job.UpdatedAt = now
	return nil
}

func (s *MemoryJobStore) Fail(ctx context.Context, jobId string, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobId]
	if !ok {
		return utils.ErrorRecordNotFound
	}
	if job.Status == JobStatusFailed {
		return nil
	}
	if !job.Status.CanTransitionTo(JobStatusFailed) {
		return &utils.InvalidStateError{JobId: jobId, From: string(job.Status), To: string(JobStatusFailed)}
	}
	now := time.Now().UTC()
	msg := utils.TruncateString(errorMessage, jobErrorMessageLimit)
	job.Status = JobStatusFailed
	job.ErrorMessage = &msg
	job.CompletedAt = &now
	job.UpdatedAt = now
	return nil
}

func (s *MemoryJobStore) Find(ctx context.Context, jobId string) (*GenerationJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobId]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	cp := *job
	return &cp, nil
}

func (s *MemoryJobStore) FindStaleRunning(ctx context.Context, updatedBefore time.Time) ([]*GenerationJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*GenerationJob
	for _, job := range s.jobs {
		if job.Status == JobStatusRunning && job.UpdatedAt.Before(updatedBefore) {
			cp := *job
			out = append(out, &cp)
		}
	}
	return out, nil
}
