package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/docgen_backend/config"
	"github.com/mmdatafocus/docgen_backend/utils"
	"gorm.io/gorm"
)

// DbJobStore persists jobs in MySQL via gorm. Transitions are conditional
// single-row updates (WHERE id AND status = expected), so concurrent readers
// never observe a half-applied transition and racing writers lose cleanly.
type DbJobStore struct {
	DB *gorm.DB
}

func NewDbJobStore(db *gorm.DB) *DbJobStore {
	if db == nil {
		db = config.GetDB()
	}
	return &DbJobStore{DB: db}
}

func (s *DbJobStore) Create(ctx context.Context, job *GenerationJob) error {
	return s.DB.WithContext(ctx).Create(job).Error
}

func (s *DbJobStore) MarkRunning(ctx context.Context, jobId string) error {
	now := time.Now().UTC()
	res := s.DB.WithContext(ctx).
		Model(&GenerationJob{}).
		Where("id = ? AND status = ?", jobId, JobStatusPending).
		Updates(map[string]interface{}{
			"status":     JobStatusRunning,
			"started_at": &now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return s.transitionConflict(ctx, jobId, JobStatusRunning)
	}
	return nil
}

func (s *DbJobStore) Complete(ctx context.Context, jobId string, resultLocation string) error {
	now := time.Now().UTC()
	res := s.DB.WithContext(ctx).
		Model(&GenerationJob{}).
		Where("id = ? AND status = ?", jobId, JobStatusRunning).
		Updates(map[string]interface{}{
			"status":          JobStatusCompleted,
			"result_location": &resultLocation,
			"completed_at":    &now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return s.transitionConflict(ctx, jobId, JobStatusCompleted)
	}
	return nil
}

func (s *DbJobStore) Fail(ctx context.Context, jobId string, errorMessage string) error {
	now := time.Now().UTC()
	msg := utils.TruncateString(errorMessage, jobErrorMessageLimit)
	res := s.DB.WithContext(ctx).
		Model(&GenerationJob{}).
		Where("id = ? AND status IN ?", jobId, []JobStatus{JobStatusPending, JobStatusRunning}).
		Updates(map[string]interface{}{
			"status":        JobStatusFailed,
			"error_message": &msg,
			"completed_at":  &now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		job, err := s.Find(ctx, jobId)
		if err != nil {
			return err
		}
		if job.Status == JobStatusFailed {
			// Already failed; repeated Fail is a no-op.
			return nil
		}
		return &utils.InvalidStateError{JobId: jobId, From: string(job.Status), To: string(JobStatusFailed)}
	}
	return nil
}

func (s *DbJobStore) Find(ctx context.Context, jobId string) (*GenerationJob, error) {
	var job GenerationJob
	err := s.DB.WithContext(ctx).Where("id = ?", jobId).Take(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &job, nil
}

func (s *DbJobStore) FindStaleRunning(ctx context.Context, updatedBefore time.Time) ([]*GenerationJob, error) {
	var jobs []*GenerationJob
	err := s.DB.WithContext(ctx).
		Where("status = ? AND updated_at < ?", JobStatusRunning, updatedBefore).
		Order("updated_at ASC").
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (s *DbJobStore) transitionConflict(ctx context.Context, jobId string, to JobStatus) error {
	job, err := s.Find(ctx, jobId)
	if err != nil {
		return err
	}
	return &utils.InvalidStateError{JobId: jobId, From: string(job.Status), To: string(to)}
}
