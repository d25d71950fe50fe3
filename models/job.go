package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/docgen_backend/utils"
)

// GenerationJob is the durable record of one cache-miss generation unit.
// Rows are append-only from the caller's point of view: transitions only move
// the status forward, and terminal rows are never deleted (retention is an
// external concern).
type GenerationJob struct {
	ID           string       `gorm:"primary_key;size:36" json:"id"`
	BusinessId   string       `gorm:"not null;index:idx_gj_biz_status,priority:1;size:36" json:"business_id"`
	DocumentType string       `gorm:"not null;size:50" json:"document_type"`
	OutputFormat OutputFormat `gorm:"not null;size:10" json:"output_format"`
	Status       JobStatus    `gorm:"not null;index:idx_gj_biz_status,priority:2;size:20" json:"status"`

	// CanonicalParams is the deterministic serialization the param hash was
	// computed from, kept for reproducibility.
	CanonicalParams string `gorm:"type:longtext" json:"canonical_params"`
	ParamHash       string `gorm:"not null;index;size:64" json:"param_hash"`

	ResultLocation *string `gorm:"size:500" json:"result_location"`
	ErrorMessage   *string `gorm:"size:1000" json:"error_message"`

	RequestedBy   string `gorm:"size:100" json:"requested_by"`
	CorrelationId string `gorm:"size:36" json:"correlation_id"`

	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`

	// UpdatedAt doubles as the optimistic concurrency token and, for Running
	// rows, the staleness signal the reconciliation sweep keys off.
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

const jobErrorMessageLimit = 1000

// NewGenerationJob builds a Pending job. Canonical parameters are validated
// upstream by the whitelist; this only rejects structurally bad inputs.
func NewGenerationJob(ctx context.Context, documentType string, format OutputFormat, canonicalParams, paramHash string) (*GenerationJob, error) {
	if documentType == "" {
		return nil, utils.NewValidationError("documentType", "must not be empty")
	}
	if paramHash == "" {
		return nil, utils.NewValidationError("paramHash", "must not be empty")
	}
	switch format {
	case OutputFormatPDF, OutputFormatCSV, OutputFormatXLSX:
	default:
		return nil, utils.NewValidationError("outputFormat", "unsupported format")
	}

	businessId, _ := utils.GetBusinessIdFromContext(ctx)
	actor, _ := utils.GetUserNameFromContext(ctx)

	return &GenerationJob{
		ID:              uuid.NewString(),
		BusinessId:      businessId,
		DocumentType:    documentType,
		OutputFormat:    format,
		Status:          JobStatusPending,
		CanonicalParams: canonicalParams,
		ParamHash:       paramHash,
		RequestedBy:     actor,
		CorrelationId:   utils.CorrelationIdFromContextOrNew(ctx),
	}, nil
}

// JobStore is the persistence contract for generation jobs. Every transition
// method persists the new state before returning; an illegal transition is an
// InvalidStateError, an unknown job id is ErrorRecordNotFound.
type JobStore interface {
	Create(ctx context.Context, job *GenerationJob) error
	MarkRunning(ctx context.Context, jobId string) error
	Complete(ctx context.Context, jobId string, resultLocation string) error
	// Fail is legal from Pending or Running and idempotent when the job is
	// already Failed.
	Fail(ctx context.Context, jobId string, errorMessage string) error
	Find(ctx context.Context, jobId string) (*GenerationJob, error)
	// FindStaleRunning lists Running jobs untouched since the cutoff, for the
	// reconciliation sweep.
	FindStaleRunning(ctx context.Context, updatedBefore time.Time) ([]*GenerationJob, error)
}
