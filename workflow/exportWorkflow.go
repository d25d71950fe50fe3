package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/docgen_backend/config"
	"github.com/mmdatafocus/docgen_backend/models"
	"github.com/mmdatafocus/docgen_backend/params"
	"github.com/mmdatafocus/docgen_backend/render"
	"github.com/mmdatafocus/docgen_backend/utils"
	"github.com/sirupsen/logrus"
)

// ExportWorkflow coordinates the whole artifact pipeline: whitelist ->
// canonical hash -> snapshot lookup -> job lifecycle -> render -> store.
// It is the boundary that translates internal failures into the single
// caller-visible outcome "job Failed with message X".
type ExportWorkflow struct {
	Jobs      models.JobStore
	Snapshots models.SnapshotStore
	Storage   ArtifactStorage
	Data      DataAssembler
	Renderers map[models.OutputFormat]render.Renderer

	// Queue, when set, offloads execution to the worker; nil means inline
	// synchronous generation.
	Queue JobQueue

	Logger *logrus.Logger
}

// ArtifactResult is the outcome of RequestArtifact: exactly one of Cached or
// Job is set.
type ArtifactResult struct {
	Cached *models.ReportSnapshot
	Job    *models.GenerationJob
}

// RequestArtifact serves an export request. A snapshot hit short-circuits the
// pipeline with no job created; a miss creates a job and runs (or enqueues)
// the generation. The returned job reflects its state at return time; callers
// poll GetJob for the final state.
func (w *ExportWorkflow) RequestArtifact(ctx context.Context, documentType string, format models.OutputFormat, rawParams map[string]interface{}) (*ArtifactResult, error) {
	if !params.KnownDocumentType(documentType) {
		return nil, utils.NewValidationError("documentType", "unknown document type: "+documentType)
	}
	switch format {
	case models.OutputFormatPDF, models.OutputFormatCSV, models.OutputFormatXLSX:
	default:
		return nil, utils.NewValidationError("outputFormat", "unsupported format")
	}

	safe, unknown := params.Filter(documentType, rawParams)
	if len(unknown) > 0 && w.Logger != nil {
		w.Logger.WithFields(logrus.Fields{
			"module":         "ExportWorkflow",
			"document_type":  documentType,
			"unknown_keys":   unknown,
			"correlation_id": utils.CorrelationIdFromContextOrNew(ctx),
		}).Warn("dropped parameters not in document whitelist")
	}

	hash := params.Hash(documentType, safe)

	if snap, err := w.Snapshots.Lookup(ctx, documentType, hash); err == nil {
		return &ArtifactResult{Cached: snap}, nil
	} else if !errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, err
	}

	// Optional single-flight: collapse concurrent misses for the same hash.
	// Contention falls through to duplicate generation, which is safe
	// (idempotent render, latest snapshot wins).
	release := w.acquireFlightLock(ctx, hash)
	if release != nil {
		defer release()
		// The lock winner may have stored a snapshot while we waited.
		if snap, err := w.Snapshots.Lookup(ctx, documentType, hash); err == nil {
			return &ArtifactResult{Cached: snap}, nil
		}
	}

	canonicalJSON, err := params.EncodeMap(safe)
	if err != nil {
		return nil, err
	}

	job, err := models.NewGenerationJob(ctx, documentType, format, canonicalJSON, hash)
	if err != nil {
		return nil, err
	}
	if err := w.Jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	if w.Queue != nil {
		businessId, _ := utils.GetBusinessIdFromContext(ctx)
		msg := config.JobDispatchMessage{
			JobId:         job.ID,
			BusinessId:    businessId,
			DocumentType:  documentType,
			CorrelationId: job.CorrelationId,
		}
		if err := w.Queue.Enqueue(ctx, msg); err != nil {
			// Dispatch-time rejection: the job fails immediately without
			// ever entering Running.
			w.failJob(ctx, job.ID, fmt.Errorf("dispatch failed: %w", err))
		}
	} else {
		w.runJob(ctx, job, safe)
	}

	final, err := w.Jobs.Find(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	return &ArtifactResult{Job: final}, nil
}

// GetJob exposes job state for polling.
func (w *ExportWorkflow) GetJob(ctx context.Context, jobId string) (*models.GenerationJob, error) {
	return w.Jobs.Find(ctx, jobId)
}

// ExecuteJob runs a previously created job. Used by the queue consumer;
// terminal jobs are skipped so redelivery is harmless.
func (w *ExportWorkflow) ExecuteJob(ctx context.Context, jobId string) error {
	job, err := w.Jobs.Find(ctx, jobId)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return nil
	}

	safe, err := params.DecodeMap(job.CanonicalParams)
	if err != nil {
		w.failJob(ctx, job.ID, fmt.Errorf("stored parameters unreadable: %w", err))
		return nil
	}
	w.runJob(ctx, job, safe)
	return nil
}

// runJob drives Pending -> Running -> terminal. All failures land in the job
// record; nothing escapes to the caller.
func (w *ExportWorkflow) runJob(ctx context.Context, job *models.GenerationJob, safe map[string]params.Value) {
	if err := w.Jobs.MarkRunning(ctx, job.ID); err != nil {
		if utils.IsInvalidStateError(err) {
			// Another worker claimed it; state machine held the line.
			config.LogError(w.Logger, "ExportWorkflow", "runJob", job.ID, nil, err)
			return
		}
		w.failJob(ctx, job.ID, err)
		return
	}

	payload, err := w.Data.Assemble(ctx, job.DocumentType, safe)
	if err != nil {
		w.failJob(ctx, job.ID, err)
		return
	}

	renderer, ok := w.Renderers[job.OutputFormat]
	if !ok {
		w.failJob(ctx, job.ID, fmt.Errorf("no renderer for format %s", job.OutputFormat))
		return
	}

	artifact, err := renderer.Render(ctx, templateRef(job.DocumentType, job.OutputFormat), payload)
	if err != nil {
		w.failJob(ctx, job.ID, err)
		return
	}

	name := artifactObjectName(job)
	location, err := w.Storage.Save(ctx, artifact, name, job.OutputFormat.ContentType())
	if err != nil {
		w.failJob(ctx, job.ID, err)
		return
	}

	snap := models.NewReportSnapshot(ctx, job.DocumentType, job.ParamHash, job.OutputFormat, location, job.CanonicalParams)
	if err := w.Snapshots.Store(ctx, snap); err != nil {
		// The artifact exists but is not addressable by hash; callers must
		// not see Completed without a retrievable snapshot.
		w.failJob(ctx, job.ID, err)
		return
	}

	if err := w.Jobs.Complete(ctx, job.ID, location); err != nil {
		config.LogError(w.Logger, "ExportWorkflow", "runJob", job.ID, nil, err)
	}
}

// failJob marks the job Failed with a sanitized, bounded message. Raw
// dependency detail never reaches the caller-visible record.
func (w *ExportWorkflow) failJob(ctx context.Context, jobId string, cause error) {
	if w.Logger != nil {
		config.LogError(w.Logger, "ExportWorkflow", "failJob", jobId, nil, cause)
	}
	msg := sanitizeFailure(cause)
	if err := w.Jobs.Fail(ctx, jobId, msg); err != nil && w.Logger != nil {
		config.LogError(w.Logger, "ExportWorkflow", "failJob", jobId, nil, err)
	}
}

func sanitizeFailure(err error) string {
	switch {
	case utils.IsDependencyUnavailable(err):
		return "external dependency unavailable; please retry later"
	case utils.IsRenderError(err):
		return utils.TruncateString(err.Error(), 500)
	case utils.IsValidationError(err):
		return err.Error()
	default:
		return utils.TruncateString("generation failed: "+err.Error(), 500)
	}
}

func templateRef(documentType string, format models.OutputFormat) string {
	return documentType + "-" + string(format)
}

func artifactObjectName(job *models.GenerationJob) string {
	return fmt.Sprintf("exports/%s/%s/%s%s", job.BusinessId, job.DocumentType, job.ID, job.OutputFormat.Extension())
}

// acquireFlightLock returns a release func when the per-hash lock was
// obtained, nil otherwise (feature off, redis absent, or lock contended).
func (w *ExportWorkflow) acquireFlightLock(ctx context.Context, hash string) func() {
	if !config.SingleFlightEnabled() {
		return nil
	}
	locker := config.GetRedisLock()
	if locker == nil {
		return nil
	}
	lock, err := locker.Obtain(ctx, "export-flight:"+hash, 2*time.Minute, nil)
	if err != nil {
		if !errors.Is(err, redislock.ErrNotObtained) && w.Logger != nil {
			config.LogError(w.Logger, "ExportWorkflow", "acquireFlightLock", hash, nil, err)
		}
		return nil
	}
	return func() { _ = lock.Release(context.Background()) }
}
