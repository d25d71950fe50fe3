package workflow

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/mmdatafocus/docgen_backend/config"
	"github.com/mmdatafocus/docgen_backend/models"
	"github.com/mmdatafocus/docgen_backend/params"
	"github.com/mmdatafocus/docgen_backend/render"
	"github.com/mmdatafocus/docgen_backend/utils"
)

// stubRenderer returns a fixed artifact, or the configured error.
type stubRenderer struct {
	artifact []byte
	err      error
	calls    int
}

func (r *stubRenderer) Render(ctx context.Context, templateRef string, payload []byte) ([]byte, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.artifact, nil
}

// stubAssembler returns a fixed payload, or the configured error.
type stubAssembler struct {
	payload []byte
	err     error
}

func (a *stubAssembler) Assemble(ctx context.Context, documentType string, safe map[string]params.Value) ([]byte, error) {
	if a.err != nil {
		return nil, a.err
	}
	return a.payload, nil
}

type rejectingQueue struct{ calls int }

func (q *rejectingQueue) Enqueue(ctx context.Context, msg config.JobDispatchMessage) error {
	q.calls++
	return errors.New("topic unreachable")
}

func newTestWorkflow(renderer render.Renderer, assembler DataAssembler) (*ExportWorkflow, *models.MemoryJobStore, *models.MemorySnapshotStore, *MemoryStorage) {
	jobs := models.NewMemoryJobStore()
	snaps := models.NewMemorySnapshotStore()
	storage := NewMemoryStorage()
	w := &ExportWorkflow{
		Jobs:      jobs,
		Snapshots: snaps,
		Storage:   storage,
		Data:      assembler,
		Renderers: map[models.OutputFormat]render.Renderer{
			models.OutputFormatPDF:  renderer,
			models.OutputFormatCSV:  renderer,
			models.OutputFormatXLSX: renderer,
		},
	}
	return w, jobs, snaps, storage
}

func requestCtx() context.Context {
	ctx := utils.SetBusinessIdInContext(context.Background(), "biz-1")
	ctx = utils.SetUserNameInContext(ctx, "tester")
	return ctx
}

var salesParams = map[string]interface{}{
	"fromDate": "2026-01-01",
	"toDate":   "2026-01-31",
	"branchId": 3,
}

func TestRequestArtifactMissGeneratesAndCompletes(t *testing.T) {
	ctx := requestCtx()
	renderer := &stubRenderer{artifact: []byte("%PDF-1.7 fake")}
	w, _, snaps, storage := newTestWorkflow(renderer, &stubAssembler{payload: []byte(`{"rows":[]}`)})

	res, err := w.RequestArtifact(ctx, "sales-stat", models.OutputFormatPDF, salesParams)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if res.Cached != nil {
		t.Fatal("cold cache returned a snapshot hit")
	}
	job := res.Job
	if job == nil {
		t.Fatal("no job returned on miss")
	}
	if job.Status != models.JobStatusCompleted {
		t.Fatalf("job status = %s, want Completed (err=%v)", job.Status, job.ErrorMessage)
	}
	if job.ResultLocation == nil || *job.ResultLocation == "" {
		t.Fatal("completed job has empty result location")
	}
	if storage.Len() != 1 {
		t.Fatalf("storage holds %d objects, want 1", storage.Len())
	}

	safe, _ := params.Filter("sales-stat", salesParams)
	hash := params.Hash("sales-stat", safe)
	snap, err := snaps.Lookup(ctx, "sales-stat", hash)
	if err != nil {
		t.Fatalf("snapshot not stored: %v", err)
	}
	if snap.ResultLocation != *job.ResultLocation {
		t.Fatalf("snapshot location %q != job location %q", snap.ResultLocation, *job.ResultLocation)
	}
}

func TestRequestArtifactRepeatHitsSnapshot(t *testing.T) {
	ctx := requestCtx()
	renderer := &stubRenderer{artifact: []byte("doc")}
	w, _, snaps, _ := newTestWorkflow(renderer, &stubAssembler{payload: []byte(`{}`)})

	first, err := w.RequestArtifact(ctx, "sales-stat", models.OutputFormatPDF, salesParams)
	if err != nil {
		t.Fatalf("first request: %v", err)
	}

	second, err := w.RequestArtifact(ctx, "sales-stat", models.OutputFormatPDF, salesParams)
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	if second.Cached == nil || second.Job != nil {
		t.Fatalf("repeat request did not hit the snapshot: %+v", second)
	}
	if second.Cached.ResultLocation != *first.Job.ResultLocation {
		t.Fatal("cache hit points at a different artifact")
	}
	if renderer.calls != 1 {
		t.Fatalf("renderer called %d times, want 1", renderer.calls)
	}

	safe, _ := params.Filter("sales-stat", salesParams)
	if snaps.CountByHash("biz-1", "sales-stat", params.Hash("sales-stat", safe)) != 1 {
		t.Fatal("repeat request created a second snapshot")
	}
}

func TestRequestArtifactEquivalentParamsShareCache(t *testing.T) {
	ctx := requestCtx()
	renderer := &stubRenderer{artifact: []byte("doc")}
	w, _, _, _ := newTestWorkflow(renderer, &stubAssembler{payload: []byte(`{}`)})

	if _, err := w.RequestArtifact(ctx, "sales-stat", models.OutputFormatPDF, salesParams); err != nil {
		t.Fatalf("first request: %v", err)
	}

	// Same logical parameters: different key order (maps), string-typed
	// number, noise key the whitelist drops.
	variant := map[string]interface{}{
		"branchId": "3.0",
		"toDate":   "2026-01-31",
		"fromDate": "2026-01-01",
		"noise":    true,
	}
	res, err := w.RequestArtifact(ctx, "sales-stat", models.OutputFormatPDF, variant)
	if err != nil {
		t.Fatalf("variant request: %v", err)
	}
	if res.Cached == nil {
		t.Fatal("equivalent parameter variant missed the cache")
	}
	if renderer.calls != 1 {
		t.Fatalf("renderer called %d times, want 1", renderer.calls)
	}
}

func TestRequestArtifactRenderFailureFailsJob(t *testing.T) {
	ctx := requestCtx()
	renderer := &stubRenderer{err: &utils.RenderError{TemplateRef: "sales-stat-PDF", Message: "missing template"}}
	w, _, snaps, storage := newTestWorkflow(renderer, &stubAssembler{payload: []byte(`{}`)})

	res, err := w.RequestArtifact(ctx, "sales-stat", models.OutputFormatPDF, salesParams)
	if err != nil {
		t.Fatalf("request must not error, failures land in the job: %v", err)
	}
	job := res.Job
	if job.Status != models.JobStatusFailed {
		t.Fatalf("job status = %s, want Failed", job.Status)
	}
	if job.ErrorMessage == nil || *job.ErrorMessage == "" {
		t.Fatal("failed job has no error message")
	}

	if storage.Len() != 0 {
		t.Fatal("failed generation left an artifact behind")
	}
	safe, _ := params.Filter("sales-stat", salesParams)
	if _, err := snaps.Lookup(ctx, "sales-stat", params.Hash("sales-stat", safe)); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatal("failed generation stored a snapshot")
	}

	// The failure is not cached: the next request tries again.
	renderer.err = nil
	renderer.artifact = []byte("doc")
	res, err = w.RequestArtifact(ctx, "sales-stat", models.OutputFormatPDF, salesParams)
	if err != nil {
		t.Fatalf("retry request: %v", err)
	}
	if res.Job == nil || res.Job.Status != models.JobStatusCompleted {
		t.Fatalf("retry after failure did not regenerate: %+v", res)
	}
}

func TestRequestArtifactDependencyFailureIsSanitized(t *testing.T) {
	ctx := requestCtx()
	assembler := &stubAssembler{err: &utils.DependencyUnavailableError{
		Target: "market-data",
		Reason: "retries exhausted after 4 attempts: connect tcp 10.1.2.3:443: i/o timeout",
	}}
	w, _, _, _ := newTestWorkflow(&stubRenderer{artifact: []byte("doc")}, assembler)

	res, err := w.RequestArtifact(ctx, "sales-stat", models.OutputFormatPDF, salesParams)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	job := res.Job
	if job.Status != models.JobStatusFailed {
		t.Fatalf("job status = %s, want Failed", job.Status)
	}
	if *job.ErrorMessage != "external dependency unavailable; please retry later" {
		t.Fatalf("raw dependency detail leaked: %q", *job.ErrorMessage)
	}
}

func TestRequestArtifactRejectsUnknownDocumentType(t *testing.T) {
	w, _, _, _ := newTestWorkflow(&stubRenderer{}, &stubAssembler{})
	_, err := w.RequestArtifact(requestCtx(), "no-such-report", models.OutputFormatPDF, nil)
	if !utils.IsValidationError(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestRequestArtifactRejectsUnknownFormat(t *testing.T) {
	w, _, _, _ := newTestWorkflow(&stubRenderer{}, &stubAssembler{})
	_, err := w.RequestArtifact(requestCtx(), "sales-stat", models.OutputFormat("DOCX"), salesParams)
	if !utils.IsValidationError(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestRequestArtifactQueueRejectionFailsJobImmediately(t *testing.T) {
	ctx := requestCtx()
	queue := &rejectingQueue{}
	w, _, _, _ := newTestWorkflow(&stubRenderer{artifact: []byte("doc")}, &stubAssembler{payload: []byte(`{}`)})
	w.Queue = queue

	res, err := w.RequestArtifact(ctx, "sales-stat", models.OutputFormatPDF, salesParams)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if queue.calls != 1 {
		t.Fatalf("enqueue called %d times, want 1", queue.calls)
	}
	job := res.Job
	if job.Status != models.JobStatusFailed {
		t.Fatalf("job status = %s, want Failed", job.Status)
	}
	if job.StartedAt != nil {
		t.Fatal("dispatch-rejected job entered Running")
	}
}

func TestExecuteJobSkipsTerminalJobs(t *testing.T) {
	ctx := requestCtx()
	renderer := &stubRenderer{artifact: []byte("doc")}
	w, _, _, _ := newTestWorkflow(renderer, &stubAssembler{payload: []byte(`{}`)})

	res, err := w.RequestArtifact(ctx, "sales-stat", models.OutputFormatPDF, salesParams)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	callsAfterFirst := renderer.calls

	// Queue redelivery of a job that already finished.
	if err := w.ExecuteJob(ctx, res.Job.ID); err != nil {
		t.Fatalf("redelivered execute: %v", err)
	}
	if renderer.calls != callsAfterFirst {
		t.Fatal("terminal job was re-executed")
	}
}

func TestExecuteJobRunsQueuedPendingJob(t *testing.T) {
	ctx := requestCtx()
	renderer := &stubRenderer{artifact: []byte("doc")}
	w, jobs, _, _ := newTestWorkflow(renderer, &stubAssembler{payload: []byte(`{}`)})

	safe, _ := params.Filter("sales-stat", salesParams)
	canonical, err := params.EncodeMap(safe)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	job, err := models.NewGenerationJob(ctx, "sales-stat", models.OutputFormatCSV, canonical, params.Hash("sales-stat", safe))
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := jobs.Create(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := w.ExecuteJob(ctx, job.ID); err != nil {
		t.Fatalf("execute: %v", err)
	}
	got, _ := jobs.Find(ctx, job.ID)
	if got.Status != models.JobStatusCompleted {
		t.Fatalf("job status = %s, want Completed (err=%v)", got.Status, got.ErrorMessage)
	}
}

func TestExecuteJobUnknownIdReturnsNotFound(t *testing.T) {
	w, _, _, _ := newTestWorkflow(&stubRenderer{}, &stubAssembler{})
	if err := w.ExecuteJob(requestCtx(), "missing"); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected ErrorRecordNotFound, got %v", err)
	}
}

func TestSanitizeFailureBoundsGenericErrors(t *testing.T) {
	long := fmt.Sprintf("query blew up: %s", make([]byte, 2000))
	msg := sanitizeFailure(errors.New(long))
	if len(msg) > 520 {
		t.Fatalf("sanitized message length %d not bounded", len(msg))
	}
}

func TestArtifactObjectNameLayout(t *testing.T) {
	job := &models.GenerationJob{
		ID:           "job-1",
		BusinessId:   "biz-1",
		DocumentType: "sales-stat",
		OutputFormat: models.OutputFormatXLSX,
	}
	if got := artifactObjectName(job); got != "exports/biz-1/sales-stat/job-1.xlsx" {
		t.Fatalf("unexpected object name %q", got)
	}
}
