package models

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mmdatafocus/docgen_backend/utils"
)

func bizContext(businessId string) context.Context {
	return utils.SetBusinessIdInContext(context.Background(), businessId)
}

func TestSnapshotLookupMissIsNotFound(t *testing.T) {
	store := NewMemorySnapshotStore()
	_, err := store.Lookup(bizContext("biz-1"), "sales-stat", "deadbeef")
	if !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected ErrorRecordNotFound, got %v", err)
	}
}

func TestSnapshotLatestWins(t *testing.T) {
	ctx := bizContext("biz-1")
	store := NewMemorySnapshotStore()

	first := NewReportSnapshot(ctx, "sales-stat", "hash-1", OutputFormatPDF, "exports/old.pdf", "{}")
	if err := store.Store(ctx, first); err != nil {
		t.Fatalf("store first: %v", err)
	}
	second := NewReportSnapshot(ctx, "sales-stat", "hash-1", OutputFormatPDF, "exports/new.pdf", "{}")
	if err := store.Store(ctx, second); err != nil {
		t.Fatalf("store second: %v", err)
	}

	got, err := store.Lookup(ctx, "sales-stat", "hash-1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.ResultLocation != "exports/new.pdf" {
		t.Fatalf("lookup returned %q, want the newer row", got.ResultLocation)
	}
	if store.CountByHash("biz-1", "sales-stat", "hash-1") != 2 {
		t.Fatal("append-only store must keep both rows")
	}
}

func TestSnapshotLookupIsScopedByBusiness(t *testing.T) {
	ctxA := bizContext("biz-a")
	ctxB := bizContext("biz-b")
	store := NewMemorySnapshotStore()

	snap := NewReportSnapshot(ctxA, "invoice", "hash-x", OutputFormatPDF, "exports/a.pdf", "{}")
	store.Store(ctxA, snap)

	if _, err := store.Lookup(ctxB, "invoice", "hash-x"); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("snapshot leaked across businesses: %v", err)
	}
}

func TestPrintSnapshotUpsertReplacesByKey(t *testing.T) {
	ctx := bizContext("biz-1")
	store := NewMemorySnapshotStore()

	first := &PrintSnapshot{
		BusinessId:     "biz-1",
		DocumentType:   "invoice",
		DocumentId:     42,
		TemplateName:   "default",
		ResultLocation: "prints/v1.pdf",
		DataChecksum:   "aaa",
	}
	if err := store.StorePrint(ctx, first); err != nil {
		t.Fatalf("store first: %v", err)
	}

	second := &PrintSnapshot{
		BusinessId:     "biz-1",
		DocumentType:   "invoice",
		DocumentId:     42,
		TemplateName:   "default",
		ResultLocation: "prints/v2.pdf",
		DataChecksum:   "bbb",
	}
	if err := store.StorePrint(ctx, second); err != nil {
		t.Fatalf("store second: %v", err)
	}

	got, err := store.LookupPrint(ctx, "invoice", 42, "default")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.ResultLocation != "prints/v2.pdf" || got.DataChecksum != "bbb" {
		t.Fatalf("upsert did not replace: %+v", got)
	}
}

func TestPrintSnapshotDistinctTemplatesCoexist(t *testing.T) {
	ctx := bizContext("biz-1")
	store := NewMemorySnapshotStore()

	store.StorePrint(ctx, &PrintSnapshot{
		BusinessId: "biz-1", DocumentType: "invoice", DocumentId: 7,
		TemplateName: "default", ResultLocation: "prints/default.pdf",
	})
	store.StorePrint(ctx, &PrintSnapshot{
		BusinessId: "biz-1", DocumentType: "invoice", DocumentId: 7,
		TemplateName: "letterhead", ResultLocation: "prints/letterhead.pdf",
	})

	a, err := store.LookupPrint(ctx, "invoice", 7, "default")
	if err != nil || a.ResultLocation != "prints/default.pdf" {
		t.Fatalf("default template: %v %+v", err, a)
	}
	b, err := store.LookupPrint(ctx, "invoice", 7, "letterhead")
	if err != nil || b.ResultLocation != "prints/letterhead.pdf" {
		t.Fatalf("letterhead template: %v %+v", err, b)
	}
}

func TestJobStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to JobStatus
		ok       bool
	}{
		{JobStatusPending, JobStatusRunning, true},
		{JobStatusPending, JobStatusFailed, true},
		{JobStatusPending, JobStatusCompleted, false},
		{JobStatusRunning, JobStatusCompleted, true},
		{JobStatusRunning, JobStatusFailed, true},
		{JobStatusCompleted, JobStatusRunning, false},
		{JobStatusCompleted, JobStatusFailed, false},
		{JobStatusFailed, JobStatusRunning, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransitionTo(c.to); got != c.ok {
			t.Errorf("%s -> %s = %v, want %v", c.from, c.to, got, c.ok)
		}
	}

	if JobStatusRunning.IsTerminal() || JobStatusPending.IsTerminal() {
		t.Fatal("non-terminal status reported terminal")
	}
	if !JobStatusCompleted.IsTerminal() || !JobStatusFailed.IsTerminal() {
		t.Fatal("terminal status not reported terminal")
	}
}

func TestSnapshotStoreStampsCreatedAt(t *testing.T) {
	ctx := bizContext("biz-1")
	store := NewMemorySnapshotStore()
	snap := NewReportSnapshot(ctx, "sales-stat", "h", OutputFormatCSV, "exports/x.csv", "{}")
	before := time.Now().UTC().Add(-time.Second)
	store.Store(ctx, snap)
	if snap.CreatedAt.Before(before) {
		t.Fatalf("CreatedAt not stamped: %v", snap.CreatedAt)
	}
}
