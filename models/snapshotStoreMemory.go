package models

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mmdatafocus/docgen_backend/utils"
)

// MemorySnapshotStore keeps snapshots in process memory, preserving the
// append-plus-latest-wins semantics of the DB store.
type MemorySnapshotStore struct {
	mu      sync.RWMutex
	reports []*ReportSnapshot
	prints  map[string]*PrintSnapshot
	nextId  int
}

func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{prints: map[string]*PrintSnapshot{}}
}

func (s *MemorySnapshotStore) Lookup(ctx context.Context, documentType, paramHash string) (*ReportSnapshot, error) {
	businessId, _ := utils.GetBusinessIdFromContext(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *ReportSnapshot
	for _, snap := range s.reports {
		if snap.BusinessId != businessId || snap.DocumentType != documentType || snap.ParamHash != paramHash {
			continue
		}
		if latest == nil || snap.CreatedAt.After(latest.CreatedAt) ||
			(snap.CreatedAt.Equal(latest.CreatedAt) && snap.ID > latest.ID) {
			latest = snap
		}
	}
	if latest == nil {
		return nil, utils.ErrorRecordNotFound
	}
	cp := *latest
	return &cp, nil
}

func (s *MemorySnapshotStore) Store(ctx context.Context, snap *ReportSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextId++
	cp := *snap
	cp.ID = s.nextId
	now := time.Now().UTC()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	snap.ID = cp.ID
	snap.CreatedAt = cp.CreatedAt
	s.reports = append(s.reports, &cp)
	return nil
}

func printKey(businessId, documentType string, documentId int, templateName string) string {
	return fmt.Sprintf("%s|%s|%d|%s", businessId, documentType, documentId, templateName)
}

func (s *MemorySnapshotStore) LookupPrint(ctx context.Context, documentType string, documentId int, templateName string) (*PrintSnapshot, error) {
	businessId, _ := utils.GetBusinessIdFromContext(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.prints[printKey(businessId, documentType, documentId, templateName)]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	cp := *snap
	return &cp, nil
}

func (s *MemorySnapshotStore) StorePrint(ctx context.Context, snap *PrintSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := printKey(snap.BusinessId, snap.DocumentType, snap.DocumentId, snap.TemplateName)
	cp := *snap
	now := time.Now().UTC()
	if existing, ok := s.prints[key]; ok {
		cp.ID = existing.ID
		cp.CreatedAt = existing.CreatedAt
	} else {
		s.nextId++
		cp.ID = s.nextId
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	s.prints[key] = &cp
	return nil
}

// CountByHash is a test helper: how many snapshot rows exist for a pair,
// ignoring latest-wins resolution.
func (s *MemorySnapshotStore) CountByHash(businessId, documentType, paramHash string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, snap := range s.reports {
		if snap.BusinessId == businessId && snap.DocumentType == documentType && snap.ParamHash == paramHash {
			n++
		}
	}
	return n
}
