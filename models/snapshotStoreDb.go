package models

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mmdatafocus/docgen_backend/config"
	"github.com/mmdatafocus/docgen_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DbSnapshotStore persists snapshots in MySQL with an optional redis
// read-through cache in front of report lookups. The database stays the
// source of truth; the cache only shortcuts the common repeat-export case.
type DbSnapshotStore struct {
	DB *gorm.DB
}

func NewDbSnapshotStore(db *gorm.DB) *DbSnapshotStore {
	if db == nil {
		db = config.GetDB()
	}
	return &DbSnapshotStore{DB: db}
}

func snapshotCacheTTL() time.Duration {
	// Env: SNAPSHOT_CACHE_TTL_SECONDS (default 300s)
	ttl := 300
	if v := strings.TrimSpace(os.Getenv("SNAPSHOT_CACHE_TTL_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			ttl = n
		}
	}
	return time.Duration(ttl) * time.Second
}

func snapshotCacheKey(businessId, documentType, paramHash string) string {
	return "snap:" + businessId + ":" + documentType + ":" + paramHash
}

func (s *DbSnapshotStore) Lookup(ctx context.Context, documentType, paramHash string) (*ReportSnapshot, error) {
	businessId, _ := utils.GetBusinessIdFromContext(ctx)

	if config.SnapshotCacheEnabled() {
		var cached ReportSnapshot
		if hit, err := config.GetRedisObject(snapshotCacheKey(businessId, documentType, paramHash), &cached); err == nil && hit {
			return &cached, nil
		}
	}

	var snap ReportSnapshot
	err := s.DB.WithContext(ctx).
		Where("business_id = ? AND document_type = ? AND param_hash = ?", businessId, documentType, paramHash).
		Order("created_at DESC, id DESC").
		First(&snap).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}

	if config.SnapshotCacheEnabled() {
		_ = config.SetRedisObject(snapshotCacheKey(businessId, documentType, paramHash), &snap, snapshotCacheTTL())
	}
	return &snap, nil
}

func (s *DbSnapshotStore) Store(ctx context.Context, snap *ReportSnapshot) error {
	if err := s.DB.WithContext(ctx).Create(snap).Error; err != nil {
		return err
	}
	if config.SnapshotCacheEnabled() {
		// The fresh row is the authoritative one; replace any cached older row.
		_ = config.SetRedisObject(snapshotCacheKey(snap.BusinessId, snap.DocumentType, snap.ParamHash), snap, snapshotCacheTTL())
	}
	return nil
}

func (s *DbSnapshotStore) LookupPrint(ctx context.Context, documentType string, documentId int, templateName string) (*PrintSnapshot, error) {
	businessId, _ := utils.GetBusinessIdFromContext(ctx)

	var snap PrintSnapshot
	err := s.DB.WithContext(ctx).
		Where("business_id = ? AND document_type = ? AND document_id = ? AND template_name = ?",
			businessId, documentType, documentId, templateName).
		Take(&snap).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &snap, nil
}

func (s *DbSnapshotStore) StorePrint(ctx context.Context, snap *PrintSnapshot) error {
	// Upsert on the (business, type, id, template) key: an explicit re-render
	// replaces the stored view model, concurrent writers resolve last-wins.
	return s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "business_id"},
				{Name: "document_type"},
				{Name: "document_id"},
				{Name: "template_name"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"view_model_json", "data_checksum", "result_location", "created_by", "correlation_id",
			}),
		}).
		Create(snap).Error
}
