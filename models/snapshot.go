package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/docgen_backend/utils"
)

// ReportSnapshot associates a canonical parameter hash with a previously
// produced artifact. Rows are immutable once written; duplicates from racing
// generations are tolerated and Lookup resolves them to the newest row.
type ReportSnapshot struct {
	ID           int          `gorm:"primary_key" json:"id"`
	BusinessId   string       `gorm:"not null;index:idx_rs_biz_type_hash,priority:1;size:36" json:"business_id"`
	DocumentType string       `gorm:"not null;index:idx_rs_biz_type_hash,priority:2;size:50" json:"document_type"`
	ParamHash    string       `gorm:"not null;index:idx_rs_biz_type_hash,priority:3;size:64" json:"param_hash"`
	OutputFormat OutputFormat `gorm:"not null;size:10" json:"output_format"`

	ResultLocation string `gorm:"not null;size:500" json:"result_location"`

	// RawParams keeps the caller's filtered parameters for audit and
	// reproducibility; not used by lookups.
	RawParams string `gorm:"type:longtext" json:"raw_params"`

	CreatedBy     string `gorm:"size:100" json:"created_by"`
	ClientOrigin  string `gorm:"size:50" json:"client_origin"`
	CorrelationId string `gorm:"size:36" json:"correlation_id"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// NewReportSnapshot stamps actor/origin/correlation metadata from ctx.
func NewReportSnapshot(ctx context.Context, documentType, paramHash string, format OutputFormat, resultLocation, rawParams string) *ReportSnapshot {
	businessId, _ := utils.GetBusinessIdFromContext(ctx)
	actor, _ := utils.GetUserNameFromContext(ctx)
	origin, _ := utils.GetClientOriginFromContext(ctx)
	return &ReportSnapshot{
		BusinessId:     businessId,
		DocumentType:   documentType,
		ParamHash:      paramHash,
		OutputFormat:   format,
		ResultLocation: resultLocation,
		RawParams:      rawParams,
		CreatedBy:      actor,
		ClientOrigin:   origin,
		CorrelationId:  utils.CorrelationIdFromContextOrNew(ctx),
	}
}

// PrintSnapshot supports reproducible re-printing of one business document.
// Keyed by (document type, document id, template) instead of a parameter
// hash; last writer for a key wins, which callers accept by serializing
// writes when they need exact-once semantics.
type PrintSnapshot struct {
	ID           int    `gorm:"primary_key" json:"id"`
	BusinessId   string `gorm:"not null;uniqueIndex:idx_ps_key,priority:1;size:36" json:"business_id"`
	DocumentType string `gorm:"not null;uniqueIndex:idx_ps_key,priority:2;size:50" json:"document_type"`
	DocumentId   int    `gorm:"not null;uniqueIndex:idx_ps_key,priority:3" json:"document_id"`
	TemplateName string `gorm:"not null;uniqueIndex:idx_ps_key,priority:4;size:100" json:"template_name"`

	// ViewModelJson is the serialized view model used at render time, so a
	// re-print reproduces the document even after the source data changed.
	ViewModelJson  string `gorm:"type:longtext" json:"view_model_json"`
	DataChecksum   string `gorm:"size:64" json:"data_checksum"`
	ResultLocation string `gorm:"not null;size:500" json:"result_location"`

	CreatedBy     string `gorm:"size:100" json:"created_by"`
	CorrelationId string `gorm:"size:36" json:"correlation_id"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// SnapshotStore is the persistence contract for both snapshot variants.
// Lookup methods return utils.ErrorRecordNotFound on absence, never a nil
// snapshot with nil error.
type SnapshotStore interface {
	// Lookup returns the authoritative (most recently created) snapshot for
	// the (type, hash) pair. Read-only.
	Lookup(ctx context.Context, documentType, paramHash string) (*ReportSnapshot, error)
	// Store appends. Racing writers may both persist; the newer row becomes
	// authoritative on the next Lookup.
	Store(ctx context.Context, snap *ReportSnapshot) error

	LookupPrint(ctx context.Context, documentType string, documentId int, templateName string) (*PrintSnapshot, error)
	// StorePrint upserts by (type, id, template); last writer wins.
	StorePrint(ctx context.Context, snap *PrintSnapshot) error
}
