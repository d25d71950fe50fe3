package workflow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mmdatafocus/docgen_backend/models"
	"github.com/mmdatafocus/docgen_backend/utils"
)

// RequestPrint renders one specific business document (invoice, receipt...)
// and stores its print snapshot keyed by (type, id, template). An explicit
// re-print for the same key replaces the snapshot; concurrent writers resolve
// last-wins, which callers accept or serialize themselves.
func (w *ExportWorkflow) RequestPrint(ctx context.Context, documentType string, documentId int, templateName string, viewModel interface{}) (*models.PrintSnapshot, error) {
	if documentType == "" {
		return nil, utils.NewValidationError("documentType", "must not be empty")
	}
	if documentId <= 0 {
		return nil, utils.NewValidationError("documentId", "must be positive")
	}
	if templateName == "" {
		templateName = "default"
	}

	viewModelJSON, err := json.Marshal(viewModel)
	if err != nil {
		return nil, utils.NewValidationError("viewModel", "not serializable: "+err.Error())
	}
	checksum := sha256.Sum256(viewModelJSON)

	renderer, ok := w.Renderers[models.OutputFormatPDF]
	if !ok {
		return nil, errors.New("no PDF renderer configured")
	}

	artifact, err := renderer.Render(ctx, templateName, viewModelJSON)
	if err != nil {
		return nil, err
	}

	businessId, _ := utils.GetBusinessIdFromContext(ctx)
	name := fmt.Sprintf("prints/%s/%s/%d/%s.pdf", businessId, documentType, documentId, templateName)
	location, err := w.Storage.Save(ctx, artifact, name, models.OutputFormatPDF.ContentType())
	if err != nil {
		return nil, err
	}

	actor, _ := utils.GetUserNameFromContext(ctx)
	snap := &models.PrintSnapshot{
		BusinessId:     businessId,
		DocumentType:   documentType,
		DocumentId:     documentId,
		TemplateName:   templateName,
		ViewModelJson:  string(viewModelJSON),
		DataChecksum:   hex.EncodeToString(checksum[:]),
		ResultLocation: location,
		CreatedBy:      actor,
		CorrelationId:  utils.CorrelationIdFromContextOrNew(ctx),
	}
	if err := w.Snapshots.StorePrint(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// GetPrintSnapshot fetches the stored snapshot for re-printing.
func (w *ExportWorkflow) GetPrintSnapshot(ctx context.Context, documentType string, documentId int, templateName string) (*models.PrintSnapshot, error) {
	if templateName == "" {
		templateName = "default"
	}
	return w.Snapshots.LookupPrint(ctx, documentType, documentId, templateName)
}
