package render

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mmdatafocus/docgen_backend/resilience"
	"github.com/mmdatafocus/docgen_backend/utils"
	"github.com/sirupsen/logrus"
)

// PDFService renders HTML templates to PDF through an external conversion
// service, reached via the resilience client. The service owns the
// templates; we only send a template reference and the data payload.
type PDFService struct {
	client *resilience.Client
}

func NewPDFService(policy resilience.Policy, logger *logrus.Logger) (*PDFService, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	caller := resilience.NewHTTPCaller(policy, nil)
	return &PDFService{client: resilience.NewClient(policy, caller, logger)}, nil
}

// NewPDFServiceWithCaller wires a custom caller (mock service in tests).
func NewPDFServiceWithCaller(policy resilience.Policy, caller resilience.Caller, logger *logrus.Logger) *PDFService {
	return &PDFService{client: resilience.NewClient(policy, caller, logger)}
}

type renderRequest struct {
	TemplateRef string          `json:"template_ref"`
	Data        json.RawMessage `json:"data"`
}

func (s *PDFService) Render(ctx context.Context, templateRef string, payload []byte) ([]byte, error) {
	body, err := json.Marshal(renderRequest{TemplateRef: templateRef, Data: payload})
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(ctx, resilience.Request{
		Action: "render-pdf",
		Method: "POST",
		Path:   "/v1/render",
		Body:   body,
	})
	if err != nil {
		// A rejected request means the template or data is bad, which is a
		// render failure, not an infrastructure one. Unavailability passes
		// through untouched so the orchestrator can treat it separately.
		var ire *utils.InvalidRequestError
		if errors.As(err, &ire) {
			return nil, &utils.RenderError{TemplateRef: templateRef, Message: ire.Body}
		}
		return nil, err
	}
	if len(resp.Body) == 0 {
		return nil, &utils.RenderError{TemplateRef: templateRef, Message: "renderer returned empty document"}
	}
	return resp.Body, nil
}
