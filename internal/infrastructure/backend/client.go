// Package backend implements the FormBackend port against the
// platform's instance HTTP API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/formflow-dev/formflow/internal/application/dto"
	apperrors "github.com/formflow-dev/formflow/internal/application/errors"
	"github.com/formflow-dev/formflow/internal/application/ports"
	"github.com/formflow-dev/formflow/internal/domain/entities"
	"github.com/formflow-dev/formflow/internal/domain/values"
)

// Ensure interface compliance
var _ ports.FormBackend = (*Client)(nil)

// Client talks to the form-instance endpoints: model fetch, save with
// calculation corrections, and task-scoped validation.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a backend client. baseURL addresses one form data
// element, e.g. "https://host/instances/{id}/data/{dataGuid}".
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  logger,
	}
}

// FetchModel retrieves the current data model.
func (c *Client) FetchModel(ctx context.Context) (entities.DataModel, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building fetch request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.NewBackendError("fetch", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, apperrors.ErrUpgradeRequired
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewBackendError("fetch", resp.StatusCode, nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewBackendError("fetch", resp.StatusCode, err)
	}
	return entities.ParseDataModel(body)
}

// Save sends the full nested model and decodes the three response
// shapes of the save contract.
func (c *Client) Save(ctx context.Context, model entities.DataModel) (*dto.SaveResult, error) {
	payload, err := model.Bytes()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building save request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.doNoRedirect(req)
	if err != nil {
		return nil, apperrors.NewBackendError("save", 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewBackendError("save", resp.StatusCode, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		saved, err := entities.ParseDataModel(body)
		if err != nil {
			return nil, err
		}
		return &dto.SaveResult{Outcome: dto.SaveAccepted, Model: saved}, nil

	case resp.StatusCode == http.StatusSeeOther:
		var corrected struct {
			ChangedFields map[string]any `json:"changedFields"`
		}
		if len(body) > 0 {
			if err := json.Unmarshal(body, &corrected); err != nil {
				return nil, apperrors.NewBackendError("save", resp.StatusCode, err)
			}
		}
		return &dto.SaveResult{Outcome: dto.SaveChangedFields, ChangedFields: corrected.ChangedFields}, nil

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, apperrors.ErrUpgradeRequired

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		issues, err := c.decodeIssues(body)
		if err != nil {
			return nil, apperrors.NewBackendError("save", resp.StatusCode, err)
		}
		return &dto.SaveResult{Outcome: dto.SaveRejected, Issues: issues}, nil

	default:
		return nil, apperrors.NewBackendError("save", resp.StatusCode, nil)
	}
}

// FetchValidations returns the backend validation issues for the
// current task.
func (c *Client) FetchValidations(ctx context.Context) ([]entities.Issue, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/validate", nil)
	if err != nil {
		return nil, fmt.Errorf("building validate request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.NewBackendError("validate", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, apperrors.ErrUpgradeRequired
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewBackendError("validate", resp.StatusCode, nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewBackendError("validate", resp.StatusCode, err)
	}
	return c.decodeIssues(body)
}

// doNoRedirect performs a request without following redirects; the
// save contract uses 303 as a data response, not a navigation.
func (c *Client) doNoRedirect(req *http.Request) (*http.Response, error) {
	client := &http.Client{
		Transport: c.http.Transport,
		Timeout:   c.http.Timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return client.Do(req)
}

// wireIssue is the platform's validation-issue shape. Severity arrives
// as a numeric code or a string depending on endpoint version.
type wireIssue struct {
	Severity             json.RawMessage `json:"severity"`
	Field                string          `json:"field"`
	Description          string          `json:"description"`
	Code                 string          `json:"code"`
	CustomTextKey        string          `json:"customTextKey"`
	CustomTextParameters []string        `json:"customTextParameters"`
}

func (c *Client) decodeIssues(body []byte) ([]entities.Issue, error) {
	var wire []wireIssue
	if len(body) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		// Some endpoint versions wrap the list in an envelope.
		var envelope struct {
			Validations []wireIssue `json:"validationIssues"`
		}
		if err2 := json.Unmarshal(body, &envelope); err2 != nil {
			return nil, fmt.Errorf("decoding validation issues: %w", err)
		}
		wire = envelope.Validations
	}

	issues := make([]entities.Issue, 0, len(wire))
	for _, w := range wire {
		severity, err := decodeSeverity(w.Severity)
		if err != nil {
			c.logger.Warn("skipping issue with unknown severity", "field", w.Field, "error", err)
			continue
		}
		// Severity code 4 marks a fixed issue; fixed issues simply do
		// not get stored.
		if severity.Equals(values.SevUnknown) {
			continue
		}

		// Unmapped or unparsable fields keep a zero path and only
		// surface in whole-form reads.
		path := values.BindingPath{}
		if w.Field != "" {
			if parsed, err := values.ParseBinding(w.Field); err == nil {
				path = parsed
			}
		}

		issues = append(issues, entities.Issue{
			Path:             path,
			Source:           values.SourceBackend,
			Severity:         severity,
			Message:          w.Description,
			Code:             w.Code,
			CustomTextKey:    w.CustomTextKey,
			CustomTextParams: w.CustomTextParameters,
		})
	}
	return issues, nil
}

func decodeSeverity(raw json.RawMessage) (values.Severity, error) {
	if len(raw) == 0 {
		return values.Severity{}, fmt.Errorf("missing severity")
	}
	var code int
	if err := json.Unmarshal(raw, &code); err == nil {
		if code == 4 {
			return values.SevUnknown, nil
		}
		return values.SeverityFromWireCode(code)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return values.Severity{}, fmt.Errorf("unreadable severity %s", string(raw))
	}
	return values.NewSeverity(s)
}
