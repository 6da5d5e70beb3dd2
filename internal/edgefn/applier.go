package edgefn

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aashishaacharya/IMUdb-web/internal/repository"
)

type applyRequest struct {
	EditID           string  `json:"edit_id"`
	ReviewComment    *string `json:"review_comment,omitempty"`
	ReviewedByUserID string  `json:"reviewed_by_user_id"`
}

type applyResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Applier calls the hosted apply-pending-edit function, which writes the
// approved diff and marks the edit approved in one server-side transaction.
type Applier struct {
	httpClient  *resty.Client
	functionURL string
	logger      *zap.Logger
}

var _ repository.EditApplier = (*Applier)(nil)

// NewApplier creates a client for the function at functionURL. serviceKey is
// sent as both bearer token and apikey header.
func NewApplier(functionURL, serviceKey string, timeout time.Duration, logger *zap.Logger) *Applier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		// A timed-out apply has an unknown outcome; the caller re-reads the
		// edit instead of retrying.
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if serviceKey != "" {
		client.SetAuthToken(serviceKey).SetHeader("apikey", serviceKey)
	}
	return &Applier{httpClient: client, functionURL: strings.TrimRight(functionURL, "/"), logger: logger}
}

func (a *Applier) ApplyApprovedEdit(ctx context.Context, id uuid.UUID, reviewerID uuid.UUID, comment *string) error {
	request := applyRequest{
		EditID:           id.String(),
		ReviewComment:    comment,
		ReviewedByUserID: reviewerID.String(),
	}

	a.logger.Info("calling apply-pending-edit",
		zap.String("edit_id", request.EditID),
		zap.String("reviewer", request.ReviewedByUserID),
	)

	var response applyResponse
	resp, err := a.httpClient.R().
		SetContext(ctx).
		SetBody(request).
		SetResult(&response).
		SetError(&response).
		Post(a.functionURL)
	if err != nil {
		a.logger.Error("apply-pending-edit call failed", zap.String("edit_id", request.EditID), zap.Error(err))
		return fmt.Errorf("failed to call apply-pending-edit: %w", err)
	}

	switch status := resp.StatusCode(); {
	case status == http.StatusNotFound:
		return fmt.Errorf("apply-pending-edit %s: %w", id, repository.ErrNotFound)
	case status == http.StatusConflict:
		return fmt.Errorf("apply-pending-edit %s: %w", id, repository.ErrNotPending)
	case status >= http.StatusBadRequest:
		a.logger.Error("apply-pending-edit returned error",
			zap.String("edit_id", request.EditID),
			zap.Int("status_code", status),
			zap.String("error", response.Error),
		)
		return fmt.Errorf("apply-pending-edit returned %d: %s", status, responseMessage(response, resp))
	}

	if !response.Success {
		return fmt.Errorf("apply-pending-edit reported failure: %s", responseMessage(response, resp))
	}

	a.logger.Info("apply-pending-edit succeeded", zap.String("edit_id", request.EditID))
	return nil
}

func responseMessage(response applyResponse, resp *resty.Response) string {
	switch {
	case response.Error != "":
		return response.Error
	case response.Message != "":
		return response.Message
	default:
		return strings.TrimSpace(resp.String())
	}
}
