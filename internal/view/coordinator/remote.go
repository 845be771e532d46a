package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/brewline/brewline/internal/dto"
	"github.com/brewline/brewline/internal/status"
	"github.com/brewline/brewline/pkg/errorbank"
)

// APIUpdater issues the conditional status mutation against the brewline
// HTTP API. It is the RemoteUpdater used by out-of-process views.
type APIUpdater struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewAPIUpdater constructs an APIUpdater. A nil client uses http.DefaultClient;
// the per-request timeout comes from the coordinator's context.
func NewAPIUpdater(baseURL, token string, client *http.Client) *APIUpdater {
	if client == nil {
		client = http.DefaultClient
	}
	return &APIUpdater{baseURL: baseURL, token: token, client: client}
}

// UpdateStatus posts the compare-and-swap mutation. A 409 maps to a conflict
// error so the coordinator can distinguish a lost race from plain failure.
func (u *APIUpdater) UpdateStatus(ctx context.Context, id uuid.UUID, expected, target status.Status) error {
	payload, err := json.Marshal(dto.UpdateStatusRequest{Status: target, ExpectedStatus: expected})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/orders/%s/status", u.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if u.token != "" {
		req.Header.Set("Authorization", "Bearer "+u.token)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusConflict:
		return errorbank.Conflict("remote status no longer matches expected")
	case resp.StatusCode == http.StatusNotFound:
		return errorbank.NotFound("order not found")
	default:
		var body struct {
			Error struct {
				Kind    string `json:"kind"`
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		msg := body.Error.Message
		if msg == "" {
			msg = fmt.Sprintf("status update returned HTTP %d", resp.StatusCode)
		}
		return errorbank.Internal(msg)
	}
}
