package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPEscrow calls an escrow service over JSON. The settlement key is sent
// as the Idempotency-Key header; a 409 carrying a tx_ref means the key was
// already applied.
type HTTPEscrow struct {
	baseURL string
	apiKey  string
	inner   *http.Client
}

func NewHTTPEscrow(baseURL, apiKey string, timeout time.Duration) *HTTPEscrow {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPEscrow{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		inner:   &http.Client{Timeout: timeout},
	}
}

type escrowResponse struct {
	TxRef string `json:"tx_ref"`
	Error string `json:"error,omitempty"`
}

func (e *HTTPEscrow) LockStake(ctx context.Context, req LockRequest) (string, error) {
	metricStakeLockTotal.Add(1)
	resp, _, err := e.postJSON(ctx, "/v1/stakes/lock", "", req)
	if err != nil {
		return "", err
	}
	return resp.TxRef, nil
}

func (e *HTTPEscrow) Settle(ctx context.Context, req SettleRequest) (Receipt, error) {
	resp, replayed, err := e.postJSON(ctx, "/v1/settlements/settle", req.Key, req)
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{Key: req.Key, TxRef: resp.TxRef, Replayed: replayed}, nil
}

func (e *HTTPEscrow) Refund(ctx context.Context, req RefundRequest) (Receipt, error) {
	resp, replayed, err := e.postJSON(ctx, "/v1/settlements/refund", req.Key, req)
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{Key: req.Key, TxRef: resp.TxRef, Replayed: replayed}, nil
}

func (e *HTTPEscrow) postJSON(ctx context.Context, path, idempotencyKey string, body any) (escrowResponse, bool, error) {
	var out escrowResponse
	raw, err := json.Marshal(body)
	if err != nil {
		return out, false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return out, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := e.inner.Do(req)
	if err != nil {
		return out, false, err
	}
	defer resp.Body.Close()
	bodyRaw, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return out, false, readErr
	}
	if len(bodyRaw) > 0 {
		_ = json.Unmarshal(bodyRaw, &out)
	}
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return out, false, nil
	case resp.StatusCode == http.StatusConflict && out.TxRef != "":
		return out, true, nil
	}
	if out.Error != "" {
		return out, false, fmt.Errorf("escrow %s: status %d: %s", path, resp.StatusCode, out.Error)
	}
	return out, false, fmt.Errorf("escrow %s: status %d", path, resp.StatusCode)
}
