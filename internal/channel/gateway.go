package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// GatewayClient talks to the WhatsApp gateway service over HTTP. It
// implements Resolver; the sessions it hands out post messages to
// /sessions/{id}/messages on the gateway.
type GatewayClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewGatewayClient(baseURL, token string) *GatewayClient {
	return &GatewayClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (g *GatewayClient) DefaultSession(ctx context.Context, companyID int) (Session, error) {
	var out struct {
		SessionID int `json:"session_id"`
	}
	path := fmt.Sprintf("/companies/%d/default-session", companyID)
	if err := g.get(ctx, path, &out); err != nil {
		return nil, fmt.Errorf("resolve default session for company %d: %w", companyID, err)
	}
	return &gatewaySession{gw: g, sessionID: out.SessionID}, nil
}

func (g *GatewayClient) SessionFor(ctx context.Context, whatsappID int) (Session, error) {
	var out struct {
		SessionID int    `json:"session_id"`
		Status    string `json:"status"`
	}
	path := fmt.Sprintf("/whatsapps/%d/session", whatsappID)
	if err := g.get(ctx, path, &out); err != nil {
		return nil, fmt.Errorf("resolve session for whatsapp %d: %w", whatsappID, err)
	}
	if out.Status != "CONNECTED" {
		return nil, fmt.Errorf("whatsapp %d session is %s, not connected", whatsappID, out.Status)
	}
	return &gatewaySession{gw: g, sessionID: out.SessionID}, nil
}

type gatewaySession struct {
	gw        *GatewayClient
	sessionID int
}

func (s *gatewaySession) SendText(ctx context.Context, number, body string) error {
	payload := map[string]any{
		"number": number,
		"body":   body,
	}
	return s.gw.post(ctx, fmt.Sprintf("/sessions/%d/messages", s.sessionID), payload)
}

func (s *gatewaySession) SendMedia(ctx context.Context, number, path, caption string) error {
	payload := map[string]any{
		"number":  number,
		"path":    path,
		"caption": caption,
	}
	return s.gw.post(ctx, fmt.Sprintf("/sessions/%d/media", s.sessionID), payload)
}

func (g *GatewayClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+g.token)
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway %s: http status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (g *GatewayClient) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+g.token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway %s: http status %d", path, resp.StatusCode)
	}
	return nil
}

var _ Resolver = (*GatewayClient)(nil)
