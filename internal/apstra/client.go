// Copyright (c) 2026 vignitin
// apstra-commit-backup - commit-aware backup agent for Juniper Apstra
// This source code is licensed under the MIT license found in the LICENSE file.

// Package apstra is the REST client for the Apstra controller. It covers
// exactly the three calls the agent consumes: login, blueprint listing and
// per-blueprint revision listing.
package apstra

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vignitin/apstra-commit-backup/internal/errdefs"
	"github.com/vignitin/apstra-commit-backup/internal/model"
)

// authHeader is the controller's session token header.
const authHeader = "AuthToken"

// Client talks to one Apstra controller. All calls take a context and are
// bounded by the HTTP client timeout, so the poll loop can never hang on a
// dead controller.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client for the given controller address. Certificate
// verification is disabled by default: Apstra controllers ship self-signed
// certificates, and the original deployment targets rely on that. Pass
// tlsVerify=true to opt back in.
func NewClient(server string, timeout time.Duration, tlsVerify bool) *Client {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: !tlsVerify},
	}
	return &Client{
		baseURL: "https://" + strings.TrimSuffix(server, "/"),
		http:    &http.Client{Timeout: timeout, Transport: transport},
	}
}

// Login exchanges credentials for a session token via POST /api/aaa/login.
// Any transport failure or non-2xx response maps to ErrAuth; the caller
// retries next cycle. Tokens are short-lived and never cached.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return "", fmt.Errorf("%w: encode credentials: %v", errdefs.ErrAuth, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/aaa/login", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", errdefs.ErrAuth, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: connect to controller: %v", errdefs.ErrAuth, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: login returned status %d", errdefs.ErrAuth, resp.StatusCode)
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("%w: decode login response: %v", errdefs.ErrAuth, err)
	}
	if payload.Token == "" {
		return "", fmt.Errorf("%w: login response carried no token", errdefs.ErrAuth)
	}
	return payload.Token, nil
}

// BlueprintItem is one entry of the controller's blueprint collection. The
// controller calls the display name "label".
type BlueprintItem struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Blueprints fetches GET /api/blueprints. Failures map to ErrDiscovery; the
// caller keeps its prior registry.
func (c *Client) Blueprints(ctx context.Context, token string) ([]BlueprintItem, error) {
	var payload struct {
		Items []BlueprintItem `json:"items"`
	}
	if err := c.getJSON(ctx, "/api/blueprints", token, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", errdefs.ErrDiscovery, err)
	}
	return payload.Items, nil
}

// Revisions fetches the revision collection at the blueprint's endpoint.
// Failures map to ErrPoll.
func (c *Client) Revisions(ctx context.Context, token, endpoint string) ([]model.Revision, error) {
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	var payload struct {
		Items []model.Revision `json:"items"`
	}
	if err := c.getJSON(ctx, endpoint, token, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", errdefs.ErrPoll, err)
	}
	return payload.Items, nil
}

// getJSON performs an authenticated GET and decodes the response into out.
func (c *Client) getJSON(ctx context.Context, path, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set(authHeader, token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("connect to controller: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("GET %s returned status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response for %s: %v", path, err)
	}
	return nil
}
