// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package provider contains delivery backends for the dispatch engine.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/absmach/courier/dispatch"
)

// HTTP delivers messages by POSTing them as JSON to a webhook URL.
// A non-2xx response is a delivery error.
type HTTP struct {
	name    string
	url     string
	headers map[string]string
	client  *http.Client
}

// NewHTTP creates an HTTP provider. timeout bounds the whole request and
// falls back to 30s when zero; the engine's per-attempt deadline still
// applies on top via the request context.
func NewHTTP(name, url string, headers map[string]string, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTP{
		name:    name,
		url:     url,
		headers: headers,
		client:  &http.Client{Timeout: timeout},
	}
}

// Name implements dispatch.Provider.
func (p *HTTP) Name() string {
	return p.name
}

// Send implements dispatch.Provider.
func (p *HTTP) Send(ctx context.Context, msg dispatch.Message) (dispatch.Receipt, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return dispatch.Receipt{}, fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return dispatch.Receipt{}, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Absmach-Dispatch/1.0")
	for key, value := range p.headers {
		req.Header.Set(key, value)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return dispatch.Receipt{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return dispatch.Receipt{}, fmt.Errorf("provider %s returned non-2xx status: %d", p.name, resp.StatusCode)
	}

	return dispatch.Receipt{
		MessageID: resp.Header.Get("X-Message-ID"),
		Detail:    resp.Status,
	}, nil
}
