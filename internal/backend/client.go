/*
 * Copyright (c) 2025 the CanvasForge authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"canvasforge/internal/scene"
)

// Client is a minimal HTTP client for the sync backend API.
// The CLI sync command and the desktop app use it under a feature flag.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// NewClient creates a new backend client. baseURL may include a trailing slash; it will be normalized.
func NewClient(baseURL string, token string) *Client {
	b := strings.TrimRight(baseURL, "/")
	return &Client{
		BaseURL: b,
		Token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("server %s %s: %s", method, u.Path, resp.Status)
	}
	if dest == nil {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	return dec.Decode(dest)
}

// Authenticate requests a bearer token for the given subject and stores it
// on the client for subsequent calls.
func (c *Client) Authenticate(ctx context.Context, subject string) (string, error) {
	var resp struct {
		Token     string `json:"token"`
		ExpiresAt string `json:"expires_at"`
	}
	body := map[string]any{"subject": subject}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/token", body, &resp); err != nil {
		return "", err
	}
	c.Token = resp.Token
	return resp.Token, nil
}

// Document is a minimal projection for listing.
type Document struct {
	ID        int64     `json:"id"`
	StableID  string    `json:"stable_id"`
	Name      string    `json:"name"`
	Items     int       `json:"items"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int64     `json:"version"`
}

// ListDocuments returns the documents known to the server, most recently
// updated first.
func (c *Client) ListDocuments(ctx context.Context) ([]Document, error) {
	var list []Document
	if err := c.doJSON(ctx, http.MethodGet, "/api/documents", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// PushResult reports the server-side identity of a pushed document.
type PushResult struct {
	ID       int64  `json:"id"`
	StableID string `json:"stable_id"`
	Version  int64  `json:"version"`
	Items    int    `json:"items"`
}

// PushDocument uploads a manifest keyed by the workspace's stable id.
// Pushing the same stable id again bumps the server version.
func (c *Client) PushDocument(ctx context.Context, stableID string, doc *scene.Document) (*PushResult, error) {
	if strings.TrimSpace(stableID) == "" {
		return nil, fmt.Errorf("stable id is required")
	}
	if doc == nil {
		return nil, fmt.Errorf("nil document")
	}
	manifest, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	body := map[string]any{
		"stable_id": stableID,
		"name":      doc.Name,
		"manifest":  json.RawMessage(manifest),
	}
	var res PushResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/documents", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Activity is one entry of a document's shared activity feed.
type Activity struct {
	ID        int64     `json:"id"`
	Subject   string    `json:"subject"`
	SessionID string    `json:"session_id"`
	Kind      string    `json:"kind"`
	Detail    string    `json:"detail"`
	Events    int       `json:"events"`
	CreatedAt time.Time `json:"created_at"`
}

// ListActivity fetches the most recent activity entries for a document.
func (c *Client) ListActivity(ctx context.Context, docID int64, limit int) ([]Activity, error) {
	path := fmt.Sprintf("/api/documents/%d/activity", docID)
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}
	var list []Activity
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// ActivityEntry is one rollup line to upload, usually a journal kind count.
type ActivityEntry struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
	Events int    `json:"events"`
}

// PostActivity uploads rollup entries for a document under one session id.
func (c *Client) PostActivity(ctx context.Context, docID int64, sessionID string, entries []ActivityEntry) (int, error) {
	if len(entries) == 0 {
		return 0, fmt.Errorf("no entries")
	}
	body := map[string]any{
		"session_id": sessionID,
		"entries":    entries,
	}
	var resp struct {
		Inserted int `json:"inserted"`
	}
	path := fmt.Sprintf("/api/documents/%d/activity", docID)
	if err := c.doJSON(ctx, http.MethodPost, path, body, &resp); err != nil {
		return 0, err
	}
	return resp.Inserted, nil
}
