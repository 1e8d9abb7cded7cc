// StaySpot Realtime - Marketplace Messaging and Notification Client
// Copyright 2026 ashika557
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashika557/stayspot-realtime

/*
client.go - Core StaySpot REST Client

HTTP communication layer for the StaySpot backend. Authentication is a
replayed Django session cookie; mutating requests additionally carry the
CSRF token in the X-CSRFToken header, matching what the backend's CSRF
middleware expects from a browser.

Client Features:
  - Session cookie auth through an http.CookieJar
  - Configurable per-request timeout
  - JSON request/response bodies (goccy/go-json)
  - Multipart media upload for chat attachments
  - Context support for cancellation and timeouts
  - Non-2xx responses surfaced as *APIError with extracted body message

Related Files:
  - errors.go: APIError and body message extraction
  - breaker.go: circuit breaker wrapper
*/
package stayspot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/ashika557/stayspot-realtime/internal/config"
	"github.com/ashika557/stayspot-realtime/internal/metrics"
	"github.com/ashika557/stayspot-realtime/internal/models"
)

// API is the backend surface the rest of the daemon consumes. Client
// implements it directly; BreakerClient wraps it with circuit breaker
// protection. All methods are safe for concurrent use.
type API interface {
	Ping(ctx context.Context) error

	ListNotifications(ctx context.Context) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id int64) error
	MarkAllNotificationsRead(ctx context.Context) error

	ListConversations(ctx context.Context) ([]models.Conversation, error)
	StartConversation(ctx context.Context, userID int64) (*models.Conversation, error)
	ListMessages(ctx context.Context, conversationID int64) ([]models.Message, error)
	MarkConversationRead(ctx context.Context, conversationID int64) error
	SendMedia(ctx context.Context, upload MediaUpload) (*models.Message, error)
}

// MediaUpload is one chat attachment plus its metadata.
type MediaUpload struct {
	ConversationID int64
	SenderID       int64
	SenderName     string
	Caption        string
	Filename       string
	Content        io.Reader
}

// Client talks to the StaySpot REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client

	sessionCookieName string
	csrfCookieName    string

	mu        sync.RWMutex
	csrfToken string
}

// NewClient builds a REST client from backend configuration. The
// configured session cookie value (if any) is installed immediately;
// SetCredentials replaces it once the session store has loaded.
func NewClient(cfg *config.BackendConfig) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q: scheme must be http or https", cfg.BaseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := &Client{
		baseURL: base,
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
		sessionCookieName: cfg.SessionCookieName,
		csrfCookieName:    cfg.CSRFCookieName,
	}

	if cfg.SessionCookieValue != "" {
		c.SetCredentials(cfg.SessionCookieValue, "")
	}
	return c, nil
}

// SetCredentials installs the session cookie and CSRF token. An empty
// csrfToken keeps whatever token was previously known; the backend
// rotates the session far more often than the CSRF cookie.
func (c *Client) SetCredentials(sessionValue, csrfToken string) {
	cookies := []*http.Cookie{{
		Name:  c.sessionCookieName,
		Value: sessionValue,
		Path:  "/",
	}}
	if csrfToken != "" {
		cookies = append(cookies, &http.Cookie{
			Name:  c.csrfCookieName,
			Value: csrfToken,
			Path:  "/",
		})
		c.mu.Lock()
		c.csrfToken = csrfToken
		c.mu.Unlock()
	}
	c.httpClient.Jar.SetCookies(c.baseURL, cookies)
}

// currentCSRFToken prefers the jar's live csrftoken cookie (the backend
// may rotate it mid-session via Set-Cookie) over the installed one.
func (c *Client) currentCSRFToken() string {
	for _, ck := range c.httpClient.Jar.Cookies(c.baseURL) {
		if ck.Name == c.csrfCookieName && ck.Value != "" {
			return ck.Value
		}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.csrfToken
}

// doJSON performs one API request. A nil body sends no payload; a nil
// result discards the response body. Mutating methods carry the CSRF
// header.
func (c *Client) doJSON(ctx context.Context, method, path, operation string, body, result any) error {
	var reqBody io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", operation, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.JoinPath(path).String(), reqBody)
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet && method != http.MethodHead {
		if token := c.currentCSRFToken(); token != "" {
			req.Header.Set("X-CSRFToken", token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", operation, err)
	}
	defer resp.Body.Close()
	metrics.RecordBackendRequest(operation, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(operation, resp)
	}

	if result == nil {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodySize))
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

// Ping verifies backend reachability and that the session is accepted.
func (c *Client) Ping(ctx context.Context) error {
	var out []models.Notification
	return c.doJSON(ctx, http.MethodGet, "/notifications/", "ping", nil, &out)
}

// ListNotifications fetches the full notification list for the session
// user, newest first as the backend orders it.
func (c *Client) ListNotifications(ctx context.Context) ([]models.Notification, error) {
	var out []models.Notification
	if err := c.doJSON(ctx, http.MethodGet, "/notifications/", "list_notifications", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkNotificationRead confirms a single read flag with the backend.
func (c *Client) MarkNotificationRead(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/notifications/%d/mark_as_read/", id)
	return c.doJSON(ctx, http.MethodPost, path, "mark_notification_read", nil, nil)
}

// MarkAllNotificationsRead flips every notification for the session user.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/notifications/mark_all_as_read/", "mark_all_notifications_read", nil, nil)
}

// ListConversations fetches the conversation list, ordered by the
// server's updated_at.
func (c *Client) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	var out []models.Conversation
	if err := c.doJSON(ctx, http.MethodGet, "/chat/", "list_conversations", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StartConversation resolves or creates the conversation with userID.
func (c *Client) StartConversation(ctx context.Context, userID int64) (*models.Conversation, error) {
	body := map[string]int64{"user_id": userID}
	var out models.Conversation
	if err := c.doJSON(ctx, http.MethodPost, "/chat/start_conversation/", "start_conversation", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListMessages fetches the full history of one conversation.
func (c *Client) ListMessages(ctx context.Context, conversationID int64) ([]models.Message, error) {
	path := fmt.Sprintf("/chat/%d/messages/", conversationID)
	var out []models.Message
	if err := c.doJSON(ctx, http.MethodGet, path, "list_messages", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkConversationRead marks every message in the conversation read.
func (c *Client) MarkConversationRead(ctx context.Context, conversationID int64) error {
	path := fmt.Sprintf("/chat/%d/mark_as_read/", conversationID)
	return c.doJSON(ctx, http.MethodPost, path, "mark_conversation_read", nil, nil)
}

// SendMedia uploads a chat attachment via multipart POST and returns the
// saved message. The caller is responsible for the follow-up socket
// announcement; upload and announcement are intentionally separate.
func (c *Client) SendMedia(ctx context.Context, upload MediaUpload) (*models.Message, error) {
	const operation = "send_media"

	if upload.Content == nil {
		return nil, fmt.Errorf("%s: no content", operation)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", upload.Filename)
	if err != nil {
		return nil, fmt.Errorf("%s: create form file: %w", operation, err)
	}
	if _, err := io.Copy(part, upload.Content); err != nil {
		return nil, fmt.Errorf("%s: copy content: %w", operation, err)
	}

	fields := map[string]string{
		"conversation": strconv.FormatInt(upload.ConversationID, 10),
		"sender":       strconv.FormatInt(upload.SenderID, 10),
		"sender_name":  upload.SenderName,
		"text":         upload.Caption,
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("%s: write field %s: %w", operation, name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("%s: finalize multipart body: %w", operation, err)
	}

	path := fmt.Sprintf("/chat/%d/send_media/", upload.ConversationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL.JoinPath(path).String(), &buf)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if token := c.currentCSRFToken(); token != "" {
		req.Header.Set("X-CSRFToken", token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", operation, err)
	}
	defer resp.Body.Close()
	metrics.RecordBackendRequest(operation, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(operation, resp)
	}

	var msg models.Message
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", operation, err)
	}
	return &msg, nil
}
