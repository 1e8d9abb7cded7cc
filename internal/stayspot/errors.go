// StaySpot Realtime - Marketplace Messaging and Notification Client
// Copyright 2026 ashika557
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashika557/stayspot-realtime

package stayspot

import (
	"fmt"
	"io"
	"net/http"

	json "github.com/goccy/go-json"
)

// maxErrorBodySize limits how much of an error response body is read for
// diagnostics.
const maxErrorBodySize = 64 * 1024 // 64KB

// APIError is a non-2xx response from the StaySpot backend.
type APIError struct {
	Operation  string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("stayspot %s failed with status %d: %s", e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("stayspot %s failed with status %d", e.Operation, e.StatusCode)
}

// IsAuthError reports whether the backend rejected our session.
func (e *APIError) IsAuthError() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// newAPIError builds an APIError from a response, extracting a message
// from DRF-style {"detail": ...} or {"error": ...} bodies when present.
func newAPIError(operation string, resp *http.Response) *APIError {
	apiErr := &APIError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if err != nil || len(body) == 0 {
		return apiErr
	}

	var wire struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(body, &wire); err == nil {
		switch {
		case wire.Detail != "":
			apiErr.Message = wire.Detail
		case wire.Error != "":
			apiErr.Message = wire.Error
		}
	}
	return apiErr
}
