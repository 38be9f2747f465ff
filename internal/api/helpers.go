// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/andygivens/orbit/internal/logging"
	"github.com/andygivens/orbit/internal/models"
	"github.com/andygivens/orbit/internal/validation"
)

// Error codes used across the API.
const (
	errCodeValidation     = "VALIDATION_ERROR"
	errCodeAuthentication = "AUTHENTICATION_ERROR"
	errCodeNotFound       = "NOT_FOUND"
	errCodeProvider       = "PROVIDER_ERROR"
	errCodeUnavailable    = "SERVICE_UNAVAILABLE"
	errCodeInternal       = "INTERNAL_ERROR"
	errCodeRateLimited    = "RATE_LIMITED"
)

// sanitizeLogValue strips control characters so attacker-supplied input
// cannot forge log lines.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// respondJSON sends a JSON response with an FNV-1a ETag.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Vary", "Accept-Encoding")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("ETag", generateETag(data))

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// generateETag creates a simple ETag from data using FNV-1a.
func generateETag(data []byte) string {
	hash := uint32(2166136261)
	for _, b := range data {
		hash ^= uint32(b)
		hash *= 16777619
	}
	return strconv.FormatUint(uint64(hash), 16)
}

// respondSuccess sends a success envelope around data.
func respondSuccess(w http.ResponseWriter, status int, data interface{}, started time.Time) {
	respondJSON(w, status, &models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(started).Milliseconds(),
		},
	})
}

// respondError sends an error envelope.
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().
			Str("code", sanitizeLogValue(code)).
			Str("error", sanitizeLogValue(err.Error())).
			Msg("API error")
	}

	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Data:     nil,
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error: &models.APIError{
			Code:    code,
			Message: message,
		},
	})
}

// validateRequest runs struct validation and converts failures to the
// API's VALIDATION_ERROR shape.
func validateRequest(v interface{}) *models.APIError {
	validationErr := validation.ValidateStruct(v)
	if validationErr == nil {
		return nil
	}

	apiErr := validationErr.ToAPIError()
	out := &models.APIError{
		Code:    apiErr.Code,
		Message: apiErr.Message,
	}
	if len(apiErr.Details) > 0 {
		out.Details = make(map[string]string, len(apiErr.Details))
		for field, detail := range apiErr.Details {
			out.Details[field] = fmt.Sprint(detail)
		}
	}
	return out
}

// decodeJSONBody decodes a request body into dst, rejecting unknown
// payload shapes with a uniform error.
func decodeJSONBody(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return fmt.Errorf("empty request body")
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// getIntParam reads an integer query parameter, falling back to def on
// absence or parse failure.
func getIntParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
