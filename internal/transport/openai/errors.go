package openai

import (
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/patentscope/internal/domain"
)

// parseAPIError extracts a human-readable error from the API response and tags it with the collaborator,
// so the HTTP layer maps it to 502.
func parseAPIError(collaborator string, err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return domain.NewTransportError(collaborator,
			fmt.Errorf("API error %d: %s: %w", reqErr.HTTPStatusCode, detail, err))
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return domain.NewTransportError(collaborator,
			fmt.Errorf("API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, err))
	}

	return domain.NewTransportError(collaborator, fmt.Errorf("request failed: %w", err))
}

// extractDetail extracts the "detail" field from a JSON error body (Nebius error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}

func errorType(err error) string {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("http_%d", apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Sprintf("http_%d", reqErr.HTTPStatusCode)
	}
	return "network"
}
