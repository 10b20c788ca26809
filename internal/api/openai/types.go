// Package openai provides the request/response types and HTTP client used to
// talk to OpenAI-compatible chat completion endpoints.
package openai

import (
	"encoding/json"
	"net/http"

	"github.com/tjfontaine/idcard-assistant/internal/domain"
)

// ChatCompletionRequest represents an OpenAI chat completion request.
type ChatCompletionRequest struct {
	Model     string                  `json:"model"`
	Messages  []ChatCompletionMessage `json:"messages"`
	MaxTokens int                     `json:"max_tokens,omitempty"`
}

// ChatCompletionMessage represents a message in the chat completion request/response.
type ChatCompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content,omitempty"`
	Name    string `json:"name,omitempty"`
}

// ChatCompletionResponse represents an OpenAI chat completion response.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage,omitempty"`
}

// FinishReasonLength marks a choice the provider cut off at max_tokens.
const FinishReasonLength = "length"

// Choice represents a completion choice.
type Choice struct {
	Index        int                   `json:"index"`
	Message      ChatCompletionMessage `json:"message"`
	FinishReason string                `json:"finish_reason"`
}

// Usage represents token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// FirstContent returns the content of the first choice, or "" if there is none.
func (r *ChatCompletionResponse) FirstContent() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// Truncated reports whether the first choice stopped at the token limit.
func (r *ChatCompletionResponse) Truncated() bool {
	return r != nil && len(r.Choices) > 0 && r.Choices[0].FinishReason == FinishReasonLength
}

// ErrorResponse represents an OpenAI API error response.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// APIError contains error details.
//
// Gemini's compatibility layer sometimes sends a numeric code, so Code is kept
// as raw JSON and normalized in CodeString.
type APIError struct {
	Message string          `json:"message"`
	Type    string          `json:"type"`
	Param   string          `json:"param,omitempty"`
	Code    json.RawMessage `json:"code,omitempty"`
}

func (e *APIError) Error() string {
	if code := e.CodeString(); code != "" {
		return code + ": " + e.Message
	}
	return e.Message
}

// CodeString returns Code without JSON quoting.
func (e *APIError) CodeString() string {
	if len(e.Code) == 0 || string(e.Code) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(e.Code, &s); err == nil {
		return s
	}
	return string(e.Code)
}

// ToCanonical converts the upstream error to a canonical domain error.
func (e *APIError) ToCanonical(status int) *domain.APIError {
	errType, code := mapErrorType(e.Type, e.CodeString(), status)
	return &domain.APIError{
		Type:    errType,
		Code:    code,
		Message: e.Message,
	}
}

// mapErrorType maps OpenAI error types/codes (and the HTTP status as a last
// resort) to domain error types.
func mapErrorType(errType, errCode string, status int) (domain.ErrorType, domain.ErrorCode) {
	switch errCode {
	case "rate_limit_exceeded":
		return domain.ErrorTypeRateLimit, domain.ErrorCodeRateLimitExceeded
	case "invalid_api_key":
		return domain.ErrorTypeAuthentication, domain.ErrorCodeInvalidAPIKey
	case "model_not_found":
		return domain.ErrorTypeNotFound, domain.ErrorCodeModelNotFound
	}

	switch errType {
	case "invalid_request_error":
		return domain.ErrorTypeInvalidRequest, ""
	case "authentication_error":
		return domain.ErrorTypeAuthentication, domain.ErrorCodeInvalidAPIKey
	case "not_found":
		return domain.ErrorTypeNotFound, domain.ErrorCodeModelNotFound
	case "rate_limit_error", "rate_limit_exceeded":
		return domain.ErrorTypeRateLimit, domain.ErrorCodeRateLimitExceeded
	case "service_unavailable":
		return domain.ErrorTypeOverloaded, ""
	}

	switch status {
	case http.StatusBadRequest:
		return domain.ErrorTypeInvalidRequest, ""
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrorTypeAuthentication, domain.ErrorCodeInvalidAPIKey
	case http.StatusNotFound:
		return domain.ErrorTypeNotFound, ""
	case http.StatusTooManyRequests:
		return domain.ErrorTypeRateLimit, domain.ErrorCodeRateLimitExceeded
	case http.StatusServiceUnavailable:
		return domain.ErrorTypeOverloaded, ""
	default:
		return domain.ErrorTypeServer, ""
	}
}

// ParseErrorResponse attempts to parse an error response from JSON.
//
// Gemini wraps errors in a one-element array, so that form is accepted too.
func ParseErrorResponse(data []byte) (*APIError, error) {
	var errResp ErrorResponse
	if err := json.Unmarshal(data, &errResp); err != nil {
		var wrapped []ErrorResponse
		if err2 := json.Unmarshal(data, &wrapped); err2 != nil || len(wrapped) == 0 {
			return nil, err
		}
		errResp = wrapped[0]
	}
	if errResp.Error == nil {
		return nil, nil
	}
	return errResp.Error, nil
}
