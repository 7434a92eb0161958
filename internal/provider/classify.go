package provider

import (
	"encoding/json"
	"net/http"
)

// APIError is the structured error body shared by the provider APIs:
// {"error": {"type": "...", "code": "...", "message": "..."}}.
type APIError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiErrorEnvelope struct {
	Error *APIError `json:"error"`
}

// ParseAPIError decodes the structured error body. It returns the zero value
// when the body is not in the expected shape.
func ParseAPIError(body []byte) APIError {
	var env apiErrorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Error == nil {
		return APIError{}
	}
	return *env.Error
}

// quotaCodes and policyCodes are the structured error identifiers the
// provider APIs document for billing and moderation refusals.
var (
	quotaCodes = map[string]bool{
		"insufficient_quota":         true,
		"quota_exceeded":             true,
		"billing_hard_limit_reached": true,
		"billing_not_active":         true,
	}
	policyCodes = map[string]bool{
		"content_policy_violation": true,
		"moderation_blocked":       true,
		"content_filter":           true,
		"safety_violation":         true,
	}
)

func (e APIError) is(codes map[string]bool) bool {
	return codes[e.Type] || codes[e.Code]
}

// ClassifyHTTP maps a non-2xx response into the taxonomy.
func ClassifyHTTP(status int, apiErr APIError) Kind {
	switch {
	case apiErr.is(quotaCodes):
		return KindQuotaExceeded
	case apiErr.is(policyCodes):
		return KindPolicyViolation
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindMissingCredentials
	case status == http.StatusPaymentRequired:
		return KindQuotaExceeded
	case status == http.StatusTooManyRequests,
		status == http.StatusRequestTimeout,
		status >= 500:
		return KindTransient
	default:
		return KindInvalidInput
	}
}
