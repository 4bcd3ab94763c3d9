package apperrors

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

var (
	// ErrUnauthorized is returned when the session token is missing or invalid.
	ErrUnauthorized = errors.New("invalid or expired token")
	// ErrNotConnected is returned when no Gmail connection exists for the user.
	ErrNotConnected = errors.New("Gmail not connected. Please connect your Gmail account first.")
	// ErrReauthRequired is returned when the stored access token is expired and
	// no refresh token is available to renew it.
	ErrReauthRequired = errors.New("Gmail authorization expired. Please reconnect your Gmail account.")
	// ErrUpstream is returned when a mail or LLM provider call fails.
	ErrUpstream = errors.New("upstream provider error")
	// ErrSummaryParse is returned when no JSON object can be extracted from the
	// model output.
	ErrSummaryParse = errors.New("failed to parse summary response")
	// ErrSummarySchema is returned when the extracted JSON does not conform to
	// the summary schema.
	ErrSummarySchema = errors.New("summary response does not match expected schema")
	// ErrValidation is returned when a required request field is missing.
	ErrValidation = errors.New("invalid request")
)

// Status maps an error to its HTTP status code.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrReauthRequired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotConnected):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Respond writes the JSON error envelope for err and aborts the request.
// The sentinel text becomes the "error" field; wrapping detail is exposed as
// "message" only for known sentinels, so raw driver and provider errors never
// reach the client.
func Respond(c *gin.Context, err error) {
	body := gin.H{"error": "Internal server error"}
	if sentinel := matchSentinel(err); sentinel != nil {
		body["error"] = sentinel.Error()
		if detail := err.Error(); detail != sentinel.Error() {
			body["message"] = detail
		}
	}
	c.AbortWithStatusJSON(Status(err), body)
}

func matchSentinel(err error) error {
	for _, sentinel := range []error{
		ErrUnauthorized,
		ErrNotConnected,
		ErrReauthRequired,
		ErrUpstream,
		ErrSummaryParse,
		ErrSummarySchema,
		ErrValidation,
	} {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	return nil
}
