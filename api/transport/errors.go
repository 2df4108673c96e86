package transport

import (
	"errors"
	"net/http"

	"github.com/fastygo/sellerdesk/domain"
)

var statusByCode = map[domain.ErrorCode]int{
	domain.ErrCodeUnauthenticated:   http.StatusUnauthorized,
	domain.ErrCodePendingApproval:   http.StatusForbidden,
	domain.ErrCodeBanned:            http.StatusForbidden,
	domain.ErrCodeForbiddenRole:     http.StatusForbidden,
	domain.ErrCodeForbidden:         http.StatusForbidden,
	domain.ErrCodeNotFound:          http.StatusNotFound,
	domain.ErrCodeInvalid:           http.StatusBadRequest,
	domain.ErrCodeInvalidTransition: http.StatusBadRequest,
	domain.ErrCodeConflict:          http.StatusConflict,
	domain.ErrCodeConfiguration:     http.StatusPreconditionFailed,
	domain.ErrCodeUpstreamTransport: http.StatusBadGateway,
	domain.ErrCodeUpstreamDomain:    http.StatusBadRequest,
	domain.ErrCodeStorage:           http.StatusInternalServerError,
	domain.ErrCodeInternal:          http.StatusInternalServerError,
}

// ErrorStatus maps err to its HTTP status, stable reason and caller-facing message. Upstream
// messages are passed through unchanged; unclassified errors never leak their text.
func ErrorStatus(err error) (int, domain.ErrorCode, string) {
	code := domain.ReasonOf(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}

	var upstream *domain.UpstreamError
	var dErr *domain.Error
	switch {
	case errors.As(err, &upstream):
		return status, code, upstream.Message
	case errors.As(err, &dErr) && code != domain.ErrCodeStorage && code != domain.ErrCodeInternal:
		return status, code, dErr.Message
	case code == domain.ErrCodeStorage:
		return status, code, "storage unavailable"
	default:
		return status, code, "Internal server error"
	}
}

// NotFoundOnUpstreamReject turns an upstream rejection of a single-entity read into a 404,
// matching how lookups of unknown ids are reported by the marketplace.
func NotFoundOnUpstreamReject(status int, code domain.ErrorCode) int {
	if code == domain.ErrCodeUpstreamDomain {
		return http.StatusNotFound
	}
	return status
}
