package httpadapter

import (
	"net/http"

	"github.com/kirillkom/claim-verifier/internal/core/domain"
	"github.com/kirillkom/claim-verifier/internal/infrastructure/resilience"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrEvidenceNotFound),
		domain.IsKind(err, domain.ErrVerificationNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrDeadline):
		return http.StatusGatewayTimeout
	case resilience.IsCircuitOpen(err),
		domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
