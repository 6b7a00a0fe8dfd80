package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainErrors "github.com/polkiloo/offramp/internal/domain/errors"
	"github.com/polkiloo/offramp/internal/server/http/dto"
)

// writeError maps domain errors onto HTTP status codes.
func writeError(c *gin.Context, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, body)
}

func errorResponse(err error) (int, dto.ErrorResponse) {
	var (
		validation   *domainErrors.ValidationError
		verification *domainErrors.VerificationError
		partner      *domainErrors.PartnerError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, dto.ErrorResponse{Error: err.Error(), Field: validation.Field}
	case errors.As(err, &verification):
		return http.StatusUnprocessableEntity, dto.ErrorResponse{
			Error:    err.Error(),
			Reason:   string(verification.Reason),
			Required: verification.Required,
			Actual:   verification.Actual,
		}
	case errors.Is(err, domainErrors.ErrNotFound):
		return http.StatusNotFound, dto.ErrorResponse{Error: err.Error()}
	case errors.Is(err, domainErrors.ErrInvalidState):
		return http.StatusConflict, dto.ErrorResponse{Error: err.Error()}
	case errors.Is(err, domainErrors.ErrQuoteUnavailable),
		errors.Is(err, domainErrors.ErrTargetUnavailable),
		errors.Is(err, domainErrors.ErrChainUnavailable):
		return http.StatusServiceUnavailable, dto.ErrorResponse{Error: err.Error()}
	case errors.As(err, &partner):
		return http.StatusBadGateway, dto.ErrorResponse{Error: err.Error(), Reason: partner.Code}
	default:
		return http.StatusInternalServerError, dto.ErrorResponse{Error: "internal error"}
	}
}
