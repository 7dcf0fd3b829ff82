// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/dhe2en832/erp-next-system-sub000/internal/shared"
)

// ErrBadRequest marks malformed request bodies.
var ErrBadRequest = errors.New("bad request")

// RespondError maps domain errors to HTTP responses using RFC7807. The detail is the user-facing message.
func RespondError(w http.ResponseWriter, err error) {
	var rejection *shared.BackendRejection
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", shared.UserMessage(err))
	case errors.As(err, &rejection) && rejection.PeriodClosed:
		ProblemWithType(w, http.StatusUnprocessableEntity, "period-closed", "Period Closed", shared.UserMessage(err))
	case errors.Is(err, shared.ErrBackendRejected):
		Problem(w, http.StatusUnprocessableEntity, "Rejected By ERP", shared.UserMessage(err))
	case errors.Is(err, shared.ErrFulfillmentExceeded):
		ProblemWithType(w, http.StatusConflict, "fulfillment-exceeded", "Fulfillment Exceeded", shared.UserMessage(err))
	case errors.Is(err, shared.ErrValidation), errors.Is(err, ErrBadRequest):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrCompanyRequired):
		Problem(w, http.StatusBadRequest, "Company Required", err.Error())
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", shared.UserMessage(err))
	case errors.Is(err, shared.ErrTransient):
		Problem(w, http.StatusBadGateway, "ERP Unreachable", shared.UserMessage(err))
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
