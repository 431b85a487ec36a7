package httpgin

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/kirinyoku/cineseat/internal/domain"
)

type ErrorResponse struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

var kindStatus = map[domain.Kind]int{
	domain.KindNotFound:           http.StatusNotFound,
	domain.KindSeatUnavailable:    http.StatusConflict,
	domain.KindInvalidState:       http.StatusConflict,
	domain.KindAlreadyCheckedIn:   http.StatusConflict,
	domain.KindOutsideWindow:      http.StatusUnprocessableEntity,
	domain.KindValidation:         http.StatusBadRequest,
	domain.KindForbidden:          http.StatusForbidden,
	domain.KindTransactionFailure: http.StatusServiceUnavailable,
}

// respondErr writes the error body for err. Internal errors are attached to the
// context for the access log and answered with a generic message.
func respondErr(c *gin.Context, err error) {
	kind := domain.KindOf(err)

	status, ok := kindStatus[kind]
	if !ok {
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
			Error:   string(domain.KindInternal),
			Message: "internal error",
		})
		return
	}

	resp := ErrorResponse{Error: string(kind)}

	var (
		unavailable *domain.SeatsUnavailableError
		window      *domain.OutsideWindowError
		invalid     *domain.ValidationError
		missing     *domain.NotFoundError
		state       *domain.StateError
	)
	switch {
	case errors.As(err, &unavailable):
		resp.Message = unavailable.Error()
		resp.Details = map[string]any{"seat_ids": unavailable.SeatIDs}
	case errors.As(err, &window):
		resp.Message = window.Error()
		resp.Details = map[string]any{"direction": window.Direction(), "minutes": window.Minutes}
	case errors.As(err, &invalid):
		resp.Message = invalid.Error()
		if invalid.Field != "" {
			resp.Details = map[string]any{"field": invalid.Field}
		}
	case errors.As(err, &missing):
		resp.Message = missing.Error()
	case errors.As(err, &state):
		resp.Message = state.Error()
	case kind == domain.KindTransactionFailure:
		_ = c.Error(err)
		resp.Message = "the request could not be completed, retry later"
	default:
		resp.Message = publicMessage(err, kind)
	}

	c.AbortWithStatusJSON(status, resp)
}

// Sentinels whose text may be shown to callers, most specific first.
var publicSentinels = []error{
	domain.ErrAlreadyCancelled,
	domain.ErrHoldExpired,
	domain.ErrAlreadyCheckedIn,
	domain.ErrForbidden,
	domain.ErrNotFound,
	domain.ErrInvalidState,
	domain.ErrSeatUnavailable,
	domain.ErrValidation,
}

// publicMessage drops the operation prefixes from err and keeps the text from
// the first domain sentinel on, e.g. "forbidden: booking belongs to another user".
func publicMessage(err error, kind domain.Kind) string {
	msg := err.Error()
	for _, sentinel := range publicSentinels {
		if !errors.Is(err, sentinel) {
			continue
		}
		if i := strings.Index(msg, sentinel.Error()); i >= 0 {
			return msg[i:]
		}
		return sentinel.Error()
	}
	return string(kind)
}

// badRequest answers a binding or parsing failure.
func badRequest(c *gin.Context, err error) {
	resp := ErrorResponse{Error: string(domain.KindValidation), Message: err.Error()}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]any, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		resp.Message = "request validation failed"
		resp.Details = fields
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, resp)
}

func badRequestMsg(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: string(domain.KindValidation), Message: msg})
}
