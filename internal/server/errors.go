package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"academy-storefront/internal/checkout"
	"academy-storefront/internal/client"
	"academy-storefront/internal/dto"
	"academy-storefront/internal/middleware"
	"academy-storefront/internal/repository"
	"academy-storefront/internal/service"
	"academy-storefront/internal/session"
)

// Reporter receives server errors.
type Reporter interface {
	Report(err error, extras map[string]interface{})
}

var sentinelStatus = []struct {
	err    error
	status int
	code   string
}{
	{repository.ErrNotFound, http.StatusNotFound, "not_found"},
	{checkout.ErrProgramNotFound, http.StatusNotFound, "program_not_found"},
	{repository.ErrConflict, http.StatusConflict, "conflict"},
	{session.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
	{session.ErrReauthenticate, http.StatusUnauthorized, "reauthenticate"},
	{checkout.ErrUnknownField, http.StatusBadRequest, "unknown_field"},
	{checkout.ErrPaymentLinkUnset, http.StatusUnprocessableEntity, "payment_link_unset"},
	{checkout.ErrPaymentDeclined, http.StatusPaymentRequired, "payment_declined"},
	{checkout.ErrOrderNotCreated, http.StatusBadGateway, "order_not_created"},
	{service.ErrInvalidStatus, http.StatusBadRequest, "invalid_status"},
	{service.ErrEmptyOrdering, http.StatusBadRequest, "empty_ordering"},
}

func newHTTPErrorHandler(reporter Reporter) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		code, body := errorResponse(err)

		if code >= http.StatusInternalServerError {
			extras := map[string]interface{}{
				"method":     c.Request().Method,
				"path":       c.Request().URL.Path,
				"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
			}
			if uid := middleware.SessionFrom(c).UserID(); uid != "" {
				extras["user_id"] = uid
			}
			reporter.Report(err, extras)
		}

		if c.Response().Committed {
			return
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, body)
		}
		if err != nil {
			c.Logger().Error(err)
		}
	}
}

func errorResponse(err error) (int, interface{}) {
	var (
		httpErr  *echo.HTTPError
		formErr  *checkout.ValidationError
		inputErr *service.InputError
		fieldErr service.FieldErrors
		apiErr   *client.APIError
	)

	switch {
	case errors.As(err, &httpErr):
		msg, ok := httpErr.Message.(string)
		if !ok {
			return httpErr.Code, httpErr.Message
		}
		return httpErr.Code, dto.ErrorResponse{Error: msg}
	case errors.As(err, &formErr):
		res := dto.ValidationErrorResponse{Error: "validation_failed", Fields: formErr.Fields}
		if first := formErr.First(); first != nil {
			res.First = first.Field
		}
		return http.StatusUnprocessableEntity, res
	case errors.As(err, &inputErr):
		return http.StatusUnprocessableEntity, dto.ErrorResponse{
			Error: "invalid_input",
			Details: map[string]interface{}{
				"fields":  inputErr.Fields,
				"content": inputErr.Content,
			},
		}
	case errors.As(err, &fieldErr):
		return http.StatusUnprocessableEntity, dto.ErrorResponse{Error: "invalid_input", Details: map[string]interface{}{"fields": fieldErr}}
	}

	for _, s := range sentinelStatus {
		if errors.Is(err, s.err) {
			return s.status, dto.ErrorResponse{Error: s.code, Message: s.err.Error()}
		}
	}

	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status == http.StatusUnauthorized || client.IsUnauthorized(err):
			return http.StatusUnauthorized, dto.ErrorResponse{Error: "unauthenticated", Message: apiErr.Message}
		case apiErr.Status >= 400 && apiErr.Status < 500:
			return apiErr.Status, dto.ErrorResponse{Error: "backend_rejected", Message: apiErr.Message}
		default:
			return http.StatusBadGateway, dto.ErrorResponse{Error: "backend_unavailable"}
		}
	}

	return http.StatusInternalServerError, dto.ErrorResponse{Error: http.StatusText(http.StatusInternalServerError)}
}
