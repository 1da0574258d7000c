package rest

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/dmitrijs2005/gatekeeper/internal/server/apperr"
	"github.com/labstack/echo/v4"
)

// errorBody is the only error shape the API returns. Debug detail is logged.
type errorBody struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

func errorHandler(logger logging.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		ctx := c.Request().Context()

		var he *echo.HTTPError
		if errors.As(err, &he) {
			msg := http.StatusText(he.Code)
			if s, ok := he.Message.(string); ok {
				msg = s
			}
			_ = c.JSON(he.Code, errorBody{Name: "HTTP_ERROR", Message: msg})
			return
		}

		e := apperr.From(err)
		if e.Status >= http.StatusInternalServerError {
			logger.Error(ctx, "request failed", "path", c.Path(), "error", err.Error())
		} else {
			logger.Debug(ctx, "request rejected", "path", c.Path(), "name", string(e.Name), "debug", e.Debug)
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(e.Status)
			return
		}
		_ = c.JSON(e.Status, errorBody{Name: string(e.Name), Message: e.Message})
	}
}
