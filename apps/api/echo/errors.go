package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-fees/core"
	"github.com/trezcool/masomo-fees/core/user"
)

var (
	errUnauthorized  = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errHttpForbidden = echo.NewHTTPError(http.StatusForbidden, "permission denied")

	msgValidation = "validation failed"
)

type errorResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		res := errorResponse{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				res.Message = "missing or malformed jwt"
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			if msg, ok := origErr.Message.(string); ok {
				res.Message = msg
			} else {
				res.Message = http.StatusText(code)
			}
		case validator.ValidationErrors:
			code = http.StatusBadRequest
			res.Message = msgValidation
			res.Errors = core.TranslateValidationErrors(origErr, translator)
		case *core.ValidationError:
			code = http.StatusBadRequest
			res.Message = msgValidation
			if len(origErr.Fields) > 0 {
				res.Errors = make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					res.Errors[fErr.Field] = fErr.Error
				}
			} else {
				res.Message = origErr.Error()
			}
		case *core.NotFoundError:
			code = http.StatusNotFound
			res.Message = origErr.Error()
		default: // any other error is a server error
			code = http.StatusInternalServerError
			res.Message = http.StatusText(code)

			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr = claims.User()
			}
			logger.Error(res.Message, errors.Wrap(err, res.Message), map[string]interface{}{
				"method": ctx.Request().Method,
				"path":   ctx.Path(),
			}, usr)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			res.Message = err.Error()
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, res)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
