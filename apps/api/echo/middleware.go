package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-fees/core/user"
)

// requireCapability only lets callers holding the capability through.
func requireCapability(c user.Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if usr.Can(c) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// requireLedgerAccess lets through callers who may read the ledger of the student named by the path param.
func requireLedgerAccess(param string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if usr.CanViewLedgerOf(ctx.Param(param)) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
