package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-fees/core/finance"
	"github.com/trezcool/masomo-fees/core/user"
)

type financeApi struct {
	svc *finance.Service
}

func registerFinanceAPI(g *echo.Group, svc *finance.Service) {
	api := financeApi{svc: svc}

	sg := g.Group("/structure")
	sg.POST("", api.createStructure, requireCapability(user.CapManageFeeStructures))
	sg.GET("", api.queryStructures, requireCapability(user.CapViewFeeStructures))
	sg.GET("/:id", api.retrieveStructure, requireCapability(user.CapViewFeeStructures))

	g.POST("/assign", api.assign, requireCapability(user.CapAssignFees))
	g.POST("/assign/bulk", api.assignBulk, requireCapability(user.CapAssignFees))

	g.POST("/pay", api.pay, requireCapability(user.CapRecordPayments))
	g.GET("/payments/:studentFeeId", api.queryPayments, requireCapability(user.CapViewLedgers))

	g.GET("/ledger/:studentId", api.ledger, requireLedgerAccess("studentId"))
}

// Handlers

func (api *financeApi) createStructure(ctx echo.Context) error {
	var data finance.NewFeeStructure
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFeeStructure")
	}
	fs, err := api.svc.CreateFeeStructure(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating fee structure")
	}
	return respond(ctx, http.StatusCreated, fs)
}

func (api *financeApi) queryStructures(ctx echo.Context) error {
	var ordering Ordering
	ordering.Bind(ctx)
	page := bindPage(ctx)
	filter := finance.QueryFilter{Search: ctx.QueryParam(searchParam)}

	structures, total, err := api.svc.QueryFeeStructures(ctx.Request().Context(), &filter, ordering.Orderings, page)
	if err != nil {
		return errors.Wrap(err, "querying fee structures")
	}
	if structures == nil {
		structures = []finance.FeeStructure{}
	}
	return respondPage(ctx, http.StatusOK, structures, page, total)
}

func (api *financeApi) retrieveStructure(ctx echo.Context) error {
	fs, err := api.svc.GetFeeStructure(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding fee structure")
	}
	return respond(ctx, http.StatusOK, fs)
}

func (api *financeApi) assign(ctx echo.Context) error {
	var data finance.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	sf, err := api.svc.AssignFee(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "assigning fee")
	}
	return respond(ctx, http.StatusCreated, sf)
}

func (api *financeApi) assignBulk(ctx echo.Context) error {
	var data finance.NewBulkAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBulkAssignment")
	}
	fees, err := api.svc.AssignFeeBulk(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "assigning fees")
	}
	return respond(ctx, http.StatusCreated, fees)
}

func (api *financeApi) pay(ctx echo.Context) error {
	var data finance.NewPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPayment")
	}

	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	data.RecordedBy = &usr.ID

	pmt, err := api.svc.RecordPayment(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "recording payment")
	}
	return respond(ctx, http.StatusCreated, pmt)
}

func (api *financeApi) queryPayments(ctx echo.Context) error {
	pmts, err := api.svc.QueryPayments(ctx.Request().Context(), ctx.Param("studentFeeId"))
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	if pmts == nil {
		pmts = []finance.Payment{}
	}
	return respond(ctx, http.StatusOK, pmts)
}

func (api *financeApi) ledger(ctx echo.Context) error {
	ledger, err := api.svc.GetStudentLedger(ctx.Request().Context(), ctx.Param("studentId"))
	if err != nil {
		return errors.Wrap(err, "getting student ledger")
	}
	return respond(ctx, http.StatusOK, ledger)
}
