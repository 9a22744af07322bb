package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-fees/core/student"
	"github.com/trezcool/masomo-fees/core/user"
)

type studentApi struct {
	svc *student.Service
}

func registerStudentAPI(g *echo.Group, svc *student.Service) {
	api := studentApi{svc: svc}

	g.POST("", api.create, requireCapability(user.CapManageStudents))
	g.GET("", api.query, requireCapability(user.CapViewStudents))
	g.GET("/:id", api.retrieve, requireCapability(user.CapViewStudents))
}

func (api *studentApi) create(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	std, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return respond(ctx, http.StatusCreated, std)
}

func (api *studentApi) query(ctx echo.Context) error {
	page := bindPage(ctx)
	filter := student.QueryFilter{Search: ctx.QueryParam(searchParam)}

	students, total, err := api.svc.Query(ctx.Request().Context(), &filter, page)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []student.Student{}
	}
	return respondPage(ctx, http.StatusOK, students, page, total)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	std, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding student")
	}
	return respond(ctx, http.StatusOK, std)
}
