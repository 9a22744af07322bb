package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo-fees/core"
)

type (
	dataResponse struct {
		Success bool        `json:"success"`
		Data    interface{} `json:"data"`
	}

	pageResponse struct {
		Items interface{} `json:"items"`
		core.PageInfo
	}
)

func respond(ctx echo.Context, code int, data interface{}) error {
	return ctx.JSON(code, dataResponse{Success: true, Data: data})
}

func respondPage(ctx echo.Context, code int, items interface{}, page core.Page, total int) error {
	return respond(ctx, code, pageResponse{Items: items, PageInfo: core.NewPageInfo(page, total)})
}
