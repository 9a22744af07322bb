package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo-fees/core"
)

var (
	orderingParam = "ordering"
	pageParam     = "page"
	limitParam    = "limit"
	searchParam   = "search"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads a comma separated list of fields, e.g. `?ordering=name,-created_at`.
func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// bindPage reads `?page=&limit=`; missing or invalid values fall back to defaults.
func bindPage(ctx echo.Context) core.Page {
	number, _ := strconv.Atoi(ctx.QueryParam(pageParam))
	size, _ := strconv.Atoi(ctx.QueryParam(limitParam))
	return core.NewPage(number, size)
}
