package pagination

import (
	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params holds validated page/limit query parameters
type Params struct {
	Page  int
	Limit int
}

// Parse reads page and limit from the query string. Garbage and out of range
// values fall back to the defaults; limit is capped at MaxLimit.
func Parse(c *gin.Context) Params {
	page := cast.ToInt(c.Query("page"))
	limit := cast.ToInt(c.Query("limit"))

	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Params{Page: page, Limit: limit}
}

// Offset is the number of rows to skip for page at the given limit.
func Offset(page, limit int) int {
	if page < 1 || limit < 1 {
		return 0
	}
	return (page - 1) * limit
}
