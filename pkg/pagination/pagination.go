package pagination

import (
	"math"

	"github.com/gin-gonic/gin"
	"github.com/velocab/ridecore/pkg/common"
)

const (
	// DefaultLimit is the default number of items per page
	DefaultLimit = 20
	// MaxLimit is the maximum number of items per page
	MaxLimit = 100
)

// Params represents page-based pagination parameters.
type Params struct {
	Page  int `form:"page" json:"page"`
	Limit int `form:"limit" json:"limit"`
}

// Offset converts the page number into a row offset.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// ParseParams extracts and sanitizes pagination parameters from the request.
// Invalid or missing values fall back to defaults.
func ParseParams(c *gin.Context) Params {
	params := Params{
		Page:  1,
		Limit: DefaultLimit,
	}

	if err := c.ShouldBindQuery(&params); err != nil {
		return Params{Page: 1, Limit: DefaultLimit}
	}

	if params.Page < 1 {
		params.Page = 1
	}
	if params.Limit <= 0 {
		params.Limit = DefaultLimit
	}
	if params.Limit > MaxLimit {
		params.Limit = MaxLimit
	}

	return params
}

// BuildMeta creates pagination metadata for responses.
func BuildMeta(params Params, total int64) *common.Meta {
	meta := &common.Meta{
		Page:  params.Page,
		Limit: params.Limit,
		Total: total,
	}
	if params.Limit > 0 {
		meta.TotalPages = int(math.Ceil(float64(total) / float64(params.Limit)))
	}
	return meta
}
