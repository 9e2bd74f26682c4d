package utils

import (
	"errors"
	"math"
	"strconv"

	"gorm.io/gorm"
)

var ErrInvalidPagination = errors.New("page and limit must be positive integers")

// maxOffset bounds (page-1)*limit so the offset cannot overflow.
const maxOffset = math.MaxInt32

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// ParsePagination reads page/limit query values. Missing values take the
// defaults; limit is capped at maxLimit.
func ParsePagination(pageStr, limitStr string, defaultLimit, maxLimit int) (Pagination, error) {
	p := Pagination{Page: 1, Limit: defaultLimit}
	if pageStr != "" {
		n, err := strconv.Atoi(pageStr)
		if err != nil || n < 1 {
			return p, ErrInvalidPagination
		}
		p.Page = n
	}
	if limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n < 1 {
			return p, ErrInvalidPagination
		}
		p.Limit = n
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	if p.Page-1 > maxOffset/p.Limit {
		return p, ErrInvalidPagination
	}
	return p, nil
}

// SetTotal records the row count and derives TotalPages.
func (p *Pagination) SetTotal(total int64) {
	p.Total = total
	p.TotalPages = int((total + int64(p.Limit) - 1) / int64(p.Limit))
}

// ApplyPagination adds offset/limit to a query.
func ApplyPagination(db *gorm.DB, p Pagination) *gorm.DB {
	if p.Page > 0 && p.Limit > 0 {
		return db.Offset((p.Page - 1) * p.Limit).Limit(p.Limit)
	}
	return db
}
