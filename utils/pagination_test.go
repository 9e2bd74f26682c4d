package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePagination(t *testing.T) {
	p, err := ParsePagination("", "", 20, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 20, p.Limit)

	p, err = ParsePagination("3", "500", 20, 100)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 100, p.Limit, "limit is capped")

	for _, bad := range [][2]string{{"0", ""}, {"x", ""}, {"", "-1"}, {"", "ten"}} {
		_, err := ParsePagination(bad[0], bad[1], 20, 100)
		assert.ErrorIs(t, err, ErrInvalidPagination, "page=%q limit=%q", bad[0], bad[1])
	}
}

func TestParsePagination_RejectsOverflowingOffset(t *testing.T) {
	_, err := ParsePagination("9223372036854775807", "100", 20, 100)
	assert.ErrorIs(t, err, ErrInvalidPagination)

	_, err = ParsePagination("21474838", "100", 20, 100)
	assert.ErrorIs(t, err, ErrInvalidPagination)

	p, err := ParsePagination("21474837", "100", 20, 100)
	require.NoError(t, err)
	assert.Equal(t, 21474836*100, (p.Page-1)*p.Limit)
}

func TestPagination_SetTotal(t *testing.T) {
	p := Pagination{Page: 1, Limit: 20}
	p.SetTotal(0)
	assert.Equal(t, 0, p.TotalPages)
	p.SetTotal(20)
	assert.Equal(t, 1, p.TotalPages)
	p.SetTotal(41)
	assert.Equal(t, 3, p.TotalPages)
}
