package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPagination(t *testing.T) {
	assert.Equal(t, 3, NewPagination(21, Filter{Limit: 10, Page: 1}).TotalPages)
	assert.Equal(t, 2, NewPagination(20, Filter{Limit: 10, Page: 2}).TotalPages)
	assert.Equal(t, 0, NewPagination(0, Filter{Limit: 10}).TotalPages)
	assert.Equal(t, 0, NewPagination(5, Filter{}).TotalPages)
}
