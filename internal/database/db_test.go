package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeOrderBy(t *testing.T) {
	valid := []string{"view_count", "name", "latest_value"}

	assert.Equal(t, "name", SafeOrderBy("name", valid))
	assert.Equal(t, "name", SafeOrderBy("  NAME ", valid))
	// Anything off the whitelist falls back to the first column.
	assert.Equal(t, "view_count", SafeOrderBy("id; DROP TABLE indicators", valid))
	assert.Equal(t, "view_count", SafeOrderBy("", valid))
}

func TestSafeSortDirection(t *testing.T) {
	assert.Equal(t, "ASC", SafeSortDirection("asc"))
	assert.Equal(t, "ASC", SafeSortDirection(" ASC "))
	assert.Equal(t, "DESC", SafeSortDirection("desc"))
	assert.Equal(t, "DESC", SafeSortDirection("sideways"))
	assert.Equal(t, "DESC", SafeSortDirection(""))
}

func TestSafeLimit(t *testing.T) {
	assert.Equal(t, 100, SafeLimit(0, 100, 500))
	assert.Equal(t, 100, SafeLimit(-5, 100, 500))
	assert.Equal(t, 42, SafeLimit(42, 100, 500))
	assert.Equal(t, 500, SafeLimit(9999, 100, 500))
}

func TestSafeOffset(t *testing.T) {
	assert.Equal(t, 0, SafeOffset(-1))
	assert.Equal(t, 0, SafeOffset(0))
	assert.Equal(t, 30, SafeOffset(30))
}
