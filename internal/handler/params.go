package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const maxPageSize = 100

// queryLimit reads ?limit=, falling back to 20 when missing or out of range.
func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 || limit > maxPageSize {
		return 20
	}
	return limit
}
