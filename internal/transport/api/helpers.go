package api

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vidmarket/coinledger/internal/domain"
	"github.com/vidmarket/coinledger/internal/transport/api/middlewares"
)

func getAccountIDFromContext(c *gin.Context) int64 {
	return c.GetInt64(middlewares.CurrentAccountIDKey)
}

func getRoleFromContext(c *gin.Context) domain.Role {
	role, _ := c.Get(middlewares.CurrentRoleKey)
	r, ok := role.(domain.Role)
	if !ok {
		return ""
	}
	return r
}

// parseIDParam парсит path-параметр :id. Вторым значением возвращает успех.
func parseIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
