package public

import (
	"strconv"

	"github.com/partners4saas/engine/internal/http/response"

	"github.com/gin-gonic/gin"
)

func parseIDParam(c *gin.Context) (uint, bool) {
	raw := c.Param("id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "invalid id", nil)
		return 0, false
	}
	return uint(id), true
}
