package admin

import (
	"github.com/fenxiao-next/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
)

func getAdminID(c *gin.Context) (uint, bool) {
	return shared.GetContextUint(c, "admin_id")
}
