package handler

import (
	"Parley/internal/pkg/consts"
	"strconv"

	"github.com/gin-gonic/gin"
)

func currentUserID(c *gin.Context) uint64 {
	return c.GetUint64(consts.UserIDKey)
}

// pathID 解析路径中的数字 ID, 非法时返回 0
func pathID(c *gin.Context, name string) uint64 {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
