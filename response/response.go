// Package response 统一的 JSON 响应格式
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error 错误响应：{"code": status, "message": msg}
func Error(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"code":    status,
		"message": msg,
	})
}

// Success 成功响应，直接输出数据
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created 新建成功
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}
