package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"rentflow/internal/models"
	"rentflow/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// bindJSON 绑定请求体，失败时返回友好的提示
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.BadRequest(c, bindErrorMessage(err))
		return false
	}
	return true
}

func bindErrorMessage(err error) string {
	var validationErr validator.ValidationErrors
	if !errors.As(err, &validationErr) || len(validationErr) == 0 {
		return "请求参数格式错误"
	}

	// 只返回第一个错误
	fieldErr := validationErr[0]
	switch fieldErr.Tag() {
	case "required":
		return fmt.Sprintf("字段 %s 不能为空", fieldErr.Field())
	case "oneof":
		return fmt.Sprintf("字段 %s 必须是以下之一: %s", fieldErr.Field(), fieldErr.Param())
	case "datetime":
		return fmt.Sprintf("字段 %s 日期格式应为 %s", fieldErr.Field(), fieldErr.Param())
	case "min", "max":
		return fmt.Sprintf("字段 %s 超出允许范围（%s %s）", fieldErr.Field(), fieldErr.Tag(), fieldErr.Param())
	default:
		return fmt.Sprintf("字段 %s 验证失败", fieldErr.Field())
	}
}

// parseID 解析路径中的ID参数
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, "无效的ID")
		return 0, false
	}
	return uint(id), true
}

// queryUint 解析可选的数字查询参数，缺省为0
func queryUint(c *gin.Context, name string) (uint, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		response.BadRequest(c, fmt.Sprintf("参数 %s 无效", name))
		return 0, false
	}
	return uint(v), true
}

// queryTime 解析 RFC3339 或 YYYY-MM-DD
func queryTime(c *gin.Context, name string, fallback time.Time) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	if t, err := models.ParseDate(raw); err == nil {
		return t, true
	}
	response.BadRequest(c, fmt.Sprintf("参数 %s 时间格式错误", name))
	return time.Time{}, false
}
