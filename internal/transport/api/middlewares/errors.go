package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

var statusTexts = map[int]string{
	http.StatusBadRequest:          "bad request",
	http.StatusUnauthorized:        "unauthorized",
	http.StatusPaymentRequired:     "payment required",
	http.StatusForbidden:           "forbidden",
	http.StatusNotFound:            "not found",
	http.StatusUnprocessableEntity: "unprocessable entity",
	http.StatusConflict:            "conflict",
}

func statusErrorText(status int) string {
	if msg, ok := statusTexts[status]; ok {
		return msg
	}
	return "internal server error"
}

// Errors рендерит первую накопленную ошибку контекста после выполнения
// обработчика. Публичные ошибки отдаются как есть, приватные заменяются
// текстом статуса. Формат ответа выбирается по заголовкам Accept/Content-Type.
func Errors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		firstErr := c.Errors[0]
		msg := statusErrorText(c.Writer.Status())
		if firstErr.IsType(gin.ErrorTypePublic) {
			msg = firstErr.Error()
		}

		accept := c.GetHeader("Accept")
		if strings.Contains(accept, "application/json") ||
			strings.Contains(c.GetHeader("Content-Type"), "application/json") {
			c.JSON(c.Writer.Status(), gin.H{"error": msg})
		} else {
			c.String(c.Writer.Status(), msg)
		}
		c.Abort()
	}
}
