package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// InternalErrorMessage は内部エラー時にクライアントへ返すメッセージ。
const InternalErrorMessage = "Internal Server Error"

// Recovery はパニックからの回復を行うGinミドルウェアを返す。
// パニック値はサーバーログにのみ出力し、クライアントには固定の500を返す。
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("パニックから回復しました",
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.Any("panic", r),
					zap.Stack("stack"),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"message": InternalErrorMessage,
				})
			}
		}()
		c.Next()
	}
}
