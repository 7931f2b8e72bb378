package httpapi

import "github.com/gin-gonic/gin"

// Register mounts the passport and audit-log-book routes under /v1 behind guard.
func Register(r gin.IRouter, h Handlers, guard ...gin.HandlerFunc) {
	v1 := r.Group("/v1")
	v1.Use(guard...)

	passports := v1.Group("/passports")
	{
		passports.POST("", h.CreatePassport)
		passports.GET("", h.ListPassports)
		passports.POST("/verify", h.VerifyPassport)
		passports.GET("/:passport_id", h.GetPassport)
		passports.DELETE("/:passport_id", h.DeletePassport)
	}

	book := v1.Group("/audit-log-book")
	{
		book.POST("", h.RecompileBook)
		book.POST("/audit-logs", h.AuditLogsByIDs)
		book.GET("/:passport_id", h.GetBook)
	}
}
