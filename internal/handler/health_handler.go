package handler

import (
	"net/http"
	"time"

	"github.com/flipsapp/flips-backend/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// HealthCheck reports liveness; `?check=db` also pings the database
func HealthCheck(db *gorm.DB) echo.HandlerFunc {
	return func(c echo.Context) error {
		response := echo.Map{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		}

		if c.QueryParam("check") == "db" {
			log := logger.FromEcho(c)

			sqlDB, err := db.DB()
			if err != nil {
				log.Error("Database connection error", zap.Error(err))
				response["status"] = "error"
				response["db_status"] = "error"
				return c.JSON(http.StatusInternalServerError, response)
			}
			if err := sqlDB.Ping(); err != nil {
				log.Error("Database ping error", zap.Error(err))
				response["status"] = "error"
				response["db_status"] = "error"
				return c.JSON(http.StatusInternalServerError, response)
			}
			response["db_status"] = "ok"
		}

		return c.JSON(http.StatusOK, response)
	}
}
