package validators

import (
	"net/http"

	"github.com/labstack/echo/v4"

	dto "companion-dispatch.com/companion-dispatch/internal/data_models"
)

func ValidateCreateTaskRequest(r *dto.CreateTaskRequest) error {
	if r.CustomerName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "customer_name is required")
	}
	if r.GameName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "game_name is required")
	}
	if r.DurationMinutes <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "duration_minutes must be greater than 0")
	}
	if r.Price < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "price must not be negative")
	}
	return nil
}

func ValidateReviewExtensionRequest(r *dto.ReviewExtensionRequest) error {
	if r.Decision != "approved" && r.Decision != "rejected" {
		return echo.NewHTTPError(http.StatusBadRequest, "decision must be approved or rejected")
	}
	return nil
}
