package http

import (
	"time"

	"github.com/labstack/echo/v4"

	middleware "companion-dispatch.com/companion-dispatch/internal/http/middlewares"
)

func Register(e *echo.Echo, h *Handler, rateLimitPerMinute int) {
	e.Use(middleware.RateLimiter(rateLimitPerMinute, time.Minute))

	e.POST("/tasks", h.CreateTask)
	e.GET("/tasks", h.ListTasks)
	e.GET("/tasks/:id", h.GetTask)
	e.PATCH("/tasks/:id", h.UpdateTask)

	e.POST("/tasks/:id/accept", h.AcceptTask)
	e.POST("/tasks/:id/start", h.StartTask)
	e.POST("/tasks/:id/complete", h.CompleteTask)
	e.POST("/tasks/:id/cancel", h.CancelTask)
	e.POST("/tasks/:id/pause", h.PauseTask)
	e.POST("/tasks/:id/resume", h.ResumeTask)
	e.POST("/tasks/:id/reassign", h.ReassignTask)
	e.POST("/tasks/:id/extend", h.ExtendTaskDuration)
	e.POST("/tasks/:id/overtime-check", h.CheckTaskOvertime)

	e.POST("/tasks/:id/extensions", h.RequestExtension)
	e.POST("/extensions/:id/review", h.ReviewExtension)
	e.GET("/extensions/pending", h.ListPendingExtensions)
	e.GET("/extensions/mine", h.ListMyExtensions)
}
