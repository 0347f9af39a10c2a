package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"companion-dispatch.com/companion-dispatch/internal/constants"
	dto "companion-dispatch.com/companion-dispatch/internal/data_models"
	apperrors "companion-dispatch.com/companion-dispatch/internal/errors"
	"companion-dispatch.com/companion-dispatch/internal/http/validators"
	repository "companion-dispatch.com/companion-dispatch/internal/repositories"
	"companion-dispatch.com/companion-dispatch/internal/services"
)

// Handler is the thin HTTP boundary. Authentication happens upstream; the
// proxy forwards the caller's identity in X-User-ID.
type Handler struct {
	assignments *services.AssignmentService
	queue       *services.QueueService
	extensions  *services.ExtensionService
	overtime    *services.OvertimeService
}

func NewHandler(
	assignments *services.AssignmentService,
	queue *services.QueueService,
	extensions *services.ExtensionService,
	overtime *services.OvertimeService,
) *Handler {
	return &Handler{
		assignments: assignments,
		queue:       queue,
		extensions:  extensions,
		overtime:    overtime,
	}
}

func callerID(c echo.Context) (string, error) {
	id := c.Request().Header.Get("X-User-ID")
	if id == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing caller identity")
	}
	return id, nil
}

func respondError(c echo.Context, err error) error {
	return c.JSON(apperrors.StatusCode(err), echo.Map{
		"code":    apperrors.Code(err),
		"message": err.Error(),
	})
}

func (h *Handler) CreateTask(c echo.Context) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}

	var req dto.CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if err := validators.ValidateCreateTaskRequest(&req); err != nil {
		return err
	}

	task, err := h.assignments.CreateTask(c.Request().Context(), services.CreateTaskInput{
		CustomerName:    req.CustomerName,
		CustomerContact: req.CustomerContact,
		GameName:        req.GameName,
		GameMode:        req.GameMode,
		Requirements:    req.Requirements,
		DurationMinutes: req.DurationMinutes,
		Price:           req.Price,
		PlayerID:        req.PlayerID,
	}, caller)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, task)
}

func (h *Handler) AcceptTask(c echo.Context) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}

	task, err := h.assignments.AcceptTask(c.Request().Context(), c.Param("id"), caller)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

func (h *Handler) StartTask(c echo.Context) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}

	task, err := h.assignments.StartTask(c.Request().Context(), c.Param("id"), caller)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

func (h *Handler) CompleteTask(c echo.Context) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}

	task, nextTask, err := h.assignments.CompleteTask(c.Request().Context(), c.Param("id"), caller)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"task":      task,
		"next_task": nextTask,
	})
}

func (h *Handler) CancelTask(c echo.Context) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}

	task, nextTask, err := h.assignments.CancelTask(c.Request().Context(), c.Param("id"), caller)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"task":      task,
		"next_task": nextTask,
	})
}

func (h *Handler) PauseTask(c echo.Context) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}

	task, err := h.assignments.PauseTask(c.Request().Context(), c.Param("id"), caller)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

func (h *Handler) ResumeTask(c echo.Context) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}

	task, err := h.assignments.ResumeTask(c.Request().Context(), c.Param("id"), caller)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

func (h *Handler) UpdateTask(c echo.Context) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}

	var req dto.UpdateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}

	task, err := h.assignments.UpdateTask(c.Request().Context(), c.Param("id"), caller, services.UpdateTaskInput{
		CustomerName:    req.CustomerName,
		CustomerContact: req.CustomerContact,
		GameName:        req.GameName,
		GameMode:        req.GameMode,
		Requirements:    req.Requirements,
		DurationMinutes: req.DurationMinutes,
		Price:           req.Price,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

func (h *Handler) GetTask(c echo.Context) error {
	task, err := h.assignments.GetTask(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

func (h *Handler) ListTasks(c echo.Context) error {
	filter := repository.TaskFilter{
		DispatcherID: c.QueryParam("dispatcher_id"),
		PlayerID:     c.QueryParam("player_id"),
		Status:       constants.TaskStatus(c.QueryParam("status")),
	}

	tasks, err := h.assignments.ListTasks(c.Request().Context(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"count": len(tasks),
		"tasks": tasks,
	})
}

func (h *Handler) ReassignTask(c echo.Context) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}

	var req dto.ReassignTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if req.PlayerID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "player_id is required")
	}

	task, err := h.queue.Reassign(c.Request().Context(), c.Param("id"), caller, req.PlayerID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

func (h *Handler) ExtendTaskDuration(c echo.Context) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}

	var req dto.ExtendDurationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}

	task, err := h.extensions.ExtendTaskDuration(c.Request().Context(), c.Param("id"), caller, req.Minutes, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

func (h *Handler) RequestExtension(c echo.Context) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}

	var req dto.RequestExtensionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}

	request, err := h.extensions.RequestExtension(c.Request().Context(), c.Param("id"), caller, req.Minutes, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, request)
}

func (h *Handler) ReviewExtension(c echo.Context) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}

	var req dto.ReviewExtensionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if err := validators.ValidateReviewExtensionRequest(&req); err != nil {
		return err
	}

	request, err := h.extensions.ReviewExtensionRequest(
		c.Request().Context(),
		c.Param("id"),
		caller,
		req.Decision == "approved",
		req.Reason,
	)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, request)
}

func (h *Handler) ListPendingExtensions(c echo.Context) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}

	requests, err := h.extensions.ListPendingForDispatcher(c.Request().Context(), caller)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"count":    len(requests),
		"requests": requests,
	})
}

func (h *Handler) ListMyExtensions(c echo.Context) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}

	requests, err := h.extensions.ListForPlayer(c.Request().Context(), caller, c.QueryParam("task_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"count":    len(requests),
		"requests": requests,
	})
}

func (h *Handler) CheckTaskOvertime(c echo.Context) error {
	task, moved, err := h.overtime.CheckTaskOvertime(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"task":           task,
		"moved_overtime": moved,
	})
}
