package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"task-manager/server/internal/models"
	"task-manager/server/internal/services"

	"github.com/gin-gonic/gin"
)

type TaskHandler struct {
	taskService services.TaskService
	logger      *slog.Logger
}

func NewTaskHandler(taskService services.TaskService, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskHandler{taskService: taskService, logger: logger}
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	var task models.Task
	if err := c.ShouldBindJSON(&task); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	created, err := h.taskService.CreateTask(c.Request.Context(), task)
	if err != nil {
		h.handleTaskError(c, err, "failed to create task")
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *TaskHandler) ListTasks(c *gin.Context) {
	tasks, err := h.taskService.ListTasks(c.Request.Context(), c.Query("email"))
	if err != nil {
		h.handleTaskError(c, err, "failed to list tasks")
		return
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	c.JSON(http.StatusOK, tasks)
}

type updateCategoryRequest struct {
	Category models.Category `json:"category"`
}

func (h *TaskHandler) UpdateTaskCategory(c *gin.Context) {
	var req updateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request body."})
		return
	}

	_, err := h.taskService.UpdateTaskCategory(c.Request.Context(), c.Param("id"), req.Category)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Task not found."})
			return
		}
		h.logger.Error("failed to update task category", "task_id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal server error."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Task category updated successfully."})
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	res, err := h.taskService.DeleteTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleTaskError(c, err, "failed to delete task")
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *TaskHandler) handleTaskError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, services.ErrBadRequest):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Email is required"})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
	default:
		h.logger.Error(msg, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
	}
}
