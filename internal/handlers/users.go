package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"task-manager/server/internal/models"
	"task-manager/server/internal/services"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userService services.UserService
	logger      *slog.Logger
}

func NewUserHandler(userService services.UserService, logger *slog.Logger) *UserHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserHandler{userService: userService, logger: logger}
}

func (h *UserHandler) CreateUser(c *gin.Context) {
	var user models.User
	if err := c.ShouldBindJSON(&user); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	_, res, err := h.userService.CreateUser(c.Request.Context(), user)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrConflict):
			c.JSON(http.StatusBadRequest, gin.H{"message": "User with this email already exists"})
		case errors.Is(err, services.ErrBadRequest):
			c.JSON(http.StatusBadRequest, gin.H{"message": "Email is required"})
		default:
			h.logger.Error("failed to create user", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		}
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *UserHandler) ListUsers(c *gin.Context) {
	users, err := h.userService.ListUsers(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list users", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}
	if users == nil {
		users = []models.User{}
	}
	c.JSON(http.StatusOK, users)
}
