package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/your-org/timeclock/internal/apperr"
	"github.com/your-org/timeclock/internal/auth"
	"github.com/your-org/timeclock/internal/models"
	"github.com/your-org/timeclock/internal/storage"
	"github.com/your-org/timeclock/pkg/dto"
)

var errEmailTaken = apperr.Conflict("email_taken", "email already registered")

type UserHandler struct {
	users UserStore
}

func NewUserHandler(users UserStore) *UserHandler {
	return &UserHandler{users: users}
}

func (h *UserHandler) Create(c *gin.Context) {
	var req dto.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(c, apperr.Internal("hash password", err))
		return
	}

	u := &models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Role:         req.Role,
		PasswordHash: hash,
	}
	if err := h.users.CreateUser(c.Request.Context(), u); err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			respondError(c, errEmailTaken)
			return
		}
		respondError(c, apperr.Internal("create user", err))
		return
	}

	c.JSON(http.StatusCreated, dto.NewUserResponse(u))
}

func (h *UserHandler) Me(c *gin.Context) {
	u, err := h.users.GetUser(c.Request.Context(), auth.UserIDFrom(c))
	if err != nil {
		respondError(c, apperr.Internal("get user", err))
		return
	}
	if u == nil {
		respondError(c, errUserNotFound)
		return
	}
	c.JSON(http.StatusOK, dto.NewUserResponse(u))
}

// Presence lists every user with the derived "clocked in and not on a break"
// flag.
func (h *UserHandler) Presence(c *gin.Context) {
	users, err := h.users.ListUsers(c.Request.Context())
	if err != nil {
		respondError(c, apperr.Internal("list users", err))
		return
	}

	resp := dto.PresenceResponse{Users: make([]dto.UserResponse, 0, len(users)), Total: len(users)}
	for i := range users {
		r := dto.NewUserResponse(&users[i])
		if r.Present {
			resp.Present++
		}
		resp.Users = append(resp.Users, r)
	}
	c.JSON(http.StatusOK, resp)
}
