package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/timeclock/internal/apperr"
	"github.com/your-org/timeclock/internal/auth"
	"github.com/your-org/timeclock/internal/models"
	"github.com/your-org/timeclock/pkg/dto"
)

var (
	errInvalidCredentials = apperr.Unauthenticated("invalid_credentials", "invalid credentials")
	errTOTPRequired       = apperr.Unauthenticated("totp_required", "authenticator code required")
	errInvalidTOTP        = apperr.Unauthenticated("invalid_totp", "invalid authenticator code")
	errTOTPEnabled        = apperr.Conflict("totp_already_enabled", "two-factor authentication is already enabled")
	errTOTPNotEnrolled    = apperr.Conflict("totp_not_enrolled", "enroll before verifying")
	errUserNotFound       = apperr.NotFound("user_not_found", "user not found")
)

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	SetTOTPSecret(ctx context.Context, id uuid.UUID, secret string) error
	EnableTOTP(ctx context.Context, id uuid.UUID) error
}

type AuthHandler struct {
	users         UserStore
	issuer        *auth.TokenIssuer
	totpIssuer    string
	now           func() time.Time
	checkPassword func(hash, pw string) bool
}

func NewAuthHandler(users UserStore, issuer *auth.TokenIssuer, totpIssuer string) *AuthHandler {
	return &AuthHandler{
		users:         users,
		issuer:        issuer,
		totpIssuer:    totpIssuer,
		now:           time.Now,
		checkPassword: auth.CheckPassword,
	}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	u, err := h.users.GetUserByEmail(c.Request.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		respondError(c, apperr.Internal("get user by email", err))
		return
	}
	hash := auth.DummyHash()
	if u != nil {
		hash = u.PasswordHash
	}
	if !h.checkPassword(hash, req.Password) || u == nil {
		respondError(c, errInvalidCredentials)
		return
	}

	if u.TOTPEnabled {
		code := strings.TrimSpace(req.TOTPCode)
		if code == "" {
			respondError(c, errTOTPRequired)
			return
		}
		if !auth.VerifyTOTP(code, u.TOTPSecret, h.now()) {
			respondError(c, errInvalidTOTP)
			return
		}
	}

	token, expires, err := h.issuer.Issue(u.ID, u.Role)
	if err != nil {
		respondError(c, apperr.Internal("issue token", err))
		return
	}

	c.JSON(http.StatusOK, dto.LoginResponse{
		Token:     token,
		ExpiresAt: expires.UTC().Format(time.RFC3339),
		User:      dto.NewUserResponse(u),
	})
}

// OTPEnroll issues a fresh TOTP secret. It only takes effect after
// OTPVerify confirms the user's authenticator produces valid codes.
func (h *AuthHandler) OTPEnroll(c *gin.Context) {
	u, err := h.caller(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if u.TOTPEnabled {
		respondError(c, errTOTPEnabled)
		return
	}

	secret, url, err := auth.GenerateTOTPSecret(h.totpIssuer, u.Email)
	if err != nil {
		respondError(c, apperr.Internal("generate totp secret", err))
		return
	}
	if err := h.users.SetTOTPSecret(c.Request.Context(), u.ID, secret); err != nil {
		respondError(c, apperr.Internal("set totp secret", err))
		return
	}

	c.JSON(http.StatusOK, dto.OTPEnrollResponse{Secret: secret, OTPAuthURL: url})
}

func (h *AuthHandler) OTPVerify(c *gin.Context) {
	var req dto.OTPVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	u, err := h.caller(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if u.TOTPSecret == "" {
		respondError(c, errTOTPNotEnrolled)
		return
	}
	if !auth.VerifyTOTP(req.Code, u.TOTPSecret, h.now()) {
		respondError(c, errInvalidTOTP)
		return
	}
	if err := h.users.EnableTOTP(c.Request.Context(), u.ID); err != nil {
		respondError(c, apperr.Internal("enable totp", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"totp_enabled": true})
}

func (h *AuthHandler) caller(c *gin.Context) (*models.User, error) {
	u, err := h.users.GetUser(c.Request.Context(), auth.UserIDFrom(c))
	if err != nil {
		return nil, apperr.Internal("get user", err)
	}
	if u == nil {
		return nil, errUserNotFound
	}
	return u, nil
}
