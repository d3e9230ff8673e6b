package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/geocoder89/devhub/internal/domain/user"
	"github.com/geocoder89/devhub/internal/gravatar"
	"github.com/geocoder89/devhub/internal/security"
	"github.com/gin-gonic/gin"
)

type UsersRepository interface {
	Create(ctx context.Context, u user.User) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
}

type TokenIssuer interface {
	Issue(userID string) (string, error)
}

type AuthHandler struct {
	users  UsersRepository
	tokens TokenIssuer
}

func NewAuthHandler(users UsersRepository, tokens TokenIssuer) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens}
}

// Register creates an account and answers with a token for it.
func (h *AuthHandler) Register(ctx *gin.Context) {
	var req user.RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		respondUnexpected(ctx, "auth.register.hash", err)
		return
	}

	cctx, cancel := requestContext(ctx, 3*time.Second)
	defer cancel()

	u, err := h.users.Create(cctx, user.New(req.Name, req.Email, hash, gravatar.URL(req.Email)))
	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			RespondError(ctx, http.StatusBadRequest, "email_taken", "User already exists", nil)
			return
		}
		respondUnexpected(ctx, "auth.register.create", err)
		return
	}

	token, err := h.tokens.Issue(u.ID)
	if err != nil {
		respondUnexpected(ctx, "auth.register.issue", err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"token": token})
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req user.LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// short timeout for DB lookup
	cctx, cancel := requestContext(ctx, 2*time.Second)
	defer cancel()

	found, err := h.users.GetByEmail(cctx, req.Email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			respondInvalidCredentials(ctx)
			return
		}
		respondUnexpected(ctx, "auth.login.lookup", err)
		return
	}

	if err := security.CheckPassword(found.PasswordHash, req.Password); err != nil {
		respondInvalidCredentials(ctx)
		return
	}

	token, err := h.tokens.Issue(found.ID)
	if err != nil {
		respondUnexpected(ctx, "auth.login.issue", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"token": token})
}

// Me returns the caller's account without the password hash.
func (h *AuthHandler) Me(ctx *gin.Context) {
	userID, ok := callerID(ctx)
	if !ok {
		return
	}

	cctx, cancel := requestContext(ctx, 2*time.Second)
	defer cancel()

	u, err := h.users.GetByID(cctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "user_not_found", "User not found")
			return
		}
		respondUnexpected(ctx, "auth.me", err)
		return
	}

	ctx.JSON(http.StatusOK, u)
}

// unknown email and wrong password answer identically
func respondInvalidCredentials(ctx *gin.Context) {
	RespondError(ctx, http.StatusBadRequest, "invalid_credentials", "Invalid credentials", nil)
}
