package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/devhub/internal/actorctx"
	"github.com/geocoder89/devhub/internal/http/middlewares"
	"github.com/geocoder89/devhub/internal/utils"
	"github.com/gin-gonic/gin"
)

type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"requestId,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

func requestIDFrom(ctx *gin.Context) string {
	v, ok := ctx.Get(middlewares.CtxRequestID)

	if ok {
		s, ok := v.(string)
		if ok && s != "" {
			return s
		}
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

func RespondError(ctx *gin.Context, status int, code, message string, details interface{}) {
	ctx.JSON(status, gin.H{
		"error": APIError{
			Code:      code,
			Message:   message,
			RequestID: requestIDFrom(ctx),
			Details:   details,
		},
	})
}

func RespondBadRequest(ctx *gin.Context, message string, details interface{}) {
	RespondError(ctx, http.StatusBadRequest, "invalid_request", message, details)
}

func RespondUnauthorized(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusUnauthorized, "unauthorized", message, nil)
}

func RespondForbidden(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusForbidden, "forbidden", message, nil)
}

func RespondNotFound(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusNotFound, code, message, nil)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, "internal_error", message, nil)
}

// respondUnexpected logs err with the request's trace and answers a generic 500.
func respondUnexpected(ctx *gin.Context, op string, err error) {
	rctx := ctx.Request.Context()

	attrs := []any{
		"op", op,
		"route", ctx.FullPath(),
		"request_id", requestIDFrom(ctx),
		"err", err,
	}
	if userID, ok := actorctx.UserIDFrom(rctx); ok {
		attrs = append(attrs, "user_id", userID)
	}

	slog.ErrorContext(rctx, "request failed", attrs...)
	RespondInternal(ctx, "Server error")
}

// requestContext bounds storage work by d while keeping the request's
// trace and caller identity.
func requestContext(ctx *gin.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.Request.Context(), d)
}

// callerID returns the authenticated user. Routes reaching it sit behind
// RequireAuth, so a miss is a wiring bug and answered as 401.
func callerID(ctx *gin.Context) (string, bool) {
	id, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "Unauthorized: no token")
		return "", false
	}
	return id, true
}

// uuidParam reads path parameter name and rejects malformed ids with 400.
func uuidParam(ctx *gin.Context, name string) (string, bool) {
	id := ctx.Param(name)
	if !utils.IsUUID(id) {
		RespondError(ctx, http.StatusBadRequest, "invalid_id", "Invalid "+name, nil)
		return "", false
	}
	return id, true
}
