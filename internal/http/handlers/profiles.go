package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/geocoder89/devhub/internal/cache"
	"github.com/geocoder89/devhub/internal/domain/profile"
	"github.com/geocoder89/devhub/internal/domain/user"
	"github.com/geocoder89/devhub/internal/github"
	"github.com/geocoder89/devhub/internal/observability"
	"github.com/geocoder89/devhub/internal/utils"
	"github.com/gin-gonic/gin"
)

type ProfilesRepository interface {
	GetByUser(ctx context.Context, userID string) (profile.Profile, error)
	List(ctx context.Context) ([]profile.Profile, error)
	Upsert(ctx context.Context, userID string, f profile.Fields) (profile.Profile, bool, error)
	Mutate(ctx context.Context, userID string, fn func(*profile.Profile) error) (profile.Profile, error)
}

type AccountsRepository interface {
	DeleteAccount(ctx context.Context, userID, requestID string) error
}

const msgNoProfile = "There is no profile for this user"

type ProfileHandler struct {
	profiles ProfilesRepository
	accounts AccountsRepository
	github   github.ReposFetcher
	cache    cache.Store
	prom     *observability.Prom
}

// NewProfileHandler wires the profile routes. store and prom may be nil.
func NewProfileHandler(profiles ProfilesRepository, accounts AccountsRepository, gh github.ReposFetcher, store cache.Store, prom *observability.Prom) *ProfileHandler {
	return &ProfileHandler{
		profiles: profiles,
		accounts: accounts,
		github:   gh,
		cache:    store,
		prom:     prom,
	}
}

func (h *ProfileHandler) Me(ctx *gin.Context) {
	userID, ok := callerID(ctx)
	if !ok {
		return
	}

	cctx, cancel := requestContext(ctx, 2*time.Second)
	defer cancel()

	p, err := h.profiles.GetByUser(cctx, userID)
	if err != nil {
		h.respondProfileErr(ctx, "profiles.me", err)
		return
	}

	ctx.JSON(http.StatusOK, p)
}

// Upsert creates the caller's profile or merges the supplied fields into it.
func (h *ProfileHandler) Upsert(ctx *gin.Context) {
	userID, ok := callerID(ctx)
	if !ok {
		return
	}

	var req profile.UpsertRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := requestContext(ctx, 3*time.Second)
	defer cancel()

	p, created, err := h.profiles.Upsert(cctx, userID, req.Fields())
	if err != nil {
		if respondInvalidField(ctx, err) {
			return
		}
		respondUnexpected(ctx, "profiles.upsert", err)
		return
	}

	h.invalidate(cctx, userID)

	if created {
		ctx.JSON(http.StatusCreated, gin.H{"msg": "Profile created", "profile": p})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"msg": "Profile updated", "profile": p})
}

// DeleteAccount removes the caller's profile and user. Their posts, likes and
// comments are purged afterwards by the worker.
func (h *ProfileHandler) DeleteAccount(ctx *gin.Context) {
	userID, ok := callerID(ctx)
	if !ok {
		return
	}

	cctx, cancel := requestContext(ctx, 3*time.Second)
	defer cancel()

	if err := h.accounts.DeleteAccount(cctx, userID, requestIDFrom(ctx)); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "user_not_found", "User not found")
			return
		}
		respondUnexpected(ctx, "profiles.delete_account", err)
		return
	}

	h.invalidate(cctx, userID)

	ctx.JSON(http.StatusOK, gin.H{"msg": "User deleted"})
}

func (h *ProfileHandler) AddExperience(ctx *gin.Context) {
	var req profile.ExperienceRequest
	if !BindJSON(ctx, &req) {
		return
	}

	entry, err := profile.NewExperience(req)
	if err != nil {
		if !respondInvalidField(ctx, err) {
			respondUnexpected(ctx, "profiles.add_experience", err)
		}
		return
	}

	h.mutate(ctx, "profiles.add_experience", "", func(p *profile.Profile) error {
		p.AddExperience(entry)
		return nil
	})
}

func (h *ProfileHandler) RemoveExperience(ctx *gin.Context) {
	id, ok := uuidParam(ctx, "id")
	if !ok {
		return
	}

	h.mutate(ctx, "profiles.remove_experience", "Experience not found", func(p *profile.Profile) error {
		return p.RemoveExperience(id)
	})
}

func (h *ProfileHandler) AddEducation(ctx *gin.Context) {
	var req profile.EducationRequest
	if !BindJSON(ctx, &req) {
		return
	}

	entry, err := profile.NewEducation(req)
	if err != nil {
		if !respondInvalidField(ctx, err) {
			respondUnexpected(ctx, "profiles.add_education", err)
		}
		return
	}

	h.mutate(ctx, "profiles.add_education", "", func(p *profile.Profile) error {
		p.AddEducation(entry)
		return nil
	})
}

func (h *ProfileHandler) RemoveEducation(ctx *gin.Context) {
	id, ok := uuidParam(ctx, "id")
	if !ok {
		return
	}

	h.mutate(ctx, "profiles.remove_education", "Education not found", func(p *profile.Profile) error {
		return p.RemoveEducation(id)
	})
}

// mutate runs fn against the caller's profile and answers with the result.
// A missing entry is informational: 200 with entryMissing and the profile as stored.
func (h *ProfileHandler) mutate(ctx *gin.Context, op, entryMissing string, fn func(*profile.Profile) error) {
	userID, ok := callerID(ctx)
	if !ok {
		return
	}

	cctx, cancel := requestContext(ctx, 3*time.Second)
	defer cancel()

	p, err := h.profiles.Mutate(cctx, userID, fn)
	if err != nil {
		if errors.Is(err, profile.ErrEntryNotFound) {
			ctx.JSON(http.StatusOK, gin.H{"msg": entryMissing, "profile": p})
			return
		}
		h.respondProfileErr(ctx, op, err)
		return
	}

	h.invalidate(cctx, userID)

	ctx.JSON(http.StatusOK, p)
}

// List returns every profile with its owner's name and avatar.
func (h *ProfileHandler) List(ctx *gin.Context) {
	cctx, cancel := requestContext(ctx, 2*time.Second)
	defer cancel()

	key := utils.ProfilesListCacheKey()

	var cached []profile.Profile
	if cachedJSON(cctx, h, key, &cached) {
		RespondJSONWithETag(ctx, http.StatusOK, cached)
		return
	}

	items, err := h.profiles.List(cctx)
	if err != nil {
		respondUnexpected(ctx, "profiles.list", err)
		return
	}

	h.cacheSet(cctx, key, items)

	RespondJSONWithETag(ctx, http.StatusOK, items)
}

func (h *ProfileHandler) GetByUser(ctx *gin.Context) {
	userID, ok := uuidParam(ctx, "id")
	if !ok {
		return
	}

	cctx, cancel := requestContext(ctx, 2*time.Second)
	defer cancel()

	key := utils.ProfileByUserCacheKey(userID)

	var cached profile.Profile
	if cachedJSON(cctx, h, key, &cached) {
		RespondJSONWithETag(ctx, http.StatusOK, cached)
		return
	}

	p, err := h.profiles.GetByUser(cctx, userID)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			RespondNotFound(ctx, "profile_not_found", "Profile not found")
			return
		}
		respondUnexpected(ctx, "profiles.get_by_user", err)
		return
	}

	h.cacheSet(cctx, key, p)

	RespondJSONWithETag(ctx, http.StatusOK, p)
}

// GitHubRepos proxies the user's five oldest public repositories. Any
// failure, including GitHub being down, reads as "no profile".
func (h *ProfileHandler) GitHubRepos(ctx *gin.Context) {
	username := strings.TrimSpace(ctx.Param("username"))
	if username == "" || len(username) > 39 {
		RespondNotFound(ctx, "github_not_found", "No GitHub profile found")
		return
	}

	repos, err := h.github.Repos(ctx.Request.Context(), username)
	if err != nil {
		if !errors.Is(err, github.ErrNotFound) {
			slog.WarnContext(ctx.Request.Context(), "github lookup failed", "username", username, "err", err)
		}
		RespondNotFound(ctx, "github_not_found", "No GitHub profile found")
		return
	}

	ctx.JSON(http.StatusOK, repos)
}

func (h *ProfileHandler) respondProfileErr(ctx *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, profile.ErrNotFound):
		RespondNotFound(ctx, "profile_not_found", msgNoProfile)
	case respondInvalidField(ctx, err):
	default:
		respondUnexpected(ctx, op, err)
	}
}

// cachedJSON reads key into dest. Store failures count as misses.
func cachedJSON[T any](ctx context.Context, h *ProfileHandler, key string, dest *T) bool {
	if h.cache == nil {
		return false
	}

	hit, err := cache.GetJSON(ctx, h.cache, key, dest)
	if err != nil {
		slog.WarnContext(ctx, "cache read failed", "key", key, "err", err)
		hit = false
	}

	if h.prom != nil {
		h.prom.ObserveCache("profiles", hit)
	}
	return hit
}

func (h *ProfileHandler) cacheSet(ctx context.Context, key string, value any) {
	if h.cache == nil {
		return
	}
	if err := cache.SetJSON(ctx, h.cache, key, value); err != nil {
		slog.WarnContext(ctx, "cache write failed", "key", key, "err", err)
	}
}

// invalidate drops every cached read a change to userID's profile affects.
func (h *ProfileHandler) invalidate(ctx context.Context, userID string) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Delete(ctx, utils.ProfileCacheKeys(userID)...); err != nil {
		slog.WarnContext(ctx, "cache invalidation failed", "user_id", userID, "err", err)
	}
}
