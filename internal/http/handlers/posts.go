package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/geocoder89/devhub/internal/domain/post"
	"github.com/geocoder89/devhub/internal/domain/user"
	"github.com/gin-gonic/gin"
)

type PostsRepository interface {
	Create(ctx context.Context, p post.Post) (post.Post, error)
	GetByID(ctx context.Context, id string) (post.Post, error)
	List(ctx context.Context) ([]post.Post, error)
	Delete(ctx context.Context, id, userID string) error
	Mutate(ctx context.Context, id string, fn func(*post.Post) error) (post.Post, error)
}

type UserLookup interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

type PostHandler struct {
	posts PostsRepository
	users UserLookup
}

func NewPostHandler(posts PostsRepository, users UserLookup) *PostHandler {
	return &PostHandler{posts: posts, users: users}
}

// Create publishes a post under the caller's current name and avatar.
func (h *PostHandler) Create(ctx *gin.Context) {
	userID, ok := callerID(ctx)
	if !ok {
		return
	}

	var req post.CreateRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := requestContext(ctx, 3*time.Second)
	defer cancel()

	author, ok := h.author(ctx, cctx, userID)
	if !ok {
		return
	}

	p, err := post.New(userID, author, req.Text)
	if err != nil {
		h.respondPostErr(ctx, "posts.create", err)
		return
	}

	created, err := h.posts.Create(cctx, p)
	if err != nil {
		respondUnexpected(ctx, "posts.create", err)
		return
	}

	ctx.JSON(http.StatusCreated, created)
}

// List returns every post, newest first.
func (h *PostHandler) List(ctx *gin.Context) {
	cctx, cancel := requestContext(ctx, 2*time.Second)
	defer cancel()

	items, err := h.posts.List(cctx)
	if err != nil {
		respondUnexpected(ctx, "posts.list", err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, items)
}

func (h *PostHandler) GetByID(ctx *gin.Context) {
	id, ok := uuidParam(ctx, "id")
	if !ok {
		return
	}

	cctx, cancel := requestContext(ctx, 2*time.Second)
	defer cancel()

	p, err := h.posts.GetByID(cctx, id)
	if err != nil {
		h.respondPostErr(ctx, "posts.get", err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, p)
}

// Delete removes a post. Only its author may do so.
func (h *PostHandler) Delete(ctx *gin.Context) {
	userID, ok := callerID(ctx)
	if !ok {
		return
	}

	id, ok := uuidParam(ctx, "id")
	if !ok {
		return
	}

	cctx, cancel := requestContext(ctx, 2*time.Second)
	defer cancel()

	if err := h.posts.Delete(cctx, id, userID); err != nil {
		h.respondPostErr(ctx, "posts.delete", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"msg": "Post removed"})
}

// Like answers with the post's likes after the caller's like is recorded.
func (h *PostHandler) Like(ctx *gin.Context) {
	h.mutate(ctx, "posts.like", http.StatusOK,
		func(userID string, p *post.Post) error { return p.Like(userID) },
		func(p post.Post) any { return p.Likes },
	)
}

// Unlike answers with the whole post, matching what clients already expect.
func (h *PostHandler) Unlike(ctx *gin.Context) {
	h.mutate(ctx, "posts.unlike", http.StatusOK,
		func(userID string, p *post.Post) error { return p.Unlike(userID) },
		func(p post.Post) any { return p },
	)
}

func (h *PostHandler) AddComment(ctx *gin.Context) {
	userID, ok := callerID(ctx)
	if !ok {
		return
	}

	id, ok := uuidParam(ctx, "id")
	if !ok {
		return
	}

	var req post.CommentRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := requestContext(ctx, 3*time.Second)
	defer cancel()

	author, ok := h.author(ctx, cctx, userID)
	if !ok {
		return
	}

	p, err := h.posts.Mutate(cctx, id, func(p *post.Post) error {
		_, err := p.AddComment(userID, author, req.Text)
		return err
	})
	if err != nil {
		h.respondPostErr(ctx, "posts.add_comment", err)
		return
	}

	ctx.JSON(http.StatusCreated, p.Comments)
}

// RemoveComment deletes one comment by id. Only its author may do so.
func (h *PostHandler) RemoveComment(ctx *gin.Context) {
	userID, ok := callerID(ctx)
	if !ok {
		return
	}

	postID, ok := uuidParam(ctx, "post_id")
	if !ok {
		return
	}
	commentID, ok := uuidParam(ctx, "comment_id")
	if !ok {
		return
	}

	cctx, cancel := requestContext(ctx, 3*time.Second)
	defer cancel()

	p, err := h.posts.Mutate(cctx, postID, func(p *post.Post) error {
		return p.RemoveComment(commentID, userID)
	})
	if err != nil {
		h.respondPostErr(ctx, "posts.remove_comment", err)
		return
	}

	ctx.JSON(http.StatusOK, p.Comments)
}

func (h *PostHandler) mutate(
	ctx *gin.Context,
	op string,
	status int,
	fn func(userID string, p *post.Post) error,
	view func(post.Post) any,
) {
	userID, ok := callerID(ctx)
	if !ok {
		return
	}

	id, ok := uuidParam(ctx, "id")
	if !ok {
		return
	}

	cctx, cancel := requestContext(ctx, 3*time.Second)
	defer cancel()

	p, err := h.posts.Mutate(cctx, id, func(p *post.Post) error {
		return fn(userID, p)
	})
	if err != nil {
		h.respondPostErr(ctx, op, err)
		return
	}

	ctx.JSON(status, view(p))
}

// author loads the caller's display snapshot. A caller whose account is gone
// holds a token that no longer names anyone.
func (h *PostHandler) author(ctx *gin.Context, cctx context.Context, userID string) (user.Snapshot, bool) {
	u, err := h.users.GetByID(cctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "user_not_found", "User not found")
			return user.Snapshot{}, false
		}
		respondUnexpected(ctx, "posts.author", err)
		return user.Snapshot{}, false
	}
	return u.Snapshot(), true
}

func (h *PostHandler) respondPostErr(ctx *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, post.ErrNotFound):
		RespondNotFound(ctx, "post_not_found", "Post not found")
	case errors.Is(err, post.ErrCommentNotFound):
		RespondNotFound(ctx, "comment_not_found", "Comment does not exist")
	case errors.Is(err, post.ErrNotOwner), errors.Is(err, post.ErrNotCommentAuthor):
		RespondForbidden(ctx, "User not authorized")
	case errors.Is(err, post.ErrAlreadyLiked):
		RespondError(ctx, http.StatusBadRequest, "already_liked", "Post already liked", nil)
	case errors.Is(err, post.ErrNotLiked):
		RespondError(ctx, http.StatusBadRequest, "not_liked", "Post has not yet been liked", nil)
	case errors.Is(err, post.ErrTextRequired):
		RespondBadRequest(ctx, "Invalid request body", gin.H{
			"fields": []FieldError{{Field: "text", Rule: "required", Message: "is required"}},
		})
	default:
		respondUnexpected(ctx, op, err)
	}
}
