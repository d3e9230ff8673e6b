package post

import (
	"errors"
	"strings"
	"time"

	"github.com/geocoder89/devhub/internal/domain/user"
	"github.com/google/uuid"
)

var (
	ErrNotFound         = errors.New("post not found")
	ErrNotOwner         = errors.New("post belongs to another user")
	ErrTextRequired     = errors.New("text is required")
	ErrAlreadyLiked     = errors.New("post already liked")
	ErrNotLiked         = errors.New("post has not yet been liked")
	ErrCommentNotFound  = errors.New("comment not found")
	ErrNotCommentAuthor = errors.New("comment belongs to another user")
)

type Like struct {
	UserID string `json:"user"`
}

type Comment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user"`
	Text      string    `json:"text"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar"`
	CreatedAt time.Time `json:"date"`
}

// Post carries the author's name and avatar as they were when it was written.
type Post struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user"`
	Text      string    `json:"text"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar"`
	Likes     []Like    `json:"likes"`
	Comments  []Comment `json:"comments"`
	CreatedAt time.Time `json:"date"`
}

// PurgeResult counts what removing a user's activity touched.
type PurgeResult struct {
	PostsDeleted int64
	PostsUpdated int64
}

type CreateRequest struct {
	Text string `json:"text" binding:"required,max=5000"`
}

type CommentRequest struct {
	Text string `json:"text" binding:"required,max=2000"`
}

func New(userID string, author user.Snapshot, text string) (Post, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Post{}, ErrTextRequired
	}

	return Post{
		ID:        uuid.NewString(),
		UserID:    userID,
		Text:      text,
		Name:      author.Name,
		Avatar:    author.Avatar,
		Likes:     []Like{},
		Comments:  []Comment{},
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (p Post) OwnedBy(userID string) bool {
	return p.UserID == userID
}

func (p Post) LikedBy(userID string) bool {
	for _, l := range p.Likes {
		if l.UserID == userID {
			return true
		}
	}
	return false
}

// Like moves (post, user) from absent to present.
func (p *Post) Like(userID string) error {
	if p.LikedBy(userID) {
		return ErrAlreadyLiked
	}

	p.Likes = append([]Like{{UserID: userID}}, p.Likes...)
	return nil
}

// Unlike moves (post, user) from present to absent.
func (p *Post) Unlike(userID string) error {
	for i, l := range p.Likes {
		if l.UserID == userID {
			p.Likes = append(p.Likes[:i:i], p.Likes[i+1:]...)
			return nil
		}
	}
	return ErrNotLiked
}

func (p *Post) AddComment(userID string, author user.Snapshot, text string) (Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Comment{}, ErrTextRequired
	}

	c := Comment{
		ID:        uuid.NewString(),
		UserID:    userID,
		Text:      text,
		Name:      author.Name,
		Avatar:    author.Avatar,
		CreatedAt: time.Now().UTC(),
	}

	p.Comments = append([]Comment{c}, p.Comments...)
	return c, nil
}

// RemoveComment deletes the comment with commentID if userID wrote it.
func (p *Post) RemoveComment(commentID, userID string) error {
	for i, c := range p.Comments {
		if c.ID != commentID {
			continue
		}
		if c.UserID != userID {
			return ErrNotCommentAuthor
		}

		p.Comments = append(p.Comments[:i:i], p.Comments[i+1:]...)
		return nil
	}
	return ErrCommentNotFound
}

// StripUser drops every like and comment userID left on the post and reports
// whether anything changed.
func (p *Post) StripUser(userID string) bool {
	changed := false

	likes := make([]Like, 0, len(p.Likes))
	for _, l := range p.Likes {
		if l.UserID == userID {
			changed = true
			continue
		}
		likes = append(likes, l)
	}

	comments := make([]Comment, 0, len(p.Comments))
	for _, c := range p.Comments {
		if c.UserID == userID {
			changed = true
			continue
		}
		comments = append(comments, c)
	}

	p.Likes = likes
	p.Comments = comments
	return changed
}
