package memory

import (
	"context"
	"sort"

	"github.com/geocoder89/devhub/internal/domain/post"
)

type PostsRepo struct {
	s *Store
}

func NewPostsRepo(s *Store) *PostsRepo {
	return &PostsRepo{s: s}
}

func (r *PostsRepo) Create(_ context.Context, p post.Post) (post.Post, error) {
	r.s.mu.Lock()
	r.s.posts[p.ID] = clonePost(p)
	r.s.mu.Unlock()

	return p, nil
}

func (r *PostsRepo) GetByID(_ context.Context, id string) (post.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.posts[id]
	if !ok {
		return post.Post{}, post.ErrNotFound
	}
	return clonePost(p), nil
}

func (r *PostsRepo) List(_ context.Context) ([]post.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]post.Post, 0, len(r.s.posts))
	for _, p := range r.s.posts {
		out = append(out, clonePost(p))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *PostsRepo) Delete(_ context.Context, id, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.posts[id]
	if !ok {
		return post.ErrNotFound
	}
	if !p.OwnedBy(userID) {
		return post.ErrNotOwner
	}

	delete(r.s.posts, id)
	return nil
}

func (r *PostsRepo) Mutate(_ context.Context, id string, fn func(*post.Post) error) (post.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.posts[id]
	if !ok {
		return post.Post{}, post.ErrNotFound
	}

	working := clonePost(current)
	if err := fn(&working); err != nil {
		return clonePost(current), err
	}

	r.s.posts[id] = clonePost(working)
	return working, nil
}

func (r *PostsRepo) PurgeUser(_ context.Context, userID string) (post.PurgeResult, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var res post.PurgeResult

	for id, p := range r.s.posts {
		if p.OwnedBy(userID) {
			delete(r.s.posts, id)
			res.PostsDeleted++
			continue
		}

		working := clonePost(p)
		if working.StripUser(userID) {
			r.s.posts[id] = working
			res.PostsUpdated++
		}
	}

	return res, nil
}
