package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/devhub/internal/domain/post"
	"github.com/geocoder89/devhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostsRepo struct {
	base
}

func NewPostsRepo(pool *pgxpool.Pool, prom *observability.Prom) *PostsRepo {
	return &PostsRepo{base{pool: pool, prom: prom}}
}

const postColumns = `id, user_id, text, name, avatar, likes, comments, created_at`

func scanPost(row pgx.Row) (post.Post, error) {
	var p post.Post
	err := row.Scan(&p.ID, &p.UserID, &p.Text, &p.Name, &p.Avatar, &p.Likes, &p.Comments, &p.CreatedAt)
	return p, err
}

func (r *PostsRepo) Create(ctx context.Context, p post.Post) (post.Post, error) {
	err := r.observe("posts.create", func() error {
		_, err := r.pool.Exec(ctx, `
		INSERT INTO posts (`+postColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, p.ID, p.UserID, p.Text, p.Name, p.Avatar, nonNil(p.Likes), nonNil(p.Comments), p.CreatedAt)
		return err
	})

	if err != nil {
		return post.Post{}, err
	}
	return p, nil
}

func (r *PostsRepo) GetByID(ctx context.Context, id string) (post.Post, error) {
	var p post.Post

	err := r.observe("posts.get_by_id", func() error {
		var err error
		p, err = scanPost(r.pool.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return post.Post{}, post.ErrNotFound
		}
		return post.Post{}, err
	}
	return p, nil
}

// List returns every post, newest first.
func (r *PostsRepo) List(ctx context.Context) ([]post.Post, error) {
	out := make([]post.Post, 0)

	err := r.observe("posts.list", func() error {
		rows, err := r.pool.Query(ctx, `SELECT `+postColumns+` FROM posts ORDER BY created_at DESC, id DESC`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			p, err := scanPost(rows)
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes post id when userID owns it.
func (r *PostsRepo) Delete(ctx context.Context, id, userID string) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		p, err := r.lock(ctx, tx, id)
		if err != nil {
			return err
		}
		if !p.OwnedBy(userID) {
			return post.ErrNotOwner
		}

		return r.observe("posts.delete", func() error {
			_, err := tx.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
			return err
		})
	})
}

// Mutate applies fn to post id under a row lock. When fn fails nothing is
// written and the unmodified post is returned with the error.
func (r *PostsRepo) Mutate(ctx context.Context, id string, fn func(*post.Post) error) (post.Post, error) {
	var out post.Post

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		p, err := r.lock(ctx, tx, id)
		if err != nil {
			return err
		}

		out = p
		working := p
		if err := fn(&working); err != nil {
			return err
		}

		if err := r.update(ctx, tx, working); err != nil {
			return err
		}
		out = working
		return nil
	})

	return out, err
}

// PurgeUser deletes userID's posts and strips their likes and comments from
// everyone else's. Running it twice is a no-op the second time.
func (r *PostsRepo) PurgeUser(ctx context.Context, userID string) (post.PurgeResult, error) {
	var res post.PurgeResult

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		err := r.observe("posts.purge.delete_owned", func() error {
			tag, err := tx.Exec(ctx, `DELETE FROM posts WHERE user_id = $1`, userID)
			if err != nil {
				return err
			}
			res.PostsDeleted = tag.RowsAffected()
			return nil
		})
		if err != nil {
			return err
		}

		marker := []map[string]string{{"user": userID}}

		var touched []post.Post
		err = r.observe("posts.purge.lock_touched", func() error {
			rows, err := tx.Query(ctx, `
			SELECT `+postColumns+`
			FROM posts
			WHERE likes @> $1::jsonb OR comments @> $1::jsonb
			FOR UPDATE
		`, marker)
			if err != nil {
				return err
			}
			defer rows.Close()

			for rows.Next() {
				p, err := scanPost(rows)
				if err != nil {
					return err
				}
				touched = append(touched, p)
			}
			return rows.Err()
		})
		if err != nil {
			return err
		}

		for i := range touched {
			if !touched[i].StripUser(userID) {
				continue
			}
			if err := r.update(ctx, tx, touched[i]); err != nil {
				return err
			}
			res.PostsUpdated++
		}
		return nil
	})

	return res, err
}

func (r *PostsRepo) lock(ctx context.Context, tx pgx.Tx, id string) (post.Post, error) {
	var p post.Post

	err := r.observe("posts.lock", func() error {
		var err error
		p, err = scanPost(tx.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1 FOR UPDATE`, id))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return post.Post{}, post.ErrNotFound
		}
		return post.Post{}, err
	}
	return p, nil
}

func (r *PostsRepo) update(ctx context.Context, tx pgx.Tx, p post.Post) error {
	return r.observe("posts.update", func() error {
		_, err := tx.Exec(ctx, `
		UPDATE posts SET likes = $2, comments = $3 WHERE id = $1
	`, p.ID, nonNil(p.Likes), nonNil(p.Comments))
		return err
	})
}
