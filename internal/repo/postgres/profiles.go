package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/devhub/internal/domain/profile"
	"github.com/geocoder89/devhub/internal/domain/user"
	"github.com/geocoder89/devhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ProfilesRepo struct {
	base
}

func NewProfilesRepo(pool *pgxpool.Pool, prom *observability.Prom) *ProfilesRepo {
	return &ProfilesRepo{base{pool: pool, prom: prom}}
}

const profileSelect = `
	SELECT p.id, p.user_id, p.company, p.website, p.location, p.status, p.skills,
	       p.bio, p.github_username, p.socials, p.experiences, p.education,
	       p.created_at, p.updated_at, u.name, u.avatar
	FROM profiles p
	JOIN users u ON u.id = p.user_id`

func scanProfile(row pgx.Row) (profile.Profile, error) {
	var p profile.Profile
	var owner user.Snapshot

	err := row.Scan(
		&p.ID, &p.UserID, &p.Company, &p.Website, &p.Location, &p.Status, &p.Skills,
		&p.Bio, &p.GitHubUsername, &p.Socials, &p.Experiences, &p.Education,
		&p.CreatedAt, &p.UpdatedAt, &owner.Name, &owner.Avatar,
	)
	if err != nil {
		return profile.Profile{}, err
	}

	p.Owner = &owner
	return p, nil
}

func (r *ProfilesRepo) GetByUser(ctx context.Context, userID string) (profile.Profile, error) {
	var p profile.Profile

	err := r.observe("profiles.get_by_user", func() error {
		var err error
		p, err = scanProfile(r.pool.QueryRow(ctx, profileSelect+` WHERE p.user_id = $1`, userID))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return profile.Profile{}, profile.ErrNotFound
		}
		return profile.Profile{}, err
	}
	return p, nil
}

func (r *ProfilesRepo) List(ctx context.Context) ([]profile.Profile, error) {
	out := make([]profile.Profile, 0)

	err := r.observe("profiles.list", func() error {
		rows, err := r.pool.Query(ctx, profileSelect+` ORDER BY p.created_at ASC, p.id ASC`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			p, err := scanProfile(rows)
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

// Upsert creates the caller's profile or merges f into the existing one.
// Two concurrent first-time upserts race on profiles_user_id_key; the
// loser retries once and takes the update path.
func (r *ProfilesRepo) Upsert(ctx context.Context, userID string, f profile.Fields) (profile.Profile, bool, error) {
	p, created, err := r.upsertOnce(ctx, userID, f)
	if err != nil && isConstraint(err, "profiles_user_id_key") {
		p, created, err = r.upsertOnce(ctx, userID, f)
	}
	if err != nil {
		return profile.Profile{}, false, err
	}

	// re-read for the owner snapshot
	out, err := r.GetByUser(ctx, userID)
	if err != nil {
		return p, created, nil
	}
	return out, created, nil
}

func (r *ProfilesRepo) upsertOnce(ctx context.Context, userID string, f profile.Fields) (profile.Profile, bool, error) {
	var (
		p       profile.Profile
		created bool
	)

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		current, err := lockProfile(ctx, tx, r.base, userID)

		switch {
		case errors.Is(err, profile.ErrNotFound):
			p, err = profile.New(userID, f)
			if err != nil {
				return err
			}
			created = true
			return r.insert(ctx, tx, p)

		case err != nil:
			return err
		}

		if err := current.Apply(f); err != nil {
			return err
		}
		p = current
		return r.update(ctx, tx, p)
	})

	return p, created, err
}

// Mutate applies fn to userID's profile under a row lock. When fn fails the
// transaction is rolled back and the unmodified profile is returned with the error.
func (r *ProfilesRepo) Mutate(ctx context.Context, userID string, fn func(*profile.Profile) error) (profile.Profile, error) {
	var p profile.Profile

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		current, err := lockProfile(ctx, tx, r.base, userID)
		if err != nil {
			return err
		}

		p = current
		working := current
		working.Experiences = append([]profile.Experience(nil), current.Experiences...)
		working.Education = append([]profile.Education(nil), current.Education...)

		if err := fn(&working); err != nil {
			return err
		}

		p = working
		return r.update(ctx, tx, p)
	})

	return p, err
}

func lockProfile(ctx context.Context, tx pgx.Tx, b base, userID string) (profile.Profile, error) {
	var p profile.Profile

	err := b.observe("profiles.lock", func() error {
		var err error
		p, err = scanProfile(tx.QueryRow(ctx, profileSelect+` WHERE p.user_id = $1 FOR UPDATE OF p`, userID))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return profile.Profile{}, profile.ErrNotFound
		}
		return profile.Profile{}, err
	}
	return p, nil
}

func (r *ProfilesRepo) insert(ctx context.Context, tx pgx.Tx, p profile.Profile) error {
	return r.observe("profiles.insert", func() error {
		_, err := tx.Exec(ctx, `
		INSERT INTO profiles (
			id, user_id, company, website, location, status, skills, bio,
			github_username, socials, experiences, education, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, p.ID, p.UserID, p.Company, p.Website, p.Location, p.Status, p.Skills, p.Bio,
			p.GitHubUsername, p.Socials, nonNil(p.Experiences), nonNil(p.Education), p.CreatedAt, p.UpdatedAt)
		return err
	})
}

func (r *ProfilesRepo) update(ctx context.Context, tx pgx.Tx, p profile.Profile) error {
	return r.observe("profiles.update", func() error {
		_, err := tx.Exec(ctx, `
		UPDATE profiles
		SET company = $2, website = $3, location = $4, status = $5, skills = $6,
		    bio = $7, github_username = $8, socials = $9, experiences = $10,
		    education = $11, updated_at = $12
		WHERE id = $1
	`, p.ID, p.Company, p.Website, p.Location, p.Status, p.Skills,
			p.Bio, p.GitHubUsername, p.Socials, nonNil(p.Experiences),
			nonNil(p.Education), p.UpdatedAt)
		return err
	})
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
