package memory

import (
	"context"
	"sort"

	"github.com/geocoder89/devhub/internal/domain/profile"
)

type ProfilesRepo struct {
	s *Store
}

func NewProfilesRepo(s *Store) *ProfilesRepo {
	return &ProfilesRepo{s: s}
}

// withOwner must be called with the store locked.
func (r *ProfilesRepo) withOwner(p profile.Profile) profile.Profile {
	out := cloneProfile(p)
	if u, ok := r.s.users[p.UserID]; ok {
		snap := u.Snapshot()
		out.Owner = &snap
	}
	return out
}

func (r *ProfilesRepo) GetByUser(_ context.Context, userID string) (profile.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.profiles[userID]
	if !ok {
		return profile.Profile{}, profile.ErrNotFound
	}
	return r.withOwner(p), nil
}

func (r *ProfilesRepo) List(_ context.Context) ([]profile.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]profile.Profile, 0, len(r.s.profiles))
	for _, p := range r.s.profiles {
		out = append(out, r.withOwner(p))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *ProfilesRepo) Upsert(_ context.Context, userID string, f profile.Fields) (profile.Profile, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.profiles[userID]
	if !ok {
		p, err := profile.New(userID, f)
		if err != nil {
			return profile.Profile{}, false, err
		}
		r.s.profiles[userID] = cloneProfile(p)
		return r.withOwner(p), true, nil
	}

	working := cloneProfile(current)
	if err := working.Apply(f); err != nil {
		return profile.Profile{}, false, err
	}
	r.s.profiles[userID] = working
	return r.withOwner(working), false, nil
}

func (r *ProfilesRepo) Mutate(_ context.Context, userID string, fn func(*profile.Profile) error) (profile.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.profiles[userID]
	if !ok {
		return profile.Profile{}, profile.ErrNotFound
	}

	working := cloneProfile(current)
	if err := fn(&working); err != nil {
		return r.withOwner(current), err
	}

	r.s.profiles[userID] = cloneProfile(working)
	return r.withOwner(working), nil
}
