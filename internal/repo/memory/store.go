package memory

import (
	"sync"

	"github.com/geocoder89/devhub/internal/domain/job"
	"github.com/geocoder89/devhub/internal/domain/post"
	"github.com/geocoder89/devhub/internal/domain/profile"
	"github.com/geocoder89/devhub/internal/domain/user"
)

// Store backs every in-memory repo. One mutex serializes all writes, which
// gives the same per-aggregate isolation the postgres row locks do.
type Store struct {
	mu       sync.Mutex
	users    map[string]user.User
	profiles map[string]profile.Profile // keyed by user id
	posts    map[string]post.Post
	jobs     []job.Job
}

func NewStore() *Store {
	return &Store{
		users:    make(map[string]user.User),
		profiles: make(map[string]profile.Profile),
		posts:    make(map[string]post.Post),
	}
}

func cloneProfile(p profile.Profile) profile.Profile {
	p.Skills = append([]string(nil), p.Skills...)
	p.Experiences = append(make([]profile.Experience, 0, len(p.Experiences)), p.Experiences...)
	p.Education = append(make([]profile.Education, 0, len(p.Education)), p.Education...)
	if p.Owner != nil {
		owner := *p.Owner
		p.Owner = &owner
	}
	return p
}

func clonePost(p post.Post) post.Post {
	p.Likes = append(make([]post.Like, 0, len(p.Likes)), p.Likes...)
	p.Comments = append(make([]post.Comment, 0, len(p.Comments)), p.Comments...)
	return p
}
