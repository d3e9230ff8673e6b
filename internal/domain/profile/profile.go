package profile

import (
	"errors"
	"strings"
	"time"

	"github.com/geocoder89/devhub/internal/domain/user"
	"github.com/google/uuid"
)

// DefaultDescription fills entries submitted without a description.
const DefaultDescription = "None"

var (
	ErrNotFound      = errors.New("profile not found")
	ErrEntryNotFound = errors.New("profile entry not found")
)

// InvalidFieldError reports a rule the binding tags cannot express
// (trimmed-empty values, date formats, date ordering).
type InvalidFieldError struct {
	Field   string
	Rule    string
	Message string
}

func (e *InvalidFieldError) Error() string {
	return e.Field + " " + e.Message
}

type Socials struct {
	YouTube   string `json:"youtube,omitempty"`
	Twitter   string `json:"twitter,omitempty"`
	Facebook  string `json:"facebook,omitempty"`
	LinkedIn  string `json:"linkedin,omitempty"`
	Instagram string `json:"instagram,omitempty"`
}

// merge copies the platforms present in other; absent ones keep their value.
func (s *Socials) merge(other Socials) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&s.YouTube, other.YouTube)
	set(&s.Twitter, other.Twitter)
	set(&s.Facebook, other.Facebook)
	set(&s.LinkedIn, other.LinkedIn)
	set(&s.Instagram, other.Instagram)
}

type Experience struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Company     string     `json:"company"`
	Location    string     `json:"location,omitempty"`
	From        time.Time  `json:"from"`
	To          *time.Time `json:"to,omitempty"`
	Current     bool       `json:"current"`
	Description string     `json:"description"`
}

type Education struct {
	ID           string     `json:"id"`
	School       string     `json:"school"`
	Degree       string     `json:"degree"`
	FieldOfStudy string     `json:"fieldofstudy"`
	From         time.Time  `json:"from"`
	To           *time.Time `json:"to,omitempty"`
	Current      bool       `json:"current"`
	Description  string     `json:"description"`
}

type Profile struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user"`
	Owner          *user.Snapshot `json:"owner,omitempty"`
	Company        string         `json:"company,omitempty"`
	Website        string         `json:"website,omitempty"`
	Location       string         `json:"location,omitempty"`
	Status         string         `json:"status"`
	Skills         []string       `json:"skills"`
	Bio            string         `json:"bio,omitempty"`
	GitHubUsername string         `json:"githubusername,omitempty"`
	Socials        Socials        `json:"socials"`
	Experiences    []Experience   `json:"experiences"`
	Education      []Education    `json:"education"`
	CreatedAt      time.Time      `json:"date"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// Fields is the writable part of a profile. Empty strings mean "not supplied".
type Fields struct {
	Company        string
	Website        string
	Location       string
	Bio            string
	Status         string
	GitHubUsername string
	Skills         []string
	Socials        Socials
}

func (f Fields) validate() error {
	if strings.TrimSpace(f.Status) == "" {
		return &InvalidFieldError{Field: "status", Rule: "required", Message: "is required"}
	}
	if len(f.Skills) == 0 {
		return &InvalidFieldError{Field: "skills", Rule: "required", Message: "is required"}
	}
	return nil
}

// New creates the profile for userID with empty experience and education lists.
func New(userID string, f Fields) (Profile, error) {
	if err := f.validate(); err != nil {
		return Profile{}, err
	}

	now := time.Now().UTC()

	p := Profile{
		ID:          uuid.NewString(),
		UserID:      userID,
		Experiences: []Experience{},
		Education:   []Education{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	p.assign(f)

	return p, nil
}

// Apply merges the supplied fields into p. Fields left empty keep their
// current value, so applying the same Fields twice is a no-op.
func (p *Profile) Apply(f Fields) error {
	if err := f.validate(); err != nil {
		return err
	}

	p.assign(f)
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (p *Profile) assign(f Fields) {
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}

	set(&p.Company, f.Company)
	set(&p.Website, f.Website)
	set(&p.Location, f.Location)
	set(&p.Bio, f.Bio)
	set(&p.Status, f.Status)
	set(&p.GitHubUsername, f.GitHubUsername)

	if len(f.Skills) > 0 {
		p.Skills = append([]string(nil), f.Skills...)
	}

	p.Socials.merge(f.Socials)
}

// AddExperience puts e at the head of the list, newest first.
func (p *Profile) AddExperience(e Experience) {
	p.Experiences = append([]Experience{e}, p.Experiences...)
	p.UpdatedAt = time.Now().UTC()
}

func (p *Profile) RemoveExperience(id string) error {
	for i, e := range p.Experiences {
		if e.ID == id {
			p.Experiences = append(p.Experiences[:i:i], p.Experiences[i+1:]...)
			p.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return ErrEntryNotFound
}

func (p *Profile) AddEducation(e Education) {
	p.Education = append([]Education{e}, p.Education...)
	p.UpdatedAt = time.Now().UTC()
}

func (p *Profile) RemoveEducation(id string) error {
	for i, e := range p.Education {
		if e.ID == id {
			p.Education = append(p.Education[:i:i], p.Education[i+1:]...)
			p.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return ErrEntryNotFound
}
