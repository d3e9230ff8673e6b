package profile

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SkillList accepts either "go, rust" or ["go","rust"] on input.
type SkillList []string

func (s *SkillList) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = nil
		return nil
	}

	var raw []string

	var joined string
	if err := json.Unmarshal(b, &joined); err == nil {
		raw = strings.Split(joined, ",")
	} else if err := json.Unmarshal(b, &raw); err != nil {
		return errors.New("skills must be a comma separated string or an array of strings")
	}

	out := make([]string, 0, len(raw))
	for _, skill := range raw {
		if skill = strings.TrimSpace(skill); skill != "" {
			out = append(out, skill)
		}
	}
	*s = out
	return nil
}

type UpsertRequest struct {
	Company        string    `json:"company" binding:"omitempty,max=120"`
	Website        string    `json:"website" binding:"omitempty,max=200"`
	Location       string    `json:"location" binding:"omitempty,max=120"`
	Bio            string    `json:"bio" binding:"omitempty,max=2000"`
	Status         string    `json:"status" binding:"required,max=80"`
	GitHubUsername string    `json:"githubusername" binding:"omitempty,max=39"`
	Skills         SkillList `json:"skills" binding:"required,min=1,max=50"`

	YouTube   string `json:"youtube" binding:"omitempty,max=200"`
	Twitter   string `json:"twitter" binding:"omitempty,max=200"`
	Facebook  string `json:"facebook" binding:"omitempty,max=200"`
	LinkedIn  string `json:"linkedin" binding:"omitempty,max=200"`
	Instagram string `json:"instagram" binding:"omitempty,max=200"`
}

func (r UpsertRequest) Fields() Fields {
	return Fields{
		Company:        r.Company,
		Website:        r.Website,
		Location:       r.Location,
		Bio:            r.Bio,
		Status:         r.Status,
		GitHubUsername: r.GitHubUsername,
		Skills:         []string(r.Skills),
		Socials: Socials{
			YouTube:   strings.TrimSpace(r.YouTube),
			Twitter:   strings.TrimSpace(r.Twitter),
			Facebook:  strings.TrimSpace(r.Facebook),
			LinkedIn:  strings.TrimSpace(r.LinkedIn),
			Instagram: strings.TrimSpace(r.Instagram),
		},
	}
}

type ExperienceRequest struct {
	Title       string `json:"title" binding:"required,max=120"`
	Company     string `json:"company" binding:"required,max=120"`
	Location    string `json:"location" binding:"omitempty,max=120"`
	From        string `json:"from" binding:"required"`
	To          string `json:"to"`
	Current     bool   `json:"current"`
	Description string `json:"description" binding:"omitempty,max=2000"`
}

type EducationRequest struct {
	School       string `json:"school" binding:"required,max=120"`
	Degree       string `json:"degree" binding:"required,max=120"`
	FieldOfStudy string `json:"fieldofstudy" binding:"required,max=120"`
	From         string `json:"from" binding:"required"`
	To           string `json:"to"`
	Current      bool   `json:"current"`
	Description  string `json:"description" binding:"omitempty,max=2000"`
}

// NewExperience validates req and assigns the entry its id.
func NewExperience(req ExperienceRequest) (Experience, error) {
	if err := requireText(map[string]string{"title": req.Title, "company": req.Company}); err != nil {
		return Experience{}, err
	}

	from, to, err := parseRange(req.From, req.To)
	if err != nil {
		return Experience{}, err
	}

	return Experience{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(req.Title),
		Company:     strings.TrimSpace(req.Company),
		Location:    strings.TrimSpace(req.Location),
		From:        from,
		To:          to,
		Current:     req.Current,
		Description: describe(req.Description),
	}, nil
}

func NewEducation(req EducationRequest) (Education, error) {
	err := requireText(map[string]string{
		"school":       req.School,
		"degree":       req.Degree,
		"fieldofstudy": req.FieldOfStudy,
	})
	if err != nil {
		return Education{}, err
	}

	from, to, err := parseRange(req.From, req.To)
	if err != nil {
		return Education{}, err
	}

	return Education{
		ID:           uuid.NewString(),
		School:       strings.TrimSpace(req.School),
		Degree:       strings.TrimSpace(req.Degree),
		FieldOfStudy: strings.TrimSpace(req.FieldOfStudy),
		From:         from,
		To:           to,
		Current:      req.Current,
		Description:  describe(req.Description),
	}, nil
}

func requireText(fields map[string]string) error {
	// deterministic order keeps error responses stable
	for _, name := range []string{"title", "company", "school", "degree", "fieldofstudy"} {
		v, ok := fields[name]
		if ok && strings.TrimSpace(v) == "" {
			return &InvalidFieldError{Field: name, Rule: "required", Message: "is required"}
		}
	}
	return nil
}

func describe(s string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return DefaultDescription
}

func parseRange(fromRaw, toRaw string) (time.Time, *time.Time, error) {
	from, err := ParseDate(fromRaw)
	if err != nil {
		return time.Time{}, nil, &InvalidFieldError{Field: "from", Rule: "date", Message: "must be a date (YYYY-MM-DD or RFC 3339)"}
	}

	if strings.TrimSpace(toRaw) == "" {
		return from, nil, nil
	}

	to, err := ParseDate(toRaw)
	if err != nil {
		return time.Time{}, nil, &InvalidFieldError{Field: "to", Rule: "date", Message: "must be a date (YYYY-MM-DD or RFC 3339)"}
	}
	if to.Before(from) {
		return time.Time{}, nil, &InvalidFieldError{Field: "to", Rule: "gtefield", Message: "must not be before from"}
	}

	return from, &to, nil
}

// ParseDate accepts calendar dates and full RFC 3339 timestamps.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)

	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), nil
	}

	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
