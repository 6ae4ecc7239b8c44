package kanban

import (
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var seedYAML []byte

// Seed is the demo workspace used when nothing has been saved yet.
type Seed struct {
	Users     []User
	Passwords map[string]string // Demo password by user id
	Tasks     []Task
	Meetings  []Meeting
	Chat      []ChatMessage
}

type seedFile struct {
	Users []struct {
		ID         string   `yaml:"id"`
		Name       string   `yaml:"name"`
		Email      string   `yaml:"email"`
		Password   string   `yaml:"password"`
		Role       string   `yaml:"role"`
		SystemRole UserRole `yaml:"systemRole"`
		Sector     Sector   `yaml:"sector"`
		Avatar     string   `yaml:"avatar"`
	} `yaml:"users"`
	Tasks []struct {
		ID          string     `yaml:"id"`
		Title       string     `yaml:"title"`
		Assignee    string     `yaml:"assignee"`
		Deadline    string     `yaml:"deadline"`
		Status      TaskStatus `yaml:"status"`
		Sector      Sector     `yaml:"sector"`
		Description string     `yaml:"description"`
		History     []struct {
			ID        string       `yaml:"id"`
			UserID    string       `yaml:"userId"`
			Type      ActivityType `yaml:"type"`
			Content   string       `yaml:"content"`
			Timestamp string       `yaml:"timestamp"`
		} `yaml:"history"`
	} `yaml:"tasks"`
	Meetings []struct {
		ID        string      `yaml:"id"`
		Title     string      `yaml:"title"`
		Date      string      `yaml:"date"`
		Time      string      `yaml:"time"`
		Attendees []string    `yaml:"attendees"`
		Type      MeetingType `yaml:"type"`
	} `yaml:"meetings"`
	Chat []struct {
		ID       string `yaml:"id"`
		SenderID string `yaml:"senderId"`
		Text     string `yaml:"text"`
		Ago      string `yaml:"ago"`
		Sector   Sector `yaml:"sector"`
	} `yaml:"chat"`
}

// LoadSeed parses the embedded demo workspace. Chat timestamps are relative to now.
func LoadSeed(now time.Time) (Seed, error) {
	var f seedFile
	if err := yaml.Unmarshal(seedYAML, &f); err != nil {
		return Seed{}, fmt.Errorf("failed to parse seed: %w", err)
	}

	seed := Seed{Passwords: make(map[string]string, len(f.Users))}
	byID := make(map[string]User, len(f.Users))
	for _, u := range f.Users {
		user := User{
			ID:         u.ID,
			Name:       u.Name,
			Email:      u.Email,
			Avatar:     u.Avatar,
			Role:       u.Role,
			SystemRole: u.SystemRole,
			Sector:     u.Sector,
		}
		seed.Users = append(seed.Users, user)
		seed.Passwords[u.ID] = u.Password
		byID[u.ID] = user
	}

	for _, t := range f.Tasks {
		assignee, ok := byID[t.Assignee]
		if !ok {
			return Seed{}, fmt.Errorf("seed task %s: unknown assignee %q", t.ID, t.Assignee)
		}
		task := Task{
			ID:          t.ID,
			Title:       t.Title,
			Assignee:    assignee,
			Deadline:    t.Deadline,
			Status:      t.Status,
			Sector:      t.Sector,
			Description: t.Description,
			History:     make([]TaskActivity, 0, len(t.History)),
		}
		for _, h := range t.History {
			task.History = append(task.History, TaskActivity(h))
		}
		seed.Tasks = append(seed.Tasks, task)
	}

	for _, m := range f.Meetings {
		seed.Meetings = append(seed.Meetings, Meeting(m))
	}

	for _, c := range f.Chat {
		ago, err := time.ParseDuration(c.Ago)
		if err != nil {
			return Seed{}, fmt.Errorf("seed message %s: %w", c.ID, err)
		}
		seed.Chat = append(seed.Chat, ChatMessage{
			ID:        c.ID,
			SenderID:  c.SenderID,
			Text:      c.Text,
			Timestamp: now.Add(-ago).Format(time.RFC3339),
			Sector:    c.Sector,
		})
	}
	return seed, nil
}

// MustSeed is LoadSeed for callers that treat a broken embedded fixture as a build defect.
func MustSeed(now time.Time) Seed {
	seed, err := LoadSeed(now)
	if err != nil {
		panic(err)
	}
	return seed
}
