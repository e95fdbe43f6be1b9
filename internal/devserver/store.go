package devserver

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mlaitechio/vagais-go/internal/client/models"
)

var (
	errUserExists   = errors.New("user already exists")
	errUserNotFound = errors.New("user not found")
)

// userRecord pairs the public user snapshot with the password hash, which
// never leaves the store.
type userRecord struct {
	models.User
	PasswordHash string
}

// Store is the devserver's in-memory database.
type Store struct {
	mu      sync.RWMutex
	users   map[string]*userRecord // by id
	byEmail map[string]string      // email -> id
	agents  []models.Agent
}

func NewStore() *Store {
	return &Store{
		users:   make(map[string]*userRecord),
		byEmail: make(map[string]string),
		agents:  seedAgents(),
	}
}

func seedAgents() []models.Agent {
	now := time.Now()
	specs := []struct {
		name, description, category string
		rating                      float64
	}{
		{"Research Scout", "Digests papers and reports into short briefings.", "research", 4.6},
		{"Code Reviewer", "Reviews pull requests and suggests fixes.", "engineering", 4.8},
		{"Support Triage", "Classifies and answers common support tickets.", "support", 4.2},
		{"Data Wrangler", "Cleans, joins, and summarizes tabular data.", "analytics", 4.4},
	}

	agents := make([]models.Agent, 0, len(specs))
	for _, spec := range specs {
		agents = append(agents, models.Agent{
			ID:            uuid.NewString(),
			Name:          spec.name,
			Description:   spec.description,
			Slug:          strings.ToLower(strings.ReplaceAll(spec.name, " ", "-")),
			Version:       "1.0.0",
			Status:        "published",
			Category:      spec.category,
			PricingModel:  "per_call",
			PricePerCall:  0.01,
			AverageRating: spec.rating,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}
	return agents
}

func (s *Store) CreateUser(email, username, firstName, lastName, passwordHash string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[strings.ToLower(email)]; ok {
		return nil, errUserExists
	}

	now := time.Now()
	rec := &userRecord{
		User: models.User{
			ID:        uuid.NewString(),
			Email:     email,
			Username:  username,
			FirstName: firstName,
			LastName:  lastName,
			Role:      "user",
			IsActive:  true,
			Credits:   100,
			CreatedAt: now,
			UpdatedAt: now,
		},
		PasswordHash: passwordHash,
	}
	s.users[rec.ID] = rec
	s.byEmail[strings.ToLower(email)] = rec.ID

	snapshot := rec.User
	return &snapshot, nil
}

func (s *Store) UserByEmail(email string) (*userRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, errUserNotFound
	}
	rec := *s.users[id]
	return &rec, nil
}

func (s *Store) UserByID(id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.users[id]
	if !ok {
		return nil, errUserNotFound
	}
	snapshot := rec.User
	return &snapshot, nil
}

func (s *Store) TouchLogin(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.users[id]; ok {
		now := time.Now()
		rec.LastLoginAt = &now
	}
}

// Agents returns one page of the catalogue, filtered by search text and
// category, ordered by name.
func (s *Store) Agents(search, category string, page, limit int) ([]models.Agent, int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search = strings.ToLower(search)
	matched := make([]models.Agent, 0, len(s.agents))
	for _, agent := range s.agents {
		if category != "" && agent.Category != category {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(agent.Name), search) &&
			!strings.Contains(strings.ToLower(agent.Description), search) {
			continue
		}
		matched = append(matched, agent)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })

	total := int64(len(matched))
	start := (page - 1) * limit
	if start >= len(matched) {
		return []models.Agent{}, total
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total
}

func (s *Store) AgentByID(id string) (*models.Agent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, agent := range s.agents {
		if agent.ID == id {
			snapshot := agent
			return &snapshot, true
		}
	}
	return nil, false
}
