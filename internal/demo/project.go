// Package demo is a small project-management domain used to exercise the
// dispatcher end to end: an in-memory repository, seed data and the intents
// that read and change it.
package demo

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrProjectNotFound is returned when no project matches an ID.
var ErrProjectNotFound = errors.New("project not found")

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

// Task is a unit of work inside a project.
type Task struct {
	Name     string     `json:"name"`
	Priority Priority   `json:"priority"`
	Status   Status     `json:"status"`
	DueDate  *time.Time `json:"dueDate,omitempty"`
}

// Normalize fills in the default priority and status.
func (t Task) Normalize() Task {
	switch t.Priority {
	case PriorityLow, PriorityMedium, PriorityHigh:
	default:
		t.Priority = PriorityMedium
	}
	switch t.Status {
	case StatusTodo, StatusInProgress, StatusDone:
	default:
		t.Status = StatusTodo
	}
	return t
}

type Milestone struct {
	Name string    `json:"name"`
	Date time.Time `json:"date"`
}

type Project struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Tasks      []Task      `json:"tasks"`
	Milestones []Milestone `json:"milestones"`
}

func (p *Project) clone() *Project {
	c := *p
	c.Tasks = slices.Clone(p.Tasks)
	c.Milestones = slices.Clone(p.Milestones)
	if c.Tasks == nil {
		c.Tasks = []Task{}
	}
	if c.Milestones == nil {
		c.Milestones = []Milestone{}
	}
	return &c
}

// Repository stores projects in memory. Callers always receive copies.
type Repository struct {
	mu       sync.RWMutex
	projects map[string]*Project
	order    []string
}

func NewRepository() *Repository {
	return &Repository{projects: make(map[string]*Project)}
}

// Save inserts or replaces p. A project without an ID is assigned one.
func (r *Repository) Save(p *Project) *Project {
	stored := p.clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	for i := range stored.Tasks {
		stored.Tasks[i] = stored.Tasks[i].Normalize()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.projects[stored.ID]; !exists {
		r.order = append(r.order, stored.ID)
	}
	r.projects[stored.ID] = stored
	return stored.clone()
}

func (r *Repository) Get(id string) (*Project, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.projects[id]
	if !ok {
		return nil, false
	}
	return p.clone(), true
}

// FindByName returns the first project, in insertion order, whose name
// contains name ignoring case.
func (r *Repository) FindByName(name string) (*Project, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		p := r.projects[id]
		if strings.Contains(strings.ToLower(p.Name), needle) {
			return p.clone(), true
		}
	}
	return nil, false
}

// AddTask appends task to the project with the given ID.
func (r *Repository) AddTask(id string, task Task) (*Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[id]
	if !ok {
		return nil, ErrProjectNotFound
	}
	p.Tasks = append(p.Tasks, task.Normalize())
	return p.clone(), nil
}

func (r *Repository) List() []*Project {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Project, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.projects[id].clone())
	}
	return out
}
