package demo

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/teilomillet/aci/intent"
)

// ProjectNotFoundMessage is the result of a status check that matches nothing.
const ProjectNotFoundMessage = "I couldn't find a project with that name. Please try again."

// Registrar is the part of the dispatcher the demo needs.
type Registrar interface {
	Register(label string, schema intent.Schema, handler intent.Handler)
}

var taskSchema = jsonschema.Definition{
	Type: jsonschema.Object,
	Properties: map[string]jsonschema.Definition{
		"name": {Type: jsonschema.String},
		"priority": {
			Type: jsonschema.String,
			Enum: []string{string(PriorityLow), string(PriorityMedium), string(PriorityHigh)},
		},
		"status": {
			Type: jsonschema.String,
			Enum: []string{string(StatusTodo), string(StatusInProgress), string(StatusDone)},
		},
		"dueDate": {
			Type:        jsonschema.String,
			Description: "Due date as YYYY-MM-DD",
		},
	},
	Required: []string{"name"},
}

type taskInput struct {
	Name     string `json:"name"`
	Priority string `json:"priority"`
	Status   string `json:"status"`
	DueDate  string `json:"dueDate"`
}

func (in taskInput) task() (Task, error) {
	t := Task{
		Name:     in.Name,
		Priority: Priority(in.Priority),
		Status:   Status(in.Status),
	}
	if in.DueDate != "" {
		due, err := parseDate(in.DueDate)
		if err != nil {
			return Task{}, err
		}
		t.DueDate = &due
	}
	return t.Normalize(), nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid due date %q", s)
	}
	return t, nil
}

// Register adds the demo intents to r. The weather intent is only
// registered when weather is not nil.
func Register(r Registrar, repo *Repository, weather *WeatherClient) {
	r.Register("Convert name to base64", intent.Schema{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"name": {Type: jsonschema.String},
		},
		Required: []string{"name"},
	}, intent.Typed(func(ctx context.Context, req intent.Request, e struct {
		Name string `json:"name"`
	}) (any, error) {
		return base64.StdEncoding.EncodeToString([]byte(e.Name)), nil
	}))

	r.Register("Create a project", intent.Schema{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"name":  {Type: jsonschema.String},
			"tasks": {Type: jsonschema.Array, Items: &taskSchema},
		},
		Required: []string{"name"},
	}, intent.Typed(func(ctx context.Context, req intent.Request, e struct {
		Name  string      `json:"name"`
		Tasks []taskInput `json:"tasks"`
	}) (any, error) {
		if e.Name == "" {
			return nil, fmt.Errorf("project name is required")
		}
		p := &Project{Name: e.Name}
		for _, in := range e.Tasks {
			t, err := in.task()
			if err != nil {
				return nil, err
			}
			p.Tasks = append(p.Tasks, t)
		}
		return repo.Save(p), nil
	}))

	r.Register("Add task to a project", intent.Schema{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"projectId":   {Type: jsonschema.String},
			"projectName": {Type: jsonschema.String},
			"task":        taskSchema,
		},
		Required: []string{"task"},
	}, intent.Typed(func(ctx context.Context, req intent.Request, e struct {
		ProjectID   string    `json:"projectId"`
		ProjectName string    `json:"projectName"`
		Task        taskInput `json:"task"`
	}) (any, error) {
		p, ok := lookup(repo, e.ProjectID, e.ProjectName)
		if !ok {
			return nil, ErrProjectNotFound
		}
		t, err := e.Task.task()
		if err != nil {
			return nil, err
		}
		return repo.AddTask(p.ID, t)
	}))

	r.Register("Check status of a project", intent.Schema{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"projectId":   {Type: jsonschema.String},
			"projectName": {Type: jsonschema.String},
		},
	}, intent.Typed(func(ctx context.Context, req intent.Request, e struct {
		ProjectID   string `json:"projectId"`
		ProjectName string `json:"projectName"`
	}) (any, error) {
		p, ok := lookup(repo, e.ProjectID, e.ProjectName)
		if !ok {
			return ProjectNotFoundMessage, nil
		}
		return p, nil
	}))

	if weather == nil {
		return
	}

	r.Register("Check the weather", intent.Schema{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"lat": {Type: jsonschema.Number, Description: "Latitude in degrees"},
			"lng": {Type: jsonschema.Number, Description: "Longitude in degrees"},
		},
		Required: []string{"lat", "lng"},
	}, intent.Typed(func(ctx context.Context, req intent.Request, e struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	}) (any, error) {
		return weather.Current(ctx, e.Lat, e.Lng)
	}))
}

// lookup resolves a project by name when one is given and matches, and by
// ID otherwise.
func lookup(repo *Repository, id, name string) (*Project, bool) {
	if name != "" {
		if p, ok := repo.FindByName(name); ok {
			return p, true
		}
	}
	if id == "" {
		return nil, false
	}
	return repo.Get(id)
}
