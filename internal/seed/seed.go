package seed

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"taskBoard/internal/logger"
	"taskBoard/internal/models/task"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Importer принимает готовые данные, например inmemory хранилище.
type Importer interface {
	Import(identities []task.Identity, tasks []task.Task) error
}

type fixtureTask struct {
	ID          string    `yaml:"id"`
	Title       string    `yaml:"title"`
	Description string    `yaml:"description"`
	Subteam     string    `yaml:"subteam"`
	Priority    string    `yaml:"priority"`
	Assignee    string    `yaml:"assignee"`
	DueDate     string    `yaml:"due_date"`
	Completed   bool      `yaml:"completed"`
	Archived    bool      `yaml:"archived"`
	CreatedAt   time.Time `yaml:"created_at"`
}

type fixture struct {
	Users []string      `yaml:"users"`
	Tasks []fixtureTask `yaml:"tasks"`
}

// Fixture - разобранный файл начальных данных.
type Fixture struct {
	Identities []task.Identity
	Tasks      []task.Task
}

func Parse(r io.Reader, now time.Time) (Fixture, error) {
	var raw fixture
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&raw); err != nil && err != io.EOF {
		return Fixture{}, fmt.Errorf("разбор файла данных: %w", err)
	}

	var out Fixture
	known := make(map[string]struct{}, len(raw.Users))
	addUser := func(name string) {
		if _, ok := known[name]; ok {
			return
		}
		known[name] = struct{}{}
		out.Identities = append(out.Identities, task.Identity{ID: uuid.New().String(), Username: name})
	}
	for _, name := range raw.Users {
		if name = strings.TrimSpace(name); name != "" {
			addUser(name)
		}
	}

	for i, ft := range raw.Tasks {
		t, err := ft.toTask(now)
		if err != nil {
			return Fixture{}, fmt.Errorf("задача #%d: %w", i+1, err)
		}
		if t.Assignee != nil {
			addUser(*t.Assignee)
		}
		out.Tasks = append(out.Tasks, t)
	}
	return out, nil
}

func (ft fixtureTask) toTask(now time.Time) (task.Task, error) {
	t := task.Task{
		ID:          strings.TrimSpace(ft.ID),
		Title:       strings.TrimSpace(ft.Title),
		Description: task.StringPtr(ft.Description),
		Subteam:     task.Subteam(strings.TrimSpace(ft.Subteam)),
		Priority:    task.Priority(strings.TrimSpace(ft.Priority)),
		Assignee:    task.StringPtr(ft.Assignee),
		Completed:   ft.Completed,
		Archived:    ft.Archived,
		CreatedAt:   ft.CreatedAt,
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Title == "" {
		return task.Task{}, fmt.Errorf("пустой заголовок")
	}
	if !t.Subteam.Valid() {
		return task.Task{}, fmt.Errorf("неизвестная подкоманда %q", t.Subteam)
	}
	if t.Priority == "" {
		t.Priority = task.PriorityLow
	}
	if !t.Priority.Valid() {
		return task.Task{}, fmt.Errorf("неизвестный приоритет %q", t.Priority)
	}
	if t.Archived && !t.Completed {
		return task.Task{}, fmt.Errorf("архивной может быть только выполненная задача")
	}
	if due := strings.TrimSpace(ft.DueDate); due != "" {
		d, err := task.ParseDate(due)
		if err != nil {
			return task.Task{}, err
		}
		t.DueDate = &d
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	return t, nil
}

// LoadFile читает файл и передает данные в хранилище.
func LoadFile(path string, importer Importer) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("не могу открыть %s: %w", path, err)
	}
	defer file.Close()

	fx, err := Parse(file, time.Now().UTC())
	if err != nil {
		return err
	}
	if err := importer.Import(fx.Identities, fx.Tasks); err != nil {
		return fmt.Errorf("импорт данных: %w", err)
	}

	logger.Info("Seed: Начальные данные загружены",
		zap.String("file", path),
		zap.Int("users", len(fx.Identities)),
		zap.Int("tasks", len(fx.Tasks)))
	return nil
}
