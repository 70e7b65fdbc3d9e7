package task

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Task - каноническое представление задачи на доске.
// Необязательные поля - указатели: nil означает отсутствие, пустая строка не хранится.
// Через указатели никогда не пишем, любое изменение собирает новую Task.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	Subteam     Subteam   `json:"subteam"`
	Priority    Priority  `json:"priority"`
	Assignee    *string   `json:"assignee,omitempty"`
	AssigneeID  *string   `json:"assigneeId,omitempty"`
	DueDate     *Date     `json:"dueDate,omitempty"`
	Completed   bool      `json:"completed"`
	Archived    bool      `json:"archived"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Identity - пользователь, которого можно назначить на задачу.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type Subteam string
type Priority string

const SubteamElectrical Subteam = "Electrical"
const SubteamFinance Subteam = "Finance"
const SubteamFirmware Subteam = "Firmware"
const SubteamManagement Subteam = "Management"
const SubteamMarketing Subteam = "Marketing"
const SubteamMechanical Subteam = "Mechanical"
const SubteamWebDev Subteam = "Web Dev"

const PriorityLow Priority = "Low"
const PriorityMedium Priority = "Medium"
const PriorityHigh Priority = "High"

var Subteams = []Subteam{
	SubteamElectrical,
	SubteamFinance,
	SubteamFirmware,
	SubteamManagement,
	SubteamMarketing,
	SubteamMechanical,
	SubteamWebDev,
}

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

func (s Subteam) Valid() bool {
	for _, known := range Subteams {
		if s == known {
			return true
		}
	}
	return false
}

func (p Priority) Valid() bool {
	for _, known := range Priorities {
		if p == known {
			return true
		}
	}
	return false
}

const tempPrefix = "tmp-"

// NewTempID выдает временный id, который живет до подтверждения создания хранилищем.
func NewTempID() string {
	return tempPrefix + uuid.New().String()
}

func IsTempID(id string) bool {
	return strings.HasPrefix(id, tempPrefix)
}

// Pending - задача еще не подтверждена хранилищем.
func (t Task) Pending() bool {
	return IsTempID(t.ID)
}

// Apply возвращает копию задачи с примененными опциями.
func (t Task) Apply(options ...TaskOption) Task {
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&t)
	}
	return t
}

// StringPtr возвращает nil для пустой строки, иначе указатель на обрезанное значение.
func StringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
