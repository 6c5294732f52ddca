package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	TaskStatusTodo       = "todo"
	TaskStatusInProgress = "in-progress"
	TaskStatusCompleted  = "completed"
)

const (
	TaskPriorityLow    = "low"
	TaskPriorityMedium = "medium"
	TaskPriorityHigh   = "high"
)

// TaskOwner is the redacted owner view embedded in task payloads.
type TaskOwner struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	AvatarInitials string    `json:"avatarInitials"`
}

type Task struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Tags        []string   `json:"tags"`
	OwnerID     uuid.UUID  `json:"ownerId"`
	Owner       *TaskOwner `json:"owner,omitempty"`
	IsArchived  bool       `json:"isArchived"`
	IsOverdue   bool       `json:"isOverdue"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Overdue reports whether the task is past due and not completed.
func (t *Task) Overdue(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now) && t.Status != TaskStatusCompleted
}

// TaskListFilter narrows task listings. OwnerID is forced to the caller for
// non-admin identities.
type TaskListFilter struct {
	OwnerID   *uuid.UUID
	Status    string
	Priority  string
	Tag       string
	Search    string
	Archived  *bool
	DueBefore *time.Time
	DueAfter  *time.Time
	SortBy    string
	SortOrder string
}

// TaskUpdate enumerates exactly the mutable task fields. Nil means
// "leave unchanged".
type TaskUpdate struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Status      *string    `json:"status,omitempty"`
	Priority    *string    `json:"priority,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Tags        *[]string  `json:"tags,omitempty"`
}

func (u TaskUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Status == nil &&
		u.Priority == nil && u.DueDate == nil && u.Tags == nil
}

// TaskStats aggregates a task population by status and priority.
type TaskStats struct {
	Total        int64 `json:"total"`
	Todo         int64 `json:"todo"`
	InProgress   int64 `json:"inProgress"`
	Completed    int64 `json:"completed"`
	HighPriority int64 `json:"highPriority"`
	Overdue      int64 `json:"overdue"`
}

// StatusCount is a per-status tally used by the admin user detail view.
type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}
