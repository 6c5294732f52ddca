package task

import (
	"fmt"
	"sort"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/dmfonseca/go-task-hub/internal/api"
	"github.com/dmfonseca/go-task-hub/internal/types"
)

// CreateTaskRequest represents the expected JSON body for task creation.
type CreateTaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"dueDate"`
	Tags        []string   `json:"tags"`
}

func (r CreateTaskRequest) Validate() []api.FieldError {
	return collectFieldErrors(validation.ValidateStruct(&r,
		validation.Field(&r.Title,
			validation.Required.Error("Task title is required"),
			validation.Length(3, 100).Error("Title must be 3-100 characters"),
		),
		validation.Field(&r.Description,
			validation.Length(0, 500).Error("Description cannot exceed 500 characters"),
		),
		validation.Field(&r.Status,
			validation.In(types.TaskStatusTodo, types.TaskStatusInProgress, types.TaskStatusCompleted).
				Error("Status must be todo, in-progress, or completed"),
		),
		validation.Field(&r.Priority,
			validation.In(types.TaskPriorityLow, types.TaskPriorityMedium, types.TaskPriorityHigh).
				Error("Priority must be low, medium, or high"),
		),
		validation.Field(&r.DueDate, validation.By(futureDueDate)),
		validation.Field(&r.Tags, validation.By(validTags)),
	))
}

// UpdateTaskRequest carries the typed update command; nil fields are left
// unchanged.
type UpdateTaskRequest types.TaskUpdate

func (r UpdateTaskRequest) Validate() []api.FieldError {
	return collectFieldErrors(validation.ValidateStruct(&r,
		validation.Field(&r.Title,
			validation.NilOrNotEmpty.Error("Task title cannot be empty"),
			validation.Length(3, 100).Error("Title must be 3-100 characters"),
		),
		validation.Field(&r.Description,
			validation.Length(0, 500).Error("Description cannot exceed 500 characters"),
		),
		validation.Field(&r.Status,
			byPointerString(func(s string) error {
				switch s {
				case types.TaskStatusTodo, types.TaskStatusInProgress, types.TaskStatusCompleted:
					return nil
				}
				return fmt.Errorf("Status must be todo, in-progress, or completed")
			}),
		),
		validation.Field(&r.Priority,
			byPointerString(func(s string) error {
				switch s {
				case types.TaskPriorityLow, types.TaskPriorityMedium, types.TaskPriorityHigh:
					return nil
				}
				return fmt.Errorf("Priority must be low, medium, or high")
			}),
		),
		validation.Field(&r.DueDate, validation.By(futureDueDate)),
		validation.Field(&r.Tags, validation.By(validTagsPtr)),
	))
}

func byPointerString(check func(string) error) validation.Rule {
	return validation.By(func(value interface{}) error {
		s, ok := value.(*string)
		if !ok || s == nil {
			return nil
		}
		return check(*s)
	})
}

func futureDueDate(value interface{}) error {
	due, ok := value.(*time.Time)
	if !ok || due == nil {
		return nil
	}
	// One minute of tolerance for clock skew between client and server.
	if due.Before(time.Now().Add(-time.Minute)) {
		return fmt.Errorf("Due date must be in the future")
	}
	return nil
}

func validTags(value interface{}) error {
	tags, ok := value.([]string)
	if !ok || tags == nil {
		return nil
	}
	return checkTags(tags)
}

func validTagsPtr(value interface{}) error {
	tags, ok := value.(*[]string)
	if !ok || tags == nil {
		return nil
	}
	return checkTags(*tags)
}

func checkTags(tags []string) error {
	if len(tags) > 10 {
		return fmt.Errorf("Cannot have more than 10 tags")
	}
	for _, tag := range tags {
		if tag == "" || len(tag) > 30 {
			return fmt.Errorf("Each tag must be a non-empty string under 30 characters")
		}
	}
	return nil
}

func collectFieldErrors(err error) []api.FieldError {
	if err == nil {
		return nil
	}
	verrs, ok := err.(validation.Errors)
	if !ok {
		return []api.FieldError{{Field: "", Message: err.Error()}}
	}
	fields := make([]api.FieldError, 0, len(verrs))
	for field, ferr := range verrs {
		fields = append(fields, api.FieldError{Field: field, Message: ferr.Error()})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Field < fields[j].Field })
	return fields
}
