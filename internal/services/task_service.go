package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/isdelr/tasktracker-be/internal/models"
	"github.com/isdelr/tasktracker-be/internal/websocket"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// TaskServiceProvider defines the interface for task services. Every method
// is scoped to ownerID; tasks of other users behave as if they do not exist.
type TaskServiceProvider interface {
	Create(ctx context.Context, ownerID string, input models.TaskInput) (models.Task, error)
	List(ctx context.Context, ownerID string, filter models.TaskFilter) ([]models.Task, error)
	GetOne(ctx context.Context, ownerID, taskID string) (models.Task, error)
	Update(ctx context.Context, ownerID, taskID string, patch models.TaskPatch) (models.Task, error)
	Toggle(ctx context.Context, ownerID, taskID string) (models.Task, error)
	Remove(ctx context.Context, ownerID, taskID string) error
}

// Notifier pushes live updates to a user's open connections.
type Notifier interface {
	Publish(userID string, message []byte)
}

// TaskService provides business logic for task management.
type TaskService struct {
	db           *sqlx.DB
	eventService EventServiceProvider
	notifier     Notifier
	now          func() time.Time
}

// NewTaskService creates a new TaskService. notifier may be nil.
func NewTaskService(db *sqlx.DB, eventService EventServiceProvider, notifier Notifier) *TaskService {
	return &TaskService{
		db:           db,
		eventService: eventService,
		notifier:     notifier,
		now:          time.Now,
	}
}

const taskColumns = "id, title, description, priority, due_date, status, user_id, created_at, updated_at"

// Create stores a new task owned by ownerID, defaulting priority to Medium
// and status to Pending.
func (s *TaskService) Create(ctx context.Context, ownerID string, input models.TaskInput) (models.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return models.Task{}, newError(ErrValidation, "Title is required")
	}
	if err := checkTitleLength(title); err != nil {
		return models.Task{}, err
	}

	now := s.now().UTC()
	task := models.Task{
		ID:          uuid.New().String(),
		Title:       title,
		Description: normalizeDescription(input.Description),
		Priority:    models.PriorityMedium,
		Status:      models.StatusPending,
		UserID:      ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if input.Priority != nil {
		if _, ok := models.ParsePriority(string(*input.Priority)); !ok {
			return models.Task{}, newError(ErrValidation, "Priority must be one of Low, Medium, High")
		}
		task.Priority = *input.Priority
	}
	if input.Status != nil {
		if _, ok := models.ParseTaskStatus(string(*input.Status)); !ok {
			return models.Task{}, newError(ErrValidation, "Status must be one of Pending, Completed")
		}
		task.Status = *input.Status
	}
	if input.DueDate != nil && !input.DueDate.IsZero() {
		due := *input.DueDate
		task.DueDate = &due
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO tasks (id, title, description, priority, due_date, status, user_id, created_at, updated_at)
		VALUES (:id, :title, :description, :priority, :due_date, :status, :user_id, :created_at, :updated_at)`, task)
	if err != nil {
		return models.Task{}, fmt.Errorf("insert task: %w", err)
	}

	s.recordChange(ctx, task, models.EventTaskCreated, fmt.Sprintf("Task '%s' created.", task.Title))
	s.publish(task.UserID, websocket.ActionTaskCreated, task)
	return task, nil
}

// List returns the owner's tasks. Filters holding a value outside their
// enumeration are not applied.
func (s *TaskService) List(ctx context.Context, ownerID string, filter models.TaskFilter) ([]models.Task, error) {
	query := "SELECT " + taskColumns + " FROM tasks WHERE user_id = ?"
	args := []interface{}{ownerID}

	if filter.Status != nil {
		if st, ok := models.ParseTaskStatus(string(*filter.Status)); ok {
			query += " AND status = ?"
			args = append(args, string(st))
		}
	}
	if filter.Priority != nil {
		if p, ok := models.ParsePriority(string(*filter.Priority)); ok {
			query += " AND priority = ?"
			args = append(args, string(p))
		}
	}

	switch filter.SortBy {
	case models.SortByDueDate:
		// Undated tasks go last on every backend.
		query += " ORDER BY due_date IS NULL, due_date ASC, created_at DESC"
	default:
		query += " ORDER BY created_at DESC"
	}

	tasks := []models.Task{}
	if err := s.db.SelectContext(ctx, &tasks, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("select tasks: %w", err)
	}
	return tasks, nil
}

// GetOne loads a task by id, checking existence and ownership together.
func (s *TaskService) GetOne(ctx context.Context, ownerID, taskID string) (models.Task, error) {
	var task models.Task
	err := s.db.GetContext(ctx, &task,
		s.db.Rebind("SELECT "+taskColumns+" FROM tasks WHERE id = ? AND user_id = ?"), taskID, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Task{}, errTaskNotFound
		}
		return models.Task{}, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// Update applies the fields present in patch. Null or empty description and
// dueDate clear them; title, priority and status cannot be cleared.
func (s *TaskService) Update(ctx context.Context, ownerID, taskID string, patch models.TaskPatch) (models.Task, error) {
	task, err := s.GetOne(ctx, ownerID, taskID)
	if err != nil {
		return models.Task{}, err
	}
	before := task

	if patch.Title.Set {
		title := strings.TrimSpace(patch.Title.Value)
		if !patch.Title.Valid || title == "" {
			return models.Task{}, newError(ErrValidation, "Title cannot be empty")
		}
		if err := checkTitleLength(title); err != nil {
			return models.Task{}, err
		}
		task.Title = title
	}
	if patch.Description.Set {
		var desc *string
		if patch.Description.Valid {
			desc = &patch.Description.Value
		}
		task.Description = normalizeDescription(desc)
	}
	if patch.Priority.Set {
		p, ok := models.ParsePriority(string(patch.Priority.Value))
		if !patch.Priority.Valid || !ok {
			return models.Task{}, newError(ErrValidation, "Priority must be one of Low, Medium, High")
		}
		task.Priority = p
	}
	if patch.DueDate.Set {
		task.DueDate = nil
		if patch.DueDate.Valid && !patch.DueDate.Value.IsZero() {
			due := patch.DueDate.Value
			task.DueDate = &due
		}
	}
	if patch.Status.Set {
		st, ok := models.ParseTaskStatus(string(patch.Status.Value))
		if !patch.Status.Valid || !ok {
			return models.Task{}, newError(ErrValidation, "Status must be one of Pending, Completed")
		}
		task.Status = st
	}

	return s.save(ctx, before, task)
}

// Toggle flips a task between Pending and Completed.
func (s *TaskService) Toggle(ctx context.Context, ownerID, taskID string) (models.Task, error) {
	task, err := s.GetOne(ctx, ownerID, taskID)
	if err != nil {
		return models.Task{}, err
	}
	before := task
	task.Status = task.Status.Toggled()
	return s.save(ctx, before, task)
}

// Remove deletes the task permanently.
func (s *TaskService) Remove(ctx context.Context, ownerID, taskID string) error {
	task, err := s.GetOne(ctx, ownerID, taskID)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM tasks WHERE id = ? AND user_id = ?"), task.ID, ownerID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errTaskNotFound
	}

	s.recordChange(ctx, task, models.EventTaskDeleted, fmt.Sprintf("Task '%s' was deleted.", task.Title))
	s.publish(ownerID, websocket.ActionTaskDeleted, map[string]string{"id": task.ID})
	return nil
}

func (s *TaskService) save(ctx context.Context, before, task models.Task) (models.Task, error) {
	task.UpdatedAt = s.now().UTC()

	res, err := s.db.NamedExecContext(ctx, `
		UPDATE tasks
		SET title = :title, description = :description, priority = :priority,
			due_date = :due_date, status = :status, updated_at = :updated_at
		WHERE id = :id AND user_id = :user_id`, task)
	if err != nil {
		return models.Task{}, fmt.Errorf("update task: %w", err)
	}
	// Deleted between the read and the write.
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.Task{}, errTaskNotFound
	}

	eventType, msg := models.EventTaskUpdated, fmt.Sprintf("Task '%s' updated.", task.Title)
	if before.Status != task.Status {
		if task.Status == models.StatusCompleted {
			eventType, msg = models.EventTaskCompleted, fmt.Sprintf("Task '%s' completed.", task.Title)
		} else {
			eventType, msg = models.EventTaskReopened, fmt.Sprintf("Task '%s' reopened.", task.Title)
		}
	}
	s.recordChange(ctx, task, eventType, msg)
	s.publish(task.UserID, websocket.ActionTaskUpdated, task)
	return task, nil
}

// recordChange writes to the activity log. A failure here never fails the
// mutation that already happened.
func (s *TaskService) recordChange(ctx context.Context, task models.Task, eventType, message string) {
	if s.eventService == nil {
		return
	}
	taskID := task.ID
	if err := s.eventService.CreateEvent(ctx, task.UserID, eventType, message, &taskID); err != nil {
		log.Warn().Err(err).Str("user_id", task.UserID).Str("task_id", task.ID).Str("type", eventType).Msg("Failed to record task event")
	}
}

func (s *TaskService) publish(userID, action string, payload interface{}) {
	if s.notifier == nil {
		return
	}
	if msg := websocket.NewMessage(action, payload); msg != nil {
		s.notifier.Publish(userID, msg)
	}
}

func checkTitleLength(title string) error {
	if utf8.RuneCountInString(title) > models.MaxTitleLength {
		return newError(ErrValidation, "Title must be at most %d characters", models.MaxTitleLength)
	}
	return nil
}

func normalizeDescription(desc *string) *string {
	if desc == nil || *desc == "" {
		return nil
	}
	d := *desc
	return &d
}
