package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/tasktracker-be/internal/models"
	"github.com/jmoiron/sqlx"
)

// EventServiceProvider defines the interface for event services.
type EventServiceProvider interface {
	CreateEvent(ctx context.Context, userID, eventType, message string, taskID *string) error
	GetRecentEvents(ctx context.Context, userID string, limit int) ([]models.Event, error)
}

// EventService records and reads users' activity logs.
type EventService struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewEventService creates a new EventService.
func NewEventService(db *sqlx.DB) *EventService {
	return &EventService{db: db, now: time.Now}
}

// CreateEvent logs a new event to the database.
func (s *EventService) CreateEvent(ctx context.Context, userID, eventType, message string, taskID *string) error {
	event := models.Event{
		ID:        uuid.New().String(),
		UserID:    userID,
		TaskID:    taskID,
		Type:      eventType,
		Message:   message,
		CreatedAt: s.now().UTC(),
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO events (id, user_id, task_id, type, message, created_at)
		VALUES (:id, :user_id, :task_id, :type, :message, :created_at)`, event)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetRecentEvents retrieves a user's most recent events, newest first.
func (s *EventService) GetRecentEvents(ctx context.Context, userID string, limit int) ([]models.Event, error) {
	events := []models.Event{}
	err := s.db.SelectContext(ctx, &events, s.db.Rebind(`
		SELECT id, user_id, task_id, type, message, created_at
		FROM events WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`), userID, limit)
	if err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}
	return events, nil
}
