package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/templui/campus/internal/apperrors"
	"github.com/templui/campus/internal/model"
	"github.com/templui/campus/internal/repository"
)

// EventService tracks which campus map events a user plans to attend.
type EventService struct {
	attendanceRepo repository.EventAttendanceRepository
}

func NewEventService(attendanceRepo repository.EventAttendanceRepository) *EventService {
	return &EventService{attendanceRepo: attendanceRepo}
}

// Attend is idempotent per (user, event).
func (s *EventService) Attend(ctx context.Context, userID, eventID, eventName string) error {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return apperrors.Validationf("event is required")
	}
	if userID == "" {
		return apperrors.Rejectedf("Sign in to attend events", ErrNoSession)
	}

	created, err := s.attendanceRepo.Create(ctx, &model.EventAttendance{
		ID:        uuid.New().String(),
		UserID:    userID,
		EventID:   eventID,
		EventName: strings.TrimSpace(eventName),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to record attendance: %w", err)
	}
	if created {
		slog.Info("event attendance added", "user_id", userID, "event_id", eventID)
	}
	return nil
}

// Leave succeeds whether or not the user was attending.
func (s *EventService) Leave(ctx context.Context, userID, eventID string) error {
	removed, err := s.attendanceRepo.Delete(ctx, userID, strings.TrimSpace(eventID))
	if err != nil {
		return fmt.Errorf("failed to remove attendance: %w", err)
	}
	if removed {
		slog.Info("event attendance removed", "user_id", userID, "event_id", eventID)
	}
	return nil
}

func (s *EventService) Attending(ctx context.Context, userID string) ([]*model.EventAttendance, error) {
	attendances, err := s.attendanceRepo.ByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendances: %w", err)
	}
	return attendances, nil
}
