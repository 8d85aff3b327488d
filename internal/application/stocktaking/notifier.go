package stocktaking

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/wms/stocktaking/internal/domain/shared"
	"github.com/wms/stocktaking/internal/domain/stocktaking"
)

// NotificationLevel is the severity shown to the operator
type NotificationLevel string

const (
	LevelInfo    NotificationLevel = "info"
	LevelSuccess NotificationLevel = "success"
	LevelWarning NotificationLevel = "warning"
	LevelError   NotificationLevel = "error"
)

// Recipient addresses for notifications that target a group instead of a user
const (
	RecipientApprovers = "role:" + stocktaking.RoleApprover
	RecipientBroadcast = "*"
)

// Notification is a user-facing outcome message
type Notification struct {
	Recipient string            `json:"recipient"`
	Level     NotificationLevel `json:"level"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	SheetID   uuid.UUID         `json:"sheet_id,omitempty"`
}

// Notifier delivers notifications to operators. It is injected into the
// components that emit messages; delivery failures never fail the operation.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// UserRecipient returns the recipient address of a single user
func UserRecipient(id uuid.UUID) string {
	return "user:" + id.String()
}

// NotificationHandler turns stocktaking domain events into notifications
type NotificationHandler struct {
	notifier Notifier
}

// NewNotificationHandler creates a NotificationHandler
func NewNotificationHandler(notifier Notifier) *NotificationHandler {
	return &NotificationHandler{notifier: notifier}
}

// EventTypes returns the event types this handler is interested in
func (h *NotificationHandler) EventTypes() []string {
	return []string{
		stocktaking.EventTypeAreasAssigned,
		stocktaking.EventTypeAreaReassigned,
		stocktaking.EventTypeSheetStarted,
		stocktaking.EventTypeSheetSubmitted,
		stocktaking.EventTypeSheetApproved,
		stocktaking.EventTypeSheetCancelled,
		stocktaking.EventTypeLocationsRejected,
	}
}

// Handle processes a domain event
func (h *NotificationHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	for _, n := range notificationsFor(event) {
		if err := h.notifier.Notify(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

func notificationsFor(event shared.DomainEvent) []Notification {
	switch e := event.(type) {
	case *stocktaking.AreasAssignedEvent:
		out := make([]Notification, 0, len(e.Assignments))
		for _, a := range e.Assignments {
			out = append(out, Notification{
				Recipient: UserRecipient(a.StaffID),
				Level:     LevelInfo,
				Title:     "Area assigned",
				Message:   fmt.Sprintf("You are assigned to count area %s on sheet %s", a.AreaCode, e.Code),
				SheetID:   e.SheetID,
			})
		}
		return out
	case *stocktaking.AreaReassignedEvent:
		out := []Notification{{
			Recipient: UserRecipient(e.StaffID),
			Level:     LevelInfo,
			Title:     "Area assigned",
			Message:   fmt.Sprintf("You are assigned to count area %s on sheet %s", e.AreaCode, e.Code),
			SheetID:   e.SheetID,
		}}
		if e.PreviousStaffID != nil && *e.PreviousStaffID != e.StaffID {
			out = append(out, Notification{
				Recipient: UserRecipient(*e.PreviousStaffID),
				Level:     LevelWarning,
				Title:     "Area reassigned",
				Message:   fmt.Sprintf("Area %s on sheet %s was reassigned to another staff member", e.AreaCode, e.Code),
				SheetID:   e.SheetID,
			})
		}
		return out
	case *stocktaking.LocationsRejectedEvent:
		out := make([]Notification, 0, len(e.Locations))
		for _, loc := range e.Locations {
			if loc.StaffID == nil {
				continue
			}
			out = append(out, Notification{
				Recipient: UserRecipient(*loc.StaffID),
				Level:     LevelWarning,
				Title:     "Recount required",
				Message:   fmt.Sprintf("Location %s must be recounted: %s", loc.LocationCode, loc.Reason),
				SheetID:   e.SheetID,
			})
		}
		return out
	case *stocktaking.SheetStatusChangedEvent:
		return statusNotifications(e)
	}
	return nil
}

func statusNotifications(e *stocktaking.SheetStatusChangedEvent) []Notification {
	switch e.EventType() {
	case stocktaking.EventTypeSheetSubmitted:
		return []Notification{{
			Recipient: RecipientApprovers,
			Level:     LevelInfo,
			Title:     "Sheet waiting for approval",
			Message:   fmt.Sprintf("Every area of sheet %s is counted", e.Code),
			SheetID:   e.SheetID,
		}}
	case stocktaking.EventTypeSheetStarted, stocktaking.EventTypeSheetApproved, stocktaking.EventTypeSheetCancelled:
		level, title, msg := LevelInfo, "Counting started", fmt.Sprintf("Sheet %s is open for counting", e.Code)
		switch e.EventType() {
		case stocktaking.EventTypeSheetApproved:
			level, title, msg = LevelSuccess, "Sheet approved", fmt.Sprintf("Sheet %s was approved", e.Code)
		case stocktaking.EventTypeSheetCancelled:
			level, title, msg = LevelWarning, "Sheet cancelled", fmt.Sprintf("Sheet %s was cancelled: %s", e.Code, e.Reason)
		}
		out := make([]Notification, 0, len(e.StaffIDs))
		for _, staff := range e.StaffIDs {
			out = append(out, Notification{Recipient: UserRecipient(staff), Level: level, Title: title, Message: msg, SheetID: e.SheetID})
		}
		return out
	}
	return nil
}

var _ shared.EventHandler = (*NotificationHandler)(nil)
