package reminder

import (
	"time"

	"github.com/smith3v/wx-reminder/pkg/db"
)

// AcceptResult carries the recipient copy and whether it already existed.
// AlreadyAccepted is informational, not an error.
type AcceptResult struct {
	Copy            *db.Reminder
	AlreadyAccepted bool
}

// Share marks the owner reminder as shared and returns a share reference.
// Only the creator, acting on the owner copy, may share; the holder check
// defends against a spoofed creator field on a recipient copy. Repeated
// calls are harmless.
func (s *Service) Share(reminderID, requester string) (string, error) {
	r, err := db.GetReminder(reminderID)
	if err != nil {
		return "", err
	}
	if r == nil {
		return "", ErrNotFound
	}
	if requester != r.Creator || !r.IsOwnerCopy() {
		return "", ErrForbidden
	}

	if !r.Shared {
		if err := db.UpdateReminderFields(r.ID, map[string]any{"shared": true}); err != nil {
			return "", err
		}
	}
	return s.tokens.IssueShareRef(r.ID, r.Creator)
}

// AcceptRef redeems a share reference for the caller.
func (s *Service) AcceptRef(ref, recipient string) (*AcceptResult, error) {
	reminderID, err := s.tokens.ParseShareRef(ref)
	if err != nil {
		return nil, &ValidationError{Field: "share_ref"}
	}
	return s.Accept(reminderID, recipient)
}

// Accept creates (or locates) the recipient's copy of a shared reminder.
// The idempotency key is the deterministic (reminderID, recipient) pair:
// concurrent or repeated accepts converge on one assignment row and one
// copy row.
func (s *Service) Accept(reminderID, recipient string) (*AcceptResult, error) {
	r, err := db.GetReminder(reminderID)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ErrNotFound
	}
	if !r.IsOwnerCopy() {
		return nil, ErrInvalidOperation
	}
	if recipient == r.Creator {
		return nil, ErrInvalidOperation
	}

	copyID := db.CopyID(r.ID, recipient)
	assignmentID := db.AssignmentID(r.ID, recipient)

	existing, err := db.GetAssignment(assignmentID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status == db.AssignmentAccepted {
		copy, err := db.GetReminder(copyID)
		if err != nil {
			return nil, err
		}
		if copy != nil {
			return &AcceptResult{Copy: copy, AlreadyAccepted: true}, nil
		}
		// Accepted assignment without a copy: heal by recreating below.
	}

	now := s.now()
	assignment := &db.ReminderAssignment{
		ID:              assignmentID,
		OwnerReminderID: r.ID,
		Creator:         r.Creator,
		Recipient:       recipient,
		Status:          db.AssignmentAccepted,
		CreatedAt:       now,
		AcceptedAt:      &now,
	}
	if existing != nil {
		assignment.CreatedAt = existing.CreatedAt
	}
	if err := db.UpsertAssignment(assignment); err != nil {
		return nil, err
	}

	// Close the re-accept race: a concurrent accept may have inserted the
	// copy between our first read and here.
	if copy, err := db.GetReminder(copyID); err != nil {
		return nil, err
	} else if copy != nil {
		return &AcceptResult{Copy: copy, AlreadyAccepted: true}, nil
	}

	copy := &db.Reminder{
		ID:            copyID,
		CurrentHolder: recipient,
		Creator:       r.Creator,
		Title:         r.Title,
		Detail:        r.Detail,
		DisplayTime:   r.DisplayTime,
		FireAtMillis:  r.FireAtMillis,
		Subscribed:    r.Subscribed,
		Status:        EvaluateStatus(r.Subscribed, r.FireAtMillis, now),
		CreatedAt:     now,
	}
	if err := db.CreateReminder(copy); err != nil {
		// The deterministic id turns a lost race into a key conflict.
		if found, getErr := db.GetReminder(copyID); getErr == nil && found != nil {
			return &AcceptResult{Copy: found, AlreadyAccepted: true}, nil
		}
		return nil, err
	}

	if copy.Status == db.StatusPending {
		s.sched.Arm(copy.ID, time.UnixMilli(copy.FireAtMillis), s.HandleFire)
	}
	return &AcceptResult{Copy: copy, AlreadyAccepted: false}, nil
}
