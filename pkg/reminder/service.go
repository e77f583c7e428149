package reminder

import (
	"strings"
	"time"

	"github.com/smith3v/wx-reminder/pkg/db"
	"github.com/smith3v/wx-reminder/pkg/logger"
	"github.com/smith3v/wx-reminder/pkg/push"
	"github.com/smith3v/wx-reminder/pkg/scheduler"
	"github.com/smith3v/wx-reminder/pkg/token"
)

// Service owns the reminder lifecycle: creation, edits with propagation to
// shared copies, sharing, and delivery at fire time. The scheduler holds
// only reminder ids; all state is re-read from the store when a timer
// fires.
type Service struct {
	sched       *scheduler.Scheduler
	sender      push.Sender
	tokens      *token.Manager
	sendTimeout time.Duration
	grace       time.Duration
	now         func() time.Time
}

func NewService(sched *scheduler.Scheduler, sender push.Sender, tokens *token.Manager, sendTimeout, grace time.Duration, now func() time.Time) *Service {
	if sendTimeout <= 0 {
		sendTimeout = 10 * time.Second
	}
	if grace <= 0 {
		grace = scheduler.DefaultGrace
	}
	if now == nil {
		now = time.Now
	}
	return &Service{
		sched:       sched,
		sender:      sender,
		tokens:      tokens,
		sendTimeout: sendTimeout,
		grace:       grace,
		now:         now,
	}
}

type CreateParams struct {
	Creator      string
	Title        string
	Detail       string
	DisplayTime  string
	FireAtMillis int64
	Subscribed   bool
}

func (s *Service) Create(p CreateParams) (*db.Reminder, error) {
	if strings.TrimSpace(p.Creator) == "" {
		return nil, &ValidationError{Field: "openid"}
	}
	if strings.TrimSpace(p.Title) == "" {
		return nil, &ValidationError{Field: "title"}
	}
	if p.FireAtMillis <= 0 {
		return nil, &ValidationError{Field: "reminderTime"}
	}

	now := s.now()
	r := &db.Reminder{
		ID:            db.ReminderID(p.Creator, now),
		CurrentHolder: p.Creator,
		Creator:       p.Creator,
		Title:         p.Title,
		Detail:        p.Detail,
		DisplayTime:   p.DisplayTime,
		FireAtMillis:  p.FireAtMillis,
		Subscribed:    p.Subscribed,
		Status:        EvaluateStatus(p.Subscribed, p.FireAtMillis, now),
		CreatedAt:     now,
	}
	if err := db.CreateReminder(r); err != nil {
		return nil, err
	}

	if r.Status == db.StatusPending {
		s.sched.Arm(r.ID, time.UnixMilli(r.FireAtMillis), s.HandleFire)
	}
	return r, nil
}

func (s *Service) Get(id string) (*db.Reminder, error) {
	r, err := db.GetReminder(id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ErrNotFound
	}
	return r, nil
}

func (s *Service) ListByHolder(holder string) ([]db.Reminder, error) {
	return db.ListByHolder(holder)
}

// ListAssigned returns the recipient copies a user obtained through accept.
func (s *Service) ListAssigned(recipient string) ([]db.Reminder, error) {
	return db.ListAssignedTo(recipient)
}

// UpdateParams is a partial field set; nil fields are left untouched.
type UpdateParams struct {
	Title        *string
	Detail       *string
	DisplayTime  *string
	FireAtMillis *int64
	Subscribed   *bool
}

// Update edits the owner copy and propagates the changed fields to every
// shared copy of the same occurrence. Each copy re-evaluates its status and
// re-arms its own timer; copy updates commit independently and a failure on
// one never rolls back the others.
func (s *Service) Update(id, requester string, p UpdateParams) (*db.Reminder, error) {
	r, err := db.GetReminder(id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ErrNotFound
	}
	if requester != r.Creator || !r.IsOwnerCopy() {
		return nil, ErrForbidden
	}

	oldFireAt := r.FireAtMillis

	fields := map[string]any{}
	if p.Title != nil {
		if strings.TrimSpace(*p.Title) == "" {
			return nil, &ValidationError{Field: "title"}
		}
		r.Title = *p.Title
		fields["title"] = *p.Title
	}
	if p.Detail != nil {
		r.Detail = *p.Detail
		fields["detail"] = *p.Detail
	}
	if p.DisplayTime != nil {
		r.DisplayTime = *p.DisplayTime
		fields["display_time"] = *p.DisplayTime
	}
	if p.FireAtMillis != nil {
		if *p.FireAtMillis <= 0 {
			return nil, &ValidationError{Field: "reminderTime"}
		}
		r.FireAtMillis = *p.FireAtMillis
		fields["fire_at_millis"] = *p.FireAtMillis
	}
	if p.Subscribed != nil {
		r.Subscribed = *p.Subscribed
		fields["subscribed"] = *p.Subscribed
	}
	if len(fields) == 0 {
		return r, nil
	}

	now := s.now()
	r.Status = EvaluateStatus(r.Subscribed, r.FireAtMillis, now)

	ownerFields := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		ownerFields[k] = v
	}
	ownerFields["status"] = r.Status
	if err := db.UpdateReminderFields(r.ID, ownerFields); err != nil {
		return nil, err
	}
	s.rearm(r.ID, r.Status, r.FireAtMillis)

	// Fan the same changes out to every copy of the occurrence, correlated
	// by (creator, old fire time). Best effort: log and continue. Each copy
	// re-evaluates status against its own subscription flag; a copy whose
	// holder unsubscribed stays out of the scheduler no matter what the
	// owner's flag says.
	copies, err := db.ListByOwnerAndFireTime(r.Creator, oldFireAt)
	if err != nil {
		logger.Error("failed to list copies for propagation", "reminder_id", r.ID, "error", err)
		return r, nil
	}
	for _, c := range copies {
		if c.ID == r.ID {
			continue
		}
		copySubscribed := c.Subscribed
		if p.Subscribed != nil {
			copySubscribed = *p.Subscribed
		}
		copyStatus := EvaluateStatus(copySubscribed, r.FireAtMillis, now)
		copyFields := make(map[string]any, len(fields)+1)
		for k, v := range fields {
			copyFields[k] = v
		}
		copyFields["status"] = copyStatus
		if err := db.UpdateReminderFields(c.ID, copyFields); err != nil {
			logger.Error("failed to propagate edit to copy", "reminder_id", r.ID, "copy_id", c.ID, "error", err)
			continue
		}
		s.rearm(c.ID, copyStatus, r.FireAtMillis)
	}
	return r, nil
}

// Delete removes one copy. The holder of a copy may delete it; any armed
// timer for that id is cancelled.
func (s *Service) Delete(id, requester string) error {
	r, err := db.GetReminder(id)
	if err != nil {
		return err
	}
	if r == nil {
		return ErrNotFound
	}
	if requester != r.CurrentHolder {
		return ErrForbidden
	}
	if err := db.DeleteReminder(id); err != nil {
		return err
	}
	s.sched.Cancel(id)
	return nil
}

// SetCompleted toggles the completed flag on one copy. It is independent of
// delivery status and never touches the scheduler.
func (s *Service) SetCompleted(id, requester string, completed bool) error {
	r, err := db.GetReminder(id)
	if err != nil {
		return err
	}
	if r == nil {
		return ErrNotFound
	}
	if requester != r.CurrentHolder {
		return ErrForbidden
	}
	return db.UpdateReminderFields(id, map[string]any{"completed": completed})
}

// RearmPending re-arms timers after a restart. Reminders whose fire instant
// is already more than the grace window in the past are marked expired
// instead.
func (s *Service) RearmPending() error {
	reminders, err := db.ListPendingSubscribed()
	if err != nil {
		return err
	}
	now := s.now()
	armed, expired := 0, 0
	for _, r := range reminders {
		fireAt := time.UnixMilli(r.FireAtMillis)
		if now.Sub(fireAt) > s.grace {
			if err := db.UpdateReminderFields(r.ID, map[string]any{"status": db.StatusExpired}); err != nil {
				logger.Error("failed to expire stale reminder", "reminder_id", r.ID, "error", err)
			}
			expired++
			continue
		}
		s.sched.Arm(r.ID, fireAt, s.HandleFire)
		armed++
	}
	logger.Info("re-armed pending reminders", "armed", armed, "expired", expired)
	return nil
}

func (s *Service) rearm(id, status string, fireAtMillis int64) {
	if status == db.StatusPending {
		s.sched.Arm(id, time.UnixMilli(fireAtMillis), s.HandleFire)
		return
	}
	s.sched.Cancel(id)
}
