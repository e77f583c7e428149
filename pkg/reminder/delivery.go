package reminder

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/smith3v/wx-reminder/pkg/db"
	"github.com/smith3v/wx-reminder/pkg/logger"
	"github.com/smith3v/wx-reminder/pkg/push"
)

// HandleFire runs when a reminder's timer fires. All reminder state is
// re-read here; the scheduler carried only the id across the delay.
//
// Every copy of an occurrence arms its own timer, but delivery for the
// whole occurrence happens on the owner copy's fire: a recipient-copy fire
// defers whenever an armed owner copy exists, and delivers to its own
// holder only when the owner copy is gone or unsubscribed. Either way each
// resolved recipient receives exactly one notification per fire event.
func (s *Service) HandleFire(id string) {
	fired, err := db.GetReminder(id)
	if err != nil {
		logger.Error("failed to load fired reminder", "reminder_id", id, "error", err)
		return
	}
	if fired == nil {
		logger.Debug("fired reminder no longer exists", "reminder_id", id)
		return
	}

	copies, err := db.ListByOwnerAndFireTime(fired.Creator, fired.FireAtMillis)
	if err != nil {
		logger.Error("failed to resolve reminder copies", "reminder_id", id, "error", err)
		return
	}
	var owner *db.Reminder
	for i := range copies {
		if copies[i].IsOwnerCopy() {
			owner = &copies[i]
			break
		}
	}

	if owner != nil && owner.ID != fired.ID && owner.Subscribed {
		logger.Debug("deferring delivery to owner fire", "reminder_id", id, "owner_id", owner.ID)
		return
	}

	// Resolution finishes before any status write.
	var content *db.Reminder
	var targets []db.Reminder
	if owner != nil && owner.ID == fired.ID {
		content = owner
		if owner.Subscribed {
			targets = append(targets, *owner)
		}
		assignments, err := db.ListAcceptedAssignments(owner.ID)
		if err != nil {
			logger.Error("failed to resolve assignments", "reminder_id", id, "error", err)
			return
		}
		byHolder := make(map[string]db.Reminder, len(copies))
		for _, c := range copies {
			byHolder[c.CurrentHolder] = c
		}
		for _, a := range assignments {
			c, ok := byHolder[a.Recipient]
			if ok && c.Subscribed {
				targets = append(targets, c)
			}
		}
	} else {
		content = fired
		if fired.Subscribed {
			targets = append(targets, *fired)
		}
	}

	payload := buildPayload(content)
	firedAt := s.now()

	if len(targets) == 0 {
		if fired.Subscribed {
			s.markStatus([]db.Reminder{*fired}, db.StatusFailed)
			s.writeDeliveryLog(fired.ID, firedAt, payload, 0, 0, db.StatusFailed)
			logger.Error("no resolvable recipients at fire time", "reminder_id", id)
		}
		return
	}

	type outcome struct {
		recipient string
		res       push.Result
	}
	results := make(chan outcome, len(targets))
	var wg sync.WaitGroup
	for _, c := range targets {
		wg.Add(1)
		go func(recipient string) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), s.sendTimeout)
			defer cancel()
			results <- outcome{recipient: recipient, res: s.sender.Send(ctx, recipient, payload)}
		}(c.CurrentHolder)
	}
	wg.Wait()
	close(results)

	succeeded, failed := 0, 0
	for out := range results {
		if out.res.Success {
			succeeded++
			continue
		}
		failed++
		logger.Error("notification send failed",
			"reminder_id", id,
			"recipient", out.recipient,
			"errcode", out.res.ErrCode,
			"errmsg", out.res.ErrMsg)
	}

	// At least one success counts as sent for every involved copy; status
	// does not carry per-recipient granularity.
	status := db.StatusFailed
	if succeeded > 0 {
		status = db.StatusSent
	}
	s.markStatus(targets, status)
	s.writeDeliveryLog(fired.ID, firedAt, payload, succeeded, failed, status)
	logger.Info("delivery finished",
		"reminder_id", id,
		"recipients", len(targets),
		"succeeded", succeeded,
		"failed", failed,
		"status", status)
}

func (s *Service) markStatus(copies []db.Reminder, status string) {
	for _, c := range copies {
		if err := db.UpdateReminderFields(c.ID, map[string]any{"status": status}); err != nil {
			logger.Error("failed to update reminder status", "reminder_id", c.ID, "status", status, "error", err)
		}
	}
}

func (s *Service) writeDeliveryLog(reminderID string, firedAt time.Time, payload map[string]string, succeeded, failed int, outcome string) {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = []byte("{}")
	}
	entry := &db.DeliveryLog{
		ReminderID: reminderID,
		FiredAt:    firedAt,
		Recipients: succeeded + failed,
		Succeeded:  succeeded,
		Failed:     failed,
		Outcome:    outcome,
		Payload:    raw,
	}
	if err := db.CreateDeliveryLog(entry); err != nil {
		logger.Error("failed to record delivery log", "reminder_id", reminderID, "error", err)
	}
}
