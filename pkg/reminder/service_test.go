package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smith3v/wx-reminder/pkg/db"
	"github.com/smith3v/wx-reminder/pkg/internal/testutil"
	"github.com/smith3v/wx-reminder/pkg/push"
	"github.com/smith3v/wx-reminder/pkg/scheduler"
	"github.com/smith3v/wx-reminder/pkg/token"
)

type stubSender struct {
	mu      sync.Mutex
	sent    []string
	failFor map[string]bool
}

func (s *stubSender) Send(ctx context.Context, recipient string, data map[string]string) push.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, recipient)
	if s.failFor[recipient] {
		return push.Result{Success: false, ErrCode: 43101, ErrMsg: "user refused to accept the msg"}
	}
	return push.Result{Success: true}
}

func (s *stubSender) recipients() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.sent))
	copy(out, s.sent)
	return out
}

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, sender push.Sender) *Service {
	t.Helper()
	testutil.SetupTestDB(t)
	sched := scheduler.New(time.Minute, func() time.Time { return testNow })
	t.Cleanup(sched.Stop)
	if sender == nil {
		sender = &stubSender{}
	}
	tokens := token.NewManager("test-secret", 24*time.Hour, func() time.Time { return testNow })
	return NewService(sched, sender, tokens, time.Second, time.Minute, func() time.Time { return testNow })
}

func TestCreateReminderStatuses(t *testing.T) {
	svc := newTestService(t, nil)
	future := testNow.Add(time.Hour).UnixMilli()
	past := testNow.Add(-time.Hour).UnixMilli()

	r, err := svc.Create(CreateParams{Creator: "alice", Title: "standup", FireAtMillis: future, Subscribed: true})
	if err != nil {
		t.Fatalf("failed to create subscribed reminder: %v", err)
	}
	if r.Status != db.StatusPending {
		t.Fatalf("expected pending, got %q", r.Status)
	}
	if !r.IsOwnerCopy() {
		t.Fatalf("expected the created row to be the owner copy")
	}
	if svc.sched.Len() != 1 {
		t.Fatalf("expected an armed timer, got %d", svc.sched.Len())
	}

	r2, err := svc.Create(CreateParams{Creator: "alice", Title: "later", FireAtMillis: future, Subscribed: false})
	if err != nil {
		t.Fatalf("failed to create unsubscribed reminder: %v", err)
	}
	if r2.Status != db.StatusNoSubscribe {
		t.Fatalf("expected no_subscribe, got %q", r2.Status)
	}

	r3, err := svc.Create(CreateParams{Creator: "bob", Title: "missed", FireAtMillis: past, Subscribed: false})
	if err != nil {
		t.Fatalf("failed to create past reminder: %v", err)
	}
	if r3.Status != db.StatusExpired {
		t.Fatalf("expected expired, got %q", r3.Status)
	}
	if svc.sched.Len() != 1 {
		t.Fatalf("only the pending reminder should hold a timer, got %d", svc.sched.Len())
	}
}

func TestCreateReminderValidation(t *testing.T) {
	svc := newTestService(t, nil)

	var verr *ValidationError
	_, err := svc.Create(CreateParams{Title: "x", FireAtMillis: 1})
	if !errors.As(err, &verr) || verr.Field != "openid" {
		t.Fatalf("expected openid validation error, got %v", err)
	}
	_, err = svc.Create(CreateParams{Creator: "alice", Title: "  ", FireAtMillis: 1})
	if !errors.As(err, &verr) || verr.Field != "title" {
		t.Fatalf("expected title validation error, got %v", err)
	}
	_, err = svc.Create(CreateParams{Creator: "alice", Title: "x"})
	if !errors.As(err, &verr) || verr.Field != "reminderTime" {
		t.Fatalf("expected reminderTime validation error, got %v", err)
	}
}

func TestUpdateRequiresOwner(t *testing.T) {
	svc := newTestService(t, nil)
	r, err := svc.Create(CreateParams{Creator: "alice", Title: "standup", FireAtMillis: testNow.Add(time.Hour).UnixMilli(), Subscribed: true})
	if err != nil {
		t.Fatalf("failed to create reminder: %v", err)
	}

	title := "renamed"
	if _, err := svc.Update(r.ID, "bob", UpdateParams{Title: &title}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-creator edit, got %v", err)
	}

	got, err := db.GetReminder(r.ID)
	if err != nil {
		t.Fatalf("failed to re-read reminder: %v", err)
	}
	if got.Title != "standup" {
		t.Fatalf("forbidden edit must not change the row, got title %q", got.Title)
	}
}

func TestUpdatePropagatesToCopies(t *testing.T) {
	svc := newTestService(t, nil)
	fireAt := testNow.Add(time.Hour).UnixMilli()
	owner, err := svc.Create(CreateParams{Creator: "alice", Title: "standup", FireAtMillis: fireAt, Subscribed: true})
	if err != nil {
		t.Fatalf("failed to create owner reminder: %v", err)
	}
	if _, err := svc.Accept(owner.ID, "bob"); err != nil {
		t.Fatalf("failed to accept for bob: %v", err)
	}
	if _, err := svc.Accept(owner.ID, "carol"); err != nil {
		t.Fatalf("failed to accept for carol: %v", err)
	}

	newFireAt := testNow.Add(2 * time.Hour).UnixMilli()
	newTitle := "standup (moved)"
	updated, err := svc.Update(owner.ID, "alice", UpdateParams{Title: &newTitle, FireAtMillis: &newFireAt})
	if err != nil {
		t.Fatalf("failed to update reminder: %v", err)
	}
	if updated.FireAtMillis != newFireAt {
		t.Fatalf("owner fire time not updated: %d", updated.FireAtMillis)
	}

	copies, err := db.ListByOwnerAndFireTime("alice", newFireAt)
	if err != nil {
		t.Fatalf("failed to list copies: %v", err)
	}
	if len(copies) != 3 {
		t.Fatalf("expected owner and both recipient copies at the new fire time, got %d", len(copies))
	}
	for _, c := range copies {
		if c.Title != newTitle {
			t.Fatalf("copy %s did not receive the new title: %q", c.ID, c.Title)
		}
		if c.Status != db.StatusPending {
			t.Fatalf("copy %s should remain pending, got %q", c.ID, c.Status)
		}
	}

	stale, err := db.ListByOwnerAndFireTime("alice", fireAt)
	if err != nil {
		t.Fatalf("failed to list stale copies: %v", err)
	}
	if len(stale) != 0 {
		t.Fatalf("no copy should remain at the old fire time, got %d", len(stale))
	}
	if svc.sched.Len() != 3 {
		t.Fatalf("expected all three copies re-armed, got %d timers", svc.sched.Len())
	}
}

func TestUpdateReevaluatesStatusPerCopy(t *testing.T) {
	svc := newTestService(t, nil)
	fireAt := testNow.Add(time.Hour).UnixMilli()
	owner, err := svc.Create(CreateParams{Creator: "alice", Title: "standup", FireAtMillis: fireAt, Subscribed: true})
	if err != nil {
		t.Fatalf("failed to create owner reminder: %v", err)
	}
	if _, err := svc.Accept(owner.ID, "bob"); err != nil {
		t.Fatalf("failed to accept for bob: %v", err)
	}

	// Bob's holder turns subscription off on their copy only.
	copyID := db.CopyID(owner.ID, "bob")
	if err := db.UpdateReminderFields(copyID, map[string]any{"subscribed": false, "status": db.StatusNoSubscribe}); err != nil {
		t.Fatalf("failed to unsubscribe bob's copy: %v", err)
	}
	svc.sched.Cancel(copyID)

	newTitle := "standup (moved)"
	if _, err := svc.Update(owner.ID, "alice", UpdateParams{Title: &newTitle}); err != nil {
		t.Fatalf("failed to update reminder: %v", err)
	}

	c, err := db.GetReminder(copyID)
	if err != nil {
		t.Fatalf("failed to re-read bob's copy: %v", err)
	}
	if c.Title != newTitle {
		t.Fatalf("content must still propagate, got title %q", c.Title)
	}
	if c.Status != db.StatusNoSubscribe {
		t.Fatalf("an unsubscribed copy must keep no_subscribe, got %q", c.Status)
	}
	if svc.sched.Len() != 1 {
		t.Fatalf("only the owner copy may hold a timer, got %d", svc.sched.Len())
	}

	// Re-subscribing through the owner pulls every copy back to pending.
	on := true
	if _, err := svc.Update(owner.ID, "alice", UpdateParams{Subscribed: &on}); err != nil {
		t.Fatalf("failed to re-subscribe: %v", err)
	}
	c, err = db.GetReminder(copyID)
	if err != nil {
		t.Fatalf("failed to re-read bob's copy: %v", err)
	}
	if c.Status != db.StatusPending {
		t.Fatalf("a propagated subscribe edit must re-enter pending, got %q", c.Status)
	}
	if svc.sched.Len() != 2 {
		t.Fatalf("expected both copies armed after re-subscribe, got %d", svc.sched.Len())
	}
}

func TestUpdateUnsubscribeCancelsTimer(t *testing.T) {
	svc := newTestService(t, nil)
	r, err := svc.Create(CreateParams{Creator: "alice", Title: "standup", FireAtMillis: testNow.Add(time.Hour).UnixMilli(), Subscribed: true})
	if err != nil {
		t.Fatalf("failed to create reminder: %v", err)
	}

	off := false
	updated, err := svc.Update(r.ID, "alice", UpdateParams{Subscribed: &off})
	if err != nil {
		t.Fatalf("failed to update reminder: %v", err)
	}
	if updated.Status != db.StatusNoSubscribe {
		t.Fatalf("expected no_subscribe after unsubscribe, got %q", updated.Status)
	}
	if svc.sched.Len() != 0 {
		t.Fatalf("expected timer cancelled, got %d", svc.sched.Len())
	}
}

func TestDeleteByHolderCancelsTimer(t *testing.T) {
	svc := newTestService(t, nil)
	r, err := svc.Create(CreateParams{Creator: "alice", Title: "standup", FireAtMillis: testNow.Add(time.Hour).UnixMilli(), Subscribed: true})
	if err != nil {
		t.Fatalf("failed to create reminder: %v", err)
	}

	if err := svc.Delete(r.ID, "bob"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-holder delete, got %v", err)
	}
	if err := svc.Delete(r.ID, "alice"); err != nil {
		t.Fatalf("failed to delete reminder: %v", err)
	}
	if svc.sched.Len() != 0 {
		t.Fatalf("expected timer cancelled after delete, got %d", svc.sched.Len())
	}
	if err := svc.Delete(r.ID, "alice"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for repeated delete, got %v", err)
	}
}

func TestSetCompletedLeavesSchedulerAlone(t *testing.T) {
	svc := newTestService(t, nil)
	r, err := svc.Create(CreateParams{Creator: "alice", Title: "standup", FireAtMillis: testNow.Add(time.Hour).UnixMilli(), Subscribed: true})
	if err != nil {
		t.Fatalf("failed to create reminder: %v", err)
	}

	if err := svc.SetCompleted(r.ID, "alice", true); err != nil {
		t.Fatalf("failed to complete reminder: %v", err)
	}
	got, err := db.GetReminder(r.ID)
	if err != nil {
		t.Fatalf("failed to re-read reminder: %v", err)
	}
	if !got.Completed {
		t.Fatalf("expected completed flag set")
	}
	if got.Status != db.StatusPending {
		t.Fatalf("completion must not change status, got %q", got.Status)
	}
	if svc.sched.Len() != 1 {
		t.Fatalf("completion must not touch the scheduler, got %d timers", svc.sched.Len())
	}
}

func TestRearmPending(t *testing.T) {
	sender := &stubSender{}
	svc := newTestService(t, sender)
	rows := []db.Reminder{
		{ID: "due-soon", CurrentHolder: "alice", Creator: "alice", Title: "a", FireAtMillis: testNow.Add(time.Hour).UnixMilli(), Subscribed: true, Status: db.StatusPending},
		{ID: "within-grace", CurrentHolder: "alice", Creator: "alice", Title: "b", FireAtMillis: testNow.Add(-30 * time.Second).UnixMilli(), Subscribed: true, Status: db.StatusPending},
		{ID: "long-gone", CurrentHolder: "alice", Creator: "alice", Title: "c", FireAtMillis: testNow.Add(-time.Hour).UnixMilli(), Subscribed: true, Status: db.StatusPending},
		{ID: "already-sent", CurrentHolder: "alice", Creator: "alice", Title: "d", FireAtMillis: testNow.Add(time.Hour).UnixMilli(), Subscribed: true, Status: db.StatusSent},
	}
	for i := range rows {
		if err := db.CreateReminder(&rows[i]); err != nil {
			t.Fatalf("failed to seed reminder: %v", err)
		}
	}

	if err := svc.RearmPending(); err != nil {
		t.Fatalf("failed to re-arm: %v", err)
	}

	got, err := db.GetReminder("long-gone")
	if err != nil {
		t.Fatalf("failed to read stale reminder: %v", err)
	}
	if got.Status != db.StatusExpired {
		t.Fatalf("expected beyond-grace reminder expired, got %q", got.Status)
	}

	// The within-grace registration fires as soon as the loop sees it.
	deadline := time.Now().Add(2 * time.Second)
	for len(sender.recipients()) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("within-grace reminder never fired")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if svc.sched.Len() != 1 {
		t.Fatalf("only the future reminder should stay armed, got %d", svc.sched.Len())
	}
}
