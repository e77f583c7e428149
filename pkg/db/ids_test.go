package db

import (
	"testing"
	"time"
)

func TestReminderIDDeterministic(t *testing.T) {
	createdAt := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
	a := ReminderID("user-a", createdAt)
	b := ReminderID("user-a", createdAt)
	if a != b {
		t.Fatalf("expected identical ids for identical inputs, got %q and %q", a, b)
	}
	if got := ReminderID("user-b", createdAt); got == a {
		t.Fatalf("expected different creators to yield different ids")
	}
	if got := ReminderID("user-a", createdAt.Add(time.Nanosecond)); got == a {
		t.Fatalf("expected different instants to yield different ids")
	}
}

func TestDerivedIDsDoNotCollideAcrossKinds(t *testing.T) {
	copyID := CopyID("owner-id", "recipient")
	assignmentID := AssignmentID("owner-id", "recipient")
	if copyID == assignmentID {
		t.Fatalf("copy and assignment ids collided: %q", copyID)
	}
	if CopyID("owner-id", "recipient") != copyID {
		t.Fatalf("expected CopyID to be deterministic")
	}
	if AssignmentID("owner-id", "recipient") != assignmentID {
		t.Fatalf("expected AssignmentID to be deterministic")
	}
}
