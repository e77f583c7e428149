package db

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// idNamespace seeds every derived identity. Identities must be derivable
// from their inputs so that concurrent writers of the same logical record
// collide on the primary key instead of inserting duplicates.
var idNamespace = uuid.MustParse("8b9a54e2-4f0c-5b1d-9e3a-6d2c71540c8f")

// ReminderID derives the owner-copy identity from the creator and the
// creation instant. Edits never regenerate it.
func ReminderID(creator string, createdAt time.Time) string {
	return uuid.NewSHA1(idNamespace, []byte("reminder|"+creator+"|"+strconv.FormatInt(createdAt.UnixNano(), 10))).String()
}

// CopyID derives the identity of a recipient copy. Accepting the same share
// twice lands on the same row.
func CopyID(ownerReminderID, recipient string) string {
	return uuid.NewSHA1(idNamespace, []byte("copy|"+ownerReminderID+"|"+recipient)).String()
}

// AssignmentID derives the identity of a share assignment, one per
// (ownerReminderID, recipient) pair.
func AssignmentID(ownerReminderID, recipient string) string {
	return uuid.NewSHA1(idNamespace, []byte("assignment|"+ownerReminderID+"|"+recipient)).String()
}
