package db

import (
	"time"

	"gorm.io/datatypes"
)

// Reminder statuses. The strings are wire-visible to the mini-program
// client, so they never change spelling.
const (
	StatusPending     = "pending"
	StatusSent        = "sent"
	StatusFailed      = "failed"
	StatusExpired     = "expired"
	StatusNoSubscribe = "no_subscribe"
)

// Assignment statuses.
const (
	AssignmentPending  = "pending"
	AssignmentAccepted = "accepted"
	AssignmentRejected = "rejected"
)

// Reminder is one copy of a reminder occurrence. The owner copy has
// CurrentHolder == Creator; every accepted share produces one more row with
// the same Creator and FireAtMillis but a different holder.
type Reminder struct {
	ID            string `gorm:"primaryKey;size:36"`
	CurrentHolder string `gorm:"not null;index"`
	Creator       string `gorm:"not null;index:idx_creator_fire"`
	Title         string `gorm:"not null"`
	Detail        string `gorm:"not null;default:''"`
	DisplayTime   string `gorm:"not null;default:''"`
	FireAtMillis  int64  `gorm:"not null;index:idx_creator_fire"`
	Completed     bool   `gorm:"not null;default:false"`
	Subscribed    bool   `gorm:"not null;default:false"`
	Status        string `gorm:"not null;default:pending"`
	Shared        bool   `gorm:"not null;default:false"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsOwnerCopy reports whether this row is the owner copy of its occurrence.
func (r Reminder) IsOwnerCopy() bool {
	return r.CurrentHolder == r.Creator
}

// ReminderAssignment records one recipient relationship for an owner
// reminder. Its ID is derived from (OwnerReminderID, Recipient), so the
// primary key doubles as the uniqueness constraint on the pair.
type ReminderAssignment struct {
	ID              string `gorm:"primaryKey;size:36"`
	OwnerReminderID string `gorm:"not null;index"`
	Creator         string `gorm:"not null"`
	Recipient       string `gorm:"not null;index"`
	Status          string `gorm:"not null;default:pending"`
	CreatedAt       time.Time
	AcceptedAt      *time.Time
}

// DeliveryLog records the outcome of one fire event. Per-recipient detail
// stays here and in logs; reminder status only carries the aggregate.
type DeliveryLog struct {
	ID         uint   `gorm:"primaryKey"`
	ReminderID string `gorm:"not null;index"`
	FiredAt    time.Time
	Recipients int            `gorm:"not null;default:0"`
	Succeeded  int            `gorm:"not null;default:0"`
	Failed     int            `gorm:"not null;default:0"`
	Outcome    string         `gorm:"not null;default:''"`
	Payload    datatypes.JSON `gorm:"not null"`
	CreatedAt  time.Time
}
