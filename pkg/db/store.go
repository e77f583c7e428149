package db

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotInitialized is returned when the store is used before InitDB.
var ErrNotInitialized = errors.New("database not initialized")

func CreateReminder(r *Reminder) error {
	if DB == nil {
		return ErrNotInitialized
	}
	return DB.Create(r).Error
}

// GetReminder returns nil, nil when the id is unknown.
func GetReminder(id string) (*Reminder, error) {
	if DB == nil {
		return nil, ErrNotInitialized
	}
	var r Reminder
	err := DB.Where("id = ?", id).First(&r).Error
	if err == nil {
		return &r, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, err
}

// UpdateReminderFields applies a partial field set to one row in a single
// statement.
func UpdateReminderFields(id string, fields map[string]any) error {
	if DB == nil {
		return ErrNotInitialized
	}
	if len(fields) == 0 {
		return nil
	}
	return DB.Model(&Reminder{}).Where("id = ?", id).Updates(fields).Error
}

func DeleteReminder(id string) error {
	if DB == nil {
		return ErrNotInitialized
	}
	return DB.Where("id = ?", id).Delete(&Reminder{}).Error
}

func ListByHolder(holder string) ([]Reminder, error) {
	if DB == nil {
		return nil, ErrNotInitialized
	}
	var reminders []Reminder
	err := DB.Where("current_holder = ?", holder).
		Order("fire_at_millis ASC, id ASC").
		Find(&reminders).Error
	return reminders, err
}

// ListByOwnerAndFireTime returns every copy of one logical occurrence. The
// (creator, fireAtMillis) tuple is the durable correlation key across the
// owner copy and all recipient copies; ids are never assumed equal.
func ListByOwnerAndFireTime(creator string, fireAtMillis int64) ([]Reminder, error) {
	if DB == nil {
		return nil, ErrNotInitialized
	}
	var reminders []Reminder
	err := DB.Where("creator = ? AND fire_at_millis = ?", creator, fireAtMillis).
		Order("id ASC").
		Find(&reminders).Error
	return reminders, err
}

// ListAssignedTo returns the recipient copies held by a user.
func ListAssignedTo(recipient string) ([]Reminder, error) {
	if DB == nil {
		return nil, ErrNotInitialized
	}
	var reminders []Reminder
	err := DB.Where("current_holder = ? AND creator <> ?", recipient, recipient).
		Order("fire_at_millis ASC, id ASC").
		Find(&reminders).Error
	return reminders, err
}

// ListPendingSubscribed feeds the startup re-arm pass.
func ListPendingSubscribed() ([]Reminder, error) {
	if DB == nil {
		return nil, ErrNotInitialized
	}
	var reminders []Reminder
	err := DB.Where("status = ? AND subscribed = ?", StatusPending, true).
		Find(&reminders).Error
	return reminders, err
}

// GetAssignment returns nil, nil when the id is unknown.
func GetAssignment(id string) (*ReminderAssignment, error) {
	if DB == nil {
		return nil, ErrNotInitialized
	}
	var a ReminderAssignment
	err := DB.Where("id = ?", id).First(&a).Error
	if err == nil {
		return &a, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, err
}

// UpsertAssignment creates or replaces the assignment row for its
// deterministic id. Re-sharing or re-accepting mutates in place.
func UpsertAssignment(a *ReminderAssignment) error {
	if a == nil || DB == nil {
		return ErrNotInitialized
	}
	return DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(a).Error
}

func ListAcceptedAssignments(ownerReminderID string) ([]ReminderAssignment, error) {
	if DB == nil {
		return nil, ErrNotInitialized
	}
	var assignments []ReminderAssignment
	err := DB.Where("owner_reminder_id = ? AND status = ?", ownerReminderID, AssignmentAccepted).
		Order("recipient ASC").
		Find(&assignments).Error
	return assignments, err
}

func CreateDeliveryLog(l *DeliveryLog) error {
	if l == nil || DB == nil {
		return ErrNotInitialized
	}
	return DB.Create(l).Error
}
