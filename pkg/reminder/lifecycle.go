package reminder

import (
	"time"

	"github.com/smith3v/wx-reminder/pkg/db"
)

// EvaluateStatus computes the status a reminder copy should carry given its
// subscription flag and fire instant. Delivery outcomes (sent/failed) are
// written by the delivery path only; every other transition routes through
// here.
func EvaluateStatus(subscribed bool, fireAtMillis int64, now time.Time) string {
	if subscribed && fireAtMillis > 0 {
		return db.StatusPending
	}
	if fireAtMillis > 0 && fireAtMillis <= now.UnixMilli() {
		return db.StatusExpired
	}
	return db.StatusNoSubscribe
}
