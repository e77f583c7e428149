package reminder

import "github.com/smith3v/wx-reminder/pkg/db"

// MaxFieldRunes is the subscribe-message template limit per field. Values
// are clipped when rendered into a payload, never in storage.
const MaxFieldRunes = 20

func clip(s string) string {
	runes := []rune(s)
	if len(runes) <= MaxFieldRunes {
		return s
	}
	return string(runes[:MaxFieldRunes])
}

// buildPayload renders a reminder's current content into template fields.
// Field names follow the mini-program template: thing1 is the title, thing4
// the detail, time2 the display time.
func buildPayload(r *db.Reminder) map[string]string {
	return map[string]string{
		"thing1": clip(r.Title),
		"thing4": clip(r.Detail),
		"time2":  clip(r.DisplayTime),
	}
}
