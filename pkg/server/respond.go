package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/smith3v/wx-reminder/pkg/db"
	"github.com/smith3v/wx-reminder/pkg/logger"
	"github.com/smith3v/wx-reminder/pkg/reminder"
)

// envelope is the response shape the mini-program client expects.
type envelope struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func writeSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{ErrCode: 0, ErrMsg: "success", Data: data})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var ve *reminder.ValidationError
	switch {
	case errors.As(err, &ve):
		status = http.StatusBadRequest
	case errors.Is(err, reminder.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, reminder.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, reminder.ErrInvalidOperation):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, envelope{ErrCode: status, ErrMsg: err.Error()})
}

// reminderJSON renders a reminder row with the original API's field names.
type reminderJSON struct {
	ID              string `json:"id"`
	OpenID          string `json:"openid"`
	Creator         string `json:"creator"`
	Title           string `json:"thing1"`
	Detail          string `json:"thing4"`
	DisplayTime     string `json:"time"`
	ReminderTime    int64  `json:"reminderTime"`
	EnableSubscribe bool   `json:"enableSubscribe"`
	Completed       bool   `json:"completed"`
	Status          string `json:"status"`
	Shared          bool   `json:"shared"`
	CreateTime      string `json:"createTime"`
}

func toReminderJSON(r *db.Reminder) reminderJSON {
	return reminderJSON{
		ID:              r.ID,
		OpenID:          r.CurrentHolder,
		Creator:         r.Creator,
		Title:           r.Title,
		Detail:          r.Detail,
		DisplayTime:     r.DisplayTime,
		ReminderTime:    r.FireAtMillis,
		EnableSubscribe: r.Subscribed,
		Completed:       r.Completed,
		Status:          r.Status,
		Shared:          r.Shared,
		CreateTime:      r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

func toReminderList(rs []db.Reminder) []reminderJSON {
	out := make([]reminderJSON, 0, len(rs))
	for i := range rs {
		out = append(out, toReminderJSON(&rs[i]))
	}
	return out
}
