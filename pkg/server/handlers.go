package server

import (
	"encoding/json"
	"net/http"

	"github.com/smith3v/wx-reminder/pkg/logger"
	"github.com/smith3v/wx-reminder/pkg/reminder"
)

type createRequest struct {
	OpenID          string `json:"openid"`
	Title           string `json:"title"`
	Thing1          string `json:"thing1"`
	Thing4          string `json:"thing4"`
	Time            string `json:"time"`
	ReminderTime    int64  `json:"reminderTime"`
	EnableSubscribe bool   `json:"enableSubscribe"`
}

func (s *Server) handleCreateReminder(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &reminder.ValidationError{Field: "body"})
		return
	}
	title := req.Thing1
	if title == "" {
		title = req.Title
	}
	created, err := s.svc.Create(reminder.CreateParams{
		Creator:      identityOr(r, req.OpenID),
		Title:        title,
		Detail:       req.Thing4,
		DisplayTime:  req.Time,
		FireAtMillis: req.ReminderTime,
		Subscribed:   req.EnableSubscribe,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, map[string]any{"id": created.ID})
}

func (s *Server) handleListReminders(w http.ResponseWriter, r *http.Request) {
	openid := identity(r)
	if openid == "" {
		writeError(w, &reminder.ValidationError{Field: "openid"})
		return
	}
	reminders, err := s.svc.ListByHolder(openid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, toReminderList(reminders))
}

func (s *Server) handleListAssigned(w http.ResponseWriter, r *http.Request) {
	openid := identity(r)
	if openid == "" {
		writeError(w, &reminder.ValidationError{Field: "openid"})
		return
	}
	reminders, err := s.svc.ListAssigned(openid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, toReminderList(reminders))
}

func (s *Server) handleGetReminder(w http.ResponseWriter, r *http.Request) {
	rem, err := s.svc.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, toReminderJSON(rem))
}

type updateRequest struct {
	OpenID          *string `json:"openid"`
	Title           *string `json:"title"`
	Thing1          *string `json:"thing1"`
	Thing4          *string `json:"thing4"`
	Time            *string `json:"time"`
	ReminderTime    *int64  `json:"reminderTime"`
	EnableSubscribe *bool   `json:"enableSubscribe"`
}

func (s *Server) handleUpdateReminder(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &reminder.ValidationError{Field: "body"})
		return
	}
	requester := identityOrPtr(r, req.OpenID)
	title := req.Thing1
	if title == nil {
		title = req.Title
	}
	updated, err := s.svc.Update(r.PathValue("id"), requester, reminder.UpdateParams{
		Title:        title,
		Detail:       req.Thing4,
		DisplayTime:  req.Time,
		FireAtMillis: req.ReminderTime,
		Subscribed:   req.EnableSubscribe,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, toReminderJSON(updated))
}

func (s *Server) handleDeleteReminder(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Delete(r.PathValue("id"), identity(r)); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, nil)
}

type completeRequest struct {
	OpenID    string `json:"openid"`
	Completed bool   `json:"completed"`
}

func (s *Server) handleCompleteReminder(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &reminder.ValidationError{Field: "body"})
		return
	}
	if err := s.svc.SetCompleted(r.PathValue("id"), identityOr(r, req.OpenID), req.Completed); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, nil)
}

type shareRequest struct {
	OwnerOpenID string `json:"owner_openid"`
}

func (s *Server) handleShareReminder(w http.ResponseWriter, r *http.Request) {
	var req shareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &reminder.ValidationError{Field: "body"})
		return
	}
	ref, err := s.svc.Share(r.PathValue("id"), identityOr(r, req.OwnerOpenID))
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, map[string]any{"share_ref": ref})
}

type acceptRequest struct {
	AssignedOpenID string `json:"assigned_openid"`
	ShareRef       string `json:"share_ref"`
}

func (s *Server) handleAcceptReminder(w http.ResponseWriter, r *http.Request) {
	var req acceptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &reminder.ValidationError{Field: "body"})
		return
	}
	recipient := identityOr(r, req.AssignedOpenID)

	var res *reminder.AcceptResult
	var err error
	if req.ShareRef != "" {
		res, err = s.svc.AcceptRef(req.ShareRef, recipient)
	} else {
		res, err = s.svc.Accept(r.PathValue("id"), recipient)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	body := map[string]any{
		"reminder":        toReminderJSON(res.Copy),
		"alreadyAccepted": res.AlreadyAccepted,
	}
	writeSuccess(w, body)
}

type loginRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.wechat == nil {
		writeJSON(w, http.StatusNotImplemented, envelope{ErrCode: http.StatusNotImplemented, ErrMsg: "login requires the wechat channel"})
		return
	}
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeError(w, &reminder.ValidationError{Field: "code"})
		return
	}

	openid, sessionKey, err := s.wechat.Code2Session(r.Context(), req.Code)
	if err != nil {
		logger.Error("code2session failed", "error", err)
		writeJSON(w, http.StatusBadRequest, envelope{ErrCode: http.StatusBadRequest, ErrMsg: "failed to exchange code"})
		return
	}
	sessionToken, err := s.tokens.IssueSession(openid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, map[string]any{
		"openid":      openid,
		"session_key": sessionKey,
		"token":       sessionToken,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, map[string]any{"status": "healthy"})
}

// identityOrPtr is identityOr for optional body fields.
func identityOrPtr(r *http.Request, fallback *string) string {
	if fallback != nil {
		return identityOr(r, *fallback)
	}
	return identityOr(r, "")
}
