// Package server exposes the reminder service over the mini-program's REST
// API. The core never learns about HTTP; everything here translates
// requests into service calls and service errors into the errcode envelope.
package server

import (
	"net/http"

	"github.com/smith3v/wx-reminder/pkg/push"
	"github.com/smith3v/wx-reminder/pkg/reminder"
	"github.com/smith3v/wx-reminder/pkg/token"
)

type Server struct {
	svc    *reminder.Service
	tokens *token.Manager
	wechat *push.WeChatSender // nil when the push channel is not wechat; login is disabled then
}

func New(svc *reminder.Service, tokens *token.Manager, wechat *push.WeChatSender) *Server {
	return &Server{svc: svc, tokens: tokens, wechat: wechat}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/reminder", s.handleCreateReminder)
	mux.HandleFunc("GET /api/reminders", s.handleListReminders)
	mux.HandleFunc("GET /api/reminders/assigned", s.handleListAssigned)
	mux.HandleFunc("GET /api/reminder/{id}", s.handleGetReminder)
	mux.HandleFunc("PUT /api/reminder/{id}", s.handleUpdateReminder)
	mux.HandleFunc("DELETE /api/reminder/{id}", s.handleDeleteReminder)
	mux.HandleFunc("PUT /api/reminder/{id}/complete", s.handleCompleteReminder)
	mux.HandleFunc("POST /api/reminder/{id}/share", s.handleShareReminder)
	mux.HandleFunc("POST /api/reminder/{id}/accept", s.handleAcceptReminder)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("GET /api/health", s.handleHealth)

	return corsMiddleware(authMiddleware(s.tokens, mux))
}
