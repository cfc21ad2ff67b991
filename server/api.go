package main

import (
	"net/http"
	"time"
)

func (a *api) routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/login", a.withRateLimit("auth", 30, time.Minute, a.handleLogin))
	mux.HandleFunc("GET /api/auth/protected-route", a.requireAuth(a.handleProtected))
	mux.HandleFunc("POST /register", a.withRateLimit("register", 20, time.Minute, a.handleRegister))

	mux.HandleFunc("GET /api/health", a.handleHealth)

	mux.HandleFunc("GET /api/cases", a.requireAuth(a.handleListCases))
	mux.HandleFunc("POST /api/cases", a.requireAdmin(a.handleCreateCase))
	mux.HandleFunc("GET /api/cases/events", a.requireAuth(a.handleCaseEvents))
	mux.HandleFunc("GET /api/cases/{id}", a.requireAuth(a.handleGetCase))
	mux.HandleFunc("PATCH /api/cases/{id}", a.requireAdmin(a.handleUpdateCase))
}
