package main

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"ecmdash/internal/identity"
)

func (a *api) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FullName        string `json:"full_name"`
		Email           string `json:"email"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirm_password"`
		Role            string `json:"role"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	req.FullName, req.Email = strings.TrimSpace(req.FullName), strings.TrimSpace(req.Email)
	role := identity.ParseRole(req.Role)
	switch {
	case req.FullName == "" || req.Email == "" || req.Password == "" || req.ConfirmPassword == "":
		writeError(w, 400, "All fields are required.")
		return
	case req.Password != req.ConfirmPassword:
		writeError(w, 400, "Passwords do not match.")
		return
	case len(req.Password) < 6:
		writeError(w, 400, "Password must be at least 6 characters long.")
		return
	case role == identity.RoleUnknown:
		writeError(w, 400, "Unknown role.")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		a.log.Error("bcrypt", zap.Error(err))
		writeError(w, 500, "internal error")
		return
	}
	u, err := a.store.CreateUser(r.Context(), req.FullName, req.Email, string(hash), role.String())
	if errors.Is(err, ErrEmailTaken) {
		writeError(w, 409, "Email is already registered.")
		return
	}
	if err != nil {
		a.log.Error("register", zap.Error(err))
		writeError(w, 500, "cannot create user")
		return
	}
	a.log.Info("user registered", zap.Int64("user_id", u.ID), zap.String("role", u.Role))
	writeJSON(w, 201, map[string]any{"ok": true, "user": u})
}

func (a *api) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(w, r, &req); err != nil || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, 400, "Email and password are required.")
		return
	}
	u, hash, err := a.store.UserCreds(r.Context(), strings.TrimSpace(req.Email))
	if err != nil && !errors.Is(err, ErrNotFound) {
		a.log.Error("login lookup", zap.Error(err))
		writeError(w, 500, "internal error")
		return
	}
	if err != nil || bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
		writeError(w, 401, "Invalid email or password.")
		return
	}
	token, err := a.tokens.Issue(u)
	if err != nil {
		a.log.Error("issue token", zap.Error(err))
		writeError(w, 500, "internal error")
		return
	}
	writeJSON(w, 200, map[string]any{"token": token})
}

func (a *api) handleProtected(w http.ResponseWriter, r *http.Request) {
	c, _ := claimsFrom(r.Context())
	writeJSON(w, 200, map[string]any{"ok": true, "user": map[string]string{"email": c.Email, "role": c.Role}})
}
