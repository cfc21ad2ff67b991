package main

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"ecmdash/internal/cases"
)

const casesTopic = "cases"

func (a *api) handleListCases(w http.ResponseWriter, r *http.Request) {
	list, err := a.store.ListCases(r.Context())
	if err != nil {
		a.log.Error("list cases", zap.Error(err))
		writeError(w, 500, "internal error")
		return
	}
	writeJSON(w, 200, map[string]any{"data": list})
}

func (a *api) handleGetCase(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	d, err := a.store.GetCase(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		writeError(w, 404, "case not found")
		return
	}
	if err != nil {
		a.log.Error("get case", zap.Int64("case_id", id), zap.Error(err))
		writeError(w, 500, "internal error")
		return
	}
	writeJSON(w, 200, d)
}

// checkCase applies the server-side rules shared by create and update.
func checkCase(name, manager string, start, end cases.Date, status cases.Status) string {
	switch {
	case strings.TrimSpace(name) == "" || strings.TrimSpace(manager) == "":
		return "Name and TeamManager are required."
	case start.IsZero() || end.IsZero():
		return "Start and End are required."
	case end.Before(start):
		return "End must not be before Start."
	case !status.Valid():
		return "Unknown status."
	}
	return ""
}

func (a *api) handleCreateCase(w http.ResponseWriter, r *http.Request) {
	var d cases.Draft
	if err := readJSON(w, r, &d); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	if d.Status == "" {
		d.Status = cases.StatusCreated
	}
	if msg := checkCase(d.Name, d.TeamManager, d.Start, d.End, d.Status); msg != "" {
		writeError(w, 400, msg)
		return
	}
	created, err := a.store.CreateCase(r.Context(), d)
	if err != nil {
		a.log.Error("create case", zap.Error(err))
		writeError(w, 500, "internal error")
		return
	}
	a.bus.Publish(casesTopic, Event{Type: "case.created", Entity: "case", CaseID: created.ID})
	writeJSON(w, 201, created)
}

func (a *api) handleUpdateCase(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	var d cases.Detail
	if err := readJSON(w, r, &d); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	if d.ID != 0 && d.ID != id {
		writeError(w, 400, "Case_id does not match path")
		return
	}
	if msg := checkCase(d.Name, d.TeamManager, d.Start, d.End, d.Status); msg != "" {
		writeError(w, 400, msg)
		return
	}
	updated, err := a.store.UpdateCase(r.Context(), id, d)
	if errors.Is(err, ErrNotFound) {
		writeError(w, 404, "case not found")
		return
	}
	if err != nil {
		a.log.Error("update case", zap.Int64("case_id", id), zap.Error(err))
		writeError(w, 500, "internal error")
		return
	}
	a.bus.Publish(casesTopic, Event{Type: "case.updated", Entity: "case", CaseID: id})
	writeJSON(w, 200, updated)
}

func (a *api) handleCaseEvents(w http.ResponseWriter, r *http.Request) {
	a.bus.ServeSSE(w, r, casesTopic)
}
