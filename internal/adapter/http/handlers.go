package http

import (
	"errors"
	"net/http"

	"github.com/Strob0t/sketchforge/internal/domain"
	"github.com/Strob0t/sketchforge/internal/domain/sketch"
	"github.com/Strob0t/sketchforge/internal/service"
)

// Handlers serves the editor hooks and the user-invocable actions.
type Handlers struct {
	Orchestrator *service.Orchestrator
	Provisioner  *service.Provisioner
	Scaffolder   *service.Scaffolder
}

type pathRequest struct {
	Path string `json:"path"`
}

type scaffoldRequest struct {
	Dir string `json:"dir"`
}

type scaffoldResponse struct {
	Dir     string `json:"dir"`
	Created bool   `json:"created"`
}

type rootResponse struct {
	Root string `json:"root"`
}

type submittedResponse struct {
	Path      string `json:"path"`
	AttemptID string `json:"attempt_id"`
}

// HandleSave accepts a save event. By default it waits for the attempt and returns
// its result; with ?async=true it returns 202 once the attempt has started.
// A save for a file that is still transpiling is rejected with 409.
func (h *Handlers) HandleSave(w http.ResponseWriter, r *http.Request) {
	ev, ok := readJSON[sketch.SaveEvent](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	if !requireField(w, ev.Path, "path") {
		return
	}

	task, err := h.Orchestrator.Submit(r.Context(), ev)
	if errors.Is(err, domain.ErrInFlight) {
		writeJSON(w, http.StatusConflict, sketch.Result{Path: ev.Path, Outcome: sketch.OutcomeCoalesced, Error: err.Error()})
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if r.URL.Query().Get("async") == "true" && task.AttemptID != "" {
		writeJSON(w, http.StatusAccepted, submittedResponse{Path: task.Path, AttemptID: task.AttemptID})
		return
	}

	res, err := task.Wait(r.Context())
	if err != nil && r.Context().Err() != nil {
		return // Client went away; the attempt keeps running.
	}
	writeJSON(w, http.StatusOK, res)
}

// SetActiveFile records the file the user switched to.
func (h *Handlers) SetActiveFile(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[pathRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	if !requireField(w, req.Path, "path") {
		return
	}
	h.Orchestrator.SetActiveFile(req.Path)
	w.WriteHeader(http.StatusNoContent)
}

// CurrentRoot returns the project root of the active file.
func (h *Handlers) CurrentRoot(w http.ResponseWriter, _ *http.Request) {
	root, ok := h.Orchestrator.CurrentRoot()
	if !ok {
		writeError(w, http.StatusNotFound, "no sketch project root for the active file")
		return
	}
	writeJSON(w, http.StatusOK, rootResponse{Root: root})
}

// FileStatus returns the transpile bookkeeping of ?path=.
func (h *Handlers) FileStatus(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if !requireField(w, path, "path") {
		return
	}
	writeJSON(w, http.StatusOK, h.Orchestrator.Status(path))
}

// Provision creates the assistant and vector store of the project holding path when missing.
func (h *Handlers) Provision(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[pathRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	if !requireField(w, req.Path, "path") {
		return
	}
	res, err := h.Provisioner.Provision(r.Context(), req.Path)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Resync replaces the project's sources in its vector store.
func (h *Handlers) Resync(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[pathRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	if !requireField(w, req.Path, "path") {
		return
	}
	res, err := h.Provisioner.Resync(r.Context(), req.Path)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Scaffold creates the sketch folder skeleton in dir.
func (h *Handlers) Scaffold(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[scaffoldRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	if !requireField(w, req.Dir, "dir") {
		return
	}
	created, err := h.Scaffolder.Scaffold(r.Context(), req.Dir)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scaffoldResponse{Dir: req.Dir, Created: created})
}
