package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytaudio/internal/models"
	"github.com/desertthunder/ytaudio/internal/shared"
	"github.com/desertthunder/ytaudio/internal/tasks"
)

const maxCreateBody = 64 << 10

// CreateJobRequest is the body of POST /create-job.
type CreateJobRequest struct {
	URL string `json:"url"`
}

// CreateJobResponse acknowledges an accepted job.
type CreateJobResponse struct {
	Success bool   `json:"success"`
	File    string `json:"file"`
	Path    string `json:"path"`
	Status  string `json:"status"`
}

// API serves job creation, status, streaming and library requests.
type API struct {
	jobs        JobStore
	library     LibraryReader
	dispatcher  Dispatcher
	resolver    *Resolver
	audioFormat string
	logger      *log.Logger
}

// NewAPI wires the handlers to deps.
func NewAPI(deps Deps) *API {
	format := deps.AudioFormat
	if format == "" {
		format = "mp3"
	}
	logger := deps.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &API{
		jobs:        deps.Jobs,
		library:     deps.Library,
		dispatcher:  deps.Dispatcher,
		resolver:    NewResolver(deps.Jobs, deps.Library, deps.Store, deps.TempDir),
		audioFormat: format,
		logger:      logger,
	}
}

// Register adds every API route, including the /api aliases, to router.
func (a *API) Register(router Router) {
	router.Handle(http.MethodPost, "/create-job", http.HandlerFunc(a.CreateJob))
	router.Handle(http.MethodGet, "/status/{filename}", http.HandlerFunc(a.Status))
	router.Handle(http.MethodGet, "/stream/temp/{filename}", http.HandlerFunc(a.StreamTemp))
	router.Handle(http.MethodGet, "/stream/permanent/{filename}", http.HandlerFunc(a.StreamPermanent))
	router.Handle(http.MethodGet, "/stream/{filename}", http.HandlerFunc(a.Stream))
	router.Handle(http.MethodGet, "/library", http.HandlerFunc(a.Library))

	router.Handle(http.MethodPost, "/api/convert-mp3", http.HandlerFunc(a.CreateJob))
	router.Handle(http.MethodGet, "/api/status/{filename}", http.HandlerFunc(a.Status))
	router.Handle(http.MethodGet, "/api/temp/{filename}", http.HandlerFunc(a.StreamTemp))
	router.Handle(http.MethodGet, "/api/files/{filename}", http.HandlerFunc(a.StreamPermanent))
	router.Handle(http.MethodGet, "/api/songs", http.HandlerFunc(a.Library))
}

// CreateJob records a starting job, queues it and answers 202 without waiting for any conversion step.
func (a *API) CreateJob(w http.ResponseWriter, r *http.Request) {
	var body CreateJobRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxCreateBody)).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	sourceURL := strings.TrimSpace(body.URL)
	if sourceURL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if !validSourceURL(sourceURL) {
		writeError(w, http.StatusBadRequest, "url must be an absolute http(s) URL")
		return
	}

	filename := shared.GenerateFilename(a.audioFormat)
	if err := a.jobs.Create(models.NewJob(filename, sourceURL)); err != nil {
		a.logger.Error("failed to create job", "filename", filename, "error", err)
		writeErr(w, err)
		return
	}

	if err := a.dispatcher.Submit(tasks.Request{Filename: filename, SourceURL: sourceURL}); err != nil {
		a.logger.Warn("job rejected", "filename", filename, "error", err)
		if terr := a.jobs.Transition(filename, models.PhaseStarting, models.PhaseFailed, err.Error()); terr != nil {
			a.logger.Error("failed to record rejected job", "filename", filename, "error", terr)
		}
		writeErr(w, err)
		return
	}

	a.logger.Info("job accepted", "filename", filename, "url", sourceURL)
	writeJSON(w, http.StatusAccepted, CreateJobResponse{
		Success: true,
		File:    filename,
		Path:    "/stream/" + filename,
		Status:  "processing",
	})
}

// Status returns the job projection, or {"phase":"pending"} when no job row exists.
func (a *API) Status(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")
	if err := shared.ValidateFilename(filename); err != nil {
		writeErr(w, err)
		return
	}

	job, err := a.jobs.Get(filename)
	if errors.Is(err, shared.ErrNotFound) {
		writeJSON(w, http.StatusOK, models.PendingJobView())
		return
	}
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job.View())
}

// StreamTemp serves the transient file only.
func (a *API) StreamTemp(w http.ResponseWriter, r *http.Request) {
	stream, err := a.resolver.OpenTemp(r.Context(), r.PathValue("filename"))
	a.serve(w, r, stream, err)
}

// StreamPermanent serves the blob store object only.
func (a *API) StreamPermanent(w http.ResponseWriter, r *http.Request) {
	stream, err := a.resolver.OpenPermanent(r.Context(), r.PathValue("filename"))
	a.serve(w, r, stream, err)
}

// Stream serves from whichever source the job's current phase allows.
func (a *API) Stream(w http.ResponseWriter, r *http.Request) {
	stream, err := a.resolver.Resolve(r.Context(), r.PathValue("filename"))
	a.serve(w, r, stream, err)
}

// Library lists every library entry, newest first.
func (a *API) Library(w http.ResponseWriter, r *http.Request) {
	entries, err := a.library.List(nil)
	if err != nil {
		a.logger.Error("failed to list library", "error", err)
		writeErr(w, err)
		return
	}

	views := make([]models.LibraryEntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, e.View())
	}
	writeJSON(w, http.StatusOK, views)
}

// serve writes stream to w. Seekable bodies go through [http.ServeContent] for range support.
func (a *API) serve(w http.ResponseWriter, r *http.Request, stream *Stream, err error) {
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) && !errors.Is(err, shared.ErrInvalidInput) {
			a.logger.Error("failed to open stream", "path", r.URL.Path, "error", err)
		}
		writeErr(w, err)
		return
	}
	defer stream.Body.Close()

	w.Header().Set("Content-Type", stream.ContentType)
	w.Header().Set("X-Audio-Source", string(stream.Source))

	if rs, ok := stream.Body.(io.ReadSeeker); ok {
		http.ServeContent(w, r, stream.Filename, stream.ModTime, rs)
		return
	}

	w.Header().Set("Content-Length", strconv.FormatInt(stream.Size, 10))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, stream.Body); err != nil {
		a.logger.Warn("stream interrupted", "filename", stream.Filename, "error", err)
	}
}

// HealthHandler reports liveness and worker pool depth.
type HealthHandler struct {
	dispatcher Dispatcher
}

// NewHealthHandler creates a [HealthHandler].
func NewHealthHandler(d Dispatcher) *HealthHandler {
	return &HealthHandler{dispatcher: d}
}

// Routes implements [Handler].
func (h *HealthHandler) Routes() []string {
	return []string{"/healthz"}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	payload := struct {
		Status string `json:"status"`
		tasks.Stats
	}{Status: "ok"}
	if h.dispatcher != nil {
		payload.Stats = h.dispatcher.Stats()
	}
	writeJSON(w, http.StatusOK, payload)
}

func validSourceURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeErr maps sentinel errors onto status codes.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrMissingArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, shared.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, shared.ErrQueueFull), errors.Is(err, shared.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
