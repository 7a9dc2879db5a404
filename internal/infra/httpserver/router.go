package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	appdet "github.com/bryanwahyu/deepfake-detector/internal/application/detection"
	domain "github.com/bryanwahyu/deepfake-detector/internal/domain/detection"
	"github.com/bryanwahyu/deepfake-detector/internal/middleware"
)

// multipart overhead allowed on top of the file limit
const formOverhead = 1 << 20

// BlobSource serves object-reference previews kept in process memory.
type BlobSource interface {
	Open(key string) ([]byte, string, bool)
}

type Options struct {
	Blobs       BlobSource // nil when previews live in an external store
	Checkers    map[string]middleware.HealthChecker
	CORSOrigins []string
	APIKeys     map[string]string
	Limiter     *middleware.RateLimiter
}

type Router struct {
	svc      *appdet.Service
	blobs    BlobSource
	upgrader websocket.Upgrader
}

func NewRouter(svc *appdet.Service, opts Options) http.Handler {
	r := &Router{
		svc:   svc,
		blobs: opts.Blobs,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// origin policy is enforced by CORS + API keys
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	mux := chi.NewRouter()
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	mux.Use(middleware.APIKeyAuth(opts.APIKeys))
	mux.Use(middleware.RateLimitMiddleware(opts.Limiter))

	health := middleware.Health{Checkers: opts.Checkers, Sessions: svc.ActiveSessions}
	mux.Get("/health", health.Handler)
	mux.Get("/livez", middleware.LivenessHandler)
	mux.Get("/readyz", health.Ready)
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/v1", func(rt chi.Router) {
		rt.Get("/accepted", r.wrap(r.handleAccepted))
		rt.Get("/history", r.wrap(r.handleHistory))
		rt.Get("/history/{id}", r.wrap(r.handleHistoryRecord))
		rt.Get("/blobs/{key}", r.wrap(r.handleBlob))

		rt.Post("/sessions", r.wrap(r.handleCreateSession))
		rt.Route("/sessions/{id}", func(s chi.Router) {
			s.Get("/", r.wrap(r.handleGetSession))
			s.Delete("/", r.wrap(r.handleCloseSession))
			s.Post("/file", r.wrap(r.handleUpload))
			s.Post("/analyze", r.wrap(r.handleAnalyze))
			s.Post("/reset", r.wrap(r.handleReset))
			s.Post("/playback", r.wrap(r.handlePlayback))
			s.Post("/display", r.wrap(r.handleDisplay))
			s.Get("/events", r.handleEvents)
		})
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// badRequest marks client input errors.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

func badRequestf(format string, args ...any) error {
	return badRequest{msg: fmt.Sprintf(format, args...)}
}

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			status := statusFor(err)
			if status >= 500 {
				log.Printf("handler error method=%s path=%s err=%v", req.Method, req.URL.Path, err)
			}
			writeJSON(w, status, map[string]string{"error": err.Error()})
		}
	}
}

func statusFor(err error) int {
	var unsupported *domain.UnsupportedFileError
	var tooLarge *domain.FileTooLargeError
	var maxBytes *http.MaxBytesError
	var bad badRequest
	switch {
	case errors.As(err, &unsupported):
		return http.StatusUnsupportedMediaType
	case errors.As(err, &tooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrWrongMediaKind),
		errors.Is(err, domain.ErrNoResult),
		errors.Is(err, domain.ErrNoFile):
		return http.StatusConflict
	case errors.Is(err, domain.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrMultipleFiles), errors.As(err, &bad):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func sessionID(req *http.Request) (domain.SessionID, error) {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateSessionID(id); err != nil {
		// malformed ids can never exist
		return "", domain.ErrSessionNotFound
	}
	return domain.SessionID(id), nil
}

// GET /v1/accepted
func (r *Router) handleAccepted(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, http.StatusOK, map[string]any{
		"types":          domain.AcceptedTypes(),
		"max_size_bytes": domain.MaxFileSize,
	})
}

// POST /v1/sessions
func (r *Router) handleCreateSession(w http.ResponseWriter, req *http.Request) error {
	snap, err := r.svc.CreateSession(req.Context())
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, snap)
}

// GET /v1/sessions/{id}
func (r *Router) handleGetSession(w http.ResponseWriter, req *http.Request) error {
	id, err := sessionID(req)
	if err != nil {
		return err
	}
	snap, err := r.svc.Snapshot(req.Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, snap)
}

// DELETE /v1/sessions/{id}
func (r *Router) handleCloseSession(w http.ResponseWriter, req *http.Request) error {
	id, err := sessionID(req)
	if err != nil {
		return err
	}
	if err := r.svc.CloseSession(req.Context(), id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// POST /v1/sessions/{id}/file  (multipart, field "file", exactly one part)
func (r *Router) handleUpload(w http.ResponseWriter, req *http.Request) error {
	id, err := sessionID(req)
	if err != nil {
		return err
	}
	if _, err := r.svc.Controller(id); err != nil {
		return err
	}

	req.Body = http.MaxBytesReader(w, req.Body, domain.MaxFileSize+formOverhead)
	mr, err := req.MultipartReader()
	if err != nil {
		return badRequestf("expected multipart/form-data: %v", err)
	}

	var file *domain.SubmittedFile
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			var maxBytes *http.MaxBytesError
			if errors.As(err, &maxBytes) {
				return err
			}
			return badRequestf("read multipart: %v", err)
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}
		if file != nil {
			part.Close()
			return domain.ErrMultipleFiles
		}
		f, err := readPart(part)
		part.Close()
		if err != nil {
			return err
		}
		file = f
		if file.Size > domain.MaxFileSize {
			// the rest of the body is not worth reading
			break
		}
	}
	if file == nil {
		return badRequestf("missing file field")
	}

	snap, err := r.svc.Intake(req.Context(), id, *file)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, snap)
}

// readPart buffers one part. A part past MaxFileSize is returned without content
// and with its size capped at MaxFileSize+1; intake rejects it.
func readPart(part *multipart.Part) (*domain.SubmittedFile, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(part, domain.MaxFileSize+1))
	if err != nil {
		return nil, err
	}
	f := &domain.SubmittedFile{
		Name:     middleware.SanitizeFileName(part.FileName()),
		MIMEType: part.Header.Get("Content-Type"),
		Size:     n,
	}
	if n > domain.MaxFileSize {
		return f, nil
	}
	if f.MIMEType == "" || f.MIMEType == "application/octet-stream" {
		f.MIMEType = domain.SniffMIME(buf.Bytes())
	}
	f.Content = buf.Bytes()
	return f, nil
}

// POST /v1/sessions/{id}/analyze
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	id, err := sessionID(req)
	if err != nil {
		return err
	}
	snap, _, err := r.svc.StartAnalysis(req.Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusAccepted, snap)
}

// POST /v1/sessions/{id}/reset
func (r *Router) handleReset(w http.ResponseWriter, req *http.Request) error {
	id, err := sessionID(req)
	if err != nil {
		return err
	}
	snap, err := r.svc.Reset(req.Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, snap)
}

type controlBody struct {
	Action string   `json:"action"`
	Value  *float64 `json:"value,omitempty"`
	Muted  *bool    `json:"muted,omitempty"`
	On     *bool    `json:"on,omitempty"`
	Reason string   `json:"reason,omitempty"`
}

func decodeControl(w http.ResponseWriter, req *http.Request) (controlBody, error) {
	var body controlBody
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, 4096))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		return body, badRequestf("invalid body: %v", err)
	}
	return body, nil
}

func (b controlBody) value() (float64, error) {
	if b.Value == nil {
		return 0, badRequestf("action %q needs value", b.Action)
	}
	return *b.Value, nil
}

// POST /v1/sessions/{id}/playback
// Body: {"action": "play|pause|seek|end|duration|mute|error", "value": 1.5, "muted": true, "reason": "..."}
func (r *Router) handlePlayback(w http.ResponseWriter, req *http.Request) error {
	id, err := sessionID(req)
	if err != nil {
		return err
	}
	ctrl, err := r.svc.Controller(id)
	if err != nil {
		return err
	}
	body, err := decodeControl(w, req)
	if err != nil {
		return err
	}

	switch body.Action {
	case "play":
		err = ctrl.Play()
	case "pause":
		err = ctrl.Pause()
	case "end":
		err = ctrl.EndPlayback()
	case "seek":
		var v float64
		if v, err = body.value(); err == nil {
			err = ctrl.Seek(v)
		}
	case "duration":
		var v float64
		if v, err = body.value(); err == nil {
			err = ctrl.SetDuration(v)
		}
	case "mute":
		if body.Muted == nil {
			return badRequestf("action mute needs muted")
		}
		err = ctrl.SetMuted(*body.Muted)
	case "error":
		err = ctrl.PlaybackFailed(middleware.SanitizeString(body.Reason))
	default:
		return badRequestf("unknown playback action %q", body.Action)
	}
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

// POST /v1/sessions/{id}/display
// Body: {"action": "zoom_in|zoom_out|zoom|overlay", "value": 1.3, "on": false}
func (r *Router) handleDisplay(w http.ResponseWriter, req *http.Request) error {
	id, err := sessionID(req)
	if err != nil {
		return err
	}
	ctrl, err := r.svc.Controller(id)
	if err != nil {
		return err
	}
	body, err := decodeControl(w, req)
	if err != nil {
		return err
	}

	switch body.Action {
	case "zoom_in":
		err = ctrl.ZoomIn()
	case "zoom_out":
		err = ctrl.ZoomOut()
	case "zoom":
		var v float64
		if v, err = body.value(); err == nil {
			err = ctrl.SetZoom(v)
		}
	case "overlay":
		if body.On == nil {
			return badRequestf("action overlay needs on")
		}
		err = ctrl.SetOverlay(*body.On)
	default:
		return badRequestf("unknown display action %q", body.Action)
	}
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

// GET /v1/blobs/{key}
func (r *Router) handleBlob(w http.ResponseWriter, req *http.Request) error {
	key := chi.URLParam(req, "key")
	if r.blobs == nil || middleware.ValidateBlobKey(key) != nil {
		http.NotFound(w, req)
		return nil
	}
	data, contentType, ok := r.blobs.Open(key)
	if !ok {
		http.NotFound(w, req)
		return nil
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, no-store")
	// ServeContent handles Range requests, which audio elements rely on for seeking
	http.ServeContent(w, req, key, time.Time{}, bytes.NewReader(data))
	return nil
}

// GET /v1/history?limit=20
func (r *Router) handleHistory(w http.ResponseWriter, req *http.Request) error {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	list, err := r.svc.History(req.Context(), middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// GET /v1/history/{id}
func (r *Router) handleHistoryRecord(w http.ResponseWriter, req *http.Request) error {
	rec, err := r.svc.HistoryRecord(req.Context(), chi.URLParam(req, "id"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, rec)
}

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// GET /v1/sessions/{id}/events (websocket)
// The first message is a "snapshot" event with the current state.
func (r *Router) handleEvents(w http.ResponseWriter, req *http.Request) {
	id, err := sessionID(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	ctrl, err := r.svc.Controller(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		// Upgrade already replied
		log.Printf("websocket upgrade failed session=%s err=%v", id, err)
		return
	}
	defer conn.Close()

	events, unsubscribe := ctrl.Subscribe(64)
	defer unsubscribe()

	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()
	go readPump(conn, cancel)

	first := appdet.Event{Type: appdet.EventSnapshot, At: time.Now(), Snapshot: ctrl.StreamSnapshot()}
	if err := writeEvent(conn, first); err != nil {
		return
	}

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"))
				return
			}
			if err := writeEvent(conn, ev); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, ev appdet.Event) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(ev)
}

// readPump drains client frames so control messages are processed, and
// cancels the stream when the client goes away.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
