package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/EndeeLabs/endee-web-ui/internal/auth"
	"github.com/EndeeLabs/endee-web-ui/internal/controller"
	"github.com/EndeeLabs/endee-web-ui/internal/forms"
	"github.com/EndeeLabs/endee-web-ui/internal/session"
)

const (
	// SessionCookie identifies the console session of a browser
	SessionCookie = "endee_console_session"

	maxBodyBytes = 16 << 20
)

type sessionKey struct{}

func withSession(ctx context.Context, s *session.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func sessionFrom(ctx context.Context) *session.Session {
	s, _ := ctx.Value(sessionKey{}).(*session.Session)
	return s
}

// envelope is the body of every console response.
type envelope struct {
	Status        any              `json:"status,omitempty"`
	State         any              `json:"state,omitempty"`
	Session       sessionView      `json:"session"`
	Notifications []session.Notice `json:"notifications"`
}

type sessionView struct {
	Authenticated bool          `json:"authenticated"`
	AuthPrompt    bool          `json:"auth_prompt"`
	Theme         session.Theme `json:"theme"`
}

type consoleState struct {
	Indexes controller.IndexesState `json:"indexes"`
	Search  controller.SearchState  `json:"search"`
	Vectors controller.VectorsState `json:"vectors"`
	Backups controller.BackupsState `json:"backups"`
}

type consoleHandler struct {
	sessions *session.Registry
	tickets  *auth.TicketManager
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func newConsoleHandler(sessions *session.Registry, tickets *auth.TicketManager, allowedOrigins []string, logger *slog.Logger) *consoleHandler {
	return &consoleHandler{
		sessions: sessions,
		tickets:  tickets,
		logger:   logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || originAllowed(allowedOrigins, origin)
			},
		},
	}
}

func (h *consoleHandler) routes(r chi.Router) {
	r.Use(h.sessionMiddleware)

	r.Get("/state", h.state)

	r.Get("/session", h.getSession)
	r.Post("/session", h.setToken)
	r.Delete("/session", h.clearToken)
	r.Post("/session/prompt", h.openPrompt)
	r.Delete("/session/prompt", h.dismissPrompt)
	r.Put("/theme", h.setTheme)
	r.Delete("/notifications/{id}", h.dismissNotice)

	r.Get("/indexes", h.listIndexes)
	r.Post("/indexes", h.createIndex)
	r.Route("/indexes/{name}", func(r chi.Router) {
		r.Get("/", h.indexDetail)
		r.Get("/meta", h.indexMeta)
		r.Post("/delete/{action}", h.deleteIndex)
		r.Post("/search", h.search)
		r.Post("/vectors", h.insertVectors)
		r.Post("/vectors/delete-by-filter/{action}", h.deleteByFilter)
		r.Get("/vectors/{id}", h.getVector)
		r.Delete("/vectors/{id}", h.deleteVector)
		r.Post("/backups", h.createBackup)
	})

	r.Get("/backups", h.listBackups)
	r.Post("/backups/upload", h.uploadBackup)
	r.Get("/backups/jobs", h.listJobs)
	r.Get("/backups/jobs/ws", h.jobsStream)
	r.Route("/backups/{name}", func(r chi.Router) {
		r.Post("/restore/{action}", h.restoreBackup)
		r.Post("/delete/{action}", h.deleteBackup)
		r.Post("/download-link", h.downloadLink)
		r.Get("/download", h.download)
	})
}

// sessionMiddleware opens the caller's session, seeding a new one from the
// token and theme cookies. An explicit Authorization header replaces the
// session token.
func (h *consoleHandler) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if c, err := r.Cookie(SessionCookie); err == nil {
			id = c.Value
		}

		var seed session.Seed
		if token, ok := auth.TokenFromContext(r.Context()); ok {
			seed.Token = token
		}
		if c, err := r.Cookie(session.KeyTheme); err == nil {
			seed.Theme = c.Value
		}

		sess, err := h.sessions.Open(r.Context(), id, seed)
		if err != nil {
			h.logger.Error("failed to open session", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to open session"})
			return
		}
		if sess.ID != id {
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    sess.ID,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		if r.Header.Get(auth.AuthorizationHeader) != "" {
			if token := auth.TokenFromRequest(r); token != sess.Auth.Token() {
				if err := sess.Auth.SetToken(r.Context(), token); err != nil {
					h.logger.Warn("failed to adopt request token", "error", err)
				}
			}
		}

		next.ServeHTTP(w, r.WithContext(withSession(r.Context(), sess)))
	})
}

// respond writes the envelope and mirrors the persisted token and theme into
// their cookies, so a cleared token also leaves the browser.
func (h *consoleHandler) respond(w http.ResponseWriter, r *http.Request, code int, status, state any) {
	sess := sessionFrom(r.Context())

	token := sess.Auth.Token()
	if token != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     auth.TokenCookie,
			Value:    token,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	} else if _, err := r.Cookie(auth.TokenCookie); err == nil {
		http.SetCookie(w, &http.Cookie{Name: auth.TokenCookie, Path: "/", MaxAge: -1})
	}
	http.SetCookie(w, &http.Cookie{
		Name:     session.KeyTheme,
		Value:    string(sess.Theme()),
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, code, envelope{
		Status: status,
		State:  state,
		Session: sessionView{
			Authenticated: sess.Auth.Authenticated(),
			AuthPrompt:    sess.Auth.PromptOpen(),
			Theme:         sess.Theme(),
		},
		Notifications: sess.Notices.Pending(),
	})
}

func (h *consoleHandler) fail(w http.ResponseWriter, r *http.Request, code int, msg string) {
	h.respond(w, r, code, controller.Failed[struct{}](msg), nil)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return false
	}
	return true
}

func (h *consoleHandler) state(w http.ResponseWriter, r *http.Request) {
	c := sessionFrom(r.Context()).Console
	h.respond(w, r, http.StatusOK, nil, consoleState{
		Indexes: c.Indexes.State(),
		Search:  c.Search.State(),
		Vectors: c.Vectors.State(),
		Backups: c.Backups.State(),
	})
}

// Session

func (h *consoleHandler) getSession(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK, nil, nil)
}

func (h *consoleHandler) setToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if !decodeBody(w, r, &body) {
		h.fail(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := sessionFrom(r.Context()).Auth.SetToken(r.Context(), body.Token); err != nil {
		h.logger.Error("failed to set token", "error", err)
		h.fail(w, r, http.StatusInternalServerError, "failed to save token")
		return
	}
	h.respond(w, r, http.StatusOK, nil, nil)
}

func (h *consoleHandler) clearToken(w http.ResponseWriter, r *http.Request) {
	if err := sessionFrom(r.Context()).Auth.Clear(r.Context()); err != nil {
		h.logger.Error("failed to clear token", "error", err)
		h.fail(w, r, http.StatusInternalServerError, "failed to clear token")
		return
	}
	h.respond(w, r, http.StatusOK, nil, nil)
}

func (h *consoleHandler) openPrompt(w http.ResponseWriter, r *http.Request) {
	sessionFrom(r.Context()).Auth.OpenPrompt()
	h.respond(w, r, http.StatusOK, nil, nil)
}

func (h *consoleHandler) dismissPrompt(w http.ResponseWriter, r *http.Request) {
	sessionFrom(r.Context()).Auth.DismissPrompt()
	h.respond(w, r, http.StatusOK, nil, nil)
}

func (h *consoleHandler) setTheme(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Theme string `json:"theme"`
	}
	if !decodeBody(w, r, &body) {
		h.fail(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := sessionFrom(r.Context()).SetTheme(r.Context(), body.Theme); err != nil {
		if errors.Is(err, session.ErrInvalidTheme) {
			h.fail(w, r, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Warn("failed to persist theme", "error", err)
	}
	h.respond(w, r, http.StatusOK, nil, nil)
}

func (h *consoleHandler) dismissNotice(w http.ResponseWriter, r *http.Request) {
	if !sessionFrom(r.Context()).Notices.Dismiss(chi.URLParam(r, "id")) {
		h.fail(w, r, http.StatusNotFound, "notification not found")
		return
	}
	h.respond(w, r, http.StatusOK, nil, nil)
}

// Indexes

func (h *consoleHandler) listIndexes(w http.ResponseWriter, r *http.Request) {
	c := sessionFrom(r.Context()).Console.Indexes
	h.respond(w, r, http.StatusOK, c.List(r.Context()), c.State())
}

func (h *consoleHandler) createIndex(w http.ResponseWriter, r *http.Request) {
	var form forms.CreateIndexForm
	if !decodeBody(w, r, &form) {
		h.fail(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	c := sessionFrom(r.Context()).Console.Indexes
	h.respond(w, r, http.StatusOK, c.Create(r.Context(), form), c.State())
}

func (h *consoleHandler) indexDetail(w http.ResponseWriter, r *http.Request) {
	c := sessionFrom(r.Context()).Console.Indexes
	h.respond(w, r, http.StatusOK, c.Detail(r.Context(), chi.URLParam(r, "name")), c.State())
}

func (h *consoleHandler) indexMeta(w http.ResponseWriter, r *http.Request) {
	meta := sessionFrom(r.Context()).Console.IndexMeta()
	h.respond(w, r, http.StatusOK, meta.Load(r.Context(), chi.URLParam(r, "name")), nil)
}

func (h *consoleHandler) deleteIndex(w http.ResponseWriter, r *http.Request) {
	c := sessionFrom(r.Context()).Console.Indexes
	name := chi.URLParam(r, "name")

	var status any
	switch chi.URLParam(r, "action") {
	case "request":
		c.RequestDelete(name)
	case "cancel":
		c.CancelDelete()
	case "confirm":
		status = c.ConfirmDelete(r.Context(), name)
	default:
		h.fail(w, r, http.StatusNotFound, "unknown action")
		return
	}
	h.respond(w, r, http.StatusOK, status, c.State())
}

// Search and vectors

func (h *consoleHandler) search(w http.ResponseWriter, r *http.Request) {
	var form forms.SearchForm
	if !decodeBody(w, r, &form) {
		h.fail(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	c := sessionFrom(r.Context()).Console.Search
	h.respond(w, r, http.StatusOK, c.Submit(r.Context(), chi.URLParam(r, "name"), form), c.State())
}

func (h *consoleHandler) insertVectors(w http.ResponseWriter, r *http.Request) {
	var form forms.InsertForm
	if !decodeBody(w, r, &form) {
		h.fail(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	c := sessionFrom(r.Context()).Console.Vectors
	h.respond(w, r, http.StatusOK, c.Insert(r.Context(), chi.URLParam(r, "name"), form), c.State())
}

func (h *consoleHandler) getVector(w http.ResponseWriter, r *http.Request) {
	c := sessionFrom(r.Context()).Console.Vectors
	h.respond(w, r, http.StatusOK, c.Get(r.Context(), chi.URLParam(r, "name"), chi.URLParam(r, "id")), c.State())
}

func (h *consoleHandler) deleteVector(w http.ResponseWriter, r *http.Request) {
	c := sessionFrom(r.Context()).Console.Vectors
	h.respond(w, r, http.StatusOK, c.Delete(r.Context(), chi.URLParam(r, "name"), chi.URLParam(r, "id")), c.State())
}

func (h *consoleHandler) deleteByFilter(w http.ResponseWriter, r *http.Request) {
	c := sessionFrom(r.Context()).Console.Vectors
	index := chi.URLParam(r, "name")

	var status any
	switch chi.URLParam(r, "action") {
	case "request":
		var body struct {
			Filter string `json:"filter"`
		}
		if !decodeBody(w, r, &body) {
			h.fail(w, r, http.StatusBadRequest, "invalid request body")
			return
		}
		status = c.RequestDeleteByFilter(index, body.Filter)
	case "cancel":
		c.CancelDeleteByFilter()
	case "confirm":
		status = c.ConfirmDeleteByFilter(r.Context(), index)
	default:
		h.fail(w, r, http.StatusNotFound, "unknown action")
		return
	}
	h.respond(w, r, http.StatusOK, status, c.State())
}

// Backups

func (h *consoleHandler) createBackup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &body) {
		h.fail(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	c := sessionFrom(r.Context()).Console.Backups
	h.respond(w, r, http.StatusOK, c.Create(r.Context(), chi.URLParam(r, "name"), body.Name), c.State())
}

func (h *consoleHandler) listBackups(w http.ResponseWriter, r *http.Request) {
	c := sessionFrom(r.Context()).Console.Backups
	h.respond(w, r, http.StatusOK, c.List(r.Context()), c.State())
}

func (h *consoleHandler) listJobs(w http.ResponseWriter, r *http.Request) {
	c := sessionFrom(r.Context()).Console
	h.respond(w, r, http.StatusOK, c.Jobs.Refresh(r.Context()), c.Backups.State())
}

func (h *consoleHandler) restoreBackup(w http.ResponseWriter, r *http.Request) {
	c := sessionFrom(r.Context()).Console.Backups
	name := chi.URLParam(r, "name")

	var status any
	switch chi.URLParam(r, "action") {
	case "request":
		var body struct {
			Target string `json:"target"`
		}
		if !decodeBody(w, r, &body) {
			h.fail(w, r, http.StatusBadRequest, "invalid request body")
			return
		}
		status = c.RequestRestore(name, body.Target)
	case "cancel":
		c.CancelRestore()
	case "confirm":
		status = c.ConfirmRestore(r.Context(), name)
	default:
		h.fail(w, r, http.StatusNotFound, "unknown action")
		return
	}
	h.respond(w, r, http.StatusOK, status, c.State())
}

func (h *consoleHandler) deleteBackup(w http.ResponseWriter, r *http.Request) {
	c := sessionFrom(r.Context()).Console.Backups
	name := chi.URLParam(r, "name")

	var status any
	switch chi.URLParam(r, "action") {
	case "request":
		c.RequestDelete(name)
	case "cancel":
		c.CancelDelete()
	case "confirm":
		status = c.ConfirmDelete(r.Context(), name)
	default:
		h.fail(w, r, http.StatusNotFound, "unknown action")
		return
	}
	h.respond(w, r, http.StatusOK, status, c.State())
}

// uploadBackup streams the "file" part of a multipart form to the backend.
// The file name is checked before any archive bytes are read.
func (h *consoleHandler) uploadBackup(w http.ResponseWriter, r *http.Request) {
	c := sessionFrom(r.Context()).Console.Backups

	mr, err := r.MultipartReader()
	if err != nil {
		h.fail(w, r, http.StatusBadRequest, "expected a multipart upload")
		return
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			h.fail(w, r, http.StatusBadRequest, "malformed multipart upload")
			return
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}
		status := c.Upload(r.Context(), part.FileName(), part)
		part.Close()
		h.respond(w, r, http.StatusOK, status, c.State())
		return
	}
	h.respond(w, r, http.StatusOK, c.Upload(r.Context(), "", http.NoBody), c.State())
}

func (h *consoleHandler) downloadLink(w http.ResponseWriter, r *http.Request) {
	c := sessionFrom(r.Context()).Console.Backups
	link, err := c.DownloadLink(chi.URLParam(r, "name"))
	if err != nil {
		h.respond(w, r, http.StatusOK, controller.Failed[controller.DownloadLink](err.Error()), nil)
		return
	}
	h.respond(w, r, http.StatusOK, controller.Succeeded(link), nil)
}

// attachment builds a Content-Disposition value with filename quoted and
// escaped as needed.
func attachment(filename string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "attachment"
}

// download serves the archive behind a download link. The key must have been
// issued to this session for this backup.
func (h *consoleHandler) download(w http.ResponseWriter, r *http.Request) {
	if h.tickets == nil {
		h.fail(w, r, http.StatusNotFound, "downloads are served by the backend")
		return
	}
	sess := sessionFrom(r.Context())
	name := chi.URLParam(r, "name")

	if err := h.tickets.VerifyFor(r.URL.Query().Get("key"), sess.ID, name); err != nil {
		h.fail(w, r, http.StatusForbidden, err.Error())
		return
	}

	body, err := sess.Console.Backups.Download(r.Context(), name)
	if err != nil {
		h.fail(w, r, http.StatusBadGateway, err.Error())
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition", attachment(name+forms.BackupArchiveExt))
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("backup download interrupted", "backup", name, "error", err)
	}
}
