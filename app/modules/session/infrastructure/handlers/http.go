package sessionhandlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	gamelogservice "github.com/Hollow-Moon-Club/gloamhall/app/modules/gamelog/application"
	gamelogdb "github.com/Hollow-Moon-Club/gloamhall/app/modules/gamelog/infrastructure/repositories"
	sessionservice "github.com/Hollow-Moon-Club/gloamhall/app/modules/session/application"
	sessiondomain "github.com/Hollow-Moon-Club/gloamhall/app/modules/session/domain"
	"github.com/Hollow-Moon-Club/gloamhall/app/shared"
	"github.com/Hollow-Moon-Club/gloamhall/pkg/jwt"
)

type claimsContextKey struct{}

// SessionHandlers exposes the session directory, lobby operations, and the
// moderator phase controls over HTTP.
type SessionHandlers struct {
	sessionService sessionservice.Service
	directory      *sessionservice.Directory
	gameLog        gamelogservice.Service
	jwtService     jwt.Service
	logger         *slog.Logger
}

// NewSessionHandlers creates a new instance of SessionHandlers.
func NewSessionHandlers(svc sessionservice.Service, directory *sessionservice.Directory, gameLog gamelogservice.Service, jwtService jwt.Service, logger *slog.Logger) *SessionHandlers {
	return &SessionHandlers{
		sessionService: svc,
		directory:      directory,
		gameLog:        gameLog,
		jwtService:     jwtService,
		logger:         logger,
	}
}

// RegisterRoutes mounts the session routes on r.
func (h *SessionHandlers) RegisterRoutes(r chi.Router) {
	r.Get("/sessions", h.HandleDirectory)
	r.Post("/sessions", h.HandleCreateSession)
	r.Post("/sessions/{sessionID}/join", h.HandleJoinSession)
	r.Get("/sessions/{sessionID}/events", h.HandleListEvents)

	r.Group(func(r chi.Router) {
		r.Use(h.requireModerator)
		r.Post("/sessions/{sessionID}/phase", h.HandleTransitionPhase)
	})
}

// HandleDirectory serves the live session directory snapshot.
func (h *SessionHandlers) HandleDirectory(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") == "true" {
		h.directory.Refresh(r.Context(), false)
	}
	writeJSON(w, http.StatusOK, h.directory.Snapshot())
}

type createSessionRequest struct {
	Name string `json:"name"`
}

// HandleCreateSession opens a new session lobby.
func (h *SessionHandlers) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorBody(w, http.StatusBadRequest, "malformed request body")
		return
	}

	session, err := h.sessionService.CreateSession(r.Context(), req.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

type joinSessionRequest struct {
	AccountID string `json:"accountId"`
	Name      string `json:"name"`
}

// HandleJoinSession seats a participant in the lobby.
func (h *SessionHandlers) HandleJoinSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionIDFromPath(w, r)
	if !ok {
		return
	}

	var req joinSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorBody(w, http.StatusBadRequest, "malformed request body")
		return
	}

	participant, err := h.sessionService.JoinSession(r.Context(), sessionID, req.AccountID, req.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, participant)
}

type transitionRequest struct {
	Status string `json:"status"`
	Phase  string `json:"phase"`
}

// HandleTransitionPhase moves a session through its lifecycle. Moderator
// only.
func (h *SessionHandlers) HandleTransitionPhase(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionIDFromPath(w, r)
	if !ok {
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorBody(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Status == "" {
		writeErrorBody(w, http.StatusBadRequest, "status is required")
		return
	}

	session, err := h.sessionService.TransitionPhase(r.Context(), sessionID, sessiondomain.Status(req.Status), sessiondomain.Phase(req.Phase))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// HandleListEvents reads the session's event log. Visibility depends on
// the caller: anonymous and viewer tokens see public records, a
// participant token additionally sees records private to that seat, and a
// moderator token sees everything.
func (h *SessionHandlers) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionIDFromPath(w, r)
	if !ok {
		return
	}

	filter := gamelogdb.Filter{SessionID: sessionID}
	if v := r.URL.Query().Get("round"); v != "" {
		round, err := strconv.Atoi(v)
		if err != nil {
			writeErrorBody(w, http.StatusBadRequest, "round must be a number")
			return
		}
		rn := shared.RoundNumber(round)
		filter.Round = &rn
	}
	if v := r.URL.Query().Get("phase"); v != "" {
		filter.Phase = &v
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			writeErrorBody(w, http.StatusBadRequest, "limit must be a number")
			return
		}
		filter.Limit = limit
	}

	events, err := h.gameLog.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.visibleEvents(r, events))
}

// visibleEvents drops records the caller's identity is not allowed to see.
func (h *SessionHandlers) visibleEvents(r *http.Request, events []gamelogdb.Event) []gamelogdb.Event {
	claims := h.claimsFromRequest(r)
	if claims != nil && claims.Role == string(jwt.RoleModerator) {
		return events
	}

	var seat *shared.ParticipantNumber
	if claims != nil && claims.Role == string(jwt.RoleParticipant) {
		if n, err := strconv.Atoi(claims.Subject); err == nil {
			pn := shared.ParticipantNumber(n)
			seat = &pn
		}
	}

	visible := make([]gamelogdb.Event, 0, len(events))
	for _, event := range events {
		switch event.Visibility {
		case gamelogdb.VisibilityPublic:
			visible = append(visible, event)
		case gamelogdb.VisibilityPrivate:
			if seat != nil && event.ParticipantNumber != nil && *event.ParticipantNumber == *seat {
				visible = append(visible, event)
			}
		}
	}
	return visible
}

// requireModerator rejects requests without a valid moderator token.
func (h *SessionHandlers) requireModerator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := h.claimsFromRequest(r)
		if claims == nil {
			writeErrorBody(w, http.StatusUnauthorized, "missing or invalid token")
			return
		}
		if claims.Role != string(jwt.RoleModerator) {
			writeErrorBody(w, http.StatusForbidden, "moderator role required")
			return
		}
		ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// claimsFromRequest returns validated claims from the bearer token, or nil
// when absent or invalid.
func (h *SessionHandlers) claimsFromRequest(r *http.Request) *jwt.SessionClaims {
	if claims, ok := r.Context().Value(claimsContextKey{}).(*jwt.SessionClaims); ok {
		return claims
	}

	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return nil
	}

	claims, err := h.jwtService.ValidateToken(token)
	if err != nil {
		return nil
	}
	return claims
}

func (h *SessionHandlers) sessionIDFromPath(w http.ResponseWriter, r *http.Request) (shared.SessionID, bool) {
	id, err := shared.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeErrorBody(w, http.StatusBadRequest, "sessionID is not a valid identifier")
		return shared.SessionID{}, false
	}
	return id, true
}

func (h *SessionHandlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch shared.KindOf(err) {
	case shared.KindValidation, shared.KindInvalidState:
		status = http.StatusBadRequest
	case shared.KindNotFound:
		status = http.StatusNotFound
	case shared.KindForbidden:
		status = http.StatusForbidden
	default:
		status = http.StatusInternalServerError
	}

	reason := shared.ReasonOf(err)
	if status == http.StatusInternalServerError {
		reason = "internal error"
		h.logger.ErrorContext(r.Context(), "Session request failed", slog.Any("error", err))
	}
	writeErrorBody(w, status, reason)
}

func writeErrorBody(w http.ResponseWriter, status int, reason string) {
	writeJSON(w, status, map[string]any{"success": false, "reason": reason})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
