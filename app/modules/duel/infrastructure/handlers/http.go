package duelhandlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"

	duelservice "github.com/Hollow-Moon-Club/gloamhall/app/modules/duel/application"
	"github.com/Hollow-Moon-Club/gloamhall/app/shared"
)

// DuelHandlers exposes duel decision intake over HTTP.
type DuelHandlers struct {
	duelService duelservice.Service
	logger      *slog.Logger
	tracer      trace.Tracer
}

// NewDuelHandlers creates a new instance of DuelHandlers.
func NewDuelHandlers(duelService duelservice.Service, logger *slog.Logger, tracer trace.Tracer) *DuelHandlers {
	return &DuelHandlers{
		duelService: duelService,
		logger:      logger,
		tracer:      tracer,
	}
}

// RegisterRoutes mounts the duel routes on r.
func (h *DuelHandlers) RegisterRoutes(r chi.Router) {
	r.Post("/duel-decisions", h.HandleSubmitDecision)
}

// decisionRequest is the wire contract for decision submission. All
// fields are required.
type decisionRequest struct {
	SessionID         string `json:"sessionId"`
	SubSessionID      string `json:"subSessionId"`
	DuelID            string `json:"duelId"`
	ParticipantNumber *int   `json:"participantNumber"`
	Decision          string `json:"decision"`
}

type decisionResponse struct {
	Success           bool   `json:"success"`
	ParticipantNumber int    `json:"participantNumber,omitempty"`
	Decision          string `json:"decision,omitempty"`
	Reason            string `json:"reason,omitempty"`
}

// HandleSubmitDecision accepts one side's duel decision.
func (h *DuelHandlers) HandleSubmitDecision(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "duel.submit_decision")
	defer span.End()

	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, decisionResponse{Success: false, Reason: "malformed request body"})
		return
	}

	if reason := req.missingField(); reason != "" {
		writeJSON(w, http.StatusBadRequest, decisionResponse{Success: false, Reason: reason})
		return
	}

	duelID, err := shared.ParseDuelID(req.DuelID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, decisionResponse{Success: false, Reason: "duelId is not a valid identifier"})
		return
	}
	if _, err := shared.ParseSessionID(req.SessionID); err != nil {
		writeJSON(w, http.StatusBadRequest, decisionResponse{Success: false, Reason: "sessionId is not a valid identifier"})
		return
	}

	result, err := h.duelService.SubmitDecision(ctx, duelID, shared.ParticipantNumber(*req.ParticipantNumber), req.Decision)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, decisionResponse{
		Success:           true,
		ParticipantNumber: int(result.ParticipantNumber),
		Decision:          result.Decision,
	})
}

func (req *decisionRequest) missingField() string {
	switch {
	case req.SessionID == "":
		return "sessionId is required"
	case req.SubSessionID == "":
		return "subSessionId is required"
	case req.DuelID == "":
		return "duelId is required"
	case req.ParticipantNumber == nil:
		return "participantNumber is required"
	case req.Decision == "":
		return "decision is required"
	}
	return ""
}

func (h *DuelHandlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := shared.KindOf(err)
	status := statusFor(kind)

	reason := shared.ReasonOf(err)
	if status == http.StatusInternalServerError {
		// Never leak store internals to clients.
		reason = "internal error"
		h.logger.ErrorContext(r.Context(), "Duel decision failed", slog.Any("error", err))
	}

	writeJSON(w, status, decisionResponse{Success: false, Reason: reason})
}

func statusFor(kind shared.ErrorKind) int {
	switch kind {
	case shared.KindValidation, shared.KindInvalidState:
		return http.StatusBadRequest
	case shared.KindNotFound:
		return http.StatusNotFound
	case shared.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
