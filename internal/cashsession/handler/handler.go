package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pdv/internal/cashsession"
	"pdv/internal/platform/middleware"
	"pdv/internal/transport/http/shared"
	dErrors "pdv/pkg/domain-errors"
)

// Handler exposes the cash session command/query API. The operator identity
// comes from the auth middleware; every movement records who performed it.
type Handler struct {
	sessions *cashsession.Service
	logger   *slog.Logger
}

func New(sessions *cashsession.Service, logger *slog.Logger) *Handler {
	return &Handler{sessions: sessions, logger: logger}
}

// Register registers the session routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/registers/{registerID}/session", h.handleOpen)
	r.Get("/registers/{registerID}/session", h.handleCurrent)
	r.Post("/registers/{registerID}/session/movements", h.handleRecordMovement)
	r.Get("/registers/{registerID}/session/movements", h.handleListMovements)
	r.Post("/registers/{registerID}/session/close", h.handleClose)
	r.Post("/registers/{registerID}/session/cancel", h.handleCancel)
}

type openSessionRequest struct {
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

type movementRequest struct {
	Type      string          `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference,omitempty"`
}

type closeSessionRequest struct {
	ClosingBalance decimal.Decimal `json:"closing_balance"`
	Notes          string          `json:"notes,omitempty"`
}

type cancelSessionRequest struct {
	Notes string `json:"notes,omitempty"`
}

type sessionResponse struct {
	ID              uuid.UUID       `json:"id"`
	RegisterID      string          `json:"register_id"`
	OpeningBalance  decimal.Decimal `json:"opening_balance"`
	OpenedAt        time.Time       `json:"opened_at"`
	Status          string          `json:"status"`
	ClosingBalance  decimal.Decimal `json:"closing_balance"`
	ExpectedBalance decimal.Decimal `json:"expected_balance"`
	Difference      decimal.Decimal `json:"difference"`
	Operator        string          `json:"operator"`
	Notes           string          `json:"notes,omitempty"`
	ClosedAt        *time.Time      `json:"closed_at,omitempty"`
}

func toSessionResponse(s cashsession.Session) sessionResponse {
	return sessionResponse{
		ID:              s.ID,
		RegisterID:      s.RegisterID,
		OpeningBalance:  s.OpeningBalance,
		OpenedAt:        s.OpenedAt,
		Status:          string(s.Status),
		ClosingBalance:  s.ClosingBalance,
		ExpectedBalance: s.ExpectedBalance,
		Difference:      s.Difference,
		Operator:        s.Operator,
		Notes:           s.Notes,
		ClosedAt:        s.ClosedAt,
	}
}

type movementResponse struct {
	ID        uuid.UUID       `json:"id"`
	SessionID uuid.UUID       `json:"session_id"`
	Type      string          `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference,omitempty"`
	Operator  string          `json:"operator"`
	CreatedAt time.Time       `json:"created_at"`
}

func toMovementResponse(m cashsession.Movement) movementResponse {
	return movementResponse{
		ID:        m.ID,
		SessionID: m.SessionID,
		Type:      string(m.Type),
		Amount:    m.Amount,
		Reference: m.Reference,
		Operator:  m.Operator,
		CreatedAt: m.CreatedAt,
	}
}

func (h *Handler) handleOpen(w http.ResponseWriter, r *http.Request) {
	registerID := chi.URLParam(r, "registerID")

	var req openSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	session, err := h.sessions.Open(r.Context(), registerID, req.OpeningBalance, middleware.GetOperatorID(r.Context()))
	if err != nil {
		h.logger.WarnContext(r.Context(), "session open rejected",
			"register_id", registerID,
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toSessionResponse(session))
}

func (h *Handler) handleCurrent(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Current(r.Context(), chi.URLParam(r, "registerID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toSessionResponse(session))
}

func (h *Handler) handleRecordMovement(w http.ResponseWriter, r *http.Request) {
	registerID := chi.URLParam(r, "registerID")

	var req movementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	movement, err := h.sessions.RecordMovement(r.Context(), registerID,
		cashsession.MovementType(req.Type), req.Amount, req.Reference, middleware.GetOperatorID(r.Context()))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toMovementResponse(movement))
}

func (h *Handler) handleListMovements(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Current(r.Context(), chi.URLParam(r, "registerID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	movements, err := h.sessions.Movements(r.Context(), session.ID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	out := make([]movementResponse, 0, len(movements))
	for _, m := range movements {
		out = append(out, toMovementResponse(m))
	}
	shared.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	registerID := chi.URLParam(r, "registerID")

	var req closeSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	session, err := h.sessions.Close(r.Context(), registerID, req.ClosingBalance, req.Notes)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toSessionResponse(session))
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	registerID := chi.URLParam(r, "registerID")

	var req cancelSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	session, err := h.sessions.Cancel(r.Context(), registerID, req.Notes)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toSessionResponse(session))
}
