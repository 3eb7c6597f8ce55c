package handlers

import (
	"net/http"

	"ledgerbank/internal/auth"
	"ledgerbank/internal/middleware"
	"ledgerbank/internal/models"
	"ledgerbank/internal/websocket"
)

type loginResponse struct {
	User  accountResponse `json:"user"`
	Token string          `json:"token"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	account, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	token, err := h.signToken(h.cfg.JWTSecret, account.ID, string(account.Role), h.cfg.TokenTTL)
	if err != nil {
		h.logger.WithField("account_id", account.ID).WithError(err).Error("failed to sign token")
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	account.SortMovements()
	respondJSON(w, http.StatusOK, loginResponse{User: toAccountResponse(account), Token: token})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	account, err := h.service.GetAccount(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	h.respondAccount(w, account)
}

// WSBalances upgrades to a balance stream. Browsers cannot set headers on a
// websocket handshake, so the token may also come from the query string.
// Admins receive every account's updates.
func (h *Handler) WSBalances(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token, _ = middleware.BearerToken(r)
	}
	if token == "" {
		respondError(w, http.StatusUnauthorized, "missing token")
		return
	}
	claims, err := auth.ParseToken(h.cfg.JWTSecret, token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	subscription := claims.UserID
	if models.Role(claims.Role) == models.RoleAdmin {
		subscription = websocket.AllAccounts
	}
	h.ws.Serve(w, r, subscription)
}
