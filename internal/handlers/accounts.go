package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"ledgerbank/internal/models"
	"ledgerbank/internal/services"

	"github.com/go-chi/chi/v5"
)

var errInvalidDate = errors.New("invalid date")

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.ListAccounts(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	for i := range accounts {
		accounts[i].SortMovements()
	}
	respondJSON(w, http.StatusOK, toAccountResponses(accounts))
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.service.GetAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	h.respondAccount(w, account)
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	role := models.Role(req.Role)
	if role == "" {
		role = models.RoleUser
	}
	account, err := h.service.CreateAccount(r.Context(), services.Profile{
		AccountNumber: strings.TrimSpace(req.AccountNumber),
		FullName:      req.FullName,
		Email:         req.Email,
		Password:      req.Password,
		Role:          role,
		Balance:       req.Balance,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	h.respondAccount(w, account)
}

func (h *Handler) ReplaceAccount(w http.ResponseWriter, r *http.Request) {
	var req replaceAccountRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	replacement, err := req.toAccount(time.Now())
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid date")
		return
	}
	if _, err := h.service.ReplaceAccount(r.Context(), chi.URLParam(r, "id"), replacement, req.Password); err != nil {
		respondServiceError(w, err)
		return
	}
	respondMessage(w, "Account updated")
}

func (h *Handler) EditProfile(w http.ResponseWriter, r *http.Request) {
	var req editProfileRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	changes := services.ProfileChanges{
		AccountNumber: req.AccountNumber,
		FullName:      req.FullName,
		Email:         req.Email,
		Password:      req.Password,
		Balance:       req.Balance,
	}
	if req.Role != nil {
		role := models.Role(*req.Role)
		changes.Role = &role
	}
	account, err := h.service.EditProfile(r.Context(), chi.URLParam(r, "id"), changes)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	h.respondAccount(w, account)
}

func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteAccount(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, err)
		return
	}
	respondMessage(w, "Account deleted")
}

func (h *Handler) RecordMovement(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	account, err := h.service.RecordMovement(r.Context(), chi.URLParam(r, "id"), models.MovementType(req.Type), req.Amount, strings.TrimSpace(req.Description))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	h.respondAccount(w, account)
}

func (h *Handler) AssignCredit(w http.ResponseWriter, r *http.Request) {
	var req creditRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	dueDate, err := parseDate(req.DueDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid date")
		return
	}
	account, err := h.service.AssignCredit(r.Context(), chi.URLParam(r, "id"), req.Amount, req.Limit, req.InterestRate, dueDate)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	h.respondAccount(w, account)
}

func (h *Handler) AssignLoan(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	account, err := h.service.AssignLoan(r.Context(), chi.URLParam(r, "id"), req.Amount, req.InterestRate, req.Term)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	h.respondAccount(w, account)
}

func (h *Handler) respondAccount(w http.ResponseWriter, account models.Account) {
	account.SortMovements()
	respondJSON(w, http.StatusOK, toAccountResponse(account))
}
