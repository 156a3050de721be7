package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nmacedo/fundsflow-backend/internal/domain"
	"github.com/nmacedo/fundsflow-backend/internal/usecase/account"
	"github.com/nmacedo/fundsflow-backend/internal/usecase/transfer"
)

// Handler exposes the account and transfer operations over HTTP.
type Handler struct {
	accounts  *account.Service
	transfers *transfer.Service
	logger    *slog.Logger
}

// NewHandler creates a new Handler instance.
func NewHandler(accounts *account.Service, transfers *transfer.Service, logger *slog.Logger) *Handler {
	return &Handler{
		accounts:  accounts,
		transfers: transfers,
		logger:    logger,
	}
}

type createAccountRequest struct {
	AccountID      string `json:"account_id"`
	InitialBalance string `json:"initial_balance"`
}

type accountResponse struct {
	AccountID string `json:"account_id"`
	Balance   string `json:"balance"`
}

type submitTransferRequest struct {
	SourceAccountID string `json:"source_account_id"`
	TargetAccountID string `json:"target_account_id"`
	Amount          string `json:"amount"`
}

type transferResponse struct {
	TransferID      string `json:"transfer_id"`
	SourceAccountID string `json:"source_account_id"`
	TargetAccountID string `json:"target_account_id"`
	Amount          string `json:"amount"`
	Status          string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HandleCreateAccount handles POST /v1/accounts.
func (h *Handler) HandleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	balance, err := decimal.NewFromString(req.InitialBalance)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid initial_balance format")
		return
	}

	acc, err := h.accounts.Create(r.Context(), req.AccountID, balance)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, accountResponse{
		AccountID: acc.AccountID,
		Balance:   acc.Balance.String(),
	})
}

// HandleGetAccount handles GET /v1/accounts/{accountID}.
func (h *Handler) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	acc, err := h.accounts.Get(r.Context(), accountID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, accountResponse{
		AccountID: acc.AccountID,
		Balance:   acc.Balance.String(),
	})
}

// HandleSubmitTransfer handles POST /v1/transfers. The transfer runs
// asynchronously; the response carries the job to poll for its outcome.
func (h *Handler) HandleSubmitTransfer(w http.ResponseWriter, r *http.Request) {
	var req submitTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid amount format")
		return
	}

	job, err := h.transfers.Submit(r.Context(), transfer.SubmitInput{
		SourceAccountID: req.SourceAccountID,
		TargetAccountID: req.TargetAccountID,
		Amount:          amount,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusAccepted, toTransferResponse(job))
}

// HandleGetTransfer handles GET /v1/transfers/{transferID}.
func (h *Handler) HandleGetTransfer(w http.ResponseWriter, r *http.Request) {
	transferID, err := uuid.Parse(chi.URLParam(r, "transferID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid transfer id format")
		return
	}

	job, err := h.transfers.GetStatus(r.Context(), transferID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toTransferResponse(job))
}

func toTransferResponse(job *domain.TransferJob) transferResponse {
	return transferResponse{
		TransferID:      job.TransferID.String(),
		SourceAccountID: job.SourceAccountID,
		TargetAccountID: job.TargetAccountID,
		Amount:          job.Amount.String(),
		Status:          string(job.Status),
	}
}

// writeDomainError maps domain errors to HTTP status codes.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound), errors.Is(err, domain.ErrTransferNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrDuplicateAccount):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInsufficientFunds):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrSameAccount),
		errors.Is(err, domain.ErrNonPositiveAmount),
		errors.Is(err, domain.ErrInvalidAccountID),
		errors.Is(err, domain.ErrNegativeBalance):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("unexpected handler error", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, code int, message string) {
	h.writeJSON(w, code, errorResponse{Error: message})
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
