package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/tuition-fee-ledger/internal/ledger"
	"github.com/sheikh-saqib/tuition-fee-ledger/internal/models"
	"github.com/sheikh-saqib/tuition-fee-ledger/internal/response"
	"github.com/sheikh-saqib/tuition-fee-ledger/internal/xerrors"
)

type LedgerHandler struct {
	ledger *ledger.Ledger
	logger *zap.Logger
}

func NewLedgerHandler(l *ledger.Ledger, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{
		ledger: l,
		logger: logger,
	}
}

type recordEntryBody struct {
	Amount        decimal.Decimal `json:"amount"`
	Note          string          `json:"note"`
	AttachmentRef string          `json:"attachment_ref"`
}

type baselineBody struct {
	TotalFees decimal.Decimal `json:"total_fees"`
	Version   int64           `json:"version"`
}

type batchFeeBody struct {
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note"`
}

// GetAccountState handles GET /accounts/{accountID}
func (h *LedgerHandler) GetAccountState(w http.ResponseWriter, r *http.Request) {
	state, err := h.ledger.GetAccountState(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, state)
}

// Statement handles GET /accounts/{accountID}/statement
func (h *LedgerHandler) Statement(w http.ResponseWriter, r *http.Request) {
	st, err := h.ledger.Statement(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, st)
}

// RecordEntry handles POST /accounts/{accountID}/entries
func (h *LedgerHandler) RecordEntry(w http.ResponseWriter, r *http.Request) {
	var body recordEntryBody
	if !h.decode(w, r, &body) {
		return
	}

	entry, err := h.ledger.RecordEntry(r.Context(), ledger.RecordEntryRequest{
		AccountID:     chi.URLParam(r, "accountID"),
		Amount:        body.Amount,
		Note:          body.Note,
		AttachmentRef: body.AttachmentRef,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusCreated, entry)
}

// UpdateBaseline handles PUT /accounts/{accountID}/baseline
func (h *LedgerHandler) UpdateBaseline(w http.ResponseWriter, r *http.Request) {
	var body baselineBody
	if !h.decode(w, r, &body) {
		return
	}

	acc, err := h.ledger.UpdateBaseline(r.Context(), ledger.UpdateBaselineRequest{
		AccountID:       chi.URLParam(r, "accountID"),
		TotalFees:       body.TotalFees,
		ExpectedVersion: body.Version,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, ledger.StateOf(acc))
}

// Repair handles POST /accounts/{accountID}/repair
func (h *LedgerHandler) Repair(w http.ResponseWriter, r *http.Request) {
	acc, err := h.ledger.Repair(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, ledger.StateOf(acc))
}

// GetEntry handles GET /entries/{entryID}
func (h *LedgerHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.ledger.Entry(r.Context(), chi.URLParam(r, "entryID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, entry)
}

// ReverseEntry handles DELETE /entries/{entryID}
func (h *LedgerHandler) ReverseEntry(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "entryID")
	if err := h.ledger.ReverseEntry(r.Context(), entryID); err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"entry_id": entryID,
		"reversed": true,
	})
}

// ApplyBatchFee handles POST /batches/{batchID}/assessments. Partial failures
// still answer 200; the failed members are listed in the body.
func (h *LedgerHandler) ApplyBatchFee(w http.ResponseWriter, r *http.Request) {
	var body batchFeeBody
	if !h.decode(w, r, &body) {
		return
	}

	res, err := h.ledger.ApplyBatchFee(r.Context(), models.BatchAssessmentRequest{
		BatchID: chi.URLParam(r, "batchID"),
		Amount:  body.Amount,
		Note:    body.Note,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if len(res.Failed) > 0 {
		h.logger.Warn("batch fee partially applied",
			zap.String("run_id", res.RunID),
			zap.String("batch_id", res.BatchID),
			zap.Int("failed", len(res.Failed)))
	}
	response.JSON(w, http.StatusOK, res)
}

// SummarizeBatch handles GET /batches/{batchID}/summary
func (h *LedgerHandler) SummarizeBatch(w http.ResponseWriter, r *http.Request) {
	sum, err := h.ledger.SummarizeBatch(r.Context(), chi.URLParam(r, "batchID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, sum)
}

func (h *LedgerHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		response.Error(w, http.StatusBadRequest, xerrors.KindValidation, "invalid request body")
		return false
	}
	return true
}

func (h *LedgerHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := xerrors.Kind(err)
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("ledger request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		response.Error(w, status, kind, "internal error")
		return
	}
	response.Error(w, status, kind, err.Error())
}

// StatusFor maps a ledger error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, xerrors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, xerrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, xerrors.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
