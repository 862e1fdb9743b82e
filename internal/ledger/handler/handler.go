// Package handler exposes the transaction build and submit endpoints.
// Clients build unsigned transactions here, sign them wallet-side, and hand
// them back for broadcast; the service's authority key never signs fee
// payments on a client's behalf.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"jagga/internal/ledger"
	"jagga/internal/payment"
	"jagga/internal/transport/http/shared"
	dErrors "jagga/pkg/domain-errors"
)

type Handler struct {
	ledger *ledger.Client
	gate   *payment.Gate
	logger *slog.Logger
}

func New(client *ledger.Client, gate *payment.Gate, logger *slog.Logger) *Handler {
	return &Handler{ledger: client, gate: gate, logger: logger}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/build-fee-tx", h.buildFeeTx)
	r.Post("/build-registration-tx", h.buildRegistrationTx)
	r.Post("/build-token-transfer-tx", h.buildTokenTransferTx)
	r.Post("/submit-signed-tx", h.submitSignedTx)
	return r
}

// Fees serves the fee schedule so clients can build correct payments.
// Mounted at the API root.
func (h *Handler) Fees(w http.ResponseWriter, _ *http.Request) {
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"citizenLamports": h.gate.Amount(payment.TierCitizen),
		"officerLamports": h.gate.Amount(payment.TierOfficer),
		"chiefLamports":   h.gate.Amount(payment.TierChief),
		"treasuryWallet":  h.gate.TreasuryWallet(),
	})
}

type buildFeeTxBody struct {
	Tier       string `json:"tier"`
	FromPubkey string `json:"fromPubkey"`
	Lamports   uint64 `json:"lamports"`
}

func (h *Handler) buildFeeTx(w http.ResponseWriter, r *http.Request) {
	var body buildFeeTxBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "malformed request body"))
		return
	}
	tier, err := payment.ParseTier(body.Tier)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	// The amount is pinned server-side; a client paying less than the
	// scheduled fee gets refused before any transaction is built.
	if err := h.gate.CheckAmount(tier, body.Lamports); err != nil {
		shared.WriteError(w, err)
		return
	}
	txB64, err := h.ledger.BuildFeeTransferTx(r.Context(), body.FromPubkey, h.gate.TreasuryWallet(), body.Lamports)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{"transaction": txB64})
}

type buildRegistrationTxBody struct {
	FromPubkey string `json:"fromPubkey"`
	Lamports   uint64 `json:"lamports"`
	Payload    struct {
		OwnerName    string `json:"ownerName"`
		District     string `json:"district"`
		Municipality string `json:"municipality"`
	} `json:"payload"`
}

func (h *Handler) buildRegistrationTx(w http.ResponseWriter, r *http.Request) {
	var body buildRegistrationTxBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "malformed request body"))
		return
	}
	if err := h.gate.CheckAmount(payment.TierCitizen, body.Lamports); err != nil {
		shared.WriteError(w, err)
		return
	}
	txB64, err := h.ledger.BuildRegistrationTx(r.Context(), body.FromPubkey, h.gate.TreasuryWallet(), body.Lamports,
		ledger.RegistrationPayload{
			OwnerName:    body.Payload.OwnerName,
			District:     body.Payload.District,
			Municipality: body.Payload.Municipality,
		})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{"transaction": txB64})
}

type buildTokenTransferTxBody struct {
	MintAddress string `json:"mintAddress"`
	FromPubkey  string `json:"fromPubkey"`
	ToPubkey    string `json:"toPubkey"`
}

func (h *Handler) buildTokenTransferTx(w http.ResponseWriter, r *http.Request) {
	var body buildTokenTransferTxBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "malformed request body"))
		return
	}
	txB64, err := h.ledger.BuildTokenTransferTx(r.Context(), body.MintAddress, body.FromPubkey, body.ToPubkey)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{"transaction": txB64})
}

type submitSignedTxBody struct {
	SignedTransaction string `json:"signedTransaction"`
}

func (h *Handler) submitSignedTx(w http.ResponseWriter, r *http.Request) {
	var body submitSignedTxBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "malformed request body"))
		return
	}
	if body.SignedTransaction == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "signedTransaction is required"))
		return
	}
	sig, err := h.ledger.SubmitSignedTx(r.Context(), body.SignedTransaction)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{"signature": sig})
}
