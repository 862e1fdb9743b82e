// Package handler issues role tokens to configured official wallets.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"jagga/internal/authtoken"
	"jagga/internal/transport/http/shared"
	dErrors "jagga/pkg/domain-errors"
)

type Handler struct {
	tokens *authtoken.Service
	logger *slog.Logger
}

func New(tokens *authtoken.Service, logger *slog.Logger) *Handler {
	return &Handler{tokens: tokens, logger: logger}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/token", h.issueToken)
	return r
}

type tokenRequestBody struct {
	WalletAddress string `json:"walletAddress"`
}

func (h *Handler) issueToken(w http.ResponseWriter, r *http.Request) {
	var body tokenRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "malformed request body"))
		return
	}
	if body.WalletAddress == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "walletAddress is required"))
		return
	}

	token, err := h.tokens.Issue(body.WalletAddress)
	if err != nil {
		h.logger.WarnContext(r.Context(), "token issuance refused", "wallet", body.WalletAddress)
		shared.WriteError(w, err)
		return
	}
	role, _ := h.tokens.RoleFor(body.WalletAddress)
	shared.WriteJSON(w, http.StatusOK, map[string]string{
		"token": token,
		"role":  role,
	})
}
