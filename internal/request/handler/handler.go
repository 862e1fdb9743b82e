// Package handler exposes the request lifecycle over HTTP.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"jagga/internal/platform/middleware"
	"jagga/internal/request"
	"jagga/internal/request/service"
	"jagga/internal/transport/http/shared"
	"jagga/pkg/domain"
	dErrors "jagga/pkg/domain-errors"
)

type Handler struct {
	service   *service.Service
	validator middleware.TokenValidator
	logger    *slog.Logger
}

func New(svc *service.Service, validator middleware.TokenValidator, logger *slog.Logger) *Handler {
	return &Handler{service: svc, validator: validator, logger: logger}
}

// Routes mounts the lifecycle endpoints. Create and read are open; propose
// and decide require a token whose role matches the stage.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.With(middleware.RequireRole(h.validator, middleware.RoleOfficer, h.logger)).
		Put("/{id}/propose", h.propose)
	r.With(middleware.RequireRole(h.validator, middleware.RoleChief, h.logger)).
		Put("/{id}/decide", h.decide)
	return r
}

type locationDTO struct {
	Province     string `json:"province"`
	District     string `json:"district"`
	Municipality string `json:"municipality"`
	Ward         int    `json:"ward"`
	Tole         string `json:"tole"`
}

type sizeDTO struct {
	Bigha  int `json:"bigha"`
	Kattha int `json:"kattha"`
	Dhur   int `json:"dhur"`
}

type createRequestBody struct {
	RequestType        string      `json:"requestType"`
	WalletAddress      string      `json:"walletAddress"`
	OwnerName          string      `json:"ownerName"`
	Location           locationDTO `json:"location"`
	Size               sizeDTO     `json:"size"`
	ParcelID           string      `json:"parcelId"`
	ToWallet           string      `json:"toWallet"`
	ToName             string      `json:"toName"`
	PaymentTxSignature string      `json:"paymentTxSignature"`
	TokenEscrowTxSig   string      `json:"tokenEscrowTxSignature"`
}

type requestDTO struct {
	ID                  string      `json:"id"`
	RequestType         string      `json:"requestType"`
	Status              string      `json:"status"`
	WalletAddress       string      `json:"walletAddress"`
	OwnerName           string      `json:"ownerName"`
	Location            locationDTO `json:"location,omitempty"`
	Size                sizeDTO     `json:"size,omitempty"`
	ParcelID            string      `json:"parcelId,omitempty"`
	ToWallet            string      `json:"toWallet,omitempty"`
	ToName              string      `json:"toName,omitempty"`
	CitizenTxSig        string      `json:"citizenTxSig,omitempty"`
	OfficerTxSig        string      `json:"officerProposalTxSig,omitempty"`
	ChiefTxSig          string      `json:"chiefDecisionTxSig,omitempty"`
	ReconciliationState string      `json:"reconciliationState"`
	CreatedAt           time.Time   `json:"createdAt"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var body createRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "malformed request body"))
		return
	}

	req, err := h.service.Create(r.Context(), service.CreateParams{
		Type:            request.Type(body.RequestType),
		SubmitterWallet: body.WalletAddress,
		SubmitterName:   body.OwnerName,
		Location: request.Location{
			Province:     body.Location.Province,
			District:     body.Location.District,
			Municipality: body.Location.Municipality,
			Ward:         body.Location.Ward,
			Tole:         body.Location.Tole,
		},
		Size: request.Size{
			Bigha:  body.Size.Bigha,
			Kattha: body.Size.Kattha,
			Dhur:   body.Size.Dhur,
		},
		TargetParcelID:  body.ParcelID,
		RecipientWallet: body.ToWallet,
		RecipientName:   body.ToName,
		CitizenFeeProof: body.PaymentTxSignature,
		TokenEscrowRef:  body.TokenEscrowTxSig,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toDTO(req))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.service.List(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	dtos := make([]requestDTO, 0, len(reqs))
	for _, req := range reqs {
		dtos = append(dtos, toDTO(req))
	}
	shared.WriteJSON(w, http.StatusOK, dtos)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	req, err := h.service.Get(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toDTO(req))
}

type proposeBody struct {
	PaymentTxSignature string `json:"paymentTxSignature"`
}

func (h *Handler) propose(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var body proposeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "malformed request body"))
		return
	}
	req, err := h.service.Propose(r.Context(), id, body.PaymentTxSignature)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toDTO(req))
}

type decideBody struct {
	Status             string `json:"status"`
	PaymentTxSignature string `json:"paymentTxSignature"`
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var body decideBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "malformed request body"))
		return
	}
	req, err := h.service.Decide(r.Context(), id, request.Status(body.Status), body.PaymentTxSignature)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toDTO(req))
}

func toDTO(req *request.Request) requestDTO {
	dto := requestDTO{
		ID:            req.ID.String(),
		RequestType:   string(req.Type),
		Status:        string(req.Status),
		WalletAddress: req.SubmitterWallet,
		OwnerName:     req.SubmitterName,
		Location: locationDTO{
			Province:     req.Location.Province,
			District:     req.Location.District,
			Municipality: req.Location.Municipality,
			Ward:         req.Location.Ward,
			Tole:         req.Location.Tole,
		},
		Size: sizeDTO{
			Bigha:  req.Size.Bigha,
			Kattha: req.Size.Kattha,
			Dhur:   req.Size.Dhur,
		},
		ToWallet:            req.RecipientWallet,
		ToName:              req.RecipientName,
		CitizenTxSig:        req.CitizenFeeProof,
		OfficerTxSig:        req.OfficerFeeProof,
		ChiefTxSig:          req.ChiefFeeProof,
		ReconciliationState: string(req.ReconciliationState),
		CreatedAt:           req.CreatedAt,
	}
	if !req.TargetParcelID.IsNil() {
		dto.ParcelID = req.TargetParcelID.String()
	}
	return dto
}
