// Package handler serves the parcel read paths.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"jagga/internal/registry"
	regservice "jagga/internal/registry/service"
	"jagga/internal/request/service"
	"jagga/internal/transport/http/shared"
	"jagga/pkg/domain"
)

type Handler struct {
	parcels  *regservice.Service
	requests *service.Service
	logger   *slog.Logger
}

func New(parcels *regservice.Service, requests *service.Service, logger *slog.Logger) *Handler {
	return &Handler{parcels: parcels, requests: requests, logger: logger}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.list)
	r.Get("/owner/{wallet}", h.listByOwner)
	r.Get("/{id}", h.get)
	r.Get("/{id}/provenance", h.provenance)
	return r
}

type parcelDTO struct {
	ID           string `json:"id"`
	TitleNo      int64  `json:"titleNo"`
	OwnerName    string `json:"ownerName"`
	OwnerWallet  string `json:"ownerWallet"`
	Province     string `json:"province"`
	District     string `json:"district"`
	Municipality string `json:"municipality"`
	Ward         int    `json:"ward"`
	Tole         string `json:"tole"`
	Bigha        int    `json:"bigha"`
	Kattha       int    `json:"kattha"`
	Dhur         int    `json:"dhur"`

	DocumentHash string `json:"documentHash,omitempty"`
	LedgerTxRef  string `json:"ledgerTxRef,omitempty"`
	// LedgerTxState is confirmed or degraded; degraded records carry a
	// placeholder reference instead of a real signature.
	LedgerTxState string    `json:"ledgerTxState"`
	TokenRef      string    `json:"tokenRef,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	parcels, err := h.parcels.List(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toDTOs(parcels))
}

func (h *Handler) listByOwner(w http.ResponseWriter, r *http.Request) {
	parcels, err := h.parcels.ListByOwner(r.Context(), chi.URLParam(r, "wallet"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toDTOs(parcels))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseParcelID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	parcel, err := h.parcels.Get(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toDTO(parcel))
}

func (h *Handler) provenance(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseParcelID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	prov, err := h.parcels.Provenance(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, prov)
}

// Stats serves the combined queue and registry counters. Mounted at the API
// root rather than under /parcels.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.requests.Counts(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	registered, err := h.parcels.Count(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]int{
		"registeredParcels":    registered,
		"pendingRequests":      counts.Pending,
		"proposedRequests":     counts.Proposed,
		"approvedRequests":     counts.Approved,
		"pendingRegistrations": counts.PendingRegistrations,
		"pendingTransfers":     counts.PendingTransfers,
	})
}

func toDTO(p *registry.Parcel) parcelDTO {
	state := "degraded"
	if p.LedgerTx.IsConfirmed() {
		state = "confirmed"
	}
	return parcelDTO{
		ID:            p.ID.String(),
		TitleNo:       p.TitleNo,
		OwnerName:     p.OwnerName,
		OwnerWallet:   p.OwnerWallet,
		Province:      p.Location.Province,
		District:      p.Location.District,
		Municipality:  p.Location.Municipality,
		Ward:          p.Location.Ward,
		Tole:          p.Location.Tole,
		Bigha:         p.Size.Bigha,
		Kattha:        p.Size.Kattha,
		Dhur:          p.Size.Dhur,
		DocumentHash:  p.DocumentHash,
		LedgerTxRef:   p.LedgerTx.Value(),
		LedgerTxState: state,
		TokenRef:      p.TokenRef,
		Status:        p.Status,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func toDTOs(parcels []*registry.Parcel) []parcelDTO {
	dtos := make([]parcelDTO, 0, len(parcels))
	for _, p := range parcels {
		dtos = append(dtos, toDTO(p))
	}
	return dtos
}
