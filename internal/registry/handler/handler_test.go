package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"jagga/internal/ledger"
	"jagga/internal/payment"
	"jagga/internal/registry"
	regservice "jagga/internal/registry/service"
	"jagga/internal/registry/store"
	"jagga/internal/request"
	"jagga/internal/request/service"
	reqstore "jagga/internal/request/store"
	"jagga/pkg/domain"
)

type stubLedger struct{}

func (stubLedger) Configured() bool        { return false }
func (stubLedger) AuthorityWallet() string { return "" }
func (stubLedger) MintTitleToken(context.Context, string, ledger.TokenMetadata) (ledger.Ref, ledger.Ref) {
	return ledger.Ref{}, ledger.Degraded()
}
func (stubLedger) TransferTitleToken(context.Context, string, string, string) ledger.Ref {
	return ledger.Degraded()
}
func (stubLedger) WriteMemo(context.Context, string) ledger.Ref { return ledger.Degraded() }

type memoSink struct{}

func (memoSink) WriteMemo(context.Context, string) ledger.Ref { return ledger.Confirmed("memoSig") }

type nopReconciler struct{}

func (nopReconciler) ReconcileDecision(context.Context, *request.Request) error { return nil }

type ParcelHandlerSuite struct {
	suite.Suite
	parcels *store.InMemoryStore
	server  *httptest.Server
}

func TestParcelHandlerSuite(t *testing.T) {
	suite.Run(t, new(ParcelHandlerSuite))
}

func (s *ParcelHandlerSuite) SetupTest() {
	s.parcels = store.NewInMemoryStore()
	requests := reqstore.NewInMemoryStore()

	parcelSvc := regservice.New(s.parcels, stubLedger{}, requests, slog.Default())
	gate := payment.NewGate(100, 200, 300, "Treasury")
	requestSvc := service.New(requests, gate, memoSink{}, nopReconciler{}, slog.Default())

	h := New(parcelSvc, requestSvc, slog.Default())
	r := chi.NewRouter()
	r.Mount("/parcels", h.Routes())
	r.Get("/stats", h.Stats)
	s.server = httptest.NewServer(r)
}

func (s *ParcelHandlerSuite) TearDownTest() {
	s.server.Close()
}

func (s *ParcelHandlerSuite) get(path string) (*http.Response, []byte) {
	resp, err := http.Get(s.server.URL + path)
	s.Require().NoError(err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	return resp, raw
}

func (s *ParcelHandlerSuite) seedParcel() *registry.Parcel {
	p := &registry.Parcel{
		ID:           domain.NewParcelID(),
		TitleNo:      7,
		OwnerName:    "Maya Gurung",
		OwnerWallet:  "OwnerWa11et",
		LedgerTx:     ledger.Confirmed("mintSig"),
		TokenRef:     "MintAddr",
		CitizenTxSig: "citizenSig",
		OfficerTxSig: "officerSig",
		ChiefTxSig:   "chiefSig",
		Status:       registry.StatusRegistered,
	}
	s.Require().NoError(s.parcels.Create(context.Background(), p))
	return p
}

func (s *ParcelHandlerSuite) TestGet() {
	p := s.seedParcel()

	resp, raw := s.get("/parcels/" + p.ID.String())
	s.Equal(http.StatusOK, resp.StatusCode)

	var dto map[string]any
	s.Require().NoError(json.Unmarshal(raw, &dto))
	s.EqualValues(7, dto["titleNo"])
	s.Equal("confirmed", dto["ledgerTxState"])
	s.Equal("mintSig", dto["ledgerTxRef"])

	s.Run("404 for an unknown parcel", func() {
		resp, _ := s.get("/parcels/" + domain.NewParcelID().String())
		s.Equal(http.StatusNotFound, resp.StatusCode)
	})

	s.Run("400 for a malformed id", func() {
		resp, _ := s.get("/parcels/not-a-uuid")
		s.Equal(http.StatusBadRequest, resp.StatusCode)
	})
}

func (s *ParcelHandlerSuite) TestListByOwner() {
	p := s.seedParcel()

	resp, raw := s.get("/parcels/owner/OwnerWa11et")
	s.Equal(http.StatusOK, resp.StatusCode)

	var dtos []map[string]any
	s.Require().NoError(json.Unmarshal(raw, &dtos))
	s.Require().Len(dtos, 1)
	s.Equal(p.ID.String(), dtos[0]["id"])

	resp, raw = s.get("/parcels/owner/NobodyWa11et")
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Require().NoError(json.Unmarshal(raw, &dtos))
	s.Empty(dtos)
}

func (s *ParcelHandlerSuite) TestProvenance() {
	p := s.seedParcel()

	resp, raw := s.get("/parcels/" + p.ID.String() + "/provenance")
	s.Equal(http.StatusOK, resp.StatusCode)

	var prov map[string]string
	s.Require().NoError(json.Unmarshal(raw, &prov))
	s.Equal("citizenSig", prov["citizenTxSig"])
	s.Equal("officerSig", prov["officerProposalTxSig"])
	s.Equal("chiefSig", prov["chiefDecisionTxSig"])
}

func (s *ParcelHandlerSuite) TestStats() {
	s.seedParcel()

	resp, raw := s.get("/stats")
	s.Equal(http.StatusOK, resp.StatusCode)

	var stats map[string]int
	s.Require().NoError(json.Unmarshal(raw, &stats))
	s.Equal(1, stats["registeredParcels"])
	s.Equal(0, stats["pendingRequests"])
}
