package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Coritp27/sysga-sub001/internal/card"
	"github.com/Coritp27/sysga-sub001/internal/ledger"
	"github.com/Coritp27/sysga-sub001/internal/platform/middleware"
	"github.com/Coritp27/sysga-sub001/internal/verify"
)

type staticValidator struct {
	claims middleware.JWTClaims
}

func (v *staticValidator) ValidateToken(string) (*middleware.JWTClaims, error) {
	claims := v.claims
	return &claims, nil
}

func newTestRouter(t *testing.T) (http.Handler, *card.InMemoryStore, *ledger.FakeClient) {
	t.Helper()

	store := card.NewInMemory()
	store.SeedOrganization(card.Organization{ID: 1, Name: "Acme Health", LedgerAddress: "0xabc"})
	chain := ledger.NewFakeClient()

	verifier, err := verify.New(store, chain)
	require.NoError(t, err)

	validator := &staticValidator{claims: middleware.JWTClaims{
		Principal:      "agent@insurer.example",
		OrganizationID: 1,
	}}

	r := chi.NewRouter()
	New(verifier, slog.Default(), nil, validator).Register(r)
	return r, store, chain
}

func get(router http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer test-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func seedVerifiedCard(t *testing.T, store *card.InMemoryStore, chain *ledger.FakeClient, number string) {
	t.Helper()

	entry := chain.Seed("0xabc", ledger.Entry{CardNumber: number, Status: "active"})
	_, err := store.CreateWithRef(context.Background(),
		&card.Card{CardNumber: number, Status: card.StatusActive, OrganizationID: 1},
		&card.LedgerReference{LedgerID: entry.ID, CardNumber: number, OrganizationAddress: "0xabc"})
	require.NoError(t, err)
}

func TestVerifyEndpoint(t *testing.T) {
	router, store, chain := newTestRouter(t)
	seedVerifiedCard(t, store, chain, "CARD-1")

	rec := get(router, "/verification?term=CARD-1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var response struct {
		Verdict    string `json:"verdict"`
		CardNumber string `json:"card_number"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "VERIFIED", response.Verdict)
	assert.Equal(t, "CARD-1", response.CardNumber)
}

func TestVerifyEndpoint_MissingTerm(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := get(router, "/verification")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyEndpoint_RequiresAuth(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/verification?term=CARD-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVerifyEndpoint_LedgerUnreachable(t *testing.T) {
	router, store, chain := newTestRouter(t)
	seedVerifiedCard(t, store, chain, "CARD-1")
	chain.FailList = true

	rec := get(router, "/verification?term=CARD-1")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "ledger_unreachable")
}

func TestReconcileEndpoint(t *testing.T) {
	router, store, chain := newTestRouter(t)
	seedVerifiedCard(t, store, chain, "CARD-1")
	chain.Seed("0xabc", ledger.Entry{CardNumber: "CARD-ORPHAN", Status: "active"})

	rec := get(router, "/verification/report/1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report verify.ReconciliationReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, int64(1), report.OrganizationID)
	require.Len(t, report.Results, 1)
	assert.Equal(t, verify.VerdictVerified, report.Results[0].Verdict)
	require.Len(t, report.LedgerOrphans, 1)
	assert.Equal(t, "CARD-ORPHAN", report.LedgerOrphans[0].CardNumber)
}

func TestReconcileEndpoint_DefaultsToCallerOrganization(t *testing.T) {
	router, store, chain := newTestRouter(t)
	seedVerifiedCard(t, store, chain, "CARD-1")

	rec := get(router, "/verification/report")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestReconcileEndpoint_BadOrganizationID(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := get(router, "/verification/report/nope")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
