package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akarpov/svsim/internal/api"
	"github.com/akarpov/svsim/internal/approval"
	"github.com/akarpov/svsim/internal/device"
	"github.com/akarpov/svsim/internal/handler"
	"github.com/akarpov/svsim/internal/model"
	"github.com/akarpov/svsim/internal/mwa"
	"github.com/akarpov/svsim/internal/storage"
	"github.com/akarpov/svsim/internal/tracker"
	"github.com/akarpov/svsim/internal/vault"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	server, v := newUninitializedServer(t)
	require.NoError(t, v.Initialize(context.Background(), model.VaultConfig{}))
	return server
}

func newUninitializedServer(t *testing.T) (*httptest.Server, *vault.Vault) {
	t.Helper()

	v := vault.New(storage.NewMemStore(), nil)
	t.Cleanup(v.Close)

	ap := approval.NewSimulator(approval.Options{
		Delay:      10 * time.Millisecond,
		ApproveAll: true,
		Rand:       rand.New(rand.NewSource(1)),
	}, nil)
	t.Cleanup(ap.Close)

	tr := tracker.New(tracker.Options{}, nil)
	svc := mwa.NewService(v, tr, ap, mwa.Options{IdleTimeout: time.Minute}, nil)
	t.Cleanup(svc.Close)

	h := handler.New(v, svc, tr, ap, device.NewOrchestrator(nil), nil)
	server := httptest.NewServer(api.SetupRouter(h))
	t.Cleanup(server.Close)
	return server, v
}

func doJSON(t *testing.T, method, url string, body any, out any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestFacadeFullSigningFlow(t *testing.T) {
	server := newTestServer(t)

	// Wallet creation is rejected while locked.
	resp := doJSON(t, http.MethodPost, server.URL+"/wallets", model.CreateWalletRequest{Name: "w"}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, server.URL+"/vault/unlock", model.UnlockVaultRequest{Password: "pw1234"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var wallet model.WalletResponse
	resp = doJSON(t, http.MethodPost, server.URL+"/wallets", model.CreateWalletRequest{
		Name:           "primary",
		DerivationPath: "m/44'/501'/0'/0'/0'",
		Network:        "devnet",
	}, &wallet)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, wallet.PublicKey)

	var connected model.ConnectResponse
	resp = doJSON(t, http.MethodPost, server.URL+"/sessions/connect", model.ConnectRequest{DApp: "dapp.test"}, &connected)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var authorized model.AuthorizeResult
	resp = doJSON(t, http.MethodPost, server.URL+"/sessions/authorize?session="+connected.SessionID,
		model.AuthorizeRequest{Permissions: []string{"sign"}}, &authorized)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, wallet.ID, authorized.WalletID)

	tx, err := model.NewTransfer(authorized.PublicKey, authorized.PublicKey, 500)
	require.NoError(t, err)
	tx.RecentBlockhash = "9sHcv6xwn9YkB8nxTUGKDwPwNnmqVp5oAXxU8Fdkm4J6"

	var signed model.SignResponse
	resp = doJSON(t, http.MethodPost, server.URL+"/sessions/sign-transactions?session="+connected.SessionID,
		model.SignTransactionsRequest{Transactions: []*model.Transaction{tx}, AutoApprove: true}, &signed)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, signed.Results, 1)
	assert.True(t, signed.Results[0].Signed())

	var logResp model.LogResponse
	resp = doJSON(t, http.MethodGet, server.URL+"/log?status=signed", nil, &logResp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, logResp.Total)
	assert.Equal(t, signed.Results[0].Signature, logResp.Entries[0].Signature)

	var stats model.TrackerStats
	resp = doJSON(t, http.MethodGet, server.URL+"/log/stats", nil, &stats)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, stats.Total)
	assert.InDelta(t, 1.0, stats.SuccessRate, 1e-9)
}

func TestFacadeMethodChecksAndErrors(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/vault/unlock")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	// Unknown session surfaces the taxonomy code.
	var envelope model.ErrorResponse
	resp = doJSON(t, http.MethodPost, server.URL+"/sessions/sign-transactions?session=missing",
		model.SignTransactionsRequest{Transactions: []*model.Transaction{{}}}, &envelope)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "SESSION_NOT_FOUND", envelope.Code)

	// Bad JSON body.
	req, err := http.NewRequest(http.MethodPost, server.URL+"/vault/unlock", bytes.NewBufferString("{"))
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFacadeInitializeEndpoint(t *testing.T) {
	server, _ := newUninitializedServer(t)

	// Unlock before initialize is rejected.
	var envelope model.ErrorResponse
	resp := doJSON(t, http.MethodPost, server.URL+"/vault/unlock", model.UnlockVaultRequest{Password: "pw1234"}, &envelope)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "VAULT_NOT_INITIALIZED", envelope.Code)

	var action model.VaultActionResponse
	resp = doJSON(t, http.MethodPost, server.URL+"/vault/initialize",
		model.InitializeVaultRequest{Network: "devnet", AutoLockSeconds: 60}, &action)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, action.Success)

	// Idempotent; the vault stays locked until an explicit unlock.
	resp = doJSON(t, http.MethodPost, server.URL+"/vault/initialize", model.InitializeVaultRequest{}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status model.VaultStatus
	resp = doJSON(t, http.MethodGet, server.URL+"/vault/status", nil, &status)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, status.Initialized)
	assert.True(t, status.Locked)

	resp = doJSON(t, http.MethodPost, server.URL+"/vault/unlock", model.UnlockVaultRequest{Password: "pw1234"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestFacadeStatusEndpoint(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status struct {
		Vault       model.VaultStatus `json:"vault"`
		Sessions    int               `json:"sessions"`
		DeviceReady bool              `json:"deviceReady"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.True(t, status.Vault.Locked)
	assert.Zero(t, status.Sessions)
	assert.False(t, status.DeviceReady)
}
