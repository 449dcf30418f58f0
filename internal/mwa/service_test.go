package mwa

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akarpov/svsim/internal/approval"
	"github.com/akarpov/svsim/internal/errs"
	"github.com/akarpov/svsim/internal/event"
	"github.com/akarpov/svsim/internal/model"
	"github.com/akarpov/svsim/internal/storage"
	"github.com/akarpov/svsim/internal/tracker"
	"github.com/akarpov/svsim/internal/vault"
)

type fixture struct {
	vault   *vault.Vault
	tracker *tracker.Tracker
	service *Service
}

// newFixture wires a real vault, tracker and approval simulator together.
// approvalOpts controls the simulated user; the default always approves
// instantly.
func newFixture(t *testing.T, approvalOpts approval.Options) *fixture {
	t.Helper()
	ctx := context.Background()

	v := vault.New(storage.NewMemStore(), nil)
	t.Cleanup(v.Close)
	require.NoError(t, v.Initialize(ctx, model.VaultConfig{}))
	require.NoError(t, v.Unlock(ctx, []byte("pw1234")))

	if approvalOpts.Delay <= 0 {
		approvalOpts.Delay = 10 * time.Millisecond
	}
	if approvalOpts.Rand == nil {
		approvalOpts.Rand = rand.New(rand.NewSource(1))
	}
	ap := approval.NewSimulator(approvalOpts, nil)
	t.Cleanup(ap.Close)

	tr := tracker.New(tracker.Options{}, nil)
	svc := NewService(v, tr, ap, Options{IdleTimeout: time.Minute}, nil)
	t.Cleanup(svc.Close)

	return &fixture{vault: v, tracker: tr, service: svc}
}

func (f *fixture) addWallet(t *testing.T) *model.Wallet {
	t.Helper()
	w, err := f.vault.GenerateWallet(context.Background(), model.WalletProfile{
		Name:           "primary",
		DerivationPath: "m/44'/501'/0'/0'/0'",
		Network:        "devnet",
	})
	require.NoError(t, err)
	return w
}

func (f *fixture) authorizedSession(t *testing.T) *model.Session {
	t.Helper()
	session, err := f.service.Connect("dapp.test")
	require.NoError(t, err)
	_, err = f.service.Authorize(session.ID, model.AuthorizeRequest{Permissions: []string{"sign"}})
	require.NoError(t, err)
	return session
}

func validTransferTx(t *testing.T, w *model.Wallet) *model.Transaction {
	t.Helper()
	tx, err := model.NewTransfer(w.PublicKey, w.PublicKey, 1000)
	require.NoError(t, err)
	tx.RecentBlockhash = "9sHcv6xwn9YkB8nxTUGKDwPwNnmqVp5oAXxU8Fdkm4J6"
	return tx
}

func TestConnectRejectsBlankDApp(t *testing.T) {
	f := newFixture(t, approval.Options{ApproveAll: true})

	for _, id := range []string{"", "   "} {
		_, err := f.service.Connect(id)
		require.Error(t, err)
		assert.Equal(t, errs.InvalidRequest, errs.CodeOf(err))
	}
}

func TestAuthorizeRequiresSessionAndWallet(t *testing.T) {
	f := newFixture(t, approval.Options{ApproveAll: true})

	_, err := f.service.Authorize("missing", model.AuthorizeRequest{})
	require.Error(t, err)
	assert.Equal(t, errs.SessionNotFound, errs.CodeOf(err))

	session, err := f.service.Connect("dapp.test")
	require.NoError(t, err)

	_, err = f.service.Authorize(session.ID, model.AuthorizeRequest{})
	require.Error(t, err)
	assert.Equal(t, errs.NoWalletsAvailable, errs.CodeOf(err))
}

func TestAuthorizeBindsFirstWallet(t *testing.T) {
	f := newFixture(t, approval.Options{ApproveAll: true})
	first := f.addWallet(t)
	f.addWallet(t)

	session, err := f.service.Connect("dapp.test")
	require.NoError(t, err)

	res, err := f.service.Authorize(session.ID, model.AuthorizeRequest{Permissions: []string{"sign"}})
	require.NoError(t, err)
	assert.Equal(t, first.ID, res.WalletID)
	assert.Equal(t, first.PublicKey, res.PublicKey)

	got, err := f.service.GetSession(session.ID)
	require.NoError(t, err)
	assert.True(t, got.Authorized)
	assert.Equal(t, []string{"sign"}, got.Permissions)
}

func TestSignTransactionsRequiresAuthorization(t *testing.T) {
	f := newFixture(t, approval.Options{ApproveAll: true})
	w := f.addWallet(t)

	session, err := f.service.Connect("dapp.test")
	require.NoError(t, err)

	_, err = f.service.SignTransactions(context.Background(), session.ID, []*model.Transaction{validTransferTx(t, w)}, true)
	require.Error(t, err)
	assert.Equal(t, errs.SessionNotAuthorized, errs.CodeOf(err))

	_, err = f.service.SignTransactions(context.Background(), "missing", []*model.Transaction{validTransferTx(t, w)}, true)
	require.Error(t, err)
	assert.Equal(t, errs.SessionNotFound, errs.CodeOf(err))
}

func TestSignTransactionsRejectsEmptyBatch(t *testing.T) {
	f := newFixture(t, approval.Options{ApproveAll: true})
	f.addWallet(t)
	session := f.authorizedSession(t)

	_, err := f.service.SignTransactions(context.Background(), session.ID, nil, true)
	require.Error(t, err)
	assert.Equal(t, errs.InvalidRequest, errs.CodeOf(err))

	_, err = f.service.SignMessages(context.Background(), session.ID, nil, true)
	require.Error(t, err)
	assert.Equal(t, errs.InvalidRequest, errs.CodeOf(err))
}

func TestBatchFailuresStayInOrder(t *testing.T) {
	f := newFixture(t, approval.Options{ApproveAll: true})
	w := f.addWallet(t)
	session := f.authorizedSession(t)

	invalid := &model.Transaction{}
	valid := validTransferTx(t, w)

	results, err := f.service.SignTransactions(context.Background(), session.ID, []*model.Transaction{invalid, valid}, true)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.False(t, results[0].Signed())
	assert.Equal(t, string(errs.TransactionValidationFailed), results[0].ErrorCode)
	assert.True(t, results[1].Signed())
}

// Scenario: authorized session signs one valid transfer with autoApprove;
// the tracker ends with exactly one signed entry carrying the signature.
func TestSignTransactionsHappyPath(t *testing.T) {
	f := newFixture(t, approval.Options{ApproveAll: true})
	w := f.addWallet(t)
	session := f.authorizedSession(t)

	results, err := f.service.SignTransactions(context.Background(), session.ID, []*model.Transaction{validTransferTx(t, w)}, true)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.True(t, results[0].Signed())

	signed := model.StatusSigned
	entries := f.tracker.Query(model.LogQuery{Status: &signed})
	require.Len(t, entries, 1)
	assert.Equal(t, results[0].Signature, entries[0].Signature)
	assert.Equal(t, w.ID, entries[0].WalletID)
	assert.Equal(t, "dapp.test", entries[0].DApp)
	assert.Equal(t, model.TypeTransfer, entries[0].Metadata.Type)
}

// Scenario: the simulated user rejects; the result mentions rejection, the
// tracker entry is rejected and no signature is recorded.
func TestSignTransactionsUserRejection(t *testing.T) {
	f := newFixture(t, approval.Options{
		Delay:             10 * time.Millisecond,
		BaseRejectionRate: 1.0,
		RiskWeight:        0.01,
	})
	w := f.addWallet(t)
	session := f.authorizedSession(t)

	results, err := f.service.SignTransactions(context.Background(), session.ID, []*model.Transaction{validTransferTx(t, w)}, false)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.False(t, results[0].Signed())
	assert.Contains(t, results[0].Error, "rejected")
	assert.Equal(t, string(errs.TransactionRejected), results[0].ErrorCode)

	entry, err := f.tracker.Get(results[0].TrackingID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, entry.Status)
	assert.Empty(t, entry.Signature)
	require.NotNil(t, entry.RejectedAt)
}

func TestSignTransactionsVaultFailureIsPerItem(t *testing.T) {
	f := newFixture(t, approval.Options{ApproveAll: true})
	w := f.addWallet(t)
	session := f.authorizedSession(t)

	// Locking the vault between authorize and sign makes the vault call
	// fail; the batch itself must still return a result.
	require.NoError(t, f.vault.Lock(context.Background()))

	results, err := f.service.SignTransactions(context.Background(), session.ID, []*model.Transaction{validTransferTx(t, w)}, true)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.False(t, results[0].Signed())
	assert.Equal(t, string(errs.VaultLocked), results[0].ErrorCode)

	entry, err := f.tracker.Get(results[0].TrackingID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSigningFailed, entry.Status)
	assert.NotEmpty(t, entry.Error)
}

func TestSignMessages(t *testing.T) {
	f := newFixture(t, approval.Options{ApproveAll: true})
	f.addWallet(t)
	session := f.authorizedSession(t)

	results, err := f.service.SignMessages(context.Background(), session.ID,
		[][]byte{[]byte("hello"), nil}, true)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.True(t, results[0].Signed())
	assert.False(t, results[1].Signed())
	assert.Equal(t, string(errs.TransactionValidationFailed), results[1].ErrorCode)

	msgType := model.TypeMessage
	entries := f.tracker.Query(model.LogQuery{Type: &msgType})
	require.Len(t, entries, 1)
	assert.Equal(t, model.StatusSigned, entries[0].Status)
}

func TestSessionsListedByConnectionTime(t *testing.T) {
	f := newFixture(t, approval.Options{ApproveAll: true})

	first, err := f.service.Connect("dapp.first")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := f.service.Connect("dapp.second")
	require.NoError(t, err)

	sessions := f.service.Sessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, first.ID, sessions[0].ID)
	assert.Equal(t, second.ID, sessions[1].ID)
}

func TestDisconnectIsIdempotent(t *testing.T) {
	f := newFixture(t, approval.Options{ApproveAll: true})

	session, err := f.service.Connect("dapp.test")
	require.NoError(t, err)

	f.service.Disconnect(session.ID)
	f.service.Disconnect(session.ID)

	_, err = f.service.GetSession(session.ID)
	require.Error(t, err)
	assert.Equal(t, errs.SessionNotFound, errs.CodeOf(err))
}

func TestIdleTimeoutDisconnects(t *testing.T) {
	f := newFixture(t, approval.Options{ApproveAll: true})
	f.service.opts.IdleTimeout = 30 * time.Millisecond

	session, err := f.service.Connect("dapp.test")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := f.service.GetSession(session.ID)
		return errs.CodeOf(err) == errs.SessionNotFound
	}, time.Second, 5*time.Millisecond)
}

func TestServiceEmitsSessionEvents(t *testing.T) {
	f := newFixture(t, approval.Options{ApproveAll: true})
	f.addWallet(t)

	var types []event.Type
	cancel := f.service.Subscribe(func(ev event.Event) {
		types = append(types, ev.Type)
	})
	defer cancel()

	session, err := f.service.Connect("dapp.test")
	require.NoError(t, err)
	_, err = f.service.Authorize(session.ID, model.AuthorizeRequest{})
	require.NoError(t, err)
	f.service.Disconnect(session.ID)

	assert.Equal(t, []event.Type{EventSessionConnected, EventSessionAuthorized, EventSessionDisconnected}, types)
}
