package approval

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akarpov/svsim/internal/errs"
	"github.com/akarpov/svsim/internal/model"
)

func lamports(v uint64) *uint64 { return &v }

func newRequest(id string, md model.TransactionMetadata) *model.ApprovalRequest {
	return &model.ApprovalRequest{
		ID:        id,
		WalletID:  "w1",
		DApp:      "dapp.test",
		Metadata:  md,
		CreatedAt: time.Now(),
	}
}

func transferMetadata(amount uint64) model.TransactionMetadata {
	return model.TransactionMetadata{
		Type:             model.TypeTransfer,
		InstructionCount: 1,
		HasSystemProgram: true,
		TransferLamports: lamports(amount),
	}
}

func testSimulator(t *testing.T, opts Options) *Simulator {
	t.Helper()
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(42))
	}
	s := NewSimulator(opts, nil)
	t.Cleanup(s.Close)
	return s
}

func TestExplicitAutoApproveWins(t *testing.T) {
	s := testSimulator(t, Options{Delay: time.Hour})

	req := newRequest("r1", model.TransactionMetadata{Type: model.TypeProgramInteraction})
	req.AutoApprove = true

	decision := s.RequestApproval(req)
	require.True(t, decision.Approved)
	assert.Equal(t, "Auto-approved", decision.Reason)
}

func TestSmallTransferAutoApproved(t *testing.T) {
	s := testSimulator(t, Options{Delay: time.Hour, AutoApproveMaxLamports: 1_000_000})

	decision := s.RequestApproval(newRequest("r1", transferMetadata(500_000)))
	require.True(t, decision.Approved)
	assert.Equal(t, "Auto-approved: small transfer", decision.Reason)
}

func TestHighValueTransferNeverSilentlyApproved(t *testing.T) {
	// Amount is under the auto-approve limit check would pass on its own,
	// but the risk gate marks it high-value, so the request must wait for
	// the simulated user.
	s := testSimulator(t, Options{
		Delay:                  50 * time.Millisecond,
		AutoApproveMaxLamports: 10_000_000_000,
		HighValueLamports:      1_000_000_000,
		ApproveAll:             true,
	})

	decision := s.RequestApproval(newRequest("r1", transferMetadata(2_000_000_000)))
	require.True(t, decision.Approved)
	assert.Equal(t, "Approved by user", decision.Reason)
	assert.False(t, decision.Manual)
}

func TestManualApproveResolvesBeforeDelay(t *testing.T) {
	s := testSimulator(t, Options{Delay: time.Hour})

	var wg sync.WaitGroup
	wg.Add(1)
	var decision model.ApprovalDecision
	go func() {
		defer wg.Done()
		decision = s.RequestApproval(newRequest("r1", transferMetadata(5_000_000_000)))
	}()

	require.Eventually(t, func() bool {
		return s.ApproveRequest("r1") == nil
	}, time.Second, 5*time.Millisecond)
	wg.Wait()

	require.True(t, decision.Approved)
	assert.True(t, decision.Manual)
}

func TestManualRejectCarriesReason(t *testing.T) {
	s := testSimulator(t, Options{Delay: time.Hour})

	var wg sync.WaitGroup
	wg.Add(1)
	var decision model.ApprovalDecision
	go func() {
		defer wg.Done()
		decision = s.RequestApproval(newRequest("r1", model.TransactionMetadata{Type: model.TypeUnknown}))
	}()

	require.Eventually(t, func() bool {
		return s.RejectRequest("r1", "looks shady") == nil
	}, time.Second, 5*time.Millisecond)
	wg.Wait()

	require.False(t, decision.Approved)
	assert.Equal(t, "looks shady", decision.Reason)
	assert.True(t, decision.Manual)
}

func TestResolveUnknownRequest(t *testing.T) {
	s := testSimulator(t, Options{Delay: time.Hour})

	err := s.ApproveRequest("nope")
	require.Error(t, err)
	assert.Equal(t, errs.RequestNotFound, errs.CodeOf(err))

	err = s.RejectRequest("nope", "")
	require.Error(t, err)
	assert.Equal(t, errs.RequestNotFound, errs.CodeOf(err))
}

func TestSimulatedDecisionIsSeedDeterministic(t *testing.T) {
	run := func(seed int64) []bool {
		s := NewSimulator(Options{
			Delay:             5 * time.Millisecond,
			BaseRejectionRate: 0.3,
			RiskWeight:        0.5,
			Rand:              rand.New(rand.NewSource(seed)),
		}, nil)
		defer s.Close()

		out := make([]bool, 0, 8)
		for i := 0; i < 8; i++ {
			d := s.RequestApproval(newRequest("r", model.TransactionMetadata{Type: model.TypeProgramInteraction}))
			out = append(out, d.Approved)
		}
		return out
	}

	first := run(7)
	second := run(7)
	assert.Equal(t, first, second)
}

func TestConcurrentRequestsResolveIndependently(t *testing.T) {
	s := testSimulator(t, Options{Delay: time.Hour})

	results := make(map[string]model.ApprovalDecision)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, id := range []string{"a", "b"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			d := s.RequestApproval(newRequest(id, model.TransactionMetadata{Type: model.TypeUnknown}))
			mu.Lock()
			results[id] = d
			mu.Unlock()
		}(id)
	}

	require.Eventually(t, func() bool {
		return len(s.Pending()) == 2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.ApproveRequest("a"))
	require.NoError(t, s.RejectRequest("b", "no"))
	wg.Wait()

	assert.True(t, results["a"].Approved)
	assert.False(t, results["b"].Approved)
}

func TestPendingListsUnresolvedRequests(t *testing.T) {
	s := testSimulator(t, Options{Delay: time.Hour})

	go s.RequestApproval(newRequest("r1", model.TransactionMetadata{Type: model.TypeUnknown}))

	require.Eventually(t, func() bool {
		p := s.Pending()
		return len(p) == 1 && p[0].ID == "r1"
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.ApproveRequest("r1"))
	require.Eventually(t, func() bool {
		return len(s.Pending()) == 0
	}, time.Second, 5*time.Millisecond)
}
