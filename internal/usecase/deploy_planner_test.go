package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"dropforge/internal/domain"
)

type memoryOperationStore struct {
	mu        sync.Mutex
	completed map[string]string
	marks     map[string]int
}

func newMemoryOperationStore() *memoryOperationStore {
	return &memoryOperationStore{
		completed: make(map[string]string),
		marks:     make(map[string]int),
	}
}

func (s *memoryOperationStore) CompletedKeys(ctx context.Context, campaignID string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.completed))
	for key, confirmation := range s.completed {
		out[key] = confirmation
	}
	return out, nil
}

func (s *memoryOperationStore) MarkCompleted(ctx context.Context, ops []domain.Operation, confirmationID string, confirmedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, op := range ops {
		key := op.Key()
		s.marks[key]++
		if _, done := s.completed[key]; !done {
			s.completed[key] = confirmationID
		}
	}
	return nil
}

type stubLedger struct {
	mu               sync.Mutex
	accounts         map[string]uint64
	tokenSeq         int
	submits          int
	failFirstSubmits int
	failAfterSubmits int
	rejectFirst      int
	submissions      map[string]domain.BatchSubmission
	tokensSeen       []domain.SequencingToken
}

func newStubLedger() *stubLedger {
	return &stubLedger{
		accounts:    make(map[string]uint64),
		submissions: make(map[string]domain.BatchSubmission),
	}
}

func (l *stubLedger) LatestToken(ctx context.Context) (domain.SequencingToken, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tokenSeq++
	return domain.SequencingToken(fmt.Sprintf("tok-%d", l.tokenSeq)), nil
}

func (l *stubLedger) Submit(ctx context.Context, sub domain.BatchSubmission) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.submits++
	l.tokensSeen = append(l.tokensSeen, sub.Token)
	if l.submits <= l.failFirstSubmits {
		return "", errors.New("ledger unavailable")
	}
	if l.failAfterSubmits > 0 && l.submits > l.failAfterSubmits {
		return "", errors.New("ledger unavailable")
	}
	id := fmt.Sprintf("sub-%d", l.submits)
	l.submissions[id] = sub
	return id, nil
}

func (l *stubLedger) Confirmation(ctx context.Context, submissionID string) (domain.ConfirmationStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.rejectFirst > 0 {
		l.rejectFirst--
		return domain.ConfirmationFailed, nil
	}
	return domain.ConfirmationConfirmed, nil
}

func (l *stubLedger) AccountExists(ctx context.Context, address string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.accounts[address]
	return ok, nil
}

func (l *stubLedger) AccountBalance(ctx context.Context, address string) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.accounts[address], nil
}

// compileFixture persists a two-cohort campaign with one vault per cohort:
// twelve desired operations across the five tiers.
func compileFixture(t *testing.T, store *memoryCampaignStore) domain.Campaign {
	t.Helper()
	resp, err := compileUC(store).Execute(context.Background(), CompileCampaignRequest{
		Asset:          "asset-1",
		Admin:          "admin-1",
		Decimals:       0,
		Budget:         100_000,
		TreeShape:      domain.TreeWide,
		PerVaultTarget: 100,
		Cohorts: []CohortInput{
			{Name: "early", AmountPerEntitlement: decimal.NewFromInt(100)},
			{Name: "late", AmountPerEntitlement: decimal.NewFromInt(3)},
		},
		Claimants: []ClaimantInput{
			claimantInput("early", 0x01, 2),
			claimantInput("early", 0x02, 5),
			claimantInput("early", 0x03, 1),
			claimantInput("late", 0x04, 10),
			claimantInput("late", 0x05, 20),
		},
	})
	if err != nil {
		t.Fatalf("compile fixture: %v", err)
	}
	return resp.Campaign
}

const fixtureOperationCount = 12

func TestDeployPlanner_FreshCampaignPlansEverything(t *testing.T) {
	store := &memoryCampaignStore{}
	campaign := compileFixture(t, store)
	planner := &DeployPlanner{Store: store, Ops: newMemoryOperationStore(), Ledger: newStubLedger()}

	plan, err := planner.Plan(context.Background(), campaign.Fingerprint)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(plan.Operations) != fixtureOperationCount {
		t.Fatalf("expected %d operations, got %d", fixtureOperationCount, len(plan.Operations))
	}
	for i := 1; i < len(plan.Operations); i++ {
		if plan.Operations[i].Tier < plan.Operations[i-1].Tier {
			t.Fatalf("operations out of tier order at %d", i)
		}
	}
	kinds := make(map[domain.OperationKind]int)
	for _, op := range plan.Operations {
		kinds[op.Kind]++
	}
	want := map[domain.OperationKind]int{
		domain.OpCreateCampaign:   1,
		domain.OpCreateCohort:     2,
		domain.OpCreateVault:      2,
		domain.OpFundVault:        2,
		domain.OpRegisterVault:    2,
		domain.OpActivateCohort:   2,
		domain.OpActivateCampaign: 1,
	}
	for kind, count := range want {
		if kinds[kind] != count {
			t.Fatalf("expected %d %s operations, got %d", count, kind, kinds[kind])
		}
	}
}

func TestDeployPlanner_FullyDeployedYieldsEmptyPlan(t *testing.T) {
	store := &memoryCampaignStore{}
	campaign := compileFixture(t, store)
	ops := newMemoryOperationStore()
	planner := &DeployPlanner{Store: store, Ops: ops, Ledger: newStubLedger()}

	plan, err := planner.Plan(context.Background(), campaign.Fingerprint)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if err := ops.MarkCompleted(context.Background(), plan.Operations, "conf-1", time.Now()); err != nil {
		t.Fatalf("mark completed: %v", err)
	}

	replanned, err := planner.Plan(context.Background(), campaign.Fingerprint)
	if err != nil {
		t.Fatalf("replan: %v", err)
	}
	if len(replanned.Operations) != 0 {
		t.Fatalf("expected empty plan, got %d operations", len(replanned.Operations))
	}
}

func TestDeployPlanner_LedgerStateCountsAsDone(t *testing.T) {
	store := &memoryCampaignStore{}
	campaign := compileFixture(t, store)
	ledger := newStubLedger()
	planner := &DeployPlanner{Store: store, Ops: newMemoryOperationStore(), Ledger: ledger}

	// The campaign account exists on the ledger and one vault already holds
	// its full funding, with no local completion markers for either.
	cohorts, err := store.Cohorts(context.Background(), campaign.ID)
	if err != nil {
		t.Fatalf("cohorts: %v", err)
	}
	vaults, err := store.Vaults(context.Background(), cohorts[0].ID)
	if err != nil {
		t.Fatalf("vaults: %v", err)
	}
	ledger.accounts[campaign.Address] = 0
	ledger.accounts[vaults[0].Address] = vaults[0].RequiredFunding

	plan, err := planner.Plan(context.Background(), campaign.Fingerprint)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	for _, op := range plan.Operations {
		if op.Kind == domain.OpCreateCampaign {
			t.Fatalf("planned create for a campaign account that already exists")
		}
		if op.Kind == domain.OpCreateVault && op.TargetRef == vaults[0].Address {
			t.Fatalf("planned create for a vault account that already exists")
		}
		if op.Kind == domain.OpFundVault && op.TargetRef == vaults[0].Address {
			t.Fatalf("planned funding for a vault already funded on the ledger")
		}
	}
	if len(plan.Operations) != fixtureOperationCount-3 {
		t.Fatalf("expected %d operations, got %d", fixtureOperationCount-3, len(plan.Operations))
	}
}

func TestDeployPlanner_UnknownFingerprint(t *testing.T) {
	planner := &DeployPlanner{Store: &memoryCampaignStore{}, Ops: newMemoryOperationStore(), Ledger: newStubLedger()}
	_, err := planner.Plan(context.Background(), []byte{0xde, 0xad})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
