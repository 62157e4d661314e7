package matching

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"slotswap/internal/directory"
	slotsservice "slotswap/internal/slots/service"
	"slotswap/internal/slots/validator"
	"slotswap/internal/storage/memory"
	swapsservice "slotswap/internal/swaps/service"
	"slotswap/pkg/auth"
	"slotswap/pkg/config"
	apperrors "slotswap/pkg/errors"
	"slotswap/pkg/logger"
	"slotswap/pkg/model"
)

// ────────────────────────────────────────────────
// Fixture
// ────────────────────────────────────────────────

type recordingPublisher struct {
	mu     sync.Mutex
	events []SwapEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event SwapEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	t      *testing.T
	ctx    context.Context
	store  *memory.Store
	slots  slotsservice.SlotService
	ledger swapsservice.SwapLedger
	coord  Coordinator
	events *recordingPublisher
	day    int
}

func newFixture(t *testing.T, policy string) *fixture {
	t.Helper()
	return newFixtureWith(t, policy, nil)
}

// newFixtureWith lets a test wrap the slot service the coordinator sees.
func newFixtureWith(t *testing.T, policy string, wrap func(slotsservice.SlotService) slotsservice.SlotService) *fixture {
	t.Helper()
	log := logger.Discard()
	cfg := &config.Config{Log: log, SwapMaxAttempts: 3, StaleOfferPolicy: policy}
	store := memory.NewStore()
	slots := slotsservice.NewSlotService(store.SlotRepository(), validator.NewSlotValidator(log), cfg)
	ledger := swapsservice.NewSwapLedger(store.SwapRequestRepository(), cfg)
	dir := directory.New(store.SlotRepository(), auth.NewTokenIssuer("0123456789abcdef0123456789abcdef", "slotswap", time.Hour))
	events := &recordingPublisher{}

	coordSlots := slots
	if wrap != nil {
		coordSlots = wrap(slots)
	}

	return &fixture{
		t:      t,
		ctx:    context.Background(),
		store:  store,
		slots:  slots,
		ledger: ledger,
		coord:  NewCoordinator(coordSlots, ledger, store.TransactionManager(), dir, events, cfg),
		events: events,
	}
}

func (f *fixture) slot(owner string, status model.SlotStatus) *model.Slot {
	f.t.Helper()
	f.day++
	start := time.Date(2026, 3, f.day, 9, 0, 0, 0, time.UTC)
	slot, err := f.slots.Create(f.ctx, owner, &model.SlotInput{Title: "Shift", StartTime: start, EndTime: start.Add(time.Hour)})
	if err != nil {
		f.t.Fatalf("Create() error = %v", err)
	}
	if status == model.SlotSwappable {
		slot, err = f.slots.SetStatus(f.ctx, slot.ID, owner, model.SlotSwappable)
		if err != nil {
			f.t.Fatalf("SetStatus() error = %v", err)
		}
	}
	return slot
}

func (f *fixture) load(id string) *model.Slot {
	f.t.Helper()
	slot, err := f.slots.Load(f.ctx, id)
	if err != nil {
		f.t.Fatalf("Load(%s) error = %v", id, err)
	}
	return slot
}

func (f *fixture) request(id string) *model.SwapRequest {
	f.t.Helper()
	req, err := f.ledger.GetByID(f.ctx, id)
	if err != nil {
		f.t.Fatalf("GetByID(%s) error = %v", id, err)
	}
	return req
}

func (f *fixture) mustRequest(requester string, offered, requested *model.Slot) *model.SwapRequest {
	f.t.Helper()
	req, err := f.coord.RequestSwap(f.ctx, requester, offered.ID, requested.ID)
	if err != nil {
		f.t.Fatalf("RequestSwap() error = %v", err)
	}
	return req
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if !apperrors.HasCode(err, code) {
		t.Fatalf("expected code %s, got %v", code, err)
	}
}

func assertSlot(t *testing.T, slot *model.Slot, owner string, status model.SlotStatus) {
	t.Helper()
	if slot.Owner != owner || slot.Status != status {
		t.Errorf("slot %s = (%s, %s), want (%s, %s)", slot.ID, slot.Owner, slot.Status, owner, status)
	}
}

// ────────────────────────────────────────────────
// Negotiation scenarios
// ────────────────────────────────────────────────

func TestNegotiationScenarios(t *testing.T) {
	t.Run("request reserves the requested slot", func(t *testing.T) {
		f := newFixture(t, config.StaleOfferLazy)
		s1 := f.slot("u1", model.SlotSwappable)
		s2 := f.slot("u2", model.SlotSwappable)

		req := f.mustRequest("u1", s1, s2)

		if req.Status != model.SwapPending || req.ReceiverID != "u2" {
			t.Errorf("request = %s receiver %s, want PENDING receiver u2", req.Status, req.ReceiverID)
		}
		assertSlot(t, f.load(s2.ID), "u2", model.SlotSwapPending)
		assertSlot(t, f.load(s1.ID), "u1", model.SlotSwappable)
	})

	t.Run("accept exchanges owners", func(t *testing.T) {
		f := newFixture(t, config.StaleOfferLazy)
		s1 := f.slot("u1", model.SlotSwappable)
		s2 := f.slot("u2", model.SlotSwappable)
		req := f.mustRequest("u1", s1, s2)

		got, err := f.coord.Respond(f.ctx, req.ID, "u2", true)
		if err != nil {
			t.Fatalf("Respond() error = %v", err)
		}
		if got.Status != model.SwapAccepted || got.ClosedAt == nil {
			t.Errorf("request = %s closed_at %v, want ACCEPTED", got.Status, got.ClosedAt)
		}
		assertSlot(t, f.load(s1.ID), "u2", model.SlotBusy)
		assertSlot(t, f.load(s2.ID), "u1", model.SlotBusy)
	})

	t.Run("reject restores the requested slot", func(t *testing.T) {
		f := newFixture(t, config.StaleOfferLazy)
		s1 := f.slot("u1", model.SlotSwappable)
		s2 := f.slot("u2", model.SlotSwappable)
		req := f.mustRequest("u1", s1, s2)
		before := f.load(s1.ID)

		got, err := f.coord.Respond(f.ctx, req.ID, "u2", false)
		if err != nil {
			t.Fatalf("Respond() error = %v", err)
		}
		if got.Status != model.SwapRejected {
			t.Errorf("request = %s, want REJECTED", got.Status)
		}
		assertSlot(t, f.load(s2.ID), "u2", model.SlotSwappable)
		if after := f.load(s1.ID); after.Version != before.Version || after.Status != model.SlotSwappable {
			t.Errorf("offered slot changed on reject: %+v", after)
		}
	})

	t.Run("pending slot cannot be requested again", func(t *testing.T) {
		f := newFixture(t, config.StaleOfferLazy)
		s1 := f.slot("u1", model.SlotSwappable)
		s2 := f.slot("u2", model.SlotSwappable)
		s3 := f.slot("u3", model.SlotSwappable)
		f.mustRequest("u1", s1, s2)

		_, err := f.coord.RequestSwap(f.ctx, "u3", s3.ID, s2.ID)
		assertCode(t, err, apperrors.CodeValidation)
	})

	t.Run("pending slot cannot be deleted", func(t *testing.T) {
		f := newFixture(t, config.StaleOfferLazy)
		s1 := f.slot("u1", model.SlotSwappable)
		s2 := f.slot("u2", model.SlotSwappable)
		f.mustRequest("u1", s1, s2)

		assertCode(t, f.slots.Delete(f.ctx, s2.ID, "u2"), apperrors.CodeInvalidTransition)
	})
}

func TestRequestSwap_Validation(t *testing.T) {
	f := newFixture(t, config.StaleOfferLazy)
	mine := f.slot("u1", model.SlotSwappable)
	mineToo := f.slot("u1", model.SlotSwappable)
	busy := f.slot("u1", model.SlotBusy)
	theirs := f.slot("u2", model.SlotSwappable)
	theirsBusy := f.slot("u2", model.SlotBusy)

	tests := []struct {
		name      string
		requester string
		offered   string
		requested string
		wantCode  string
	}{
		{"not owner of offered slot", "u3", mine.ID, theirs.ID, apperrors.CodeForbidden},
		{"same slot", "u1", mine.ID, mine.ID, apperrors.CodeValidation},
		{"own slot", "u1", mine.ID, mineToo.ID, apperrors.CodeValidation},
		{"offered slot busy", "u1", busy.ID, theirs.ID, apperrors.CodeValidation},
		{"requested slot busy", "u1", mine.ID, theirsBusy.ID, apperrors.CodeValidation},
		{"unknown requested slot", "u1", mine.ID, "8f14e45f-ceea-467f-a0e6-6f1c4d1b1a9a", apperrors.CodeNotFound},
		{"malformed id", "u1", mine.ID, "slot-2", apperrors.CodeInvalidInput},
		{"anonymous", "", mine.ID, theirs.ID, apperrors.CodeUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.coord.RequestSwap(f.ctx, tt.requester, tt.offered, tt.requested)
			assertCode(t, err, tt.wantCode)
		})
	}

	if pending, _ := f.ledger.ListIncoming(f.ctx, "u2", model.SwapPending); len(pending) != 0 {
		t.Errorf("failed requests left %d ledger entries", len(pending))
	}
	assertSlot(t, f.load(theirs.ID), "u2", model.SlotSwappable)
}

func TestRespond_Guards(t *testing.T) {
	f := newFixture(t, config.StaleOfferLazy)
	s1 := f.slot("u1", model.SlotSwappable)
	s2 := f.slot("u2", model.SlotSwappable)
	req := f.mustRequest("u1", s1, s2)

	_, err := f.coord.Respond(f.ctx, "8f14e45f-ceea-467f-a0e6-6f1c4d1b1a9a", "u2", true)
	assertCode(t, err, apperrors.CodeNotFound)

	_, err = f.coord.Respond(f.ctx, req.ID, "u1", true)
	assertCode(t, err, apperrors.CodeForbidden)

	if f.request(req.ID).Status != model.SwapPending {
		t.Errorf("guarded respond mutated the request")
	}
}

func TestRespond_SecondAcceptIsInvalidTransition(t *testing.T) {
	f := newFixture(t, config.StaleOfferLazy)
	s1 := f.slot("u1", model.SlotSwappable)
	s2 := f.slot("u2", model.SlotSwappable)
	req := f.mustRequest("u1", s1, s2)

	if _, err := f.coord.Respond(f.ctx, req.ID, "u2", true); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	afterFirst := [2]*model.Slot{f.load(s1.ID), f.load(s2.ID)}

	for _, accept := range []bool{true, false} {
		_, err := f.coord.Respond(f.ctx, req.ID, "u2", accept)
		assertCode(t, err, apperrors.CodeInvalidTransition)
	}

	for i, id := range []string{s1.ID, s2.ID} {
		now := f.load(id)
		if now.Version != afterFirst[i].Version || now.Owner != afterFirst[i].Owner {
			t.Errorf("slot %s mutated by repeated respond", id)
		}
	}
	if f.request(req.ID).Status != model.SwapAccepted {
		t.Errorf("request status changed after second accept")
	}
}

func TestCancel(t *testing.T) {
	f := newFixture(t, config.StaleOfferLazy)
	s1 := f.slot("u1", model.SlotSwappable)
	s2 := f.slot("u2", model.SlotSwappable)
	req := f.mustRequest("u1", s1, s2)

	_, err := f.coord.Cancel(f.ctx, req.ID, "u2")
	assertCode(t, err, apperrors.CodeForbidden)

	got, err := f.coord.Cancel(f.ctx, req.ID, "u1")
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if got.Status != model.SwapCancelled {
		t.Errorf("request = %s, want CANCELLED", got.Status)
	}
	assertSlot(t, f.load(s2.ID), "u2", model.SlotSwappable)

	_, err = f.coord.Cancel(f.ctx, req.ID, "u1")
	assertCode(t, err, apperrors.CodeInvalidTransition)

	_, err = f.coord.Respond(f.ctx, req.ID, "u2", true)
	assertCode(t, err, apperrors.CodeInvalidTransition)

	// the slot is open for a new negotiation
	f.mustRequest("u1", s1, s2)
}

// ────────────────────────────────────────────────
// Stale offers
// ────────────────────────────────────────────────

func TestRespond_StaleOfferIsAutoRejected(t *testing.T) {
	f := newFixture(t, config.StaleOfferLazy)
	s1 := f.slot("u1", model.SlotSwappable)
	s2 := f.slot("u2", model.SlotSwappable)
	s3 := f.slot("u3", model.SlotSwappable)

	first := f.mustRequest("u1", s1, s2)
	second := f.mustRequest("u1", s1, s3)

	if _, err := f.coord.Respond(f.ctx, first.ID, "u2", true); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if f.request(second.ID).Status != model.SwapPending {
		t.Fatalf("lazy policy must leave the stale offer pending")
	}

	_, err := f.coord.Respond(f.ctx, second.ID, "u3", true)
	assertCode(t, err, apperrors.CodeConflict)

	if f.request(second.ID).Status != model.SwapRejected {
		t.Errorf("stale request should be rejected")
	}
	assertSlot(t, f.load(s3.ID), "u3", model.SlotSwappable)
	assertSlot(t, f.load(s1.ID), "u2", model.SlotBusy)
}

func TestRespond_DeletedOfferIsAutoRejected(t *testing.T) {
	f := newFixture(t, config.StaleOfferLazy)
	s1 := f.slot("u1", model.SlotSwappable)
	s2 := f.slot("u2", model.SlotSwappable)
	req := f.mustRequest("u1", s1, s2)

	if err := f.slots.Delete(f.ctx, s1.ID, "u1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	_, err := f.coord.Respond(f.ctx, req.ID, "u2", true)
	assertCode(t, err, apperrors.CodeConflict)
	if f.request(req.ID).Status != model.SwapRejected {
		t.Errorf("request should be rejected")
	}
	assertSlot(t, f.load(s2.ID), "u2", model.SlotSwappable)
}

func TestRespond_EagerPolicyRejectsStaleOffers(t *testing.T) {
	f := newFixture(t, config.StaleOfferEager)
	s1 := f.slot("u1", model.SlotSwappable)
	s2 := f.slot("u2", model.SlotSwappable)
	s3 := f.slot("u3", model.SlotSwappable)
	s4 := f.slot("u4", model.SlotSwappable)
	s5 := f.slot("u5", model.SlotSwappable)

	first := f.mustRequest("u1", s1, s2)
	stale := f.mustRequest("u1", s1, s3)
	unrelated := f.mustRequest("u4", s4, s5)

	if _, err := f.coord.Respond(f.ctx, first.ID, "u2", true); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}

	if f.request(stale.ID).Status != model.SwapRejected {
		t.Errorf("eager policy should reject the stale offer")
	}
	assertSlot(t, f.load(s3.ID), "u3", model.SlotSwappable)
	if f.request(unrelated.ID).Status != model.SwapPending {
		t.Errorf("unrelated request should stay pending")
	}
}

func TestInvalidateStaleOffers_KeepsLiveOffers(t *testing.T) {
	f := newFixture(t, config.StaleOfferLazy)
	s1 := f.slot("u1", model.SlotSwappable)
	s2 := f.slot("u2", model.SlotSwappable)
	s3 := f.slot("u3", model.SlotSwappable)
	live := f.mustRequest("u1", s1, s2)

	n, err := f.coord.InvalidateStaleOffers(f.ctx, s1.ID, s3.ID)
	if err != nil {
		t.Fatalf("InvalidateStaleOffers() error = %v", err)
	}
	if n != 0 || f.request(live.ID).Status != model.SwapPending {
		t.Errorf("live offer rejected, count %d", n)
	}

	if _, err := f.slots.SetStatus(f.ctx, s1.ID, "u1", model.SlotBusy); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	n, err = f.coord.InvalidateStaleOffers(f.ctx, s1.ID)
	if err != nil {
		t.Fatalf("InvalidateStaleOffers() error = %v", err)
	}
	if n != 1 || f.request(live.ID).Status != model.SwapRejected {
		t.Errorf("withdrawn offer not rejected, count %d", n)
	}
	assertSlot(t, f.load(s2.ID), "u2", model.SlotSwappable)
}

// ────────────────────────────────────────────────
// Concurrency
// ────────────────────────────────────────────────

// barrierSlots holds the first two reservations until both have arrived, so
// both callers validate against the same slot version.
type barrierSlots struct {
	slotsservice.SlotService
	arrivals atomic.Int32
	wg       sync.WaitGroup
}

func (b *barrierSlots) Reserve(ctx context.Context, slot *model.Slot) error {
	if b.arrivals.Add(1) <= 2 {
		b.wg.Done()
		b.wg.Wait()
	}
	return b.SlotService.Reserve(ctx, slot)
}

func TestRequestSwap_ConcurrentRequestsOneWins(t *testing.T) {
	barrier := &barrierSlots{}
	barrier.wg.Add(2)
	f := newFixtureWith(t, config.StaleOfferLazy, func(s slotsservice.SlotService) slotsservice.SlotService {
		barrier.SlotService = s
		return barrier
	})

	target := f.slot("u2", model.SlotSwappable)
	offers := []*model.Slot{f.slot("u1", model.SlotSwappable), f.slot("u3", model.SlotSwappable)}
	requesters := []string{"u1", "u3"}

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range offers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.coord.RequestSwap(f.ctx, requesters[i], offers[i].ID, target.ID)
		}(i)
	}
	wg.Wait()

	var won, conflicted int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case apperrors.HasCode(err, apperrors.CodeConflict):
			conflicted++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if won != 1 || conflicted != 1 {
		t.Errorf("won %d conflicted %d, want 1 and 1", won, conflicted)
	}

	pending, _ := f.ledger.ListIncoming(f.ctx, "u2", model.SwapPending)
	if len(pending) != 1 {
		t.Errorf("pending requests on target = %d, want 1", len(pending))
	}
	assertSlot(t, f.load(target.ID), "u2", model.SlotSwapPending)
}

func TestRequestSwap_ManyConcurrentRequesters(t *testing.T) {
	f := newFixture(t, config.StaleOfferLazy)
	target := f.slot("owner", model.SlotSwappable)

	const n = 16
	offers := make([]*model.Slot, n)
	for i := range offers {
		offers[i] = f.slot(string(rune('a'+i)), model.SlotSwappable)
	}

	var won atomic.Int32
	var wg sync.WaitGroup
	for i := range offers {
		wg.Add(1)
		go func(slot *model.Slot) {
			defer wg.Done()
			_, err := f.coord.RequestSwap(f.ctx, slot.Owner, slot.ID, target.ID)
			switch {
			case err == nil:
				won.Add(1)
			case apperrors.HasCode(err, apperrors.CodeConflict), apperrors.HasCode(err, apperrors.CodeValidation):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(offers[i])
	}
	wg.Wait()

	if won.Load() != 1 {
		t.Errorf("%d requests won the slot, want 1", won.Load())
	}
	pending, _ := f.ledger.ListIncoming(f.ctx, "owner", model.SwapPending)
	if len(pending) != 1 {
		t.Errorf("pending requests = %d, want 1", len(pending))
	}
}

func TestRespond_ConcurrentAcceptAndCancel(t *testing.T) {
	f := newFixture(t, config.StaleOfferLazy)
	s1 := f.slot("u1", model.SlotSwappable)
	s2 := f.slot("u2", model.SlotSwappable)
	req := f.mustRequest("u1", s1, s2)

	var acceptErr, cancelErr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, acceptErr = f.coord.Respond(f.ctx, req.ID, "u2", true)
	}()
	go func() {
		defer wg.Done()
		_, cancelErr = f.coord.Cancel(f.ctx, req.ID, "u1")
	}()
	wg.Wait()

	if (acceptErr == nil) == (cancelErr == nil) {
		t.Fatalf("exactly one of accept and cancel must win: accept=%v cancel=%v", acceptErr, cancelErr)
	}

	final := f.request(req.ID)
	a, b := f.load(s1.ID), f.load(s2.ID)
	if acceptErr == nil {
		if final.Status != model.SwapAccepted {
			t.Errorf("request = %s, want ACCEPTED", final.Status)
		}
		assertSlot(t, a, "u2", model.SlotBusy)
		assertSlot(t, b, "u1", model.SlotBusy)
	} else {
		if final.Status != model.SwapCancelled {
			t.Errorf("request = %s, want CANCELLED", final.Status)
		}
		assertSlot(t, a, "u1", model.SlotSwappable)
		assertSlot(t, b, "u2", model.SlotSwappable)
	}
}

// ────────────────────────────────────────────────
// Consistency, events, reads
// ────────────────────────────────────────────────

func TestRespond_BrokenInvariantIsConsistencyError(t *testing.T) {
	f := newFixture(t, config.StaleOfferLazy)
	s1 := f.slot("u1", model.SlotSwappable)
	s2 := f.slot("u2", model.SlotSwappable)
	req := f.mustRequest("u1", s1, s2)

	// bypass the registry to break the reservation
	held := f.load(s2.ID)
	if err := f.store.SlotRepository().Transition(f.ctx, s2.ID, held.Version, model.SlotTransition{Status: model.SlotBusy}); err != nil {
		t.Fatalf("Transition() error = %v", err)
	}

	_, err := f.coord.Respond(f.ctx, req.ID, "u2", true)
	assertCode(t, err, apperrors.CodeConsistency)

	appErr := apperrors.AsAppError(err)
	if appErr.Message != "internal consistency error" {
		t.Errorf("consistency error leaked detail: %q", appErr.Message)
	}
	if f.request(req.ID).Status != model.SwapPending {
		t.Errorf("request mutated after consistency failure")
	}
}

func TestEventsArePublishedAfterCommit(t *testing.T) {
	f := newFixture(t, config.StaleOfferLazy)
	f.events.err = errors.New("broker down")

	s1 := f.slot("u1", model.SlotSwappable)
	s2 := f.slot("u2", model.SlotSwappable)
	req := f.mustRequest("u1", s1, s2)
	if _, err := f.coord.Respond(f.ctx, req.ID, "u2", true); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}

	got := f.events.types()
	want := []EventType{EventSwapRequested, EventSwapAccepted}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}

	accepted := f.events.events[1]
	if accepted.OfferedSlotID != s1.ID || accepted.RequestedSlotID != s2.ID || accepted.Status != model.SwapAccepted {
		t.Errorf("accepted event = %+v", accepted)
	}

	if _, err := f.coord.RequestSwap(f.ctx, "u1", s1.ID, s2.ID); err == nil {
		t.Errorf("exchanged slots are BUSY and cannot be requested")
	}
	if len(f.events.types()) != 2 {
		t.Errorf("failed operation published an event")
	}
}

func TestGetRequestAndListings(t *testing.T) {
	f := newFixture(t, config.StaleOfferLazy)
	s1 := f.slot("u1", model.SlotSwappable)
	s2 := f.slot("u2", model.SlotSwappable)
	req := f.mustRequest("u1", s1, s2)

	for _, principal := range []string{"u1", "u2"} {
		got, err := f.coord.GetRequest(f.ctx, req.ID, principal)
		if err != nil || got.ID != req.ID {
			t.Errorf("GetRequest(%s) = %v, %v", principal, got, err)
		}
	}
	_, err := f.coord.GetRequest(f.ctx, req.ID, "u3")
	assertCode(t, err, apperrors.CodeForbidden)

	incoming, err := f.coord.ListIncoming(f.ctx, "u2", "")
	if err != nil || len(incoming) != 1 {
		t.Errorf("ListIncoming() = %d, %v", len(incoming), err)
	}
	outgoing, err := f.coord.ListOutgoing(f.ctx, "u1", model.SwapAccepted)
	if err != nil || len(outgoing) != 0 {
		t.Errorf("ListOutgoing(ACCEPTED) = %d, %v", len(outgoing), err)
	}
}
