package pipeline

import (
	"context"
	"testing"
	"time"

	"archi_crm_backend/internal/pipeline/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type fakeSource struct {
	contact domain.Contact
	opps    []domain.Opportunity
	mirrors *fakeClients
}

func (s *fakeSource) GetContactState(context.Context, uuid.UUID) (domain.Contact, error) {
	return s.contact, nil
}

func (s *fakeSource) ListOpportunityStates(context.Context, uuid.UUID) ([]domain.Opportunity, error) {
	return s.opps, nil
}

func (s *fakeSource) MirrorStages(_ context.Context, contactID uuid.UUID) (map[string]domain.Stage, error) {
	out := map[string]domain.Stage{}
	for key, m := range s.mirrors.mirrors {
		if m.ContactID == contactID {
			out[key] = m.Stage
		}
	}
	return out, nil
}

func newRedisLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client), mr
}

func TestReconcileRepairsTagAndMirrors(t *testing.T) {
	contactID := uuid.New()
	opp := domain.Opportunity{
		ID:        uuid.New(),
		ContactID: contactID,
		Title:     "Villa Anfa",
		Type:      domain.TypeVilla,
		Status:    domain.StatusOpen,
		Stage:     domain.PipelineAcompteRecu,
	}
	contacts := newFakeContacts()
	clients := newFakeClients()
	src := &fakeSource{
		contact: domain.Contact{ID: contactID, Name: "Karim Benali", Tag: domain.TagConverted, Status: domain.StageQualifie},
		opps:    []domain.Opportunity{opp},
		mirrors: clients,
	}
	locker, _ := newRedisLocker(t)
	exec := NewExecutor(contacts, clients, nil, fastRetrier(), testLogger())
	r := NewReconciler(src, src, exec, locker, testLogger())

	if err := r.Reconcile(context.Background(), contactID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if contacts.tags[contactID] != domain.TagClient {
		t.Fatalf("expected tag client, got %q", contacts.tags[contactID])
	}
	key := domain.OpportunityClientKey(contactID, opp.ID)
	if got := clients.mirrors[key].Stage; got != domain.StageAcompteRecu {
		t.Fatalf("expected mirror stage acompte_recu, got %q", got)
	}

	src.contact.Tag = domain.TagClient
	before := len(contacts.timeline)
	if err := r.Reconcile(context.Background(), contactID); err != nil {
		t.Fatalf("unexpected error on second run: %v", err)
	}
	if len(contacts.timeline) != before {
		t.Fatal("expected second reconcile to add no timeline entries")
	}
}

func TestReconcileSkipsWhenLockHeld(t *testing.T) {
	contactID := uuid.New()
	contacts := newFakeContacts()
	clients := newFakeClients()
	src := &fakeSource{
		contact: domain.Contact{ID: contactID, Tag: domain.TagConverted},
		opps:    []domain.Opportunity{{ID: uuid.New(), ContactID: contactID, Status: domain.StatusWon, Stage: domain.PipelineGagnee}},
		mirrors: clients,
	}
	locker, mr := newRedisLocker(t)
	if err := mr.Set("reconcile:contact:"+contactID.String(), "other-worker"); err != nil {
		t.Fatal(err)
	}

	r := NewReconciler(src, src, NewExecutor(contacts, clients, nil, fastRetrier(), testLogger()), locker, testLogger())
	if err := r.Reconcile(context.Background(), contactID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contacts.calls) != 0 {
		t.Fatalf("expected no writes while another run holds the lock, got %v", contacts.calls)
	}
}

func TestRedisLockerReleaseOnlyOwnToken(t *testing.T) {
	locker, mr := newRedisLocker(t)
	ctx := context.Background()

	release, ok, err := locker.TryLock(ctx, "k", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected lock, got ok=%v err=%v", ok, err)
	}
	if _, ok, _ := locker.TryLock(ctx, "k", time.Minute); ok {
		t.Fatal("expected second lock attempt to fail")
	}

	mr.FastForward(2 * time.Minute)
	if _, ok, _ := locker.TryLock(ctx, "k", time.Minute); !ok {
		t.Fatal("expected lock to be free after ttl")
	}

	release()
	if !mr.Exists("k") {
		t.Fatal("expected stale release to leave the new holder's key in place")
	}
}
