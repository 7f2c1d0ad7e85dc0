package ops

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"caseflow_backend/internal/participant"
	"caseflow_backend/platform/logger"
)

type fakeReady struct {
	ready  bool
	leader bool
}

func (f fakeReady) IsReady() bool  { return f.ready }
func (f fakeReady) IsLeader() bool { return f.leader }

type fakeRepairStore struct {
	duplicates []uuid.UUID
	closed     []uuid.UUID
	upserts    []participant.Participant
}

func (f *fakeRepairStore) DuplicateCurrentStatus(ctx context.Context) ([]uuid.UUID, error) {
	return f.duplicates, nil
}

func (f *fakeRepairStore) CloseDuplicateStatuses(ctx context.Context, participantID uuid.UUID) (int64, error) {
	f.closed = append(f.closed, participantID)
	return 1, nil
}

func (f *fakeRepairStore) UpsertSnapshot(ctx context.Context, p participant.Participant) error {
	f.upserts = append(f.upserts, p)
	return nil
}

type fakeFetcher struct {
	participants map[uuid.UUID]participant.Participant
}

func (f *fakeFetcher) FetchParticipant(ctx context.Context, id uuid.UUID) (participant.Participant, error) {
	p, ok := f.participants[id]
	if !ok {
		return participant.Participant{}, errors.New("not found upstream")
	}
	return p, nil
}

func newTestServer(ready ReadyChecker, store RepairStore, fetcher SnapshotFetcher) *Server {
	return NewServer("127.0.0.1:0", ready, store, fetcher, logger.New("development"))
}

func serve(s *Server, method, path, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func TestReadyEndpoint(t *testing.T) {
	s := newTestServer(fakeReady{ready: false}, &fakeRepairStore{}, &fakeFetcher{})
	if rec := serve(s, http.MethodGet, "/internal/ready", "127.0.0.1:45000"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("starting instance reported %d, want 503", rec.Code)
	}

	s = newTestServer(fakeReady{ready: true, leader: true}, &fakeRepairStore{}, &fakeFetcher{})
	rec := serve(s, http.MethodGet, "/internal/ready", "127.0.0.1:45000")
	if rec.Code != http.StatusOK {
		t.Fatalf("ready instance reported %d, want 200", rec.Code)
	}

	var body struct {
		Leader bool `json:"leader"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if !body.Leader {
		t.Fatal("leader flag not reported")
	}
}

func TestNonLoopbackRejected(t *testing.T) {
	s := newTestServer(fakeReady{ready: true}, &fakeRepairStore{}, &fakeFetcher{})

	rec := serve(s, http.MethodGet, "/internal/ready", "10.1.2.3:45000")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-loopback peer got %d, want 403", rec.Code)
	}

	// IPv6 loopback is fine.
	rec = serve(s, http.MethodGet, "/internal/ready", "[::1]:45000")
	if rec.Code != http.StatusOK {
		t.Fatalf("IPv6 loopback got %d, want 200", rec.Code)
	}
}

func TestRepairDuplicateStatus(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	store := &fakeRepairStore{duplicates: []uuid.UUID{a, b}}
	s := newTestServer(fakeReady{ready: true}, store, &fakeFetcher{})

	rec := serve(s, http.MethodPost, "/internal/repair/duplicate-status", "127.0.0.1:45000")
	if rec.Code != http.StatusOK {
		t.Fatalf("repair got %d, want 200", rec.Code)
	}
	if len(store.closed) != 2 {
		t.Fatalf("closed %d participants, want 2", len(store.closed))
	}
}

func TestRepairParticipantBackfill(t *testing.T) {
	id := uuid.New()
	fetcher := &fakeFetcher{participants: map[uuid.UUID]participant.Participant{
		id: {ID: id, Status: participant.Status{Type: participant.StatusParticipating}},
	}}
	store := &fakeRepairStore{}
	s := newTestServer(fakeReady{ready: true}, store, fetcher)

	rec := serve(s, http.MethodPost, "/internal/repair/participant/"+id.String(), "127.0.0.1:45000")
	if rec.Code != http.StatusOK {
		t.Fatalf("backfill got %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if len(store.upserts) != 1 || store.upserts[0].ID != id {
		t.Fatalf("unexpected upserts: %+v", store.upserts)
	}

	// Unknown upstream participant maps to a gateway error.
	rec = serve(s, http.MethodPost, "/internal/repair/participant/"+uuid.NewString(), "127.0.0.1:45000")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("missing participant got %d, want 502", rec.Code)
	}

	rec = serve(s, http.MethodPost, "/internal/repair/participant/not-a-uuid", "127.0.0.1:45000")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id got %d, want 400", rec.Code)
	}
}
