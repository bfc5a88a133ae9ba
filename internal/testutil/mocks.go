package testutil

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	domainErrors "github.com/cassiomorais/tripcheckout/internal/domain/errors"
	"github.com/cassiomorais/tripcheckout/internal/domain/intent"
	"github.com/cassiomorais/tripcheckout/internal/domain/outbox"
	"github.com/cassiomorais/tripcheckout/internal/domain/trip"
	"github.com/cassiomorais/tripcheckout/internal/infrastructure/gateway"
	"github.com/google/uuid"
)

// --- Trip Repository Mock ---

// MockTripRepository is an in-memory trip.Repository that enforces the same
// uniqueness rules as the database.
type MockTripRepository struct {
	mu    sync.Mutex
	trips map[uuid.UUID]*trip.Trip
	calls atomic.Int64

	CreateFunc              func(ctx context.Context, t *trip.Trip) error
	GetByIDFunc             func(ctx context.Context, id uuid.UUID) (*trip.Trip, error)
	GetByCorrelationKeyFunc func(ctx context.Context, key string) (*trip.Trip, error)
	GetByJoinCodeFunc       func(ctx context.Context, code string) (*trip.Trip, error)
}

func NewMockTripRepository() *MockTripRepository {
	return &MockTripRepository{trips: make(map[uuid.UUID]*trip.Trip)}
}

func (m *MockTripRepository) Create(ctx context.Context, t *trip.Trip) error {
	m.calls.Add(1)
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, t)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.trips {
		if existing.CorrelationKey == t.CorrelationKey {
			return domainErrors.ErrDuplicateTrip
		}
		if existing.JoinCode == t.JoinCode {
			return domainErrors.ErrDuplicateJoinCode
		}
	}
	cp := *t
	m.trips[t.ID] = &cp
	return nil
}

// AddTrip seeds a trip without uniqueness checks.
func (m *MockTripRepository) AddTrip(t *trip.Trip) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.trips[t.ID] = &cp
}

// CreateCalls returns how many times Create was invoked.
func (m *MockTripRepository) CreateCalls() int {
	return int(m.calls.Load())
}

// Count returns the number of stored trips.
func (m *MockTripRepository) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.trips)
}

func (m *MockTripRepository) GetByID(ctx context.Context, id uuid.UUID) (*trip.Trip, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[id]
	if !ok {
		return nil, domainErrors.ErrTripNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MockTripRepository) GetByCorrelationKey(ctx context.Context, key string) (*trip.Trip, error) {
	if m.GetByCorrelationKeyFunc != nil {
		return m.GetByCorrelationKeyFunc(ctx, key)
	}
	return m.find(func(t *trip.Trip) bool { return t.CorrelationKey == key })
}

func (m *MockTripRepository) GetByJoinCode(ctx context.Context, code string) (*trip.Trip, error) {
	if m.GetByJoinCodeFunc != nil {
		return m.GetByJoinCodeFunc(ctx, code)
	}
	code = trip.NormalizeJoinCode(code)
	return m.find(func(t *trip.Trip) bool { return t.JoinCode == code })
}

func (m *MockTripRepository) find(match func(*trip.Trip) bool) (*trip.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.trips {
		if match(t) {
			cp := *t
			return &cp, nil
		}
	}
	return nil, domainErrors.ErrTripNotFound
}

// --- Membership Repository Mock ---

// MockMembershipRepository is a mock implementation of trip.MembershipRepository.
type MockMembershipRepository struct {
	mu      sync.Mutex
	members map[string]*trip.Membership

	AddFunc func(ctx context.Context, mb *trip.Membership) error
	GetFunc func(ctx context.Context, tripID uuid.UUID, userID string) (*trip.Membership, error)
}

func NewMockMembershipRepository() *MockMembershipRepository {
	return &MockMembershipRepository{members: make(map[string]*trip.Membership)}
}

func membershipKey(tripID uuid.UUID, userID string) string {
	return tripID.String() + "/" + userID
}

func (m *MockMembershipRepository) Add(ctx context.Context, mb *trip.Membership) error {
	if m.AddFunc != nil {
		return m.AddFunc(ctx, mb)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := membershipKey(mb.TripID, mb.UserID)
	if _, ok := m.members[key]; !ok {
		cp := *mb
		m.members[key] = &cp
	}
	return nil
}

func (m *MockMembershipRepository) Get(ctx context.Context, tripID uuid.UUID, userID string) (*trip.Membership, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, tripID, userID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	mb, ok := m.members[membershipKey(tripID, userID)]
	if !ok {
		return nil, domainErrors.ErrTripNotFound
	}
	cp := *mb
	return &cp, nil
}

// Count returns the number of stored memberships.
func (m *MockMembershipRepository) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.members)
}

// --- Intent Tier Mock ---

// MockTier is an in-memory intent tier.
type MockTier struct {
	name    intent.Tier
	mu      sync.Mutex
	intents map[string]intent.Intent

	SaveFunc   func(ctx context.Context, in *intent.Intent) error
	LoadFunc   func(ctx context.Context, actorID string) (*intent.Intent, error)
	DeleteFunc func(ctx context.Context, actorID string) error
}

func NewMockTier(name intent.Tier) *MockTier {
	return &MockTier{name: name, intents: make(map[string]intent.Intent)}
}

func (m *MockTier) Name() intent.Tier { return m.name }

func (m *MockTier) Save(ctx context.Context, in *intent.Intent) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, in)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.intents[in.ActorID] = *in
	return nil
}

func (m *MockTier) Load(ctx context.Context, actorID string) (*intent.Intent, error) {
	if m.LoadFunc != nil {
		return m.LoadFunc(ctx, actorID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.intents[actorID]
	if !ok {
		return nil, domainErrors.ErrIntentNotFound
	}
	return &in, nil
}

func (m *MockTier) Delete(ctx context.Context, actorID string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, actorID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.intents, actorID)
	return nil
}

// Put stores an intent under key regardless of its actor, to simulate
// corrupted or foreign records.
func (m *MockTier) Put(key string, in intent.Intent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.intents[key] = in
}

// Has reports whether an intent is stored for actorID.
func (m *MockTier) Has(actorID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.intents[actorID]
	return ok
}

// --- Transaction Manager Mock ---

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	WithTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.WithTransactionFunc != nil {
		return m.WithTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

// --- Outbox Repository Mock ---

// MockOutboxRepository is a mock implementation of outbox.Repository.
type MockOutboxRepository struct {
	mu      sync.Mutex
	entries []*outbox.Entry

	InsertFunc        func(ctx context.Context, entry *outbox.Entry) error
	GetPendingFunc    func(ctx context.Context, limit int) ([]*outbox.Entry, error)
	MarkPublishedFunc func(ctx context.Context, id uuid.UUID) error
	MarkFailedFunc    func(ctx context.Context, id uuid.UUID) error
}

func (m *MockOutboxRepository) Insert(ctx context.Context, entry *outbox.Entry) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

// Entries returns the entries inserted so far.
func (m *MockOutboxRepository) Entries() []*outbox.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*outbox.Entry(nil), m.entries...)
}

func (m *MockOutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Entry, error) {
	if m.GetPendingFunc != nil {
		return m.GetPendingFunc(ctx, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var pending []*outbox.Entry
	for _, e := range m.entries {
		if e.Status == outbox.StatusPending && len(pending) < limit {
			pending = append(pending, e)
		}
	}
	return pending, nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	if m.MarkPublishedFunc != nil {
		return m.MarkPublishedFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ID == id {
			e.MarkPublished(time.Now())
		}
	}
	return nil
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	if m.MarkFailedFunc != nil {
		return m.MarkFailedFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ID == id {
			e.RecordFailure()
		}
	}
	return nil
}

// --- Locker Mock ---

// MockLocker is an in-process lock table.
type MockLocker struct {
	mu   sync.Mutex
	held map[string]bool

	TryLockFunc func(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error)
}

func NewMockLocker() *MockLocker {
	return &MockLocker{held: make(map[string]bool)}
}

func (m *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	if m.TryLockFunc != nil {
		return m.TryLockFunc(ctx, key, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] {
		return nil, false, nil
	}
	m.held[key] = true
	return func(context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.held, key)
		return nil
	}, true, nil
}

// Hold marks key as locked by someone else.
func (m *MockLocker) Hold(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.held[key] = true
}

// --- Gateway Mock ---

// CountingGateway records verification calls made through it.
type CountingGateway struct {
	gateway.Gateway
	sessionVerifies atomic.Int64
	actorVerifies   atomic.Int64

	VerifyBySessionFunc func(ctx context.Context, sessionID string) (*gateway.SessionVerification, error)
	VerifyByActorFunc   func(ctx context.Context, actorID string) (*gateway.ActorVerification, error)
}

func NewCountingGateway(gw gateway.Gateway) *CountingGateway {
	return &CountingGateway{Gateway: gw}
}

func (g *CountingGateway) VerifyBySession(ctx context.Context, sessionID string) (*gateway.SessionVerification, error) {
	g.sessionVerifies.Add(1)
	if g.VerifyBySessionFunc != nil {
		return g.VerifyBySessionFunc(ctx, sessionID)
	}
	return g.Gateway.VerifyBySession(ctx, sessionID)
}

func (g *CountingGateway) VerifyByActor(ctx context.Context, actorID string) (*gateway.ActorVerification, error) {
	g.actorVerifies.Add(1)
	if g.VerifyByActorFunc != nil {
		return g.VerifyByActorFunc(ctx, actorID)
	}
	return g.Gateway.VerifyByActor(ctx, actorID)
}

// Verifications returns the total number of verification calls.
func (g *CountingGateway) Verifications() int {
	return int(g.sessionVerifies.Load() + g.actorVerifies.Load())
}
