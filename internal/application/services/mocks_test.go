package services_test

import (
	"context"
	"path"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/medleaf/pharmacy-backend/internal/domain/entities"
	"github.com/medleaf/pharmacy-backend/internal/domain/repositories"
)

// Mocks shared by the service tests

type MockPrescriptionRepository struct {
	mock.Mock
}

func (m *MockPrescriptionRepository) Create(ctx context.Context, record *entities.PrescriptionRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockPrescriptionRepository) GetByID(ctx context.Context, id string) (*entities.PrescriptionRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PrescriptionRecord), args.Error(1)
}

func (m *MockPrescriptionRepository) GetByIDForUpdate(ctx context.Context, id string) (*entities.PrescriptionRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PrescriptionRecord), args.Error(1)
}

func (m *MockPrescriptionRepository) Update(ctx context.Context, record *entities.PrescriptionRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockPrescriptionRepository) List(ctx context.Context, filter repositories.PrescriptionFilter) ([]*entities.PrescriptionRecord, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.PrescriptionRecord), args.Error(1)
}

func (m *MockPrescriptionRepository) CountByStatus(ctx context.Context) (map[entities.VerificationStatus]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[entities.VerificationStatus]int), args.Error(1)
}

func (m *MockPrescriptionRepository) CountUrgentOpen(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockPrescriptionRepository) CountOverdue(ctx context.Context, threshold time.Duration) (int, error) {
	args := m.Called(ctx, threshold)
	return args.Int(0), args.Error(1)
}

func (m *MockPrescriptionRepository) CountUnassigned(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockPrescriptionRepository) CountByCustomerSince(ctx context.Context, customerID string, since time.Time) (int, error) {
	args := m.Called(ctx, customerID, since)
	return args.Int(0), args.Error(1)
}

func (m *MockPrescriptionRepository) CountAssignedByStatus(ctx context.Context, verifierID string) (map[entities.VerificationStatus]int, error) {
	args := m.Called(ctx, verifierID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[entities.VerificationStatus]int), args.Error(1)
}

func (m *MockPrescriptionRepository) CountAssignedSince(ctx context.Context, verifierID string, since time.Time) (int, error) {
	args := m.Called(ctx, verifierID, since)
	return args.Int(0), args.Error(1)
}

func (m *MockPrescriptionRepository) DecisionStats(ctx context.Context, verifierID string) (*repositories.DecisionStats, error) {
	args := m.Called(ctx, verifierID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repositories.DecisionStats), args.Error(1)
}

func (m *MockPrescriptionRepository) CountDecidedSince(ctx context.Context, verifierID string, since time.Time) (int, error) {
	args := m.Called(ctx, verifierID, since)
	return args.Int(0), args.Error(1)
}

func (m *MockPrescriptionRepository) DecisionHourHistogram(ctx context.Context, verifierID string, since time.Time) ([24]int, error) {
	args := m.Called(ctx, verifierID, since)
	return args.Get(0).([24]int), args.Error(1)
}

type MockWorkloadRepository struct {
	mock.Mock
}

func (m *MockWorkloadRepository) Create(ctx context.Context, workload *entities.VerifierWorkload) error {
	args := m.Called(ctx, workload)
	return args.Error(0)
}

func (m *MockWorkloadRepository) GetByVerifier(ctx context.Context, verifierID string) (*entities.VerifierWorkload, error) {
	args := m.Called(ctx, verifierID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.VerifierWorkload), args.Error(1)
}

func (m *MockWorkloadRepository) GetByVerifierForUpdate(ctx context.Context, verifierID string) (*entities.VerifierWorkload, error) {
	args := m.Called(ctx, verifierID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.VerifierWorkload), args.Error(1)
}

func (m *MockWorkloadRepository) ApplyDelta(ctx context.Context, verifierID string, delta repositories.WorkloadDelta) error {
	args := m.Called(ctx, verifierID, delta)
	return args.Error(0)
}

func (m *MockWorkloadRepository) SetAvailability(ctx context.Context, verifierID string, available bool) error {
	args := m.Called(ctx, verifierID, available)
	return args.Error(0)
}

func (m *MockWorkloadRepository) Replace(ctx context.Context, workload *entities.VerifierWorkload) error {
	args := m.Called(ctx, workload)
	return args.Error(0)
}

func (m *MockWorkloadRepository) List(ctx context.Context) ([]*entities.VerifierWorkload, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.VerifierWorkload), args.Error(1)
}

func (m *MockWorkloadRepository) ListAvailable(ctx context.Context) ([]*entities.VerifierWorkload, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.VerifierWorkload), args.Error(1)
}

func (m *MockWorkloadRepository) CountAvailable(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockWorkloadRepository) ResetDailyCounts(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockActivityRepository struct {
	mock.Mock
}

func (m *MockActivityRepository) Append(ctx context.Context, activity *entities.VerificationActivity) error {
	args := m.Called(ctx, activity)
	return args.Error(0)
}

func (m *MockActivityRepository) ListByPrescription(ctx context.Context, prescriptionID string, limit int) ([]*entities.VerificationActivity, error) {
	args := m.Called(ctx, prescriptionID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.VerificationActivity), args.Error(1)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *entities.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*entities.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

// fakeTransactor runs the function directly; repository mocks do not care
// about the ambient transaction
type fakeTransactor struct{}

func (fakeTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type MockOrderProvider struct {
	mock.Mock
}

func (m *MockOrderProvider) CreateFromPrescription(ctx context.Context, prescription *entities.PrescriptionRecord) (string, error) {
	args := m.Called(ctx, prescription)
	return args.String(0), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyDecision(ctx context.Context, record *entities.PrescriptionRecord, notes string) error {
	args := m.Called(ctx, record, notes)
	return args.Error(0)
}

func (m *MockNotifier) NotifyClarification(ctx context.Context, record *entities.PrescriptionRecord, message string) error {
	args := m.Called(ctx, record, message)
	return args.Error(0)
}

type MockFileStorage struct {
	mock.Mock
}

func (m *MockFileStorage) Store(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	args := m.Called(ctx, filename, contentType, data)
	return args.String(0), args.Error(1)
}

// memCache is an in-memory CacheProvider; TTLs are recorded but never expire
// within a test run
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]int
}

func newMemCache() *memCache {
	return &memCache{
		data: make(map[string][]byte),
		ttls: make(map[string]int),
	}
}

func (c *memCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.data[key]; ok {
		return v, nil
	}
	return nil, nil
}

func (c *memCache) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.ttls[key] = expirationSeconds
	return nil
}

func (c *memCache) SetMulti(ctx context.Context, items map[string][]byte, expirationSeconds int) error {
	for k, v := range items {
		c.Set(ctx, k, v, expirationSeconds)
	}
	return nil
}

func (c *memCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memCache) DeletePattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.data {
		if ok, _ := path.Match(pattern, key); ok {
			delete(c.data, key)
		}
	}
	return nil
}

func (c *memCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok, nil
}

// fakeEventBus hands every publish straight to subscribers of any channel
type fakeEventBus struct {
	events chan *entities.VerificationEvent
}

func newFakeEventBus() *fakeEventBus {
	return &fakeEventBus{events: make(chan *entities.VerificationEvent, 16)}
}

func (b *fakeEventBus) Publish(ctx context.Context, channel string, event *entities.VerificationEvent) error {
	b.events <- event
	return nil
}

func (b *fakeEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.VerificationEvent, error) {
	return b.events, nil
}

func (b *fakeEventBus) Unsubscribe(ctx context.Context, channel string) error { return nil }

func (b *fakeEventBus) Close() error {
	close(b.events)
	return nil
}
