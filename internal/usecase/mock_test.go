//go:build !integration

package usecase_test

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"restaurant-saas/internal/domain"
	"restaurant-saas/internal/domain/model"
	"restaurant-saas/internal/domain/ports/adapter"
	"restaurant-saas/internal/domain/ports/repository"
)

const (
	testTenantID  = "6f1c2e0a-3b4d-4c5e-8f90-1a2b3c4d5e6f"
	otherTenantID = "0b7d9f3e-5a61-4c2b-9e8d-7f6a5b4c3d2e"
	testUserID    = "a3e4b5c6-d7e8-4f90-a1b2-c3d4e5f60718"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// =============================
// Adapters
// =============================

// ---- Mock PaymentGateway ----

type MockPaymentGateway struct {
	mu    sync.Mutex
	seq   int
	Calls []adapter.CreateOrderRequest
	Creds []model.GatewayCredentials

	CreateOrderFunc func(ctx context.Context, creds model.GatewayCredentials, req adapter.CreateOrderRequest) (*adapter.GatewayOrder, error)
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func (g *MockPaymentGateway) Name() string { return "mock" }

func (g *MockPaymentGateway) CreateOrder(ctx context.Context, creds model.GatewayCredentials, req adapter.CreateOrderRequest) (*adapter.GatewayOrder, error) {
	g.mu.Lock()
	g.Calls = append(g.Calls, req)
	g.Creds = append(g.Creds, creds)
	g.seq++
	id := fmt.Sprintf("order_mock%03d", g.seq)
	g.mu.Unlock()
	if g.CreateOrderFunc != nil {
		return g.CreateOrderFunc(ctx, creds, req)
	}
	return &adapter.GatewayOrder{ID: id, Amount: req.AmountMinor, Currency: req.Currency, Receipt: req.Receipt, Status: "created"}, nil
}

func (g *MockPaymentGateway) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Calls)
}

// =============================
// Repositories
// =============================

// ---- Mock PricePlanRepository ----

type MockPlanRepo struct {
	mu   sync.Mutex
	data map[string]*model.PricePlan
}

var _ repository.PricePlanRepository = (*MockPlanRepo)(nil)

// NewMockPlanRepo returns a repo preloaded with the default catalog.
func NewMockPlanRepo() *MockPlanRepo {
	r := &MockPlanRepo{data: map[string]*model.PricePlan{}}
	for _, p := range model.DefaultCatalog() {
		r.data[p.ID] = p
	}
	return r
}

func (r *MockPlanRepo) Save(ctx context.Context, p *model.PricePlan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.data[p.ID] = &cp
	return nil
}

func (r *MockPlanRepo) FindByID(ctx context.Context, id string) (*model.PricePlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *MockPlanRepo) ListAll(ctx context.Context) ([]*model.PricePlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.PricePlan, 0, len(r.data))
	for _, p := range r.data {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

// ---- Mock TenantRepository ----

type MockTenantRepo struct {
	mu   sync.Mutex
	data map[string]*model.Tenant

	CreateFunc     func(ctx context.Context, tx repository.Tx, t *model.Tenant) error
	UpdatePlanFunc func(ctx context.Context, tx repository.Tx, tenantID, plan string, start *time.Time, end time.Time) error
	UpdatePlanN    int
}

var _ repository.TenantRepository = (*MockTenantRepo)(nil)

func NewMockTenantRepo() *MockTenantRepo {
	return &MockTenantRepo{data: map[string]*model.Tenant{}}
}

func (r *MockTenantRepo) Put(t *model.Tenant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.data[t.ID] = &cp
}

func (r *MockTenantRepo) Get(id string) *model.Tenant {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.data[id]
	if !ok {
		return nil
	}
	cp := *t
	return &cp
}

func (r *MockTenantRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.data)
}

func (r *MockTenantRepo) Create(ctx context.Context, tx repository.Tx, t *model.Tenant) error {
	if r.CreateFunc != nil {
		if err := r.CreateFunc(ctx, tx, t); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[t.ID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *t
	r.data[t.ID] = &cp
	return nil
}

func (r *MockTenantRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Tenant, error) {
	if t := r.Get(id); t != nil {
		return t, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockTenantRepo) UpdatePlan(ctx context.Context, tx repository.Tx, tenantID, plan string, start *time.Time, end time.Time) error {
	if r.UpdatePlanFunc != nil {
		if err := r.UpdatePlanFunc(ctx, tx, tenantID, plan, start, end); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.data[tenantID]
	if !ok {
		return domain.ErrNotFound
	}
	r.UpdatePlanN++
	t.Plan = plan
	if start != nil {
		t.SubscriptionStartDate = *start
	}
	t.SubscriptionEndDate = end
	t.SubscriptionStatus = model.SubscriptionStatusActive
	return nil
}

// ---- Mock TenantSettingsRepository ----

type MockTenantSettingsRepo struct {
	mu    sync.Mutex
	data  map[string]*model.TenantSettings
	names map[string]string

	CreateDefaultFunc func(ctx context.Context, tx repository.Tx, s *model.TenantSettings, restaurantName string) error
}

var _ repository.TenantSettingsRepository = (*MockTenantSettingsRepo)(nil)

func NewMockTenantSettingsRepo() *MockTenantSettingsRepo {
	return &MockTenantSettingsRepo{data: map[string]*model.TenantSettings{}, names: map[string]string{}}
}

func (r *MockTenantSettingsRepo) Put(s *model.TenantSettings) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.data[s.TenantID] = &cp
}

func (r *MockTenantSettingsRepo) CreateDefault(ctx context.Context, tx repository.Tx, s *model.TenantSettings, restaurantName string) error {
	if r.CreateDefaultFunc != nil {
		if err := r.CreateDefaultFunc(ctx, tx, s, restaurantName); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[s.TenantID]; ok {
		return nil
	}
	cp := *s
	r.data[s.TenantID] = &cp
	r.names[s.TenantID] = restaurantName
	return nil
}

func (r *MockTenantSettingsRepo) FindByTenantID(ctx context.Context, tx repository.Tx, tenantID string) (*model.TenantSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.data[tenantID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

// ---- Mock UserRoleRepository ----

type MockUserRoleRepo struct {
	mu    sync.Mutex
	Roles []model.UserRole

	AssignFunc func(ctx context.Context, tx repository.Tx, r *model.UserRole) error
}

var _ repository.UserRoleRepository = (*MockUserRoleRepo)(nil)

func (m *MockUserRoleRepo) Assign(ctx context.Context, tx repository.Tx, r *model.UserRole) error {
	if m.AssignFunc != nil {
		if err := m.AssignFunc(ctx, tx, r); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, have := range m.Roles {
		if have == *r {
			return nil
		}
	}
	m.Roles = append(m.Roles, *r)
	return nil
}

func (m *MockUserRoleRepo) HasRole(ctx context.Context, tx repository.Tx, userID, tenantID string, role model.Role) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, have := range m.Roles {
		if have == (model.UserRole{UserID: userID, TenantID: tenantID, Role: role}) {
			return true, nil
		}
	}
	return false, nil
}

// ---- Mock ProfileRepository ----

type MockProfileRepo struct {
	mu     sync.Mutex
	Marked map[string]string // user -> tenant
}

var _ repository.ProfileRepository = (*MockProfileRepo)(nil)

func (m *MockProfileRepo) MarkNeedsPasswordSetup(ctx context.Context, tx repository.Tx, userID, tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Marked == nil {
		m.Marked = map[string]string{}
	}
	m.Marked[userID] = tenantID
	return nil
}

// ---- Mock SubscriptionPaymentRepository ----

type MockPaymentRepo struct {
	mu   sync.Mutex
	data map[string]*model.SubscriptionPayment // by gateway order id

	SaveFunc          func(ctx context.Context, tx repository.Tx, p *model.SubscriptionPayment) error
	MarkCompletedFunc func(ctx context.Context, tx repository.Tx, gatewayOrderID string, at time.Time) (bool, error)
}

var _ repository.SubscriptionPaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{data: map[string]*model.SubscriptionPayment{}}
}

func (r *MockPaymentRepo) Put(p *model.SubscriptionPayment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.data[p.GatewayOrderID] = &cp
}

func (r *MockPaymentRepo) Get(gatewayOrderID string) *model.SubscriptionPayment {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[gatewayOrderID]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

// All returns every stored payment, including those saved without a gateway order.
func (r *MockPaymentRepo) All() []*model.SubscriptionPayment {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.SubscriptionPayment, 0, len(r.data))
	for _, p := range r.data {
		cp := *p
		out = append(out, &cp)
	}
	return out
}

func (r *MockPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.SubscriptionPayment) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := p.GatewayOrderID
	if key == "" {
		key = "id:" + p.ID
	}
	if _, ok := r.data[key]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *p
	r.data[key] = &cp
	return nil
}

func (r *MockPaymentRepo) FindByGatewayOrderID(ctx context.Context, tx repository.Tx, gatewayOrderID string) (*model.SubscriptionPayment, error) {
	if p := r.Get(gatewayOrderID); p != nil {
		return p, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockPaymentRepo) RecordVerification(ctx context.Context, tx repository.Tx, gatewayOrderID, paymentID, signature string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[gatewayOrderID]
	if !ok || p.Status != model.PaymentStatusPending {
		return nil
	}
	pid := paymentID
	p.GatewayPaymentID = &pid
	if signature != "" {
		sig := signature
		p.Signature = &sig
	}
	return nil
}

func (r *MockPaymentRepo) AttachTenant(ctx context.Context, tx repository.Tx, gatewayOrderID, tenantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[gatewayOrderID]
	if !ok {
		return domain.ErrNotFound
	}
	if p.TenantID != nil && *p.TenantID != tenantID {
		return domain.ErrPaymentMismatch
	}
	id := tenantID
	p.TenantID = &id
	return nil
}

func (r *MockPaymentRepo) MarkCompleted(ctx context.Context, tx repository.Tx, gatewayOrderID string, at time.Time) (bool, error) {
	if r.MarkCompletedFunc != nil {
		return r.MarkCompletedFunc(ctx, tx, gatewayOrderID, at)
	}
	return r.setStatus(gatewayOrderID, model.PaymentStatusCompleted, &at), nil
}

func (r *MockPaymentRepo) MarkFailed(ctx context.Context, tx repository.Tx, gatewayOrderID string) (bool, error) {
	return r.setStatus(gatewayOrderID, model.PaymentStatusFailed, nil), nil
}

func (r *MockPaymentRepo) ListStalledProvisioning(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for k, p := range r.data {
		if p.PaymentType == model.PaymentTypeNewSubscription && p.Status == model.PaymentStatusPending &&
			p.Verified() && p.Signature != nil && p.UpdatedAt.Before(olderThan) {
			ids = append(ids, k)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := r.data[ids[i]], r.data[ids[j]]
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.Before(b.UpdatedAt)
		}
		return ids[i] < ids[j]
	})
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (r *MockPaymentRepo) DeferStalled(ctx context.Context, tx repository.Tx, gatewayOrderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.data[gatewayOrderID]; ok && p.Status == model.PaymentStatusPending {
		p.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (r *MockPaymentRepo) setStatus(gatewayOrderID string, to model.PaymentStatus, at *time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[gatewayOrderID]
	if !ok || !p.Status.CanTransition(to) {
		return false
	}
	p.Status = to
	p.CompletedAt = at
	return true
}

// ---- Mock OrderRepository ----

type MockOrderRepo struct {
	mu      sync.Mutex
	data    map[string]*model.Order // by gateway order id
	Updates int

	SaveFunc func(ctx context.Context, tx repository.Tx, o *model.Order) error
}

var _ repository.OrderRepository = (*MockOrderRepo)(nil)

func NewMockOrderRepo() *MockOrderRepo {
	return &MockOrderRepo{data: map[string]*model.Order{}}
}

func (r *MockOrderRepo) Put(o *model.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *o
	r.data[o.GatewayOrderID] = &cp
}

func (r *MockOrderRepo) Get(gatewayOrderID string) *model.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.data[gatewayOrderID]
	if !ok {
		return nil
	}
	cp := *o
	return &cp
}

func (r *MockOrderRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.data)
}

func (r *MockOrderRepo) Save(ctx context.Context, tx repository.Tx, o *model.Order) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, o)
	}
	r.Put(o)
	return nil
}

func (r *MockOrderRepo) FindByGatewayOrderID(ctx context.Context, tx repository.Tx, gatewayOrderID string) (*model.Order, error) {
	if o := r.Get(gatewayOrderID); o != nil {
		return o, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockOrderRepo) UpdatePayment(ctx context.Context, tx repository.Tx, orderID string, u model.PaymentUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.data {
		if o.ID != orderID {
			continue
		}
		if o.PaymentStatus != u.From || !u.From.CanTransition(u.PaymentStatus) {
			return domain.ErrInvalidTransition
		}
		r.Updates++
		o.PaymentStatus = u.PaymentStatus
		if u.Status != nil {
			o.Status = *u.Status
		}
		if u.GatewayPaymentID != "" {
			pid := u.GatewayPaymentID
			o.GatewayPaymentID = &pid
		}
		if u.GatewaySignature != nil {
			o.GatewaySignature = u.GatewaySignature
		}
		if u.PaidAt != nil {
			o.PaidAt = u.PaidAt
		}
		return nil
	}
	return domain.ErrNotFound
}

// ---- Mock GatewayConfigRepository ----

type MockGatewayConfigRepo struct {
	mu       sync.Mutex
	Platform *model.PlatformGatewayConfig
	Secrets  map[string]*model.TenantGatewaySecret
	Reads    int
}

var _ repository.GatewayConfigRepository = (*MockGatewayConfigRepo)(nil)

func NewMockGatewayConfigRepo() *MockGatewayConfigRepo {
	return &MockGatewayConfigRepo{Secrets: map[string]*model.TenantGatewaySecret{}}
}

func (r *MockGatewayConfigRepo) FindActivePlatformConfig(ctx context.Context) (*model.PlatformGatewayConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Reads++
	if r.Platform == nil {
		return nil, domain.ErrGatewayNotConfigured
	}
	cp := *r.Platform
	return &cp, nil
}

func (r *MockGatewayConfigRepo) FindTenantSecret(ctx context.Context, tenantID string) (*model.TenantGatewaySecret, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Reads++
	s, ok := r.Secrets[tenantID]
	if !ok {
		return nil, domain.ErrCredentialsNotConfigured
	}
	cp := *s
	return &cp, nil
}

// ---- Mock WebhookEventRepository ----

type MockWebhookEventRepo struct {
	mu     sync.Mutex
	Events map[string]*model.WebhookEvent
}

var _ repository.WebhookEventRepository = (*MockWebhookEventRepo)(nil)

func NewMockWebhookEventRepo() *MockWebhookEventRepo {
	return &MockWebhookEventRepo{Events: map[string]*model.WebhookEvent{}}
}

func (r *MockWebhookEventRepo) Exists(ctx context.Context, tx repository.Tx, eventID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.Events[eventID]
	return ok, nil
}

func (r *MockWebhookEventRepo) Record(ctx context.Context, tx repository.Tx, e *model.WebhookEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.Events[e.EventID]; !ok {
		cp := *e
		r.Events[e.EventID] = &cp
	}
	return nil
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc overrides it.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}
