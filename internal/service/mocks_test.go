package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/flicky/storefront-api/internal/model"
	"github.com/flicky/storefront-api/internal/repository"
)

type mockProductRepo struct {
	products map[int64]*model.Product
	lookups  int
}

func newMockProductRepo(products ...model.Product) *mockProductRepo {
	m := &mockProductRepo{products: make(map[int64]*model.Product)}
	for i := range products {
		p := products[i]
		m.products[p.ID] = &p
	}
	return m
}

func (m *mockProductRepo) GetByID(_ context.Context, id int64) (*model.Product, error) {
	m.lookups++
	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *mockProductRepo) ListAvailable(_ context.Context) ([]model.Product, error) {
	var out []model.Product
	for _, p := range m.products {
		if p.Available {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// mockOrderRepo stages writes per transaction and applies them only when the
// callback succeeds, like a real commit.
type mockOrderRepo struct {
	mu         sync.Mutex
	products   *mockProductRepo
	orders     map[int64]*model.Order
	nextID     int64
	now        func() time.Time
	failInsert error
}

func newMockOrderRepo(products *mockProductRepo) *mockOrderRepo {
	return &mockOrderRepo{
		products: products,
		orders:   make(map[int64]*model.Order),
		now:      time.Now,
	}
}

func (m *mockOrderRepo) InTx(_ context.Context, fn func(tx repository.OrderTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &mockOrderTx{repo: m, staged: make(map[int64]*model.Order), nextID: m.nextID}
	if err := fn(tx); err != nil {
		return err
	}
	for id, o := range tx.staged {
		m.orders[id] = o
	}
	m.nextID = tx.nextID
	return nil
}

func (m *mockOrderRepo) ListByUserID(_ context.Context, userID int64) ([]model.Order, error) {
	var out []model.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, *cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockOrderRepo) GetOwned(_ context.Context, id, userID int64) (*model.Order, error) {
	o, ok := m.orders[id]
	if !ok || o.UserID != userID {
		return nil, nil
	}
	return cloneOrder(o), nil
}

type mockOrderTx struct {
	repo   *mockOrderRepo
	staged map[int64]*model.Order
	nextID int64
}

func (t *mockOrderTx) Products() repository.ProductLookup { return t.repo.products }

func (t *mockOrderTx) Insert(_ context.Context, order *model.Order) error {
	if t.repo.failInsert != nil {
		return t.repo.failInsert
	}
	t.nextID++
	order.ID = t.nextID
	order.CreatedAt = t.repo.now()
	order.UpdatedAt = order.CreatedAt
	for i := range order.Items {
		order.Items[i].ID = order.ID*100 + int64(i)
		order.Items[i].OrderID = order.ID
	}
	t.staged[order.ID] = cloneOrder(order)
	return nil
}

func (t *mockOrderTx) current(id int64) *model.Order {
	if o, ok := t.staged[id]; ok {
		return o
	}
	return t.repo.orders[id]
}

func (t *mockOrderTx) LockOwned(_ context.Context, id, userID int64) (*model.Order, error) {
	o := t.current(id)
	if o == nil || o.UserID != userID {
		return nil, nil
	}
	return cloneOrder(o), nil
}

func (t *mockOrderTx) Lock(_ context.Context, id int64) (*model.Order, error) {
	o := t.current(id)
	if o == nil {
		return nil, nil
	}
	return cloneOrder(o), nil
}

func (t *mockOrderTx) UpdateStatus(_ context.Context, id int64, from, to model.OrderStatus) (bool, error) {
	o := t.current(id)
	if o == nil || o.Status != from {
		return false, nil
	}
	updated := cloneOrder(o)
	updated.Status = to
	t.staged[id] = updated
	return true, nil
}

func cloneOrder(o *model.Order) *model.Order {
	cp := *o
	cp.Items = append([]model.OrderItem(nil), o.Items...)
	return &cp
}

type publishedEvent struct {
	routingKey string
	event      model.OrderEvent
}

type fakePublisher struct {
	events []publishedEvent
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, routingKey string, event any) error {
	if f.err != nil {
		return f.err
	}
	e, _ := event.(model.OrderEvent)
	f.events = append(f.events, publishedEvent{routingKey: routingKey, event: e})
	return nil
}

type fakeGateway struct {
	calls       []model.IntentRequest
	hadDeadline bool
	err         error
}

func (f *fakeGateway) CreateIntent(ctx context.Context, req model.IntentRequest) (*model.PaymentIntent, error) {
	f.calls = append(f.calls, req)
	_, f.hadDeadline = ctx.Deadline()
	if f.err != nil {
		return nil, f.err
	}
	return &model.PaymentIntent{
		ID:           "pi_test",
		ClientSecret: "pi_test_secret",
		Amount:       req.Amount,
		Currency:     req.Currency,
	}, nil
}

type mockUserRepo struct {
	users  map[string]*model.User
	byID   map[int64]*model.User
	nextID int64
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User), byID: make(map[int64]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	if _, ok := m.users[user.Username]; ok {
		return repository.ErrDuplicate
	}
	m.nextID++
	user.ID = m.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	m.users[user.Username] = user
	m.byID[user.ID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id int64) (*model.User, error) {
	return m.byID[id], nil
}

func (m *mockUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	return m.users[username], nil
}

type mockCatalogRepo struct {
	categories  []model.Category
	collections []model.Collection
	err         error
}

func (m *mockCatalogRepo) ListCategories(_ context.Context) ([]model.Category, error) {
	return m.categories, m.err
}

func (m *mockCatalogRepo) ListActiveCollections(_ context.Context, gender model.Gender) ([]model.Collection, error) {
	var out []model.Collection
	for _, c := range m.collections {
		if c.Active && (gender == "" || c.Gender == gender) {
			out = append(out, c)
		}
	}
	return out, m.err
}

func (m *mockCatalogRepo) GetActiveCollection(_ context.Context, slug string) (*model.Collection, error) {
	for _, c := range m.collections {
		if c.Slug == slug && c.Active {
			cp := c
			return &cp, nil
		}
	}
	return nil, m.err
}

var errBoom = errors.New("boom")
