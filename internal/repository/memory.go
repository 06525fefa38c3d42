package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"fieldops/internal/apperr"
	"fieldops/internal/models"
)

type memState struct {
	customers map[string]models.Customer
	products  map[string]models.Product
	orders    map[string]models.Order
	requests  map[string]models.OrderRequest
	bills     map[string]models.BillTransaction
	roles     map[string]models.Role
	users     map[string]models.User
	tasks     map[int64]Task
	nextTask  int64
}

func newMemState() *memState {
	return &memState{
		customers: make(map[string]models.Customer),
		products:  make(map[string]models.Product),
		orders:    make(map[string]models.Order),
		requests:  make(map[string]models.OrderRequest),
		bills:     make(map[string]models.BillTransaction),
		roles:     make(map[string]models.Role),
		users:     make(map[string]models.User),
		tasks:     make(map[int64]Task),
	}
}

func cloneMap[K comparable, V any](m map[K]V, cp func(V) V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = cp(v)
	}
	return out
}

func same[V any](v V) V { return v }

func copyRequest(r models.OrderRequest) models.OrderRequest {
	r.Items = append([]models.RequestItem(nil), r.Items...)
	return r
}

func copyRole(r models.Role) models.Role {
	r.Permissions = append([]string(nil), r.Permissions...)
	return r
}

func copyBill(b models.BillTransaction) models.BillTransaction {
	if b.Cheque != nil {
		c := *b.Cheque
		b.Cheque = &c
	}
	return b
}

func (s *memState) clone() *memState {
	return &memState{
		customers: cloneMap(s.customers, same[models.Customer]),
		products:  cloneMap(s.products, same[models.Product]),
		orders:    cloneMap(s.orders, same[models.Order]),
		requests:  cloneMap(s.requests, copyRequest),
		bills:     cloneMap(s.bills, copyBill),
		roles:     cloneMap(s.roles, copyRole),
		users:     cloneMap(s.users, same[models.User]),
		tasks:     cloneMap(s.tasks, same[Task]),
		nextTask:  s.nextTask,
	}
}

// MemoryStore keeps every record in process. Transactions are serialized and
// run against a copy of the state that replaces it only on success.
type MemoryStore struct {
	*memRepo
	mu    sync.Mutex
	state *memState
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{state: newMemState()}
	s.memRepo = &memRepo{store: s}
	return s
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(r Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&memRepo{st: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

type memRepo struct {
	st    *memState
	store *MemoryStore
}

func (r *memRepo) begin() (*memState, func()) {
	if r.st != nil {
		return r.st, func() {}
	}
	r.store.mu.Lock()
	return r.store.state, r.store.mu.Unlock
}

func sortedValues[V any](m map[string]V, keep func(V) bool, less func(a, b *V) bool) []*V {
	res := make([]*V, 0, len(m))
	for _, v := range m {
		if keep(v) {
			res = append(res, &v)
		}
	}
	sort.Slice(res, func(i, j int) bool { return less(res[i], res[j]) })
	return res
}

func (r *memRepo) CreateCustomer(_ context.Context, c *models.Customer) error {
	st, done := r.begin()
	defer done()
	if _, ok := st.customers[c.ID]; ok {
		return apperr.Validation("create customer: %s already exists", c.ID)
	}
	st.customers[c.ID] = *c
	return nil
}

func (r *memRepo) GetCustomer(_ context.Context, id string) (*models.Customer, error) {
	st, done := r.begin()
	defer done()
	c, ok := st.customers[id]
	if !ok {
		return nil, apperr.NotFound("customer", id)
	}
	return &c, nil
}

func (r *memRepo) ListCustomers(_ context.Context) ([]*models.Customer, error) {
	st, done := r.begin()
	defer done()
	return sortedValues(st.customers,
		func(models.Customer) bool { return true },
		func(a, b *models.Customer) bool { return a.Name < b.Name || a.Name == b.Name && a.ID < b.ID },
	), nil
}

func (r *memRepo) UpdateCustomer(_ context.Context, c *models.Customer) error {
	st, done := r.begin()
	defer done()
	old, ok := st.customers[c.ID]
	if !ok {
		return apperr.NotFound("customer", c.ID)
	}
	c.CreatedAt = old.CreatedAt
	c.AvailableCredit = old.AvailableCredit
	st.customers[c.ID] = *c
	return nil
}

func (r *memRepo) DeleteCustomer(_ context.Context, id string) error {
	st, done := r.begin()
	defer done()
	if _, ok := st.customers[id]; !ok {
		return apperr.NotFound("customer", id)
	}
	for _, o := range st.orders {
		if o.CustomerID == id {
			return apperr.Validation("delete customer: %s still has orders", id)
		}
	}
	delete(st.customers, id)
	return nil
}

func (r *memRepo) AdjustCredit(_ context.Context, customerID string, delta decimal.Decimal) error {
	st, done := r.begin()
	defer done()
	c, ok := st.customers[customerID]
	if !ok {
		return apperr.NotFound("customer", customerID)
	}
	next := c.AvailableCredit.Add(delta)
	if next.IsNegative() {
		return apperr.InsufficientCredit("customer %s cannot cover %s", customerID, delta.Neg())
	}
	c.AvailableCredit = next
	st.customers[customerID] = c
	return nil
}

func (r *memRepo) CreateProduct(_ context.Context, p *models.Product) error {
	st, done := r.begin()
	defer done()
	if _, ok := st.products[p.ID]; ok {
		return apperr.Validation("create product: %s already exists", p.ID)
	}
	st.products[p.ID] = *p
	return nil
}

func (r *memRepo) GetProduct(_ context.Context, id string) (*models.Product, error) {
	st, done := r.begin()
	defer done()
	p, ok := st.products[id]
	if !ok {
		return nil, apperr.NotFound("product", id)
	}
	return &p, nil
}

func (r *memRepo) ListProducts(_ context.Context) ([]*models.Product, error) {
	st, done := r.begin()
	defer done()
	return sortedValues(st.products,
		func(models.Product) bool { return true },
		func(a, b *models.Product) bool { return a.Name < b.Name || a.Name == b.Name && a.ID < b.ID },
	), nil
}

func (r *memRepo) UpdateProduct(_ context.Context, p *models.Product) error {
	st, done := r.begin()
	defer done()
	old, ok := st.products[p.ID]
	if !ok {
		return apperr.NotFound("product", p.ID)
	}
	p.CreatedAt = old.CreatedAt
	p.Stock = old.Stock
	st.products[p.ID] = *p
	return nil
}

func (r *memRepo) DeleteProduct(_ context.Context, id string) error {
	st, done := r.begin()
	defer done()
	if _, ok := st.products[id]; !ok {
		return apperr.NotFound("product", id)
	}
	for _, o := range st.orders {
		if o.ProductID == id {
			return apperr.Validation("delete product: %s still has orders", id)
		}
	}
	delete(st.products, id)
	return nil
}

func (r *memRepo) AdjustStock(_ context.Context, productID string, delta decimal.Decimal) error {
	st, done := r.begin()
	defer done()
	p, ok := st.products[productID]
	if !ok {
		return apperr.NotFound("product", productID)
	}
	next := p.Stock.Add(delta)
	if next.IsNegative() {
		return apperr.Validation("insufficient stock for product %s: have %s, need %s", productID, p.Stock, delta.Neg())
	}
	p.Stock = next
	st.products[productID] = p
	return nil
}

func (r *memRepo) CreateOrder(_ context.Context, o *models.Order) error {
	st, done := r.begin()
	defer done()
	if _, ok := st.orders[o.ID]; ok {
		return apperr.Validation("create order: %s already exists", o.ID)
	}
	st.orders[o.ID] = *o
	return nil
}

func (r *memRepo) GetOrder(_ context.Context, id string) (*models.Order, error) {
	st, done := r.begin()
	defer done()
	o, ok := st.orders[id]
	if !ok {
		return nil, apperr.NotFound("order", id)
	}
	return &o, nil
}

// LockOrder is GetOrder: transactions are already serialized.
func (r *memRepo) LockOrder(ctx context.Context, id string) (*models.Order, error) {
	return r.GetOrder(ctx, id)
}

func (r *memRepo) UpdateOrder(_ context.Context, o *models.Order) error {
	st, done := r.begin()
	defer done()
	old, ok := st.orders[o.ID]
	if !ok {
		return apperr.NotFound("order", o.ID)
	}
	if old.Version != o.Version {
		return apperr.InvalidTransition("order %s was modified concurrently", o.ID)
	}
	o.Version++
	st.orders[o.ID] = *o
	return nil
}

func (r *memRepo) ListOrders(_ context.Context, f OrderFilter) ([]*models.Order, error) {
	st, done := r.begin()
	defer done()
	res := sortedValues(st.orders, func(o models.Order) bool {
		return (f.Status == "" || o.Status == f.Status) &&
			(f.AssignmentStatus == "" || o.AssignmentStatus == f.AssignmentStatus) &&
			(f.AssignedTo == "" || o.AssignedTo == f.AssignedTo) &&
			(f.CustomerID == "" || o.CustomerID == f.CustomerID) &&
			(f.RequestID == "" || o.RequestID == f.RequestID) &&
			(f.Cursor == "" || o.ID > f.Cursor)
	}, func(a, b *models.Order) bool { return a.ID < b.ID })
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	if int64(len(res)) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (r *memRepo) CreateRequest(_ context.Context, req *models.OrderRequest) error {
	st, done := r.begin()
	defer done()
	if _, ok := st.requests[req.ID]; ok {
		return apperr.Validation("create order request: %s already exists", req.ID)
	}
	st.requests[req.ID] = copyRequest(*req)
	return nil
}

func (r *memRepo) GetRequest(_ context.Context, id string) (*models.OrderRequest, error) {
	st, done := r.begin()
	defer done()
	req, ok := st.requests[id]
	if !ok {
		return nil, apperr.NotFound("order request", id)
	}
	req = copyRequest(req)
	return &req, nil
}

func (r *memRepo) LockRequest(ctx context.Context, id string) (*models.OrderRequest, error) {
	return r.GetRequest(ctx, id)
}

func (r *memRepo) UpdateRequest(_ context.Context, req *models.OrderRequest) error {
	st, done := r.begin()
	defer done()
	if _, ok := st.requests[req.ID]; !ok {
		return apperr.NotFound("order request", req.ID)
	}
	st.requests[req.ID] = copyRequest(*req)
	return nil
}

func (r *memRepo) ListRequests(_ context.Context, f RequestFilter) ([]*models.OrderRequest, error) {
	st, done := r.begin()
	defer done()
	res := sortedValues(st.requests, func(req models.OrderRequest) bool {
		return (f.Status == "" || req.Status == f.Status) &&
			(f.CustomerID == "" || req.CustomerID == f.CustomerID)
	}, func(a, b *models.OrderRequest) bool {
		if !a.RequestedAt.Equal(b.RequestedAt) {
			return a.RequestedAt.After(b.RequestedAt)
		}
		return a.ID < b.ID
	})
	for _, req := range res {
		*req = copyRequest(*req)
	}
	return res, nil
}

func (r *memRepo) CreateBill(_ context.Context, b *models.BillTransaction) error {
	st, done := r.begin()
	defer done()
	if _, ok := st.bills[b.ID]; ok {
		return apperr.Validation("create bill transaction: %s already exists", b.ID)
	}
	st.bills[b.ID] = copyBill(*b)
	return nil
}

func (r *memRepo) GetBill(_ context.Context, id string) (*models.BillTransaction, error) {
	st, done := r.begin()
	defer done()
	b, ok := st.bills[id]
	if !ok {
		return nil, apperr.NotFound("bill transaction", id)
	}
	b = copyBill(b)
	return &b, nil
}

func (r *memRepo) LockBill(ctx context.Context, id string) (*models.BillTransaction, error) {
	return r.GetBill(ctx, id)
}

func (r *memRepo) UpdateBill(_ context.Context, b *models.BillTransaction) error {
	st, done := r.begin()
	defer done()
	if _, ok := st.bills[b.ID]; !ok {
		return apperr.NotFound("bill transaction", b.ID)
	}
	st.bills[b.ID] = copyBill(*b)
	return nil
}

func (r *memRepo) ListBills(_ context.Context, f BillFilter) ([]*models.BillTransaction, error) {
	st, done := r.begin()
	defer done()
	res := sortedValues(st.bills, func(b models.BillTransaction) bool {
		return (f.Status == "" || b.Status == f.Status) &&
			(f.RecipientID == "" || b.RecipientID == f.RecipientID) &&
			(f.CustomerID == "" || b.CustomerID == f.CustomerID)
	}, func(a, b *models.BillTransaction) bool {
		if !a.CollectedAt.Equal(b.CollectedAt) {
			return a.CollectedAt.After(b.CollectedAt)
		}
		return a.ID < b.ID
	})
	for _, b := range res {
		*b = copyBill(*b)
	}
	return res, nil
}

func (r *memRepo) ListRoles(_ context.Context) ([]*models.Role, error) {
	st, done := r.begin()
	defer done()
	res := sortedValues(st.roles,
		func(models.Role) bool { return true },
		func(a, b *models.Role) bool { return a.Name < b.Name })
	for _, role := range res {
		*role = copyRole(*role)
	}
	return res, nil
}

func (r *memRepo) GetRole(_ context.Context, name string) (*models.Role, error) {
	st, done := r.begin()
	defer done()
	role, ok := st.roles[name]
	if !ok {
		return nil, apperr.NotFound("role", name)
	}
	role = copyRole(role)
	return &role, nil
}

func (r *memRepo) PutRole(_ context.Context, role *models.Role) error {
	st, done := r.begin()
	defer done()
	st.roles[role.Name] = copyRole(*role)
	return nil
}

func (r *memRepo) CreateUser(_ context.Context, u *models.User) error {
	st, done := r.begin()
	defer done()
	for _, existing := range st.users {
		if existing.Username == u.Username {
			return apperr.Validation("create user: username %q is taken", u.Username)
		}
	}
	st.users[u.ID] = *u
	return nil
}

func (r *memRepo) GetUser(_ context.Context, id string) (*models.User, error) {
	st, done := r.begin()
	defer done()
	u, ok := st.users[id]
	if !ok {
		return nil, apperr.NotFound("user", id)
	}
	return &u, nil
}

func (r *memRepo) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	st, done := r.begin()
	defer done()
	for _, u := range st.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, apperr.NotFound("user", username)
}

func (r *memRepo) CreateTask(_ context.Context, topic string, payload []byte) error {
	st, done := r.begin()
	defer done()
	st.nextTask++
	now := time.Now().UTC()
	st.tasks[st.nextTask] = Task{
		ID:        st.nextTask,
		CreatedAt: now,
		UpdatedAt: now,
		Topic:     topic,
		Payload:   append([]byte(nil), payload...),
		Status:    TaskStatusCreated,
	}
	return nil
}

func (r *memRepo) GetPendingTasks(_ context.Context, limit, maxAttempts int) ([]*Task, error) {
	st, done := r.begin()
	defer done()
	now := time.Now()
	var tasks []*Task
	for _, t := range st.tasks {
		if t.Status != TaskStatusCreated && t.Status != TaskStatusFailed {
			continue
		}
		if t.AttemptCount >= maxAttempts || t.NextAttemptAt.Valid && t.NextAttemptAt.Time.After(now) {
			continue
		}
		tasks = append(tasks, &t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	if len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks, nil
}

func (r *memRepo) MarkTaskProcessing(_ context.Context, taskID int64) error {
	st, done := r.begin()
	defer done()
	if t, ok := st.tasks[taskID]; ok {
		t.Status = TaskStatusProcessing
		t.UpdatedAt = time.Now().UTC()
		st.tasks[taskID] = t
	}
	return nil
}

func (r *memRepo) DeleteTask(_ context.Context, taskID int64) error {
	st, done := r.begin()
	defer done()
	delete(st.tasks, taskID)
	return nil
}

func (r *memRepo) UpdateTaskFailure(_ context.Context, taskID int64, attemptCount int, newStatus TaskStatus, nextAttemptAt time.Time) error {
	st, done := r.begin()
	defer done()
	if t, ok := st.tasks[taskID]; ok {
		t.Status = newStatus
		t.AttemptCount = attemptCount
		t.UpdatedAt = time.Now().UTC()
		t.NextAttemptAt.Time, t.NextAttemptAt.Valid = nextAttemptAt, true
		st.tasks[taskID] = t
	}
	return nil
}

var (
	_ Store          = (*MemoryStore)(nil)
	_ Store          = (*PostgresStore)(nil)
	_ TaskRepository = (*MemoryStore)(nil)
	_ TaskRepository = (*PostgresStore)(nil)
)
