package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"fieldops/internal/audit"
	"fieldops/internal/auth"
	"fieldops/internal/metrics"
	"fieldops/internal/middleware"
	"fieldops/internal/permission"
	"fieldops/internal/service"
)

// Deps are the collaborators the HTTP layer dispatches to.
type Deps struct {
	Orders   *service.OrderService
	Requests *service.RequestService
	Wallet   *service.WalletService
	Catalog  *service.CatalogService
	Access   *service.AccessService

	Tokens  *auth.TokenIssuer
	Authz   *permission.Authorizer
	Auditor audit.Auditor
	Metrics *metrics.Metrics
	// Events streams outbox events to websocket clients; /ws is not served when nil.
	Events http.Handler
	Log    *slog.Logger
}

type Server struct {
	Deps
	addr string
}

// auditedMethods are the methods whose requests reach the audit log.
var auditedMethods = []string{http.MethodPost, http.MethodPut, http.MethodDelete}

// authenticated marks routes open to any signed-in caller.
const authenticated = ""

func NewServer(d Deps, addr string) *Server {
	if d.Auditor == nil {
		d.Auditor = audit.Nop{}
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	return &Server{Deps: d, addr: addr}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	s.public(mux, "POST /auth/login", s.handleLogin)
	mux.Handle("GET /metrics", s.Metrics.Handler())

	s.handleWith(mux, "GET /me/permissions", authenticated, s.handleMyPermissions)

	s.handleWith(mux, "GET /customers", permission.CustomersView, s.handleListCustomers)
	s.handleWith(mux, "POST /customers", permission.CustomersManage, s.handleCreateCustomer)
	s.handleWith(mux, "GET /customers/{id}", permission.CustomersView, s.handleGetCustomer)
	s.handleWith(mux, "PUT /customers/{id}", permission.CustomersManage, s.handleUpdateCustomer)
	s.handleWith(mux, "DELETE /customers/{id}", permission.CustomersManage, s.handleDeleteCustomer)
	s.handleWith(mux, "GET /customers/{id}/statement.xlsx", permission.BillsView, s.handleStatement)

	s.handleWith(mux, "GET /products", permission.ProductsView, s.handleListProducts)
	s.handleWith(mux, "POST /products", permission.ProductsManage, s.handleCreateProduct)
	s.handleWith(mux, "GET /products/{id}", permission.ProductsView, s.handleGetProduct)
	s.handleWith(mux, "PUT /products/{id}", permission.ProductsManage, s.handleUpdateProduct)
	s.handleWith(mux, "DELETE /products/{id}", permission.ProductsManage, s.handleDeleteProduct)

	s.handleWith(mux, "GET /orders", permission.OrdersView, s.handleListOrders)
	s.handleWith(mux, "POST /orders", permission.OrdersCreate, s.handleCreateOrder)
	s.handleWith(mux, "GET /orders/{id}", permission.OrdersView, s.handleGetOrder)
	s.handleWith(mux, "POST /orders/{id}/assign", permission.OrdersAssign, s.handleAssign)
	s.handleWith(mux, "POST /orders/{id}/accept", permission.OrdersDeliver, s.handleAccept)
	s.handleWith(mux, "POST /orders/{id}/reject", permission.OrdersDeliver, s.handleRejectOrder)
	s.handleWith(mux, "POST /orders/{id}/deliver", permission.OrdersDeliver, s.handleDeliver)
	s.handleWith(mux, "POST /orders/{id}/cancel", permission.OrdersCancel, s.handleCancel)

	s.handleWith(mux, "GET /order-requests", permission.RequestsView, s.handleListRequests)
	s.handleWith(mux, "POST /order-requests", permission.RequestsSubmit, s.handleSubmitRequest)
	s.handleWith(mux, "GET /order-requests/{id}", permission.RequestsView, s.handleGetRequest)
	s.handleWith(mux, "POST /order-requests/{id}/approve", permission.RequestsApprove, s.handleApproveRequest)
	s.handleWith(mux, "POST /order-requests/{id}/reject", permission.RequestsApprove, s.handleRejectRequest)

	s.handleWith(mux, "GET /wallet/transactions", permission.WalletView, s.handleListBills)
	s.handleWith(mux, "POST /wallet/transactions", permission.WalletRecord, s.handleRecordCollection)
	s.handleWith(mux, "POST /wallet/transactions/{id}/forward", permission.WalletRecord, s.handleForward)
	s.handleWith(mux, "POST /wallet/transactions/{id}/accept", permission.WalletReview, s.handleAcceptBill)
	s.handleWith(mux, "POST /wallet/transactions/{id}/reject", permission.WalletReview, s.handleRejectBill)
	s.handleWith(mux, "GET /wallet/totals", permission.WalletReview, s.handleWalletTotals)
	s.handleWith(mux, "GET /wallet/me/totals", permission.WalletView, s.handleMyTotals)

	s.handleWith(mux, "GET /roles", permission.RolesManage, s.handleListRoles)
	s.handleWith(mux, "PUT /roles/{name}", permission.RolesManage, s.handlePutRole)
	s.handleWith(mux, "POST /users", permission.UsersManage, s.handleCreateUser)

	if s.Events != nil {
		s.handleWith(mux, "GET /ws", authenticated, s.Events.ServeHTTP)
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return mux
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.Log.Info("server_listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleWith(mux *http.ServeMux, pattern, perm string, handlerFunc http.HandlerFunc) {
	var h http.Handler = handlerFunc
	if perm != authenticated {
		h = middleware.PermissionMiddleware(s.Authz, perm)(h)
	}
	h = middleware.BearerAuthMiddleware(s.Tokens)(h)
	h = middleware.LogMiddleware(s.Log, s.Auditor, auditedMethods...)(h)
	mux.Handle(pattern, middleware.MetricsMiddleware(s.Metrics, pattern)(h))
}

func (s *Server) public(mux *http.ServeMux, pattern string, handlerFunc http.HandlerFunc) {
	h := middleware.LogMiddleware(s.Log, audit.Nop{})(handlerFunc)
	mux.Handle(pattern, middleware.MetricsMiddleware(s.Metrics, pattern)(h))
}
