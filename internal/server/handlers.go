package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"fieldops/internal/apperr"
	"fieldops/internal/middleware"
	"fieldops/internal/models"
	"fieldops/internal/report"
	"fieldops/internal/repository"
	"fieldops/internal/service"
)

func writeJSON(w http.ResponseWriter, code int, data any) {
	middleware.WriteJSON(w, code, data)
}

func writeError(w http.ResponseWriter, err error) {
	middleware.WriteError(w, err)
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Validation("bad JSON: %v", err)
	}
	return nil
}

func actor(r *http.Request) models.Actor {
	a, _ := middleware.ActorFrom(r.Context())
	return a
}

// respond writes v with code, or the error when err is set.
func respond(w http.ResponseWriter, code int, v any, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, code, v)
}

// auth

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	token, u, err := s.Access.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: u})
}

type permissionsResponse struct {
	Role string   `json:"role"`
	Keys []string `json:"keys"`
}

func (s *Server) handleMyPermissions(w http.ResponseWriter, r *http.Request) {
	a := actor(r)
	pc, err := s.Access.Permissions(r.Context(), a)
	if err != nil {
		writeError(w, err)
		return
	}
	defer pc.Close()
	writeJSON(w, http.StatusOK, permissionsResponse{Role: a.Role, Keys: pc.Keys()})
}

// customers

func (s *Server) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	list, err := s.Catalog.ListCustomers(r.Context(), actor(r))
	respond(w, http.StatusOK, list, err)
}

func (s *Server) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var in service.CustomerInput
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	c, err := s.Catalog.CreateCustomer(r.Context(), actor(r), in)
	respond(w, http.StatusCreated, c, err)
}

func (s *Server) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := s.Catalog.GetCustomer(r.Context(), actor(r), r.PathValue("id"))
	respond(w, http.StatusOK, c, err)
}

func (s *Server) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var in service.CustomerInput
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	c, err := s.Catalog.UpdateCustomer(r.Context(), actor(r), r.PathValue("id"), in)
	respond(w, http.StatusOK, c, err)
}

func (s *Server) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := s.Catalog.DeleteCustomer(r.Context(), actor(r), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStatement(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	st, err := s.Wallet.Statement(r.Context(), actor(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := report.WriteStatement(&buf, st.Customer, st.Orders, st.Transactions); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="statement-%s.xlsx"`, id))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// products

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	list, err := s.Catalog.ListProducts(r.Context())
	respond(w, http.StatusOK, list, err)
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var in service.ProductInput
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	p, err := s.Catalog.CreateProduct(r.Context(), actor(r), in)
	respond(w, http.StatusCreated, p, err)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.Catalog.GetProduct(r.Context(), r.PathValue("id"))
	respond(w, http.StatusOK, p, err)
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var in service.ProductInput
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	p, err := s.Catalog.UpdateProduct(r.Context(), actor(r), r.PathValue("id"), in)
	respond(w, http.StatusOK, p, err)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := s.Catalog.DeleteProduct(r.Context(), actor(r), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// orders

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := repository.OrderFilter{
		Status:           models.OrderStatus(q.Get("status")),
		AssignmentStatus: models.AssignmentStatus(q.Get("assignment_status")),
		AssignedTo:       q.Get("assigned_to"),
		CustomerID:       q.Get("customer_id"),
		RequestID:        q.Get("request_id"),
		Cursor:           q.Get("cursor"),
	}
	if f.Status != "" && !f.Status.Valid() {
		writeError(w, apperr.Validation("unknown order status %q", f.Status))
		return
	}
	if f.AssignmentStatus != "" && !f.AssignmentStatus.Valid() {
		writeError(w, apperr.Validation("unknown assignment status %q", f.AssignmentStatus))
		return
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.ParseInt(v, 10, 64)
		if err != nil || limit <= 0 {
			writeError(w, apperr.Validation("limit must be a positive integer"))
			return
		}
		f.Limit = limit
	}
	list, err := s.Orders.List(r.Context(), actor(r), f)
	respond(w, http.StatusOK, list, err)
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var in service.CreateOrderInput
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	o, err := s.Orders.Create(r.Context(), actor(r), in)
	respond(w, http.StatusCreated, o, err)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := s.Orders.Get(r.Context(), actor(r), r.PathValue("id"))
	respond(w, http.StatusOK, o, err)
}

type assignRequest struct {
	DeliveryUserID string `json:"delivery_user_id"`
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	o, err := s.Orders.Assign(r.Context(), actor(r), r.PathValue("id"), req.DeliveryUserID)
	respond(w, http.StatusOK, o, err)
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	o, err := s.Orders.Accept(r.Context(), actor(r), r.PathValue("id"))
	respond(w, http.StatusOK, o, err)
}

func (s *Server) handleRejectOrder(w http.ResponseWriter, r *http.Request) {
	o, err := s.Orders.Reject(r.Context(), actor(r), r.PathValue("id"))
	respond(w, http.StatusOK, o, err)
}

type deliverResponse struct {
	Order *models.Order           `json:"order"`
	Bill  *models.BillTransaction `json:"bill,omitempty"`
}

func (s *Server) handleDeliver(w http.ResponseWriter, r *http.Request) {
	var in service.DeliverInput
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	o, bill, err := s.Orders.Deliver(r.Context(), actor(r), r.PathValue("id"), in)
	respond(w, http.StatusOK, deliverResponse{Order: o, Bill: bill}, err)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	o, err := s.Orders.Cancel(r.Context(), actor(r), r.PathValue("id"))
	respond(w, http.StatusOK, o, err)
}

// order requests

func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := repository.RequestFilter{
		Status:     models.RequestStatus(q.Get("status")),
		CustomerID: q.Get("customer_id"),
	}
	if f.Status != "" && !f.Status.Valid() {
		writeError(w, apperr.Validation("unknown request status %q", f.Status))
		return
	}
	list, err := s.Requests.List(r.Context(), actor(r), f)
	respond(w, http.StatusOK, list, err)
}

func (s *Server) handleSubmitRequest(w http.ResponseWriter, r *http.Request) {
	var in service.SubmitRequestInput
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	req, err := s.Requests.Submit(r.Context(), actor(r), in)
	respond(w, http.StatusCreated, req, err)
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := s.Requests.Get(r.Context(), actor(r), r.PathValue("id"))
	respond(w, http.StatusOK, req, err)
}

type approveResponse struct {
	Request *models.OrderRequest `json:"request"`
	Orders  []*models.Order      `json:"orders"`
}

func (s *Server) handleApproveRequest(w http.ResponseWriter, r *http.Request) {
	req, orders, err := s.Requests.Approve(r.Context(), actor(r), r.PathValue("id"))
	respond(w, http.StatusOK, approveResponse{Request: req, Orders: orders}, err)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleRejectRequest(w http.ResponseWriter, r *http.Request) {
	var body rejectRequest
	if err := decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	req, err := s.Requests.Reject(r.Context(), actor(r), r.PathValue("id"), body.Reason)
	respond(w, http.StatusOK, req, err)
}

// wallet

func (s *Server) handleListBills(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := repository.BillFilter{
		Status:      models.BillStatus(q.Get("status")),
		RecipientID: q.Get("recipient_id"),
		CustomerID:  q.Get("customer_id"),
	}
	if f.Status != "" && !f.Status.Valid() {
		writeError(w, apperr.Validation("unknown bill status %q", f.Status))
		return
	}
	list, err := s.Wallet.List(r.Context(), actor(r), f)
	respond(w, http.StatusOK, list, err)
}

func (s *Server) handleRecordCollection(w http.ResponseWriter, r *http.Request) {
	var in service.RecordCollectionInput
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	b, err := s.Wallet.Record(r.Context(), actor(r), in)
	respond(w, http.StatusCreated, b, err)
}

func (s *Server) handleForward(w http.ResponseWriter, r *http.Request) {
	b, err := s.Wallet.Forward(r.Context(), actor(r), r.PathValue("id"))
	respond(w, http.StatusOK, b, err)
}

func (s *Server) handleAcceptBill(w http.ResponseWriter, r *http.Request) {
	b, err := s.Wallet.Accept(r.Context(), actor(r), r.PathValue("id"))
	respond(w, http.StatusOK, b, err)
}

func (s *Server) handleRejectBill(w http.ResponseWriter, r *http.Request) {
	b, err := s.Wallet.Reject(r.Context(), actor(r), r.PathValue("id"))
	respond(w, http.StatusOK, b, err)
}

func (s *Server) handleWalletTotals(w http.ResponseWriter, r *http.Request) {
	t, err := s.Wallet.Totals(r.Context(), actor(r))
	respond(w, http.StatusOK, t, err)
}

func (s *Server) handleMyTotals(w http.ResponseWriter, r *http.Request) {
	t, err := s.Wallet.MyTotals(r.Context(), actor(r))
	respond(w, http.StatusOK, t, err)
}

// roles and users

func (s *Server) handleListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := s.Access.ListRoles(r.Context())
	respond(w, http.StatusOK, roles, err)
}

type putRoleRequest struct {
	Permissions []string `json:"permissions"`
}

func (s *Server) handlePutRole(w http.ResponseWriter, r *http.Request) {
	var req putRoleRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	role, err := s.Access.PutRole(r.Context(), actor(r), r.PathValue("name"), req.Permissions)
	respond(w, http.StatusOK, role, err)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var in service.CreateUserInput
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	u, err := s.Access.CreateUser(r.Context(), actor(r), in)
	respond(w, http.StatusCreated, u, err)
}
