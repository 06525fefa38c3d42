// Package handler runs operator console commands against the services.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"fieldops/internal/app"
	"fieldops/internal/models"
	"fieldops/internal/report"
	"fieldops/internal/repository"
	"fieldops/internal/service"
)

var ErrExit = errors.New("exit")

type Handler struct {
	svc   *app.Services
	actor models.Actor
	out   io.Writer
}

// New runs every command as actor, normally the bootstrap admin.
func New(svc *app.Services, actor models.Actor, out io.Writer) *Handler {
	return &Handler{svc: svc, actor: actor, out: out}
}

// Execute runs one command. Command failures are printed; only unknown
// commands and exit come back as errors.
func (h *Handler) Execute(ctx context.Context, cmd string, args []string) error {
	commands := map[string]func(context.Context, []string) error{
		"help":            h.printHelp,
		"exit":            func(context.Context, []string) error { return ErrExit },
		"useradd":         h.handleUserAdd,
		"roles":           h.handleRoles,
		"role":            h.handleRole,
		"perms":           h.handlePerms,
		"orders":          h.handleOrders,
		"requests":        h.handleRequests,
		"approve":         h.handleApprove,
		"totals":          h.handleTotals,
		"statement":       h.handleStatement,
		"import_products": h.handleImportProducts,
	}

	fn, ok := commands[cmd]
	if !ok {
		return fmt.Errorf("unknown command %q, type 'help'", cmd)
	}
	if err := fn(ctx, args); err != nil {
		if errors.Is(err, ErrExit) {
			return err
		}
		h.printf("%s: %v\n", cmd, err)
	}
	return nil
}

func (h *Handler) printf(format string, args ...any) {
	fmt.Fprintf(h.out, format, args...)
}

func (h *Handler) printHelp(context.Context, []string) error {
	h.printf(`commands:
  help
  exit
  useradd <username> <password> <role> [customerID]
  roles
  role <name> <key1,key2,...>
  perms <role>
  orders [status] [assignedTo]
  requests [status]
  approve <requestID>
  totals
  statement <customerID> <file.xlsx>
  import_products <file.json>
`)
	return nil
}

func (h *Handler) handleUserAdd(ctx context.Context, args []string) error {
	if len(args) < 3 || len(args) > 4 {
		return errors.New("usage: useradd <username> <password> <role> [customerID]")
	}
	in := service.CreateUserInput{Username: args[0], Password: args[1], Role: args[2], Name: args[0]}
	if len(args) == 4 {
		in.CustomerID = args[3]
	}
	u, err := h.svc.Access.CreateUser(ctx, h.actor, in)
	if err != nil {
		return err
	}
	h.printf("user %s created: id=%s role=%s\n", u.Username, u.ID, u.Role)
	return nil
}

func (h *Handler) handleRoles(ctx context.Context, _ []string) error {
	roles, err := h.svc.Access.ListRoles(ctx)
	if err != nil {
		return err
	}
	for _, r := range roles {
		h.printf("  %s: %s\n", r.Name, strings.Join(r.Permissions, ","))
	}
	return nil
}

func (h *Handler) handleRole(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: role <name> <key1,key2,...>")
	}
	role, err := h.svc.Access.PutRole(ctx, h.actor, args[0], strings.Split(args[1], ","))
	if err != nil {
		return err
	}
	h.printf("role %s now holds %d permissions\n", role.Name, len(role.Permissions))
	return nil
}

// handlePerms shows what a user of role would see after signing in.
func (h *Handler) handlePerms(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: perms <role>")
	}
	pc, err := h.svc.Access.Permissions(ctx, models.Actor{Role: args[0]})
	if err != nil {
		return err
	}
	defer pc.Close()
	keys := pc.Keys()
	if len(keys) == 0 {
		h.printf("role %s has no permissions\n", args[0])
		return nil
	}
	for _, k := range keys {
		h.printf("  %s\n", k)
	}
	return nil
}

func (h *Handler) handleOrders(ctx context.Context, args []string) error {
	var f repository.OrderFilter
	if len(args) >= 1 {
		f.Status = models.OrderStatus(args[0])
		if !f.Status.Valid() {
			return fmt.Errorf("unknown status %q", args[0])
		}
	}
	if len(args) >= 2 {
		f.AssignedTo = args[1]
	}
	orders, err := h.svc.Orders.List(ctx, h.actor, f)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		h.printf("no orders\n")
		return nil
	}
	for _, o := range orders {
		h.printf("  %s customer=%s product=%s %s/%s %s status=%s assignment=%s delivery=%s\n",
			o.ID, o.CustomerID, o.ProductID, o.DeliveredQuantity, o.OrderedQuantity, o.Unit,
			o.Status, o.AssignmentStatus, o.DeliveryState())
	}
	return nil
}

func (h *Handler) handleRequests(ctx context.Context, args []string) error {
	var f repository.RequestFilter
	if len(args) >= 1 {
		f.Status = models.RequestStatus(args[0])
	}
	reqs, err := h.svc.Requests.List(ctx, h.actor, f)
	if err != nil {
		return err
	}
	if len(reqs) == 0 {
		h.printf("no requests\n")
		return nil
	}
	for _, r := range reqs {
		h.printf("  %s customer=%s items=%d total=%s status=%s\n", r.ID, r.CustomerID, len(r.Items), r.GrandTotal, r.Status)
	}
	return nil
}

func (h *Handler) handleApprove(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: approve <requestID>")
	}
	req, orders, err := h.svc.Requests.Approve(ctx, h.actor, args[0])
	if err != nil {
		return err
	}
	h.printf("request %s approved, %d order(s) created\n", req.ID, len(orders))
	return nil
}

func (h *Handler) handleTotals(ctx context.Context, _ []string) error {
	t, err := h.svc.Wallet.Totals(ctx, h.actor)
	if err != nil {
		return err
	}
	h.printf("collected=%s pending_approval=%s\n", t.Collected, t.PendingApproval)
	for id, r := range t.ByRecipient {
		h.printf("  %s received=%s pending=%s paid_to_admin=%s\n", id, r.Received, r.Pending, r.PaidToAdmin)
	}
	return nil
}

func (h *Handler) handleStatement(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: statement <customerID> <file.xlsx>")
	}
	st, err := h.svc.Wallet.Statement(ctx, h.actor, args[0])
	if err != nil {
		return err
	}
	file, err := os.Create(args[1])
	if err != nil {
		return err
	}
	defer file.Close()
	if err := report.WriteStatement(file, st.Customer, st.Orders, st.Transactions); err != nil {
		return err
	}
	h.printf("statement for %s written to %s (%d orders, %d payments)\n", args[0], args[1], len(st.Orders), len(st.Transactions))
	return nil
}

// handleImportProducts loads a JSON array of products; bad entries are
// reported and skipped.
func (h *Handler) handleImportProducts(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: import_products <file.json>")
	}
	file, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer file.Close()

	var products []struct {
		Name  string          `json:"name"`
		Unit  string          `json:"unit"`
		Price decimal.Decimal `json:"price"`
		Stock decimal.Decimal `json:"stock"`
	}
	if err := json.NewDecoder(file).Decode(&products); err != nil {
		return fmt.Errorf("decode %s: %w", args[0], err)
	}
	for _, p := range products {
		created, err := h.svc.Catalog.CreateProduct(ctx, h.actor, service.ProductInput{
			Name: p.Name, Unit: p.Unit, Price: p.Price, Stock: p.Stock,
		})
		if err != nil {
			h.printf("  skipped %q: %v\n", p.Name, err)
			continue
		}
		h.printf("  product %s created: %s\n", created.Name, created.ID)
	}
	return nil
}
