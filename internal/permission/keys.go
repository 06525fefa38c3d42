package permission

// Menu keys decide which screens a client offers.
const (
	MenuCustomers = "menu.customers"
	MenuProducts  = "menu.products"
	MenuOrders    = "menu.orders"
	MenuRequests  = "menu.requests"
	MenuWallet    = "menu.wallet"
	MenuAdmin     = "menu.admin"
)

// Action keys guard operations and are enforced per route.
const (
	CustomersView   = "customers.view"
	CustomersManage = "customers.manage"
	ProductsView    = "products.view"
	ProductsManage  = "products.manage"
	OrdersView      = "orders.view"
	OrdersCreate    = "orders.create"
	OrdersAssign    = "orders.assign"
	OrdersDeliver   = "orders.deliver"
	OrdersCancel    = "orders.cancel"
	RequestsView    = "requests.view"
	RequestsSubmit  = "requests.submit"
	RequestsApprove = "requests.approve"
	WalletView      = "wallet.view"
	WalletRecord    = "wallet.record"
	WalletReview    = "wallet.review"
	BillsView       = "bills.view"
	RolesManage     = "roles.manage"
	UsersManage     = "users.manage"
)

// All lists every known key; admins are shown this set.
var All = []string{
	MenuCustomers, MenuProducts, MenuOrders, MenuRequests, MenuWallet, MenuAdmin,
	CustomersView, CustomersManage, ProductsView, ProductsManage,
	OrdersView, OrdersCreate, OrdersAssign, OrdersDeliver, OrdersCancel,
	RequestsView, RequestsSubmit, RequestsApprove,
	WalletView, WalletRecord, WalletReview, BillsView,
	RolesManage, UsersManage,
}

// Known reports whether key is one of All.
func Known(key string) bool {
	for _, k := range All {
		if k == key {
			return true
		}
	}
	return false
}

// Defaults are the stock role sets; migrations seed the same rows.
var Defaults = map[string][]string{
	"sales": {
		MenuCustomers, MenuProducts, MenuOrders, MenuWallet,
		CustomersView, ProductsView, OrdersView, OrdersCreate,
		RequestsView, WalletView, WalletRecord, BillsView,
	},
	"delivery": {
		MenuOrders, MenuWallet,
		OrdersView, OrdersDeliver, OrdersCancel, CustomersView, ProductsView,
		WalletView, WalletRecord,
	},
	"customer": {
		MenuOrders, MenuRequests,
		ProductsView, OrdersView, RequestsView, RequestsSubmit, BillsView,
	},
}
