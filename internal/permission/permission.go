// Package permission maps (role, page) and (role, action) to booleans from a
// static table baked into the binary. The table is a UX gate, not a security
// boundary: the database layer still enforces ownership on every query. Keeping
// it static means the gate keeps working even when a backend fetch would fail.
package permission

import "github.com/storefy/storefy/internal/model"

// Page identifies a screen of the application. The set is closed; anything
// outside it resolves to "no access".
type Page string

const (
	PageDashboard    Page = "dashboard"
	PagePOS          Page = "pos"
	PageInventory    Page = "inventory"
	PageCustomers    Page = "customers"
	PageTransactions Page = "transactions"
	PageLayby        Page = "layby"
	PageReports      Page = "reports"
	PageExpenses     Page = "expenses"
	PageSettings     Page = "settings"
)

// AllPages lists every declared page in a stable order.
var AllPages = []Page{
	PageDashboard,
	PagePOS,
	PageInventory,
	PageCustomers,
	PageTransactions,
	PageLayby,
	PageReports,
	PageExpenses,
	PageSettings,
}

// Valid reports whether p is a declared page.
func (p Page) Valid() bool {
	switch p {
	case PageDashboard, PagePOS, PageInventory, PageCustomers,
		PageTransactions, PageLayby, PageReports, PageExpenses, PageSettings:
		return true
	}
	return false
}

// Action identifies a guarded operation that is not a whole page.
type Action string

const (
	ActionCreateStore   Action = "create_store"
	ActionDeleteStore   Action = "delete_store"
	ActionManageBilling Action = "manage_billing"
	ActionManageStaff   Action = "manage_staff"
	ActionProcessSale   Action = "process_sale"
	ActionProcessRefund Action = "process_refund"
	ActionAdjustStock   Action = "adjust_stock"
	ActionExportReports Action = "export_reports"
)

// AllActions lists every declared action in a stable order.
var AllActions = []Action{
	ActionCreateStore,
	ActionDeleteStore,
	ActionManageBilling,
	ActionManageStaff,
	ActionProcessSale,
	ActionProcessRefund,
	ActionAdjustStock,
	ActionExportReports,
}

// Valid reports whether a is a declared action.
func (a Action) Valid() bool {
	switch a {
	case ActionCreateStore, ActionDeleteStore, ActionManageBilling,
		ActionManageStaff, ActionProcessSale, ActionProcessRefund,
		ActionAdjustStock, ActionExportReports:
		return true
	}
	return false
}

// CanAccessPage is the page gate: pure, total over the declared enums, and
// fail-closed for anything it does not recognize.
func CanAccessPage(role model.Role, page Page) bool {
	if !page.Valid() {
		return false
	}
	switch role {
	case model.RoleOwner, model.RoleManager:
		return true
	case model.RoleCashier:
		return page == PagePOS || page == PageDashboard
	}
	return false
}

// CanPerform is the action gate. Managers do everything except the store
// lifecycle (create/delete store, billing); cashiers only ring up sales.
func CanPerform(role model.Role, action Action) bool {
	if !action.Valid() {
		return false
	}
	switch role {
	case model.RoleOwner:
		return true
	case model.RoleManager:
		switch action {
		case ActionCreateStore, ActionDeleteStore, ActionManageBilling:
			return false
		}
		return true
	case model.RoleCashier:
		return action == ActionProcessSale
	}
	return false
}

// Set materializes the full page permission map for a role. Callers must
// recompute it whenever the resolved role changes; a stale set is a
// correctness bug, so there is deliberately no caching here.
func Set(role model.Role) map[Page]bool {
	set := make(map[Page]bool, len(AllPages))
	for _, p := range AllPages {
		set[p] = CanAccessPage(role, p)
	}
	return set
}
