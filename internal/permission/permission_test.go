package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/storefy/storefy/internal/model"
)

func TestOwnerAndManagerSeeEveryPage(t *testing.T) {
	for _, role := range []model.Role{model.RoleOwner, model.RoleManager} {
		for _, page := range AllPages {
			assert.True(t, CanAccessPage(role, page), "%s should access %s", role, page)
		}
	}
}

func TestCashierPageAccess(t *testing.T) {
	for _, page := range AllPages {
		want := page == PagePOS || page == PageDashboard
		assert.Equal(t, want, CanAccessPage(model.RoleCashier, page), "page %s", page)
	}
}

func TestUnknownInputsFailClosed(t *testing.T) {
	assert.False(t, CanAccessPage("admin", PageDashboard))
	assert.False(t, CanAccessPage("", PageDashboard))
	assert.False(t, CanAccessPage(model.RoleOwner, "superadmin"))
	assert.False(t, CanAccessPage(model.RoleOwner, ""))
	assert.False(t, CanPerform("admin", ActionProcessSale))
	assert.False(t, CanPerform(model.RoleOwner, "drop_tables"))
}

func TestActionTable(t *testing.T) {
	for _, a := range AllActions {
		assert.True(t, CanPerform(model.RoleOwner, a), "owner action %s", a)
	}

	lifecycle := map[Action]bool{
		ActionCreateStore:   true,
		ActionDeleteStore:   true,
		ActionManageBilling: true,
	}
	for _, a := range AllActions {
		assert.Equal(t, !lifecycle[a], CanPerform(model.RoleManager, a), "manager action %s", a)
	}

	for _, a := range AllActions {
		assert.Equal(t, a == ActionProcessSale, CanPerform(model.RoleCashier, a), "cashier action %s", a)
	}
}

func TestSetIsTotalOverDeclaredPages(t *testing.T) {
	for _, role := range []model.Role{model.RoleOwner, model.RoleManager, model.RoleCashier} {
		set := Set(role)
		assert.Len(t, set, len(AllPages))
		for _, page := range AllPages {
			allowed, present := set[page]
			assert.True(t, present, "page %s missing from set", page)
			assert.Equal(t, CanAccessPage(role, page), allowed)
		}
	}
}
