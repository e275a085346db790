package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"storefront/internal/domain"
)

func TestRolePolicy(t *testing.T) {
	p := NewRolePolicy()
	admin := domain.Actor{CustomerID: 1, Role: domain.RoleAdmin}
	staff := domain.Actor{CustomerID: 2, Role: domain.RoleStaff}
	alice := domain.Actor{CustomerID: 3, Role: domain.RoleCustomer}
	bob := domain.Actor{CustomerID: 4, Role: domain.RoleCustomer}

	tests := []struct {
		name   string
		actor  domain.Actor
		action Action
		res    Resource
		want   bool
	}{
		{"own cart", alice, ActionMutateCart, Own(alice), true},
		{"someone else's cart", alice, ActionMutateCart, Own(bob), false},
		{"admin cannot mutate other cart", admin, ActionMutateCart, Own(bob), false},
		{"owner views order", alice, ActionViewOrder, Own(alice), true},
		{"staff views any order", staff, ActionViewOrder, Own(alice), true},
		{"customer views other order", bob, ActionViewOrder, Own(alice), false},
		{"admin updates status", admin, ActionUpdateStatus, Own(alice), true},
		{"staff cannot update status", staff, ActionUpdateStatus, Own(alice), false},
		{"owner cannot update status", alice, ActionUpdateStatus, Own(alice), false},
		{"admin confirms payment", admin, ActionConfirmPayment, Own(alice), true},
		{"owner cannot confirm payment", alice, ActionConfirmPayment, Own(alice), false},
		{"staff cannot confirm payment", staff, ActionConfirmPayment, Own(alice), false},
		{"stranger confirms payment", bob, ActionConfirmPayment, Own(alice), false},
		{"admin lists customers", admin, ActionListCustomers, Resource{}, true},
		{"staff cannot list customers", staff, ActionListCustomers, Resource{}, false},
		{"admin deletes customer", admin, ActionDeleteCustomer, Own(alice), true},
		{"customer cannot delete itself", alice, ActionDeleteCustomer, Own(alice), false},
		{"admin deletes", admin, ActionDeleteOrder, Resource{}, true},
		{"staff lists all", staff, ActionListAllOrders, Resource{}, true},
		{"customer lists all", alice, ActionListAllOrders, Resource{}, false},
		{"admin manages catalog", admin, ActionManageCatalog, Resource{}, true},
		{"customer manages catalog", alice, ActionManageCatalog, Resource{}, false},
		{"anonymous", domain.Actor{}, ActionViewCart, Resource{}, false},
		{"unknown role", domain.Actor{CustomerID: 9, Role: "satff"}, ActionListAllOrders, Resource{}, false},
		{"unknown action", admin, Action("order:refund"), Resource{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Authorize(tt.actor, tt.action, tt.res))
		})
	}
}
