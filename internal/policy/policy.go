// Package policy решает, кому какое действие разрешено над каким ресурсом.
package policy

import "storefront/internal/domain"

type Action string

const (
	ActionViewCart       Action = "cart:view"
	ActionMutateCart     Action = "cart:mutate"
	ActionCheckout       Action = "cart:checkout"
	ActionViewOrder      Action = "order:view"
	ActionListAllOrders  Action = "order:list_all"
	ActionUpdateStatus   Action = "order:update_status"
	ActionConfirmPayment Action = "order:confirm_payment"
	ActionDeleteOrder    Action = "order:delete"
	ActionViewCustomer   Action = "customer:view"
	ActionChangeRole     Action = "customer:change_role"
	ActionListCustomers  Action = "customer:list"
	ActionDeleteCustomer Action = "customer:delete"
	ActionManageCatalog  Action = "catalog:write"
)

// Resource объект действия; OwnerID равен нулю у ресурсов без владельца
type Resource struct {
	OwnerID int64
}

// Own ресурс, принадлежащий самому actor
func Own(a domain.Actor) Resource { return Resource{OwnerID: a.CustomerID} }

type Authorizer interface {
	Authorize(actor domain.Actor, action Action, res Resource) bool
}

type rule struct {
	roles map[domain.Role]bool
	owner bool
}

// RolePolicy статическая таблица: действие -> допустимые роли и доступ владельца
type RolePolicy struct {
	rules map[Action]rule
}

func roles(rs ...domain.Role) map[domain.Role]bool {
	m := make(map[domain.Role]bool, len(rs))
	for _, r := range rs {
		m[r] = true
	}
	return m
}

// NewRolePolicy правила магазина. Оплату подтверждает только платёжный callback,
// который работает от имени администратора.
func NewRolePolicy() *RolePolicy {
	return &RolePolicy{rules: map[Action]rule{
		ActionViewCart:       {owner: true},
		ActionMutateCart:     {owner: true},
		ActionCheckout:       {owner: true},
		ActionViewOrder:      {roles: roles(domain.RoleAdmin, domain.RoleStaff), owner: true},
		ActionListAllOrders:  {roles: roles(domain.RoleAdmin, domain.RoleStaff)},
		ActionUpdateStatus:   {roles: roles(domain.RoleAdmin)},
		ActionConfirmPayment: {roles: roles(domain.RoleAdmin)},
		ActionDeleteOrder:    {roles: roles(domain.RoleAdmin)},
		ActionViewCustomer:   {roles: roles(domain.RoleAdmin), owner: true},
		ActionChangeRole:     {roles: roles(domain.RoleAdmin)},
		ActionListCustomers:  {roles: roles(domain.RoleAdmin)},
		ActionDeleteCustomer: {roles: roles(domain.RoleAdmin)},
		ActionManageCatalog:  {roles: roles(domain.RoleAdmin)},
	}}
}

func (p *RolePolicy) Authorize(actor domain.Actor, action Action, res Resource) bool {
	if actor.CustomerID <= 0 {
		return false
	}
	if _, ok := domain.ParseRole(string(actor.Role)); !ok {
		return false
	}
	r, ok := p.rules[action]
	if !ok {
		return false
	}
	if r.roles[actor.Role] {
		return true
	}
	return r.owner && res.OwnerID != 0 && res.OwnerID == actor.CustomerID
}
