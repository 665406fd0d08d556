package model

// Role is a staff role inside a tenant.
type Role string

const (
	RoleTenantAdmin Role = "tenant_admin"
	RoleManager     Role = "manager"
	RoleChef        Role = "chef"
	RoleWaiter      Role = "waiter"
)

func (r Role) Valid() bool {
	switch r {
	case RoleTenantAdmin, RoleManager, RoleChef, RoleWaiter:
		return true
	}
	return false
}

// Well-known plan ids.
const (
	PlanStandard   = "standard"
	PlanPro        = "pro"
	PlanPremium    = "premium"
	PlanEnterprise = "enterprise"
)

// defaultTableCount is used for plans without a table limit.
const defaultTableCount = 25

// PlanLimits bounds what a tenant may configure. A nil limit means unlimited.
type PlanLimits struct {
	Tables       *int   `json:"tables"`
	Chefs        *int   `json:"chefs"`
	Managers     *int   `json:"managers"`
	Waiters      *int   `json:"waiters"`
	AllowedRoles []Role `json:"allowed_roles"`
}

// PricePlan is immutable reference data. MonthlyPrice is in whole currency units;
// nil means custom pricing (contact sales).
type PricePlan struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	MonthlyPrice *int64     `json:"monthly_price"`
	Features     []string   `json:"features"`
	Limits       PlanLimits `json:"limits"`
	Popular      bool       `json:"popular"`
	SortOrder    int        `json:"sort_order"`
}

func (p *PricePlan) IsZero() bool { return p == nil || p.ID == "" }

// Purchasable reports whether the plan has a list price.
func (p *PricePlan) Purchasable() bool { return p != nil && p.MonthlyPrice != nil && *p.MonthlyPrice > 0 }

// Price returns the list price, or 0 for custom-priced plans.
func (p *PricePlan) Price() int64 {
	if p == nil || p.MonthlyPrice == nil {
		return 0
	}
	return *p.MonthlyPrice
}

// DefaultTableCount is the table count seeded into a new tenant's settings.
func (p *PricePlan) DefaultTableCount() int {
	if p == nil || p.Limits.Tables == nil {
		return defaultTableCount
	}
	return *p.Limits.Tables
}

func intp(v int) *int       { return &v }
func int64p(v int64) *int64 { return &v }

// DefaultCatalog returns the canonical price list, ordered by tier.
func DefaultCatalog() []*PricePlan {
	staff := []Role{RoleChef, RoleWaiter, RoleManager, RoleTenantAdmin}
	return []*PricePlan{
		{
			ID:           PlanStandard,
			Name:         "Standard Plan",
			MonthlyPrice: int64p(250),
			Features:     []string{"Up to 5 tables", "1 chef", "3 waiters", "Billing route access", "Basic support"},
			Limits: PlanLimits{
				Tables: intp(5), Chefs: intp(1), Managers: intp(0), Waiters: intp(3),
				AllowedRoles: []Role{RoleChef, RoleWaiter, RoleTenantAdmin},
			},
			SortOrder: 1,
		},
		{
			ID:           PlanPro,
			Name:         "Pro Plan",
			MonthlyPrice: int64p(600),
			Features: []string{
				"Up to 10 tables", "3 chefs", "1 manager", "5 waiters",
				"All features except universal admin", "Priority support",
			},
			Limits: PlanLimits{
				Tables: intp(10), Chefs: intp(3), Managers: intp(1), Waiters: intp(5),
				AllowedRoles: staff,
			},
			Popular:   true,
			SortOrder: 2,
		},
		{
			ID:           PlanPremium,
			Name:         "Premium Plan",
			MonthlyPrice: int64p(850),
			Features: []string{
				"Up to 25 tables", "8 chefs", "3 managers", "9 waiters",
				"All features except universal admin", "Premium support", "Advanced analytics",
			},
			Limits: PlanLimits{
				Tables: intp(25), Chefs: intp(8), Managers: intp(3), Waiters: intp(9),
				AllowedRoles: staff,
			},
			SortOrder: 3,
		},
		{
			ID:   PlanEnterprise,
			Name: "Enterprise Plan",
			Features: []string{
				"Unlimited tables", "Unlimited users", "All roles available",
				"Dedicated support", "Custom integrations", "SLA guarantee",
			},
			Limits:    PlanLimits{AllowedRoles: staff},
			SortOrder: 4,
		},
	}
}
