package guard

import (
	"strings"
)

const (
	// PathLogin accepts a resumption path in the "redirect" query parameter.
	PathLogin = "/login"
	// PathHome is the default landing view for authenticated sessions.
	PathHome = "/home"

	// AdminPathPrefix groups the system-management views; administrative
	// sessions bypass grant checks for everything under it.
	AdminPathPrefix = "/system"

	// RedirectParam carries the originally intended path to the login view.
	RedirectParam = "redirect"
)

// Route is a static view descriptor. The table is defined at startup and
// never mutated.
type Route struct {
	Path         string
	Name         string
	Title        string
	RequiresAuth bool
	Permission   string
}

// Table matches request paths against the static route set.
type Table struct {
	routes []Route
}

func NewTable(routes []Route) Table {
	return Table{routes: routes}
}

func (t Table) Routes() []Route {
	return append([]Route(nil), t.routes...)
}

// Match resolves a path to its route descriptor. Pattern segments (":id")
// match any non-empty segment. Unknown paths resolve to a public not-found
// route, mirroring the catch-all view.
func (t Table) Match(path string) Route {
	for _, route := range t.routes {
		if route.Path == path {
			return route
		}
	}

	for _, route := range t.routes {
		if matchSegments(route.Path, path) {
			return route
		}
	}

	return Route{
		Path:         path,
		Name:         "NotFound",
		Title:        "Page Not Found",
		RequiresAuth: false,
	}
}

func matchSegments(pattern, path string) bool {
	if !strings.Contains(pattern, ":") {
		return false
	}

	patternParts := strings.Split(strings.Trim(pattern, "/"), "/")
	pathParts := strings.Split(strings.Trim(path, "/"), "/")
	if len(patternParts) != len(pathParts) {
		return false
	}

	for i, part := range patternParts {
		if strings.HasPrefix(part, ":") {
			if pathParts[i] == "" {
				return false
			}
			continue
		}
		if part != pathParts[i] {
			return false
		}
	}
	return true
}

// DefaultRoutes is the route table of the stock back-office client.
func DefaultRoutes() Table {
	return NewTable([]Route{
		{Path: "/", Name: "Welcome", Title: "Welcome", RequiresAuth: false},
		{Path: PathLogin, Name: "Login", Title: "Login", RequiresAuth: false},
		{Path: "/auth/change-password", Name: "ChangePassword", Title: "Change Password", RequiresAuth: true},
		{Path: PathHome, Name: "Home", Title: "Home", RequiresAuth: true},
		{Path: "/profit/stats", Name: "ProfitStats", Title: "Profit Statistics",
			RequiresAuth: true, Permission: "profit:stats:view"},
		{Path: "/transaction/list", Name: "TransactionList", Title: "Transaction Records",
			RequiresAuth: true, Permission: "transaction:records:view"},
		{Path: "/transactions/add", Name: "TransactionAdd", Title: "Add Transaction",
			RequiresAuth: true, Permission: "transaction:records:add"},
		{Path: "/transactions/edit/:id", Name: "TransactionEdit", Title: "Edit Transaction",
			RequiresAuth: true, Permission: "transaction:records:edit"},
		{Path: "/exchange/rate", Name: "ExchangeRates", Title: "Exchange Rates",
			RequiresAuth: true, Permission: "exchange:rates:view"},
		{Path: "/stock", Name: "StockManager", Title: "Stock Manager",
			RequiresAuth: true, Permission: "stock:list:view"},
		{Path: "/system/user", Name: "SystemUser", Title: "User Management",
			RequiresAuth: true, Permission: "system:user:view"},
		{Path: "/system/role", Name: "SystemRole", Title: "Role Management",
			RequiresAuth: true, Permission: "system:role:view"},
		{Path: "/system/permission", Name: "SystemPermission", Title: "Permission Management",
			RequiresAuth: true, Permission: "system:permission:view"},
		{Path: "/system/holder", Name: "SystemHolder", Title: "Holder Management",
			RequiresAuth: true, Permission: "system:holder:view"},
	})
}
