package access

import "apex-http-service/internal/domain/models"

// 常用角色组合
var (
	AdminRoles       = []string{models.RoleAdmin}
	OperatorRoles    = []string{models.RoleAdmin, models.RoleManager, models.RoleDispatcher}
	FieldRoles       = []string{models.RoleAdmin, models.RoleManager, models.RoleDispatcher, models.RoleGuard}
	ReportRoles      = []string{models.RoleAdmin, models.RoleManager, models.RoleClient}
	AuthenticatedAll = []string{}
)

// Page 前端页面及其可访问角色，Roles 为空表示任何已登录用户
type Page struct {
	Key   string   `json:"key"`
	Title string   `json:"title"`
	Path  string   `json:"path"`
	Icon  string   `json:"icon,omitempty"`
	Roles []string `json:"roles"`
}

// RouteTable 前端路由表
var RouteTable = []Page{
	{Key: "dashboard", Title: "Dashboard", Path: "/dashboard", Icon: "gauge", Roles: AuthenticatedAll},
	{Key: "live", Title: "Live Monitoring", Path: "/live", Icon: "radio", Roles: FieldRoles},
	{Key: "incidents", Title: "Incidents", Path: "/incidents", Icon: "siren", Roles: FieldRoles},
	{Key: "dispatch", Title: "Dispatch", Path: "/dispatch", Icon: "send", Roles: OperatorRoles},
	{Key: "guards", Title: "Guards", Path: "/guards", Icon: "shield", Roles: OperatorRoles},
	{Key: "properties", Title: "Properties", Path: "/properties", Icon: "building", Roles: []string{models.RoleAdmin, models.RoleManager}},
	{Key: "sops", Title: "SOPs", Path: "/sops", Icon: "list-checks", Roles: FieldRoles},
	{Key: "contact_lists", Title: "Contact Lists", Path: "/contact-lists", Icon: "phone", Roles: OperatorRoles},
	{Key: "reports", Title: "Reports", Path: "/reports", Icon: "chart", Roles: ReportRoles},
	{Key: "users", Title: "Users", Path: "/users", Icon: "users", Roles: AdminRoles},
	{Key: "audit", Title: "Audit Log", Path: "/audit", Icon: "scroll", Roles: AdminRoles},
}

// RoleAllowed 判断角色是否满足要求。
// admin_super 通过所有校验；允许 admin 时任何 admin_* 角色也通过；allowed 为空时任何角色都通过
func RoleAllowed(role string, allowed ...string) bool {
	if role == "" {
		return false
	}
	if role == models.RoleAdminSuper || len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == role {
			return true
		}
		if a == models.RoleAdmin && models.IsAdminRole(role) {
			return true
		}
	}
	return false
}

// Navigation 返回角色可以打开的页面
func Navigation(role string) []Page {
	pages := make([]Page, 0, len(RouteTable))
	for _, p := range RouteTable {
		if RoleAllowed(role, p.Roles...) {
			pages = append(pages, p)
		}
	}
	return pages
}
