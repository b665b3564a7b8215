package schema

import "strings"

// RoleOptions is the closed set of valid roles for roster imports.
// Validation is case-insensitive; the canonical spelling is stored.
var RoleOptions = []string{
	"Java 后台开发",
	"Web 前端开发",
	"终端开发",
	"算法开发",
	"数据开发",
	"全栈开发",
	"产测运项管",
	"管理层",
	"其他",
}

// RoleChangeWeights scales changed_lines per role so that disciplines with
// systematically larger or smaller diffs compare fairly. Roles not listed
// default to 1.0.
var RoleChangeWeights = map[string]float64{
	"管理层":       1.9,
	"数据开发":      1.8,
	"算法开发":      1.5,
	"全栈开发":      1.2,
	"Java 后台开发": 1.1,
	"Web 前端开发":  1.0,
	"终端开发":      1.0,
}

// devRoles are the roles expected to commit code; the under-saturated tag
// and the line-manager rollup only consider these.
var devRoles = map[string]struct{}{
	"Java 后台开发": {},
	"Web 前端开发":  {},
	"终端开发":      {},
	"算法开发":      {},
	"数据开发":      {},
	"全栈开发":      {},
}

// RoleChangeWeight returns the changed-lines multiplier for a role.
func RoleChangeWeight(role string) float64 {
	if w, ok := RoleChangeWeights[role]; ok {
		return w
	}
	return 1.0
}

// IsDevRole reports whether the role is a development role.
func IsDevRole(role string) bool {
	_, ok := devRoles[role]
	return ok
}

// IsAllowedRole reports whether a raw role value is in RoleOptions,
// ignoring case and surrounding whitespace.
func IsAllowedRole(role string) bool {
	return CanonicalRole(role) != ""
}

// CanonicalRole returns the RoleOptions spelling for a raw role value, or
// "" when the value is not in the whitelist.
func CanonicalRole(role string) string {
	key := strings.ToLower(strings.TrimSpace(role))
	for _, opt := range RoleOptions {
		if strings.ToLower(opt) == key {
			return opt
		}
	}
	return ""
}
