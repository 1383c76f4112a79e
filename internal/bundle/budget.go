package bundle

// RoleBudget is the static per-role hard character limit for bundle size.
type RoleBudget struct {
	Role        string `json:"role"`
	DisplayName string `json:"displayName"`
	HardLimit   int    `json:"hardLimit"`
}

// Agent role keys.
const (
	RolePM             = "pm-agent"
	RoleImplementation = "implementation-agent"
	RoleQA             = "qa-agent"
	RoleProcessReview  = "process-review-agent"
)

// roleBudgets is the static budget table. Not configurable: an unknown role
// is a client error, never a silent default.
var roleBudgets = map[string]RoleBudget{
	RolePM:             {Role: RolePM, DisplayName: "Project Manager", HardLimit: 24000},
	RoleImplementation: {Role: RoleImplementation, DisplayName: "Implementation", HardLimit: 32000},
	RoleQA:             {Role: RoleQA, DisplayName: "QA", HardLimit: 20000},
	RoleProcessReview:  {Role: RoleProcessReview, DisplayName: "Process Review", HardLimit: 16000},
}

// roleOrder fixes the listing order for AllRoleBudgets.
var roleOrder = []string{RolePM, RoleImplementation, RoleQA, RoleProcessReview}

// GetRoleBudget looks up the budget for a role. ok is false for unknown roles.
func GetRoleBudget(role string) (RoleBudget, bool) {
	b, ok := roleBudgets[role]
	return b, ok
}

// AllRoleBudgets returns every budget in stable order.
func AllRoleBudgets() []RoleBudget {
	out := make([]RoleBudget, 0, len(roleOrder))
	for _, role := range roleOrder {
		out = append(out, roleBudgets[role])
	}
	return out
}

// ExceedsBudget reports whether totalCharacters is over the role's hard
// limit. The caller must have validated the role first.
func (b RoleBudget) ExceedsBudget(totalCharacters int) bool {
	return totalCharacters > b.HardLimit
}

// CalculateOverage returns how far totalCharacters is over the hard limit,
// or 0 when within budget.
func (b RoleBudget) CalculateOverage(totalCharacters int) int {
	if totalCharacters <= b.HardLimit {
		return 0
	}
	return totalCharacters - b.HardLimit
}
