package bundle

import "testing"

func TestGetRoleBudget_KnownRoles(t *testing.T) {
	tests := []struct {
		role        string
		displayName string
		hardLimit   int
	}{
		{RolePM, "Project Manager", 24000},
		{RoleImplementation, "Implementation", 32000},
		{RoleQA, "QA", 20000},
		{RoleProcessReview, "Process Review", 16000},
	}

	for _, tt := range tests {
		b, ok := GetRoleBudget(tt.role)
		if !ok {
			t.Errorf("GetRoleBudget(%q) ok = false, want true", tt.role)
			continue
		}
		if b.DisplayName != tt.displayName {
			t.Errorf("%s DisplayName = %q, want %q", tt.role, b.DisplayName, tt.displayName)
		}
		if b.HardLimit != tt.hardLimit {
			t.Errorf("%s HardLimit = %d, want %d", tt.role, b.HardLimit, tt.hardLimit)
		}
	}
}

func TestGetRoleBudget_Unknown(t *testing.T) {
	if _, ok := GetRoleBudget("designer-agent"); ok {
		t.Error("GetRoleBudget should reject unknown roles")
	}
	if _, ok := GetRoleBudget(""); ok {
		t.Error("GetRoleBudget should reject the empty role")
	}
}

func TestAllRoleBudgets_StableOrder(t *testing.T) {
	budgets := AllRoleBudgets()
	if len(budgets) != 4 {
		t.Fatalf("len(AllRoleBudgets()) = %d, want 4", len(budgets))
	}

	want := []string{RolePM, RoleImplementation, RoleQA, RoleProcessReview}
	for i, role := range want {
		if budgets[i].Role != role {
			t.Errorf("budgets[%d].Role = %q, want %q", i, budgets[i].Role, role)
		}
	}
}

func TestExceedsBudget(t *testing.T) {
	b, _ := GetRoleBudget(RoleQA)

	if b.ExceedsBudget(20000) {
		t.Error("exactly at the limit should not exceed")
	}
	if !b.ExceedsBudget(20001) {
		t.Error("one over the limit should exceed")
	}
}

func TestCalculateOverage(t *testing.T) {
	b, _ := GetRoleBudget(RoleQA)

	if got := b.CalculateOverage(20500); got != 500 {
		t.Errorf("CalculateOverage(20500) = %d, want 500", got)
	}
	if got := b.CalculateOverage(19999); got != 0 {
		t.Errorf("CalculateOverage(19999) = %d, want 0", got)
	}
	if got := b.CalculateOverage(20000); got != 0 {
		t.Errorf("CalculateOverage(20000) = %d, want 0", got)
	}
}
