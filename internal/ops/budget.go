package ops

import (
	"strings"

	"github.com/mvickers/dossier/internal/bundle"
	"github.com/mvickers/dossier/internal/errors"
)

// BudgetGetInput contains parameters for the BudgetGet operation.
type BudgetGetInput struct {
	Role string // optional; empty returns every role
}

// BudgetGetOutput contains the result of the BudgetGet operation.
type BudgetGetOutput struct {
	Budgets []bundle.RoleBudget `json:"budgets"`
}

// BudgetGet returns the hard character limit for one role, or the whole
// budget table when no role is given.
func BudgetGet(input BudgetGetInput) (*BudgetGetOutput, error) {
	role := strings.TrimSpace(input.Role)
	if role == "" {
		return &BudgetGetOutput{Budgets: bundle.AllRoleBudgets()}, nil
	}

	budget, ok := bundle.GetRoleBudget(role)
	if !ok {
		return nil, errors.NewUnknownRole(role)
	}
	return &BudgetGetOutput{Budgets: []bundle.RoleBudget{budget}}, nil
}
