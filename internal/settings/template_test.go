package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budget/internal/core"
)

const sampleYAML = `
bank_accounts:
  Robert: [Bank Zero Cheque, Savings]
  Anna: [Cheque]
budget_categories:
  Robert:
    Groceries: 1500
    Town Council:
      Water: 300
      Rates: "900,50"
  Anna:
    Fuel: 800.25
Income:
  Robert: 25000
  Anna: 0
theme: dark
`

func TestParse(t *testing.T) {
	tmpl, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	var accounts []string
	for _, a := range tmpl.Accounts {
		accounts = append(accounts, a.Name())
	}
	assert.Equal(t, []string{"Anna - Cheque", "Robert - Bank Zero Cheque", "Robert - Savings"}, accounts)

	var names []string
	for _, c := range tmpl.Categories {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{
		"Anna - Fuel",
		"Robert - Groceries",
		"Robert - Town Council - Rates",
		"Robert - Town Council - Water",
	}, names)
	assert.Equal(t, int64(90050), tmpl.Categories[2].Amount.Cents)
	assert.Equal(t, int64(80025), tmpl.Categories[0].Amount.Cents)

	require.Len(t, tmpl.Salaries, 2)
	assert.Equal(t, "Anna", tmpl.Salaries[0].Owner)
	assert.True(t, tmpl.Salaries[0].Amount.IsZero())

	assert.Equal(t, int64(150000+30000+90050+80025), tmpl.TotalBudget().Cents)
	assert.Equal(t, int64(2500000), tmpl.TotalIncome().Cents)
}

func TestParseJSON(t *testing.T) {
	doc := `{"bank_accounts": {"Robert": ["Cheque"]},
	         "budget_categories": {"Robert": {"Rent": 7000}},
	         "Income": {"Robert": 25000.5}}`
	tmpl, err := Parse([]byte(doc))
	require.NoError(t, err)
	require.Len(t, tmpl.Categories, 1)
	assert.Equal(t, "Robert - Rent", tmpl.Categories[0].Name())
	assert.Equal(t, int64(2500050), tmpl.Salaries[0].Amount.Cents)
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name       string
		doc        string
		validation bool
	}{
		{"negative amount", "budget_categories: {Robert: {Rent: -5}}", true},
		{"text amount", "budget_categories: {Robert: {Rent: lots}}", true},
		{"list amount", "Income: {Robert: [1, 2]}", true},
		{"root is a list", "- a\n- b", false},
		{"owner not a mapping", "budget_categories: [Robert]", false},
		{"empty account type", "bank_accounts: {Robert: ['  ']}", true},
		{"broken yaml", "budget_categories: {", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Equal(t, tt.validation, core.IsValidation(err), "error: %v", err)
		})
	}
}

func TestParseEmpty(t *testing.T) {
	tmpl, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, tmpl.Categories)

	tmpl, err = Parse([]byte("budget_categories:\n"))
	require.NoError(t, err)
	assert.Empty(t, tmpl.Categories)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budget.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	tmpl, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, tmpl.Categories, 4)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNamingHelpers(t *testing.T) {
	assert.Equal(t, []string{
		"Robert - Bank Zero Cheque",
		"Robert - Cheque",
		"Robert - Primary",
		"Robert - Main",
	}, PrimaryAccountCandidates("Robert"))
	assert.Equal(t, "Monthly salary - February 2026", SalaryDescription("February 2026"))
}

func TestLoaderReloadsChangedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budget.yaml")
	require.NoError(t, os.WriteFile(path, []byte("Income:\n  Robert: 100\n"), 0o644))

	l := NewLoader(path)
	first, err := l.Load()
	require.NoError(t, err)
	require.Len(t, first.Salaries, 1)

	again, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, first, again)

	require.NoError(t, os.WriteFile(path, []byte("Income:\n  Robert: 100\n  Anna: 2500\n"), 0o644))
	changed, err := l.Load()
	require.NoError(t, err)
	assert.Len(t, changed.Salaries, 2)

	require.NoError(t, os.Remove(path))
	_, err = l.Load()
	assert.Error(t, err)
}
