// Package settings loads the household budget template: per-owner budget
// categories, monthly salaries and bank accounts.
//
// The file is YAML (JSON is accepted too, being a YAML subset):
//
//	bank_accounts:
//	  Robert: [Bank Zero Cheque, Savings]
//	budget_categories:
//	  Robert:
//	    Groceries: 1500
//	    Town Council: {Water: 300, Rates: 900}
//	Income:
//	  Robert: 25000
package settings

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"budget/internal/core"
)

// Template is the parsed budget template. Every slice is sorted by name.
type Template struct {
	Accounts   []AccountRef
	Categories []CategoryBudget
	Salaries   []Salary
}

// AccountRef is an account listed under an owner in bank_accounts.
type AccountRef struct {
	Owner string
	Type  string
}

// Name is "{owner} - {type}".
func (a AccountRef) Name() string {
	return a.Owner + " - " + a.Type
}

// CategoryBudget is one budget line. Sub is set for nested categories.
type CategoryBudget struct {
	Owner    string
	Category string
	Sub      string
	Amount   core.Money
}

// Name is "{owner} - {category}" or "{owner} - {category} - {sub}".
func (c CategoryBudget) Name() string {
	if c.Sub != "" {
		return c.Owner + " - " + c.Category + " - " + c.Sub
	}
	return c.Owner + " - " + c.Category
}

type Salary struct {
	Owner  string
	Amount core.Money
}

// primaryAccountTypes are tried in order when depositing a salary.
var primaryAccountTypes = []string{"Bank Zero Cheque", "Cheque", "Primary", "Main"}

// PrimaryAccountCandidates lists the account names that may receive the
// owner's salary, most preferred first.
func PrimaryAccountCandidates(owner string) []string {
	names := make([]string, len(primaryAccountTypes))
	for i, typ := range primaryAccountTypes {
		names[i] = owner + " - " + typ
	}
	return names
}

// SalaryDescription is the description recorded for a salary deposit.
func SalaryDescription(periodName string) string {
	return "Monthly salary - " + periodName
}

func (t Template) TotalBudget() core.Money {
	var total core.Money
	for _, c := range t.Categories {
		total = total.Add(c.Amount)
	}
	return total
}

func (t Template) TotalIncome() core.Money {
	var total core.Money
	for _, s := range t.Salaries {
		total = total.Add(s.Amount)
	}
	return total
}

// Load reads and parses the template at path.
func Load(path string) (Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Template{}, fmt.Errorf("read budget template: %w", err)
	}
	t, err := Parse(data)
	if err != nil {
		return Template{}, fmt.Errorf("parse budget template %s: %w", path, err)
	}
	return t, nil
}

// Parse decodes a template document. Unknown top-level keys are ignored.
func Parse(data []byte) (Template, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Template{}, err
	}
	var t Template
	if len(doc.Content) == 0 {
		return t, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return Template{}, fmt.Errorf("template root must be a mapping")
	}

	err := eachPair(root, func(key string, value *yaml.Node) error {
		var err error
		switch key {
		case "bank_accounts":
			t.Accounts, err = parseAccounts(value)
		case "budget_categories":
			t.Categories, err = parseCategories(value)
		case "Income", "income":
			t.Salaries, err = parseSalaries(value)
		}
		return err
	})
	if err != nil {
		return Template{}, err
	}

	sort.Slice(t.Accounts, func(i, j int) bool { return t.Accounts[i].Name() < t.Accounts[j].Name() })
	sort.Slice(t.Categories, func(i, j int) bool { return t.Categories[i].Name() < t.Categories[j].Name() })
	sort.Slice(t.Salaries, func(i, j int) bool { return t.Salaries[i].Owner < t.Salaries[j].Owner })
	return t, nil
}

func parseAccounts(node *yaml.Node) ([]AccountRef, error) {
	var refs []AccountRef
	err := eachPair(node, func(owner string, value *yaml.Node) error {
		var types []string
		if err := value.Decode(&types); err != nil {
			return fmt.Errorf("bank_accounts.%s: %w", owner, err)
		}
		for _, typ := range types {
			typ = strings.TrimSpace(typ)
			if typ == "" {
				return core.NewValidationError("bank_accounts."+owner, core.ErrEmptyName)
			}
			refs = append(refs, AccountRef{Owner: owner, Type: typ})
		}
		return nil
	})
	return refs, err
}

func parseCategories(node *yaml.Node) ([]CategoryBudget, error) {
	var lines []CategoryBudget
	err := eachPair(node, func(owner string, cats *yaml.Node) error {
		return eachPair(cats, func(category string, value *yaml.Node) error {
			if value.Kind == yaml.MappingNode {
				return eachPair(value, func(sub string, amount *yaml.Node) error {
					m, err := parseAmount("budget_categories."+owner+"."+category+"."+sub, amount)
					if err != nil {
						return err
					}
					lines = append(lines, CategoryBudget{Owner: owner, Category: category, Sub: sub, Amount: m})
					return nil
				})
			}
			m, err := parseAmount("budget_categories."+owner+"."+category, value)
			if err != nil {
				return err
			}
			lines = append(lines, CategoryBudget{Owner: owner, Category: category, Amount: m})
			return nil
		})
	})
	return lines, err
}

func parseSalaries(node *yaml.Node) ([]Salary, error) {
	var salaries []Salary
	err := eachPair(node, func(owner string, value *yaml.Node) error {
		m, err := parseAmount("Income."+owner, value)
		if err != nil {
			return err
		}
		salaries = append(salaries, Salary{Owner: owner, Amount: m})
		return nil
	})
	return salaries, err
}

func parseAmount(field string, node *yaml.Node) (core.Money, error) {
	if node.Kind != yaml.ScalarNode {
		return core.Money{}, core.NewValidationError(field, core.ErrInvalidAmount)
	}
	m, err := core.ParseMoney(node.Value)
	if err != nil {
		return core.Money{}, core.NewValidationError(field, err)
	}
	if m.IsNegative() {
		return core.Money{}, core.NewValidationError(field, core.ErrNegativeAmount)
	}
	return m, nil
}

// eachPair walks a mapping node's key/value pairs in document order.
func eachPair(node *yaml.Node, fn func(key string, value *yaml.Node) error) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := strings.TrimSpace(node.Content[i].Value)
		if key == "" {
			return core.NewValidationError(fmt.Sprintf("line %d", node.Content[i].Line), core.ErrEmptyName)
		}
		if err := fn(key, node.Content[i+1]); err != nil {
			return err
		}
	}
	return nil
}
