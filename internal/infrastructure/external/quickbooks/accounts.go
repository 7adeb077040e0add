package quickbooks

import "strings"

// DefaultExpenseAccount is used when no keyword matches
const DefaultExpenseAccount = "Miscellaneous"

var categoryKeywords = []struct {
	keywords []string
	account  string
}{
	{[]string{"security"}, "Security"},
	{[]string{"electric", "water", "gas", "internet", "phone", "utilit"}, "Utilities"},
	{[]string{"supplies", "office"}, "Office Supplies"},
	{[]string{"nutrient", "growing", "packaging", "inventory"}, "Supplies"},
	{[]string{"insurance"}, "Insurance"},
	{[]string{"rent", "lease", "property"}, "Rent"},
	{[]string{"repair", "maintenance"}, "Repairs & Maintenance"},
	{[]string{"legal", "accounting"}, "Professional Services"},
	{[]string{"marketing", "advertising"}, "Marketing"},
}

// MapCategoryToAccount maps a free-text expense category to an account name.
// The category is tried first, then the description.
func MapCategoryToAccount(category, description string) string {
	for _, text := range []string{category, description} {
		lower := strings.ToLower(text)
		if lower == "" {
			continue
		}
		for _, entry := range categoryKeywords {
			for _, kw := range entry.keywords {
				if strings.Contains(lower, kw) {
					return entry.account
				}
			}
		}
	}
	return DefaultExpenseAccount
}

// findAccount matches by name and falls back to the first expense account
func findAccount(accounts []account, name string) *account {
	if len(accounts) == 0 {
		return nil
	}
	lower := strings.ToLower(name)
	for i := range accounts {
		if strings.Contains(strings.ToLower(accounts[i].Name), lower) {
			return &accounts[i]
		}
	}
	return &accounts[0]
}
