package config

// Exclusion is a privacy rule: visits matching it are never recorded.
type Exclusion struct {
	Type   string // "domain" or "regex"
	Value  string
	Reason string
}

// DefaultExclusions returns the curated rules seeded into a fresh database.
// Banking, credential, healthcare and tax pages are never tracked, even
// though they would otherwise classify as neutral time.
func DefaultExclusions() []Exclusion {
	groups := []struct {
		reason  string
		domains []string
	}{
		{"Banking - financial privacy", []string{
			"chase.com", "bankofamerica.com", "wellsfargo.com", "citi.com",
			"capitalone.com", "schwab.com", "fidelity.com", "vanguard.com",
		}},
		{"Payment - financial privacy", []string{
			"paypal.com", "venmo.com",
		}},
		{"Password manager - credential privacy", []string{
			"1password.com", "bitwarden.com", "lastpass.com", "dashlane.com",
		}},
		{"Auth provider - credential privacy", []string{
			"accounts.google.com", "login.microsoftonline.com", "auth0.com", "okta.com",
		}},
		{"Healthcare - medical privacy", []string{
			"mychart.com", "healthcare.gov",
		}},
		{"Tax - financial privacy", []string{
			"irs.gov", "turbotax.intuit.com",
		}},
	}

	var out []Exclusion
	for _, g := range groups {
		for _, d := range g.domains {
			out = append(out, Exclusion{Type: "domain", Value: d, Reason: g.reason})
		}
	}
	out = append(out, Exclusion{Type: "regex", Value: `.*\.xxx$`, Reason: "Adult content exclusion"})
	return out
}
