package tickets

import (
	"fmt"
	"strings"
)

// Canonical team names. Every ticket is routed to exactly one of these.
const (
	TeamHelpdesk = "Helpdesk"
	TeamHR       = "HR"
	TeamIT       = "IT"
	TeamLegal    = "Legal"
	TeamGeneral  = "General"
)

// Team is a support team tickets can be routed to.
type Team struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// teams is the routing registry, in suggestion-priority order. General
// is last: it is the fallback when no other team matches.
var teams = []Team{
	{
		Name:        TeamHelpdesk,
		Description: "Accounts, orders, billing and general product support.",
	},
	{
		Name:        TeamHR,
		Description: "Payroll, leave, benefits, hiring and people policy.",
	},
	{
		Name:        TeamIT,
		Description: "Hardware, software, network and system access.",
	},
	{
		Name:        TeamLegal,
		Description: "Contracts, compliance and legal review.",
	},
	{
		Name:        TeamGeneral,
		Description: "Anything that does not fit another team.",
	},
}

// Teams returns the routing registry. The slice is a copy; callers may
// reorder or mutate it freely.
func Teams() []Team {
	out := make([]Team, len(teams))
	copy(out, teams)
	return out
}

// CanonicalTeam maps a case-insensitive team name to its canonical
// form. Unknown names return an error listing the valid teams.
func CanonicalTeam(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	for _, t := range teams {
		if strings.EqualFold(trimmed, t.Name) {
			return t.Name, nil
		}
	}
	return "", fmt.Errorf("unknown team %q (valid teams: %s)", name, strings.Join(teamNames(), ", "))
}

func teamNames() []string {
	names := make([]string, len(teams))
	for i, t := range teams {
		names[i] = t.Name
	}
	return names
}
