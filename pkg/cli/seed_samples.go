package cli

import (
	"flag"
	"fmt"

	"github.com/lanternhq/lantern/pkg/profiles"
)

// sampleUser is one of the built-in demo accounts.
type sampleUser struct {
	Email       string
	Level       int
	Departments []string
	Projects    []string
	Roles       map[string][]string
}

// sampleUsers covers the evaluation clauses: a departmental staffer, a
// project lead with contextual roles, an executive, a user with nothing
// but general access, and an administrator.
func sampleUsers() []sampleUser {
	return []sampleUser{
		{
			Email:       "staff.hr@example.com",
			Level:       0,
			Departments: []string{"HR"},
		},
		{
			Email:       "lead.it.project_alpha@example.com",
			Level:       2,
			Departments: []string{"IT"},
			Projects:    []string{"PROJECT_ALPHA", "PROJECT_INTERNAL_INFRA"},
			Roles: map[string][]string{
				"PROJECT_ALPHA": {"LEAD"},
				"IT":            {"ADMIN_ROLE"},
			},
		},
		{
			Email:       "exec.finance@example.com",
			Level:       2,
			Departments: []string{"FINANCE"},
			Projects:    []string{"PROJECT_BUDGET_Q4"},
			Roles: map[string][]string{
				"FINANCE": {"DEPARTMENT_HEAD"},
			},
		},
		{
			Email: "general.user@example.com",
			Level: 0,
		},
		{
			Email:       "admin.user@example.com",
			Level:       3,
			Departments: []string{"IT", "HR", "FINANCE", "LEGAL", "MARKETING", "OPERATIONS", "SALES"},
		},
	}
}

func newSeedSamplesCommand() *Command {
	cmd := &Command{
		Name:        "seed-samples",
		Description: "Create the built-in sample users if they do not exist",
		Flags:       flag.NewFlagSet("seed-samples", flag.ExitOnError),
		Run:         runSeedSamples,
	}

	cmd.Flags.String("registry", defaultRegistry(), "Lantern service URL")
	cmd.Flags.String("token", "", "Bearer token (defaults to LANTERN_TOKEN)")

	return cmd
}

func runSeedSamples(args []string) error {
	cmd := newSeedSamplesCommand()
	if err := cmd.Flags.Parse(args); err != nil {
		return err
	}

	registry := cmd.Flags.Lookup("registry").Value.String()
	token := resolveToken(cmd.Flags.Lookup("token").Value.String())

	client := newAPIClient(token)
	created, skipped := 0, 0
	for _, sample := range sampleUsers() {
		exists, err := userExists(client, registry, sample.Email)
		if err != nil {
			return fmt.Errorf("failed to look up %s: %w", sample.Email, err)
		}
		if exists {
			log.Debugf("Sample user %s already exists, skipping", sample.Email)
			skipped++
			continue
		}

		departments := sample.Departments
		if departments == nil {
			departments = []string{}
		}
		projects := sample.Projects
		if projects == nil {
			projects = []string{}
		}
		roles := sample.Roles
		if roles == nil {
			roles = map[string][]string{}
		}
		level := sample.Level

		update := profiles.PartialUpdate{
			HierarchyLevel:  &level,
			Departments:     &departments,
			Projects:        &projects,
			ContextualRoles: &roles,
		}
		if _, err := putPermissions(client, registry, sample.Email, update); err != nil {
			return fmt.Errorf("failed to create %s: %w", sample.Email, err)
		}
		log.Infof("Created sample user: %s", sample.Email)
		created++
	}

	fmt.Printf("Created %d sample users, %d already existed\n", created, skipped)
	return nil
}
