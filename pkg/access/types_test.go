package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProfile_Clone(t *testing.T) {
	p := Profile{
		Email:          "u@example.com",
		HierarchyLevel: 1,
		Departments:    []string{"HR"},
		Projects:       []string{"ALPHA"},
		ContextualRoles: map[string][]string{
			"HR": {"LEAD"},
		},
	}

	c := p.Clone()
	c.Departments[0] = "FINANCE"
	c.Projects = append(c.Projects, "BETA")
	c.ContextualRoles["HR"][0] = "ADMIN"
	c.ContextualRoles["ALPHA"] = []string{"TEAMLEAD"}

	assert.Equal(t, []string{"HR"}, p.Departments)
	assert.Equal(t, []string{"ALPHA"}, p.Projects)
	assert.Equal(t, []string{"LEAD"}, p.ContextualRoles["HR"])
	assert.NotContains(t, p.ContextualRoles, "ALPHA")
}

func TestRequirement_IsGeneral(t *testing.T) {
	assert.True(t, Requirement{}.IsGeneral())
	assert.True(t, Requirement{MinHierarchyLevel: 2, RequiredRole: "LEAD"}.IsGeneral())
	assert.False(t, Requirement{Department: "HR"}.IsGeneral())
	assert.False(t, Requirement{Project: "ALPHA"}.IsGeneral())
}

func TestProfile_Lookups(t *testing.T) {
	p := Profile{
		Departments:     []string{"HR", "IT"},
		Projects:        []string{"ALPHA"},
		ContextualRoles: map[string][]string{"HR": {"LEAD", "ADMIN"}},
	}

	assert.True(t, p.HasDepartment("IT"))
	assert.False(t, p.HasDepartment("FINANCE"))
	assert.True(t, p.HasProject("ALPHA"))
	assert.False(t, p.HasProject("BETA"))
	assert.Equal(t, []string{"LEAD", "ADMIN"}, p.RolesIn("HR"))
	assert.Nil(t, p.RolesIn("ALPHA"))
}
