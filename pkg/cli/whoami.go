package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/lanternhq/lantern/pkg/access"
)

func newWhoamiCommand() *Command {
	cmd := &Command{
		Name:        "whoami",
		Description: "Show the profile the service resolves for your token",
		Flags:       flag.NewFlagSet("whoami", flag.ExitOnError),
		Run:         runWhoami,
	}

	cmd.Flags.String("registry", defaultRegistry(), "Lantern service URL")
	cmd.Flags.String("token", "", "Bearer token (defaults to LANTERN_TOKEN)")
	cmd.Flags.Bool("json", false, "Output in JSON format")

	return cmd
}

func runWhoami(args []string) error {
	cmd := newWhoamiCommand()
	if err := cmd.Flags.Parse(args); err != nil {
		return err
	}

	registry := cmd.Flags.Lookup("registry").Value.String()
	token := resolveToken(cmd.Flags.Lookup("token").Value.String())
	outputJSON := cmd.Flags.Lookup("json").Value.String() == "true"

	client := newAPIClient(token)
	resp, err := client.Get(registry + "/api/v1/me")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return serviceError(resp)
	}

	var profile access.Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		return printJSON(profile)
	}

	printProfile(&profile)
	return nil
}

// printProfile writes one profile in the human-readable layout shared by
// whoami and the users commands.
func printProfile(p *access.Profile) {
	fmt.Printf("Email: %s\n", p.Email)
	fmt.Printf("Hierarchy Level: %d\n", p.HierarchyLevel)
	fmt.Printf("Departments: %s\n", joinOrNone(p.Departments))
	fmt.Printf("Projects: %s\n", joinOrNone(p.Projects))

	if len(p.ContextualRoles) == 0 {
		fmt.Println("Contextual Roles: (none)")
		return
	}
	fmt.Println("Contextual Roles:")
	contexts := make([]string, 0, len(p.ContextualRoles))
	for context := range p.ContextualRoles {
		contexts = append(contexts, context)
	}
	sort.Strings(contexts)
	for _, context := range contexts {
		fmt.Printf("  %s: %s\n", context, strings.Join(p.ContextualRoles[context], ", "))
	}
}

func joinOrNone(tags []string) string {
	if len(tags) == 0 {
		return "(none)"
	}
	return strings.Join(tags, ", ")
}
