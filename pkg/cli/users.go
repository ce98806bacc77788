package cli

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/lanternhq/lantern/pkg/access"
	"github.com/lanternhq/lantern/pkg/api"
	"github.com/lanternhq/lantern/pkg/profiles"
)

func newUsersCommand() *Command {
	cmd := &Command{
		Name:        "users",
		Description: "User permission management commands",
		Subcommands: make(map[string]*Command),
		Run:         runUsers,
	}
	cmd.Subcommands["list"] = newUsersListCommand()
	cmd.Subcommands["view"] = newUsersViewCommand()
	cmd.Subcommands["set"] = newUsersSetCommand()
	cmd.Subcommands["remove"] = newUsersRemoveCommand()
	cmd.Subcommands["bulk-import"] = newUsersBulkImportCommand()
	return cmd
}

func runUsers(args []string) error {
	// Handle subcommands
	if len(args) == 0 {
		return runUsersHelp(args)
	}

	usersCmd := newUsersCommand()
	if subcmd, ok := usersCmd.Subcommands[args[0]]; ok {
		return subcmd.Run(args[1:])
	}

	return fmt.Errorf("unknown users subcommand: %s", args[0])
}

func runUsersHelp(args []string) error {
	fmt.Println("Usage: lanternctl users <command> [args]")
	fmt.Println("\nAvailable commands:")
	fmt.Println("  list          List user access profiles")
	fmt.Println("  view          View one user's permissions")
	fmt.Println("  set           Set fields of a user's permissions")
	fmt.Println("  remove        Remove a user and their tickets and feedback")
	fmt.Println("  bulk-import   Import users from a JSON or TXT file")
	fmt.Println("\nExamples:")
	fmt.Println("  lanternctl users list")
	fmt.Println("  lanternctl users view alice@example.com")
	fmt.Println("  lanternctl users set alice@example.com -level 2 -departments IT,FINANCE")
	fmt.Println("  lanternctl users bulk-import -file users.json")
	return nil
}

func newUsersListCommand() *Command {
	cmd := &Command{
		Name:        "list",
		Description: "List user access profiles",
		Flags:       flag.NewFlagSet("users list", flag.ExitOnError),
		Run:         runUsersList,
	}

	cmd.Flags.String("registry", defaultRegistry(), "Lantern service URL")
	cmd.Flags.String("token", "", "Bearer token (defaults to LANTERN_TOKEN)")
	cmd.Flags.Int("limit", 50, "Maximum profiles to list")
	cmd.Flags.Int("offset", 0, "Listing offset")
	cmd.Flags.Bool("json", false, "Output in JSON format")

	return cmd
}

func runUsersList(args []string) error {
	cmd := newUsersListCommand()
	if err := cmd.Flags.Parse(args); err != nil {
		return err
	}

	registry := cmd.Flags.Lookup("registry").Value.String()
	token := resolveToken(cmd.Flags.Lookup("token").Value.String())
	limit := cmd.Flags.Lookup("limit").Value.String()
	offset := cmd.Flags.Lookup("offset").Value.String()
	outputJSON := cmd.Flags.Lookup("json").Value.String() == "true"

	client := newAPIClient(token)
	listURL := fmt.Sprintf("%s/api/v1/admin/users?limit=%s&offset=%s", registry, limit, offset)
	resp, err := client.Get(listURL)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return serviceError(resp)
	}

	var listing api.ListUsersResponse
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		return printJSON(listing)
	}

	// Pretty table output
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "EMAIL\tLEVEL\tDEPARTMENTS\tPROJECTS\tROLES")
	for _, p := range listing.Users {
		roleCount := 0
		for _, roles := range p.ContextualRoles {
			roleCount += len(roles)
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%d\n",
			p.Email,
			p.HierarchyLevel,
			strings.Join(p.Departments, ","),
			strings.Join(p.Projects, ","),
			roleCount,
		)
	}
	w.Flush()

	fmt.Printf("\nShowing %d of %d users\n", len(listing.Users), listing.Total)
	return nil
}

func newUsersViewCommand() *Command {
	cmd := &Command{
		Name:        "view",
		Description: "View one user's permissions",
		Flags:       flag.NewFlagSet("users view", flag.ExitOnError),
		Run:         runUsersView,
	}

	cmd.Flags.String("registry", defaultRegistry(), "Lantern service URL")
	cmd.Flags.String("token", "", "Bearer token (defaults to LANTERN_TOKEN)")
	cmd.Flags.Bool("json", false, "Output in JSON format")

	return cmd
}

func runUsersView(args []string) error {
	cmd := newUsersViewCommand()
	if err := cmd.Flags.Parse(args); err != nil {
		return err
	}

	registry := cmd.Flags.Lookup("registry").Value.String()
	token := resolveToken(cmd.Flags.Lookup("token").Value.String())
	outputJSON := cmd.Flags.Lookup("json").Value.String() == "true"

	remainingArgs := cmd.Flags.Args()
	if len(remainingArgs) == 0 {
		return fmt.Errorf("email required. Usage: lanternctl users view <email>")
	}
	email := remainingArgs[0]

	client := newAPIClient(token)
	resp, err := client.Get(permissionsURL(registry, email))
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

func newUsersSetCommand() *Command {
	cmd := &Command{
		Name:        "set",
		Description: "Set fields of a user's permissions",
		Flags:       flag.NewFlagSet("users set", flag.ExitOnError),
		Run:         runUsersSet,
	}

	cmd.Flags.String("registry", defaultRegistry(), "Lantern service URL")
	cmd.Flags.String("token", "", "Bearer token (defaults to LANTERN_TOKEN)")
	cmd.Flags.Int("level", 0, "Hierarchy level")
	cmd.Flags.String("departments", "", "Comma-separated department tags (replaces the whole list)")
	cmd.Flags.String("projects", "", "Comma-separated project tags (replaces the whole list)")
	cmd.Flags.String("roles", "", "Comma-separated context:role grants (replaces the whole map)")
	cmd.Flags.Bool("json", false, "Output in JSON format")

	return cmd
}

func runUsersSet(args []string) error {
	cmd := newUsersSetCommand()
	if err := cmd.Flags.Parse(args); err != nil {
		return err
	}

	registry := cmd.Flags.Lookup("registry").Value.String()
	token := resolveToken(cmd.Flags.Lookup("token").Value.String())
	outputJSON := cmd.Flags.Lookup("json").Value.String() == "true"

	remainingArgs := cmd.Flags.Args()
	if len(remainingArgs) == 0 {
		return fmt.Errorf("email required. Usage: lanternctl users set <email> [flags]")
	}
	email := remainingArgs[0]

	// Only fields whose flags were given on the command line go into the
	// update; a given field replaces the stored one wholesale, so
	// -departments "" clears the list.
	update, err := updateFromFlags(cmd.Flags)
	if err != nil {
		return err
	}
	if update.IsEmpty() {
		return fmt.Errorf("nothing to set: give at least one of -level, -departments, -projects, -roles")
	}

	profile, err := putPermissions(newAPIClient(token), registry, email, update)
	if err != nil {
		return err
	}

	if outputJSON {
		return printJSON(profile)
	}
	fmt.Printf("Updated %s\n\n", email)
	printProfile(profile)
	return nil
}

func newUsersRemoveCommand() *Command {
	cmd := &Command{
		Name:        "remove",
		Description: "Remove a user and their tickets and feedback",
		Flags:       flag.NewFlagSet("users remove", flag.ExitOnError),
		Run:         runUsersRemove,
	}

	cmd.Flags.String("registry", defaultRegistry(), "Lantern service URL")
	cmd.Flags.String("token", "", "Bearer token (defaults to LANTERN_TOKEN)")

	return cmd
}

func runUsersRemove(args []string) error {
	cmd := newUsersRemoveCommand()
	if err := cmd.Flags.Parse(args); err != nil {
		return err
	}

	registry := cmd.Flags.Lookup("registry").Value.String()
	token := resolveToken(cmd.Flags.Lookup("token").Value.String())

	remainingArgs := cmd.Flags.Args()
	if len(remainingArgs) == 0 {
		return fmt.Errorf("email required. Usage: lanternctl users remove <email>")
	}
	email := remainingArgs[0]

	req, err := http.NewRequest(http.MethodDelete,
		fmt.Sprintf("%s/api/v1/admin/users/%s", registry, url.PathEscape(email)), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := newAPIClient(token).Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return serviceError(resp)
	}

	fmt.Printf("Removed user %s\n", email)
	return nil
}

func newUsersBulkImportCommand() *Command {
	cmd := &Command{
		Name:        "bulk-import",
		Description: "Import users from a JSON or TXT file",
		Flags:       flag.NewFlagSet("users bulk-import", flag.ExitOnError),
		Run:         runUsersBulkImport,
	}

	cmd.Flags.String("registry", defaultRegistry(), "Lantern service URL")
	cmd.Flags.String("token", "", "Bearer token (defaults to LANTERN_TOKEN)")
	cmd.Flags.String("file", "", "JSON array of profiles, or TXT with one email per line")

	return cmd
}

func runUsersBulkImport(args []string) error {
	cmd := newUsersBulkImportCommand()
	if err := cmd.Flags.Parse(args); err != nil {
		return err
	}

	registry := cmd.Flags.Lookup("registry").Value.String()
	token := resolveToken(cmd.Flags.Lookup("token").Value.String())
	file := cmd.Flags.Lookup("file").Value.String()

	if file == "" {
		return fmt.Errorf("file is required. Usage: lanternctl users bulk-import -file users.json")
	}

	client := newAPIClient(token)
	switch strings.ToLower(filepath.Ext(file)) {
	case ".json":
		return bulkImportProfiles(client, registry, file)
	case ".txt":
		return bulkImportEmails(client, registry, file)
	default:
		return fmt.Errorf("unsupported file type %q: use a .json or .txt file", filepath.Ext(file))
	}
}

// bulkImportProfiles upserts every profile in a JSON array. Each entry
// replaces the stored profile's fields wholesale.
func bulkImportProfiles(client *http.Client, registry, file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", file, err)
	}

	var entries []access.Profile
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to parse %s: %w", file, err)
	}

	imported, failed := 0, 0
	for _, entry := range entries {
		if entry.Email == "" {
			log.Warnf("Skipping entry with no email")
			failed++
			continue
		}
		update := profiles.PartialUpdate{
			HierarchyLevel:  &entry.HierarchyLevel,
			Departments:     &entry.Departments,
			Projects:        &entry.Projects,
			ContextualRoles: &entry.ContextualRoles,
		}
		if *update.Departments == nil {
			update.Departments = &[]string{}
		}
		if *update.Projects == nil {
			update.Projects = &[]string{}
		}
		if *update.ContextualRoles == nil {
			update.ContextualRoles = &map[string][]string{}
		}
		if _, err := putPermissions(client, registry, entry.Email, update); err != nil {
			log.Warnf("Failed to import %s: %v", entry.Email, err)
			failed++
			continue
		}
		log.Infof("Imported %s", entry.Email)
		imported++
	}

	fmt.Printf("Imported %d users, %d failed\n", imported, failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d imports failed", failed, imported+failed)
	}
	return nil
}

// bulkImportEmails creates a default profile for every email in a text
// file, one address per line. Existing users are left untouched.
func bulkImportEmails(client *http.Client, registry, file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", file, err)
	}

	created, skipped, failed := 0, 0, 0
	for _, line := range strings.Split(string(data), "\n") {
		email := strings.TrimSpace(line)
		if email == "" || !strings.Contains(email, "@") {
			continue
		}

		exists, err := userExists(client, registry, email)
		if err != nil {
			log.Warnf("Failed to look up %s: %v", email, err)
			failed++
			continue
		}
		if exists {
			log.Debugf("User %s already exists, skipping", email)
			skipped++
			continue
		}

		if _, err := putPermissions(client, registry, email, profiles.PartialUpdate{}); err != nil {
			log.Warnf("Failed to create %s: %v", email, err)
			failed++
			continue
		}
		log.Infof("Created %s", email)
		created++
	}

	fmt.Printf("Created %d users, skipped %d existing, %d failed\n", created, skipped, failed)
	if failed > 0 {
		return fmt.Errorf("%d creations failed", failed)
	}
	return nil
}

// permissionsURL builds the admin permissions endpoint for one email.
func permissionsURL(registry, email string) string {
	return fmt.Sprintf("%s/api/v1/admin/users/%s/permissions", registry, url.PathEscape(email))
}

// putPermissions sends one permissions update and returns the stored
// profile.
func putPermissions(client *http.Client, registry, email string, update profiles.PartialUpdate) (*access.Profile, error) {
	payload, err := json.Marshal(update)
	if err != nil {
		return nil, fmt.Errorf("failed to encode update: %w", err)
	}

	req, err := http.NewRequest(http.MethodPut, permissionsURL(registry, email), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, serviceError(resp)
	}

	var profile access.Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &profile, nil
}

// userExists reports whether the service already holds a profile for the
// email.
func userExists(client *http.Client, registry, email string) (bool, error) {
	resp, err := client.Get(permissionsURL(registry, email))
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, serviceError(resp)
	}
}

// updateFromFlags builds the update from the flags the caller actually
// gave. flag.Visit only walks set flags, so unset fields stay nil and
// survive untouched on the server.
func updateFromFlags(flags *flag.FlagSet) (profiles.PartialUpdate, error) {
	var update profiles.PartialUpdate
	var parseErr error

	flags.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "level":
			level, err := strconv.Atoi(f.Value.String())
			if err != nil {
				parseErr = fmt.Errorf("invalid level %q", f.Value.String())
				return
			}
			update.HierarchyLevel = &level
		case "departments":
			tags := splitTags(f.Value.String())
			update.Departments = &tags
		case "projects":
			tags := splitTags(f.Value.String())
			update.Projects = &tags
		case "roles":
			grants, err := parseRoleGrants(f.Value.String())
			if err != nil {
				parseErr = err
				return
			}
			update.ContextualRoles = &grants
		}
	})

	return update, parseErr
}

// splitTags splits a comma-separated tag list. The result is never nil:
// an empty value means "replace with nothing".
func splitTags(value string) []string {
	tags := []string{}
	for _, tag := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			tags = append(tags, trimmed)
		}
	}
	return tags
}

// parseRoleGrants parses comma-separated context:role pairs into the
// contextual-roles map. An empty value clears the map.
func parseRoleGrants(value string) (map[string][]string, error) {
	grants := map[string][]string{}
	if strings.TrimSpace(value) == "" {
		return grants, nil
	}
	for _, pair := range strings.Split(value, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid role grant %q: expected context:role", pair)
		}
		context := strings.TrimSpace(parts[0])
		role := strings.TrimSpace(parts[1])
		grants[context] = append(grants[context], role)
	}
	return grants, nil
}
