package cli

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"

	"github.com/lanternhq/lantern/pkg/api"
)

func newCheckCommand() *Command {
	cmd := &Command{
		Name:        "check",
		Description: "Evaluate access to a document path",
		Flags:       flag.NewFlagSet("check", flag.ExitOnError),
		Run:         runCheck,
	}

	cmd.Flags.String("registry", defaultRegistry(), "Lantern service URL")
	cmd.Flags.String("token", "", "Bearer token (defaults to LANTERN_TOKEN)")
	cmd.Flags.String("user", "", "Evaluate for another user instead of yourself (admin only)")
	cmd.Flags.Bool("json", false, "Output in JSON format")

	return cmd
}

func runCheck(args []string) error {
	cmd := newCheckCommand()
	if err := cmd.Flags.Parse(args); err != nil {
		return err
	}

	registry := cmd.Flags.Lookup("registry").Value.String()
	token := resolveToken(cmd.Flags.Lookup("token").Value.String())
	user := cmd.Flags.Lookup("user").Value.String()
	outputJSON := cmd.Flags.Lookup("json").Value.String() == "true"

	remainingArgs := cmd.Flags.Args()
	if len(remainingArgs) == 0 {
		return fmt.Errorf("document path required. Usage: lanternctl check <path>")
	}
	path := remainingArgs[0]

	payload, err := json.Marshal(api.CheckAccessRequest{Path: path, UserEmail: user})
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	client := newAPIClient(token)
	resp, err := client.Post(registry+"/api/v1/access/check", "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return serviceError(resp)
	}

	var result api.CheckAccessResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		return printJSON(result)
	}

	verdict := "DENIED"
	if result.Decision.Allowed {
		verdict = "ALLOWED"
	}
	fmt.Printf("%s for %s\n", verdict, result.Subject)
	fmt.Printf("Path: %s\n", path)
	if result.Decision.Clause != "" {
		fmt.Printf("Clause: %s\n", result.Decision.Clause)
	}
	if result.Decision.Reason != "" {
		fmt.Printf("Reason: %s\n", result.Decision.Reason)
	}
	fmt.Printf("Requirement: department=%s project=%s min_level=%d",
		orDash(result.Requirement.Department), orDash(result.Requirement.Project),
		result.Requirement.MinHierarchyLevel)
	if result.Requirement.RequiredRole != "" {
		fmt.Printf(" role=%s", result.Requirement.RequiredRole)
	}
	fmt.Println()
	return nil
}

func orDash(tag string) string {
	if tag == "" {
		return "-"
	}
	return tag
}
