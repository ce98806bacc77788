package cli

import (
	"flag"
	"fmt"
	"os"

	"github.com/lanternhq/lantern/pkg/access"
	"github.com/lanternhq/lantern/pkg/vocab"
)

func newDeriveCommand() *Command {
	cmd := &Command{
		Name:        "derive",
		Description: "Derive the access requirement for a path locally",
		Flags:       flag.NewFlagSet("derive", flag.ExitOnError),
		Run:         runDerive,
	}

	cmd.Flags.String("vocab", "", "Vocabulary YAML file (defaults to LANTERN_VOCABULARY_PATH, then the built-in vocabulary)")
	cmd.Flags.Bool("json", false, "Output in JSON format")

	return cmd
}

func runDerive(args []string) error {
	cmd := newDeriveCommand()
	if err := cmd.Flags.Parse(args); err != nil {
		return err
	}

	vocabPath := cmd.Flags.Lookup("vocab").Value.String()
	outputJSON := cmd.Flags.Lookup("json").Value.String() == "true"

	remainingArgs := cmd.Flags.Args()
	if len(remainingArgs) == 0 {
		return fmt.Errorf("document path required. Usage: lanternctl derive <path>")
	}
	path := remainingArgs[0]

	if vocabPath == "" {
		vocabPath = os.Getenv("LANTERN_VOCABULARY_PATH")
	}

	var (
		v   *vocab.Vocabulary
		err error
	)
	if vocabPath != "" {
		v, err = vocab.Load(vocabPath)
		if err != nil {
			return fmt.Errorf("failed to load vocabulary from %s: %w", vocabPath, err)
		}
	} else {
		v = vocab.Default()
	}

	requirement := access.NewDeriver(v).Derive(path)

	if outputJSON {
		return printJSON(requirement)
	}

	fmt.Printf("Path: %s\n", path)
	fmt.Printf("Department: %s\n", orDash(requirement.Department))
	fmt.Printf("Project: %s\n", orDash(requirement.Project))
	fmt.Printf("Min Hierarchy Level: %d\n", requirement.MinHierarchyLevel)
	if requirement.RequiredRole != "" {
		fmt.Printf("Required Role: %s\n", requirement.RequiredRole)
	}
	return nil
}
