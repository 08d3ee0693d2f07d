package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/cv-pipeline/internal/config"
	"github.com/jonathan/cv-pipeline/internal/db"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <run-id>",
	Short: "Print a stored artifact from an earlier pipeline run",
	Long:  "Fetches one per-step artifact of a persisted run, for auditing what each phase produced. Requires artifact persistence to have been enabled for the run.",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

var (
	inspectStep     string
	inspectConfig   string
	inspectDatabase string
)

func init() {
	inspectCmd.Flags().StringVarP(&inspectStep, "step", "s", db.StepFinalCV, "Artifact step to fetch: "+stepList())
	inspectCmd.Flags().StringVar(&inspectConfig, "config", "", "Path to config JSON file (for database_url)")
	inspectCmd.Flags().StringVar(&inspectDatabase, "database", "", "Database URL (overrides config and DATABASE_URL)")

	rootCmd.AddCommand(inspectCmd)
}

// artifactSteps maps each step name to whether its artifact is stored as
// plain text rather than JSON.
var artifactSteps = map[string]bool{
	db.StepRoleRecords: false,
	db.StepBulletSets:  false,
	db.StepStitched:    false,
	db.StepHeader:      false,
	db.StepGrade:       false,
	db.StepFinalCV:     true,
}

func stepList() string {
	names := make([]string, 0, len(artifactSteps))
	for name := range artifactSteps {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func runInspect(_ *cobra.Command, args []string) error {
	runID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid run ID %q: %w", args[0], err)
	}

	isText, ok := artifactSteps[inspectStep]
	if !ok {
		return fmt.Errorf("unknown step %q (one of: %s)", inspectStep, stepList())
	}

	databaseURL, err := resolveDatabaseURL()
	if err != nil {
		return err
	}

	ctx := context.Background()
	database, err := db.Connect(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer database.Close()

	if isText {
		text, err := database.GetTextArtifact(ctx, runID, inspectStep)
		if err != nil {
			return err
		}
		if text == "" {
			return fmt.Errorf("no %s artifact stored for run %s", inspectStep, runID)
		}
		fmt.Println(text)
		return nil
	}

	content, err := database.GetArtifact(ctx, runID, inspectStep)
	if err != nil {
		return err
	}
	if content == nil {
		return fmt.Errorf("no %s artifact stored for run %s", inspectStep, runID)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, content, "", "  "); err != nil {
		fmt.Println(string(content))
		return nil
	}
	fmt.Println(pretty.String())
	return nil
}

func resolveDatabaseURL() (string, error) {
	if inspectDatabase != "" {
		return inspectDatabase, nil
	}
	if inspectConfig != "" {
		cfg, err := config.LoadConfig(inspectConfig)
		if err != nil {
			return "", err
		}
		if cfg.DatabaseURL != "" {
			return cfg.DatabaseURL, nil
		}
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url, nil
	}
	return "", fmt.Errorf("database URL is required (--database, config, or DATABASE_URL)")
}
