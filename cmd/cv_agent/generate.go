package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/cv-pipeline/internal/config"
	"github.com/jonathan/cv-pipeline/internal/corpus"
	"github.com/jonathan/cv-pipeline/internal/db"
	"github.com/jonathan/cv-pipeline/internal/grading"
	"github.com/jonathan/cv-pipeline/internal/llm"
	"github.com/jonathan/cv-pipeline/internal/observability"
	"github.com/jonathan/cv-pipeline/internal/pipeline"
	"github.com/jonathan/cv-pipeline/internal/retry"
	"github.com/jonathan/cv-pipeline/internal/types"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a CV from an achievement corpus and job context",
	Long:  "Runs the full pipeline: loads role records, generates and validates bullets per role, stitches the body, composes the header, and grades/revises until accepted or capped.",
	RunE:  runGenerate,
}

var (
	generateCorpus  string
	generateJob     string
	generateOutput  string
	generateConfig  string
	generateVerbose bool
)

func init() {
	generateCmd.Flags().StringVarP(&generateCorpus, "corpus", "c", "", "Path to achievement corpus directory (required unless set in config)")
	generateCmd.Flags().StringVarP(&generateJob, "job", "j", "", "Path to job context JSON file")
	generateCmd.Flags().StringVarP(&generateOutput, "out", "o", "", "Path to output CV text file (default: stdout)")
	generateCmd.Flags().StringVar(&generateConfig, "config", "", "Path to config JSON file")
	generateCmd.Flags().BoolVarP(&generateVerbose, "verbose", "v", false, "Print detailed progress information")

	rootCmd.AddCommand(generateCmd)
}

func runGenerate(_ *cobra.Command, _ []string) error {
	cfg := &config.Config{}
	if generateConfig != "" {
		loaded, err := config.LoadConfig(generateConfig)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	// Flags override config.
	if generateCorpus != "" {
		cfg.CorpusDir = generateCorpus
	}
	if generateJob != "" {
		cfg.Job = generateJob
	}
	if generateOutput != "" {
		cfg.Output = generateOutput
	}
	if generateVerbose {
		cfg.Verbose = true
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.CorpusDir == "" {
		return fmt.Errorf("achievement corpus directory is required (--corpus or config)")
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return fmt.Errorf("API key is required (config, or GEMINI_API_KEY)")
	}

	ctx := context.Background()

	client, err := llm.NewClient(ctx, llm.DefaultConfig(), apiKey)
	if err != nil {
		return fmt.Errorf("failed to create model client: %w", err)
	}
	defer func() { _ = client.Close() }()

	job, err := loadJobContext(cfg.Job)
	if err != nil {
		return err
	}

	rubric := grading.DefaultRubric()
	if cfg.Rubric != "" {
		rubric, err = grading.LoadRubric(cfg.Rubric)
		if err != nil {
			return err
		}
	}

	policy := retry.DefaultPolicy()
	policy.Retryable = llm.Transient

	p := pipeline.New(client, corpus.NewDirStore(cfg.CorpusDir), pipeline.Options{
		CorpusPath:          cfg.CorpusDir,
		JobTitle:            cfg.Job,
		MinWords:            cfg.MinWords,
		MaxWords:            cfg.MaxWords,
		MinBulletsPerRole:   cfg.MinBulletsPerRole,
		MaxBulletWords:      cfg.MaxBulletWords,
		SimilarityThreshold: cfg.SimilarityThreshold,
		HeaderReserveWords:  cfg.HeaderReserveWords,
		Workers:             cfg.Workers,
		MaxIterations:       cfg.MaxIterations,
		Timeout:             time.Duration(cfg.TimeoutSeconds) * time.Second,
		Rubric:              rubric,
		Retry:               policy,
	})

	if cfg.Verbose {
		p.Printer = observability.NewPrinter(os.Stderr)
		p.Progress = func(ev pipeline.ProgressEvent) {
			fmt.Fprintf(os.Stderr, "[%s] %s\n", ev.Phase, ev.Message)
		}
	}

	if cfg.DatabaseURL != "" {
		database, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: artifact persistence disabled: %v\n", err)
		} else {
			defer database.Close()
			p.DB = database
		}
	}

	result, err := p.Run(ctx, job)
	if err != nil {
		return err
	}

	if err := writeOutput(cfg.Output, result); err != nil {
		return err
	}

	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}
	if result.Grade != nil {
		fmt.Fprintf(os.Stderr, "Grade: %.2f (rubric %s), %d words\n",
			result.Grade.Overall, result.Grade.RubricVersion, result.WordCount)
	}
	return nil
}

// loadJobContext reads the job context JSON. A missing path yields an empty
// context: the pipeline still produces a CV, just without targeting signals.
func loadJobContext(path string) (*types.JobContext, error) {
	if path == "" {
		return &types.JobContext{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read job context %s: %w", path, err)
	}

	var job types.JobContext
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to parse job context JSON: %w", err)
	}
	return &job, nil
}

// writeOutput writes the CV text, plus a sibling .json metadata file when
// writing to disk.
func writeOutput(path string, result *types.CVResult) error {
	if path == "" {
		fmt.Println(result.Document)
		return nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, []byte(result.Document), 0644); err != nil {
		return fmt.Errorf("failed to write CV to %s: %w", path, err)
	}

	meta, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run metadata: %w", err)
	}
	metaPath := path + ".json"
	if err := os.WriteFile(metaPath, meta, 0644); err != nil {
		return fmt.Errorf("failed to write run metadata to %s: %w", metaPath, err)
	}

	fmt.Fprintf(os.Stderr, "Output: %s (metadata: %s)\n", path, metaPath)
	return nil
}
