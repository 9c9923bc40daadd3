package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mentorboxai/api/internal/client"
	"github.com/mentorboxai/api/internal/config"
	"github.com/mentorboxai/api/internal/logger"
	"github.com/mentorboxai/api/internal/model"
	"github.com/mentorboxai/api/internal/pipeline"
	"github.com/mentorboxai/api/internal/registry"
	"github.com/mentorboxai/api/internal/service"
)

type generateOptions struct {
	req       model.GenerationRequest
	outputDir string
	quiet     bool
}

func generateCmd(logLevel *string) *cobra.Command {
	var opts generateOptions

	cmd := &cobra.Command{
		Use:   "generate <concept>",
		Short: "Run the pipeline for one concept and print the result as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.req.Concept = strings.Join(args, " ")

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if opts.outputDir != "" {
				cfg.Storage.Backend = "local"
				cfg.Storage.OutputDir = opts.outputDir
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			gen, err := client.NewTextGenerator(ctx, cfg)
			if err != nil {
				return err
			}

			log := logger.New(cfg.Server.Env, *logLevel)
			var progress io.Writer = cmd.ErrOrStderr()
			if opts.quiet {
				progress = io.Discard
			}
			return runGenerate(ctx, cfg, gen, opts.req, cmd.OutOrStdout(), progress, log)
		},
	}

	cmd.Flags().StringVarP(&opts.req.Goal, "goal", "g", "", "Learning goal")
	cmd.Flags().IntVarP(&opts.req.DurationSeconds, "duration", "d", model.DefaultDurationSeconds, "Target video length in seconds")
	cmd.Flags().IntVarP(&opts.req.MaxScenes, "scenes", "s", model.DefaultMaxScenes, "Maximum number of scenes")
	cmd.Flags().BoolVar(&opts.req.FastMode, "fast", false, "Skip verification and refinement, validate once")
	cmd.Flags().StringVarP(&opts.outputDir, "output-dir", "o", "", "Write artifacts to this directory (overrides storage config)")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Do not print progress to stderr")

	return cmd
}

// runGenerate drives one job to completion and writes its status view to out.
func runGenerate(ctx context.Context, cfg *config.Config, gen client.TextGenerator, req model.GenerationRequest, out, progress io.Writer, log logger.Logger) error {
	stages := pipeline.NewStages(gen,
		pipeline.WithStageParams(pipeline.StageParamsFromConfig(cfg.LLM.Stages)),
		pipeline.WithMatcher(pipeline.DefaultMatcher()),
		pipeline.WithLogger(log),
	)
	orchestrator := pipeline.NewOrchestrator(stages, cfg.Pipeline.ValidationAttempts, cfg.Pipeline.FastValidationAttempts, log)

	artifacts, err := service.NewArtifactStore(cfg)
	if err != nil {
		return err
	}

	jobs := service.NewJobService(registry.NewMemoryStore(cfg.Registry.TTL, log), orchestrator, artifacts, log,
		service.WithNotifier(&progressPrinter{w: progress}),
	)

	created, err := jobs.CreateJob(ctx, req)
	if err != nil {
		return err
	}

	status, err := jobs.GetStatus(ctx, created.JobID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(status); err != nil {
		return err
	}

	if status.Status == model.JobStatusFailed {
		msg := "generation failed"
		if status.Error != nil {
			msg = *status.Error
		}
		return fmt.Errorf("job %s failed: %s", status.JobID, msg)
	}
	return nil
}

// progressPrinter writes job updates as single lines
type progressPrinter struct {
	w io.Writer
}

func (p *progressPrinter) BroadcastProgress(jobID string, progress int, status model.JobStatus, step string) {
	fmt.Fprintf(p.w, "[%3d%%] %-10s %s\n", progress, status, step)
}

func (p *progressPrinter) BroadcastComplete(jobID string, result *model.StatusResponse) {
	fmt.Fprintf(p.w, "[100%%] %s complete\n", jobID)
}

func (p *progressPrinter) BroadcastError(jobID string, code, message string) {
	fmt.Fprintf(p.w, "[ err] %s %s: %s\n", jobID, code, message)
}
