package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"habla/internal/extractor"
	"habla/internal/language"
	"habla/internal/pipeline"
	"habla/internal/planner"
)

func newGetCommand(ctx *commandContext) *cobra.Command {
	var quality string
	var preferredLanguage string
	var outputDir string
	var allowOriginalAudio bool

	cmd := &cobra.Command{
		Use:   "get URL",
		Short: "Download a video with the preferred audio language",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := args[0]
			if err := extractor.ValidateURL(url); err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p, err := pipeline.New(cfg, ctx.ensureLogger())
			if err != nil {
				return err
			}

			printer := newProgressPrinter(cmd.ErrOrStderr())
			out := cmd.OutOrStdout()

			result, err := p.Run(runCtx, url, pipeline.Options{
				Quality:            quality,
				PreferredLanguage:  preferredLanguage,
				OutputDir:          outputDir,
				AllowOriginalAudio: allowOriginalAudio,
				OnProgress:         printer.handle,
				OnAdvisory: func(a planner.Advisory) {
					fmt.Fprintf(cmd.ErrOrStderr(), "notice: %s\n", a.Message)
				},
			})
			printer.finish()
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Saved: %s\n", result.OutputPath)
			fmt.Fprintf(out, "Language: %s (%s)\n",
				language.DisplayName(effectiveLanguage(preferredLanguage, cfg.Download.PreferredLanguage)),
				result.Decision.Kind)
			return nil
		},
	}

	cmd.Flags().StringVarP(&quality, "quality", "q", "", "Quality label such as 1080p (default: best available)")
	cmd.Flags().StringVarP(&preferredLanguage, "language", "l", "", "Preferred audio language tag (default: from config)")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory for the finished file (default: from config)")
	cmd.Flags().BoolVar(&allowOriginalAudio, "allow-original-audio", false, "Proceed with the original audio when nothing matches")

	return cmd
}

func effectiveLanguage(flagValue, configValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return configValue
}
