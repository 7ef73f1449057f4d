package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"habla/internal/extractor"
	"habla/internal/language"
	"habla/internal/logging"
	"habla/internal/planner"
	"habla/internal/resolver"
)

func newInspectCommand(ctx *commandContext) *cobra.Command {
	var quality string
	var preferredLanguage string

	cmd := &cobra.Command{
		Use:   "inspect URL",
		Short: "Show available streams and the plan without downloading",
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
			preferred := effectiveLanguage(preferredLanguage, cfg.Download.PreferredLanguage)
			if quality == "" {
				quality = cfg.Download.Quality
			}

			prober := extractor.NewYtDlp(cfg.Tools.YtDlp,
				extractor.WithCookieBrowsers(cfg.Tools.CookieBrowsers),
				extractor.WithLogger(logging.NewComponentLogger(ctx.ensureLogger(), "extractor")))
			probed, err := prober.Probe(cmd.Context(), url)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Title: %s\n\n", probed.Title)

			videoRows := make([][]string, 0, len(probed.Catalog.Video))
			for _, v := range probed.Catalog.Video {
				videoRows = append(videoRows, []string{
					v.QualityLabel,
					strconv.Itoa(v.Height),
					formatFPS(v.FPS),
					v.Codec,
					v.StreamRef,
				})
			}
			fmt.Fprintln(out, "Video streams:")
			fmt.Fprintln(out, renderTable([]string{"Quality", "Height", "FPS", "Codec", "Ref"}, videoRows, 2, 3))

			audioRows := make([][]string, 0, len(probed.Catalog.Audio))
			for _, a := range probed.Catalog.Audio {
				audioRows = append(audioRows, []string{
					language.DisplayName(a.Language),
					a.Language,
					yesNo(a.Default),
					a.Codec,
					a.StreamRef,
				})
			}
			fmt.Fprintln(out, "Audio streams:")
			fmt.Fprintln(out, renderTable([]string{"Language", "Tag", "Default", "Codec", "Ref"}, audioRows))

			if len(probed.Catalog.Subtitles) > 0 {
				subRows := make([][]string, 0, len(probed.Catalog.Subtitles))
				for _, s := range probed.Catalog.Subtitles {
					subRows = append(subRows, []string{
						language.DisplayName(s.Language),
						s.Language,
						s.Format,
						s.StreamRef,
					})
				}
				fmt.Fprintln(out, "Subtitles:")
				fmt.Fprintln(out, renderTable([]string{"Language", "Tag", "Format", "Ref"}, subRows))
			}

			decision := resolver.Resolve(probed.Catalog, preferred, resolver.Options{
				Title:          probed.Title,
				InferFromTitle: cfg.Download.InferFromTitle,
			})
			fmt.Fprintf(out, "Decision for %s: %s\n", language.DisplayName(preferred), decision.Kind)
			if decision.Inferred {
				fmt.Fprintln(out, "  (inferred from the video title)")
			}

			plan, err := planner.Build(probed.Catalog, decision, quality, planner.Options{
				PreferredLanguage:  preferred,
				AllowOriginalAudio: true,
			})
			if err != nil {
				if errors.Is(err, planner.ErrNoLanguageMatch) {
					fmt.Fprintln(out, "No plan: nothing in the preferred language")
					return nil
				}
				return err
			}

			steps := make([]string, 0, len(plan.Steps))
			for _, s := range plan.Steps {
				steps = append(steps, s.Name)
			}
			fmt.Fprintf(out, "Selected video: %s\n", plan.Video.QualityLabel)
			fmt.Fprintf(out, "Plan: %s\n", strings.Join(steps, " -> "))
			for _, advisory := range plan.Advisories {
				fmt.Fprintf(out, "notice: %s\n", advisory.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&quality, "quality", "q", "", "Quality label to plan for")
	cmd.Flags().StringVarP(&preferredLanguage, "language", "l", "", "Preferred audio language tag")

	return cmd
}

func formatFPS(fps float64) string {
	if fps <= 0 {
		return ""
	}
	return strconv.FormatFloat(fps, 'f', -1, 64)
}
