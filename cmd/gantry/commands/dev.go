package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gantry-dev/gantry/pkg/engine"
)

func newDevCommand() *cobra.Command {
	var outFile string

	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Watch the manifest and re-resolve on change",
		Long: `Watch the manifest file and re-resolve the plan whenever it changes.
Useful while iterating on a configuration: the resolved plan and any
resolution errors appear immediately.`,
		Example: `  # Re-resolve env.cue on every save
  gantry dev -c env.cue --out plan.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if manifestPath == "" {
				return fmt.Errorf("dev mode requires a manifest (--config)")
			}

			resolve := func() {
				cfg, err := loadConfig()
				if err != nil {
					log.Error().Err(err).Msg("manifest does not load")
					return
				}
				plan, err := engine.NewPlanner(nil).Plan(cfg)
				if err != nil {
					log.Error().Err(err).Msg("manifest does not resolve")
					return
				}
				body, err := json.MarshalIndent(plan, "", "  ")
				if err != nil {
					log.Error().Err(err).Msg("plan does not encode")
					return
				}
				if err := os.WriteFile(outFile, append(body, '\n'), 0o644); err != nil {
					log.Error().Err(err).Msg("plan does not write")
					return
				}
				log.Info().Int("steps", len(plan.Steps)).Str("out", outFile).Msg("plan refreshed")
			}
			resolve()

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("create watcher: %w", err)
			}
			defer watcher.Close()

			// Editors replace files on save, so watch the directory
			// and filter for the manifest name.
			if err := watcher.Add(filepath.Dir(manifestPath)); err != nil {
				return fmt.Errorf("watch manifest directory: %w", err)
			}
			target := filepath.Clean(manifestPath)

			log.Info().Str("manifest", target).Msg("watching for changes")
			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if filepath.Clean(event.Name) != target {
						continue
					}
					if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
						continue
					}
					resolve()
				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					log.Warn().Err(err).Msg("watcher error")
				}
			}
		},
	}

	cmd.Flags().StringVarP(&outFile, "out", "o", "plan.json", "output plan file path")

	return cmd
}
