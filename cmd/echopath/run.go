package main

import (
	"fmt"
	"os"

	"echopath/internal/app"
	"echopath/internal/cli"
	"echopath/internal/logger"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func newRunCmd(g *cli.Globals) *cobra.Command {
	var (
		source    string
		session   string
		noPreview bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Watch the video source and narrate what changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := g.Config
			if source != "" {
				cfg.VideoSource = source
			}
			if noPreview {
				cfg.Preview = false
			}
			if session == "" {
				session = uuid.NewString()
			}

			log, err := logger.NewLogger(cfg)
			if err != nil {
				return err
			}
			defer log.Close()

			ctx := cmd.Context()
			application, err := app.NewApp(ctx, cfg, log, session)
			if err != nil {
				log.Error("[MAIN] Failed to start: %v", err)
				return err
			}
			defer application.Close()

			// Files get a progress bar; live streams have no frame count.
			if application.Source().Finite() {
				if total := application.Source().FrameCount(); total > 0 {
					bar := progressbar.NewOptions(total,
						progressbar.OptionSetDescription("EchoPath"),
						progressbar.OptionSetWriter(os.Stderr),
						progressbar.OptionShowCount(),
					)
					defer fmt.Fprintln(os.Stderr)
					application.Manager().Loop().SetProgress(bar)
				}
			}

			if err := application.Run(ctx); err != nil {
				log.Error("[MAIN] Session ended with error: %v", err)
				return err
			}
			log.Info("[MAIN] Session %s finished", session)
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "Video source override (device index, file, URL or pipeline)")
	cmd.Flags().StringVar(&session, "session", "", "Session ID (default: random UUID)")
	cmd.Flags().BoolVar(&noPreview, "no-preview", false, "Disable the preview window")
	return cmd
}
