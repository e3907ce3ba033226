package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"echopath/internal/logger"
	"echopath/internal/services/speech"

	"github.com/spf13/cobra"
)

func newSayCmd(g *Globals) *cobra.Command {
	var engine, voice string

	cmd := &cobra.Command{
		Use:   "say <text>...",
		Short: "Speak text with the configured speech engine",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := g.Config
			if engine != "" {
				cfg.SpeechEngine = engine
			}
			if voice != "" {
				cfg.SpeechVoice = voice
			}

			synth, err := speech.New(cfg.SpeechEngine, cfg.SpeechVoice, logger.New(os.Stderr))
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.SpeechTimeout)
			defer cancel()

			text := strings.Join(args, " ")
			if err := synth.Speak(ctx, text); err != nil {
				return fmt.Errorf("%s: %w", synth.Name(), err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().StringVar(&engine, "engine", "", "Speech engine override (say, espeak, espeak-ng, spd-say, none)")
	cmd.Flags().StringVar(&voice, "voice", "", "Voice override")
	return cmd
}
