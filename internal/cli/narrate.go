package cli

import (
	"fmt"
	"os"

	"echopath/internal/logger"
	"echopath/internal/models"
	"echopath/internal/services/announce"
	"echopath/internal/services/narration"
	"echopath/internal/services/speech"

	"github.com/spf13/cobra"
)

func newNarrateCmd(g *Globals) *cobra.Command {
	var speak bool

	cmd := &cobra.Command{
		Use:   "narrate [object]...",
		Short: "Turn a set of object labels into the sentence the cane would speak",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := g.Config
			log := logger.New(os.Stderr)

			summarizer, err := narration.New(cfg.SummarizerBackend, cfg.SummarizerModel, cfg.SummarizerURL)
			if err != nil {
				return err
			}

			synth := speech.Synthesizer(speech.NewNoOp(log))
			if speak {
				if synth, err = speech.New(cfg.SpeechEngine, cfg.SpeechVoice, log); err != nil {
					return err
				}
			}

			queue := speech.NewQueue(cfg.QueueLimit)
			worker := speech.NewWorker(queue, synth, cfg.SpeechTimeout, log)
			worker.Start()

			narrator := narration.NewNarrator(summarizer, queue, cfg.SummarizerPersona, cfg.SummarizerTimeout, log)
			prompt := announce.Prompt(models.NewObjectSet(args...).Sorted())
			res, err := narrator.Narrate(cmd.Context(), prompt)

			queue.Close()
			if werr := worker.Wait(cmd.Context()); werr != nil && err == nil {
				err = werr
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		},
	}
	cmd.Flags().BoolVar(&speak, "speak", false, "Also speak the sentence")
	return cmd
}
