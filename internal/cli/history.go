package cli

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"echopath/internal/journal"
	"echopath/internal/models"

	"github.com/spf13/cobra"
)

func newHistoryCmd(g *Globals) *cobra.Command {
	var (
		session string
		object  string
		since   time.Duration
		limit   int
		stats   bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List journaled announcements",
		RunE: func(cmd *cobra.Command, args []string) error {
			if g.Config.JournalDSN == "" {
				return fmt.Errorf("journal is disabled (journal_dsn is empty)")
			}

			ctx := cmd.Context()
			j, err := journal.Open(ctx, g.Config.JournalDSN)
			if err != nil {
				return fmt.Errorf("failed to open journal: %w", err)
			}
			defer j.Close()

			out := cmd.OutOrStdout()

			if stats {
				s, err := j.Announcements().GetStats(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Announcements: %d (fallbacks: %d, sessions: %d)\n", s.TotalAnnouncements, s.Fallbacks, s.Sessions)
				objects := make([]string, 0, len(s.ObjectCounts))
				for obj := range s.ObjectCounts {
					objects = append(objects, obj)
				}
				sort.Slice(objects, func(i, k int) bool {
					if s.ObjectCounts[objects[i]] != s.ObjectCounts[objects[k]] {
						return s.ObjectCounts[objects[i]] > s.ObjectCounts[objects[k]]
					}
					return objects[i] < objects[k]
				})
				for _, obj := range objects {
					fmt.Fprintf(out, "   - %s: %d\n", obj, s.ObjectCounts[obj])
				}
				return nil
			}

			filter := &models.AnnouncementFilter{SessionID: session, Object: object, Limit: limit}
			if since > 0 {
				filter.Since = time.Now().Add(-since)
			}
			announcements, err := j.Announcements().GetAll(ctx, filter)
			if err != nil {
				return err
			}

			if len(announcements) == 0 {
				fmt.Fprintln(out, "No announcements found in journal.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "TIME\tSESSION\tOBJECTS\tMESSAGE")
			fmt.Fprintln(w, "----\t-------\t-------\t-------")
			for _, a := range announcements {
				objects := strings.Join(a.Objects, ", ")
				if objects == "" {
					objects = "-"
				}
				message := a.Message
				if a.Fallback {
					message += " (verbatim)"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.Timestamp.Local().Format("2006-01-02 15:04:05"), a.SessionID, objects, message)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "Only this session")
	cmd.Flags().StringVar(&object, "object", "", "Only announcements naming this object")
	cmd.Flags().DurationVar(&since, "since", 0, "Only announcements newer than this (e.g. 1h)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum rows")
	cmd.Flags().BoolVar(&stats, "stats", false, "Print journal statistics instead")
	return cmd
}
