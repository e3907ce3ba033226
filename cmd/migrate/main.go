package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"echopath/internal/journal"
	"echopath/internal/repository"

	"github.com/schollz/progressbar/v3"
)

func main() {
	from := flag.String("from", "data/echopath.db", "Source journal (SQLite path or postgres:// URL)")
	to := flag.String("to", "", "Destination journal (SQLite path or postgres:// URL)")
	flag.Parse()

	if *to == "" {
		log.Fatalf("-to is required")
	}

	ctx := context.Background()
	fmt.Printf("Migrating journal %s to %s\n", *from, *to)

	// Opening a journal also creates its schema.
	src, err := journal.Open(ctx, *from)
	if err != nil {
		log.Fatalf("Failed to open source journal: %v", err)
	}
	defer src.Close()

	dst, err := journal.Open(ctx, *to)
	if err != nil {
		log.Fatalf("Failed to open destination journal: %v", err)
	}
	defer dst.Close()

	result, err := copyJournal(ctx, src, dst, os.Stderr)
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	fmt.Printf("✅ Copied %d announcements and %d snapshots (%s -> %s)\n", result.Announcements, result.Snapshots, src.Backend(), dst.Backend())
	if result.Skipped > 0 {
		fmt.Printf("⚠️  Skipped %d announcements already present\n", result.Skipped)
	}

	stats, err := dst.Announcements().GetStats(ctx)
	if err == nil {
		fmt.Printf("\n📊 Journal Statistics:\n")
		fmt.Printf("   Total announcements: %d\n", stats.TotalAnnouncements)
		fmt.Printf("   Spoken verbatim: %d\n", stats.Fallbacks)
		fmt.Printf("   Sessions: %d\n", stats.Sessions)
	}
}

type copyResult struct {
	Announcements int
	Snapshots     int
	Skipped       int
}

// copyJournal copies every announcement missing from dst, then the
// snapshots belonging to the copied announcements.
func copyJournal(ctx context.Context, src, dst repository.Journal, progress *os.File) (copyResult, error) {
	var result copyResult

	announcements, err := src.Announcements().GetAll(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("read announcements: %w", err)
	}

	var bar *progressbar.ProgressBar
	if progress != nil {
		bar = progressbar.NewOptions(len(announcements),
			progressbar.OptionSetDescription("Announcements"),
			progressbar.OptionSetWriter(progress),
			progressbar.OptionShowCount(),
		)
	}

	copied := make(map[string]bool, len(announcements))
	for i := range announcements {
		a := &announcements[i]
		if bar != nil {
			bar.Add(1)
		}

		existing, err := dst.Announcements().GetByID(ctx, a.ID)
		if err != nil {
			return result, err
		}
		if existing != nil {
			result.Skipped++
			continue
		}
		if err := dst.Announcements().Insert(ctx, a); err != nil {
			return result, fmt.Errorf("insert announcement %s: %w", a.ID, err)
		}
		copied[a.ID] = true
		result.Announcements++
	}

	snapshots, err := src.Snapshots().GetAll(ctx, 0)
	if err != nil {
		return result, fmt.Errorf("read snapshots: %w", err)
	}
	for i := range snapshots {
		s := &snapshots[i]
		if !copied[s.AnnouncementID] {
			continue
		}
		if _, err := dst.Snapshots().Insert(ctx, s); err != nil {
			return result, fmt.Errorf("insert snapshot %s: %w", s.Filename, err)
		}
		result.Snapshots++
	}
	return result, nil
}
