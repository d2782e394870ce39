package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/vslobodin/channel-mirror-bot/internal/storage"
)

// Prints the discovered posts that never reached the destination channel.
func main() {
	dbPath := flag.String("db", "data/seen_posts.db", "path to the seen-posts database")
	limit := flag.Int("limit", 50, "maximum records to show")
	flag.Parse()

	store, err := storage.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	records, err := store.GetUnpublished(ctx, *limit)
	if err != nil {
		log.Fatalf("Failed to read backlog: %v", err)
	}

	if len(records) == 0 {
		fmt.Println("Backlog is empty: every discovered post was published.")
		return
	}

	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("UNPUBLISHED BACKLOG (%d records)\n", len(records))
	fmt.Println(strings.Repeat("=", 70))

	for _, record := range records {
		fmt.Printf("\n%s/%s post %s\n", record.Platform, record.SourceID, record.PostID)
		fmt.Printf("   URL:        %s\n", record.URL)
		fmt.Printf("   Created:    %s\n", record.CreatedAt.Format("2006-01-02 15:04:05 UTC"))
		fmt.Printf("   Discovered: %s\n", record.DiscoveredAt.Format("2006-01-02 15:04:05 UTC"))
		if record.ErrorMessage != "" {
			fmt.Printf("   Error:      %s\n", record.ErrorMessage)
		} else {
			fmt.Printf("   Status:     pending\n")
		}
	}
}
