// Command fetch-fixture refreshes the release feed test fixture from the live
// feed, or with -check reports whether the fixture is behind it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/nickromney-org/release-notifier/internal/config"
	"github.com/nickromney-org/release-notifier/internal/feed"
	"github.com/nickromney-org/release-notifier/internal/tlsclient"
	"github.com/nickromney-org/release-notifier/internal/version"
)

func main() {
	token := flag.String("token", os.Getenv("GITHUB_TOKEN"), "GitHub token")
	output := flag.String("output", "internal/feed/testdata/releases-live.json", "Output file")
	source := flag.String("feed", "engine", "Feed to fetch (e.g., 'engine', 'owner/repo')")
	check := flag.Bool("check", false, "only report whether the fixture is behind the live feed")
	flag.Parse()

	feedSource, err := config.ParseFeedSource(*source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid feed %q: %v\n", *source, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	fmt.Printf("Fetching releases from %s...\n", feedSource.FullName())

	fetcher := feed.NewFetcher(tlsclient.Factory{}, *token)
	records, err := fetcher.Fetch(ctx, feedSource.FeedURL(), tlsclient.TLSPolicy{}, tlsclient.DefaultTimeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *check {
		os.Exit(checkFixture(*output, records))
	}

	file, err := os.Create(*output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(records); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✅ Wrote %d releases to %s\n", len(records), *output)
}

// checkFixture returns 0 when the fixture's newest tag is the live newest
func checkFixture(path string, live []feed.ReleaseRecord) int {
	file, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening fixture: %v\n", err)
		return 1
	}
	defer file.Close()

	var stored []feed.ReleaseRecord
	for record, err := range feed.Decode(file) {
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading fixture: %v\n", err)
			return 1
		}
		stored = append(stored, record)
	}

	storedNewest, liveNewest := newestTag(stored), newestTag(live)
	if liveNewest == nil {
		fmt.Println("Live feed has no semantic version tags")
		return 0
	}
	if storedNewest != nil && !liveNewest.IsNewerThan(storedNewest) {
		fmt.Printf("✅ Fixture is current (newest %s)\n", storedNewest)
		return 0
	}

	fmt.Printf("⚠️  Fixture is behind: live feed has %s\n", liveNewest)
	fmt.Println("   Run: go run ./cmd/fetch-fixture")
	return 1
}

func newestTag(records []feed.ReleaseRecord) *version.Version {
	var newest *version.Version
	for _, record := range records {
		v, ok := version.Parse(record.TagName())
		if !ok {
			continue
		}
		if newest == nil || v.IsNewerThan(newest) {
			newest = v
		}
	}
	return newest
}
