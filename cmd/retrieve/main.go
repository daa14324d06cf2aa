package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"newsletter-digest/internal/archive"
	"newsletter-digest/internal/config"
	"newsletter-digest/internal/logging"
	"newsletter-digest/internal/models"
	"newsletter-digest/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration")
	latest := flag.Int("latest", 0, "show the N most recent digests")
	id := flag.Int64("id", 0, "show one digest with its items")
	items := flag.Int("items", 0, "show the N most recent items")
	category := flag.String("category", "", "filter items by category (substring, case-insensitive)")
	stats := flag.Bool("stats", false, "show aggregate counts")
	export := flag.String("export", "text", "output format: text or json")
	dump := flag.String("dump", "", "write today's items to DIR/<yyyy-mm-dd>.json")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Log.Fatalf("Error reading configuration file: %v", err)
	}
	logging.Configure("warn", cfg.Logging.Format)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		logging.Log.Fatalf("Database connection failed: %v", err)
	}
	defer st.Close()

	out := printer{w: os.Stdout, json: *export == "json"}

	switch {
	case *dump != "":
		err = dumpToday(ctx, st, *dump)
	case *stats:
		var s *models.Stats
		if s, err = st.Stats(ctx); err == nil {
			out.stats(s)
		}
	case *id > 0:
		var d *models.PersistedDigest
		var its []models.PersistedItem
		if d, its, err = st.DigestByID(ctx, *id); err == nil {
			out.digest(d, its)
		}
	case *items > 0 || *category != "":
		n := *items
		if n <= 0 {
			n = 20
		}
		var its []models.PersistedItem
		if its, err = st.LatestItems(ctx, n, *category); err == nil {
			out.items(its)
		}
	default:
		n := *latest
		if n <= 0 {
			n = 5
		}
		var ds []models.PersistedDigest
		if ds, err = st.LatestDigests(ctx, n); err == nil {
			out.digests(ds)
		}
	}

	if err != nil {
		st.Close()
		logging.Log.Fatalf("Query failed: %v", err)
	}
}

// dumpToday exports the newest digest's items when it is dated today
func dumpToday(ctx context.Context, st *store.Store, dir string) error {
	today := time.Now().UTC().Format("2006-01-02")

	digests, err := st.LatestDigests(ctx, 1)
	if err != nil {
		return err
	}
	if len(digests) == 0 || digests[0].Date.Format("2006-01-02") != today {
		fmt.Printf("No digest for %s\n", today)
		return nil
	}

	_, its, err := st.DigestByID(ctx, digests[0].ID)
	if err != nil {
		return err
	}

	path, err := archive.ExportItems(ctx, archive.NewFileStorage(dir), today, its)
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %d items to %s\n", len(its), path)
	return nil
}

type printer struct {
	w    io.Writer
	json bool
}

func (p printer) encode(v any) {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func (p printer) digests(ds []models.PersistedDigest) {
	if p.json {
		p.encode(ds)
		return
	}
	if len(ds) == 0 {
		fmt.Fprintln(p.w, "No digests stored")
		return
	}
	for _, d := range ds {
		fmt.Fprintf(p.w, "#%d  %s  %s\n", d.ID, d.Date.Format("2006-01-02"), d.Headline)
	}
}

func (p printer) digest(d *models.PersistedDigest, its []models.PersistedItem) {
	if p.json {
		p.encode(map[string]any{"digest": d, "items": its})
		return
	}
	fmt.Fprintf(p.w, "#%d  %s\n%s\n%s\n", d.ID, d.Date.Format("2006-01-02"), d.Headline, strings.Repeat("=", len(d.Headline)))
	p.items(its)
}

func (p printer) items(its []models.PersistedItem) {
	if p.json {
		p.encode(its)
		return
	}
	current := ""
	for _, it := range its {
		if it.Category != current {
			current = it.Category
			fmt.Fprintf(p.w, "\n[%s]\n", current)
		}
		fmt.Fprintf(p.w, "- %s (%s)\n  %s\n  %s\n", it.Title, it.Source, it.Snippet, it.URL)
	}
}

func (p printer) stats(s *models.Stats) {
	if p.json {
		p.encode(s)
		return
	}
	fmt.Fprintf(p.w, "Digests:            %d\n", s.Digests)
	fmt.Fprintf(p.w, "Items:              %d\n", s.Items)
	fmt.Fprintf(p.w, "Active subscribers: %d\n", s.ActiveSubscribers)

	categories := make([]string, 0, len(s.ItemsByCategory))
	for c := range s.ItemsByCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	for _, c := range categories {
		fmt.Fprintf(p.w, "  %-24s %d\n", c, s.ItemsByCategory[c])
	}
}
