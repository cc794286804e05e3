package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/victornm/umoja/internal/config"
	"github.com/victornm/umoja/internal/domain"
	"github.com/victornm/umoja/internal/question"
	"github.com/victornm/umoja/internal/store"
)

type Config struct {
	Postgres store.Config
}

func main() {
	file := flag.String("file", "questions.json", "path to the questions JSON file")
	migrate := flag.Bool("migrate", true, "apply migrations before seeding")
	flag.Parse()

	var c Config
	p := os.Getenv("CONFIG_PATH")
	if p == "" {
		log.Fatalf("CONFIG_PATH not set")
	}
	if err := config.Load(p, &c); err != nil {
		log.Fatalf("Load config failed: %v", err)
	}

	if err := run(c, *file, *migrate); err != nil {
		log.Fatalf("Seed failed: %v", err)
	}
}

func run(c Config, file string, migrate bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if migrate {
		if err := store.Migrate(c.Postgres.URL()); err != nil {
			return err
		}
	}

	db, err := store.Connect(ctx, c.Postgres, nil)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	s := question.NewService(question.Config{Store: store.New(db)})

	rep, err := s.Seed(ctx, f)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "seed: completed",
		"read", rep.Read,
		"skipped", rep.Skipped,
		"deleted", rep.Deleted,
		"inserted", rep.Inserted,
	)

	categories := make([]domain.Category, 0, len(rep.Distribution))
	for cat := range rep.Distribution {
		categories = append(categories, cat)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })
	for _, cat := range categories {
		slog.InfoContext(ctx, "seed: category distribution", "category", cat, "count", rep.Distribution[cat])
	}

	return nil
}
