package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"subspace.dev/internal/persistence/indexdb"
)

// dbCmd queries the sqlite index a server writes under <data>/worlds/<id>/index.
func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	entity := fs.Uint64("entity", 0, "entity filter (commands, collisions)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "snapshots"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -db")
			os.Exit(2)
		}
		path = indexdb.Path(filepath.Join(*dataDir, "worlds", *worldID))
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}

	r, err := indexdb.OpenReader(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := runQuery(ctx, r, q, *entity, *limit); err != nil {
		fmt.Fprintln(os.Stderr, q+":", err)
		os.Exit(1)
	}
}

func runQuery(ctx context.Context, r *indexdb.Reader, q string, entity uint64, limit int) error {
	switch q {
	case "snapshots":
		rows, err := r.Snapshots(ctx, limit)
		if err != nil {
			return err
		}
		for _, s := range rows {
			printJSON(struct {
				indexdb.SnapshotRow
				Size string `json:"size"`
			}{s, humanize.Bytes(uint64(s.SizeBytes))})
		}
	case "ticks":
		rows, err := r.Ticks(ctx, limit)
		if err != nil {
			return err
		}
		for _, t := range rows {
			printJSON(t)
		}
	case "commands":
		rows, err := r.Commands(ctx, entity, limit)
		if err != nil {
			return err
		}
		for _, c := range rows {
			printJSON(struct {
				indexdb.CommandRow
				CmdJSON json.RawMessage `json:"cmd_json"`
			}{c, json.RawMessage(c.CmdJSON)})
		}
	case "collisions":
		rows, err := r.Collisions(ctx, entity, limit)
		if err != nil {
			return err
		}
		for _, c := range rows {
			printJSON(c)
		}
	case "destroyed":
		rows, err := r.Destroyed(ctx, limit)
		if err != nil {
			return err
		}
		for _, d := range rows {
			printJSON(d)
		}
	case "catalogs":
		rows, err := r.Catalogs(ctx)
		if err != nil {
			return err
		}
		for _, c := range rows {
			printJSON(struct {
				indexdb.CatalogRow
				Size string `json:"size"`
			}{c, humanize.Bytes(uint64(c.Bytes))})
		}
	default:
		return fmt.Errorf("unknown query (want snapshots|ticks|commands|collisions|destroyed|catalogs)")
	}
	return nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
