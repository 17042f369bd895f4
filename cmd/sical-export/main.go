package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/sical-tracker/internal/common"
	"github.com/joseph-ayodele/sical-tracker/internal/export"
	repo "github.com/joseph-ayodele/sical-tracker/internal/repository"
	"github.com/joseph-ayodele/sical-tracker/internal/server"
)

// sical-export writes the ledger to an XLSX workbook, or lists the tracked concepts.
func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "optional YAML configuration file")
	out := flag.String("out", "sical_records.xlsx", "output workbook path")
	concept := flag.String("concept", "", "export only this concept's history")
	list := flag.Bool("list", false, "list concepts instead of exporting")
	latest := flag.Int("latest", 0, "print the N most recent records of -concept")
	flag.Parse()

	_ = common.LoadDotEnv()
	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := common.NewLogger(os.Stderr, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := server.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		os.Exit(1)
	}
	defer db.Close()
	records := repo.NewRecordRepository(db, logger)

	switch {
	case *list:
		concepts, err := records.ListConcepts(ctx)
		if err != nil {
			logger.Error("list concepts", "error", err)
			os.Exit(1)
		}
		for _, c := range concepts {
			desc := ""
			if c.Description != nil {
				desc = *c.Description
			}
			fmt.Printf("%s\t%d\t%s\n", c.Concept, c.Records, desc)
		}
	case *latest > 0:
		if *concept == "" {
			logger.Error("-latest requires -concept")
			os.Exit(2)
		}
		recs, err := records.Latest(ctx, *concept, *latest)
		if err != nil {
			logger.Error("latest records", "error", err)
			os.Exit(1)
		}
		for _, r := range recs {
			fmt.Printf("%s\t%s\t%s\n", r.Timestamp.Format(time.RFC3339), r.ImageFile, amountOrDash(r.TotalHaber))
		}
	default:
		data, err := export.NewService(records, logger).ExportRecordsXLSX(ctx, *concept)
		if err != nil {
			logger.Error("export failed", "error", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*out, data, 0o644); err != nil {
			logger.Error("write workbook", "path", *out, "error", err)
			os.Exit(1)
		}
		logger.Info("workbook written", "path", *out, "bytes", len(data))
	}
}

func amountOrDash(v *decimal.Decimal) string {
	if v == nil {
		return "-"
	}
	return v.String()
}
