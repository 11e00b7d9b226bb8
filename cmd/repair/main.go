// Command repair fills in metadata missing from raw chat exports (ids,
// last activity, message times, customer names) and writes the repaired day
// files to a separate directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	appconfig "github.com/wolfman30/chatrisk/internal/config"
	"github.com/wolfman30/chatrisk/internal/daystore"
	"github.com/wolfman30/chatrisk/internal/transcript"
	"github.com/wolfman30/chatrisk/pkg/logging"
)

type dayBackend interface {
	Read(ctx context.Context, date string) ([]byte, error)
	Write(ctx context.Context, date string, data []byte) error
	List(ctx context.Context) ([]string, error)
}

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	src := flag.String("src", cfg.SourceDir, "directory of raw YYYY-MM-DD.json exports")
	out := flag.String("out", "", "output directory (default <src>/cleaned_data)")
	flag.Parse()
	if *out == "" {
		*out = filepath.Join(*src, "cleaned_data")
	}

	logger := logging.New(cfg.LogLevel)
	if err := os.MkdirAll(*out, 0o755); err != nil {
		logger.Error("failed to create output directory", "dir", *out, "error", err)
		os.Exit(1)
	}

	repaired, failed, err := repairDays(context.Background(), daystore.NewFSBackend(*src), daystore.NewFSBackend(*out), logger)
	if err != nil {
		logger.Error("repair failed", "error", err)
		os.Exit(1)
	}
	fmt.Printf("repaired %d day files (%d failed) into %s\n", repaired, failed, *out)
}

// repairDays repairs every day src lists. A day that cannot be decoded is
// logged and counted; the rest still run.
func repairDays(ctx context.Context, src, dst dayBackend, logger *logging.Logger) (repaired, failed int, err error) {
	dates, err := src.List(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, date := range dates {
		if err := repairDay(ctx, src, dst, date); err != nil {
			logger.Warn("day not repaired", "date", date, "error", err)
			failed++
			continue
		}
		logger.Info("day repaired", "date", date)
		repaired++
	}
	return repaired, failed, nil
}

func repairDay(ctx context.Context, src, dst dayBackend, date string) error {
	data, err := src.Read(ctx, date)
	if err != nil {
		return err
	}
	convs, err := transcript.DecodeDay(data)
	if err != nil {
		return err
	}
	for i := range convs {
		transcript.Repair(&convs[i])
	}
	out, err := transcript.EncodeDay(convs)
	if err != nil {
		return err
	}
	return dst.Write(ctx, date, out)
}
