// Command reconcile runs one reconciliation step for a realm and exits.
//
//	reconcile [-config path] [-realm id] sync
//	reconcile [-config path] [-realm id] ghosts
//	reconcile [-config path] [-realm id] [-out file.xlsx] export
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/garyjia/ai-bookkeeper/internal/config"
	"github.com/garyjia/ai-bookkeeper/internal/container"
	"github.com/garyjia/ai-bookkeeper/internal/infrastructure/export"
	"github.com/garyjia/ai-bookkeeper/pkg/utils"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config file")
	realm := flag.String("realm", "", "QuickBooks realm id (defaults to quickbooks.realm_id)")
	out := flag.String("out", "", "output file for export (defaults to ghosts-<realm>-<date>.xlsx)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] sync|ghosts|export\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	command := flag.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: "stderr",
		Format:     cfg.Logger.Format,
		Component:  "reconcile",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	realmID := *realm
	if realmID == "" {
		realmID = cfg.QuickBooks.RealmID
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, command, realmID, *out); err != nil {
		logger.Error("Reconcile command failed", zap.String("command", command), zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, command, realmID, out string) error {
	switch command {
	case "sync", "ghosts", "export":
	default:
		return fmt.Errorf("unknown command %q", command)
	}

	c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
	if err != nil {
		return err
	}
	if err := c.StartWithoutWorkers(ctx); err != nil {
		return err
	}
	defer c.Close()

	reconciliation := c.Services().Reconciliation

	switch command {
	case "sync":
		result, err := reconciliation.SyncBookTransactions(ctx, realmID)
		if err != nil {
			return err
		}
		return printJSON(result)

	case "ghosts":
		ghosts, err := reconciliation.DetectGhosts(ctx, realmID)
		if err != nil {
			return err
		}
		return printJSON(ghosts)

	default:
		ghosts, err := reconciliation.DetectGhosts(ctx, realmID)
		if err != nil {
			return err
		}
		now := time.Now()
		if out == "" {
			out = fmt.Sprintf("ghosts-%s-%s.xlsx", realmID, now.Format("2006-01-02"))
		}
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", out, err)
		}
		if err := export.WriteGhostReport(f, realmID, ghosts, now); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to write %s: %w", out, err)
		}
		logger.Info("Ghost report written", zap.String("path", out), zap.Int("ghosts", len(ghosts)))
		return nil
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
