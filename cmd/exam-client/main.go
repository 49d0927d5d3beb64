package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"exam-session/internal/auth"
	"exam-session/internal/cli"
	"exam-session/internal/config"
	"exam-session/internal/drafts"
	"exam-session/internal/examclient"
	"exam-session/internal/logsvc"
)

const draftRetention = 30 * 24 * time.Hour

var version = "dev"

func main() {
	envDir := flag.String("env-dir", ".", "directory holding an optional .env file")
	server := flag.String("server", "", "exam service base URL (EXAM_SERVER_URL)")
	token := flag.String("token", "", "bearer token (EXAM_TOKEN)")
	timeout := flag.Duration("timeout", 0, "HTTP timeout (EXAM_HTTP_TIMEOUT)")
	pageSize := flag.Int("page-size", 0, "questions per page (EXAM_PAGE_SIZE)")
	draftsPath := flag.String("drafts", "", "SQLite file for unsent answers, \"off\" disables (EXAM_DRAFTS_PATH)")
	noColor := flag.Bool("no-color", false, "disable colored output (EXAM_NO_COLOR)")
	debug := flag.Bool("debug", false, "verbose logging (EXAM_DEBUG)")
	flag.Parse()

	cfg, err := config.Load(*envDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "server":
			cfg.ServerURL = *server
		case "token":
			cfg.Token = *token
		case "timeout":
			cfg.HTTPTimeout = *timeout
		case "page-size":
			cfg.PageSize = *pageSize
		case "drafts":
			cfg.DraftsPath = *draftsPath
		case "no-color":
			cfg.NoColor = *noColor
		case "debug":
			cfg.Debug = *debug
		}
	})
	if cfg.DraftsPath == "off" {
		cfg.DraftsPath = ""
	}

	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	authCtx, err := auth.Parse(cfg.Token)
	if err != nil {
		return err
	}
	if authCtx.Expired(time.Now()) {
		return fmt.Errorf("token for %s has expired", authCtx.Username())
	}

	var logger logsvc.Logger = logsvc.NewConsoleLogger(log.New(os.Stderr, "", log.LstdFlags), cfg.Debug)
	if cfg.RollbarToken != "" {
		reporter := logsvc.NewRollbarLogger(logger, logsvc.RollbarOptions{
			Token:       cfg.RollbarToken,
			Environment: cfg.Env,
			CodeVersion: version,
			PersonID:    authCtx.Subject(),
			Username:    authCtx.Username(),
		})
		defer reporter.Close()
		logger = reporter
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := examclient.New(cfg.ServerURL, &http.Client{Timeout: cfg.HTTPTimeout}, authCtx)

	cliCfg := cli.Config{
		Username:  authCtx.Username(),
		ServerURL: cfg.ServerURL,
		PageSize:  cfg.PageSize,
		NoColor:   cfg.NoColor,
		Logger:    logger,
	}
	if cfg.DraftsPath != "" {
		store, err := drafts.NewSQLiteStore(cfg.DraftsPath)
		if err != nil {
			return err
		}
		defer store.Close()
		if removed, err := store.Prune(ctx, time.Now().Add(-draftRetention)); err != nil {
			logger.Warn("could not prune old drafts", err)
		} else if removed > 0 {
			logger.Debug("pruned old drafts", map[string]interface{}{"rows": removed})
		}
		cliCfg.Drafts = store
	}

	if err := cli.Run(ctx, os.Stdin, os.Stdout, client, cliCfg); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
