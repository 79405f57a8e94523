package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/raykavin/launchwatch"
	"github.com/raykavin/launchwatch/config"
	"github.com/raykavin/launchwatch/exchange/bybit"
	"github.com/raykavin/launchwatch/feed"
	logzerolog "github.com/raykavin/launchwatch/logger/zerolog"
	"github.com/raykavin/launchwatch/storage"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "launchwatch",
		Short:   "Bybit Launchpool announcement watcher and trade trigger",
		Version: "1.0.0",
	}

	rootCmd.AddCommand(buildRunCmd())
	rootCmd.AddCommand(buildCheckCmd())
	rootCmd.AddCommand(buildHashCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Watch announcements and trade new listings",
		RunE:  runBot,
	}
}

func buildCheckCmd() *cobra.Command {
	var markSeen bool

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Fetch the announcement feed once and print it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd.Context(), markSeen)
		},
	}
	checkCmd.Flags().BoolVarP(&markSeen, "mark-seen", "m", false,
		"Record the fetched announcements so a later run does not re-notify them")

	return checkCmd
}

func buildHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <password>",
		Short: "Generate a bcrypt hash for TELEGRAM_PASSWORD",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			fmt.Println(string(hash))
			return nil
		},
	}
}

func runBot(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zl, err := logzerolog.New(cfg.ZerologLevel(), "2006-01-02 15:04:05", true, false)
	if err != nil {
		return err
	}
	log := logzerolog.NewAdapter(zl)

	exch := bybit.NewExchange(bybit.Config{
		APIKey:    cfg.Bybit.APIKey,
		APISecret: cfg.Bybit.APISecret,
		Testnet:   cfg.Bybit.Testnet,
	}, log)

	db, err := storage.NewFromFile(cfg.StoragePath)
	if err != nil {
		return err
	}
	defer db.Close()

	trading, err := storage.NewSettingsStoreWithDefaults(db, cfg.Trading)
	if err != nil {
		return err
	}

	bot, err := launchwatch.NewBot(ctx, cfg.Settings(), exch,
		launchwatch.WithLogger(log),
		launchwatch.WithStorage(db),
		launchwatch.WithSeenStore(db),
		launchwatch.WithSettingsStore(trading),
	)
	if err != nil {
		return err
	}

	if err := bot.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}

	return nil
}

// runCheck fetches the feed once without touching the exchange, useful
// to verify connectivity and to warm the seen store before going live.
// No credentials are needed, the announcement feed is public.
func runCheck(ctx context.Context, markSeen bool) error {
	source := feed.NewBybitSource(feed.BybitSourceConfig{})
	announcements, err := source.Announcements(ctx)
	if err != nil {
		return err
	}

	if len(announcements) == 0 {
		fmt.Println("no announcements found")
		return nil
	}

	for _, announcement := range announcements {
		fmt.Printf("%s  %s\n    %s\n",
			announcement.PublishedAt.Format("2006-01-02 15:04"),
			announcement.Title,
			announcement.URL,
		)
	}

	if markSeen {
		path := os.Getenv("STORAGE_PATH")
		if path == "" {
			path = config.DefaultStoragePath
		}

		db, err := storage.NewFromFile(path)
		if err != nil {
			return err
		}
		defer db.Close()

		ids := make([]string, 0, len(announcements))
		for _, announcement := range announcements {
			ids = append(ids, announcement.ID)
		}
		if err := db.MarkSeen(ctx, ids...); err != nil {
			return err
		}
		fmt.Printf("marked %d announcements as seen\n", len(ids))
	}

	return nil
}
