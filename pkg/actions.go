package main

import (
	"fmt"
	"path/filepath"

	"github.com/akina-dev/boorud/pkg/internal/http"
	"github.com/akina-dev/boorud/pkg/internal/http/api"
	"github.com/akina-dev/boorud/pkg/internal/services"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	flagSource    string
	flagTags      []string
	flagBlacklist []string
	flagWhitelist []string
	flagBeforeID  int
)

func init() {
	for _, cmd := range []*cobra.Command{syncCmd, downloadCmd, cleanupCmd} {
		cmd.Flags().StringVarP(&flagSource, "source", "s", "", "only process the source with this id")
	}
	syncCmd.Flags().StringSliceVarP(&flagTags, "tags", "t", nil, "extra tags to use in search")
	syncCmd.Flags().StringSliceVarP(&flagBlacklist, "blacklist", "b", nil, "extra tags to skip in search")
	syncCmd.Flags().StringSliceVarP(&flagWhitelist, "whitelist", "w", nil, "extra tags to always keep in search")
	syncCmd.Flags().IntVarP(&flagBeforeID, "before-id", "i", 0, "start fetching below this post id")
	cleanupCmd.Flags().StringSliceVarP(&flagBlacklist, "blacklist", "b", nil, "tags whose posts are removed")
	cleanupCmd.Flags().StringSliceVarP(&flagWhitelist, "whitelist", "w", nil, "tags that keep a post despite the blacklist")
}

func selectedSources() []services.SourceConfig {
	if flagSource == "" {
		return services.Sources()
	}
	if src, ok := services.SourceByID(flagSource); ok {
		return []services.SourceConfig{src}
	}
	log.Error().Str("id", flagSource).Msg("No source with this id is configured.")
	return nil
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the full update-then-download cycle on a timer",
	Run: func(cmd *cobra.Command, args []string) {
		store := boot()
		ctx := signalContext()

		daemon := services.NewDaemon(ctx, store, services.LogTagger{})

		if viper.GetBool("http.enabled") {
			api.Store = store
			api.Daemon = daemon
			go http.Listen(http.NewServer())
		}

		interval := viper.GetInt("general.fetch_interval")
		if interval <= 0 {
			interval = 3600
		}

		// Configure timed tasks
		quartz := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(&log.Logger)))
		quartz.AddFunc(fmt.Sprintf("@every %ds", interval), func() { daemon.RunCycle(ctx) })
		quartz.AddFunc("@every 60m", services.DoAutoDatabaseCleanup)
		quartz.Start()

		daemon.Trigger()

		<-ctx.Done()
		quartz.Stop()
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Update post metadata for the configured sources once",
	Run: func(cmd *cobra.Command, args []string) {
		store := boot()
		ctx := signalContext()

		for _, src := range selectedSources() {
			if ctx.Err() != nil {
				return
			}
			scoped, err := store.WithBoard(src.Host, src.ID)
			if err != nil {
				log.Error().Err(err).Str("id", src.ID).Msg("Failed to resolve board for source...")
				continue
			}
			err = services.UpdateSource(ctx, src, scoped, services.SyncOverrides{
				Tags:        flagTags,
				Blacklist:   flagBlacklist,
				Whitelist:   flagWhitelist,
				StartCursor: flagBeforeID,
			})
			if err != nil {
				log.Error().Err(err).Str("id", src.ID).Msg("Failed to update source...")
			}
		}
	},
}

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Drain the download queue for the configured sources",
	Run: func(cmd *cobra.Command, args []string) {
		store := boot()
		ctx := signalContext()

		for _, src := range selectedSources() {
			if ctx.Err() != nil {
				return
			}
			scoped, err := store.WithBoard(src.Host, src.ID)
			if err != nil {
				log.Error().Err(err).Str("id", src.ID).Msg("Failed to resolve board for source...")
				continue
			}

			dl := services.NewDownloaderFromSettings()
			dl.Progress = consoleProgress
			stats, err := dl.Run(ctx, scoped)
			if err != nil && ctx.Err() == nil {
				log.Error().Err(err).Str("id", src.ID).Msg("Download queue failed...")
			}
			log.Info().
				Str("id", src.ID).
				Int("downloaded", stats.Downloaded).
				Int("skipped", stats.Skipped).
				Int("failed", stats.Failed).
				Msg("Download queue drained.")
		}
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove blacklisted posts and prune orphaned images and tags",
	Run: func(cmd *cobra.Command, args []string) {
		store := boot()
		ctx := signalContext()

		blacklist := flagBlacklist
		whitelist := flagWhitelist
		if len(blacklist) == 0 {
			// Fall back to the union of every source's configured lists.
			blacklist = lo.Uniq(lo.FlatMap(selectedSources(), func(src services.SourceConfig, _ int) []string {
				return src.Blacklist
			}))
			whitelist = lo.Uniq(lo.FlatMap(selectedSources(), func(src services.SourceConfig, _ int) []string {
				return src.Whitelist
			}))
		}
		if len(blacklist) == 0 {
			log.Warn().Msg("Nothing to clean up: no blacklist given.")
			return
		}

		stats, err := store.AllBoards().DeleteByTags(ctx, blacklist, whitelist)
		if err != nil {
			log.Error().Err(err).Msg("An error occurred when cleaning up the database.")
			return
		}
		log.Info().
			Int64("posts", stats.Posts).
			Int64("images", stats.Images).
			Int64("tags", stats.Tags).
			Msg("Cleanup finished.")
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only query API without running the daemon",
	Run: func(cmd *cobra.Command, args []string) {
		store := boot()
		ctx := signalContext()

		api.Store = store
		api.Daemon = services.NewDaemon(ctx, store, services.LogTagger{})

		http.Listen(http.NewServer())
	},
}

func consoleProgress(path string, current, total int64) {
	name := filepath.Base(path)
	switch {
	case current < 0:
		fmt.Printf("%s: [ABORTED]      \n", name)
	case total > 0 && current >= total:
		fmt.Printf("%s: 100%% [OK]           \n", name)
	case total > 0:
		fmt.Printf("%s: %d%% [DOWNLOADING]  \r", name, current*100/total)
	default:
		fmt.Printf("%s: %d bytes [DOWNLOADING]  \r", name, current)
	}
}
