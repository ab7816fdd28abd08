package services

import (
	"context"
	"errors"
	"sync"

	"github.com/akina-dev/boorud/pkg/internal/services/booru"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type DaemonPhase string

const (
	PhaseIdle     DaemonPhase = "idle"
	PhaseMetadata DaemonPhase = "metadata"
	PhaseDownload DaemonPhase = "download"
	PhaseTagging  DaemonPhase = "tagging"
)

// Daemon runs the update-then-download cycle over every configured
// source, in configured order. One cycle at a time; an overlapping
// trigger is dropped, not queued.
type Daemon struct {
	store  *Store
	tagger Tagger

	// ctx is the process lifecycle: every cycle runs under it, so
	// shutdown cancels externally triggered ones too.
	ctx context.Context

	cycleMu  sync.Mutex
	statusMu sync.RWMutex
	phase    DaemonPhase
	param    string
}

func NewDaemon(ctx context.Context, store *Store, tagger Tagger) *Daemon {
	return &Daemon{ctx: ctx, store: store, tagger: tagger, phase: PhaseIdle}
}

// Trigger starts one cycle in the background, bound to the daemon's
// lifecycle context.
func (d *Daemon) Trigger() {
	go d.RunCycle(d.ctx)
}

func (d *Daemon) Status() (DaemonPhase, string) {
	d.statusMu.RLock()
	defer d.statusMu.RUnlock()
	return d.phase, d.param
}

func (d *Daemon) setStatus(phase DaemonPhase, param string) {
	d.statusMu.Lock()
	d.phase = phase
	d.param = param
	d.statusMu.Unlock()
}

// RunCycle processes every source: metadata update first, then the
// download queue. Per-source failures are logged and do not stop the
// cycle; only cancellation does.
func (d *Daemon) RunCycle(ctx context.Context) {
	if !d.cycleMu.TryLock() {
		log.Debug().Msg("A sync cycle is already running, skipping this trigger.")
		return
	}
	defer d.cycleMu.Unlock()
	defer d.setStatus(PhaseIdle, "")

	for _, src := range Sources() {
		if ctx.Err() != nil {
			return
		}

		log.Info().Str("id", src.ID).Str("host", src.Host).Msg("Updating source metadata...")
		d.setStatus(PhaseMetadata, src.ID)
		scoped, err := d.store.WithBoard(src.Host, src.ID)
		if err != nil {
			log.Error().Err(err).Str("id", src.ID).Msg("Failed to resolve board for source...")
			continue
		}
		if err := UpdateSource(ctx, src, scoped, SyncOverrides{}); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Str("id", src.ID).Msg("Failed to update source, continuing with the next one...")
		}

		if ctx.Err() != nil {
			return
		}

		log.Info().Str("id", src.ID).Msg("Draining download queue...")
		d.setStatus(PhaseDownload, src.ID)
		dl := NewDownloaderFromSettings()
		stats, err := dl.Run(ctx, scoped)
		if err != nil && ctx.Err() == nil {
			log.Error().Err(err).Str("id", src.ID).Msg("Download queue failed...")
		}
		log.Info().
			Int("downloaded", stats.Downloaded).
			Int("skipped", stats.Skipped).
			Int("failed", stats.Failed).
			Msg("Download queue drained.")

		if d.tagger != nil && viper.GetBool("tagger.enabled") {
			d.setStatus(PhaseTagging, src.ID)
			if err := UpdateDirectoryTags(ctx, scoped, dl, d.tagger); err != nil && ctx.Err() == nil {
				log.Warn().Err(err).Str("id", src.ID).Msg("Semantic tagging pass failed...")
			}
		}
	}
}

// SyncOverrides carries one-shot extras from the command line on top
// of a source's configured search.
type SyncOverrides struct {
	Tags        []string
	Blacklist   []string
	Whitelist   []string
	StartCursor int
}

// UpdateSource syncs one source's metadata: every configured search
// tag in turn, plus its pool listing when enabled.
func UpdateSource(ctx context.Context, src SourceConfig, scoped *Store, extra SyncOverrides) error {
	tags, query, err := src.BuildQuery(extra.Tags, extra.Blacklist, extra.Whitelist)
	if err != nil {
		return err
	}

	client, err := src.NewClient(query.FilterFunc())
	if err != nil {
		return err
	}

	for _, tag := range tags {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		syncer := &Syncer{
			Client:      client,
			Store:       scoped,
			Mode:        src.Mode(),
			Tags:        tag,
			Limit:       src.BatchLimit(),
			StartCursor: extra.StartCursor,
		}
		result, err := syncer.Run(ctx)
		switch {
		case errors.Is(err, ErrNoBaseline):
			log.Error().Str("tag", tag).Msg("No baseline available for tag, skipping it this cycle...")
		case err != nil:
			log.Warn().Err(err).Str("tag", tag).Msg("Sync loop stopped on a failure...")
		default:
			log.Debug().
				Str("tag", tag).
				Str("status", string(result.Status)).
				Int("inserted", result.Stats.Inserted).
				Int("updated", result.Stats.Updated).
				Msg("Sync loop finished.")
		}
	}

	if src.Pools {
		if lister, ok := client.(booru.PoolLister); ok {
			if err := SyncPools(ctx, lister, scoped); err != nil && ctx.Err() == nil {
				log.Warn().Err(err).Msg("Pool sync failed...")
			}
		} else {
			log.Warn().Str("id", src.ID).Msg("Source dialect has no pool listing, ignoring pools setting.")
		}
	}

	return nil
}

// NewDownloaderFromSettings builds a Downloader from the `download`
// settings section.
func NewDownloaderFromSettings() *Downloader {
	base := viper.GetString("download.path")
	if base == "" {
		base = "downloads"
	}
	return &Downloader{
		Base:        base,
		FastCheck:   viper.GetBool("download.fast_check"),
		KeepPartial: viper.GetBool("download.keep_partial"),
	}
}
