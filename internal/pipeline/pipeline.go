// Package pipeline wires extraction, card building, routing, and
// reconciliation into one synchronization run over the vault.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/veleth/ansuz/internal/anki"
	"github.com/veleth/ansuz/internal/cards"
	"github.com/veleth/ansuz/internal/enhance"
	"github.com/veleth/ansuz/internal/extract"
	"github.com/veleth/ansuz/internal/history"
	"github.com/veleth/ansuz/internal/models"
	"github.com/veleth/ansuz/internal/reconcile"
	"github.com/veleth/ansuz/internal/source"
	"github.com/veleth/ansuz/internal/storage"
)

// Notifier receives pipeline lifecycle events. It may be nil.
type Notifier func(event string, data any)

// Options groups the run-scoped settings. Everything is threaded
// explicitly so two pipelines with different vaults or policies can run
// side by side without cross-talk.
type Options struct {
	Folders      []string // vault folder prefixes to scan
	FallbackDeck string   // deck for unattributed cards; empty excludes them
	Parallelism  int      // bounded degree of bucket parallelism, min 1
	OnlyChanged  bool     // skip files whose checksum matches the ledger
}

// Pipeline runs the full note-to-deck synchronization.
type Pipeline struct {
	store     storage.Provider
	remote    anki.Store
	rec       *reconcile.Reconciler
	extractor *extract.Extractor
	enhancer  enhance.Enhancer // nil disables enhancement
	ledger    *history.DB      // nil disables run recording
	notify    Notifier
	logger    *slog.Logger
	opts      Options
}

// New assembles a pipeline. rec and extractor are required; enhancer,
// ledger, and notify are optional.
func New(store storage.Provider, remote anki.Store, rec *reconcile.Reconciler,
	extractor *extract.Extractor, enhancer enhance.Enhancer, ledger *history.DB,
	notify Notifier, logger *slog.Logger, opts Options) *Pipeline {
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	return &Pipeline{
		store:     store,
		remote:    remote,
		rec:       rec,
		extractor: extractor,
		enhancer:  enhancer,
		ledger:    ledger,
		notify:    notify,
		logger:    logger,
		opts:      opts,
	}
}

// Run executes one synchronization pass. Only the initial connectivity
// probe may abort the run; everything after it lands in the returned
// report, partial failures included.
func (p *Pipeline) Run(ctx context.Context) (reconcile.Report, error) {
	return p.run(ctx, p.opts.OnlyChanged)
}

// run is the Run body with the changed-files filter threaded as a
// parameter, so the watcher can force it without mutating shared options.
func (p *Pipeline) run(ctx context.Context, onlyChanged bool) (reconcile.Report, error) {
	started := time.Now()

	if _, err := p.remote.Version(ctx); err != nil {
		return reconcile.Report{}, fmt.Errorf("pipeline: connectivity probe: %w", err)
	}
	p.event("run_started", map[string]any{"folders": p.opts.Folders})

	metas := p.collectFiles()
	allCards, synced := p.extractAll(ctx, metas, onlyChanged)

	routed := cards.Route(allCards, p.extractor.Triggers(), p.opts.FallbackDeck, p.logger)
	if n := len(routed.Unattributed); n > 0 {
		p.logger.Info("pipeline: cards excluded from sync", slog.Int("unattributed", n))
	}

	report := p.reconcileBuckets(ctx, routed.Buckets)

	p.recordRun(started, report, synced)
	p.event("run_finished", report)
	return report, nil
}

// ExtractPreview produces cards from a single document without touching
// the remote store. Serves the API preview endpoint and the MCP tool.
func (p *Pipeline) ExtractPreview(doc source.Source) []models.Card {
	return cards.Build(doc, p.extractor.Extract(doc.Text()))
}

// collectFiles lists every configured folder, deduplicating paths that
// fall under more than one prefix.
func (p *Pipeline) collectFiles() []storage.FileMetadata {
	seen := make(map[string]struct{})
	var out []storage.FileMetadata
	for _, folder := range p.opts.Folders {
		metas, err := p.store.List(folder)
		if err != nil {
			p.logger.Warn("pipeline: list failed",
				slog.String("folder", folder), slog.String("error", err.Error()))
			continue
		}
		for _, m := range metas {
			if _, dup := seen[m.Path]; dup {
				continue
			}
			seen[m.Path] = struct{}{}
			out = append(out, m)
		}
	}
	return out
}

// extractAll reads each file, extracts matches, builds cards, and applies
// best-effort enhancement per document batch. A file that cannot be read
// is logged and skipped; it never aborts the run. Returns the cards plus
// the checksums of files that contributed to this run.
func (p *Pipeline) extractAll(ctx context.Context, metas []storage.FileMetadata, onlyChanged bool) ([]models.Card, map[string]string) {
	var known map[string]string
	if onlyChanged && p.ledger != nil {
		cs, err := p.ledger.AllChecksums()
		if err != nil {
			p.logger.Warn("pipeline: ledger checksums unavailable", slog.String("error", err.Error()))
		} else {
			known = cs
		}
	}

	var all []models.Card
	synced := make(map[string]string, len(metas))
	for _, m := range metas {
		if known != nil && known[m.Path] == m.Checksum {
			continue
		}
		doc, err := source.NewFileSource(p.store, m.Path)
		if err != nil {
			p.logger.Warn("pipeline: read failed",
				slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		built := cards.Build(doc, p.extractor.Extract(doc.Text()))
		if len(built) == 0 {
			synced[m.Path] = m.Checksum
			continue
		}
		built = enhance.Apply(ctx, p.enhancer, built, doc.Text(), p.logger)
		p.logger.Debug("pipeline: extracted",
			slog.String("path", m.Path), slog.Int("cards", len(built)))
		all = append(all, built...)
		synced[m.Path] = m.Checksum
	}
	return all, synced
}

// reconcileBuckets processes buckets with bounded parallelism. Each
// bucket writes only its local report; the merge afterward runs in
// stable bucket-name order so the error list is reproducible.
func (p *Pipeline) reconcileBuckets(ctx context.Context, buckets map[string][]models.Card) reconcile.Report {
	names := make([]string, 0, len(buckets))
	for name := range buckets {
		names = append(names, name)
	}
	sort.Strings(names)

	locals := make([]reconcile.Report, len(names))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Parallelism)
	for i, name := range names {
		g.Go(func() error {
			locals[i] = p.rec.SyncBucket(gCtx, name, buckets[name])
			p.event("bucket_done", map[string]any{"deck": name, "report": locals[i]})
			return nil
		})
	}
	_ = g.Wait() // bucket goroutines never return errors; failures land in reports

	var report reconcile.Report
	for _, l := range locals {
		report.Merge(l)
	}
	return report
}

func (p *Pipeline) recordRun(started time.Time, report reconcile.Report, synced map[string]string) {
	if p.ledger == nil {
		return
	}
	if _, err := p.ledger.RecordRun(started, time.Now(), report); err != nil {
		p.logger.Warn("pipeline: record run failed", slog.String("error", err.Error()))
	}
	for path, cs := range synced {
		if err := p.ledger.SetFileChecksum(path, cs); err != nil {
			p.logger.Warn("pipeline: checksum update failed",
				slog.String("path", path), slog.String("error", err.Error()))
		}
	}
}

func (p *Pipeline) event(name string, data any) {
	if p.notify != nil {
		p.notify(name, data)
	}
}
