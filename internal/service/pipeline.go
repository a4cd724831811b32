// Package service runs the scrape-normalise-correlate-load pipeline.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/voyagen/epgvault/internal/cache"
	"github.com/voyagen/epgvault/internal/dates"
	"github.com/voyagen/epgvault/internal/logctx"
	"github.com/voyagen/epgvault/internal/metrics"
	"github.com/voyagen/epgvault/internal/models"
	"github.com/voyagen/epgvault/internal/provider"
	"github.com/voyagen/epgvault/internal/store"
)

var (
	// ErrDuplicateChannel is returned when two scraped channels share an ID.
	// The store is left untouched.
	ErrDuplicateChannel = errors.New("duplicate channel id")
	// ErrEmptyRun is returned when no provider produced a channel. The store
	// is left untouched.
	ErrEmptyRun = errors.New("no channels scraped")
	// ErrRunInProgress is returned when another run holds the lock.
	ErrRunInProgress = errors.New("pipeline run already in progress")
)

// Scraper is one configured provider.
type Scraper interface {
	Scrape(ctx context.Context) (provider.Result, error)
}

// Locker serialises runs. TryAcquire returns cache.ErrLocked when held.
type Locker interface {
	TryAcquire(ctx context.Context) (release func(), err error)
}

// Options tunes a Pipeline.
type Options struct {
	// SampleSize is the number of leading channels inspected for the date range.
	SampleSize int
	// StrictAuth aborts the run when any provider fails to authenticate.
	StrictAuth bool
}

// ProviderReport summarises one provider within a run.
type ProviderReport struct {
	Provider   string          `json:"provider"`
	Counts     provider.Counts `json:"counts"`
	Failures   []string        `json:"failures,omitempty"`
	AuthFailed bool            `json:"auth_failed,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// Report is the outcome of a run.
type Report struct {
	RunID     string           `json:"run_id"`
	Providers []ProviderReport `json:"providers"`
	Channels  int              `json:"channels"`
	Shows     int              `json:"shows"`
	Dates     int              `json:"dates"`
	Elapsed   time.Duration    `json:"elapsed"`
}

// Pipeline scrapes every provider in order, derives the date dimension and
// replaces the store's channel and date collections.
type Pipeline struct {
	store     store.Store
	providers []Scraper
	lock      Locker
	metrics   *metrics.Metrics
	opts      Options
	now       func() time.Time
}

// NewPipeline returns a Pipeline. A nil lock defaults to an in-process lock;
// m may be nil.
func NewPipeline(st store.Store, providers []Scraper, lock Locker, m *metrics.Metrics, opts Options) *Pipeline {
	if lock == nil {
		lock = &LocalLock{}
	}
	return &Pipeline{
		store:     st,
		providers: providers,
		lock:      lock,
		metrics:   m,
		opts:      opts,
		now:       time.Now,
	}
}

// Run performs one full replace. The returned Report is non-nil whenever the
// lock was acquired.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	release, err := p.lock.TryAcquire(ctx)
	if errors.Is(err, cache.ErrLocked) {
		p.finished(metrics.ResultInProgress, 0)
		return nil, ErrRunInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	defer release()

	started := p.now()
	rep := &Report{RunID: uuid.NewString()}
	ctx = logctx.With(ctx, slog.String("run_id", rep.RunID))
	log := logctx.From(ctx)
	log.Info("run_start", slog.Int("providers", len(p.providers)))

	err = p.run(ctx, rep, started)
	rep.Elapsed = p.now().Sub(started)

	switch {
	case err == nil:
		p.finished(metrics.ResultCompleted, rep.Elapsed)
		log.Info("run_done",
			slog.Int("channels", rep.Channels),
			slog.Int("shows", rep.Shows),
			slog.Int("dates", rep.Dates),
			slog.Duration("elapsed", rep.Elapsed))
	case errors.Is(err, ErrEmptyRun):
		p.finished(metrics.ResultEmpty, rep.Elapsed)
		log.Warn("run_empty", slog.Duration("elapsed", rep.Elapsed))
	default:
		p.finished(metrics.ResultFailed, rep.Elapsed)
		log.Error("run_failed", slog.Any("err", err), slog.Duration("elapsed", rep.Elapsed))
	}
	return rep, err
}

func (p *Pipeline) run(ctx context.Context, rep *Report, started time.Time) error {
	log := logctx.From(ctx)

	var channels []models.Channel
	for _, src := range p.providers {
		res, err := src.Scrape(ctx)
		pr := ProviderReport{Provider: res.Provider, Counts: res.Counts}
		for _, f := range res.Failures {
			pr.Failures = append(pr.Failures, f.Error())
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			pr.Error = err.Error()
			if errors.Is(err, provider.ErrAuth) {
				pr.AuthFailed = true
				log.Error("auth_failed", slog.String("provider", res.Provider), slog.Any("err", err))
				if p.metrics != nil {
					p.metrics.AuthFailed(res.Provider)
				}
				rep.Providers = append(rep.Providers, pr)
				if p.opts.StrictAuth {
					return fmt.Errorf("provider %s: %w", res.Provider, err)
				}
				continue
			}
			log.Error("provider_failed", slog.String("provider", res.Provider), slog.Any("err", err))
			rep.Providers = append(rep.Providers, pr)
			continue
		}
		if p.metrics != nil {
			p.metrics.ObserveProvider(res)
		}
		if len(res.Failures) > 0 {
			log.Warn("provider_degraded", slog.String("provider", res.Provider),
				slog.Int("failures", len(res.Failures)), slog.Any("first", res.Failures[0]))
		}
		log.Info("provider_done", slog.String("provider", res.Provider),
			slog.Int("channels", len(res.Channels)), slog.Int("shows", res.ShowCount()))
		rep.Providers = append(rep.Providers, pr)
		rep.Shows += res.ShowCount()
		channels = append(channels, res.Channels...)
	}
	if len(channels) == 0 {
		return ErrEmptyRun
	}
	if err := uniqueIDs(channels); err != nil {
		return err
	}

	days, err := dates.Build(channels, p.opts.SampleSize)
	if err != nil {
		return fmt.Errorf("build dates: %w", err)
	}

	run := models.Run{ID: rep.RunID, StartedAt: started, Phase: models.RunPhaseStarted}
	if err := p.store.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("SaveRun: %w", err)
	}

	n, err := p.replaceChannels(ctx, channels)
	if err != nil {
		return p.fail(ctx, run, err)
	}
	run.Phase, run.Channels = models.RunPhaseChannels, n
	rep.Channels = n
	if err := p.store.SaveRun(ctx, run); err != nil {
		return p.fail(ctx, run, fmt.Errorf("SaveRun: %w", err))
	}

	n, err = p.replaceDates(ctx, days)
	if err != nil {
		return p.fail(ctx, run, err)
	}
	finished := p.now()
	run.Phase, run.Dates, run.FinishedAt = models.RunPhaseCompleted, n, &finished
	rep.Dates = n
	if err := p.store.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("SaveRun: %w", err)
	}
	return nil
}

// uniqueIDs rejects a channel set in which any ID repeats, naming every
// repeated ID.
func uniqueIDs(channels []models.Channel) error {
	seen := make(map[string]int, len(channels))
	var errs []error
	for _, ch := range channels {
		seen[ch.ID]++
		if seen[ch.ID] == 2 {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateChannel, ch.ID))
		}
	}
	return errors.Join(errs...)
}

func (p *Pipeline) replaceChannels(ctx context.Context, channels []models.Channel) (int, error) {
	if err := p.store.Drop(ctx, store.KindChannels); err != nil {
		return 0, fmt.Errorf("drop channels: %w", err)
	}
	n, err := p.store.InsertChannels(ctx, channels)
	if err != nil {
		return 0, fmt.Errorf("insert channels: %w", err)
	}
	p.written(ctx, store.KindChannels, n)
	return n, nil
}

func (p *Pipeline) replaceDates(ctx context.Context, days []models.Date) (int, error) {
	if err := p.store.Drop(ctx, store.KindDates); err != nil {
		return 0, fmt.Errorf("drop dates: %w", err)
	}
	n, err := p.store.InsertDates(ctx, days)
	if err != nil {
		return 0, fmt.Errorf("insert dates: %w", err)
	}
	p.written(ctx, store.KindDates, n)
	return n, nil
}

func (p *Pipeline) written(ctx context.Context, kind store.Kind, n int) {
	logctx.From(ctx).Info("stage_done", slog.String("stage", "save"), slog.String("kind", string(kind)), slog.Int("count", n))
	if p.metrics != nil {
		p.metrics.Written(string(kind), n)
	}
}

// fail records cause on the run watermark and returns it.
func (p *Pipeline) fail(ctx context.Context, run models.Run, cause error) error {
	finished := p.now()
	run.Phase, run.Error, run.FinishedAt = models.RunPhaseFailed, cause.Error(), &finished
	if err := p.store.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		logctx.From(ctx).Error("run_watermark_failed", slog.Any("err", err))
	}
	return cause
}

func (p *Pipeline) finished(result string, elapsed time.Duration) {
	if p.metrics != nil {
		p.metrics.RunFinished(result, elapsed)
	}
}
