package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/trendscope/trendscope-bot/internal/assets"
	"github.com/trendscope/trendscope-bot/internal/models"
	"github.com/trendscope/trendscope-bot/internal/notify"
	"github.com/trendscope/trendscope-bot/internal/social"
	"github.com/trendscope/trendscope-bot/internal/sources"
)

// ErrCycleInProgress is returned when a trigger arrives while a cycle is
// already running; the caller performs no work
var ErrCycleInProgress = errors.New("publish cycle already in progress")

// ErrQuietHours is returned when a cycle is refused because the current time
// falls inside the blackout window
var ErrQuietHours = errors.New("inside quiet hours window")

// DedupStore is the persistent set of published canonical links
type DedupStore interface {
	Has(canonicalLink string) bool
	Commit(canonicalLink string, publishedAt time.Time) error
	Count() int
}

// RateLimiter gates publishes on the minimum gap since the last one
type RateLimiter interface {
	CanPublishNow(now time.Time) bool
	RecordPublish(now time.Time)
	LastPublishAt() time.Time
}

// CooldownTracker gates publishes on a platform-triggered suspension
type CooldownTracker interface {
	IsBlocked(now time.Time) bool
	TriggerBlock(now time.Time, duration time.Duration)
	BlockedUntil() time.Time
}

// Transformer converts raw item text into a complete post; total function
type Transformer interface {
	Transform(ctx context.Context, rawText string) models.TransformedPost
}

// Renderer produces a local raster asset from the transformed post fields
type Renderer interface {
	Render(headline, bodyFacts, imageURL string) (string, error)
}

// SocialPublisher runs the two-phase publish protocol against the platform
type SocialPublisher interface {
	PublishPhoto(ctx context.Context, imageURL, caption string) (string, error)
}

// Metrics holds publish cycle metrics for the /metrics endpoint
type Metrics struct {
	LastRun            time.Time `json:"last_run"`
	LastRunDuration    string    `json:"last_run_duration"`
	CyclesRun          int       `json:"cycles_run"`
	ItemsFetched       int       `json:"items_fetched"`
	ItemsDeduped       int       `json:"items_deduped"`
	ItemsPublished     int       `json:"items_published"`
	ItemsFailed        int       `json:"items_failed"`
	ItemsRateLimited   int       `json:"items_rate_limited"`
	CooldownAborts     int       `json:"cooldown_aborts"`
	QuietHoursSkips    int       `json:"quiet_hours_skips"`
	TotalPublished     int       `json:"total_published"`
	LastPublishedLinks []string  `json:"last_published_links,omitempty"`
}

// Orchestrator is the state machine driving one publish cycle: fetch,
// dedup-filter, gate checks, transform, render, upload, publish, commit.
// All mutation of the shared gate state happens from inside the
// single-flight-guarded cycle.
type Orchestrator struct {
	sources     []sources.Source
	dedup       DedupStore
	rateLimiter RateLimiter
	cooldown    CooldownTracker
	transformer Transformer
	renderer    Renderer
	uploader    assets.Uploader
	social      SocialPublisher
	quietHours  *QuietHours
	notifier    notify.Notifier

	cooldownDuration time.Duration
	itemTimeout      time.Duration

	running atomic.Bool
	now     func() time.Time

	mu      sync.RWMutex
	metrics Metrics
}

// Options carries the orchestrator's collaborators and tuning
type Options struct {
	Sources          []sources.Source
	Dedup            DedupStore
	RateLimiter      RateLimiter
	Cooldown         CooldownTracker
	Transformer      Transformer
	Renderer         Renderer
	Uploader         assets.Uploader
	Social           SocialPublisher
	QuietHours       *QuietHours
	Notifier         notify.Notifier
	CooldownDuration time.Duration
	ItemTimeout      time.Duration
}

// NewOrchestrator wires up the publish pipeline
func NewOrchestrator(opts Options) *Orchestrator {
	if opts.CooldownDuration <= 0 {
		opts.CooldownDuration = 60 * time.Minute
	}
	if opts.ItemTimeout <= 0 {
		opts.ItemTimeout = 5 * time.Minute
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Noop{}
	}

	return &Orchestrator{
		sources:          opts.Sources,
		dedup:            opts.Dedup,
		rateLimiter:      opts.RateLimiter,
		cooldown:         opts.Cooldown,
		transformer:      opts.Transformer,
		renderer:         opts.Renderer,
		uploader:         opts.Uploader,
		social:           opts.Social,
		quietHours:       opts.QuietHours,
		notifier:         opts.Notifier,
		cooldownDuration: opts.CooldownDuration,
		itemTimeout:      opts.ItemTimeout,
		now:              time.Now,
	}
}

// RunCycle executes one full publish cycle. Exactly one cycle runs at a time
// process-wide: a second trigger observes ErrCycleInProgress and performs no
// fetch. Quiet hours are checked once, at cycle start.
func (o *Orchestrator) RunCycle(ctx context.Context) error {
	if o.quietHours != nil && o.quietHours.Contains(o.now()) {
		logrus.Infof("Inside quiet hours (%s), skipping cycle", o.quietHours)
		o.withMetrics(func(m *Metrics) { m.QuietHoursSkips++ })
		return ErrQuietHours
	}

	if !o.running.CompareAndSwap(false, true) {
		logrus.Info("Publish cycle already running, skipping trigger")
		return ErrCycleInProgress
	}
	defer o.running.Store(false)

	start := o.now()
	logrus.Info("Starting publish cycle")

	candidates := sources.FetchAll(ctx, o.sources)
	logrus.Infof("Fetched %d candidates from %d sources", len(candidates), len(o.sources))

	report := o.processCandidates(ctx, candidates)

	o.withMetrics(func(m *Metrics) {
		m.LastRun = start
		m.LastRunDuration = o.now().Sub(start).String()
		m.CyclesRun++
		m.ItemsFetched += report.fetched
		m.ItemsDeduped += report.deduped
		m.ItemsPublished += report.published
		m.ItemsFailed += report.failed
		m.ItemsRateLimited += report.rateLimited
		if report.cooldownAbort {
			m.CooldownAborts++
		}
		m.TotalPublished = o.dedup.Count()
		m.LastPublishedLinks = report.publishedLinks
	})

	logrus.Infof("Publish cycle completed in %v: %d published, %d deduped, %d failed",
		o.now().Sub(start), report.published, report.deduped, report.failed)
	return nil
}

type cycleReport struct {
	fetched        int
	deduped        int
	published      int
	failed         int
	rateLimited    int
	cooldownAbort  bool
	publishedLinks []string
}

// processCandidates walks the candidate list in fetch order. Cooldown aborts
// the remaining cycle; the rate limit defers just the current item; any other
// failure is isolated to its item.
func (o *Orchestrator) processCandidates(ctx context.Context, candidates []models.CandidateItem) cycleReport {
	report := cycleReport{fetched: len(candidates)}

	for _, item := range candidates {
		if o.dedup.Has(item.CanonicalLink) {
			report.deduped++
			continue
		}

		now := o.now()
		if o.cooldown.IsBlocked(now) {
			logrus.Warnf("Cooldown active until %s, aborting remaining cycle",
				o.cooldown.BlockedUntil().Format(time.RFC3339))
			report.cooldownAbort = true
			return report
		}

		// Rechecked per item: a publish inside this loop advances the gap
		if !o.rateLimiter.CanPublishNow(now) {
			report.rateLimited++
			continue
		}

		published, blocked := o.publishItem(ctx, item)
		if blocked {
			report.cooldownAbort = true
			return report
		}
		if published {
			report.published++
			report.publishedLinks = append(report.publishedLinks, item.CanonicalLink)
		} else {
			report.failed++
		}
	}

	return report
}

// publishItem runs transform, render, upload, publish for one candidate and
// commits state only after a confirmed publish. A panic inside one item is
// contained so the cycle can continue with the rest.
func (o *Orchestrator) publishItem(ctx context.Context, item models.CandidateItem) (published, blocked bool) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("Panic while processing %s: %v", item.CanonicalLink, r)
			published, blocked = false, false
		}
	}()

	itemCtx, cancel := context.WithTimeout(ctx, o.itemTimeout)
	defer cancel()

	rawText := fmt.Sprintf("%s\n\n%s", item.Title, item.Summary)
	post := o.transformer.Transform(itemCtx, rawText)

	localPath, err := o.renderer.Render(post.Headline, post.BodyFacts, item.ImageURL)
	if err != nil {
		logrus.Errorf("Render failed for %s: %v", item.CanonicalLink, err)
		return false, false
	}

	publicURL, err := o.uploader.Upload(itemCtx, localPath)
	if err != nil {
		logrus.Errorf("Asset upload failed for %s: %v", item.CanonicalLink, err)
		return false, false
	}

	postID, err := o.social.PublishPhoto(itemCtx, publicURL, post.ShortCaption)
	if err != nil {
		if social.IsBlocked(err) {
			now := o.now()
			o.cooldown.TriggerBlock(now, o.cooldownDuration)
			o.alert("critical", "Publishing suspended",
				fmt.Sprintf("Platform action block detected, cooling down until %s: %v",
					now.Add(o.cooldownDuration).Format(time.RFC3339), err))
			return false, true
		}
		logrus.Errorf("Publish failed for %s: %v", item.CanonicalLink, err)
		return false, false
	}

	// Confirmed publish: commit strictly after, never before
	now := o.now()
	o.rateLimiter.RecordPublish(now)
	if err := o.dedup.Commit(item.CanonicalLink, now); err != nil {
		// The platform has the post but we have no record: duplicate risk on
		// the next cycle. Surface loudly, keep the cycle alive.
		logrus.Errorf("INTEGRITY: publish confirmed for %s (post %s) but dedup commit failed: %v",
			item.CanonicalLink, postID, err)
		o.alert("critical", "Dedup commit failed after publish",
			fmt.Sprintf("Link %s published as %s but not recorded; duplicate possible", item.CanonicalLink, postID))
	}

	logrus.Infof("Published %s as post %s", item.CanonicalLink, postID)
	return true, false
}

func (o *Orchestrator) alert(severity, title, message string) {
	alert := &models.Alert{
		Severity:  severity,
		Title:     title,
		Message:   message,
		CreatedAt: o.now(),
	}
	if err := o.notifier.SendAlert(alert); err != nil {
		logrus.Errorf("Failed to send operator alert: %v", err)
	}
}

func (o *Orchestrator) withMetrics(fn func(*Metrics)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(&o.metrics)
}

// IsRunning reports whether a cycle is currently in flight
func (o *Orchestrator) IsRunning() bool {
	return o.running.Load()
}

// GetMetrics returns current metrics as JSON
func (o *Orchestrator) GetMetrics() string {
	o.mu.RLock()
	defer o.mu.RUnlock()

	data, _ := json.MarshalIndent(o.metrics, "", "  ")
	return string(data)
}

// Status reports the current publish gate state for /status
func (o *Orchestrator) Status() string {
	now := o.now()
	status := map[string]interface{}{
		"running":         o.running.Load(),
		"quiet_hours":     o.quietHours != nil && o.quietHours.Contains(now),
		"cooldown_active": o.cooldown.IsBlocked(now),
		"can_publish_now": o.rateLimiter.CanPublishNow(now),
		"published_total": o.dedup.Count(),
	}
	if !o.rateLimiter.LastPublishAt().IsZero() {
		status["last_publish_at"] = o.rateLimiter.LastPublishAt().UTC().Format(time.RFC3339)
	}
	if o.cooldown.IsBlocked(now) {
		status["blocked_until"] = o.cooldown.BlockedUntil().UTC().Format(time.RFC3339)
	}

	data, _ := json.MarshalIndent(status, "", "  ")
	return string(data)
}
