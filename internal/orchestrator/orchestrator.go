// Package orchestrator drives the monitoring loop: collect due tasks,
// group them into fetch units, run the extraction ladder per group, and
// fan results out to their tasks through dedup, enrichment, persistence,
// checkpointing, and event publication.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flatwatch/scraper/internal/dedup"
	"github.com/flatwatch/scraper/internal/grouper"
	"github.com/flatwatch/scraper/internal/monitor"
	"github.com/flatwatch/scraper/internal/progress"
)

// NewItemTopic labels published events carrying a freshly persisted listing.
const NewItemTopic = "listing.new"

// Resolver runs the extraction ladder for one search query.
type Resolver interface {
	Resolve(ctx context.Context, query monitor.SearchQuery) monitor.GroupOutcome
}

// Waiter applies per-domain politeness before a group is fetched.
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Batcher persists one task's new listings in bounded batches.
type Batcher interface {
	Persist(ctx context.Context, taskID int64, items []monitor.Listing) (int, error)
}

// Config carries the orchestrator knobs.
type Config struct {
	// Interval between cycle starts (default 5m).
	Interval time.Duration
	// CycleDeadline bounds one whole cycle (default 0: no deadline).
	CycleDeadline time.Duration
	// Concurrency caps groups fetched in parallel (default 4).
	Concurrency int
	// CleanupDays is the retention horizon; <= 0 disables cleanup.
	CleanupDays int
	// CleanupEvery is how often the cleanup trigger fires (default 24h).
	CleanupEvery time.Duration
}

// Orchestrator owns the cycle loop.
type Orchestrator struct {
	cfg       Config
	store     monitor.TaskStore
	grouper   *grouper.Grouper
	resolver  Resolver
	limiter   Waiter
	enricher  monitor.Enricher
	batcher   Batcher
	publisher monitor.Publisher
	artifacts monitor.ArtifactStore
	emitter   progress.Emitter
	clock     monitor.Clock
	logger    *zap.Logger

	lastCleanup time.Time
}

// NewItemEvent is the payload published for each newly persisted listing.
type NewItemEvent struct {
	TaskID  int64           `json:"task_id"`
	ChatID  string          `json:"chat_id"`
	Name    string          `json:"name"`
	Listing monitor.Listing `json:"listing"`
}

// New wires an Orchestrator. enricher, publisher, artifacts, and emitter
// may be nil; the matching steps are then skipped.
func New(
	cfg Config,
	store monitor.TaskStore,
	grp *grouper.Grouper,
	resolver Resolver,
	limiter Waiter,
	enricher monitor.Enricher,
	batcher Batcher,
	publisher monitor.Publisher,
	artifacts monitor.ArtifactStore,
	emitter progress.Emitter,
	clock monitor.Clock,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.CleanupEvery <= 0 {
		cfg.CleanupEvery = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:       cfg,
		store:     store,
		grouper:   grp,
		resolver:  resolver,
		limiter:   limiter,
		enricher:  enricher,
		batcher:   batcher,
		publisher: publisher,
		artifacts: artifacts,
		emitter:   emitter,
		clock:     clock,
		logger:    logger,
	}
}

// Run executes cycles on the configured interval until ctx is canceled.
// The first cycle starts immediately.
func (o *Orchestrator) Run(ctx context.Context) error {
	ticker := time.NewTicker(o.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := o.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o.logger.Error("cycle failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunCycle executes exactly one monitoring cycle.
func (o *Orchestrator) RunCycle(ctx context.Context) error {
	if o.cfg.CycleDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.CycleDeadline)
		defer cancel()
	}

	cycleID := progress.UUIDToBytes(uuid.New())
	started := o.now()
	o.emit(progress.Event{CycleID: cycleID, TS: started, Stage: progress.StageCycleStart})
	defer func() {
		o.emit(progress.Event{
			CycleID: cycleID,
			TS:      o.now(),
			Stage:   progress.StageCycleDone,
			Dur:     o.now().Sub(started),
		})
	}()

	tasks, err := o.store.ListDueTasks(ctx)
	if err != nil {
		return fmt.Errorf("list due tasks: %w", err)
	}
	groups := o.grouper.Group(tasks)
	o.logger.Info("cycle started",
		zap.String("cycle_id", uuid.UUID(cycleID).String()),
		zap.Int("tasks", len(tasks)),
		zap.Int("groups", len(groups)),
	)

	sem := make(chan struct{}, o.cfg.Concurrency)
	var wg sync.WaitGroup
	for _, group := range groups {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(group grouper.Group) {
			defer wg.Done()
			defer func() { <-sem }()
			o.processGroup(ctx, cycleID, group)
		}(group)
	}
	wg.Wait()

	o.maybeCleanup(ctx, cycleID)
	return ctx.Err()
}

// processGroup fetches one group and fans the outcome out to its tasks.
// Failures here are soft: they are logged and emitted, never propagated,
// so one bad source cannot take down the cycle.
func (o *Orchestrator) processGroup(ctx context.Context, cycleID [16]byte, group grouper.Group) {
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx, group.Query.Canonical); err != nil {
			return
		}
	}

	started := o.now()
	outcome := o.resolver.Resolve(ctx, group.Query)
	dur := o.now().Sub(started)

	if !outcome.Succeeded() {
		o.handleGroupFailure(ctx, cycleID, group, outcome, dur)
		return
	}

	var note string
	if outcome.DocUnchanged {
		note = "unchanged"
	}
	o.emit(progress.Event{
		CycleID:  cycleID,
		TS:       o.now(),
		Stage:    progress.StageGroupDone,
		Source:   group.Query.Host,
		Query:    group.Query.Canonical,
		Strategy: string(outcome.Strategy),
		Items:    int64(len(outcome.Items)),
		Skipped:  int64(outcome.SkippedItems),
		Attempts: int64(outcome.Attempts),
		Dur:      dur,
		Note:     note,
	})

	// Unchanged documents fan out too: the resolver replays its cached
	// listings, dedup drops what each task has already persisted, and
	// anything still unpersisted gets another chance.
	for _, task := range group.Tasks {
		o.deliverToTask(ctx, cycleID, task, outcome.Items)
	}
}

func (o *Orchestrator) handleGroupFailure(
	ctx context.Context,
	cycleID [16]byte,
	group grouper.Group,
	outcome monitor.GroupOutcome,
	dur time.Duration,
) {
	failure := outcome.Failure
	o.logger.Warn("group hard-failed",
		zap.String("query", group.Query.Canonical),
		zap.String("strategy", string(outcome.Strategy)),
		zap.String("class", string(failure.Class)),
		zap.Int("attempts", outcome.Attempts),
		zap.Error(failure),
	)

	note := string(failure.Class)
	if uri := o.snapshotFailure(ctx, group.Query, outcome); uri != "" {
		note += " artifact=" + uri
	}
	o.emit(progress.Event{
		CycleID:  cycleID,
		TS:       o.now(),
		Stage:    progress.StageGroupFailed,
		Source:   group.Query.Host,
		Query:    group.Query.Canonical,
		Strategy: string(outcome.Strategy),
		Attempts: int64(outcome.Attempts),
		Dur:      dur,
		Note:     note,
	})
	// checkpoints stay untouched so every task re-candidates next cycle
}

// snapshotFailure saves the offending document for offline diagnosis.
func (o *Orchestrator) snapshotFailure(ctx context.Context, query monitor.SearchQuery, outcome monitor.GroupOutcome) string {
	if o.artifacts == nil || len(outcome.FailureBody) == 0 {
		return ""
	}
	name := fmt.Sprintf("%s/%s/%s.html",
		query.Host,
		o.now().Format("2006-01-02"),
		uuid.NewString(),
	)
	uri, err := o.artifacts.Save(ctx, name, "text/html", outcome.FailureBody)
	if err != nil {
		o.logger.Warn("failed to save failure artifact",
			zap.String("query", query.Canonical),
			zap.Error(err),
		)
		return ""
	}
	return uri
}

// deliverToTask filters, enriches, persists, checkpoints, and publishes
// one task's share of a group outcome.
func (o *Orchestrator) deliverToTask(ctx context.Context, cycleID [16]byte, task monitor.WatchTask, items []monitor.Listing) {
	seen, err := o.store.SeenPermalinks(ctx, task.ID)
	if err != nil {
		o.logger.Warn("failed to load seen permalinks, skipping task this cycle",
			zap.Int64("task_id", task.ID),
			zap.Error(err),
		)
		return
	}

	fresh := dedup.Filter(items, seen)
	fresh = dedup.FilterDistricts(fresh, task.AllowedDistrictIDs)

	now := o.now()
	if len(fresh) == 0 {
		o.checkpoint(ctx, task.ID, monitor.CheckpointUpdate{LastChecked: &now})
		return
	}

	fresh = o.enrichAll(ctx, fresh)

	accepted, err := o.batcher.Persist(ctx, task.ID, fresh)
	if err != nil {
		// soft fail: unpersisted items re-candidate next cycle because
		// the checkpoint and seen set stay as they were
		o.logger.Warn("persistence failed",
			zap.Int64("task_id", task.ID),
			zap.Int("accepted", accepted),
			zap.Int("pending", len(fresh)-accepted),
			zap.Error(err),
		)
	}
	if accepted == 0 && err != nil {
		return
	}

	update := monitor.CheckpointUpdate{LastChecked: &now}
	if accepted > 0 {
		update.LastGotItem = &now
	}
	o.checkpoint(ctx, task.ID, update)

	o.emit(progress.Event{
		CycleID: cycleID,
		TS:      now,
		Stage:   progress.StageTaskPersisted,
		TaskID:  task.ID,
		Items:   int64(accepted),
	})
	// Publish only on a fully successful persist: a partial batch cannot
	// tell which permalinks the store accepted, and the remainder is
	// republished next cycle once it persists.
	if err == nil {
		o.publishNewItems(ctx, task, fresh)
	}
}

// enrichAll summarizes descriptions best-effort; failures keep originals.
func (o *Orchestrator) enrichAll(ctx context.Context, items []monitor.Listing) []monitor.Listing {
	if o.enricher == nil {
		return items
	}
	for i := range items {
		if items[i].Description == "" {
			continue
		}
		summary, err := o.enricher.Summarize(ctx, items[i].Description)
		if err != nil {
			o.logger.Debug("enrichment failed, keeping original description",
				zap.String("permalink", items[i].Permalink),
				zap.Error(err),
			)
			continue
		}
		items[i].Summary = summary
	}
	return items
}

func (o *Orchestrator) publishNewItems(ctx context.Context, task monitor.WatchTask, items []monitor.Listing) {
	if o.publisher == nil {
		return
	}
	for _, item := range items {
		event := NewItemEvent{TaskID: task.ID, ChatID: task.ChatID, Name: task.Name, Listing: item}
		if _, err := o.publisher.Publish(ctx, NewItemTopic, event); err != nil {
			o.logger.Warn("failed to publish new-item event",
				zap.Int64("task_id", task.ID),
				zap.String("permalink", item.Permalink),
				zap.Error(err),
			)
		}
	}
}

func (o *Orchestrator) checkpoint(ctx context.Context, taskID int64, update monitor.CheckpointUpdate) {
	if err := o.store.UpdateCheckpoint(ctx, taskID, update); err != nil {
		o.logger.Warn("checkpoint update failed",
			zap.Int64("task_id", taskID),
			zap.Error(err),
		)
	}
}

// maybeCleanup triggers old-item retention when the configured period has
// elapsed since the previous trigger.
func (o *Orchestrator) maybeCleanup(ctx context.Context, cycleID [16]byte) {
	if o.cfg.CleanupDays <= 0 {
		return
	}
	now := o.now()
	if !o.lastCleanup.IsZero() && now.Sub(o.lastCleanup) < o.cfg.CleanupEvery {
		return
	}
	if err := o.store.CleanupOldItems(ctx, o.cfg.CleanupDays); err != nil {
		o.logger.Warn("old-item cleanup failed", zap.Error(err))
		return
	}
	o.lastCleanup = now
	o.emit(progress.Event{
		CycleID: cycleID,
		TS:      now,
		Stage:   progress.StageCleanupDone,
		Note:    fmt.Sprintf("older than %d days", o.cfg.CleanupDays),
	})
}

func (o *Orchestrator) now() time.Time {
	if o.clock != nil {
		return o.clock.Now()
	}
	return time.Now().UTC()
}

func (o *Orchestrator) emit(evt progress.Event) {
	if o.emitter != nil {
		o.emitter.Emit(evt)
	}
}
