package paint

import (
	"context"
	"log/slog"
	"time"
)

const (
	defaultPollInterval = 10 * time.Second

	// The budget starts at 90 units. A normal "still pending" reply costs
	// 1 unit (up to ~15 min of polling at the nominal interval); a failed
	// query costs 20, so roughly five consecutive failures expire the
	// task. Transient errors must not poll forever, but must not kill the
	// task on the first hiccup either.
	pollBudget  = 90
	pendingCost = 1
	failureCost = 20
)

// StatusQuerier is the slice of the remote client the poller needs.
type StatusQuerier interface {
	QueryStatus(ctx context.Context, taskID string) (TaskState, error)
}

// Poller runs one independent poll loop per task: sleep, query, decide,
// until the task finishes or the retry budget runs out. Loops never
// serialize through a shared worker; each is its own goroutine.
type Poller struct {
	reg        *Registry
	querier    StatusQuerier
	dispatcher *Dispatcher
	logger     *slog.Logger
	interval   time.Duration
}

func NewPoller(reg *Registry, querier StatusQuerier, dispatcher *Dispatcher, logger *slog.Logger, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		reg:        reg,
		querier:    querier,
		dispatcher: dispatcher,
		logger:     logger,
		interval:   interval,
	}
}

// Watch spawns the poll loop for taskID. The loop runs until a terminal
// observation or ctx cancellation; process shutdown simply abandons it.
func (p *Poller) Watch(ctx context.Context, taskID string) {
	go p.poll(ctx, taskID)
}

func (p *Poller) poll(ctx context.Context, taskID string) {
	p.logger.Debug("paint_poll_start", "task_id", taskID)
	budget := pollBudget
	// A failure charge can push the budget below zero; the loop condition
	// treats any non-positive balance as exhausted.
	for budget > 0 {
		if !sleepCtx(ctx, p.interval) {
			return
		}
		state, err := p.querier.QueryStatus(ctx, taskID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			budget -= failureCost
			p.logger.Warn("paint_poll_query_error", "task_id", taskID, "budget_left", budget, "error", err.Error())
			continue
		}
		if state.Finished() {
			task, won := p.reg.Finish(taskID, state.ImgID, state.ImgURL)
			if !won {
				p.logger.Debug("paint_poll_finish_lost", "task_id", taskID, "status", task.Status)
				return
			}
			p.logger.Info("paint_task_finished", "task_id", taskID, "img_id", task.ImgID)
			p.dispatcher.Deliver(ctx, task)
			return
		}
		budget -= pendingCost
		p.logger.Debug("paint_poll_pending", "task_id", taskID, "budget_left", budget)
	}
	if p.reg.Expire(taskID) {
		p.logger.Warn("paint_task_expired", "task_id", taskID, "reason", "poll_budget_exhausted")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
