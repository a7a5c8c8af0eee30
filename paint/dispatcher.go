package paint

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Delivery is the external chat-channel interface results go out
// through. Implementations address the task's owning conversation.
type Delivery interface {
	SendImage(ctx context.Context, conversationID, imgURL string) error
	SendText(ctx context.Context, conversationID, text string) error
}

// Dispatcher emits the produced artifact and a follow-up notice when a
// task reaches Finished. Delivery failures are logged and swallowed: the
// task stays Finished with its result recorded, nothing is re-queued.
type Dispatcher struct {
	delivery      Delivery
	triggerPrefix string
	logger        *slog.Logger
}

func NewDispatcher(delivery Delivery, triggerPrefix string, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	triggerPrefix = strings.TrimSpace(triggerPrefix)
	if triggerPrefix == "" {
		triggerPrefix = "$"
	}
	return &Dispatcher{
		delivery:      delivery,
		triggerPrefix: triggerPrefix,
		logger:        logger,
	}
}

// Deliver sends the artifact first, then the completion notice. The
// poller calls it exactly once per finished task.
func (d *Dispatcher) Deliver(ctx context.Context, task Task) {
	if d.delivery == nil {
		d.logger.Warn("paint_deliver_skipped", "task_id", task.ID, "reason", "no delivery configured")
		return
	}
	if err := d.delivery.SendImage(ctx, task.OwnerID, task.ImgURL); err != nil {
		d.logger.Warn("paint_deliver_image_error", "task_id", task.ID, "owner_id", task.OwnerID, "error", err.Error())
	}
	if err := d.delivery.SendText(ctx, task.OwnerID, d.notice(task)); err != nil {
		d.logger.Warn("paint_deliver_notice_error", "task_id", task.ID, "owner_id", task.OwnerID, "error", err.Error())
	}
}

func (d *Dispatcher) notice(task Task) string {
	var b strings.Builder
	b.WriteString("task finished\n")
	if task.Kind == KindGenerate && task.RawPrompt != "" {
		fmt.Fprintf(&b, "prompt: %s\n", task.RawPrompt)
	}
	fmt.Fprintf(&b, "image id: %s", task.ImgID)
	if task.Kind == KindGenerate {
		fmt.Fprintf(&b, "\n\nupscale with: %smju %s <1-4>", d.triggerPrefix, task.ImgID)
	}
	return b.String()
}
