package ntchat

import (
	"context"
	"log/slog"
	"time"

	"github.com/haikerapples/ntbot/internal/ntclient"
	"github.com/haikerapples/ntbot/internal/retryutil"
)

const deliverTimeout = 30 * time.Second

// Delivery routes asynchronous results back into the chat. A failed
// artifact send gets one background retry; beyond that the failure is
// logged and dropped, matching the at-most-once notification contract.
type Delivery struct {
	api    *ntclient.Client
	logger *slog.Logger
}

func NewDelivery(api *ntclient.Client, logger *slog.Logger) *Delivery {
	if logger == nil {
		logger = slog.Default()
	}
	return &Delivery{api: api, logger: logger}
}

func (d *Delivery) SendImage(ctx context.Context, conversationID, imgURL string) error {
	sendCtx, cancel := context.WithTimeout(ctx, deliverTimeout)
	defer cancel()
	err := d.api.SendImage(sendCtx, conversationID, imgURL)
	if err != nil {
		retryutil.AsyncRetry(d.logger, "ntchat_send_image", 0, 0, func(retryCtx context.Context) error {
			return d.api.SendImage(retryCtx, conversationID, imgURL)
		})
	}
	return err
}

func (d *Delivery) SendText(ctx context.Context, conversationID, text string) error {
	sendCtx, cancel := context.WithTimeout(ctx, deliverTimeout)
	defer cancel()
	return d.api.SendText(sendCtx, conversationID, text)
}
