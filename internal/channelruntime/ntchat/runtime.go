package ntchat

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/haikerapples/ntbot/bridge"
	"github.com/haikerapples/ntbot/internal/channelruntime/worker"
	"github.com/haikerapples/ntbot/internal/ntclient"
)

const (
	defaultMaxConcurrency = 3
	defaultQueueSize      = 16
	reconnectDelay        = 2 * time.Second
	replyTimeout          = 60 * time.Second
)

type Options struct {
	Logger *slog.Logger
	API    *ntclient.Client
	Plugin *PaintPlugin

	// Responder is the generic reply-generation backend for messages the
	// plugin does not consume. Optional; without one such messages are
	// dropped.
	Responder bridge.Responder

	MaxConcurrency int
	QueueSize      int
}

type inboundJob struct {
	Bridge bridge.Context
}

type convWorker struct {
	Jobs chan inboundJob
}

// Run connects to the chat automation sidecar, consumes inbound events
// and routes them through per-conversation workers until ctx is done.
func Run(ctx context.Context, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.API == nil {
		logger.Error("ntchat_start_error", "error", "sidecar client is required")
		return errMissingAPI
	}
	maxConc := opts.MaxConcurrency
	if maxConc <= 0 {
		maxConc = defaultMaxConcurrency
	}
	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	var info *ntclient.LoginInfo
	for {
		var err error
		info, err = opts.API.GetLoginInfo(ctx)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			logger.Info("ntchat_stop", "reason", "context_canceled")
			return nil
		}
		logger.Warn("ntchat_login_info_error", "error", err.Error())
		select {
		case <-ctx.Done():
			logger.Info("ntchat_stop", "reason", "context_canceled")
			return nil
		case <-time.After(reconnectDelay):
		}
	}
	selfID := info.WxID
	logger.Info("ntchat_start", "self_wxid", selfID, "nickname", info.Nickname, "max_concurrency", maxConc)

	pool := worker.NewPool(ctx, maxConc)
	var (
		mu      sync.Mutex
		workers = make(map[string]*convWorker)
	)

	getOrStartWorker := func(conversationID string) *convWorker {
		mu.Lock()
		defer mu.Unlock()
		if w, ok := workers[conversationID]; ok {
			return w
		}
		w := &convWorker{Jobs: make(chan inboundJob, queueSize)}
		workers[conversationID] = w
		worker.Spawn(pool, w.Jobs, func(workerCtx context.Context, job inboundJob) {
			handleInbound(workerCtx, logger, opts, job.Bridge)
		})
		return w
	}

	for {
		conn, err := opts.API.DialEvents(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("ntchat_stop", "reason", "context_canceled")
				return nil
			}
			logger.Warn("ntchat_dial_error", "error", err.Error())
			select {
			case <-ctx.Done():
				logger.Info("ntchat_stop", "reason", "context_canceled")
				return nil
			case <-time.After(reconnectDelay):
			}
			continue
		}
		closeOnce := sync.Once{}
		closeConn := func() { closeOnce.Do(func() { _ = conn.Close() }) }
		go func() {
			<-ctx.Done()
			closeConn()
		}()

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				closeConn()
				if ctx.Err() != nil {
					logger.Info("ntchat_stop", "reason", "context_canceled")
					return nil
				}
				logger.Warn("ntchat_read_error", "error", err.Error())
				break
			}
			var event ntclient.Event
			if err := json.Unmarshal(raw, &event); err != nil {
				logger.Debug("ntchat_event_decode_error", "error", err.Error())
				continue
			}
			in, ok := bridgeContextFromEvent(event, selfID)
			if !ok {
				continue
			}
			w := getOrStartWorker(in.ReceiverID)
			if err := worker.Enqueue(ctx, pool, w.Jobs, inboundJob{Bridge: in}); err != nil {
				logger.Warn("ntchat_enqueue_error", "conversation", in.ReceiverID, "error", err.Error())
				continue
			}
			logger.Debug("ntchat_task_enqueued",
				"conversation", in.ReceiverID,
				"sender", in.SenderID,
				"is_group", in.IsGroup,
				"correlation_id", in.CorrelationID,
				"text_len", len(in.Content),
			)
		}

		select {
		case <-ctx.Done():
			logger.Info("ntchat_stop", "reason", "context_canceled")
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

// bridgeContextFromEvent filters and normalizes one sidecar event. Self
// replies are skipped; group messages require the bot to be mentioned.
func bridgeContextFromEvent(event ntclient.Event, selfID string) (bridge.Context, bool) {
	if event.Type != ntclient.EventRecvText {
		return bridge.Context{}, false
	}
	d := event.Data
	if d.FromWxID == "" || d.FromWxID == d.ToWxID || d.FromWxID == selfID {
		return bridge.Context{}, false
	}
	content := strings.TrimSpace(d.Msg)
	if content == "" {
		return bridge.Context{}, false
	}
	isGroup := strings.TrimSpace(d.RoomWxID) != ""
	if isGroup && !containsString(d.AtUserList, selfID) {
		return bridge.Context{}, false
	}
	receiver := d.FromWxID
	if isGroup {
		receiver = d.RoomWxID
	}
	return bridge.Context{
		SessionID:     receiver,
		ReceiverID:    receiver,
		SenderID:      d.FromWxID,
		IsGroup:       isGroup,
		Content:       content,
		CorrelationID: uuid.NewString(),
	}, true
}

func handleInbound(ctx context.Context, logger *slog.Logger, opts Options, in bridge.Context) {
	var reply bridge.Reply
	handled := false
	if opts.Plugin != nil {
		reply, handled = opts.Plugin.Handle(ctx, in)
	}
	if !handled {
		if opts.Responder == nil {
			return
		}
		var err error
		reply, err = opts.Responder.Reply(ctx, in)
		if err != nil {
			logger.Warn("ntchat_responder_error", "conversation", in.ReceiverID, "correlation_id", in.CorrelationID, "error", err.Error())
			return
		}
	}
	if reply.Empty() {
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, replyTimeout)
	defer cancel()
	var err error
	switch reply.Type {
	case bridge.ReplyImageURL:
		err = opts.API.SendImage(sendCtx, in.ReceiverID, reply.Content)
	default:
		err = opts.API.SendText(sendCtx, in.ReceiverID, reply.Content)
	}
	if err != nil {
		logger.Warn("ntchat_send_error", "conversation", in.ReceiverID, "correlation_id", in.CorrelationID, "error", err.Error())
		return
	}
	logger.Info("ntchat_reply_sent", "conversation", in.ReceiverID, "correlation_id", in.CorrelationID, "type", reply.Type)
}
