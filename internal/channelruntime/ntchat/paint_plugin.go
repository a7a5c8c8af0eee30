package ntchat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/haikerapples/ntbot/bridge"
	"github.com/haikerapples/ntbot/paint"
)

// generator is the slice of the paint service the plugin drives.
type generator interface {
	Generate(ctx context.Context, ownerID, prompt string) (paint.Ack, error)
	Operate(ctx context.Context, ownerID string, kind paint.TaskKind, imgID string, index int) (paint.Ack, error)
}

// PaintPlugin turns chat commands into image-generation submissions and
// immediate acknowledgment replies. Asynchronous results arrive later
// through the Delivery adapter, not through the plugin.
type PaintPlugin struct {
	svc    generator
	prefix string
	logger *slog.Logger
}

func NewPaintPlugin(svc generator, triggerPrefix string, logger *slog.Logger) *PaintPlugin {
	if logger == nil {
		logger = slog.Default()
	}
	triggerPrefix = strings.TrimSpace(triggerPrefix)
	if triggerPrefix == "" {
		triggerPrefix = "$"
	}
	return &PaintPlugin{svc: svc, prefix: triggerPrefix, logger: logger}
}

// Handle consumes a paint trigger and returns the synchronous reply. It
// reports false when the message is not addressed to the plugin.
func (p *PaintPlugin) Handle(ctx context.Context, in bridge.Context) (bridge.Reply, bool) {
	cmd, ok, err := parsePaintCommand(p.prefix, in.Content)
	if !ok {
		return bridge.Reply{}, false
	}
	if err != nil {
		return bridge.Error(err.Error()), true
	}
	switch cmd.Kind {
	case "help":
		return bridge.Info(paintHelpText(p.prefix)), true
	case "generate":
		return p.generate(ctx, in, cmd.Prompt), true
	case "upscale":
		return p.upscale(ctx, in, cmd.ImgID, cmd.Index), true
	default:
		return bridge.Error("unsupported command"), true
	}
}

func (p *PaintPlugin) generate(ctx context.Context, in bridge.Context, prompt string) bridge.Reply {
	ack, err := p.svc.Generate(ctx, in.SessionID, prompt)
	if err != nil {
		return p.errorReply(in, err)
	}
	wait := "about a minute"
	if ack.Mode == paint.ModeRelax {
		wait = "1 to 10 minutes"
	}
	text := fmt.Sprintf("your image will be ready in %s\nprompt: %s", wait, prompt)
	if ack.RealPrompt != "" {
		text = fmt.Sprintf("your image will be ready in %s\nprompt: %s\ntranslated prompt: %s", wait, prompt, ack.RealPrompt)
	}
	return bridge.Info(text)
}

func (p *PaintPlugin) upscale(ctx context.Context, in bridge.Context, imgID string, index int) bridge.Reply {
	_, err := p.svc.Operate(ctx, in.SessionID, paint.KindUpscale, imgID, index)
	if err != nil {
		if errors.Is(err, paint.ErrAlreadyUpscaled) {
			return bridge.Info(fmt.Sprintf("image %s index %d is already upscaled", imgID, index))
		}
		return p.errorReply(in, err)
	}
	return bridge.Info("upscaling, please wait")
}

func (p *PaintPlugin) errorReply(in bridge.Context, err error) bridge.Reply {
	switch {
	case errors.Is(err, paint.ErrOwnerLimit):
		return bridge.Info("you already have the maximum number of running tasks, try again later")
	case errors.Is(err, paint.ErrGlobalLimit):
		return bridge.Info("the bot is at its task limit, try again later")
	case errors.Is(err, paint.ErrInvalidRequest):
		return bridge.Error("generation failed, please check the prompt content")
	default:
		p.logger.Warn("paint_plugin_error", "session_id", in.SessionID, "error", err.Error())
		return bridge.Error("generation failed, please try again later")
	}
}
