package paint

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const defaultTaskTTL = 30 * time.Minute

type Config struct {
	BaseURL string
	APIKey  string

	// Quotas; non-positive disables the respective limit.
	MaxTasksPerOwner int
	MaxTasks         int

	Mode          TaskMode
	AutoTranslate bool
	ImgProxy      bool

	TaskTTL       time.Duration
	PollInterval  time.Duration
	TriggerPrefix string
}

func (c Config) withDefaults() Config {
	if c.TaskTTL <= 0 {
		c.TaskTTL = defaultTaskTTL
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.Mode == "" {
		c.Mode = ModeFast
	}
	if strings.TrimSpace(c.TriggerPrefix) == "" {
		c.TriggerPrefix = "$"
	}
	return c
}

// RemoteClient is the submit/query surface of the generation API.
type RemoteClient interface {
	Submit(ctx context.Context, req SubmitRequest) (Submission, error)
	StatusQuerier
}

type ServiceOptions struct {
	Config   Config
	Delivery Delivery

	// Client overrides the default HTTP client (tests use stubs).
	Client RemoteClient
	Logger *slog.Logger

	// PollContext bounds every spawned poll loop; defaults to
	// context.Background(). Cancelling it abandons in-flight polls,
	// which is the accepted shutdown behavior.
	PollContext context.Context
}

// Service owns the whole submit/poll/deliver pipeline for one process:
// admission, remote submission, registry bookkeeping and per-task poll
// loops. One instance per bot; no package-level state.
type Service struct {
	cfg     Config
	reg     *Registry
	client  RemoteClient
	poller  *Poller
	logger  *slog.Logger
	pollCtx context.Context

	now func() time.Time
}

func NewService(opts ServiceOptions) (*Service, error) {
	cfg := opts.Config.withDefaults()
	client := opts.Client
	if client == nil {
		if strings.TrimSpace(cfg.BaseURL) == "" {
			return nil, fmt.Errorf("paint.base_url is required")
		}
		client = NewClient(nil, cfg.BaseURL, cfg.APIKey)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pollCtx := opts.PollContext
	if pollCtx == nil {
		pollCtx = context.Background()
	}
	reg := NewRegistry()
	dispatcher := NewDispatcher(opts.Delivery, cfg.TriggerPrefix, logger)
	return &Service{
		cfg:     cfg,
		reg:     reg,
		client:  client,
		poller:  NewPoller(reg, client, dispatcher, logger, cfg.PollInterval),
		logger:  logger,
		pollCtx: pollCtx,
		now:     time.Now,
	}, nil
}

// Registry exposes the task store for lookups and debug listings.
func (s *Service) Registry() *Registry { return s.reg }

// Ack is the synchronous submission acknowledgment returned to the
// inbound message path.
type Ack struct {
	TaskID     string
	RealPrompt string
	Mode       TaskMode
}

// Generate admits and submits a new image-generation task, registers it
// and spawns its poll loop. The caller's context bounds only the submit
// call; polling continues on the service's own context.
func (s *Service) Generate(ctx context.Context, ownerID, prompt string) (Ack, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Ack{}, fmt.Errorf("%w: empty prompt", ErrInvalidRequest)
	}
	if err := s.reg.TryReserve(ownerID, s.cfg.MaxTasksPerOwner, s.cfg.MaxTasks); err != nil {
		s.logger.Warn("paint_admission_denied", "owner_id", ownerID, "error", err.Error())
		return Ack{}, err
	}
	mode := s.resolveMode(prompt)
	sub, err := s.client.Submit(ctx, SubmitRequest{
		Kind:          KindGenerate,
		Prompt:        prompt,
		Mode:          mode,
		AutoTranslate: s.cfg.AutoTranslate,
		ImgProxy:      s.cfg.ImgProxy,
	})
	if err != nil {
		s.reg.Release(ownerID)
		s.logger.Warn("paint_generate_error", "owner_id", ownerID, "error", err.Error())
		return Ack{}, err
	}
	s.register(sub.TaskID, ownerID, KindGenerate, prompt)
	s.logger.Info("paint_generate_submitted", "owner_id", ownerID, "task_id", sub.TaskID, "mode", mode)
	return Ack{TaskID: sub.TaskID, RealPrompt: sub.RealPrompt, Mode: mode}, nil
}

// Operate admits and submits a follow-up operation (upscale, variation,
// reset) on a previously produced image. Upscales are additionally
// guarded so one image index is only upscaled once.
func (s *Service) Operate(ctx context.Context, ownerID string, kind TaskKind, imgID string, index int) (Ack, error) {
	switch kind {
	case KindUpscale, KindVariation, KindReset:
	default:
		return Ack{}, fmt.Errorf("unsupported operation kind: %s", kind)
	}
	if kind == KindUpscale && s.reg.Upscaled(imgID, index) {
		return Ack{}, ErrAlreadyUpscaled
	}
	if err := s.reg.TryReserve(ownerID, s.cfg.MaxTasksPerOwner, s.cfg.MaxTasks); err != nil {
		s.logger.Warn("paint_admission_denied", "owner_id", ownerID, "error", err.Error())
		return Ack{}, err
	}
	sub, err := s.client.Submit(ctx, SubmitRequest{
		Kind:     kind,
		ImgID:    imgID,
		Index:    index,
		ImgProxy: s.cfg.ImgProxy,
	})
	if err != nil {
		s.reg.Release(ownerID)
		s.logger.Warn("paint_operate_error", "owner_id", ownerID, "kind", kind, "img_id", imgID, "error", err.Error())
		return Ack{}, err
	}
	if kind == KindUpscale {
		s.reg.MarkUpscaled(imgID, index)
	}
	s.register(sub.TaskID, ownerID, kind, "")
	s.logger.Info("paint_operate_submitted", "owner_id", ownerID, "task_id", sub.TaskID, "kind", kind, "img_id", imgID, "index", index)
	return Ack{TaskID: sub.TaskID, Mode: s.cfg.Mode}, nil
}

func (s *Service) register(taskID, ownerID string, kind TaskKind, rawPrompt string) {
	now := s.now()
	s.reg.Put(Task{
		ID:        taskID,
		OwnerID:   ownerID,
		Kind:      kind,
		RawPrompt: rawPrompt,
		Status:    StatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.TaskTTL),
	})
	s.poller.Watch(s.pollCtx, taskID)
}

// resolveMode picks relax when the prompt asks for it or the service is
// configured that way; fast otherwise.
func (s *Service) resolveMode(prompt string) TaskMode {
	if strings.Contains(prompt, "--relax") || s.cfg.Mode == ModeRelax {
		return ModeRelax
	}
	return ModeFast
}
