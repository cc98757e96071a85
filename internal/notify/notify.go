// Package notify delivers alert text to the configured Telegram chat,
// chunked to the provider message limit and throttled to its rate limits.
// Delivery is best-effort: a failed chunk is logged and dropped, never
// retried into the caller's cycle.
package notify

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	kit "skladbot/internal/transport"
	logx "skladbot/pkg/logx"
)

type Config struct {
	ChatID       int64
	MessageLimit int // max runes per message, Telegram caps at 4096
	RatePerSec   int
}

type Service struct {
	adapter kit.Adapter
	log     logx.Logger

	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter
}

func New(cfg Config, adapter kit.Adapter, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{adapter: adapter, log: log}
	s.Apply(cfg)
	return s
}

// Apply updates limits at runtime (config hot reload).
func (s *Service) Apply(cfg Config) {
	if cfg.MessageLimit <= 0 || cfg.MessageLimit > 4096 {
		cfg.MessageLimit = 4096
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	s.mu.Lock()
	s.cfg = cfg
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	s.mu.Unlock()
}

// Notify delivers one checker notification.
func (s *Service) Notify(ctx context.Context, n kit.Notification) error {
	target := n.Target
	if target.ChatID == 0 {
		s.mu.Lock()
		target.ChatID = s.cfg.ChatID
		s.mu.Unlock()
	}
	return s.send(ctx, target, n.Text)
}

// Send delivers text to the default alert chat.
func (s *Service) Send(ctx context.Context, text string) error {
	s.mu.Lock()
	target := kit.ChatTarget{ChatID: s.cfg.ChatID}
	s.mu.Unlock()
	return s.send(ctx, target, text)
}

// send splits text and sends each chunk in order. Chunk failures are logged
// and the remaining chunks still attempted; the last error is returned so
// callers can count failures, but recipients never see a partial chunk.
func (s *Service) send(ctx context.Context, to kit.ChatTarget, text string) error {
	if text == "" {
		return nil
	}

	s.mu.Lock()
	limit := s.cfg.MessageLimit
	lim := s.limiter
	s.mu.Unlock()

	var lastErr error
	for i, chunk := range splitMessage(text, limit) {
		if err := lim.Wait(ctx); err != nil {
			return err
		}
		opt := &kit.SendOptions{ParseMode: "HTML", DisablePreview: true}
		if err := s.adapter.SendText(ctx, to, chunk, opt); err != nil {
			s.log.Warn("chunk delivery failed",
				logx.Int64("chat_id", to.ChatID),
				logx.Int("chunk", i),
				logx.Err(err))
			lastErr = err
			continue
		}
	}
	return lastErr
}
