package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"skladbot/internal/cache"
	"skladbot/internal/erp"
	"skladbot/internal/monitor"
	kit "skladbot/internal/transport"
	logx "skladbot/pkg/logx"
)

// Directory is the counterparty side of the ERP client.
type Directory interface {
	CheckConnection(ctx context.Context) bool
	FindCounterparty(ctx context.Context, phone string) (erp.Counterparty, bool, error)
	CreateCounterparty(ctx context.Context, phone string) (erp.Counterparty, error)
}

type Config struct {
	AllowedUserIDs []int64
	// RequestTimeout bounds one ERP round-trip per message; 0 means 30s.
	RequestTimeout time.Duration
}

// Router consumes incoming messages and serves the interactive surface:
// /start, /help, /status, and the free-text phone -> counterparty flow.
type Router struct {
	adapter kit.Adapter
	dir     Directory
	phones  cache.Store
	mon     *monitor.Monitor
	log     logx.Logger

	cfgMu sync.RWMutex
	cfg   Config

	startedAt time.Time
	done      chan struct{}
	once      sync.Once
}

func NewRouter(cfg Config, adapter kit.Adapter, dir Directory, phones cache.Store, mon *monitor.Monitor, log logx.Logger) *Router {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{
		adapter: adapter,
		dir:     dir,
		phones:  phones,
		mon:     mon,
		log:     log,
		cfg:     cfg,
		done:    make(chan struct{}),
	}
}

// Apply updates the access list for subsequent messages.
func (r *Router) Apply(cfg Config) {
	r.cfgMu.Lock()
	r.cfg.AllowedUserIDs = cfg.AllowedUserIDs
	if cfg.RequestTimeout > 0 {
		r.cfg.RequestTimeout = cfg.RequestTimeout
	}
	r.cfgMu.Unlock()
}

// Run processes messages until the channel closes or ctx is cancelled.
func (r *Router) Run(ctx context.Context, in <-chan kit.Message) {
	defer r.once.Do(func() { close(r.done) })
	r.startedAt = time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			r.handle(ctx, msg)
		}
	}
}

// Done is closed once Run has returned.
func (r *Router) Done() <-chan struct{} { return r.done }

func (r *Router) allowed(userID int64) bool {
	r.cfgMu.RLock()
	defer r.cfgMu.RUnlock()
	if len(r.cfg.AllowedUserIDs) == 0 {
		return true
	}
	for _, id := range r.cfg.AllowedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (r *Router) timeout() time.Duration {
	r.cfgMu.RLock()
	defer r.cfgMu.RUnlock()
	return r.cfg.RequestTimeout
}

func (r *Router) handle(ctx context.Context, msg kit.Message) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	if !r.allowed(msg.FromID) {
		r.log.Debug("message from unauthorized user ignored",
			logx.Int64("user_id", msg.FromID),
			logx.String("username", msg.FromUsername))
		return
	}

	hctx, cancel := context.WithTimeout(ctx, r.timeout())
	defer cancel()

	target := kit.ChatTarget{ChatID: msg.ChatID}
	switch cmd := commandOf(text); cmd {
	case "start":
		r.reply(hctx, target, startText)
	case "help":
		r.reply(hctx, target, helpText)
	case "status":
		r.reply(hctx, target, r.statusText(hctx))
	default:
		if cmd != "" {
			r.reply(hctx, target, "Неизвестная команда. Наберите /help.")
			return
		}
		r.handlePhone(hctx, target, text)
	}
}

// commandOf extracts the command name from "/cmd@botname args", or "" for
// plain text.
func commandOf(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd := strings.Fields(text)[0][1:]
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd)
}

const startText = "Привет! Отправьте номер телефона, и я создам контрагента в МойСклад.\n\n" +
	"Команды:\n/status — состояние мониторинга\n/help — справка"

const helpText = "Отправьте номер телефона в любом формате:\n" +
	"+375291234567, 80291234567, +79161234567, 89161234567\n\n" +
	"/status — состояние мониторинга и кэша\n/start — приветствие"

func (r *Router) statusText(ctx context.Context) string {
	erpState := "доступен"
	if !r.dir.CheckConnection(ctx) {
		erpState = "недоступен"
	}
	var b strings.Builder
	b.WriteString("📋 Состояние сервиса\n")
	fmt.Fprintf(&b, "▸ Мониторинг: %s\n", monitorStateRu(r.mon.State()))
	fmt.Fprintf(&b, "▸ МойСклад: %s\n", erpState)
	fmt.Fprintf(&b, "▸ Известных номеров: %d\n", r.phones.Len())
	fmt.Fprintf(&b, "▸ Аптайм: %s", time.Since(r.startedAt).Truncate(time.Second))
	return b.String()
}

func monitorStateRu(s monitor.State) string {
	switch s {
	case monitor.StateRunning:
		return "работает"
	case monitor.StateStopRequested:
		return "останавливается"
	case monitor.StateStopped:
		return "остановлен"
	default:
		return "не запущен"
	}
}

// handlePhone runs the phone -> counterparty flow. The phone cache keeps
// already-processed numbers so repeated input skips the ERP round-trip.
func (r *Router) handlePhone(ctx context.Context, target kit.ChatTarget, text string) {
	phone := normalizePhone(text)
	if phone == "" {
		r.reply(ctx, target, "Не похоже на номер телефона. Наберите /help для примеров.")
		return
	}

	if _, ok := r.phones.Get(phone); ok {
		r.reply(ctx, target, fmt.Sprintf("ℹ️ Контрагент %s уже есть.", phone))
		return
	}

	if cp, found, err := r.dir.FindCounterparty(ctx, phone); err != nil {
		r.log.Warn("counterparty lookup failed", logx.String("phone", phone), logx.Err(err))
		r.reply(ctx, target, "⚠️ МойСклад недоступен, попробуйте позже.")
		return
	} else if found {
		r.rememberPhone(phone)
		r.reply(ctx, target, fmt.Sprintf("ℹ️ Контрагент %s уже есть (%s).", phone, cp.CompanyType))
		return
	}

	if _, err := r.dir.CreateCounterparty(ctx, phone); err != nil {
		r.log.Error("counterparty create failed", logx.String("phone", phone), logx.Err(err))
		r.reply(ctx, target, "⚠️ Не удалось создать контрагента, попробуйте позже.")
		return
	}
	r.rememberPhone(phone)
	r.reply(ctx, target, fmt.Sprintf("✅ Контрагент %s создан.", phone))
}

func (r *Router) rememberPhone(phone string) {
	now := time.Now()
	r.phones.Put(phone, cache.Record{FirstSeen: now, LastAlerted: now, Fingerprint: "known"})
	if err := r.phones.Persist(); err != nil {
		r.log.Warn("phone cache persist failed", logx.Err(err))
	}
}

func (r *Router) reply(ctx context.Context, to kit.ChatTarget, text string) {
	if err := r.adapter.SendText(ctx, to, text, nil); err != nil {
		r.log.Warn("reply failed", logx.Int64("chat_id", to.ChatID), logx.Err(err))
	}
}
