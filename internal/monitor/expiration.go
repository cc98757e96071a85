package monitor

import (
	"context"
	"fmt"
	"time"

	"skladbot/internal/cache"
	"skladbot/internal/domain"
	kit "skladbot/internal/transport"
	logx "skladbot/pkg/logx"
)

// Expiration buckets. The fingerprint also carries the expiration date, so a
// shifted date (new batch) or a crossed bucket re-alerts immediately.
const (
	expExpired = "expired"
	expUrgent  = "d3" // three days or less
	expSoon    = "soon"
	expOK      = "ok"
)

// urgentDays is the boundary where "expiring soon" turns into the louder
// short-notice alert.
const urgentDays = 3

// ExpirationChecker alerts on products approaching or past their expiration
// date. Already-expired products always alert, regardless of AlertDays.
type ExpirationChecker struct {
	dedup     dedup
	alertDays int
	retention time.Duration
	log       logx.Logger
}

func NewExpirationChecker(store cache.Store, alertDays int, suppress, retention time.Duration, log logx.Logger) *ExpirationChecker {
	if alertDays < 0 {
		alertDays = 0
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &ExpirationChecker{
		dedup:     dedup{store: store, suppress: suppress},
		alertDays: alertDays,
		retention: retention,
		log:       log,
	}
}

func (c *ExpirationChecker) Name() string { return "expiration" }

func (c *ExpirationChecker) Check(ctx context.Context, snap *domain.Snapshot, now time.Time) []kit.Notification {
	_ = ctx

	alerts := newGroupedAlerts()
	processed := 0
	expired := 0
	nearExpired := 0
	alerted := 0

	for _, p := range snap.Products {
		if !p.NeedsExpirationCheck() {
			continue
		}
		if p.ID == "" {
			c.log.Warn("malformed expiration entry skipped", logx.String("name", p.Name))
			continue
		}
		processed++

		days := domain.DaysUntil(p.Expiration, now)
		bucket := c.bucket(days)
		date := p.Expiration.Format("2006-01-02")
		fp := bucket + ":" + date

		switch bucket {
		case expExpired:
			expired++
		case expUrgent, expSoon:
			nearExpired++
		default:
			c.dedup.markQuiet(p.ID, fp)
			continue
		}

		if !c.dedup.shouldAlert(p.ID, fp, now) {
			continue
		}
		c.dedup.markAlerted(p.ID, fp, now)
		alerted++
		alerts.add(p.GroupPath, expirationAlertText(p, bucket, days))
	}

	if err := c.dedup.store.Persist(); err != nil {
		c.log.Warn("expiration cache persist failed", logx.Err(err))
	}

	c.log.Info("expiration check finished",
		logx.Int("products", processed),
		logx.Int("alerted", alerted),
		logx.Int("expired", expired),
		logx.Int("near_expired", nearExpired))

	if alerts.empty() {
		return nil
	}
	header := "⏳ " + bold("УВЕДОМЛЕНИЯ ПО СРОКАМ ГОДНОСТИ")
	return alerts.notifications(header, 8)
}

func (c *ExpirationChecker) Purge(now time.Time) int {
	return c.dedup.store.PurgeExpired(now, c.retention)
}

func (c *ExpirationChecker) bucket(days int) string {
	switch {
	case days < 0:
		return expExpired
	case days > c.alertDays:
		return expOK
	case days <= urgentDays:
		return expUrgent
	default:
		return expSoon
	}
}

func expirationAlertText(p domain.Product, bucket string, days int) string {
	date := p.Expiration.Format("02.01.2006")
	if bucket == expExpired {
		return fmt.Sprintf("🚨 %s\n▸ Товар: %s\n▸ Срок истёк: %s",
			bold("ПРОСРОЧЕННЫЙ ТОВАР"), escapeHTML(p.Name), date)
	}
	emoji := "🟡"
	if bucket == expUrgent {
		emoji = "🔴"
	}
	return fmt.Sprintf("%s %s\n▸ Товар: %s\n▸ Срок: %s\n▸ Осталось дней: %d",
		emoji, bold("ТОВАР С ИСТЕКАЮЩИМ СРОКОМ"), escapeHTML(p.Name), date, days)
}
