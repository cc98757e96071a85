package monitor

import (
	"context"
	"fmt"
	"math"
	"time"

	"skladbot/internal/cache"
	"skladbot/internal/domain"
	kit "skladbot/internal/transport"
	logx "skladbot/pkg/logx"
)

// Stock fingerprint buckets. "ok" is recorded on recovery so a later drop
// re-alerts through the fingerprint change.
const (
	stockZero = "zero"
	stockLow  = "low"
	stockOK   = "ok"
)

// StockChecker alerts when a tracked product runs out or falls to its
// configured minimum balance.
type StockChecker struct {
	dedup     dedup
	retention time.Duration
	log       logx.Logger
}

func NewStockChecker(store cache.Store, suppress, retention time.Duration, log logx.Logger) *StockChecker {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &StockChecker{
		dedup:     dedup{store: store, suppress: suppress},
		retention: retention,
		log:       log,
	}
}

func (c *StockChecker) Name() string { return "stock" }

func (c *StockChecker) Check(ctx context.Context, snap *domain.Snapshot, now time.Time) []kit.Notification {
	_ = ctx

	alerts := newGroupedAlerts()
	processed := 0
	zeroCount := 0
	belowMin := 0
	alerted := 0

	for _, p := range snap.Products {
		if !p.NeedsStockCheck() {
			continue
		}
		if p.ID == "" || math.IsNaN(p.Stock) || math.IsInf(p.Stock, 0) {
			c.log.Warn("malformed stock entry skipped", logx.String("name", p.Name))
			continue
		}
		processed++

		fp := stockOK
		switch {
		case p.Stock <= 0:
			fp = stockZero
			zeroCount++
		case p.Stock <= p.MinBalance:
			fp = stockLow
			belowMin++
		}

		if fp == stockOK {
			c.dedup.markQuiet(p.ID, stockOK)
			continue
		}
		if !c.dedup.shouldAlert(p.ID, fp, now) {
			continue
		}
		c.dedup.markAlerted(p.ID, fp, now)
		alerted++
		alerts.add(p.GroupPath, stockAlertText(p, fp, now))
	}

	if err := c.dedup.store.Persist(); err != nil {
		c.log.Warn("stock cache persist failed", logx.Err(err))
	}

	c.log.Info("stock check finished",
		logx.Int("products", processed),
		logx.Int("alerted", alerted),
		logx.Int("zero_stock", zeroCount),
		logx.Int("below_min", belowMin))

	if alerts.empty() {
		return nil
	}
	header := "📊 " + bold("УВЕДОМЛЕНИЯ ПО ОСТАТКАМ")
	return alerts.notifications(header, 5)
}

func (c *StockChecker) Purge(now time.Time) int {
	return c.dedup.store.PurgeExpired(now, c.retention)
}

func stockAlertText(p domain.Product, fp string, now time.Time) string {
	head := fmt.Sprintf("⚠️ %s", bold(fmt.Sprintf("Товар: %s достиг минимума!", p.Name)))
	if fp == stockZero {
		head = fmt.Sprintf("🛑 %s", bold(fmt.Sprintf("Товар: %s закончился!", p.Name)))
	}
	return fmt.Sprintf("%s\n▸ Остаток: %d (минимум: %d)\n▸ %s",
		head, int(p.Stock), int(p.MinBalance), now.Format("02.01.2006 15:04"))
}
