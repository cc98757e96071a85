package monitor

import (
	"context"
	"strings"
	"time"

	"skladbot/internal/cache"
	"skladbot/internal/domain"
	kit "skladbot/internal/transport"
)

// Checker evaluates one business condition against a snapshot.
//
// Check performs no network I/O. It consults and updates its own cache
// store (single-writer, see the cache package) and returns the
// notifications that survived deduplication. Malformed snapshot entries are
// skipped, never fatal.
type Checker interface {
	Name() string
	Check(ctx context.Context, snap *domain.Snapshot, now time.Time) []kit.Notification
	// Purge drops cache records older than the checker's retention window.
	Purge(now time.Time) int
}

// dedup wraps a cache store with the alert decision rule shared by all
// checkers:
//
//	alert iff no record exists, OR the fingerprint changed, OR the last
//	alert is older than the suppression window.
type dedup struct {
	store    cache.Store
	suppress time.Duration
}

func (d dedup) shouldAlert(key, fingerprint string, now time.Time) bool {
	rec, ok := d.store.Get(key)
	if !ok {
		return true
	}
	if rec.Fingerprint != fingerprint {
		return true
	}
	if d.suppress > 0 && now.Sub(rec.LastAlerted) > d.suppress {
		return true
	}
	return false
}

// markAlerted commits the alert decision. It runs regardless of whether
// delivery later succeeds: a lost message must not suppress the next
// legitimate alert forever, the suppression window bounds the gap instead.
func (d dedup) markAlerted(key, fingerprint string, now time.Time) {
	rec, ok := d.store.Get(key)
	if !ok {
		rec.FirstSeen = now
	}
	rec.Fingerprint = fingerprint
	rec.LastAlerted = now
	d.store.Put(key, rec)
}

// markQuiet records a recovery to a non-alertable state. Only existing
// records are touched (so the cache holds alert history, not the whole
// catalog) and LastAlerted stays put, so a re-drop alerts immediately via
// the fingerprint change.
func (d dedup) markQuiet(key, fingerprint string) {
	rec, ok := d.store.Get(key)
	if !ok || rec.Fingerprint == fingerprint {
		return
	}
	rec.Fingerprint = fingerprint
	d.store.Put(key, rec)
}

// groupedAlerts accumulates alert lines per product group, preserving the
// order groups were first seen so output is stable within a snapshot.
type groupedAlerts struct {
	order  []string
	groups map[string][]string
}

func newGroupedAlerts() *groupedAlerts {
	return &groupedAlerts{groups: map[string][]string{}}
}

func (g *groupedAlerts) add(group, line string) {
	if _, ok := g.groups[group]; !ok {
		g.order = append(g.order, group)
	}
	g.groups[group] = append(g.groups[group], line)
}

func (g *groupedAlerts) empty() bool { return len(g.order) == 0 }

// notifications renders one notification per group: header line plus the
// group's alert lines, blank-line separated. The notifier chunks oversized
// payloads on those same blank lines.
func (g *groupedAlerts) notifications(header string, priority int) []kit.Notification {
	out := make([]kit.Notification, 0, len(g.order))
	for _, group := range g.order {
		var b strings.Builder
		b.WriteString(header)
		b.WriteString(" (")
		b.WriteString(escapeHTML(group))
		b.WriteString(")")
		for _, line := range g.groups[group] {
			b.WriteString("\n\n")
			b.WriteString(line)
		}
		out = append(out, kit.Notification{Text: b.String(), Priority: priority})
	}
	return out
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeHTML(s string) string { return htmlEscaper.Replace(s) }

func bold(s string) string { return "<b>" + escapeHTML(s) + "</b>" }
