package bot

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"skladbot/internal/cache"
	"skladbot/internal/erp"
	"skladbot/internal/monitor"
	kit "skladbot/internal/transport"
	logx "skladbot/pkg/logx"
)

type fakeAdapter struct {
	mu    sync.Mutex
	texts []string
}

func (a *fakeAdapter) Start(ctx context.Context, out chan<- kit.Message) error { return nil }
func (a *fakeAdapter) Stop(ctx context.Context) error                          { return nil }

func (a *fakeAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) error {
	a.mu.Lock()
	a.texts = append(a.texts, text)
	a.mu.Unlock()
	return nil
}

func (a *fakeAdapter) sent() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.texts...)
}

type fakeDirectory struct {
	mu       sync.Mutex
	existing map[string]bool
	created  []string
	findErr  error
	offline  bool
}

func (d *fakeDirectory) CheckConnection(ctx context.Context) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.offline
}

func (d *fakeDirectory) FindCounterparty(ctx context.Context, phone string) (erp.Counterparty, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.findErr != nil {
		return erp.Counterparty{}, false, d.findErr
	}
	if d.existing[phone] {
		return erp.Counterparty{ID: "cp-1", Name: phone, CompanyType: "individual", Phone: phone}, true, nil
	}
	return erp.Counterparty{}, false, nil
}

func (d *fakeDirectory) CreateCounterparty(ctx context.Context, phone string) (erp.Counterparty, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.created = append(d.created, phone)
	return erp.Counterparty{ID: "cp-new", Name: phone, CompanyType: "individual", Phone: phone}, nil
}

func newTestRouter(t *testing.T, cfg Config, dir *fakeDirectory) (*Router, *fakeAdapter, cache.Store) {
	t.Helper()
	adapter := &fakeAdapter{}
	phones, err := cache.Open(cache.Config{Path: filepath.Join(t.TempDir(), "phones.json")}, logx.Nop())
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	sched, err := monitor.ParseSchedule("1h")
	if err != nil {
		t.Fatal(err)
	}
	mon := monitor.New(monitor.Config{Schedule: sched}, nil, nil, nil, logx.Nop())
	return NewRouter(cfg, adapter, dir, phones, mon, logx.Nop()), adapter, phones
}

func msg(text string) kit.Message {
	return kit.Message{ID: 1, ChatID: 100, FromID: 42, Text: text}
}

func TestRouterCreatesCounterparty(t *testing.T) {
	dir := &fakeDirectory{}
	r, adapter, phones := newTestRouter(t, Config{}, dir)

	r.handle(context.Background(), msg("8 (029) 123-45-67"))

	if len(dir.created) != 1 || dir.created[0] != "+375291234567" {
		t.Fatalf("created = %v", dir.created)
	}
	sent := adapter.sent()
	if len(sent) != 1 || !strings.Contains(sent[0], "создан") {
		t.Fatalf("replies = %v", sent)
	}
	if _, ok := phones.Get("+375291234567"); !ok {
		t.Fatal("phone not cached")
	}
}

func TestRouterSkipsExistingCounterparty(t *testing.T) {
	dir := &fakeDirectory{existing: map[string]bool{"+79161234567": true}}
	r, adapter, _ := newTestRouter(t, Config{}, dir)

	r.handle(context.Background(), msg("89161234567"))

	if len(dir.created) != 0 {
		t.Fatalf("created = %v", dir.created)
	}
	sent := adapter.sent()
	if len(sent) != 1 || !strings.Contains(sent[0], "уже есть") {
		t.Fatalf("replies = %v", sent)
	}
}

func TestRouterCachedPhoneSkipsLookup(t *testing.T) {
	dir := &fakeDirectory{}
	r, adapter, phones := newTestRouter(t, Config{}, dir)
	phones.Put("+79161234567", cache.Record{FirstSeen: time.Now(), Fingerprint: "known"})

	r.handle(context.Background(), msg("89161234567"))

	if len(dir.created) != 0 {
		t.Fatalf("created = %v", dir.created)
	}
	if sent := adapter.sent(); len(sent) != 1 || !strings.Contains(sent[0], "уже есть") {
		t.Fatalf("replies = %v", sent)
	}
}

func TestRouterLookupFailure(t *testing.T) {
	dir := &fakeDirectory{findErr: errors.New("api down")}
	r, adapter, phones := newTestRouter(t, Config{}, dir)

	r.handle(context.Background(), msg("89161234567"))

	if sent := adapter.sent(); len(sent) != 1 || !strings.Contains(sent[0], "недоступен") {
		t.Fatalf("replies = %v", sent)
	}
	// Failed lookups must not poison the cache.
	if _, ok := phones.Get("+79161234567"); ok {
		t.Fatal("phone cached despite failure")
	}
}

func TestRouterRejectsNonPhoneText(t *testing.T) {
	dir := &fakeDirectory{}
	r, adapter, _ := newTestRouter(t, Config{}, dir)

	r.handle(context.Background(), msg("привет, как дела?"))

	if sent := adapter.sent(); len(sent) != 1 || !strings.Contains(sent[0], "/help") {
		t.Fatalf("replies = %v", sent)
	}
}

func TestRouterCommands(t *testing.T) {
	dir := &fakeDirectory{}
	r, adapter, _ := newTestRouter(t, Config{}, dir)

	r.handle(context.Background(), msg("/start"))
	r.handle(context.Background(), msg("/help"))
	r.handle(context.Background(), msg("/status@skladbot"))
	r.handle(context.Background(), msg("/unknown"))

	sent := adapter.sent()
	if len(sent) != 4 {
		t.Fatalf("replies = %d, want 4", len(sent))
	}
	if !strings.Contains(sent[2], "Мониторинг") {
		t.Fatalf("status reply: %q", sent[2])
	}
	if !strings.Contains(sent[3], "Неизвестная команда") {
		t.Fatalf("unknown reply: %q", sent[3])
	}
}

func TestRouterStatusReportsOfflineERP(t *testing.T) {
	dir := &fakeDirectory{offline: true}
	r, adapter, _ := newTestRouter(t, Config{}, dir)

	r.handle(context.Background(), msg("/status"))

	if sent := adapter.sent(); len(sent) != 1 || !strings.Contains(sent[0], "недоступен") {
		t.Fatalf("replies = %v", sent)
	}
}

func TestRouterAccessControl(t *testing.T) {
	dir := &fakeDirectory{}
	r, adapter, _ := newTestRouter(t, Config{AllowedUserIDs: []int64{1}}, dir)

	r.handle(context.Background(), msg("/start")) // FromID 42, not allowed
	if sent := adapter.sent(); len(sent) != 0 {
		t.Fatalf("unauthorized user got replies: %v", sent)
	}

	r.Apply(Config{AllowedUserIDs: []int64{42}})
	r.handle(context.Background(), msg("/start"))
	if sent := adapter.sent(); len(sent) != 1 {
		t.Fatalf("allowed user got %d replies", len(sent))
	}
}

func TestRouterRunStopsWhenChannelCloses(t *testing.T) {
	dir := &fakeDirectory{}
	r, adapter, _ := newTestRouter(t, Config{}, dir)

	in := make(chan kit.Message, 4)
	go r.Run(context.Background(), in)

	in <- msg("/start")
	close(in)

	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("router did not stop on channel close")
	}
	if sent := adapter.sent(); len(sent) != 1 {
		t.Fatalf("replies = %v", sent)
	}
}
