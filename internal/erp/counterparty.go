package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	logx "skladbot/pkg/logx"
)

// Counterparty is a trimmed view of a MoySklad counterparty.
type Counterparty struct {
	ID          string
	Name        string
	CompanyType string
	Phone       string
}

// FindCounterparty looks up a counterparty whose name matches the normalized
// phone number. Returns (zero, false, nil) when nothing matches.
func (c *Client) FindCounterparty(ctx context.Context, phone string) (Counterparty, bool, error) {
	params := url.Values{
		"limit":  {"1"},
		"filter": {"name=" + phone},
	}
	var out counterpartyListResponse
	if err := c.getRetry(ctx, "entity/counterparty", params, &out); err != nil {
		return Counterparty{}, false, err
	}
	if len(out.Rows) == 0 {
		return Counterparty{}, false, nil
	}
	r := out.Rows[0]
	return Counterparty{ID: r.ID, Name: r.Name, CompanyType: r.CompanyType, Phone: r.Phone}, true, nil
}

// CreateCounterparty registers the phone as an individual counterparty.
func (c *Client) CreateCounterparty(ctx context.Context, phone string) (Counterparty, error) {
	payload := map[string]any{
		"name":        phone,
		"companyType": "individual",
		"phone":       phone,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return Counterparty{}, &RequestError{Endpoint: "entity/counterparty", Err: err}
	}

	var out counterpartyRow
	if err := c.do(ctx, http.MethodPost, "entity/counterparty", nil, bytes.NewReader(b), &out); err != nil {
		return Counterparty{}, err
	}
	c.log.Info("counterparty created", logx.String("phone", phone))
	return Counterparty{ID: out.ID, Name: out.Name, CompanyType: out.CompanyType, Phone: out.Phone}, nil
}

const counterpartyFetchParallelism = 5

// LoadCounterparties returns name -> companyType for every non-archived
// counterparty. Pages are fetched with bounded parallelism; this is the warm
// path for the phone cache, so a single page failure fails the whole load.
func (c *Client) LoadCounterparties(ctx context.Context) (map[string]string, error) {
	var head counterpartyListResponse
	if err := c.getRetry(ctx, "entity/counterparty", url.Values{"limit": {"1"}, "filter": {"archived=false"}}, &head); err != nil {
		return nil, err
	}
	total := head.Meta.Size
	limit := c.cfg.RequestLimit

	out := make(map[string]string, total)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(counterpartyFetchParallelism)

	for offset := 0; offset < total; offset += limit {
		offset := offset
		g.Go(func() error {
			params := url.Values{
				"limit":  {strconv.Itoa(limit)},
				"offset": {strconv.Itoa(offset)},
				"filter": {"archived=false"},
			}
			var page counterpartyListResponse
			if err := c.getRetry(gctx, "entity/counterparty", params, &page); err != nil {
				return err
			}
			mu.Lock()
			for _, r := range page.Rows {
				if r.Name == "" {
					continue
				}
				ct := r.CompanyType
				if ct == "" {
					ct = "legal"
				}
				out[r.Name] = ct
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	c.log.Info("counterparties loaded", logx.Int("count", len(out)))
	return out, nil
}
