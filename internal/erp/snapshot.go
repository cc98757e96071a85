package erp

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"skladbot/internal/domain"
	logx "skladbot/pkg/logx"
)

const expirationAttr = "Срок годности"

type folderInfo struct {
	name     string
	parentID string
}

// FetchSnapshot loads every product together with its resolved group path.
// Malformed rows are skipped with a warning; a page-level failure after
// retries aborts the whole fetch so the monitor can skip the cycle.
func (c *Client) FetchSnapshot(ctx context.Context) (*domain.Snapshot, error) {
	folders, err := c.fetchFolders(ctx)
	if err != nil {
		return nil, err
	}

	snap := &domain.Snapshot{FetchedAt: time.Now()}
	offset := 0
	for {
		params := url.Values{
			"limit":  {strconv.Itoa(c.cfg.RequestLimit)},
			"offset": {strconv.Itoa(offset)},
			"filter": {"type=product"},
		}
		var page assortmentListResponse
		if err := c.getRetry(ctx, "entity/assortment", params, &page); err != nil {
			return nil, err
		}

		for _, row := range page.Rows {
			p, ok := c.parseProduct(row, folders)
			if !ok {
				continue
			}
			snap.Products = append(snap.Products, p)
		}

		if len(page.Rows) < c.cfg.RequestLimit {
			break
		}
		offset += len(page.Rows)
		if err := c.pagePause(ctx); err != nil {
			return nil, &RequestError{Endpoint: "entity/assortment", Err: err}
		}
	}

	c.log.Info("snapshot fetched", logx.Int("products", len(snap.Products)))
	return snap, nil
}

func (c *Client) fetchFolders(ctx context.Context) (map[string]folderInfo, error) {
	folders := map[string]folderInfo{}
	offset := 0
	for {
		params := url.Values{
			"limit":  {strconv.Itoa(c.cfg.RequestLimit)},
			"offset": {strconv.Itoa(offset)},
		}
		var page folderListResponse
		if err := c.getRetry(ctx, "entity/productfolder", params, &page); err != nil {
			return nil, err
		}

		for _, f := range page.Rows {
			if f.ID == "" {
				continue
			}
			folders[f.ID] = folderInfo{
				name:     f.Name,
				parentID: idFromHref(f.Parent.Meta.Href),
			}
		}

		if len(page.Rows) < c.cfg.RequestLimit {
			break
		}
		offset += len(page.Rows)
		if err := c.pagePause(ctx); err != nil {
			return nil, &RequestError{Endpoint: "entity/productfolder", Err: err}
		}
	}
	c.log.Debug("product folders fetched", logx.Int("count", len(folders)))
	return folders, nil
}

func (c *Client) parseProduct(row assortmentRow, folders map[string]folderInfo) (domain.Product, bool) {
	if row.ID == "" {
		c.log.Warn("product row without id skipped", logx.String("name", row.Name))
		return domain.Product{}, false
	}

	p := domain.Product{
		ID:        row.ID,
		Name:      row.Name,
		Stock:     row.Stock,
		GroupPath: groupPath(idFromHref(row.Folder.Meta.Href), folders),
	}
	if p.Name == "" {
		p.Name = "Без названия"
	}
	if row.MinBalance != nil {
		p.MinBalance = *row.MinBalance
	}

	for _, attr := range row.Attributes {
		if attr.Name != expirationAttr {
			continue
		}
		s, _ := attr.Value.(string)
		if s == "" {
			continue
		}
		if t := domain.ParseDate(s); !t.IsZero() {
			p.Expiration = t
		} else {
			c.log.Warn("unparsable expiration attribute skipped",
				logx.String("product", p.Name), logx.String("value", s))
		}
	}

	return p, true
}

// groupPath walks the folder parent chain root-first ("Группа > Подгруппа").
func groupPath(folderID string, folders map[string]folderInfo) string {
	if folderID == "" {
		return "Без группы"
	}

	var parts []string
	seen := map[string]bool{}
	for id := folderID; id != "" && !seen[id]; {
		seen[id] = true
		f, ok := folders[id]
		if !ok {
			break
		}
		parts = append(parts, f.name)
		id = f.parentID
	}
	if len(parts) == 0 {
		return "Без группы"
	}

	// Reverse: collected leaf-first.
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += " > " + p
	}
	return out
}
