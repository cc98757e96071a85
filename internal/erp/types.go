package erp

import "fmt"

// Wire types for the MoySklad remap 1.2 JSON API. Only the fields the bot
// reads are declared.

type meta struct {
	Href string `json:"href"`
	Size int    `json:"size"`
}

type folderRow struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Parent struct {
		Meta meta `json:"meta"`
	} `json:"productFolder"`
}

type folderListResponse struct {
	Meta meta        `json:"meta"`
	Rows []folderRow `json:"rows"`
}

type assortmentRow struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Stock      float64 `json:"stock"`
	MinBalance *float64 `json:"minimumBalance"`
	Folder     struct {
		Meta meta `json:"meta"`
	} `json:"productFolder"`
	Attributes []attribute `json:"attributes"`
}

type assortmentListResponse struct {
	Meta meta            `json:"meta"`
	Rows []assortmentRow `json:"rows"`
}

type attribute struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

type counterpartyRow struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	CompanyType string `json:"companyType"`
	Phone       string `json:"phone"`
}

type counterpartyListResponse struct {
	Meta meta              `json:"meta"`
	Rows []counterpartyRow `json:"rows"`
}

// RequestError is any transport or HTTP-level API failure. The monitor
// treats it as transient: log, skip the cycle, wait for the next tick.
type RequestError struct {
	Endpoint string
	Status   int
	Err      error
}

func (e *RequestError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("moysklad: %s: http %d", e.Endpoint, e.Status)
	}
	return fmt.Sprintf("moysklad: %s: %v", e.Endpoint, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }
