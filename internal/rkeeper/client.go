package rkeeper

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OrderSummary is one row of the GetOrderList response. The listing carries
// header data only; dish lines arrive exclusively through webhooks.
type OrderSummary struct {
	VisitID     string
	OrderIdent  string
	TableCode   string
	OrderSum    float64
	TotalPieces int
	Paid        bool
	Finished    bool
}

// Client talks to the RK7 XML API. It is used by the periodic order resync,
// never by webhook handling.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
}

func NewClient(baseURL, username, password string) *Client {
	return &Client{
		baseURL:  baseURL,
		username: username,
		password: password,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

const orderListRequest = `<?xml version="1.0" encoding="UTF-8"?>
<RK7Query>
    <RK7CMD CMD="GetOrderList" onlyOpened="1"/>
</RK7Query>`

type rk7Response struct {
	XMLName   xml.Name       `xml:"RK7QueryResult"`
	Status    string         `xml:"Status,attr"`
	ErrorText string         `xml:"ErrorText,attr"`
	Visits    []rk7VisitElem `xml:"Visit"`
}

type rk7VisitElem struct {
	VisitID string         `xml:"VisitID,attr"`
	Orders  []rk7OrderElem `xml:"Order"`
}

type rk7OrderElem struct {
	OrderIdent  string `xml:"OrderIdent,attr"`
	TableCode   string `xml:"TableCode,attr"`
	OrderSum    string `xml:"OrderSum,attr"`
	TotalPieces string `xml:"TotalPieces,attr"`
	Paid        string `xml:"Paid,attr"`
	Finished    string `xml:"Finished,attr"`
}

// GetOrderList fetches the currently open orders from rKeeper.
func (c *Client) GetOrderList(ctx context.Context) ([]OrderSummary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL,
		bytes.NewBufferString(orderListRequest))
	if err != nil {
		return nil, fmt.Errorf("rkeeper request: %w", err)
	}
	req.Header.Set("Content-Type", "application/xml; charset=utf-8")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rkeeper request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rkeeper: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("rkeeper response: %w", err)
	}

	var parsed rk7Response
	if err := xml.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("rkeeper response: %w", err)
	}
	if parsed.Status != "Ok" {
		return nil, fmt.Errorf("rkeeper: api error: %s", parsed.ErrorText)
	}

	var orders []OrderSummary
	for _, visit := range parsed.Visits {
		for _, ord := range visit.Orders {
			orders = append(orders, OrderSummary{
				VisitID:     visit.VisitID,
				OrderIdent:  ord.OrderIdent,
				TableCode:   ord.TableCode,
				OrderSum:    float64(atoi(ord.OrderSum)) / 100.0,
				TotalPieces: atoi(ord.TotalPieces),
				Paid:        parseFlag(ord.Paid),
				Finished:    parseFlag(ord.Finished),
			})
		}
	}
	return orders, nil
}
