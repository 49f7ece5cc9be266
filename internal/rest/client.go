// Package rest exposes the one REST call the harness needs: the cross-pair
// exchange rate used to align virtual order books with their primary pair.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/apiaudit/pkg/retrier"
)

const defaultTimeout = 10 * time.Second

// Client minimal REST client.
type Client struct {
	baseURL string
	http    *http.Client
	retrier *retrier.Retrier
}

// New creates a client for the given API base URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
		retrier: retrier.New(retrier.WithMaxRetries(3)),
	}
}

// ExchangeRate fetches the current conversion rate between two currencies.
func (c *Client) ExchangeRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	return retrier.DoWithData(c.retrier, ctx, func(ctx context.Context) (decimal.Decimal, error) {
		return c.fetchRate(ctx, from, to)
	})
}

func (c *Client) fetchRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	body, err := json.Marshal(map[string]string{"ccy1": from, "ccy2": to})
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "marshal fx request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/calc/fx", bytes.NewReader(body))
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "build fx request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "fx request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "read fx response")
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, errors.Errorf("fx request failed: %s: %s", resp.Status, raw)
	}

	var rate []json.Number
	if err := json.Unmarshal(raw, &rate); err != nil {
		return decimal.Zero, errors.Wrap(err, "decode fx response")
	}
	if len(rate) == 0 {
		return decimal.Zero, errors.New("empty fx response")
	}

	d, err := decimal.NewFromString(rate[0].String())
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "bad fx rate %q", rate[0])
	}
	return d, nil
}
