package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"anchor-router/internal/anchor"
)

// QuoteClientOptions parameterise the HTTP quote feed client.
type QuoteClientOptions struct {
	Timeout   time.Duration
	UserAgent string
}

// QuoteClient polls anchor quote endpoints. Each anchor exposes
// GET {endpoint}?pair=BASE/QUOTE returning its current offer as JSON.
type QuoteClient struct {
	opts   QuoteClientOptions
	client *http.Client
	logger zerolog.Logger
}

// NewQuoteClient constructs a quote feed client.
func NewQuoteClient(opts QuoteClientOptions, logger zerolog.Logger) *QuoteClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &QuoteClient{
		opts:   opts,
		client: &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "quote_feed").Logger(),
	}
}

// FetchQuote retrieves the anchor's current quote for a pair.
func (c *QuoteClient) FetchQuote(ctx context.Context, endpoint string, pair anchor.AssetPair) (anchor.Quote, error) {
	if endpoint == "" {
		return anchor.Quote{}, errors.New("quote endpoint not configured")
	}
	if pair == "" {
		return anchor.Quote{}, errors.New("asset pair required")
	}

	target, err := url.Parse(endpoint)
	if err != nil {
		return anchor.Quote{}, fmt.Errorf("parse quote endpoint: %w", err)
	}
	query := target.Query()
	query.Set("pair", string(pair))
	target.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return anchor.Quote{}, fmt.Errorf("create quote request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return anchor.Quote{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return anchor.Quote{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return anchor.Quote{}, parseHTTPError(resp.StatusCode, payload)
	}

	var body quotePayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return anchor.Quote{}, fmt.Errorf("decode quote payload: %w", err)
	}

	quote, err := body.toQuote(pair)
	if err != nil {
		return anchor.Quote{}, err
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("pair", string(pair)).
		Str("rate", quote.Rate.String()).
		Msg("quote fetched")
	return quote, nil
}

type quotePayload struct {
	Rate       string `json:"rate"`
	FeePercent string `json:"fee_percent"`
	MinAmount  string `json:"min_amount"`
	MaxAmount  string `json:"max_amount"`
}

func (p quotePayload) toQuote(pair anchor.AssetPair) (anchor.Quote, error) {
	rate, err := decimal.NewFromString(p.Rate)
	if err != nil {
		return anchor.Quote{}, fmt.Errorf("parse rate: %w", err)
	}
	fee, err := decimal.NewFromString(p.FeePercent)
	if err != nil {
		return anchor.Quote{}, fmt.Errorf("parse fee percent: %w", err)
	}
	min, err := decimal.NewFromString(p.MinAmount)
	if err != nil {
		return anchor.Quote{}, fmt.Errorf("parse min amount: %w", err)
	}
	max, err := decimal.NewFromString(p.MaxAmount)
	if err != nil {
		return anchor.Quote{}, fmt.Errorf("parse max amount: %w", err)
	}

	return anchor.Quote{
		Pair:        pair,
		Rate:        rate,
		FeePercent:  fee,
		MinAmount:   min,
		MaxAmount:   max,
		SubmittedAt: time.Now().UTC(),
	}, nil
}

type errorResponse struct {
	ErrorType   string `json:"errorType"`
	Description string `json:"description"`
	Message     string `json:"message"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Description != "" {
			return fmt.Errorf("anchor feed error (%d): %s", status, apiErr.Description)
		}
		if apiErr.Message != "" {
			return fmt.Errorf("anchor feed error (%d): %s", status, apiErr.Message)
		}
		if apiErr.ErrorType != "" {
			return fmt.Errorf("anchor feed error (%d): %s", status, apiErr.ErrorType)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("anchor feed error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("anchor feed error (%d)", status)
}

var _ QuoteSource = (*QuoteClient)(nil)
