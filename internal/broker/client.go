package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"stockbridge/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultRequestTimeout   = 15 * time.Second
	defaultContractsTimeout = 120 * time.Second
)

var ErrNotLoggedIn = errors.New("shioaji gateway: not logged in")

type Config struct {
	BaseURL          string
	APIKey           string
	SecretKey        string
	RequestTimeout   time.Duration
	ContractsTimeout time.Duration
}

// Client talks to a Shioaji HTTP gateway. Login exchanges the API key pair
// for a session token; every market-data call rides on that token until
// Logout revokes it.
type Client struct {
	baseURL          string
	apiKey           string
	secretKey        string
	requestTimeout   time.Duration
	contractsTimeout time.Duration
	httpc            *http.Client
	tracer           trace.Tracer

	mu    sync.RWMutex
	token string
}

func NewClient(cfg Config, tracer trace.Tracer) *Client {
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	contractsTimeout := cfg.ContractsTimeout
	if contractsTimeout <= 0 {
		contractsTimeout = defaultContractsTimeout
	}
	return &Client{
		baseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:           cfg.APIKey,
		secretKey:        cfg.SecretKey,
		requestTimeout:   requestTimeout,
		contractsTimeout: contractsTimeout,
		httpc:            &http.Client{},
		tracer:           tracer,
	}
}

type loginRequest struct {
	APIKey    string `json:"api_key"`
	SecretKey string `json:"secret_key"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (c *Client) Login(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "broker.login")
	defer span.End()

	var out loginResponse
	err := c.doJSON(ctx, http.MethodPost, "/v1/login", loginRequest{
		APIKey:    c.apiKey,
		SecretKey: c.secretKey,
	}, &out, false, c.requestTimeout)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to log in to shioaji gateway: %w", err)
	}
	if out.Token == "" {
		err := errors.New("shioaji gateway: login returned an empty token")
		span.RecordError(err)
		return err
	}

	c.mu.Lock()
	c.token = out.Token
	c.mu.Unlock()
	return nil
}

func (c *Client) Logout(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "broker.logout")
	defer span.End()

	err := c.doJSON(ctx, http.MethodPost, "/v1/logout", nil, nil, true, c.requestTimeout)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to log out from shioaji gateway: %w", err)
	}

	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
	return nil
}

type contractPayload struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
	Category string `json:"category"`
}

type contractsResponse struct {
	Contracts []contractPayload `json:"contracts"`
}

// FetchContracts downloads the stock contract master list. Contract
// downloads are slow on the gateway side, so this call runs under the longer
// contracts timeout.
func (c *Client) FetchContracts(ctx context.Context) ([]*domain.Contract, error) {
	ctx, span := c.tracer.Start(ctx, "broker.fetch-contracts")
	defer span.End()

	var out contractsResponse
	err := c.doJSON(ctx, http.MethodGet, "/v1/contracts/stocks", nil, &out, true, c.contractsTimeout)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to fetch contracts: %w", err)
	}

	contracts := make([]*domain.Contract, 0, len(out.Contracts))
	for _, p := range out.Contracts {
		if strings.TrimSpace(p.Code) == "" {
			continue
		}
		category := p.Category
		if category == "" {
			category = "Unknown"
		}
		contracts = append(contracts, &domain.Contract{
			Code:     p.Code,
			Name:     p.Name,
			Exchange: domain.Exchange(p.Exchange),
			Category: category,
		})
	}
	span.SetAttributes(attribute.Int("broker.contracts", len(contracts)))
	return contracts, nil
}

type snapshotPayload struct {
	Code        string  `json:"code"`
	Exchange    string  `json:"exchange"`
	Close       float64 `json:"close"`
	Open        float64 `json:"open"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	ChangeRate  float64 `json:"change_rate"`
	TotalVolume int64   `json:"total_volume"`
	TS          int64   `json:"ts"`
}

type snapshotsResponse struct {
	Snapshots []snapshotPayload `json:"snapshots"`
}

// Snapshots returns the latest quote per code. Codes the gateway does not
// recognize are silently absent from the result.
func (c *Client) Snapshots(ctx context.Context, codes []string) ([]*domain.Quote, error) {
	ctx, span := c.tracer.Start(ctx, "broker.snapshots")
	span.SetAttributes(attribute.Int("broker.codes", len(codes)))
	defer span.End()

	q := url.Values{}
	q.Set("codes", strings.Join(codes, ","))

	var out snapshotsResponse
	err := c.doJSON(ctx, http.MethodGet, "/v1/market/snapshots?"+q.Encode(), nil, &out, true, c.requestTimeout)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to fetch snapshots: %w", err)
	}

	quotes := make([]*domain.Quote, 0, len(out.Snapshots))
	for _, s := range out.Snapshots {
		quotes = append(quotes, &domain.Quote{
			Code:      s.Code,
			Exchange:  domain.Exchange(s.Exchange),
			Price:     s.Close,
			Open:      s.Open,
			High:      s.High,
			Low:       s.Low,
			ChangePct: s.ChangeRate,
			Volume:    s.TotalVolume,
			Timestamp: time.Unix(0, s.TS).UTC(),
		})
	}
	return quotes, nil
}

type kbarPayload struct {
	TS     int64   `json:"ts"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

type kbarsResponse struct {
	KBars []kbarPayload `json:"kbars"`
}

func (c *Client) KBars(ctx context.Context, code string, start, end time.Time) ([]*domain.Candle, error) {
	ctx, span := c.tracer.Start(ctx, "broker.kbars")
	span.SetAttributes(attribute.String("broker.code", code))
	defer span.End()

	q := url.Values{}
	q.Set("code", code)
	q.Set("start", start.Format(domain.DateLayout))
	q.Set("end", end.Format(domain.DateLayout))

	var out kbarsResponse
	err := c.doJSON(ctx, http.MethodGet, "/v1/market/kbars?"+q.Encode(), nil, &out, true, c.requestTimeout)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to fetch kbars for %s: %w", code, err)
	}

	candles := make([]*domain.Candle, 0, len(out.KBars))
	for _, k := range out.KBars {
		candles = append(candles, &domain.Candle{
			Code:      code,
			Timestamp: time.Unix(0, k.TS).UTC(),
			Open:      k.Open,
			High:      k.High,
			Low:       k.Low,
			Close:     k.Close,
			Volume:    k.Volume,
		})
	}
	span.SetAttributes(attribute.Int("broker.kbars", len(candles)))
	return candles, nil
}

func (c *Client) sessionToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

type gatewayError struct {
	Detail string `json:"detail"`
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any, authed bool, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		token := c.sessionToken()
		if token == "" {
			return ErrNotLoggedIn
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var gwErr gatewayError
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &gwErr) == nil && gwErr.Detail != "" {
			return fmt.Errorf("shioaji gateway: %s: %s", resp.Status, gwErr.Detail)
		}
		return fmt.Errorf("shioaji gateway: %s", resp.Status)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
