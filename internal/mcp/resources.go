package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"stockbridge/internal/domain"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

func registerResources(server *sdkmcp.Server, market MarketReader) {
	server.AddResource(&sdkmcp.Resource{
		URI:         "market://exchanges",
		Name:        "exchanges",
		Description: "Exchanges the gateway lists contracts for",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
		_ = ctx
		return jsonResource(req.Params.URI, domain.Exchanges)
	})

	server.AddResourceTemplate(&sdkmcp.ResourceTemplate{
		URITemplate: "quotes://latest/{code}",
		Name:        "quote-latest",
		Description: "Latest quote for a specific stock code",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
		if market == nil {
			return nil, fmt.Errorf("market service unavailable")
		}

		parsed, err := url.Parse(req.Params.URI)
		if err != nil {
			return nil, sdkmcp.ResourceNotFoundError(req.Params.URI)
		}
		if parsed.Scheme != "quotes" || parsed.Host != "latest" {
			return nil, sdkmcp.ResourceNotFoundError(req.Params.URI)
		}

		code := strings.Trim(strings.TrimSpace(parsed.Path), "/")
		if code == "" {
			return nil, sdkmcp.ResourceNotFoundError(req.Params.URI)
		}

		quotes, _, err := market.GetStockPrices(ctx, []string{code})
		if err != nil {
			return nil, err
		}
		return jsonResource(req.Params.URI, quotes[0])
	})

	server.AddResourceTemplate(&sdkmcp.ResourceTemplate{
		URITemplate: "market://contracts{?exchange,category,limit}",
		Name:        "contracts",
		Description: "Tradable contracts; optional exchange/category/limit query params",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
		if market == nil {
			return nil, fmt.Errorf("market service unavailable")
		}

		parsed, err := url.Parse(req.Params.URI)
		if err != nil {
			return nil, sdkmcp.ResourceNotFoundError(req.Params.URI)
		}
		if parsed.Scheme != "market" || parsed.Host != "contracts" {
			return nil, sdkmcp.ResourceNotFoundError(req.Params.URI)
		}

		filter := domain.ContractFilter{
			Exchange: parsed.Query().Get("exchange"),
			Category: parsed.Query().Get("category"),
		}
		if rawLimit := strings.TrimSpace(parsed.Query().Get("limit")); rawLimit != "" {
			n, err := strconv.Atoi(rawLimit)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("invalid limit: %s", rawLimit)
			}
			filter.Limit = n
		}

		contracts, err := market.ListStocks(ctx, filter)
		if err != nil {
			return nil, err
		}
		return jsonResource(req.Params.URI, contracts)
	})
}

func jsonResource(uri string, payload any) (*sdkmcp.ReadResourceResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &sdkmcp.ReadResourceResult{
		Contents: []*sdkmcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(body),
		}},
	}, nil
}
