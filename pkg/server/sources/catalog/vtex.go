package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/server/sources"
)

const vtexPageSize = 20

// VTEXSource searches a pharmacy storefront running on VTEX through its
// public catalog API. Many Brazilian drugstore chains expose the same API,
// so several instances can be configured with distinct name and base_url.
type VTEXSource struct {
	*sources.BaseStrategy

	baseURL  string
	pageSize int
}

type vtexProduct struct {
	ProductName string     `json:"productName"`
	Items       []vtexItem `json:"items"`
}

type vtexItem struct {
	Name    string       `json:"name"`
	Sellers []vtexSeller `json:"sellers"`
}

type vtexSeller struct {
	CommertialOffer vtexOffer `json:"commertialOffer"`
}

type vtexOffer struct {
	Price             decimal.Decimal `json:"Price"`
	ListPrice         decimal.Decimal `json:"ListPrice"`
	AvailableQuantity int             `json:"AvailableQuantity"`
}

// NewVTEXSource creates a VTEX catalog strategy. base_url is required.
func NewVTEXSource(config map[string]interface{}) (sources.Strategy, error) {
	base, err := sources.ParseBaseConfig("vtex", config, []sources.ItemType{sources.ItemTypeMedicine})
	if err != nil {
		return nil, fmt.Errorf("vtex: %w", err)
	}

	baseURL := strings.TrimRight(sources.GetString(config, "base_url", ""), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("vtex: %w", sources.ErrBaseURLRequired)
	}

	return &VTEXSource{
		BaseStrategy: sources.NewBaseStrategy(base),
		baseURL:      baseURL,
		pageSize:     sources.GetInt(config, "page_size", vtexPageSize),
	}, nil
}

// FetchPrices implements sources.Strategy.
func (s *VTEXSource) FetchPrices(ctx context.Context, q sources.Query) []float64 {
	return s.Run(ctx, q, s.fetch)
}

func (s *VTEXSource) fetch(ctx context.Context, q sources.Query) ([]decimal.Decimal, error) {
	params := url.Values{}
	params.Set("ft", q.SearchTerms())
	params.Set("_from", "0")
	params.Set("_to", fmt.Sprint(s.pageSize-1))
	endpoint := fmt.Sprintf("%s/api/catalog_system/pub/products/search?%s", s.baseURL, params.Encode())

	body, err := s.Get(ctx, endpoint, "application/json")
	if err != nil {
		return nil, err
	}

	var products []vtexProduct
	if err := json.Unmarshal(body, &products); err != nil {
		return nil, fmt.Errorf("%w: %v", sources.ErrInvalidResponse, err)
	}

	prices := make([]decimal.Decimal, 0, len(products))
	for _, p := range products {
		if !sources.MatchesQuery(p.ProductName, q) {
			continue
		}
		if best, ok := lowestAvailableOffer(p); ok {
			prices = append(prices, best)
		}
	}

	s.Logger().Debug("VTEX products matched",
		"item", q.ItemName,
		"products", len(products),
		"matched", len(prices))

	return prices, nil
}

// lowestAvailableOffer picks one price per product: the cheapest seller offer in stock.
func lowestAvailableOffer(p vtexProduct) (decimal.Decimal, bool) {
	var best decimal.Decimal
	found := false
	for _, item := range p.Items {
		for _, seller := range item.Sellers {
			offer := seller.CommertialOffer
			if offer.AvailableQuantity <= 0 || !offer.Price.IsPositive() {
				continue
			}
			if !found || offer.Price.LessThan(best) {
				best = offer.Price
				found = true
			}
		}
	}
	return best, found
}
