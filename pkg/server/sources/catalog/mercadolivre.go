// Package catalog implements price strategies backed by JSON catalog and search APIs.
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

const (
	mercadoLivreBaseURL = "https://api.mercadolibre.com"
	mercadoLivreSite    = "MLB"
	mercadoLivreLimit   = 20
)

// MercadoLivreSource searches the Mercado Livre public listing API.
// https://developers.mercadolivre.com.br/pt_br/itens-e-buscas
type MercadoLivreSource struct {
	*sources.BaseStrategy

	baseURL string
	site    string
	limit   int
}

type mercadoLivreResponse struct {
	Results []mercadoLivreResult `json:"results"`
}

type mercadoLivreResult struct {
	Title             string          `json:"title"`
	Price             decimal.Decimal `json:"price"`
	CurrencyID        string          `json:"currency_id"`
	AvailableQuantity int             `json:"available_quantity"`
}

// NewMercadoLivreSource creates a Mercado Livre strategy. It prices both
// medicines and inputs unless item_types says otherwise.
func NewMercadoLivreSource(config map[string]interface{}) (sources.Strategy, error) {
	base, err := sources.ParseBaseConfig("mercadolivre", config, sources.ItemTypes)
	if err != nil {
		return nil, fmt.Errorf("mercadolivre: %w", err)
	}

	return &MercadoLivreSource{
		BaseStrategy: sources.NewBaseStrategy(base),
		baseURL:      strings.TrimRight(sources.GetString(config, "base_url", mercadoLivreBaseURL), "/"),
		site:         sources.GetString(config, "site", mercadoLivreSite),
		limit:        sources.GetInt(config, "limit", mercadoLivreLimit),
	}, nil
}

// FetchPrices implements sources.Strategy.
func (s *MercadoLivreSource) FetchPrices(ctx context.Context, q sources.Query) []float64 {
	return s.Run(ctx, q, s.fetch)
}

func (s *MercadoLivreSource) fetch(ctx context.Context, q sources.Query) ([]decimal.Decimal, error) {
	params := url.Values{}
	params.Set("q", q.SearchTerms())
	params.Set("limit", fmt.Sprint(s.limit))
	endpoint := fmt.Sprintf("%s/sites/%s/search?%s", s.baseURL, s.site, params.Encode())

	body, err := s.Get(ctx, endpoint, "application/json")
	if err != nil {
		return nil, err
	}

	var data mercadoLivreResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", sources.ErrInvalidResponse, err)
	}

	prices := make([]decimal.Decimal, 0, len(data.Results))
	for _, r := range data.Results {
		if r.CurrencyID != "" && r.CurrencyID != "BRL" {
			continue
		}
		if r.AvailableQuantity <= 0 {
			continue
		}
		if !sources.MatchesQuery(r.Title, q) {
			continue
		}
		prices = append(prices, r.Price)
	}

	s.Logger().Debug("Mercado Livre listings matched",
		"item", q.ItemName,
		"results", len(data.Results),
		"matched", len(prices))

	return prices, nil
}
