// Package web implements price strategies that read public storefront HTML pages.
package web

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/server/sources"
)

// queryPlaceholder is replaced by the escaped search terms in search paths.
const queryPlaceholder = "{query}"

// Site describes where a storefront's search page lives and how to read it.
// Selectors are configuration: storefront markup changes without notice.
type Site struct {
	BaseURL         string
	SearchPath      string
	ProductSelector string
	TitleSelector   string
	PriceSelector   string
}

// HTMLSource scrapes a storefront search page with CSS selectors and falls
// back to schema.org JSON-LD offers embedded in the page.
type HTMLSource struct {
	*sources.BaseStrategy

	site Site
}

// NewHTMLSource builds an HTML strategy from config, using defaults for any
// site field the config leaves out.
func NewHTMLSource(defaultName string, defaults Site, defaultTypes []sources.ItemType, config map[string]interface{}) (*HTMLSource, error) {
	base, err := sources.ParseBaseConfig(defaultName, config, defaultTypes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", defaultName, err)
	}

	site := Site{
		BaseURL:         strings.TrimRight(sources.GetString(config, "base_url", defaults.BaseURL), "/"),
		SearchPath:      sources.GetString(config, "search_path", defaults.SearchPath),
		ProductSelector: sources.GetString(config, "product_selector", defaults.ProductSelector),
		TitleSelector:   sources.GetString(config, "title_selector", defaults.TitleSelector),
		PriceSelector:   sources.GetString(config, "price_selector", defaults.PriceSelector),
	}
	if site.BaseURL == "" {
		return nil, fmt.Errorf("%s: %w", defaultName, sources.ErrBaseURLRequired)
	}
	if !strings.Contains(site.SearchPath, queryPlaceholder) {
		return nil, fmt.Errorf("%s: %w: search_path must contain %s", defaultName, sources.ErrInvalidConfig, queryPlaceholder)
	}

	return &HTMLSource{
		BaseStrategy: sources.NewBaseStrategy(base),
		site:         site,
	}, nil
}

// FetchPrices implements sources.Strategy.
func (s *HTMLSource) FetchPrices(ctx context.Context, q sources.Query) []float64 {
	return s.Run(ctx, q, s.fetch)
}

// SearchURL returns the storefront search URL for a query.
func (s *HTMLSource) SearchURL(q sources.Query) string {
	path := strings.ReplaceAll(s.site.SearchPath, queryPlaceholder, url.QueryEscape(q.SearchTerms()))
	return s.site.BaseURL + path
}

func (s *HTMLSource) fetch(ctx context.Context, q sources.Query) ([]decimal.Decimal, error) {
	body, err := s.Get(ctx, s.SearchURL(q), "text/html,application/xhtml+xml")
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sources.ErrInvalidResponse, err)
	}

	cards := doc.Find(s.site.ProductSelector)
	prices := s.extractCards(cards, q)
	method := "selectors"
	if cards.Length() == 0 {
		prices = jsonLDPrices(doc, q)
		method = "json-ld"
	}

	s.Logger().Debug("Storefront page parsed",
		"item", q.ItemName,
		"method", method,
		"cards", cards.Length(),
		"matched", len(prices))

	return prices, nil
}

// extractCards reads one price per product card: the lowest amount shown in
// its price element (the promotional price when a "de/por" pair is shown).
func (s *HTMLSource) extractCards(cards *goquery.Selection, q sources.Query) []decimal.Decimal {
	prices := make([]decimal.Decimal, 0, cards.Length())
	cards.Each(func(_ int, card *goquery.Selection) {
		title := strings.TrimSpace(card.Find(s.site.TitleSelector).First().Text())
		if title == "" || !sources.MatchesQuery(title, q) {
			return
		}

		priceText := strings.TrimSpace(card.Find(s.site.PriceSelector).First().Text())
		values := sources.FindBRL(priceText)
		if len(values) == 0 {
			v, err := sources.ParseBRL(priceText)
			if err != nil {
				return
			}
			values = append(values, v)
		}

		lowest := values[0]
		for _, v := range values[1:] {
			if v.LessThan(lowest) {
				lowest = v
			}
		}
		prices = append(prices, lowest)
	})
	return prices
}
