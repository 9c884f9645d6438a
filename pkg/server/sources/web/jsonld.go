package web

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/server/sources"
)

// jsonLDPrices collects offer prices from schema.org Product nodes whose name
// matches the query. Only the containers storefronts actually use are walked:
// top-level arrays, @graph, ItemList.itemListElement and ListItem.item.
func jsonLDPrices(doc *goquery.Document, q sources.Query) []decimal.Decimal {
	var prices []decimal.Decimal
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, script *goquery.Selection) {
		var node interface{}
		if err := json.Unmarshal([]byte(strings.TrimSpace(script.Text())), &node); err != nil {
			return
		}
		collectOffers(node, q, &prices)
	})
	return prices
}

func collectOffers(node interface{}, q sources.Query, out *[]decimal.Decimal) {
	switch v := node.(type) {
	case []interface{}:
		for _, child := range v {
			collectOffers(child, q, out)
		}
	case map[string]interface{}:
		if offers, ok := v["offers"]; ok {
			name, _ := v["name"].(string)
			if name != "" && sources.MatchesQuery(name, q) {
				if price, ok := offerPrice(offers); ok {
					*out = append(*out, price)
				}
			}
			return
		}
		for _, key := range []string{"@graph", "itemListElement", "item"} {
			if child, ok := v[key]; ok {
				collectOffers(child, q, out)
			}
		}
	}
}

// offerPrice reads Offer.price or AggregateOffer.lowPrice; for a list of
// offers the lowest one wins.
func offerPrice(offers interface{}) (decimal.Decimal, bool) {
	switch v := offers.(type) {
	case []interface{}:
		var best decimal.Decimal
		found := false
		for _, o := range v {
			if p, ok := offerPrice(o); ok && (!found || p.LessThan(best)) {
				best, found = p, true
			}
		}
		return best, found
	case map[string]interface{}:
		for _, key := range []string{"price", "lowPrice"} {
			if p, ok := jsonNumber(v[key]); ok {
				return p, true
			}
		}
	}
	return decimal.Zero, false
}

// jsonNumber accepts schema.org numbers given either as JSON numbers or as
// dot-decimal strings.
func jsonNumber(raw interface{}) (decimal.Decimal, bool) {
	switch v := raw.(type) {
	case float64:
		return decimal.NewFromFloat(v), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	}
	return decimal.Zero, false
}
