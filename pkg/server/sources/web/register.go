package web

import (
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/server/sources"
)

// ConsultaRemedios is the drug price comparison site; medicines only.
var ConsultaRemedios = Site{
	BaseURL:         "https://consultaremedios.com.br",
	SearchPath:      "/busca?termo={query}",
	ProductSelector: `[data-testid="product-card"], .result-item`,
	TitleSelector:   `[data-testid="product-name"], .result-item__title`,
	PriceSelector:   `[data-testid="product-price"], .result-item__price`,
}

// Buscape is the general price comparison site; used for consumables.
var Buscape = Site{
	BaseURL:         "https://www.buscape.com.br",
	SearchPath:      "/search?q={query}",
	ProductSelector: `[data-testid="product-card"]`,
	TitleSelector:   `[data-testid="product-card::name"], h2`,
	PriceSelector:   `[data-testid="product-card::price"], p[class*="price"]`,
}

// NewConsultaRemediosSource creates the Consulta Remédios strategy.
func NewConsultaRemediosSource(config map[string]interface{}) (sources.Strategy, error) {
	return newStrategy("consultaremedios", ConsultaRemedios, sources.ItemTypeMedicine, config)
}

// NewBuscapeSource creates the Buscapé strategy.
func NewBuscapeSource(config map[string]interface{}) (sources.Strategy, error) {
	return newStrategy("buscape", Buscape, sources.ItemTypeInput, config)
}

func newStrategy(name string, site Site, itemType sources.ItemType, config map[string]interface{}) (sources.Strategy, error) {
	s, err := NewHTMLSource(name, site, []sources.ItemType{itemType}, config)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func init() {
	sources.Register("web.consultaremedios", NewConsultaRemediosSource)
	sources.Register("web.buscape", NewBuscapeSource)
}
