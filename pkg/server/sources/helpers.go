package sources

import (
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/logging"
)

// GetLoggerFromConfig extracts logger from config map or returns a default noop logger.
func GetLoggerFromConfig(config map[string]interface{}) *logging.Logger {
	if loggerInterface, ok := config["logger"]; ok {
		if logger, ok := loggerInterface.(*logging.Logger); ok && logger != nil {
			return logger
		}
	}
	return logging.NewNoopLogger()
}

// ParseBaseConfig reads the settings every strategy understands:
//
//	name:            overrides the registered name (several VTEX stores, for example)
//	item_types:      [medicine, input]
//	timeout:         request timeout in milliseconds
//	min_price:       lowest plausible price
//	max_price:       highest plausible price
//	user_agent:      User-Agent header
//	accept_language: Accept-Language header
//
// An *http.Client under "http_client" replaces the default client (tests use this).
func ParseBaseConfig(defaultName string, config map[string]interface{}, defaultTypes []ItemType) (BaseConfig, error) {
	cfg := BaseConfig{
		Name:           GetString(config, "name", defaultName),
		ItemTypes:      defaultTypes,
		Timeout:        DefaultTimeout,
		UserAgent:      GetString(config, "user_agent", ""),
		AcceptLanguage: GetString(config, "accept_language", ""),
		Logger:         GetLoggerFromConfig(config),
	}

	if raw, ok := config["item_types"]; ok {
		list, ok := raw.([]interface{})
		if !ok {
			return cfg, fmt.Errorf("%w: item_types must be a list", ErrInvalidConfig)
		}
		types := make([]ItemType, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return cfg, fmt.Errorf("%w: item_types entry %v is %T", ErrInvalidConfig, item, item)
			}
			t, err := ParseItemType(s)
			if err != nil {
				return cfg, err
			}
			types = append(types, t)
		}
		cfg.ItemTypes = types
	}

	if ms := GetInt(config, "timeout", 0); ms > 0 {
		cfg.Timeout = time.Duration(ms) * time.Millisecond
	}

	if v, ok := GetFloat(config, "min_price"); ok {
		cfg.MinPrice = decimal.NewFromFloat(v)
	}
	if v, ok := GetFloat(config, "max_price"); ok {
		cfg.MaxPrice = decimal.NewFromFloat(v)
	}
	lo, hi := cfg.MinPrice, cfg.MaxPrice
	if lo.IsZero() {
		lo = DefaultMinPrice
	}
	if hi.IsZero() {
		hi = DefaultMaxPrice
	}
	if lo.IsNegative() || !hi.GreaterThan(lo) {
		return cfg, fmt.Errorf("%w: min=%s max=%s", ErrInvalidPriceBounds, lo, hi)
	}

	if client, ok := config["http_client"].(*http.Client); ok {
		cfg.Client = client
	}

	return cfg, nil
}

// GetString reads a string value from a source config map.
func GetString(config map[string]interface{}, key, defaultValue string) string {
	if v, ok := config[key].(string); ok && v != "" {
		return v
	}
	return defaultValue
}

// GetInt reads an integer value from a source config map.
func GetInt(config map[string]interface{}, key string, defaultValue int) int {
	switch v := config[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return defaultValue
	}
}

// GetFloat reads a numeric value from a source config map.
func GetFloat(config map[string]interface{}, key string) (float64, bool) {
	switch v := config[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
