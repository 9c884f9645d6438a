package sources

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry = make(map[string]StrategyFactory)
	mu       sync.RWMutex
)

// Register adds a strategy factory to the registry under "<type>.<name>".
func Register(key string, factory StrategyFactory) {
	mu.Lock()
	defer mu.Unlock()
	registry[key] = factory
}

// Create creates a new strategy instance by type and name
func Create(sourceType, name string, config map[string]interface{}) (Strategy, error) {
	mu.RLock()
	defer mu.RUnlock()

	key := fmt.Sprintf("%s.%s", sourceType, name)
	factory, ok := registry[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, key)
	}

	if config == nil {
		config = make(map[string]interface{})
	}
	return factory(config)
}

// List returns all registered strategy keys, sorted
func List() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
