package phlex

// Configuration is the opaque, keyed parameter bag a module or source
// plugin reads at registration time. Parsing it from a config file is a
// host concern, outside this package. The core never parses or
// validates a value; Get returns whatever was stored under key, and the
// caller asserts it to the type it expects.
type Configuration interface {
	Get(key string) (any, bool)
}

// MapConfiguration is the simplest Configuration: a plain map, enough
// for tests and small deployments that don't need a config-file-backed
// implementation.
type MapConfiguration map[string]any

// Get looks up key directly in the map.
func (m MapConfiguration) Get(key string) (any, bool) {
	v, ok := m[key]
	return v, ok
}

// CreateModuleFunc is the contract a compiled plugin's registration
// entry point satisfies: handed a plugin-scoped proxy and its
// configuration, it registers the plugin's nodes into the catalog.
type CreateModuleFunc func(proxy *Proxy, cfg Configuration) error

// CreateSourceFunc is the contract a source plugin's entry point
// satisfies: given its configuration, it returns the Source instance the
// Driver will drain.
type CreateSourceFunc func(cfg Configuration) (Source, error)
