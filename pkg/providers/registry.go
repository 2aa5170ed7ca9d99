package providers

import "log/slog"

// MustRegister registers a source with the default registry and panics on duplicates
func MustRegister(name string, info *ProviderInfo) {
	if err := DefaultRegistry.Register(name, info); err != nil {
		panic(err)
	}
	slog.Debug("Registered provider", "provider", name, "description", info.Description)
}

// ListProviders is a convenience function to list all sources in the default registry.
func ListProviders() []string {
	return DefaultRegistry.List()
}

// CreateSource is a convenience function to create a source from the default registry.
func CreateSource(name string, config SourceConfig) (FeedSource, error) {
	return DefaultRegistry.CreateSource(name, config)
}
