// Package configs provides embedded configuration files for feed-widget.
package configs

import "embed"

// DefaultConfigFile is the embedded file holding every default setting
const DefaultConfigFile = "feed-widget.yaml"

// EmbeddedConfigs exposes embedded configuration files for read-only access.
//
//go:embed *.yaml
var EmbeddedConfigs embed.FS
