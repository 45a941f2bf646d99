package common

import (
	"fmt"

	"github.com/ternarybob/banner"
)

// PrintBanner displays the service banner with the listen address
func PrintBanner(config *Config) {
	banner.PrintSimple("PageRender", GetVersion())
	GetLogger().Info().
		Str("engine", config.Render.Engine).
		Str("address", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)).
		Msg("Configuration loaded")
}
