package routes

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/janisto/hello-eks/internal/http/greeting"
	"github.com/janisto/hello-eks/internal/http/health"
)

// APITitle is the title published in the OpenAPI document.
const APITitle = "Hello EKS API"

// APIConfig returns the huma configuration shared by the server and tests.
// CreateHooks is cleared so huma does not inject a $schema property or Link
// header into success bodies; clients get exactly the documented objects.
func APIConfig(version, docsPath string) huma.Config {
	cfg := huma.DefaultConfig(APITitle, version)
	cfg.DocsPath = docsPath
	cfg.CreateHooks = nil
	return cfg
}

// Register wires all HTTP routes into the provided API router.
func Register(api huma.API) {
	greeting.Register(api)
	health.Register(api)
}
