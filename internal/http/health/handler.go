package health

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"go.uber.org/zap"

	applog "github.com/janisto/hello-eks/internal/platform/logging"
)

// StatusOK is the only status the liveness probe reports.
const StatusOK = "ok"

// HealthData is the payload for the health endpoint.
type HealthData struct {
	Status string `json:"status" doc:"Liveness status" example:"ok" enum:"ok"`
}

// Output is the response wrapper for the health endpoint.
type Output struct {
	Body HealthData
}

// Register wires the liveness route into the provided API.
func Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "get-health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Liveness probe",
		Description: "Reports that the process is up and serving requests. Used by Kubernetes probes.",
		Tags:        []string{"Health"},
	}, getHandler)
}

func getHandler(ctx context.Context, _ *struct{}) (*Output, error) {
	applog.LoggerFromContext(ctx).Debug("health check", zap.String("path", "/health"))
	return &Output{Body: HealthData{Status: StatusOK}}, nil
}
