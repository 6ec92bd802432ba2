package greeting

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"go.uber.org/zap"

	applog "github.com/janisto/hello-eks/internal/platform/logging"
)

// Message is the fixed greeting returned by the root endpoint.
const Message = "Hello from Flask on EKS CI/CD tutorial!"

// GreetingData models the response payload for the greeting endpoint.
type GreetingData struct {
	Message string `json:"message" doc:"Greeting message" example:"Hello from Flask on EKS CI/CD tutorial!"`
}

// Output is the response wrapper for the greeting endpoint.
type Output struct {
	Body GreetingData
}

// Register wires the greeting route into the provided API.
func Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "get-greeting",
		Method:      http.MethodGet,
		Path:        "/",
		Summary:     "Get greeting",
		Tags:        []string{"Greeting"},
	}, getHandler)
}

func getHandler(ctx context.Context, _ *struct{}) (*Output, error) {
	applog.LogInfo(ctx, "greeting", zap.String("path", "/"))
	return &Output{Body: GreetingData{Message: Message}}, nil
}
