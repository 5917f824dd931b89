package root

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// Register wires the root route into the provided API router.
func Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "get-root",
		Method:      http.MethodGet,
		Path:        "/",
		Summary:     "Report that the deployment is up",
		Tags:        []string{"Status"},
	}, getHandler)
}

func getHandler(_ context.Context, _ *struct{}) (*GetOutput, error) {
	return &GetOutput{Body: Data{Message: Message}}, nil
}
