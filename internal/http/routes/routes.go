package routes

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/janisto/k8s-demo/internal/http/root"
)

// Config returns the huma configuration used by the server. An empty
// docsPath disables the OpenAPI document, docs UI and schema routes.
func Config(title, version, docsPath string) huma.Config {
	cfg := huma.DefaultConfig(title, version)
	// The default create hook injects a $schema field into every response
	// body; the root document must contain only its declared fields.
	cfg.CreateHooks = nil
	cfg.Transformers = nil
	cfg.DocsPath = docsPath
	cfg.OpenAPIPath = ""
	cfg.SchemasPath = ""
	if docsPath != "" {
		cfg.OpenAPIPath = docsPath + "/openapi"
		cfg.SchemasPath = docsPath + "/schemas"
	}
	cfg.OpenAPI.OnAddOperation = append(cfg.OpenAPI.OnAddOperation, addCBORContent)
	return cfg
}

// addCBORContent advertises application/cbor next to every JSON request and
// response body in the OpenAPI document.
func addCBORContent(_ *huma.OpenAPI, op *huma.Operation) {
	if op.RequestBody != nil && op.RequestBody.Content != nil {
		if jsonContent, ok := op.RequestBody.Content["application/json"]; ok {
			op.RequestBody.Content["application/cbor"] = jsonContent
		}
	}
	for _, resp := range op.Responses {
		if resp.Content == nil {
			continue
		}
		if jsonContent, ok := resp.Content["application/json"]; ok {
			resp.Content["application/cbor"] = jsonContent
		}
	}
}

// Register wires all API operations into the provided API router.
func Register(api huma.API) {
	root.Register(api)
}
