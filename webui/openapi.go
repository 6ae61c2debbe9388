package webui

import (
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
)

// buildOpenAPIDocument describes the tool endpoints. Chat UIs register
// this server by loading /openapi.json and turning each operation into
// a callable tool, so the operation IDs and descriptions here are what
// the model sees.
func buildOpenAPIDocument() *openapi3.T {
	resultSchema := openapi3.NewObjectSchema().
		WithProperty("result", openapi3.NewStringSchema())

	querySchema := openapi3.NewStringSchema()
	querySchema.Description = "Natural language search query (e.g., 'find pool pump parts', 'show me transformers under $200')"

	searchSchema := openapi3.NewObjectSchema().WithProperty("query", querySchema)
	searchSchema.Required = []string{"query"}

	paths := openapi3.NewPaths()
	paths.Set("/api/search", &openapi3.PathItem{
		Post: &openapi3.Operation{
			OperationID: "search_pricebook",
			Summary:     "Search the pricebook",
			Description: "Search the ServiceTitan pricebook for materials, services, equipment, and categories. Use this when the user asks about parts, prices, services, or equipment.",
			RequestBody: &openapi3.RequestBodyRef{
				Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchema(searchSchema),
			},
			Responses: toolResponses(resultSchema, "Search results with items and prices"),
		},
	})
	paths.Set("/api/categories", &openapi3.PathItem{
		Get: &openapi3.Operation{
			OperationID: "get_pricebook_categories",
			Summary:     "List pricebook categories",
			Description: "Get all available pricebook categories. Use this when the user wants to browse what categories are available.",
			Responses:   toolResponses(resultSchema, "Available pricebook categories"),
		},
	})
	paths.Set("/api/status", &openapi3.PathItem{
		Get: &openapi3.Operation{
			OperationID: "get_pricebook_status",
			Summary:     "Get pricebook status",
			Description: "Get the current status of the pricebook database including item counts and sync scheduler state.",
			Responses:   toolResponses(resultSchema, "Pricebook statistics and scheduler state"),
		},
	})

	return &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       "ServiceTitan Pricebook Tools",
			Description: "Pricebook search, categories, and sync status for chat assistants.",
			Version:     "1.0.0",
		},
		Paths: paths,
	}
}

func toolResponses(schema *openapi3.Schema, description string) *openapi3.Responses {
	return openapi3.NewResponses(openapi3.WithStatus(http.StatusOK, &openapi3.ResponseRef{
		Value: openapi3.NewResponse().WithDescription(description).WithJSONSchema(schema),
	}))
}
