// Package bridge maps named pricebook tools onto backend HTTP calls.
// It owns the fixed tool catalog, the dispatcher that turns a tool name
// plus arguments into exactly one backend call shape, the response
// formatter, and the read-only resource set. Both adapter surfaces (the
// MCP stdio server and the Open WebUI tool server) sit on top of it.
package bridge

// Tool describes one catalog entry. InputSchema is a JSON Schema
// fragment advertised to hosts for validation and discovery; the
// dispatcher enforces the required fields itself before calling out.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	BackendCall string         `json:"backendCall"`
	InputSchema map[string]any `json:"inputSchema"`
	ReadOnly    bool           `json:"readOnly"`
}

// Catalog returns the fixed tool list. The slice is rebuilt on each
// call so callers may annotate or reorder freely.
func Catalog() []Tool {
	return []Tool{
		{
			Name:        "search_pricebook",
			Description: "Search the ServiceTitan pricebook for materials, services, and equipment.",
			BackendCall: `chat "search {query}"`,
			InputSchema: objectSchema(map[string]any{
				"query": stringProperty("Search query (e.g., 'transformer', 'pool pump')"),
			}, "query"),
			ReadOnly: true,
		},
		{
			Name:        "list_categories",
			Description: "List all pricebook categories.",
			BackendCall: `chat "show categories"`,
			InputSchema: objectSchema(map[string]any{}),
			ReadOnly:    true,
		},
		{
			Name:        "get_materials",
			Description: "Get materials from the pricebook.",
			BackendCall: `chat "show {category} materials" | GET /pricebook/materials`,
			InputSchema: objectSchema(map[string]any{
				"category": stringProperty("Category name (optional)"),
				"limit":    numberProperty("Max results (default: 25)"),
			}),
			ReadOnly: true,
		},
		{
			Name:        "get_services",
			Description: "Get services from the pricebook.",
			BackendCall: `chat "show {category} services" | GET /pricebook/services`,
			InputSchema: objectSchema(map[string]any{
				"category": stringProperty("Category name (optional)"),
				"limit":    numberProperty("Max results (default: 25)"),
			}),
			ReadOnly: true,
		},
		{
			Name:        "get_equipment",
			Description: "Get equipment from the pricebook.",
			BackendCall: "GET /pricebook/equipment",
			InputSchema: objectSchema(map[string]any{
				"limit": numberProperty("Max results (default: 25)"),
			}),
			ReadOnly: true,
		},
		{
			Name:        "start_estimate",
			Description: "Start a new estimate for a job.",
			BackendCall: `chat "start estimate for ..."`,
			InputSchema: objectSchema(map[string]any{
				"jobId":     stringProperty("ServiceTitan job ID"),
				"jobName":   stringProperty("Job name/description"),
				"sessionId": stringProperty("Session ID (optional)"),
			}),
		},
		{
			Name:        "add_to_estimate",
			Description: "Add items to the current estimate.",
			BackendCall: `chat "add {items}"`,
			InputSchema: objectSchema(map[string]any{
				"items":     stringProperty("Items to add"),
				"sessionId": stringProperty("Session ID"),
			}, "items"),
		},
		{
			Name:        "show_estimate",
			Description: "Show the current estimate with all items and total.",
			BackendCall: `chat "show estimate"`,
			InputSchema: objectSchema(map[string]any{
				"sessionId": stringProperty("Session ID"),
			}),
			ReadOnly: true,
		},
		{
			Name:        "remove_from_estimate",
			Description: "Remove an item from the current estimate.",
			BackendCall: `chat "remove {item}"`,
			InputSchema: objectSchema(map[string]any{
				"item":      stringProperty("Item name or number"),
				"sessionId": stringProperty("Session ID"),
			}, "item"),
		},
		{
			Name:        "create_estimate",
			Description: "Create/push the estimate to ServiceTitan.",
			BackendCall: `chat "create estimate" [+ chat "yes"]`,
			InputSchema: objectSchema(map[string]any{
				"confirm":   booleanProperty("Confirm creation"),
				"sessionId": stringProperty("Session ID"),
			}, "confirm"),
		},
		{
			Name:        "clear_estimate",
			Description: "Clear the current estimate.",
			BackendCall: `chat "clear estimate"`,
			InputSchema: objectSchema(map[string]any{
				"sessionId": stringProperty("Session ID"),
			}),
		},
		{
			Name:        "get_sync_status",
			Description: "Get pricebook sync status and statistics.",
			BackendCall: "GET /api/sync/pricebook/status",
			InputSchema: objectSchema(map[string]any{}),
			ReadOnly:    true,
		},
		{
			Name:        "trigger_sync",
			Description: "Trigger a pricebook sync.",
			BackendCall: "POST /api/sync/pricebook/{type}",
			InputSchema: objectSchema(map[string]any{
				"type": enumProperty("Sync type", "full", "incremental"),
			}, "type"),
		},
		{
			Name:        "get_sync_logs",
			Description: "Get sync operation logs.",
			BackendCall: "GET /api/sync/pricebook/logs",
			InputSchema: objectSchema(map[string]any{
				"limit": numberProperty("Number of logs"),
			}),
			ReadOnly: true,
		},
		{
			Name:        "get_service_details",
			Description: "Get detailed service information.",
			BackendCall: "GET /pricebook/services/{serviceId}",
			InputSchema: objectSchema(map[string]any{
				"serviceId": stringProperty("Service ID"),
			}, "serviceId"),
			ReadOnly: true,
		},
		{
			Name:        "get_material_details",
			Description: "Get detailed material information with vendor pricing.",
			BackendCall: "GET /pricebook/materials/{materialId}",
			InputSchema: objectSchema(map[string]any{
				"materialId": stringProperty("Material ID"),
			}, "materialId"),
			ReadOnly: true,
		},
		{
			Name:        "update_service",
			Description: "Update a service in ServiceTitan.",
			BackendCall: "PATCH /pricebook/services/{serviceId}",
			InputSchema: objectSchema(map[string]any{
				"serviceId":   stringProperty("Service ID"),
				"price":       numberProperty("New price"),
				"memberPrice": numberProperty("Member price"),
				"addOnPrice":  numberProperty("Add-on price"),
			}, "serviceId"),
		},
		{
			Name:        "update_material",
			Description: "Update a material in ServiceTitan.",
			BackendCall: "PATCH /pricebook/materials/{materialId}",
			InputSchema: objectSchema(map[string]any{
				"materialId": stringProperty("Material ID"),
				"price":      numberProperty("New price"),
				"cost":       numberProperty("New cost"),
			}, "materialId"),
		},
		{
			Name:        "list_webhook_events",
			Description: "List available webhook events.",
			BackendCall: "GET /api/n8n/events",
			InputSchema: objectSchema(map[string]any{}),
			ReadOnly:    true,
		},
		{
			Name:        "list_webhook_subscriptions",
			Description: "List active webhook subscriptions.",
			BackendCall: "GET /api/n8n/subscriptions",
			InputSchema: objectSchema(map[string]any{}),
			ReadOnly:    true,
		},
		{
			Name:        "subscribe_webhook",
			Description: "Subscribe to webhook events.",
			BackendCall: "POST /api/n8n/subscribe",
			InputSchema: objectSchema(map[string]any{
				"webhookUrl": stringProperty("Webhook URL"),
				"events":     stringArrayProperty("Events to subscribe"),
				"name":       stringProperty("Subscription name"),
			}, "webhookUrl", "events"),
		},
		{
			Name:        "chat",
			Description: "Send a natural language message to the pricebook AI agent.",
			BackendCall: `chat "{message}"`,
			InputSchema: objectSchema(map[string]any{
				"message":   stringProperty("Natural language message"),
				"sessionId": stringProperty("Session ID"),
			}, "message"),
		},
	}
}

func objectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProperty(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func numberProperty(description string) map[string]any {
	return map[string]any{"type": "number", "description": description}
}

func booleanProperty(description string) map[string]any {
	return map[string]any{"type": "boolean", "description": description}
}

func stringArrayProperty(description string) map[string]any {
	return map[string]any{
		"type":        "array",
		"items":       map[string]any{"type": "string"},
		"description": description,
	}
}

func enumProperty(description string, values ...string) map[string]any {
	return map[string]any{"type": "string", "enum": values, "description": description}
}
