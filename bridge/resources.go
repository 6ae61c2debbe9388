package bridge

import (
	"context"
	"fmt"
	"time"
)

// Resource describes one read-only resource URI.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MIMEType    string `json:"mimeType"`
}

const (
	ResourceStatus        = "pricebook://status"
	ResourceCategories    = "pricebook://categories"
	ResourceWebhookEvents = "pricebook://webhook-events"
)

// Resources returns the fixed resource list. All resources render as
// pretty-printed JSON.
func Resources() []Resource {
	return []Resource{
		{
			URI:         ResourceStatus,
			Name:        "Pricebook Status",
			Description: "Current sync status and statistics",
			MIMEType:    "application/json",
		},
		{
			URI:         ResourceCategories,
			Name:        "Pricebook Categories",
			Description: "All pricebook categories",
			MIMEType:    "application/json",
		},
		{
			URI:         ResourceWebhookEvents,
			Name:        "Webhook Events",
			Description: "Available webhook events",
			MIMEType:    "application/json",
		},
	}
}

// ReadResource fetches the backend payload behind uri and returns it
// pretty-printed. Unknown URIs fail without a backend call.
func (d *Dispatcher) ReadResource(ctx context.Context, uri string) (string, error) {
	start := time.Now()
	text, err := d.readResource(ctx, uri)
	emitResourceObservation(ResourceObservation{
		URI:        uri,
		Transport:  d.transport,
		DurationMS: time.Since(start).Milliseconds(),
		Success:    err == nil,
		ErrorCode:  ErrorCode(err),
	})
	return text, err
}

func (d *Dispatcher) readResource(ctx context.Context, uri string) (string, error) {
	var data any
	var err error

	switch uri {
	case ResourceStatus:
		data, err = d.client.Get(ctx, "/api/sync/pricebook/status", nil)

	case ResourceCategories:
		data, err = d.client.Chat(ctx, d.sessionID, "show categories")
		// The chat envelope wraps the category list in a data field;
		// expose the list itself when present.
		if payload, ok := data.(map[string]any); ok && err == nil {
			if inner, ok := payload["data"]; ok {
				data = inner
			}
		}

	case ResourceWebhookEvents:
		data, err = d.client.Get(ctx, "/api/n8n/events", nil)

	default:
		return "", invalidArgumentError(fmt.Sprintf("unknown resource: %s", uri))
	}

	if err != nil {
		return "", err
	}
	return prettyJSON(data), nil
}
