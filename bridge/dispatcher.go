package bridge

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/perfect-catch/pricebook-bridge/pricebook"
)

const (
	// DefaultSessionID is the chat session token used when neither the
	// caller nor the environment supplies one.
	DefaultSessionID = "mcp-session"

	// EnvSessionID overrides DefaultSessionID.
	EnvSessionID = "MCP_SESSION_ID"

	defaultListLimit = 25
	defaultLogLimit  = 10
)

// Config controls dispatcher construction.
type Config struct {
	// Client is the backend client. Required.
	Client *pricebook.Client

	// SessionID is the default chat session token. Empty falls back to
	// MCP_SESSION_ID, then DefaultSessionID.
	SessionID string

	// Transport labels observations emitted by this dispatcher
	// (default TransportMCP).
	Transport Transport
}

// Dispatcher maps tool names onto backend calls. It is stateless
// beyond its configuration and safe for concurrent use.
type Dispatcher struct {
	client    *pricebook.Client
	sessionID string
	transport Transport
}

// NewDispatcher validates cfg and returns a dispatcher.
func NewDispatcher(cfg Config) (*Dispatcher, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("bridge: Config.Client is required")
	}
	sessionID := strings.TrimSpace(cfg.SessionID)
	if sessionID == "" {
		sessionID = strings.TrimSpace(os.Getenv(EnvSessionID))
	}
	if sessionID == "" {
		sessionID = DefaultSessionID
	}
	transport := cfg.Transport
	if transport == "" {
		transport = TransportMCP
	}
	return &Dispatcher{
		client:    cfg.Client,
		sessionID: sessionID,
		transport: transport,
	}, nil
}

// SessionID returns the default chat session token.
func (d *Dispatcher) SessionID() string {
	return d.sessionID
}

// Dispatch resolves name to its backend call shape, performs the call,
// and returns the formatted text. Unknown names and argument-contract
// violations return a *DispatchError without touching the backend;
// backend failures pass through as *pricebook.Error. Callers render
// failures with ErrorText.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]any) (string, error) {
	start := time.Now()
	text, err := d.dispatch(ctx, name, args)
	emitDispatchObservation(DispatchObservation{
		Tool:       name,
		Transport:  d.transport,
		DurationMS: time.Since(start).Milliseconds(),
		Success:    err == nil,
		ErrorCode:  ErrorCode(err),
	})
	return text, err
}

func (d *Dispatcher) dispatch(ctx context.Context, name string, args map[string]any) (string, error) {
	if args == nil {
		args = map[string]any{}
	}
	session := d.sessionID
	if override, ok := stringArg(args, "sessionId"); ok {
		session = override
	}

	var result any
	var err error

	switch name {
	case "search_pricebook":
		var query string
		if query, err = requireString(args, "query"); err == nil {
			result, err = d.client.Chat(ctx, session, "search "+query)
		}

	case "list_categories":
		result, err = d.client.Chat(ctx, session, "show categories")

	case "get_materials":
		if category, ok := stringArg(args, "category"); ok {
			result, err = d.client.Chat(ctx, session, "show "+category+" materials")
		} else {
			result, err = d.client.Get(ctx, "/pricebook/materials", pageSizeQuery(args, defaultListLimit))
		}

	case "get_services":
		if category, ok := stringArg(args, "category"); ok {
			result, err = d.client.Chat(ctx, session, "show "+category+" services")
		} else {
			result, err = d.client.Get(ctx, "/pricebook/services", pageSizeQuery(args, defaultListLimit))
		}

	case "get_equipment":
		result, err = d.client.Get(ctx, "/pricebook/equipment", pageSizeQuery(args, defaultListLimit))

	case "start_estimate":
		jobRef := "new job"
		if jobID, ok := stringArg(args, "jobId"); ok {
			jobRef = "job " + jobID
		} else if jobName, ok := stringArg(args, "jobName"); ok {
			jobRef = jobName
		}
		result, err = d.client.Chat(ctx, session, "start estimate for "+jobRef)

	case "add_to_estimate":
		var items string
		if items, err = requireString(args, "items"); err == nil {
			result, err = d.client.Chat(ctx, session, "add "+items)
		}

	case "show_estimate":
		result, err = d.client.Chat(ctx, session, "show estimate")

	case "remove_from_estimate":
		var item string
		if item, err = requireString(args, "item"); err == nil {
			result, err = d.client.Chat(ctx, session, "remove "+item)
		}

	case "create_estimate":
		if truthy(args["confirm"]) {
			// Confirmed creation is the one two-call shape: the backend
			// asks for confirmation and the "yes" reply is the answer
			// the host should see.
			if _, err = d.client.Chat(ctx, session, "create estimate"); err == nil {
				result, err = d.client.Chat(ctx, session, "yes")
			}
		} else {
			result, err = d.client.Chat(ctx, session, "create estimate")
		}

	case "clear_estimate":
		result, err = d.client.Chat(ctx, session, "clear estimate")

	case "get_sync_status":
		result, err = d.client.Get(ctx, "/api/sync/pricebook/status", nil)

	case "trigger_sync":
		var syncType string
		if syncType, err = requireString(args, "type"); err == nil {
			if syncType != "full" && syncType != "incremental" {
				err = invalidArgumentError(fmt.Sprintf("invalid sync type %q (want \"full\" or \"incremental\")", syncType))
			} else {
				result, err = d.client.Post(ctx, "/api/sync/pricebook/"+syncType, map[string]any{})
			}
		}

	case "get_sync_logs":
		query := url.Values{}
		query.Set("limit", limitValue(args, defaultLogLimit))
		result, err = d.client.Get(ctx, "/api/sync/pricebook/logs", query)

	case "get_service_details":
		var serviceID string
		if serviceID, err = requireString(args, "serviceId"); err == nil {
			result, err = d.client.Get(ctx, "/pricebook/services/"+url.PathEscape(serviceID), nil)
		}

	case "get_material_details":
		var materialID string
		if materialID, err = requireString(args, "materialId"); err == nil {
			result, err = d.client.Get(ctx, "/pricebook/materials/"+url.PathEscape(materialID), nil)
		}

	case "update_service":
		var serviceID string
		if serviceID, err = requireString(args, "serviceId"); err == nil {
			update := pickFields(args, "price", "memberPrice", "addOnPrice")
			result, err = d.client.Patch(ctx, "/pricebook/services/"+url.PathEscape(serviceID), update)
		}

	case "update_material":
		var materialID string
		if materialID, err = requireString(args, "materialId"); err == nil {
			update := pickFields(args, "price", "cost")
			result, err = d.client.Patch(ctx, "/pricebook/materials/"+url.PathEscape(materialID), update)
		}

	case "list_webhook_events":
		result, err = d.client.Get(ctx, "/api/n8n/events", nil)

	case "list_webhook_subscriptions":
		result, err = d.client.Get(ctx, "/api/n8n/subscriptions", nil)

	case "subscribe_webhook":
		var webhookURL string
		if webhookURL, err = requireString(args, "webhookUrl"); err == nil {
			if _, ok := args["events"]; !ok {
				err = invalidArgumentError("missing required argument: events")
			} else {
				result, err = d.client.Post(ctx, "/api/n8n/subscribe", map[string]any{
					"webhookUrl": webhookURL,
					"events":     args["events"],
					"name":       args["name"],
				})
			}
		}

	case "chat":
		var message string
		if message, err = requireString(args, "message"); err == nil {
			result, err = d.client.Chat(ctx, session, message)
		}

	default:
		err = unknownToolError(name)
	}

	if err != nil {
		return "", err
	}
	return FormatResult(result), nil
}

// stringArg returns args[key] when it is a non-empty string.
func stringArg(args map[string]any, key string) (string, bool) {
	value, ok := args[key].(string)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

func requireString(args map[string]any, key string) (string, error) {
	value, ok := args[key]
	if !ok {
		return "", invalidArgumentError("missing required argument: " + key)
	}
	text, ok := value.(string)
	if !ok || text == "" {
		return "", invalidArgumentError("argument " + key + " must be a non-empty string")
	}
	return text, nil
}

func pageSizeQuery(args map[string]any, fallback int) url.Values {
	query := url.Values{}
	query.Set("pageSize", limitValue(args, fallback))
	return query
}

// limitValue renders the caller's limit argument for a query string.
// JSON numbers arrive as float64; integral values render without a
// decimal point. Anything unusable falls back to the default.
func limitValue(args map[string]any, fallback int) string {
	switch v := args["limit"].(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case string:
		if v != "" {
			return v
		}
	}
	return strconv.Itoa(fallback)
}

// pickFields copies the named keys that are present in args, so PATCH
// bodies carry only what the caller supplied.
func pickFields(args map[string]any, keys ...string) map[string]any {
	update := map[string]any{}
	for _, key := range keys {
		if value, ok := args[key]; ok {
			update[key] = value
		}
	}
	return update
}
