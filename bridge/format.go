package bridge

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// FormatResult renders a backend payload as host-facing text.
// Conversational responses carry a `message` field which is preferred
// verbatim, with an estimate summary appended when the response context
// carries a running total. Everything else (REST payloads, message-less
// chat responses, arrays) renders as two-space-indented JSON.
func FormatResult(result any) string {
	if payload, ok := result.(map[string]any); ok {
		if message, ok := payload["message"].(string); ok && message != "" {
			content := message
			if ctx, ok := payload["context"].(map[string]any); ok {
				if total := ctx["estimateTotal"]; truthy(total) {
					content += fmt.Sprintf("\n\n[Estimate: %s items, $%s]",
						formatScalar(ctx["estimateItemCount"], "0"),
						formatScalar(total, ""))
				}
			}
			return content
		}
	}
	return prettyJSON(result)
}

func prettyJSON(value any) string {
	encoded, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(encoded)
}

// truthy mirrors the backend's envelope conventions: absent, null,
// false, zero, and empty-string values all mean "not set".
func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case float64:
		return v != 0
	case int:
		return v != 0
	default:
		return true
	}
}

// formatScalar renders a decoded JSON scalar without the float64
// artifacts of %v (25 stays "25", not "25.000000" or "2.5e+01").
func formatScalar(value any, fallback string) string {
	switch v := value.(type) {
	case nil:
		return fallback
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
