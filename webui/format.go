package webui

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/robfig/cron/v3"

	"github.com/perfect-catch/pricebook-bridge/pricebook"
)

// transportErrorText renders a failed backend call as tool text. The
// two common operational failures get actionable messages; everything
// else surfaces verbatim.
func transportErrorText(err error) string {
	switch {
	case pricebook.IsTimeout(err):
		return "Error: Request timed out. Please try again."
	case pricebook.IsConnection(err):
		return "Error: Could not connect to Pricebook service. Make sure the service is running."
	default:
		return "Error: " + err.Error()
	}
}

// searchResultText renders a conversational backend response. Success
// responses answer with their message; anything else surfaces the
// backend's error field.
func searchResultText(payload any) string {
	body, ok := payload.(map[string]any)
	if !ok {
		return "Error: Unknown error"
	}
	if truthy(body["success"]) {
		if message, ok := body["message"].(string); ok {
			return message
		}
		return "No results found"
	}
	if message, ok := body["error"].(string); ok {
		return "Error: " + message
	}
	return "Error: Unknown error"
}

// statusText renders the sync status payload as markdown: one bullet
// per entity in the stats array, plus a scheduler block while the sync
// scheduler is running.
func statusText(payload any, now time.Time) string {
	body, ok := payload.(map[string]any)
	if !ok {
		return "Error: Unknown error"
	}
	if !truthy(body["success"]) {
		if message, ok := body["error"].(string); ok {
			return "Error: " + message
		}
		return "Error: Unknown error"
	}

	var b strings.Builder
	b.WriteString("**Pricebook Status:**\n\n")

	if stats, ok := body["stats"].([]any); ok {
		for _, entry := range stats {
			stat, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			entity := "unknown"
			if name, ok := stat["entity_type"].(string); ok && name != "" {
				entity = name
			}
			fmt.Fprintf(&b, "• %s: %s items\n", titleCase(entity), countText(stat["total_count"]))
		}
	}

	if scheduler, ok := body["scheduler"].(map[string]any); ok && truthy(scheduler["isRunning"]) {
		schedules, _ := scheduler["schedules"].(map[string]any)
		b.WriteString("\n**Sync Scheduler:** Running\n")
		fmt.Fprintf(&b, "• Full sync: %s\n", describeSchedule(schedules["fullSync"], now))
		fmt.Fprintf(&b, "• Incremental: %s\n", describeSchedule(schedules["incrementalSync"], now))
	}

	return b.String()
}

var scheduleCronParser = cron.NewParser(
	cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow,
)

// describeSchedule renders a scheduler entry. Five-field cron
// expressions get their next UTC fire time appended so the status
// answers "when does the sync run" directly.
func describeSchedule(value any, now time.Time) string {
	text, ok := value.(string)
	if !ok || strings.TrimSpace(text) == "" {
		return "N/A"
	}
	schedule, err := scheduleCronParser.Parse(text)
	if err != nil {
		return text
	}
	next := schedule.Next(now.UTC())
	return text + " (next " + next.Format("2006-01-02 15:04") + " UTC)"
}

func countText(value any) string {
	switch v := value.(type) {
	case nil:
		return "0"
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// titleCase uppercases the first letter of each word and lowercases
// the rest, treating any non-letter as a word boundary.
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		switch {
		case !unicode.IsLetter(r):
			b.WriteRune(r)
			prevLetter = false
		case prevLetter:
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(unicode.ToUpper(r))
			prevLetter = true
		}
	}
	return b.String()
}

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
