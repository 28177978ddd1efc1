package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
)

// sendWebhook posts a to the channel's target URL in the payload shape
// selected by config "format" (default "http": a generic JSON envelope).
func (n *Notifier) sendWebhook(ctx context.Context, ch Channel, a Alert) error {
	url := webhookURL(ch)
	if url == "" {
		return fmt.Errorf("webhook channel %q: no url configured", ch.Name)
	}

	var body []byte
	switch format := ch.Config["format"]; format {
	case "slack":
		body, _ = json.Marshal(map[string]string{
			"text": fmt.Sprintf("*[%s]* %s — %s", severityLabel(a.Severity), a.Name, a.Description),
		})
	case "teams":
		body, _ = json.Marshal(map[string]any{
			"@type":      "MessageCard",
			"@context":   "http://schema.org/extensions",
			"themeColor": severityColor(a.Severity),
			"summary":    a.Name,
			"title":      fmt.Sprintf("flarewatch alert: %s", a.Name),
			"text":       a.Description,
		})
	case "pagerduty", "http", "":
		body, _ = json.Marshal(map[string]any{"alert": a})
	default:
		return fmt.Errorf("webhook channel %q: format %q unknown", ch.Name, format)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// webhookURL resolves the channel target: config "url_env" names an
// environment variable, falling back to a literal "url".
func webhookURL(ch Channel) string {
	if env := ch.Config["url_env"]; env != "" {
		return os.Getenv(env)
	}
	return ch.Config["url"]
}

func severityColor(s string) string {
	switch s {
	case "critical":
		return "FF4F6A"
	case "warning":
		return "FFAB40"
	default:
		return "00D4FF"
	}
}
