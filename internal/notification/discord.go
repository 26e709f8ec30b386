// Package notification posts run results of long running commands to
// Discord webhooks. Unconfigured webhooks silently disable it.
package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mundialis/i.sentinel-2/internal/config"
)

type message struct {
	Embeds []embed `json:"embeds"`
}

type embed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

const (
	colorRed   = 16711680
	colorGreen = 65280
)

// SendError posts a failure notification.
func SendError(text string) error {
	return post(config.DiscordErrorWebhook(), message{
		Embeds: []embed{{
			Title:       "🚨 Error Notification",
			Description: text,
			Color:       colorRed,
		}},
	})
}

// SendSuccess posts a success notification.
func SendSuccess(text string) error {
	return post(config.DiscordSuccessWebhook(), message{
		Embeds: []embed{{
			Title:       "✅ Success Notification",
			Description: text,
			Color:       colorGreen,
		}},
	})
}

func post(url string, msg message) error {
	if url == "" {
		return nil
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	resp, err := http.Post(url, "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to send Discord notification, status code: %d", resp.StatusCode)
	}
	return nil
}
