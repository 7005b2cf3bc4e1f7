// Package notify delivers triggered alerts to configured notification
// channels. Delivery is best-effort: failures are logged and never block
// rule evaluation.
package notify

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/slack-go/slack"

	"github.com/fleetwatch/fleetwatch/internal/database"
)

// Dispatcher routes an alert to the channels its rule names.
type Dispatcher struct {
	// channel name -> Slack webhook URL
	webhooks map[string]string
}

// NewDispatcher creates a dispatcher over the configured channel webhooks.
func NewDispatcher(webhooks map[string]string) *Dispatcher {
	if webhooks == nil {
		webhooks = map[string]string{}
	}
	return &Dispatcher{webhooks: webhooks}
}

// Dispatch sends the alert to every named channel that has a configured
// webhook. Unknown channel names are logged and skipped.
func (d *Dispatcher) Dispatch(channels database.StringList, alert *database.Alert) {
	for _, channel := range channels {
		url, ok := d.webhooks[channel]
		if !ok {
			log.Printf("Notify: no webhook configured for channel %q, skipping", channel)
			continue
		}
		if err := postAlert(url, alert); err != nil {
			log.Printf("Notify: failed to deliver alert %s to channel %q: %v", alert.UUID, channel, err)
		}
	}
}

// postAlert posts one alert to a Slack incoming webhook.
func postAlert(webhookURL string, alert *database.Alert) error {
	msg := &slack.WebhookMessage{
		Attachments: []slack.Attachment{
			{
				Color: levelColor(alert.Level),
				Title: fmt.Sprintf("Alert: %s", alert.RuleName),
				Text:  alert.Message,
				Fields: []slack.AttachmentField{
					{Title: "Device", Value: alert.DeviceID, Short: true},
					{Title: "Metric", Value: alert.MetricName, Short: true},
					{Title: "Level", Value: string(alert.Level), Short: true},
					{Title: "Value", Value: alert.CurrentValue, Short: true},
					{Title: "Threshold", Value: alert.ThresholdValue, Short: true},
					{Title: "Triggered", Value: alert.TriggeredAt.Format(time.RFC3339), Short: true},
				},
				Footer: "fleetwatch",
				Ts:     json.Number(strconv.FormatInt(time.Now().Unix(), 10)),
			},
		},
	}
	return slack.PostWebhook(webhookURL, msg)
}

func levelColor(level database.AlertLevel) string {
	switch level {
	case database.LevelEmergency, database.LevelCritical:
		return "#FF0000"
	case database.LevelError:
		return "#FF6600"
	case database.LevelWarning:
		return "#FFA500"
	case database.LevelInfo:
		return "#0099FF"
	default:
		return "#808080"
	}
}
