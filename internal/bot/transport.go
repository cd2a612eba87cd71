package bot

import (
	"errors"
	"fmt"
	"net/http"
	neturl "net/url"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// NewAPI connects to Telegram. Every API call is bounded by timeout plus the
// long-poll window.
func NewAPI(token string, timeout time.Duration, pollTimeout int) (*tgbotapi.BotAPI, error) {
	client := &http.Client{Timeout: timeout + time.Duration(pollTimeout)*time.Second}
	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	return api, nil
}

// RegisterWebhook points Telegram at url. Telegram echoes secret back in the
// X-Telegram-Bot-Api-Secret-Token header of every update.
func RegisterWebhook(api *tgbotapi.BotAPI, url, secret string) error {
	if _, err := neturl.ParseRequestURI(url); err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	if secret == "" {
		return errors.New("webhook secret is required")
	}
	params := make(tgbotapi.Params)
	params["url"] = url
	params["secret_token"] = secret
	if _, err := api.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}
	return nil
}

// StartPolling removes any webhook and opens the long-poll update channel.
func StartPolling(api *tgbotapi.BotAPI, pollTimeout int) (tgbotapi.UpdatesChannel, error) {
	if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return nil, fmt.Errorf("failed to delete webhook: %w", err)
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	return api.GetUpdatesChan(u), nil
}
