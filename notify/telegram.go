package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"gitnotify/logger"
)

// TelegramClient delivers messages through the Telegram Bot API using
// MarkdownV2 formatting.
type TelegramClient struct {
	token      string
	httpClient *http.Client
	baseURL    *url.URL
}

type sendMessageRequest struct {
	ChatID                int64  `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// NewTelegramClient creates a Telegram notifier. apiURL is the API
// host, normally https://api.telegram.org.
func NewTelegramClient(token, apiURL string) (*TelegramClient, error) {
	baseURL, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram api url: %w", err)
	}
	logger.Info("Initializing Telegram client", zap.String("base_url", baseURL.String()))
	return &TelegramClient{
		token: token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: baseURL,
	}, nil
}

// Send delivers text to the given chat. A 403 from the API means the
// recipient blocked the bot and is reported as ErrRecipientBlocked.
func (c *TelegramClient) Send(ctx context.Context, chatID int64, text string) error {
	path := fmt.Sprintf("/bot%s/sendMessage", c.token)
	reqURL := c.baseURL.ResolveReference(&url.URL{Path: path})

	body, err := json.Marshal(sendMessageRequest{
		ChatID:                chatID,
		Text:                  text,
		ParseMode:             "MarkdownV2",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", reqURL.String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	var apiResp sendMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return fmt.Errorf("failed to decode telegram response: %w", err)
	}

	if !apiResp.OK {
		if resp.StatusCode == http.StatusForbidden && isBlockedDescription(apiResp.Description) {
			logger.Warn("Recipient has blocked the bot",
				zap.Int64("chat_id", chatID),
				zap.String("description", apiResp.Description))
			return fmt.Errorf("%w: %s", ErrRecipientBlocked, apiResp.Description)
		}
		logger.Error("Telegram API rejected message",
			zap.Int64("chat_id", chatID),
			zap.Int("error_code", apiResp.ErrorCode),
			zap.String("description", apiResp.Description))
		return fmt.Errorf("telegram api error %d: %s", apiResp.ErrorCode, apiResp.Description)
	}

	return nil
}

// isBlockedDescription reports whether a 403 description is the
// bot-blocked rejection specifically. Other 403 variants (deactivated
// accounts, kicked from group chats) do not mean the recipient is gone
// for good and must not trigger subscriber removal.
func isBlockedDescription(description string) bool {
	return strings.Contains(strings.ToLower(description), "blocked")
}
