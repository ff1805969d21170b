// Package telegram implements the outbound Bot API client used to render
// replies into the chat.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/starford/ansuz/internal/models"
)

// DefaultBaseURL is the production Bot API endpoint. Tests point the
// client at an httptest server instead.
const DefaultBaseURL = "https://api.telegram.org"

// Client is a minimal Bot API client covering the two calls the bot
// needs: sendMessage and editMessageText.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a client for the given API base URL and bot token.
func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type inlineButton struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

type inlineKeyboard struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

type sendMessageRequest struct {
	ChatID      int64           `json:"chat_id"`
	Text        string          `json:"text"`
	ReplyTo     int64           `json:"reply_to_message_id,omitempty"`
	ReplyMarkup *inlineKeyboard `json:"reply_markup,omitempty"`
}

type editMessageRequest struct {
	ChatID      int64           `json:"chat_id"`
	MessageID   int64           `json:"message_id"`
	Text        string          `json:"text"`
	ReplyMarkup *inlineKeyboard `json:"reply_markup,omitempty"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// Send posts a reply into a chat and returns the new message's ID.
func (c *Client) Send(ctx context.Context, chatID int64, reply models.Reply) (int64, error) {
	req := sendMessageRequest{
		ChatID:      chatID,
		Text:        reply.Text,
		ReplyTo:     reply.ReplyTo,
		ReplyMarkup: markup(reply.Buttons),
	}
	resp, err := c.call(ctx, "sendMessage", req)
	if err != nil {
		return 0, err
	}
	return resp.Result.MessageID, nil
}

// Edit replaces the text (and buttons) of a previously sent message.
func (c *Client) Edit(ctx context.Context, chatID, messageID int64, reply models.Reply) error {
	req := editMessageRequest{
		ChatID:      chatID,
		MessageID:   messageID,
		Text:        reply.Text,
		ReplyMarkup: markup(reply.Buttons),
	}
	_, err := c.call(ctx, "editMessageText", req)
	return err
}

func markup(buttons []models.Button) *inlineKeyboard {
	if len(buttons) == 0 {
		return nil
	}
	rows := make([][]inlineButton, len(buttons))
	for i, b := range buttons {
		rows[i] = []inlineButton{{Text: b.Label, URL: b.URL}}
	}
	return &inlineKeyboard{InlineKeyboard: rows}
}

func (c *Client) call(ctx context.Context, method string, body any) (*apiResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("telegram: encode %s: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("telegram: build %s: %w", method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("telegram: %s: %w", method, err)
	}
	defer httpResp.Body.Close()

	var resp apiResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("telegram: decode %s: %w", method, err)
	}
	if !resp.OK {
		return nil, fmt.Errorf("telegram: %s: api error: %s", method, resp.Description)
	}
	return &resp, nil
}
