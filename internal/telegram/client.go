// Package telegram posts to channels through the Telegram Bot API.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/bing-daily-crawler/internal/bing"
	"github.com/JakeFAU/bing-daily-crawler/internal/ratelimit"
)

// DefaultAPIBase is the public Bot API endpoint.
const DefaultAPIBase = "https://api.telegram.org"

// Config controls the Bot API client.
type Config struct {
	APIBase string
	Token   string
	Timeout time.Duration
	// RatePerSecond bounds sends per chat. Zero disables limiting.
	RatePerSecond float64
}

// APIError is an unsuccessful Bot API response.
type APIError struct {
	Method      string
	Code        int
	Description string
	RetryAfter  int
}

func (e *APIError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("telegram %s: %d %s (retry after %ds)", e.Method, e.Code, e.Description, e.RetryAfter)
	}
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// Client implements bing.Sink on top of the Bot API SDK.
type Client struct {
	bot     *tgbotapi.BotAPI
	token   string
	limiter *ratelimit.Limiter
	logger  *zap.Logger
}

// New constructs a Client and verifies the token with getMe. A nil
// httpClient gets one with cfg.Timeout.
func New(cfg Config, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 12 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		token:   cfg.Token,
		limiter: ratelimit.New(ratelimit.Config{RPS: cfg.RatePerSecond, Burst: 1}),
		logger:  logger,
	}

	endpoint := strings.TrimRight(cfg.APIBase, "/") + "/bot%s/%s"
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, endpoint, httpClient)
	if err != nil {
		return nil, c.wrap("getMe", err)
	}
	c.bot = bot
	logger.Info("telegram bot authorized", zap.String("username", bot.Self.UserName))
	return c, nil
}

// SendDocument posts documentURL to chatID. The API fetches the file itself.
func (c *Client) SendDocument(ctx context.Context, chatID, documentURL, caption string) (bing.ArchiveRef, error) {
	chat, err := baseChat(chatID)
	if err != nil {
		return bing.ArchiveRef{}, err
	}
	msg, err := c.send(ctx, "sendDocument", chatID, c.chattable(tgbotapi.DocumentConfig{
		BaseFile:  tgbotapi.BaseFile{BaseChat: chat, File: tgbotapi.FileURL(documentURL)},
		Caption:   caption,
		ParseMode: tgbotapi.ModeHTML,
	}))
	if err != nil {
		return bing.ArchiveRef{}, err
	}
	ref := bing.ArchiveRef{MessageID: int64(msg.MessageID)}
	if msg.Document != nil {
		ref.FileID = msg.Document.FileID
	}
	return ref, nil
}

// SendMessage posts an HTML text message and returns its message ID.
func (c *Client) SendMessage(ctx context.Context, chatID, text string) (int64, error) {
	chat, err := baseChat(chatID)
	if err != nil {
		return 0, err
	}
	msg, err := c.send(ctx, "sendMessage", chatID, c.chattable(tgbotapi.MessageConfig{
		BaseChat:              chat,
		Text:                  text,
		ParseMode:             tgbotapi.ModeHTML,
		DisableWebPagePreview: true,
	}))
	if err != nil {
		return 0, err
	}
	return int64(msg.MessageID), nil
}

// SendPhoto posts photoURL with an HTML caption. PhotoConfig has no
// disable_web_page_preview field, so the call is built from raw params.
func (c *Client) SendPhoto(ctx context.Context, chatID, photoURL, caption string) (bing.PhotoResult, error) {
	id, err := ParseChatID(chatID)
	if err != nil {
		return bing.PhotoResult{}, err
	}
	params := tgbotapi.Params{
		"chat_id":                  id,
		"photo":                    photoURL,
		"caption":                  caption,
		"parse_mode":               tgbotapi.ModeHTML,
		"disable_web_page_preview": "true",
	}
	msg, err := c.send(ctx, "sendPhoto", chatID, func() (tgbotapi.Message, error) {
		var out tgbotapi.Message
		resp, err := c.bot.MakeRequest("sendPhoto", params)
		if err != nil {
			return out, err
		}
		if err := json.Unmarshal(resp.Result, &out); err != nil {
			return out, fmt.Errorf("decode result: %w", err)
		}
		return out, nil
	})
	if err != nil {
		return bing.PhotoResult{}, err
	}
	res := bing.PhotoResult{MessageID: int64(msg.MessageID)}
	for _, p := range msg.Photo {
		res.Photo = append(res.Photo, bing.PhotoSize{
			FileID:       p.FileID,
			FileUniqueID: p.FileUniqueID,
			Width:        p.Width,
			Height:       p.Height,
			FileSize:     int64(p.FileSize),
		})
	}
	return res, nil
}

// send waits for the chat's rate slot and performs one call. The SDK has no
// context support, so cancellation is honored up to the request and the
// HTTP client timeout bounds the call itself.
func (c *Client) send(ctx context.Context, method, chatID string, call func() (tgbotapi.Message, error)) (tgbotapi.Message, error) {
	if err := c.limiter.Wait(ctx, chatID); err != nil {
		return tgbotapi.Message{}, err
	}
	if err := ctx.Err(); err != nil {
		return tgbotapi.Message{}, fmt.Errorf("telegram %s: %w", method, err)
	}
	out, err := call()
	if err != nil {
		return tgbotapi.Message{}, c.wrap(method, err)
	}
	c.logger.Debug("telegram call ok", zap.String("method", method), zap.String("chat_id", chatID))
	return out, nil
}

func (c *Client) chattable(msg tgbotapi.Chattable) func() (tgbotapi.Message, error) {
	return func() (tgbotapi.Message, error) { return c.bot.Send(msg) }
}

// wrap converts SDK errors to APIError and strips the bot token from
// transport errors, which embed the request URL.
func (c *Client) wrap(method string, err error) error {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) {
		return &APIError{
			Method:      method,
			Code:        tgErr.Code,
			Description: tgErr.Message,
			RetryAfter:  tgErr.RetryAfter,
		}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		urlErr.URL = strings.ReplaceAll(urlErr.URL, c.token, "<token>")
		return fmt.Errorf("telegram %s: %w", method, urlErr)
	}
	return fmt.Errorf("telegram %s: %s", method, strings.ReplaceAll(err.Error(), c.token, "<token>"))
}

func baseChat(chatID string) (tgbotapi.BaseChat, error) {
	id, err := ParseChatID(chatID)
	if err != nil {
		return tgbotapi.BaseChat{}, err
	}
	if strings.HasPrefix(id, "@") {
		return tgbotapi.BaseChat{ChannelUsername: id}, nil
	}
	n, _ := strconv.ParseInt(id, 10, 64)
	return tgbotapi.BaseChat{ChatID: n}, nil
}

// ParseChatID returns chatID unchanged for @usernames and validates numeric IDs.
func ParseChatID(chatID string) (string, error) {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return "", fmt.Errorf("chat id is required")
	}
	if strings.HasPrefix(chatID, "@") {
		return chatID, nil
	}
	if _, err := strconv.ParseInt(chatID, 10, 64); err != nil {
		return "", fmt.Errorf("chat id %q is neither @username nor numeric", chatID)
	}
	return chatID, nil
}
