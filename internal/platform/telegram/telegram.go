// Package telegram sends messages to a chat through the Telegram Bot API.
//
// The client never polls for updates; it is an outbound-only bot. It also
// satisfies logx.Notifier so warn+ log records can be forwarded to the same chat.
package telegram

import (
	"context"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	tele "gopkg.in/telebot.v4"

	"socialia/internal/platform"
	"socialia/internal/platform/httpapi"
)

const Name = "telegram"

type Client struct {
	bot    *tele.Bot
	chatID int64
}

func New(cfg platform.Config) (platform.Client, error) {
	return Open(cfg)
}

// Open is New with the concrete type, for callers that also need Notify.
func Open(cfg platform.Config) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.WithHint(errors.New("telegram token is empty"), "set platforms.telegram.token or TELEGRAM_BOT_TOKEN")
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		URL:     strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		Client:  httpapi.NewClient(cfg.Timeout),
		Offline: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "telegram bot")
	}
	return &Client{bot: b, chatID: cfg.ChatID}, nil
}

func (c *Client) Name() string { return Name }

// Post sends text to the configured chat. Recognized options: chat_id, parse_mode,
// silent ("true").
func (c *Client) Post(ctx context.Context, text string, opts platform.Options) (platform.Result, error) {
	if err := ctx.Err(); err != nil {
		return platform.Result{}, err
	}
	chatID := c.chatID
	if v := opts.String("chat_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return platform.Failure("invalid chat_id %q", v), nil
		}
		chatID = id
	}
	if chatID == 0 {
		return platform.Failure("No chat_id configured"), nil
	}
	sendOpt := &tele.SendOptions{
		ParseMode:           tele.ParseMode(opts.String("parse_mode")),
		DisableNotification: opts.String("silent") == "true",
	}
	msg, err := c.bot.Send(tele.ChatID(chatID), text, sendOpt)
	if err != nil {
		return platform.Failure("%v", err), nil
	}
	id := strconv.Itoa(msg.ID)
	return platform.Result{Success: true, ID: id, URL: messageURL(chatID, msg.ID)}, nil
}

// Notify implements logx.Notifier.
func (c *Client) Notify(ctx context.Context, text string) error {
	res, err := c.Post(ctx, text, nil)
	if err != nil {
		return err
	}
	if !res.Success {
		return errors.New(res.Error)
	}
	return nil
}

// messageURL only exists for supergroups and channels (ids prefixed with -100).
func messageURL(chatID int64, msgID int) string {
	s := strconv.FormatInt(chatID, 10)
	internal, ok := strings.CutPrefix(s, "-100")
	if !ok || internal == "" {
		return ""
	}
	return "https://t.me/c/" + internal + "/" + strconv.Itoa(msgID)
}
