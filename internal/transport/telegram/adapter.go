// Package telegram implements transport.Messenger on top of telebot.
//
// The registry stores opaque channel ids; here a channel id is the
// decimal Telegram chat id of the group the announcement goes to, and a
// role id degrades to an inline mention line (Telegram has no server
// roles to ping).
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"wabbabot/internal/transport"
	logx "wabbabot/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
}

type Messenger struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot
}

func New(cfg Config, log logx.Logger) (*Messenger, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Messenger{cfg: cfg, log: log, bot: b}, nil
}

func (m *Messenger) Bot() *tele.Bot { return m.bot }

func (m *Messenger) SendAnnouncement(ctx context.Context, dest transport.Destination, ann transport.Announcement) error {
	chat, err := chatFor(dest)
	if err != nil {
		return err
	}
	if ctx != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	text := renderAnnouncement(ann)
	opt := &tele.SendOptions{ParseMode: tele.ModeHTML}

	if ann.ImageURL != "" {
		photo := &tele.Photo{File: tele.FromURL(ann.ImageURL), Caption: text}
		if _, err := m.bot.Send(chat, photo, opt); err == nil {
			return nil
		}
		// A broken image link should not sink the announcement itself.
		m.log.Debug("photo send failed, falling back to text",
			logx.String("channel", dest.ChannelID), logx.String("image", ann.ImageURL))
	}

	_, err = m.bot.Send(chat, text, opt)
	return err
}

func (m *Messenger) MentionRole(ctx context.Context, dest transport.Destination, roleID string) error {
	chat, err := chatFor(dest)
	if err != nil {
		return err
	}
	if ctx != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	_, err = m.bot.Send(chat, "@"+roleID, &tele.SendOptions{})
	return err
}

func chatFor(dest transport.Destination) (*tele.Chat, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(dest.ChannelID), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("channel id %q is not a telegram chat id: %w", dest.ChannelID, err)
	}
	return &tele.Chat{ID: id}, nil
}

func renderAnnouncement(ann transport.Announcement) string {
	var b strings.Builder
	if ann.Title != "" {
		b.WriteString("<b>")
		b.WriteString(escapeHTML(ann.Title))
		b.WriteString("</b>")
	}
	if ann.Body != "" {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(escapeHTML(ann.Body))
	}
	if ann.Link != "" {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(escapeHTML(ann.Link))
	}
	return b.String()
}

func escapeHTML(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}
