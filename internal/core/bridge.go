package core

import (
	"context"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	logx "wabbabot/pkg/logx"
)

// attachCommands registers the chat handlers that turn incoming messages
// into facade invocations. Identity resolution and the admin check both
// happen here, before the core sees the command.
func (a *App) attachCommands(ctx context.Context) {
	bot := a.msgr.Bot()

	bot.Handle(tele.OnText, func(c tele.Context) error {
		msg := c.Message()
		if msg == nil || msg.Sender == nil || msg.Chat == nil {
			return nil
		}
		text := strings.TrimSpace(msg.Text)
		if !strings.HasPrefix(text, "/") {
			return nil
		}

		parts := strings.Fields(text)
		name := strings.TrimPrefix(parts[0], "/")
		if i := strings.IndexByte(name, '@'); i >= 0 {
			name = name[:i]
		}

		callerID := strconv.FormatInt(msg.Sender.ID, 10)
		inv := Invocation{
			Command:    name,
			Args:       parts[1:],
			CallerID:   callerID,
			IsAdmin:    a.isAdmin(callerID),
			ServerID:   strconv.FormatInt(msg.Chat.ID, 10),
			ServerName: msg.Chat.Title,
		}

		reply, err := a.facade.Dispatch(ctx, inv)
		if err != nil {
			a.log.Debug("command failed",
				logx.String("cmd", inv.Command), logx.String("from", callerID), logx.Err(err))
			return c.Send("An error occurred! **" + err.Error() + "**")
		}
		return c.Send(reply)
	})
}

func (a *App) isAdmin(callerID string) bool {
	cfg := a.cfgm.Get()
	if cfg == nil {
		return false
	}
	for _, id := range cfg.Admins {
		if id == callerID {
			return true
		}
	}
	return false
}
