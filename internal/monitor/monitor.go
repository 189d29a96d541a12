package monitor

import (
	"context"
	"fmt"

	"gopkg.in/telebot.v4"

	"github.com/susnake/Lyssa/internal/access"
	"github.com/susnake/Lyssa/internal/cas"
	"github.com/susnake/Lyssa/internal/config"
	"github.com/susnake/Lyssa/internal/settings"
	"github.com/susnake/Lyssa/internal/verify"
)

type Monitor struct {
	config  *config.Config
	store   *settings.Store
	bot     telebot.API
	engine  *verify.Engine
	checker *access.Checker
	cas     *cas.Client
}

func New(
	cfg *config.Config,
	store *settings.Store,
	bot telebot.API,
	engine *verify.Engine,
	checker *access.Checker,
	casClient *cas.Client,
) *Monitor {
	return &Monitor{
		config:  cfg,
		store:   store,
		bot:     bot,
		engine:  engine,
		checker: checker,
		cas:     casClient,
	}
}

// HandleAnyUpdate routes member-join, member-left and plain text
// updates from group chats into the engine.
func (m *Monitor) HandleAnyUpdate(c telebot.Context) error {
	return m.runHandler(c, func(uc *UpdateContext) error {
		if uc.Chat().Type != telebot.ChatGroup && uc.Chat().Type != telebot.ChatSuperGroup {
			uc.L().Debugf("ignoring update from non-group chat %d", uc.Chat().ID)
			return nil
		}

		if uc.Message() == nil {
			uc.L().Debugf("ignoring update without message")
			return nil
		}

		switch {
		case uc.Message().UserJoined != nil || len(uc.Message().UsersJoined) > 0:
			return m.handleUserJoined(uc)
		case uc.Message().UserLeft != nil:
			return m.handleUserLeft(uc)
		default:
			return m.handleText(uc)
		}
	})
}

// HandleCallback routes challenge button presses into the engine and
// answers the callback so the client stops spinning.
func (m *Monitor) HandleCallback(c telebot.Context) error {
	return m.runHandler(c, func(uc *UpdateContext) error {
		cb := uc.TC().Callback()
		if cb == nil || cb.Sender == nil {
			return nil
		}

		data := cb.Data
		for _, action := range callbackActions {
			if !action.DataMatches(data) {
				continue
			}

			notice := m.engine.HandleCallback(uc, uc.Chat().ID, cb.Sender.ID, action.String(), action.Payload(data))
			return uc.TC().Respond(&telebot.CallbackResponse{Text: notice})
		}

		uc.L().Debugf("ignoring unknown callback data %q", data)
		return uc.TC().Respond(&telebot.CallbackResponse{})
	})
}

func (m *Monitor) handleUserJoined(uc *UpdateContext) error {
	users := uc.Message().UsersJoined
	if len(users) == 0 && uc.Message().UserJoined != nil {
		users = []telebot.User{*uc.Message().UserJoined}
	}

	for i := range users {
		user := &users[i]
		if user.IsBot {
			uc.L().Infof("bot %s (%d) joined the chat, ignoring", user.Username, user.ID)
			continue
		}

		uc.L().Infof("user %s (%d) joined the chat %d", user.Username, user.ID, uc.Chat().ID)

		if m.screenedByCAS(uc, user) {
			continue
		}

		if err := m.engine.HandleJoin(uc, uc.Chat().ID, user.ID, displayName(user)); err != nil {
			uc.L().Errorf("failed to challenge joined user %d: %v", user.ID, err)
		}
	}

	return nil
}

// screenedByCAS removes a CAS-flagged joiner before any challenge is
// issued. Lookup failures are advisory only and never block a join.
func (m *Monitor) screenedByCAS(uc *UpdateContext, user *telebot.User) bool {
	if !m.store.Snapshot().CASEnabled || m.cas == nil {
		return false
	}

	flagged, err := m.cas.Check(uc, user.ID)
	if err != nil {
		uc.L().Warnf("CAS check failed for user %d, letting them through: %v", user.ID, err)
		return false
	}
	if !flagged {
		return false
	}

	uc.L().Infof("user %d is CAS-flagged, banning", user.ID)

	if err := m.bot.Ban(uc.Chat(), &telebot.ChatMember{User: user}); err != nil {
		uc.L().Errorf("failed to ban CAS-flagged user %d: %v", user.ID, err)
		return false
	}

	if _, err := m.bot.Send(uc.Chat(), fmt.Sprintf(
		"%s was banned: flagged by Combot Anti-Spam.", displayName(user),
	)); err != nil {
		uc.L().Errorf("failed to announce CAS ban: %v", err)
	}
	return true
}

func (m *Monitor) handleUserLeft(uc *UpdateContext) error {
	left := uc.Message().UserLeft
	uc.L().Infof("user %s (%d) left the chat %d", left.Username, left.ID, uc.Chat().ID)

	m.engine.HandleLeave(uc, uc.Chat().ID, left.ID)
	return nil
}

func (m *Monitor) handleText(uc *UpdateContext) error {
	if uc.Sender() == nil {
		return nil
	}

	if m.engine.HandleText(uc, uc.Chat().ID, uc.Sender().ID, uc.Message().Text) {
		uc.L().Infof("text message consumed as challenge answer")
	}
	return nil
}

// runHandler wraps every handler: a per-update context with deadline,
// field-scoped logging and a guarantee that unexpected failures are
// reported to the chat instead of crashing the poller.
func (m *Monitor) runHandler(c telebot.Context, h func(*UpdateContext) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), m.config.BotHandleTimeout)
	defer cancel()

	uc := NewUpdateContext(ctx, c)

	defer func() {
		if r := recover(); r != nil {
			uc.L().Errorf("panic while handling update: %v", r)
			m.reportFailure(uc)
		}
	}()

	if err := h(uc); err != nil {
		uc.L().Errorf("failed to handle update: %v", err)
		m.reportFailure(uc)
	}
	return nil
}

func (m *Monitor) reportFailure(uc *UpdateContext) {
	if err := uc.TC().Send("Something went wrong while handling your request, please try again later."); err != nil {
		uc.L().Errorf("failed to report failure to chat: %v", err)
	}
}

func displayName(u *telebot.User) string {
	if u.Username != "" {
		return "@" + u.Username
	}
	if u.FirstName != "" || u.LastName != "" {
		name := u.FirstName
		if u.LastName != "" {
			if name != "" {
				name += " "
			}
			name += u.LastName
		}
		return name
	}
	return fmt.Sprintf("user %d", u.ID)
}
