package platform

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"gopkg.in/telebot.v4"

	"github.com/susnake/Lyssa/internal/verify"
)

// kickBanWindow is how long the temporary ban behind a kick lasts
// before the unban that lets the member rejoin.
const kickBanWindow = time.Minute

// Client implements verify.Platform on top of telebot.
type Client struct {
	bot telebot.API
}

func New(bot telebot.API) *Client {
	return &Client{bot: bot}
}

func (c *Client) SendMessage(_ context.Context, chatID int64, text string, opt *verify.SendOptions) (verify.MessageRef, error) {
	msg, err := c.bot.Send(telebot.ChatID(chatID), text, sendOptions(opt)...)
	if err != nil {
		return verify.MessageRef{}, fmt.Errorf("sending message: %w", err)
	}
	return messageRef(msg), nil
}

func (c *Client) SendPhoto(_ context.Context, chatID int64, photo []byte, caption string, opt *verify.SendOptions) (verify.MessageRef, error) {
	p := &telebot.Photo{
		File:    telebot.FromReader(bytes.NewReader(photo)),
		Caption: caption,
	}
	msg, err := c.bot.Send(telebot.ChatID(chatID), p, sendOptions(opt)...)
	if err != nil {
		return verify.MessageRef{}, fmt.Errorf("sending photo: %w", err)
	}
	return messageRef(msg), nil
}

func (c *Client) EditText(_ context.Context, ref verify.MessageRef, text string) error {
	if _, err := c.bot.Edit(stored(ref), text); err != nil {
		return fmt.Errorf("editing message: %w", err)
	}
	return nil
}

func (c *Client) EditCaption(_ context.Context, ref verify.MessageRef, caption string) error {
	if _, err := c.bot.EditCaption(stored(ref), caption); err != nil {
		return fmt.Errorf("editing caption: %w", err)
	}
	return nil
}

func (c *Client) DeleteMessage(_ context.Context, ref verify.MessageRef) error {
	if err := c.bot.Delete(stored(ref)); err != nil {
		return fmt.Errorf("deleting message: %w", err)
	}
	return nil
}

func (c *Client) Restrict(_ context.Context, chatID, userID int64) error {
	member := &telebot.ChatMember{
		User:            &telebot.User{ID: userID},
		Rights:          telebot.NoRights(),
		RestrictedUntil: telebot.Forever(),
	}
	if err := c.bot.Restrict(&telebot.Chat{ID: chatID}, member); err != nil {
		return fmt.Errorf("restricting member: %w", err)
	}
	return nil
}

func (c *Client) Unrestrict(_ context.Context, chatID, userID int64) error {
	member := &telebot.ChatMember{
		User:   &telebot.User{ID: userID},
		Rights: telebot.NoRestrictions(),
	}
	if err := c.bot.Restrict(&telebot.Chat{ID: chatID}, member); err != nil {
		return fmt.Errorf("lifting restrictions: %w", err)
	}
	return nil
}

func (c *Client) Ban(_ context.Context, chatID, userID int64) error {
	member := &telebot.ChatMember{User: &telebot.User{ID: userID}}
	if err := c.bot.Ban(&telebot.Chat{ID: chatID}, member); err != nil {
		return fmt.Errorf("banning member: %w", err)
	}
	return nil
}

// Kick removes a member without blacklisting: a short temporary ban
// followed by an unban so they may rejoin later.
func (c *Client) Kick(_ context.Context, chatID, userID int64) error {
	chat := &telebot.Chat{ID: chatID}
	member := &telebot.ChatMember{
		User:            &telebot.User{ID: userID},
		RestrictedUntil: time.Now().Add(kickBanWindow).Unix(),
	}
	if err := c.bot.Ban(chat, member); err != nil {
		return fmt.Errorf("kicking member: %w", err)
	}
	if err := c.bot.Unban(chat, &telebot.User{ID: userID}); err != nil {
		return fmt.Errorf("unbanning kicked member: %w", err)
	}
	return nil
}

func (c *Client) MemberStatus(_ context.Context, chatID, userID int64) (verify.MemberStatus, error) {
	member, err := c.bot.ChatMemberOf(&telebot.Chat{ID: chatID}, &telebot.User{ID: userID})
	if err != nil {
		return verify.StatusUnknown, fmt.Errorf("querying member: %w", err)
	}

	switch member.Role {
	case telebot.Creator:
		return verify.StatusCreator, nil
	case telebot.Administrator:
		return verify.StatusAdministrator, nil
	case telebot.Member:
		return verify.StatusMember, nil
	case telebot.Restricted:
		return verify.StatusRestricted, nil
	case telebot.Left:
		return verify.StatusLeft, nil
	case telebot.Kicked:
		return verify.StatusKicked, nil
	default:
		return verify.StatusUnknown, nil
	}
}

func sendOptions(opt *verify.SendOptions) []interface{} {
	if opt == nil || len(opt.Buttons) == 0 {
		return nil
	}

	markup := &telebot.ReplyMarkup{}
	rows := make([]telebot.Row, 0, len(opt.Buttons))
	for _, row := range opt.Buttons {
		btns := make([]telebot.Btn, 0, len(row))
		for _, b := range row {
			btns = append(btns, markup.Data(b.Label, b.Action, b.Payload))
		}
		rows = append(rows, markup.Row(btns...))
	}
	markup.Inline(rows...)

	return []interface{}{markup}
}

func stored(ref verify.MessageRef) telebot.Editable {
	return &telebot.StoredMessage{
		MessageID: ref.MessageID,
		ChatID:    ref.ChatID,
	}
}

func messageRef(msg *telebot.Message) verify.MessageRef {
	return verify.MessageRef{
		ChatID:    msg.Chat.ID,
		MessageID: strconv.Itoa(msg.ID),
	}
}
