package access

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v4"
)

// Level gates who may run privileged commands. Levels form a total
// order: LevelAll < LevelAdmin < LevelOwner.
type Level int

const (
	LevelAll Level = iota
	LevelAdmin
	LevelOwner
)

func ParseLevel(s string) (Level, error) {
	switch s {
	case "all":
		return LevelAll, nil
	case "admin":
		return LevelAdmin, nil
	case "owner":
		return LevelOwner, nil
	default:
		return LevelAll, fmt.Errorf("unknown access level %q, expected owner, admin or all", s)
	}
}

func (l Level) String() string {
	switch l {
	case LevelAdmin:
		return "admin"
	case LevelOwner:
		return "owner"
	default:
		return "all"
	}
}

// RoleResolver is the slice of telebot.API the checker needs.
type RoleResolver interface {
	ChatMemberOf(chat, user telebot.Recipient) (*telebot.ChatMember, error)
}

type Checker struct {
	bot RoleResolver
}

func NewChecker(bot RoleResolver) *Checker {
	return &Checker{bot: bot}
}

// HasPermission reports whether user may run a command gated at the
// required level in chat. A failed role lookup fails closed.
func (c *Checker) HasPermission(chat *telebot.Chat, user *telebot.User, required Level) bool {
	if required == LevelAll {
		return true
	}

	member, err := c.bot.ChatMemberOf(chat, user)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"chat_id": chat.ID,
			"user_id": user.ID,
		}).Errorf("failed to resolve member role, denying access: %v", err)
		return false
	}

	switch required {
	case LevelAdmin:
		return member.Role == telebot.Administrator || member.Role == telebot.Creator
	case LevelOwner:
		return member.Role == telebot.Creator
	default:
		return false
	}
}
