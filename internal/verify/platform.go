package verify

import (
	"context"
	"time"
)

// MemberStatus mirrors the platform's view of a chat member.
type MemberStatus string

const (
	StatusCreator       MemberStatus = "creator"
	StatusAdministrator MemberStatus = "administrator"
	StatusMember        MemberStatus = "member"
	StatusRestricted    MemberStatus = "restricted"
	StatusLeft          MemberStatus = "left"
	StatusKicked        MemberStatus = "kicked"
	StatusUnknown       MemberStatus = "unknown"
)

// Gone reports whether the member is no longer in the chat.
func (s MemberStatus) Gone() bool {
	return s == StatusLeft || s == StatusKicked
}

// MessageRef identifies a sent message for later edit or deletion.
type MessageRef struct {
	ChatID    int64
	MessageID string
}

// Callback actions carried by challenge buttons.
const (
	ActionAcknowledge = "verify_ok"
	ActionPick        = "verify_pick"
	ActionChar        = "verify_char"
)

// Button is one inline option attached to a challenge message.
// Action names the callback kind and Payload carries the chosen value.
type Button struct {
	Label   string
	Action  string
	Payload string
}

type SendOptions struct {
	Buttons [][]Button
}

// Platform is the remote chat-platform surface the engine drives.
// Every call may fail; the engine treats failures as best-effort and
// completes the surrounding transition regardless.
type Platform interface {
	SendMessage(ctx context.Context, chatID int64, text string, opt *SendOptions) (MessageRef, error)
	SendPhoto(ctx context.Context, chatID int64, photo []byte, caption string, opt *SendOptions) (MessageRef, error)
	EditText(ctx context.Context, ref MessageRef, text string) error
	EditCaption(ctx context.Context, ref MessageRef, caption string) error
	DeleteMessage(ctx context.Context, ref MessageRef) error
	Restrict(ctx context.Context, chatID, userID int64) error
	Unrestrict(ctx context.Context, chatID, userID int64) error
	Ban(ctx context.Context, chatID, userID int64) error
	Kick(ctx context.Context, chatID, userID int64) error
	MemberStatus(ctx context.Context, chatID, userID int64) (MemberStatus, error)
}

// TimerHandle is a scheduled run-once callback. Cancel is idempotent
// and a no-op once the timer has fired.
type TimerHandle interface {
	Cancel()
}

// Scheduler provides delayed callbacks. The name keys the timer for
// logging; identity for cancellation is the returned handle.
type Scheduler interface {
	ScheduleOnce(delay time.Duration, name string, fn func()) TimerHandle
}
