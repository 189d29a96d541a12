package verify

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/susnake/Lyssa/internal/challenge"
	"github.com/susnake/Lyssa/internal/settings"
)

// userKey identifies one member in one chat. Verification state is
// per-chat: passing a challenge in one chat says nothing about another.
type userKey struct {
	ChatID int64
	UserID int64
}

// pendingChallenge is the live, unresolved verification state for one
// user in one chat. At most one exists per userKey.
type pendingChallenge struct {
	chatID  int64
	userID  int64
	display string

	kind      challenge.Kind
	createdAt time.Time

	token  string
	answer string
	code   string
	cursor int

	// banOnFailure is captured at creation; a config change mid-flight
	// does not alter a challenge already in progress.
	banOnFailure bool

	messages     []MessageRef
	warnTimer    TimerHandle
	removalTimer TimerHandle
}

type generateFunc func(kind challenge.Kind, rng *rand.Rand) (*challenge.Payload, error)

// Engine owns all per-user challenge state and drives the
// timeout/escalation state machine. Every inbound event (platform
// update or timer firing) is serialized on one mutex held across the
// whole transition, remote calls included, so no event can observe a
// half-updated entry.
type Engine struct {
	store    *settings.Store
	platform Platform
	sched    Scheduler

	handleTimeout time.Duration
	rng           *rand.Rand
	gen           generateFunc

	mu       sync.Mutex
	pending  map[userKey]*pendingChallenge
	verified map[userKey]struct{}
}

func New(store *settings.Store, platform Platform, sched Scheduler, handleTimeout time.Duration) *Engine {
	return &Engine{
		store:         store,
		platform:      platform,
		sched:         sched,
		handleTimeout: handleTimeout,
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
		gen:           challenge.Generate,
		pending:       make(map[userKey]*pendingChallenge),
		verified:      make(map[userKey]struct{}),
	}
}

func (e *Engine) PendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

func (e *Engine) VerifiedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.verified)
}

// HandleJoin challenges a newly joined member: generates a payload for
// the configured kind, restricts the member, sends the challenge and
// schedules the warning and removal timers. A member who already
// passed a challenge in this chat is skipped. A repeated join while a
// challenge is pending replaces the old entry, never duplicates it.
func (e *Engine) HandleJoin(ctx context.Context, chatID, userID int64, display string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	k := userKey{ChatID: chatID, UserID: userID}
	log := e.log(k)

	if _, ok := e.verified[k]; ok {
		log.Infof("user already verified, skipping challenge")
		return nil
	}

	snap := e.store.Snapshot()

	payload, err := e.gen(snap.ChallengeKind, e.rng)
	if err != nil {
		// Fatal for this user's challenge only: notify the chat and
		// abort without touching any other state.
		log.Errorf("failed to generate %s challenge: %v", snap.ChallengeKind, err)
		if _, serr := e.platform.SendMessage(ctx, chatID, fmt.Sprintf(
			"Cannot prepare a captcha for %s, please contact an administrator.", display,
		), nil); serr != nil {
			log.Errorf("failed to report generation failure: %v", serr)
		}
		return fmt.Errorf("generating %s challenge: %w", snap.ChallengeKind, err)
	}

	if old, ok := e.pending[k]; ok {
		log.Infof("replacing stale pending challenge from %s", old.createdAt)
		e.retire(old)
	}

	// The challenge goes out before the restriction: a failed send
	// aborts the join with the member untouched, never muted with no
	// challenge to answer.
	ref, err := e.sendChallenge(ctx, chatID, display, snap, payload)
	if err != nil {
		return fmt.Errorf("sending challenge: %w", err)
	}

	if err := e.platform.Restrict(ctx, chatID, userID); err != nil {
		log.Warnf("failed to restrict member: %v", err)
	}

	p := &pendingChallenge{
		chatID:       chatID,
		userID:       userID,
		display:      display,
		kind:         payload.Kind,
		createdAt:    time.Now(),
		token:        payload.Token,
		answer:       payload.Answer,
		code:         payload.Code,
		banOnFailure: snap.BanOnFailure,
		messages:     []MessageRef{ref},
	}
	e.pending[k] = p

	p.warnTimer = e.sched.ScheduleOnce(snap.TimeLimit/2, timerName("warning", k), func() {
		e.fireWarning(k)
	})
	p.removalTimer = e.sched.ScheduleOnce(snap.TimeLimit, timerName("removal", k), func() {
		e.fireRemoval(k)
	})

	log.Infof("challenge %s pending, warning in %s, removal in %s", p.kind, snap.TimeLimit/2, snap.TimeLimit)
	return nil
}

func (e *Engine) sendChallenge(
	ctx context.Context,
	chatID int64,
	display string,
	snap settings.Settings,
	payload *challenge.Payload,
) (MessageRef, error) {
	switch payload.Kind {
	case challenge.Button:
		text := fmt.Sprintf("%s, %s You have %d seconds.",
			display, snap.PromptMessage, int(snap.TimeLimit.Seconds()))
		opt := &SendOptions{Buttons: [][]Button{{
			{Label: snap.ButtonText, Action: ActionAcknowledge, Payload: payload.Token},
		}}}
		return e.platform.SendMessage(ctx, chatID, text, opt)

	case challenge.Arithmetic:
		text := fmt.Sprintf("%s, %s\nPick the correct answer:", display, payload.Prompt)
		rows := make([][]Button, 0, len(payload.Options))
		for _, opt := range payload.Options {
			rows = append(rows, []Button{{Label: opt, Action: ActionPick, Payload: opt}})
		}
		return e.platform.SendMessage(ctx, chatID, text, &SendOptions{Buttons: rows})

	case challenge.ChoiceSet:
		text := fmt.Sprintf("%s, pick %s to confirm you are not a bot!", display, payload.Answer)
		rows := make([][]Button, 0, len(payload.Options))
		for _, opt := range payload.Options {
			rows = append(rows, []Button{{Label: opt, Action: ActionPick, Payload: opt}})
		}
		return e.platform.SendMessage(ctx, chatID, text, &SendOptions{Buttons: rows})

	case challenge.ImageSequence:
		caption := fmt.Sprintf("%s, press the buttons in the order of the characters on the image.", display)
		row := make([]Button, 0, len(payload.Options))
		for _, opt := range payload.Options {
			row = append(row, Button{Label: opt, Action: ActionChar, Payload: opt})
		}
		return e.platform.SendPhoto(ctx, chatID, payload.Image, caption, &SendOptions{Buttons: [][]Button{row}})

	default:
		return MessageRef{}, fmt.Errorf("unknown challenge kind %q", payload.Kind)
	}
}

// HandleCallback processes a challenge button press. The returned text,
// if any, is a short notice for the presser. Presses referencing a user
// with no pending challenge are no-ops.
func (e *Engine) HandleCallback(ctx context.Context, chatID, userID int64, action, payload string) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	k := userKey{ChatID: chatID, UserID: userID}
	p, ok := e.pending[k]
	if !ok {
		e.log(k).Debugf("callback %s for user with no pending challenge, ignoring", action)
		return ""
	}

	switch action {
	case ActionAcknowledge:
		if p.kind != challenge.Button || payload != p.token {
			e.log(k).Debugf("stale acknowledgment token, ignoring")
			return ""
		}
		e.succeed(ctx, k, p)
		return ""

	case ActionPick:
		if p.kind != challenge.Arithmetic && p.kind != challenge.ChoiceSet {
			return ""
		}
		if payload == p.answer {
			e.succeed(ctx, k, p)
		} else {
			e.reject(ctx, k, p, "wrong answer")
		}
		return ""

	case ActionChar:
		if p.kind != challenge.ImageSequence {
			return ""
		}
		expected := string([]rune(p.code)[p.cursor])
		if payload != expected {
			e.reject(ctx, k, p, "wrong character")
			return ""
		}
		p.cursor++
		if p.cursor == len([]rune(p.code)) {
			e.succeed(ctx, k, p)
			return ""
		}
		return "Correct, keep going!"

	default:
		e.log(k).Warnf("unknown callback action %q", action)
		return ""
	}
}

// HandleText processes a text reply as a challenge answer. It reports
// whether the message belonged to a pending challenge. Non-numeric
// text against an arithmetic challenge is a wrong answer, not an error.
func (e *Engine) HandleText(ctx context.Context, chatID, userID int64, text string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	k := userKey{ChatID: chatID, UserID: userID}
	p, ok := e.pending[k]
	if !ok {
		return false
	}

	text = strings.TrimSpace(text)

	switch p.kind {
	case challenge.Arithmetic:
		if text == p.answer {
			e.succeed(ctx, k, p)
		} else {
			e.reject(ctx, k, p, "wrong answer")
		}
		return true

	case challenge.ImageSequence:
		if text == p.code {
			e.succeed(ctx, k, p)
		} else {
			e.reject(ctx, k, p, "wrong code")
		}
		return true

	default:
		return false
	}
}

// HandleLeave retires the pending challenge of a member who left or
// was removed externally. No removal action is issued.
func (e *Engine) HandleLeave(ctx context.Context, chatID, userID int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	k := userKey{ChatID: chatID, UserID: userID}
	p, ok := e.pending[k]
	if !ok {
		return
	}

	e.log(k).Infof("member left while pending, cleaning up")
	e.cleanup(ctx, k, p)
}

func (e *Engine) fireWarning(k userKey) {
	ctx, cancel := context.WithTimeout(context.Background(), e.handleTimeout)
	defer cancel()

	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.pending[k]
	if !ok {
		return
	}

	log := e.log(k)

	status, err := e.platform.MemberStatus(ctx, k.ChatID, k.UserID)
	if err != nil {
		log.Warnf("failed to check member status for warning: %v", err)
	} else if status.Gone() {
		log.Infof("member already gone, skipping warning")
		return
	}

	// time_limit is re-read so a config change adjusts the displayed
	// remaining time of later warnings.
	remaining := e.store.Snapshot().TimeLimit / 2

	ref, err := e.platform.SendMessage(ctx, k.ChatID, fmt.Sprintf(
		"%s, you have %d seconds left to pass the captcha.",
		p.display, int(remaining.Seconds()),
	), nil)
	if err != nil {
		log.Errorf("failed to send warning: %v", err)
		return
	}
	p.messages = append(p.messages, ref)
}

func (e *Engine) fireRemoval(k userKey) {
	ctx, cancel := context.WithTimeout(context.Background(), e.handleTimeout)
	defer cancel()

	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.pending[k]
	if !ok {
		return
	}

	log := e.log(k)

	status, err := e.platform.MemberStatus(ctx, k.ChatID, k.UserID)
	if err != nil {
		log.Warnf("failed to check member status for removal: %v", err)
	} else if status.Gone() {
		log.Infof("member already gone, skipping removal")
		e.cleanup(ctx, k, p)
		return
	}

	e.reject(ctx, k, p, "timeout")
}

// succeed handles a completed challenge: records verification,
// acknowledges, cleans up and restores posting permissions unless the
// member is already gone.
func (e *Engine) succeed(ctx context.Context, k userKey, p *pendingChallenge) {
	log := e.log(k)
	log.Infof("user passed the %s challenge", p.kind)

	e.verified[k] = struct{}{}

	e.editChallengeMessage(ctx, p, fmt.Sprintf("%s, you passed the verification. Welcome!", p.display))
	e.cleanup(ctx, k, p)

	status, err := e.platform.MemberStatus(ctx, k.ChatID, k.UserID)
	if err != nil {
		log.Errorf("failed to check member status, not restoring permissions: %v", err)
		return
	}
	if status.Gone() {
		log.Infof("member already gone, not restoring permissions")
		return
	}
	if err := e.platform.Unrestrict(ctx, k.ChatID, k.UserID); err != nil {
		log.Errorf("failed to restore permissions: %v", err)
	}
}

// reject handles every failure branch: wrong answer, wrong character,
// wrong code and timeout all notify, remove the member per the mode
// captured at creation, announce and clean up.
func (e *Engine) reject(ctx context.Context, k userKey, p *pendingChallenge, reason string) {
	log := e.log(k)
	log.Infof("rejecting challenge: %s", reason)

	if reason != "timeout" {
		e.editChallengeMessage(ctx, p, fmt.Sprintf("%s, wrong answer! You will be removed.", p.display))
	}

	action := "kicked"
	var err error
	if p.banOnFailure {
		action = "banned"
		err = e.platform.Ban(ctx, k.ChatID, k.UserID)
	} else {
		err = e.platform.Kick(ctx, k.ChatID, k.UserID)
	}
	if err != nil {
		log.Errorf("failed to remove member: %v", err)
	}

	if _, err := e.platform.SendMessage(ctx, k.ChatID, fmt.Sprintf(
		"%s was %s for not passing the captcha.", p.display, action,
	), nil); err != nil {
		log.Errorf("failed to announce removal: %v", err)
	}

	// A failed user must be challenged again on a later rejoin.
	delete(e.verified, k)

	e.cleanup(ctx, k, p)
}

// cleanup cancels any still-live timers, deletes every recorded
// message best-effort and discards the pending entry. It is idempotent:
// a second invocation for the same entry must not double-remove.
func (e *Engine) cleanup(ctx context.Context, k userKey, p *pendingChallenge) {
	log := e.log(k)

	if p.warnTimer != nil {
		p.warnTimer.Cancel()
	}
	if p.removalTimer != nil {
		p.removalTimer.Cancel()
	}

	for _, ref := range p.messages {
		if err := e.platform.DeleteMessage(ctx, ref); err != nil {
			log.Warnf("failed to delete challenge message %s: %v", ref.MessageID, err)
		}
	}
	p.messages = nil

	delete(e.pending, k)
}

// retire drops a pending entry without deleting its messages, used
// when a fresh join replaces a stale challenge.
func (e *Engine) retire(p *pendingChallenge) {
	if p.warnTimer != nil {
		p.warnTimer.Cancel()
	}
	if p.removalTimer != nil {
		p.removalTimer.Cancel()
	}
	delete(e.pending, userKey{ChatID: p.chatID, UserID: p.userID})
}

func (e *Engine) editChallengeMessage(ctx context.Context, p *pendingChallenge, text string) {
	if len(p.messages) == 0 {
		return
	}

	var err error
	if p.kind == challenge.ImageSequence {
		err = e.platform.EditCaption(ctx, p.messages[0], text)
	} else {
		err = e.platform.EditText(ctx, p.messages[0], text)
	}
	if err != nil {
		e.log(userKey{ChatID: p.chatID, UserID: p.userID}).
			Warnf("failed to edit challenge message: %v", err)
	}
}

func (e *Engine) log(k userKey) *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"chat_id": k.ChatID,
		"user_id": k.UserID,
	})
}

func timerName(purpose string, k userKey) string {
	return fmt.Sprintf("%s:%d:%d", purpose, k.ChatID, k.UserID)
}
