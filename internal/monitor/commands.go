package monitor

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/telebot.v4"

	"github.com/susnake/Lyssa/internal/access"
	"github.com/susnake/Lyssa/internal/challenge"
)

func (m *Monitor) HandleCaptchaCommand(c telebot.Context) error {
	return m.runHandler(c, func(uc *UpdateContext) error {
		if !m.requirePermission(uc) {
			return nil
		}

		args := uc.TC().Args()
		if len(args) == 0 {
			return uc.TC().Reply(fmt.Sprintf("Current captcha kind: %s.", m.store.Snapshot().ChallengeKind))
		}

		kind, err := challenge.ParseKind(strings.ToLower(args[0]))
		if err != nil {
			return uc.TC().Reply("Available captcha kinds: button, math, fruits, image.")
		}

		if err := m.store.SetChallengeKind(kind); err != nil {
			return fmt.Errorf("setting captcha kind: %w", err)
		}

		uc.L().Infof("captcha kind changed to %s", kind)
		return uc.TC().Reply(fmt.Sprintf("Captcha kind set to %s.", kind))
	})
}

func (m *Monitor) HandleTimeLimitCommand(c telebot.Context) error {
	return m.runHandler(c, func(uc *UpdateContext) error {
		if !m.requirePermission(uc) {
			return nil
		}

		args := uc.TC().Args()
		if len(args) == 0 {
			limit := int(m.store.Snapshot().TimeLimit.Seconds())
			return uc.TC().Reply(fmt.Sprintf("Current captcha time limit: %d seconds.", limit))
		}

		seconds, err := strconv.Atoi(args[0])
		if err != nil || seconds <= 0 {
			return uc.TC().Reply("Please provide the time limit as a positive whole number of seconds.")
		}

		if err := m.store.SetTimeLimit(seconds); err != nil {
			return fmt.Errorf("setting time limit: %w", err)
		}

		uc.L().Infof("captcha time limit changed to %d seconds", seconds)
		return uc.TC().Reply(fmt.Sprintf("Captcha time limit set to %d seconds.", seconds))
	})
}

func (m *Monitor) HandleLockCommand(c telebot.Context) error {
	return m.runHandler(c, func(uc *UpdateContext) error {
		if !m.requirePermission(uc) {
			return nil
		}

		args := uc.TC().Args()
		if len(args) == 0 {
			return uc.TC().Reply(fmt.Sprintf("Current access level: %s.", m.store.Snapshot().AccessLevel))
		}

		level, err := access.ParseLevel(strings.ToLower(args[0]))
		if err != nil {
			return uc.TC().Reply("Access level must be owner, admin or all.")
		}

		if err := m.store.SetAccessLevel(level); err != nil {
			return fmt.Errorf("setting access level: %w", err)
		}

		uc.L().Infof("access level changed to %s", level)
		return uc.TC().Reply(fmt.Sprintf("Access level set to %s.", level))
	})
}

func (m *Monitor) HandleBanUsersCommand(c telebot.Context) error {
	return m.runHandler(c, func(uc *UpdateContext) error {
		if !m.requirePermission(uc) {
			return nil
		}

		args := uc.TC().Args()
		if len(args) == 0 {
			mode := "kick"
			if m.store.Snapshot().BanOnFailure {
				mode = "ban"
			}
			return uc.TC().Reply(fmt.Sprintf("Current failure mode: %s.", mode))
		}

		switch strings.ToLower(args[0]) {
		case "true":
			if err := m.store.SetBanOnFailure(true); err != nil {
				return fmt.Errorf("setting ban mode: %w", err)
			}
			return uc.TC().Reply("Mode changed: users failing the captcha will be banned.")
		case "false":
			if err := m.store.SetBanOnFailure(false); err != nil {
				return fmt.Errorf("setting ban mode: %w", err)
			}
			return uc.TC().Reply("Mode changed: users failing the captcha will be kicked.")
		default:
			return uc.TC().Reply("Use /banUsers true or /banUsers false.")
		}
	})
}

func (m *Monitor) HandleCASCommand(c telebot.Context) error {
	return m.runHandler(c, func(uc *UpdateContext) error {
		if !m.requirePermission(uc) {
			return nil
		}

		args := uc.TC().Args()
		if len(args) == 0 {
			state := "off"
			if m.store.Snapshot().CASEnabled {
				state = "on"
			}
			return uc.TC().Reply(fmt.Sprintf("Combot Anti-Spam screening is %s.", state))
		}

		switch strings.ToLower(args[0]) {
		case "on":
			if err := m.store.SetCASEnabled(true); err != nil {
				return fmt.Errorf("enabling CAS: %w", err)
			}
			return uc.TC().Reply("Combot Anti-Spam screening enabled.")
		case "off":
			if err := m.store.SetCASEnabled(false); err != nil {
				return fmt.Errorf("disabling CAS: %w", err)
			}
			return uc.TC().Reply("Combot Anti-Spam screening disabled.")
		default:
			return uc.TC().Reply("Use /cas on or /cas off.")
		}
	})
}

func (m *Monitor) HandleButtonTextCommand(c telebot.Context) error {
	return m.runHandler(c, func(uc *UpdateContext) error {
		if !m.requirePermission(uc) {
			return nil
		}

		text := strings.TrimSpace(uc.Message().Payload)
		if text == "" {
			return uc.TC().Reply(fmt.Sprintf("Current captcha button text: %q.", m.store.Snapshot().ButtonText))
		}

		if err := m.store.SetButtonText(text); err != nil {
			return fmt.Errorf("setting button text: %w", err)
		}
		return uc.TC().Reply(fmt.Sprintf("Captcha button text set to %q.", text))
	})
}

func (m *Monitor) HandleCaptchaMessageCommand(c telebot.Context) error {
	return m.runHandler(c, func(uc *UpdateContext) error {
		if !m.requirePermission(uc) {
			return nil
		}

		text := strings.TrimSpace(uc.Message().Payload)
		if text == "" {
			return uc.TC().Reply(fmt.Sprintf("Current captcha message: %q.", m.store.Snapshot().PromptMessage))
		}

		if err := m.store.SetPromptMessage(text); err != nil {
			return fmt.Errorf("setting captcha message: %w", err)
		}
		return uc.TC().Reply(fmt.Sprintf("Captcha message set to %q.", text))
	})
}

func (m *Monitor) HandleViewConfigCommand(c telebot.Context) error {
	return m.runHandler(c, func(uc *UpdateContext) error {
		if !m.requirePermission(uc) {
			return nil
		}

		snap := m.store.Snapshot()

		mode := "kick"
		if snap.BanOnFailure {
			mode = "ban"
		}
		casState := "off"
		if snap.CASEnabled {
			casState = "on"
		}

		return uc.TC().Reply(fmt.Sprintf(
			"Captcha kind: %s\nTime limit: %d seconds\nAccess level: %s\nFailure mode: %s\nCAS screening: %s\nCaptcha message: %q\nButton text: %q",
			snap.ChallengeKind,
			int(snap.TimeLimit.Seconds()),
			snap.AccessLevel,
			mode,
			casState,
			snap.PromptMessage,
			snap.ButtonText,
		))
	})
}

func (m *Monitor) HandleHelpCommand(c telebot.Context) error {
	return m.runHandler(c, func(uc *UpdateContext) error {
		return uc.TC().Reply(
			"/help - show this message\n" +
				"/captcha <kind> - set the captcha kind (button, math, fruits, image)\n" +
				"/timeLimit <seconds> - set the captcha time limit\n" +
				"/lock <level> - set the command access level (owner, admin, all)\n" +
				"/banUsers <true|false> - ban or kick users failing the captcha\n" +
				"/cas <on|off> - toggle Combot Anti-Spam screening of joiners\n" +
				"/buttonText <text> - set the captcha button text\n" +
				"/captchaMessage <text> - set the captcha message\n" +
				"/viewConfig - show the current configuration",
		)
	})
}

func (m *Monitor) requirePermission(uc *UpdateContext) bool {
	level := m.store.Snapshot().AccessLevel
	if m.checker.HasPermission(uc.Chat(), uc.Sender(), level) {
		return true
	}

	uc.L().Infof("denying command: %s access required", level)
	if err := uc.TC().Reply("You don't have enough permissions to run this command."); err != nil {
		uc.L().Errorf("failed to send permission rejection: %v", err)
	}
	return false
}
