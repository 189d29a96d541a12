package settings

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/susnake/Lyssa/internal/access"
	"github.com/susnake/Lyssa/internal/challenge"
)

const (
	keyChallengeKind = "challenge_kind"
	keyTimeLimit     = "time_limit"
	keyPromptMessage = "prompt_message"
	keyButtonText    = "button_text"
	keyAccessLevel   = "access_level"
	keyBanUsers      = "ban_users"
	keyCASEnabled    = "cas_enabled"
)

// Settings is a resolved snapshot of the chat configuration. Flows
// read a fresh snapshot at their start instead of caching one.
type Settings struct {
	ChallengeKind challenge.Kind
	TimeLimit     time.Duration
	PromptMessage string
	ButtonText    string
	AccessLevel   access.Level
	BanOnFailure  bool
	CASEnabled    bool
}

// Store is the durable key-value settings file. Concurrent writers
// race read-then-write; last write wins.
type Store struct {
	mu   sync.Mutex
	v    *viper.Viper
	path string
}

func NewStore(path string) *Store {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	v.SetDefault(keyChallengeKind, string(challenge.Button))
	v.SetDefault(keyTimeLimit, 60)
	v.SetDefault(keyPromptMessage, "Please confirm you are not a bot!")
	v.SetDefault(keyButtonText, "I'm not a bot!")
	v.SetDefault(keyAccessLevel, access.LevelOwner.String())
	v.SetDefault(keyBanUsers, false)
	v.SetDefault(keyCASEnabled, false)

	return &Store{v: v, path: path}
}

// Load reads the settings file. A missing file is created with the
// defaults; missing keys are backfilled and the file rewritten; a
// malformed file leaves the in-memory defaults in place without
// touching the on-disk copy.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		logrus.Warnf("settings file %s not found, creating it with defaults", s.path)
		if err := s.v.WriteConfigAs(s.path); err != nil {
			return fmt.Errorf("writing default settings: %w", err)
		}
		return nil
	}

	if err := s.v.ReadInConfig(); err != nil {
		logrus.Errorf("failed to read settings file %s, using defaults for this load: %v", s.path, err)
		return nil
	}

	// Persist any keys the file was missing.
	if err := s.v.WriteConfig(); err != nil {
		logrus.Warnf("failed to rewrite settings file %s: %v", s.path, err)
	}
	return nil
}

// Snapshot resolves the current settings. Unparseable stored values
// fall back to their defaults per key.
func (s *Store) Snapshot() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	kind, err := challenge.ParseKind(s.v.GetString(keyChallengeKind))
	if err != nil {
		logrus.Warnf("stored challenge kind is invalid, using %s: %v", challenge.Button, err)
		kind = challenge.Button
	}

	limit := s.v.GetInt(keyTimeLimit)
	if limit <= 0 {
		logrus.Warnf("stored time limit %d is not positive, using 60", limit)
		limit = 60
	}

	level, err := access.ParseLevel(s.v.GetString(keyAccessLevel))
	if err != nil {
		logrus.Warnf("stored access level is invalid, using %s: %v", access.LevelOwner, err)
		level = access.LevelOwner
	}

	return Settings{
		ChallengeKind: kind,
		TimeLimit:     time.Duration(limit) * time.Second,
		PromptMessage: s.v.GetString(keyPromptMessage),
		ButtonText:    s.v.GetString(keyButtonText),
		AccessLevel:   level,
		BanOnFailure:  s.v.GetBool(keyBanUsers),
		CASEnabled:    s.v.GetBool(keyCASEnabled),
	}
}

func (s *Store) SetChallengeKind(kind challenge.Kind) error {
	return s.set(keyChallengeKind, string(kind))
}

func (s *Store) SetTimeLimit(seconds int) error {
	if seconds <= 0 {
		return fmt.Errorf("time limit must be a positive number of seconds, got %d", seconds)
	}
	return s.set(keyTimeLimit, seconds)
}

func (s *Store) SetPromptMessage(message string) error {
	return s.set(keyPromptMessage, message)
}

func (s *Store) SetButtonText(text string) error {
	return s.set(keyButtonText, text)
}

func (s *Store) SetAccessLevel(level access.Level) error {
	return s.set(keyAccessLevel, level.String())
}

func (s *Store) SetBanOnFailure(ban bool) error {
	return s.set(keyBanUsers, ban)
}

func (s *Store) SetCASEnabled(enabled bool) error {
	return s.set(keyCASEnabled, enabled)
}

func (s *Store) set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.v.Set(key, value)
	if err := s.v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}
