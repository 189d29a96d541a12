package access

import (
	"errors"
	"testing"

	"gopkg.in/telebot.v4"
)

type fakeResolver struct {
	role telebot.MemberStatus
	err  error
}

func (f *fakeResolver) ChatMemberOf(_, _ telebot.Recipient) (*telebot.ChatMember, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &telebot.ChatMember{Role: f.role}, nil
}

var (
	testChat = &telebot.Chat{ID: -100500}
	testUser = &telebot.User{ID: 42}
)

func TestHasPermission(t *testing.T) {
	tests := []struct {
		name     string
		role     telebot.MemberStatus
		err      error
		required Level
		want     bool
	}{
		{"all passes members", telebot.Member, nil, LevelAll, true},
		{"all passes even on lookup error", "", errors.New("api down"), LevelAll, true},
		{"admin passes admins", telebot.Administrator, nil, LevelAdmin, true},
		{"admin passes the creator", telebot.Creator, nil, LevelAdmin, true},
		{"admin rejects members", telebot.Member, nil, LevelAdmin, false},
		{"owner passes only the creator", telebot.Creator, nil, LevelOwner, true},
		{"owner rejects admins", telebot.Administrator, nil, LevelOwner, false},
		{"admin fails closed on lookup error", telebot.Creator, errors.New("api down"), LevelAdmin, false},
		{"owner fails closed on lookup error", telebot.Creator, errors.New("api down"), LevelOwner, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewChecker(&fakeResolver{role: tt.role, err: tt.err})
			if got := checker.HasPermission(testChat, testUser, tt.required); got != tt.want {
				t.Errorf("HasPermission(%s) = %v, want %v", tt.required, got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	for _, level := range []Level{LevelAll, LevelAdmin, LevelOwner} {
		got, err := ParseLevel(level.String())
		if err != nil || got != level {
			t.Errorf("ParseLevel(%q) = %s, %v", level, got, err)
		}
	}
	if _, err := ParseLevel("superuser"); err == nil {
		t.Error("ParseLevel accepted an unknown level")
	}
}
