package monitor

import (
	"testing"

	"gopkg.in/telebot.v4"
)

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name string
		user telebot.User
		want string
	}{
		{"username wins", telebot.User{ID: 1, Username: "alice", FirstName: "Alice"}, "@alice"},
		{"full name", telebot.User{ID: 2, FirstName: "Bob", LastName: "Smith"}, "Bob Smith"},
		{"first name only", telebot.User{ID: 3, FirstName: "Bob"}, "Bob"},
		{"last name only", telebot.User{ID: 4, LastName: "Smith"}, "Smith"},
		{"id fallback", telebot.User{ID: 5}, "user 5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := displayName(&tt.user); got != tt.want {
				t.Errorf("displayName = %q, want %q", got, tt.want)
			}
		})
	}
}
