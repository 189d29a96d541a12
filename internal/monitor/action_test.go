package monitor

import "testing"

func TestCallbackActionDataMatches(t *testing.T) {
	tests := []struct {
		action CallbackAction
		data   string
		want   bool
	}{
		{CallbackActionPick, "\fverify_pick|12", true},
		{CallbackActionPick, "\fverify_pick", true},
		{CallbackActionAcknowledge, "\fverify_ok", true},
		{CallbackActionAcknowledge, "\fverify_ok|token", true},
		{CallbackActionPick, "\fverify_ok|12", false},
		{CallbackActionChar, "\fverify_charred|x", false},
		{CallbackActionPick, "verify_pick|12", false},
		{CallbackActionPick, "", false},
	}

	for _, tt := range tests {
		if got := tt.action.DataMatches(tt.data); got != tt.want {
			t.Errorf("%s.DataMatches(%q) = %v, want %v", tt.action, tt.data, got, tt.want)
		}
	}
}

func TestCallbackActionPayload(t *testing.T) {
	tests := []struct {
		action CallbackAction
		data   string
		want   string
	}{
		{CallbackActionPick, "\fverify_pick|12", "12"},
		{CallbackActionChar, "\fverify_char|Z", "Z"},
		{CallbackActionAcknowledge, "\fverify_ok", ""},
		{CallbackActionPick, "\fverify_pick|a|b", "a|b"},
	}

	for _, tt := range tests {
		if got := tt.action.Payload(tt.data); got != tt.want {
			t.Errorf("%s.Payload(%q) = %q, want %q", tt.action, tt.data, got, tt.want)
		}
	}
}
