package keyboard

import "testing"

func TestReplyButtons(t *testing.T) {
	markup := ReplyButtons([]string{"BLIK"}, nil, []string{"Card", "Transfer"})
	if !markup.ResizeKeyboard || markup.OneTimeKeyboard {
		t.Fatalf("unexpected flags: %+v", markup)
	}
	if len(markup.ReplyKeyboard) != 2 {
		t.Fatalf("rows = %d, want 2", len(markup.ReplyKeyboard))
	}
	if got := markup.ReplyKeyboard[1][1].Text; got != "Transfer" {
		t.Fatalf("button = %q", got)
	}
}

func TestOneTimeButtons(t *testing.T) {
	if markup := OneTimeButtons([]string{"BLIK"}); !markup.OneTimeKeyboard {
		t.Fatalf("keyboard not one-time")
	}
	if markup := RemoveKeyboard(); !markup.RemoveKeyboard {
		t.Fatalf("keyboard not removed")
	}
}
