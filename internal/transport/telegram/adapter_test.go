package telegram

import (
	"strings"
	"testing"

	"wabbabot/internal/transport"
)

func TestChatForRejectsNonNumeric(t *testing.T) {
	if _, err := chatFor(transport.Destination{ChannelID: "general"}); err == nil {
		t.Fatalf("expected error for non-numeric channel id")
	}
	chat, err := chatFor(transport.Destination{ChannelID: " -1001234567890 "})
	if err != nil {
		t.Fatalf("chatFor: %v", err)
	}
	if chat.ID != -1001234567890 {
		t.Fatalf("unexpected chat id %d", chat.ID)
	}
}

func TestRenderAnnouncement(t *testing.T) {
	got := renderAnnouncement(transport.Announcement{
		Title: "Dylan just released Wildlander 1.2.0!",
		Body:  "Fixes & <tweaks>",
		Link:  "https://example.com/readme",
	})
	if !strings.HasPrefix(got, "<b>") {
		t.Fatalf("title not bolded: %q", got)
	}
	if strings.Contains(got, "<tweaks>") {
		t.Fatalf("body not escaped: %q", got)
	}
	if !strings.Contains(got, "&lt;tweaks&gt;") || !strings.Contains(got, "Fixes &amp;") {
		t.Fatalf("escaping wrong: %q", got)
	}
	if !strings.Contains(got, "https://example.com/readme") {
		t.Fatalf("link missing: %q", got)
	}
}

func TestRenderAnnouncementBodyOnly(t *testing.T) {
	got := renderAnnouncement(transport.Announcement{Body: "just text"})
	if got != "just text" {
		t.Fatalf("unexpected render: %q", got)
	}
}
