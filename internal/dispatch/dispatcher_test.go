package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"wabbabot/internal/registry"
	"wabbabot/internal/transport"
	logx "wabbabot/pkg/logx"
)

type fakeSubs struct {
	dests    []registry.Destination
	bindings map[string]string // serverID -> roleID
}

func (f *fakeSubs) ChannelsSubscribedTo(string) []registry.Destination { return f.dests }
func (f *fakeSubs) RoleBinding(serverID, _ string) (string, bool) {
	r, ok := f.bindings[serverID]
	return r, ok && r != ""
}

type fakeMessenger struct {
	mu       sync.Mutex
	sent     []transport.Destination
	mentions []string
	failOn   map[string]bool // channelID -> fail
}

func (f *fakeMessenger) SendAnnouncement(_ context.Context, dest transport.Destination, _ transport.Announcement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn[dest.ChannelID] {
		return errors.New("channel gone")
	}
	f.sent = append(f.sent, dest)
	return nil
}

func (f *fakeMessenger) MentionRole(_ context.Context, _ transport.Destination, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mentions = append(f.mentions, roleID)
	return nil
}

func TestPublishNoSubscribers(t *testing.T) {
	d := New(Config{}, &fakeSubs{}, &fakeMessenger{}, logx.Nop())
	_, err := d.Publish(context.Background(), "wj", transport.Announcement{Title: "t"})
	if !errors.Is(err, ErrNoSubscribers) {
		t.Fatalf("expected ErrNoSubscribers, got %v", err)
	}
}

func TestPublishPartialFailure(t *testing.T) {
	subs := &fakeSubs{dests: []registry.Destination{
		{ServerID: "s1", ChannelID: "a"},
		{ServerID: "s2", ChannelID: "b"},
	}}
	msgr := &fakeMessenger{failOn: map[string]bool{"b": true}}
	d := New(Config{Workers: 2}, subs, msgr, logx.Nop())

	res, err := d.Publish(context.Background(), "wj", transport.Announcement{Title: "t"})
	if err != nil {
		t.Fatalf("partial failure must not be an error: %v", err)
	}
	if res.Attempted != 2 || res.Succeeded != 1 || res.Failed != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.ServersReached != 1 {
		t.Fatalf("expected 1 server reached, got %d", res.ServersReached)
	}
}

func TestPublishTotalFailure(t *testing.T) {
	subs := &fakeSubs{dests: []registry.Destination{
		{ServerID: "s1", ChannelID: "a"},
		{ServerID: "s2", ChannelID: "b"},
	}}
	msgr := &fakeMessenger{failOn: map[string]bool{"a": true, "b": true}}
	d := New(Config{}, subs, msgr, logx.Nop())

	res, err := d.Publish(context.Background(), "wj", transport.Announcement{})
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("expected ErrDeliveryFailed, got %v", err)
	}
	if res.Succeeded != 0 || res.Failed != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestPublishAllDestinationsDelivered(t *testing.T) {
	var dests []registry.Destination
	for _, ch := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		dests = append(dests, registry.Destination{ServerID: "s1", ChannelID: ch})
	}
	subs := &fakeSubs{dests: dests}
	msgr := &fakeMessenger{}
	d := New(Config{Workers: 3, RatePerSec: 100}, subs, msgr, logx.Nop())

	res, err := d.Publish(context.Background(), "wj", transport.Announcement{Title: "t"})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if res.Succeeded != len(dests) || res.ServersReached != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(msgr.sent) != len(dests) {
		t.Fatalf("expected %d sends, got %d", len(dests), len(msgr.sent))
	}
}

func TestPublishRoleMention(t *testing.T) {
	subs := &fakeSubs{
		dests:    []registry.Destination{{ServerID: "s1", ChannelID: "a"}, {ServerID: "s2", ChannelID: "b"}},
		bindings: map[string]string{"s1": "role1"},
	}
	msgr := &fakeMessenger{}
	d := New(Config{}, subs, msgr, logx.Nop())

	if _, err := d.Publish(context.Background(), "wj", transport.Announcement{}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(msgr.mentions) != 1 || msgr.mentions[0] != "role1" {
		t.Fatalf("expected one mention of role1, got %v", msgr.mentions)
	}
}
