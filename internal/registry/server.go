package registry

import (
	"sync"

	"wabbabot/internal/store"
	logx "wabbabot/pkg/logx"
)

// Channel is a single chat channel inside a Server, identified by a
// platform-assigned id unique within that server. ListeningTo holds the
// modlist ids it receives release announcements for; a channel whose set
// drains empty is pruned from its server.
type Channel struct {
	ID                   string   `json:"id"`
	ListeningTo          []string `json:"listeningTo"`
	AutoListenToNewLists bool     `json:"autoListenToNewLists"`
}

// Server is one chat-platform server. RoleBindings maps modlist id to the
// role to mention when that modlist releases.
type Server struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	ListeningChannels []Channel         `json:"listeningChannels"`
	RoleBindings      map[string]string `json:"roleBindings,omitempty"`
}

// Destination is one (server, channel) pair a release is delivered to.
type Destination struct {
	ServerID  string
	ChannelID string
}

// ServerRegistry owns all Server records and, transitively, their
// channels and subscriptions. Cross-references into the modlist registry
// are by id only; nothing here holds a Modlist.
type ServerRegistry struct {
	mu      sync.RWMutex
	servers []Server

	st  *store.Store[Server]
	log logx.Logger
}

func NewServerRegistry(st *store.Store[Server], log logx.Logger) (*ServerRegistry, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	records, err := st.Load()
	if err != nil {
		return nil, err
	}
	log.Debug("server registry loaded", logx.Int("count", len(records)), logx.String("path", st.Path()))
	return &ServerRegistry{servers: records, st: st, log: log}, nil
}

// GetOrCreate returns the server with the given id, creating and
// persisting it first when absent. Idempotent on serverID.
func (r *ServerRegistry) GetOrCreate(serverID, name string) (Server, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i := r.indexOf(serverID); i >= 0 {
		return cloneServer(r.servers[i]), nil
	}
	srv := Server{ID: serverID, Name: name, ListeningChannels: []Channel{}}
	next := append(cloneServers(r.servers), srv)
	if err := r.st.Save(next); err != nil {
		return Server{}, err
	}
	r.servers = next
	r.log.Info("server registered", logx.String("server", serverID), logx.String("name", name))
	return cloneServer(srv), nil
}

// Subscribe adds modlistID to the channel's subscription set, creating
// the channel under the server when absent. Idempotent. Returns false
// (without error) when the server itself is unknown.
func (r *ServerRegistry) Subscribe(serverID, channelID, modlistID string, autoListen bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(serverID)
	if i < 0 {
		return false, nil
	}
	next := cloneServers(r.servers)
	srv := &next[i]

	ci := channelIndex(srv, channelID)
	if ci < 0 {
		srv.ListeningChannels = append(srv.ListeningChannels, Channel{
			ID:                   channelID,
			ListeningTo:          []string{modlistID},
			AutoListenToNewLists: autoListen,
		})
	} else {
		ch := &srv.ListeningChannels[ci]
		if contains(ch.ListeningTo, modlistID) {
			return true, nil // already subscribed, nothing to persist
		}
		ch.ListeningTo = append(ch.ListeningTo, modlistID)
	}

	if err := r.st.Save(next); err != nil {
		return false, err
	}
	r.servers = next
	r.log.Info("subscription added",
		logx.String("server", serverID), logx.String("channel", channelID), logx.String("modlist", modlistID))
	return true, nil
}

// Unsubscribe removes modlistID from the channel's set, pruning the
// channel when its set drains empty. Returns false when the server or
// channel is unknown, or the channel was not subscribed.
func (r *ServerRegistry) Unsubscribe(serverID, channelID, modlistID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(serverID)
	if i < 0 {
		return false, nil
	}
	next := cloneServers(r.servers)
	srv := &next[i]
	ci := channelIndex(srv, channelID)
	if ci < 0 {
		return false, nil
	}
	ch := &srv.ListeningChannels[ci]
	if !contains(ch.ListeningTo, modlistID) {
		return false, nil
	}
	ch.ListeningTo = remove(ch.ListeningTo, modlistID)
	if len(ch.ListeningTo) == 0 {
		srv.ListeningChannels = append(srv.ListeningChannels[:ci], srv.ListeningChannels[ci+1:]...)
	}

	if err := r.st.Save(next); err != nil {
		return false, err
	}
	r.servers = next
	r.log.Info("subscription removed",
		logx.String("server", serverID), logx.String("channel", channelID), logx.String("modlist", modlistID))
	return true, nil
}

// RemoveAllSubscriptionsTo strips modlistID from every channel on every
// server, pruning emptied channels, and persists once after the full
// scan. Callers must invoke this before deleting the modlist itself so
// no subscription dangles.
func (r *ServerRegistry) RemoveAllSubscriptionsTo(modlistID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	next := cloneServers(r.servers)
	for si := range next {
		srv := &next[si]
		kept := srv.ListeningChannels[:0]
		for _, ch := range srv.ListeningChannels {
			if contains(ch.ListeningTo, modlistID) {
				ch.ListeningTo = remove(ch.ListeningTo, modlistID)
				removed++
			}
			if len(ch.ListeningTo) > 0 {
				kept = append(kept, ch)
			}
		}
		srv.ListeningChannels = kept
	}
	if removed == 0 {
		return 0, nil
	}
	if err := r.st.Save(next); err != nil {
		return 0, err
	}
	r.servers = next
	r.log.Info("subscriptions purged", logx.String("modlist", modlistID), logx.Int("removed", removed))
	return removed, nil
}

// SetRoleBinding upserts the role to ping on this server when modlistID
// releases.
func (r *ServerRegistry) SetRoleBinding(serverID, modlistID, roleID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(serverID)
	if i < 0 {
		return ErrServerOrChannelNotFound
	}
	next := cloneServers(r.servers)
	if next[i].RoleBindings == nil {
		next[i].RoleBindings = map[string]string{}
	}
	next[i].RoleBindings[modlistID] = roleID
	if err := r.st.Save(next); err != nil {
		return err
	}
	r.servers = next
	r.log.Info("role binding set",
		logx.String("server", serverID), logx.String("modlist", modlistID), logx.String("role", roleID))
	return nil
}

// RoleBinding reports the bound role for (server, modlist), if any.
func (r *ServerRegistry) RoleBinding(serverID, modlistID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := r.indexOf(serverID)
	if i < 0 {
		return "", false
	}
	roleID, ok := r.servers[i].RoleBindings[modlistID]
	return roleID, ok && roleID != ""
}

// ChannelsSubscribedTo returns every (server, channel) pair whose
// subscription set contains modlistID. Linear in total channel count;
// fine at this bot's scale.
func (r *ServerRegistry) ChannelsSubscribedTo(modlistID string) []Destination {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var dests []Destination
	for _, srv := range r.servers {
		for _, ch := range srv.ListeningChannels {
			if contains(ch.ListeningTo, modlistID) {
				dests = append(dests, Destination{ServerID: srv.ID, ChannelID: ch.ID})
			}
		}
	}
	return dests
}

// ServersListeningTo returns a snapshot of every server with at least one
// channel subscribed to modlistID.
func (r *ServerRegistry) ServersListeningTo(modlistID string) []Server {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Server
	for _, srv := range r.servers {
		for _, ch := range srv.ListeningChannels {
			if contains(ch.ListeningTo, modlistID) {
				out = append(out, cloneServer(srv))
				break
			}
		}
	}
	return out
}

func (r *ServerRegistry) GetByID(serverID string) (Server, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexOf(serverID); i >= 0 {
		return cloneServer(r.servers[i]), nil
	}
	return Server{}, ErrServerOrChannelNotFound
}

func (r *ServerRegistry) indexOf(serverID string) int {
	for i, s := range r.servers {
		if s.ID == serverID {
			return i
		}
	}
	return -1
}

func channelIndex(srv *Server, channelID string) int {
	for i, ch := range srv.ListeningChannels {
		if ch.ID == channelID {
			return i
		}
	}
	return -1
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func remove(xs []string, x string) []string {
	out := xs[:0]
	for _, v := range xs {
		if v != x {
			out = append(out, v)
		}
	}
	return out
}

// cloneServers deep-copies the collection so a failed save never leaves
// half-mutated records visible to readers.
func cloneServers(in []Server) []Server {
	out := make([]Server, len(in))
	for i, s := range in {
		out[i] = cloneServer(s)
	}
	return out
}

func cloneServer(s Server) Server {
	cp := s
	cp.ListeningChannels = make([]Channel, len(s.ListeningChannels))
	for i, ch := range s.ListeningChannels {
		c := ch
		c.ListeningTo = append([]string(nil), ch.ListeningTo...)
		cp.ListeningChannels[i] = c
	}
	if s.RoleBindings != nil {
		cp.RoleBindings = make(map[string]string, len(s.RoleBindings))
		for k, v := range s.RoleBindings {
			cp.RoleBindings[k] = v
		}
	}
	return cp
}
