package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"wabbabot/internal/audit"
	"wabbabot/internal/catalog"
	"wabbabot/internal/dispatch"
	"wabbabot/internal/registry"
	"wabbabot/internal/transport"
	logx "wabbabot/pkg/logx"
)

var (
	ErrNotAuthorized  = errors.New("not authorized")
	ErrUnknownCommand = errors.New("unknown command")
)

// Invocation is one external command call, already parsed and identity-
// resolved by the transport layer. IsAdmin is the caller's policy check
// result; the facade treats it as a precondition.
type Invocation struct {
	Command    string
	Args       []string
	CallerID   string
	IsAdmin    bool
	ServerID   string
	ServerName string
}

type handlerFunc func(ctx context.Context, inv Invocation) (string, error)

// commandSpec declares a handler with its argument arity and access
// level, validated before invocation.
type commandSpec struct {
	MinArgs int
	Admin   bool
	Usage   string
	Handle  handlerFunc
}

// Facade translates command invocations into registry, catalog and
// dispatcher calls. Every command returns a human-readable confirmation
// string; presentation stays with the caller.
type Facade struct {
	modlists *registry.ModlistRegistry
	servers  *registry.ServerRegistry
	cat      catalog.Client
	disp     *dispatch.Dispatcher
	aud      audit.Store
	log      logx.Logger

	table map[string]commandSpec
}

func NewFacade(
	modlists *registry.ModlistRegistry,
	servers *registry.ServerRegistry,
	cat catalog.Client,
	disp *dispatch.Dispatcher,
	aud audit.Store,
	log logx.Logger,
) *Facade {
	if log.IsZero() {
		log = logx.Nop()
	}
	f := &Facade{
		modlists: modlists,
		servers:  servers,
		cat:      cat,
		disp:     disp,
		aud:      aud,
		log:      log,
	}
	f.table = map[string]commandSpec{
		"addmodlist":    {MinArgs: 2, Admin: true, Usage: "addmodlist <modlist id> <author id>", Handle: f.addModlist},
		"delmodlist":    {MinArgs: 1, Admin: true, Usage: "delmodlist <modlist id>", Handle: f.delModlist},
		"showmodlists":  {MinArgs: 0, Admin: false, Usage: "showmodlists", Handle: f.showModlists},
		"listen":        {MinArgs: 2, Admin: false, Usage: "listen <modlist id> <channel id>", Handle: f.listen},
		"unlisten":      {MinArgs: 2, Admin: false, Usage: "unlisten <modlist id> <channel id>", Handle: f.unlisten},
		"showlisteners": {MinArgs: 1, Admin: true, Usage: "showlisteners <modlist id>", Handle: f.showListeners},
		"setrole":       {MinArgs: 2, Admin: false, Usage: "setrole <modlist id> <role id>", Handle: f.setRole},
		"release":       {MinArgs: 1, Admin: false, Usage: "release <modlist id> [message...]", Handle: f.release},
	}
	return f
}

// Commands lists the known command names; useful for help output.
func (f *Facade) Commands() []string {
	out := make([]string, 0, len(f.table))
	for name := range f.table {
		out = append(out, name)
	}
	return out
}

// Dispatch validates arity and access for the named command, then runs
// its handler.
func (f *Facade) Dispatch(ctx context.Context, inv Invocation) (string, error) {
	spec, ok := f.table[inv.Command]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownCommand, inv.Command)
	}
	if len(inv.Args) < spec.MinArgs {
		return "", fmt.Errorf("usage: %s", spec.Usage)
	}
	if spec.Admin && !inv.IsAdmin {
		return "", fmt.Errorf("%w: %s is reserved for administrators", ErrNotAuthorized, inv.Command)
	}
	return spec.Handle(ctx, inv)
}

func (f *Facade) addModlist(ctx context.Context, inv Invocation) (string, error) {
	id, authorID := inv.Args[0], inv.Args[1]

	// The id must resolve in the catalog before we register it.
	entry, err := f.cat.Fetch(ctx, id)
	if err != nil {
		return "", err
	}

	m, err := f.modlists.Add(registry.Modlist{
		ID:           id,
		AuthorID:     authorID,
		Title:        entry.Title,
		Version:      entry.Version,
		Description:  entry.Description,
		ImageLink:    entry.Links.Image,
		ReadmeLink:   entry.Links.Readme,
		DownloadLink: entry.Links.Download,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Modlist **%s** managed by %s was added to the database.", m.Title, authorID), nil
}

func (f *Facade) delModlist(ctx context.Context, inv Invocation) (string, error) {
	id := inv.Args[0]
	m, err := f.modlists.GetByID(id)
	if err != nil {
		return "", err
	}
	// Subscriptions go first so nothing dangles if the second step fails.
	if _, err := f.servers.RemoveAllSubscriptionsTo(id); err != nil {
		return "", err
	}
	if _, err := f.modlists.Delete(id); err != nil {
		return "", err
	}
	return fmt.Sprintf("Modlist **%s** was deleted.", displayTitle(m)), nil
}

func (f *Facade) showModlists(ctx context.Context, inv Invocation) (string, error) {
	lists := f.modlists.List()
	var b strings.Builder
	if len(lists) == 1 {
		b.WriteString("There is 1 modlist.\n")
	} else {
		fmt.Fprintf(&b, "There are %d modlists.\n", len(lists))
	}
	for i, m := range lists {
		fmt.Fprintf(&b, "%d - **%s** (`%s`) owned by %s\n", i, displayTitle(m), m.ID, m.AuthorID)
	}
	return b.String(), nil
}

func (f *Facade) listen(ctx context.Context, inv Invocation) (string, error) {
	modlistID, channelID := inv.Args[0], inv.Args[1]

	m, err := f.modlists.GetByID(modlistID)
	if err != nil {
		return "", err
	}
	if _, err := f.servers.GetOrCreate(inv.ServerID, inv.ServerName); err != nil {
		return "", err
	}
	ok, err := f.servers.Subscribe(inv.ServerID, channelID, modlistID, false)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", registry.ErrServerOrChannelNotFound
	}
	return fmt.Sprintf("Now listening to **%s** in channel %s.", displayTitle(m), channelID), nil
}

func (f *Facade) unlisten(ctx context.Context, inv Invocation) (string, error) {
	modlistID, channelID := inv.Args[0], inv.Args[1]

	m, err := f.modlists.GetByID(modlistID)
	if err != nil {
		return "", err
	}
	ok, err := f.servers.Unsubscribe(inv.ServerID, channelID, modlistID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", registry.ErrServerOrChannelNotFound
	}
	return fmt.Sprintf("No longer listening to **%s** in channel %s.", displayTitle(m), channelID), nil
}

func (f *Facade) showListeners(ctx context.Context, inv Invocation) (string, error) {
	modlistID := inv.Args[0]
	m, err := f.modlists.GetByID(modlistID)
	if err != nil {
		return "", err
	}
	servers := f.servers.ServersListeningTo(modlistID)
	if len(servers) == 0 {
		return fmt.Sprintf("There are no servers listening to **%s**.", displayTitle(m)), nil
	}
	var b strings.Builder
	for _, srv := range servers {
		fmt.Fprintf(&b, "Server %s (`%s`) is listening to **%s** in the following channels: ", srv.Name, srv.ID, displayTitle(m))
		for _, ch := range srv.ListeningChannels {
			if containsStr(ch.ListeningTo, modlistID) {
				fmt.Fprintf(&b, "`%s` ", ch.ID)
			}
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

func (f *Facade) setRole(ctx context.Context, inv Invocation) (string, error) {
	modlistID, roleID := inv.Args[0], inv.Args[1]

	m, err := f.modlists.GetByID(modlistID)
	if err != nil {
		return "", err
	}
	if err := f.servers.SetRoleBinding(inv.ServerID, modlistID, roleID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Releases for **%s** will now ping role %s.", displayTitle(m), roleID), nil
}

func (f *Facade) release(ctx context.Context, inv Invocation) (string, error) {
	modlistID := inv.Args[0]
	body := strings.Join(inv.Args[1:], " ")

	m, err := f.modlists.GetByID(modlistID)
	if err != nil {
		return "", err
	}
	if m.AuthorID != inv.CallerID {
		return "", fmt.Errorf("%w: you are not managing this list", ErrNotAuthorized)
	}

	// Pull fresh metadata so the announcement carries the current
	// version, and refresh the cached display fields on the way.
	entry, err := f.cat.Fetch(ctx, modlistID)
	if err != nil {
		return "", err
	}
	m, err = f.modlists.UpdateMetadata(modlistID, registry.ModlistMeta{
		Title:        entry.Title,
		Version:      entry.Version,
		Description:  entry.Description,
		ImageLink:    entry.Links.Image,
		ReadmeLink:   entry.Links.Readme,
		DownloadLink: entry.Links.Download,
	})
	if err != nil {
		return "", err
	}

	ann := transport.Announcement{
		Title:    fmt.Sprintf("%s just released %s %s!", inv.CallerID, displayTitle(m), m.Version),
		Body:     body,
		ImageURL: m.ImageLink,
		Link:     m.ReadmeLink,
	}
	res, derr := f.disp.Publish(ctx, modlistID, ann)
	f.auditRelease(ctx, modlistID, inv.CallerID, res, derr)
	if derr != nil {
		return "", derr
	}
	return fmt.Sprintf("Modlist was released in %d channels in %d servers!", res.Succeeded, res.ServersReached), nil
}

func (f *Facade) auditRelease(ctx context.Context, modlistID, authorID string, res dispatch.Result, derr error) {
	if f.aud == nil {
		return
	}
	e := audit.ReleaseEntry{
		ModlistID: modlistID,
		AuthorID:  authorID,
		Attempted: res.Attempted,
		Succeeded: res.Succeeded,
		Failed:    res.Failed,
	}
	if derr != nil {
		e.Error = derr.Error()
	}
	if err := f.aud.AppendRelease(ctx, e); err != nil {
		f.log.Warn("release audit write failed", logx.String("modlist", modlistID), logx.Err(err))
	}
}

func displayTitle(m registry.Modlist) string {
	if m.Title != "" {
		return m.Title
	}
	return m.ID
}

func containsStr(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
