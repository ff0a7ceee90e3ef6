package registry

import (
	"sync"

	"wabbabot/internal/store"
	logx "wabbabot/pkg/logx"
)

// Modlist is a catalogued content collection with a stable machine id and
// an owning author. Display fields are a cache of the external catalog
// entry and are refreshed on demand.
type Modlist struct {
	ID           string `json:"id"`
	AuthorID     string `json:"authorId"`
	Title        string `json:"title,omitempty"`
	Version      string `json:"version,omitempty"`
	Description  string `json:"description,omitempty"`
	ImageLink    string `json:"imageLink,omitempty"`
	ReadmeLink   string `json:"readmeLink,omitempty"`
	DownloadLink string `json:"downloadLink,omitempty"`
	RoleID       string `json:"roleId,omitempty"`
}

// ModlistMeta is the catalog-sourced subset of Modlist.
type ModlistMeta struct {
	Title        string
	Version      string
	Description  string
	ImageLink    string
	ReadmeLink   string
	DownloadLink string
}

// ModlistRegistry owns the set of registered modlists. Mutations are
// mutually exclusive and persist before returning; a failed save rolls
// the in-memory change back so memory and disk never diverge.
type ModlistRegistry struct {
	mu       sync.RWMutex
	modlists []Modlist

	st  *store.Store[Modlist]
	log logx.Logger
}

func NewModlistRegistry(st *store.Store[Modlist], log logx.Logger) (*ModlistRegistry, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	records, err := st.Load()
	if err != nil {
		return nil, err
	}
	log.Debug("modlist registry loaded", logx.Int("count", len(records)), logx.String("path", st.Path()))
	return &ModlistRegistry{modlists: records, st: st, log: log}, nil
}

// Add inserts and persists a new modlist. Fails with ErrDuplicateModlist
// when the id is already registered.
func (r *ModlistRegistry) Add(m Modlist) (Modlist, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexOf(m.ID) >= 0 {
		return Modlist{}, ErrDuplicateModlist
	}
	next := append(append([]Modlist{}, r.modlists...), m)
	if err := r.st.Save(next); err != nil {
		return Modlist{}, err
	}
	r.modlists = next
	r.log.Info("modlist added", logx.String("modlist", m.ID), logx.String("author", m.AuthorID))
	return m, nil
}

// Delete removes the modlist with the given id. The bool reports whether
// a record was actually removed; deleting an unknown id is a no-op.
func (r *ModlistRegistry) Delete(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return false, nil
	}
	next := append(append([]Modlist{}, r.modlists[:i]...), r.modlists[i+1:]...)
	if err := r.st.Save(next); err != nil {
		return false, err
	}
	r.modlists = next
	r.log.Info("modlist deleted", logx.String("modlist", id))
	return true, nil
}

func (r *ModlistRegistry) GetByID(id string) (Modlist, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexOf(id); i >= 0 {
		return r.modlists[i], nil
	}
	return Modlist{}, ErrModlistNotFound
}

// GetByAuthor returns the first modlist owned by the author. Authors with
// several modlists are not distinguished by this lookup.
func (r *ModlistRegistry) GetByAuthor(authorID string) (Modlist, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.modlists {
		if m.AuthorID == authorID {
			return m, nil
		}
	}
	return Modlist{}, ErrModlistNotFound
}

// List returns all modlists in insertion order.
func (r *ModlistRegistry) List() []Modlist {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Modlist(nil), r.modlists...)
}

// UpdateMetadata refreshes the cached display fields from a catalog entry
// and persists the result.
func (r *ModlistRegistry) UpdateMetadata(id string, meta ModlistMeta) (Modlist, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return Modlist{}, ErrModlistNotFound
	}
	m := r.modlists[i]
	m.Title = meta.Title
	m.Version = meta.Version
	m.Description = meta.Description
	m.ImageLink = meta.ImageLink
	m.ReadmeLink = meta.ReadmeLink
	m.DownloadLink = meta.DownloadLink

	next := append([]Modlist{}, r.modlists...)
	next[i] = m
	if err := r.st.Save(next); err != nil {
		return Modlist{}, err
	}
	r.modlists = next
	return m, nil
}

func (r *ModlistRegistry) indexOf(id string) int {
	for i, m := range r.modlists {
		if m.ID == id {
			return i
		}
	}
	return -1
}
