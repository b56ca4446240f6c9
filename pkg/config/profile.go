package config

import (
	"encoding/json"
	"os"
	"sort"
	"sync"
	"time"
)

// Profile is one entry in the session profile catalog: enough of a
// connection target for the CLI's `profile` and `connect` commands to
// reuse without retyping host/user/port every time. Authentication
// detail (keys, agent, password prompts) belongs to the SSH wrapper
// layer above this module; Profile only carries what the connection
// manager needs to dial.
type Profile struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Host      string     `json:"host"`
	Username  string     `json:"username,omitempty"`
	Port      uint16     `json:"port"`
	Tags      []string   `json:"tags,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	LastUsed  *time.Time `json:"last_used,omitempty"`
	UseCount  uint64     `json:"use_count"`
}

// NewProfile builds a profile with the default SSH port and a zero
// use count.
func NewProfile(name, host, username string) Profile {
	return Profile{
		ID:        name,
		Name:      name,
		Host:      host,
		Username:  username,
		Port:      22,
		CreatedAt: time.Now().UTC(),
	}
}

// ProfileCatalog is the in-memory, reader/writer-locked, JSON-backed
// store of connection profiles: a JSON array of profile records on
// disk, persisted via atomic temp-file-then-rename with 0600
// permissions.
type ProfileCatalog struct {
	mu       sync.RWMutex
	path     string
	profiles map[string]Profile
}

// LoadProfileCatalog reads the catalog from path if it exists, or
// returns an empty catalog ready to be saved there. path should
// already have any leading "~" expanded (see ExpandConfigDir).
func LoadProfileCatalog(path string) (*ProfileCatalog, error) {
	c := &ProfileCatalog{path: path, profiles: make(map[string]Profile)}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, &SessionError{Code: ErrCodeIO, Message: "reading profile catalog", Cause: err}
	}
	var list []Profile
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, &SessionError{Code: ErrCodeSerialization, Message: "decoding profile catalog", Cause: err}
	}
	for _, p := range list {
		c.profiles[p.ID] = p
	}
	return c, nil
}

// Add inserts a new profile. Fails with ErrCodeProfileExists if the ID
// is already taken.
func (c *ProfileCatalog) Add(p Profile) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.profiles[p.ID]; ok {
		return errProfileExists(p.ID)
	}
	c.profiles[p.ID] = p
	return c.saveLocked()
}

// Remove deletes a profile by ID.
func (c *ProfileCatalog) Remove(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.profiles[id]; !ok {
		return errProfileNotFound(id)
	}
	delete(c.profiles, id)
	return c.saveLocked()
}

// Get returns a copy of the named profile.
func (c *ProfileCatalog) Get(id string) (Profile, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.profiles[id]
	if !ok {
		return Profile{}, errProfileNotFound(id)
	}
	return p, nil
}

// List returns every profile, sorted by name for a stable CLI listing.
func (c *ProfileCatalog) List() []Profile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Profile, 0, len(c.profiles))
	for _, p := range c.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Touch bumps use_count and last_used for a profile.
func (c *ProfileCatalog) Touch(id string, now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.profiles[id]
	if !ok {
		return errProfileNotFound(id)
	}
	p.UseCount++
	p.LastUsed = &now
	c.profiles[id] = p
	return c.saveLocked()
}

// saveLocked serializes the catalog to JSON and writes it atomically.
// Callers must hold c.mu for writing.
func (c *ProfileCatalog) saveLocked() error {
	list := make([]Profile, 0, len(c.profiles))
	for _, p := range c.profiles {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return &SessionError{Code: ErrCodeSerialization, Message: "encoding profile catalog", Cause: err}
	}
	if err := writeFileAtomic(c.path, data); err != nil {
		return &SessionError{Code: ErrCodeIO, Message: "writing profile catalog", Cause: err}
	}
	return nil
}
