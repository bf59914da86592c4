package relay

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/omochice/dock-chat/internal/directory"
)

// User is a roster entry. Session is the cookie value that authenticates it.
type User struct {
	ID        int64   `yaml:"id"`
	FirstName string  `yaml:"first_name"`
	LastName  string  `yaml:"last_name"`
	Session   string  `yaml:"session"`
	Follows   []int64 `yaml:"follows"`
}

// Counterpart returns the public view of u.
func (u User) Counterpart() directory.Counterpart {
	return directory.Counterpart{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName}
}

// Group is a set of users sharing one conversation.
type Group struct {
	ID      int64   `yaml:"id"`
	Members []int64 `yaml:"members"`
}

// Roster is the static user database served by the relay.
type Roster struct {
	Users  []User  `yaml:"users"`
	Groups []Group `yaml:"groups"`

	byID      map[int64]User
	bySession map[string]User
	groups    map[int64]Group
}

// LoadRoster reads a roster from a YAML file.
func LoadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster: %w", err)
	}
	return ParseRoster(data)
}

// ParseRoster decodes and indexes a YAML roster.
func ParseRoster(data []byte) (*Roster, error) {
	var r Roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse roster: %w", err)
	}
	if err := r.index(); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *Roster) index() error {
	r.byID = make(map[int64]User, len(r.Users))
	r.bySession = make(map[string]User, len(r.Users))
	r.groups = make(map[int64]Group, len(r.Groups))

	for _, u := range r.Users {
		if u.ID <= 0 {
			return fmt.Errorf("roster: invalid user id %d", u.ID)
		}
		if _, dup := r.byID[u.ID]; dup {
			return fmt.Errorf("roster: duplicate user id %d", u.ID)
		}
		r.byID[u.ID] = u
		if u.Session != "" {
			if _, dup := r.bySession[u.Session]; dup {
				return errors.New("roster: duplicate session")
			}
			r.bySession[u.Session] = u
		}
	}
	for _, g := range r.Groups {
		if g.ID <= 0 {
			return fmt.Errorf("roster: invalid group id %d", g.ID)
		}
		r.groups[g.ID] = g
	}
	return nil
}

// BySession returns the user owning session.
func (r *Roster) BySession(session string) (User, bool) {
	if session == "" {
		return User{}, false
	}
	u, ok := r.bySession[session]
	return u, ok
}

// User returns the user with id.
func (r *Roster) User(id int64) (User, bool) {
	u, ok := r.byID[id]
	return u, ok
}

// Following returns the users id follows.
func (r *Roster) Following(id int64) []directory.Counterpart {
	u, ok := r.byID[id]
	if !ok {
		return nil
	}
	out := make([]directory.Counterpart, 0, len(u.Follows))
	for _, fid := range u.Follows {
		if f, ok := r.byID[fid]; ok {
			out = append(out, f.Counterpart())
		}
	}
	return out
}

// Followers returns the users following id, in roster order.
func (r *Roster) Followers(id int64) []directory.Counterpart {
	var out []directory.Counterpart
	for _, u := range r.Users {
		if slices.Contains(u.Follows, id) {
			out = append(out, u.Counterpart())
		}
	}
	return out
}

// Members returns the member ids of group id.
func (r *Roster) Members(id int64) ([]int64, bool) {
	g, ok := r.groups[id]
	if !ok {
		return nil, false
	}
	return g.Members, true
}

// CanMessage reports whether from may send a direct message to to: both
// must exist, be distinct and at least one must follow the other.
func (r *Roster) CanMessage(from, to int64) bool {
	if from == to {
		return false
	}
	a, ok := r.byID[from]
	if !ok {
		return false
	}
	b, ok := r.byID[to]
	if !ok {
		return false
	}
	return slices.Contains(a.Follows, to) || slices.Contains(b.Follows, from)
}
