// Package directory is the organisation directory the booking engine asks
// for reporting lines, admin rights and session eligibility. It is loaded
// from a YAML file and can be reloaded while the service runs.
package directory

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"ms-booking/internal/models"

	"gopkg.in/yaml.v3"
)

type User struct {
	ID       string `yaml:"id"`
	Manager  string `yaml:"manager,omitempty"`
	Role     string `yaml:"role,omitempty"`
	Location string `yaml:"location,omitempty"`
	Admin    bool   `yaml:"admin,omitempty"`
}

// Rule limits a session code to some roles and locations. An empty list
// means no restriction on that attribute.
type Rule struct {
	Code      string   `yaml:"code"`
	Roles     []string `yaml:"roles,omitempty"`
	Locations []string `yaml:"locations,omitempty"`
}

type file struct {
	Users    []User `yaml:"users"`
	Sessions []Rule `yaml:"sessions"`
}

type Directory struct {
	mu    sync.RWMutex
	users map[string]User
	rules map[string]Rule
}

// New returns an empty directory: no managers, everyone eligible.
func New() *Directory {
	return &Directory{users: map[string]User{}, rules: map[string]Rule{}}
}

// Load reads the YAML directory at path. An empty path gives New().
func Load(path string) (*Directory, error) {
	d := New()
	if path == "" {
		return d, nil
	}
	if err := d.Reload(path); err != nil {
		return nil, err
	}
	return d, nil
}

func Parse(data []byte) (*Directory, error) {
	d := New()
	if err := d.replace(data); err != nil {
		return nil, err
	}
	return d, nil
}

// Reload swaps in the contents of path. On error the old data stays.
func (d *Directory) Reload(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read directory %s: %w", path, err)
	}
	return d.replace(data)
}

func (d *Directory) replace(data []byte) error {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse directory: %w", err)
	}

	users := make(map[string]User, len(f.Users))
	for _, u := range f.Users {
		if u.ID == "" {
			return fmt.Errorf("parse directory: user without id")
		}
		if _, dup := users[u.ID]; dup {
			return fmt.Errorf("parse directory: duplicate user %s", u.ID)
		}
		if u.Manager == u.ID {
			return fmt.Errorf("parse directory: %s cannot manage themselves", u.ID)
		}
		users[u.ID] = u
	}
	rules := make(map[string]Rule, len(f.Sessions))
	for _, r := range f.Sessions {
		if r.Code == "" {
			return fmt.Errorf("parse directory: session rule without code")
		}
		rules[r.Code] = r
	}

	d.mu.Lock()
	d.users, d.rules = users, rules
	d.mu.Unlock()
	return nil
}

func (d *Directory) ManagerOf(ctx context.Context, userID string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.users[userID].Manager, nil
}

// IsEligible applies the rule for the session's code. Sessions without a
// rule are open to everyone; restricted sessions need a known user.
func (d *Directory) IsEligible(ctx context.Context, userID string, session *models.Session) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rule, ok := d.rules[session.Code]
	if !ok {
		return true, nil
	}
	user, known := d.users[userID]
	if !known {
		return false, nil
	}
	return matches(rule.Roles, user.Role) && matches(rule.Locations, user.Location), nil
}

func matches(allowed []string, value string) bool {
	if len(allowed) == 0 {
		return true
	}
	return slices.ContainsFunc(allowed, func(a string) bool { return strings.EqualFold(a, value) })
}

func (d *Directory) IsAdmin(userID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.users[userID].Admin
}

// Reports lists the direct reports of managerID.
func (d *Directory) Reports(managerID string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []string
	for _, u := range d.users {
		if u.Manager == managerID {
			out = append(out, u.ID)
		}
	}
	slices.Sort(out)
	return out
}
