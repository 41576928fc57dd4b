package commands

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Scope keys a set of commands: GlobalScope or a guild.
type Scope string

// GlobalScope holds commands available everywhere.
const GlobalScope Scope = ""

const guildPrefix = "guild:"

// GuildScope returns the scope of commands registered to one guild.
func GuildScope(guildID string) Scope {
	if guildID == "" {
		return GlobalScope
	}
	return Scope(guildPrefix + guildID)
}

// GuildID returns the guild of s, empty for GlobalScope.
func (s Scope) GuildID() string {
	return strings.TrimPrefix(string(s), guildPrefix)
}

func (s Scope) String() string {
	if s == GlobalScope {
		return "global"
	}
	return string(s)
}

type treeKey struct {
	typ  CommandType
	name string
}

type snapshot map[Scope]map[treeKey]*Tree

// Registry holds the command trees of every scope. Readers see an immutable
// snapshot; Register and Unregister swap in a new one.
type Registry struct {
	mu   sync.Mutex
	snap atomic.Pointer[snapshot]
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	r := &Registry{}
	empty := snapshot{}
	r.snap.Store(&empty)
	return r
}

func (r *Registry) load() snapshot {
	return *r.snap.Load()
}

// Register adds tree to scope. It fails with ErrDuplicateCommand when a
// command of the same type and name is already registered there.
func (r *Registry) Register(scope Scope, tree *Tree) error {
	if tree == nil {
		return fmt.Errorf("%w: nil tree", ErrInvalidCommand)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.load()
	key := treeKey{typ: tree.Type(), name: tree.Name()}
	if _, exists := cur[scope][key]; exists {
		return fmt.Errorf("%w: %s command %q in %s scope", ErrDuplicateCommand, tree.Type(), tree.Name(), scope)
	}

	next := make(snapshot, len(cur)+1)
	for s, trees := range cur {
		next[s] = trees
	}
	scoped := make(map[treeKey]*Tree, len(cur[scope])+1)
	for k, t := range cur[scope] {
		scoped[k] = t
	}
	scoped[key] = tree
	next[scope] = scoped
	r.snap.Store(&next)
	return nil
}

// Unregister removes a command and reports whether it was present.
func (r *Registry) Unregister(scope Scope, typ CommandType, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.load()
	key := treeKey{typ: typ, name: name}
	if _, exists := cur[scope][key]; !exists {
		return false
	}

	next := make(snapshot, len(cur))
	for s, trees := range cur {
		next[s] = trees
	}
	scoped := make(map[treeKey]*Tree, len(cur[scope]))
	for k, t := range cur[scope] {
		if k != key {
			scoped[k] = t
		}
	}
	if len(scoped) == 0 {
		delete(next, scope)
	} else {
		next[scope] = scoped
	}
	r.snap.Store(&next)
	return true
}

// Lookup returns the tree registered under scope, type and name.
func (r *Registry) Lookup(scope Scope, typ CommandType, name string) (*Tree, bool) {
	t, ok := r.load()[scope][treeKey{typ: typ, name: name}]
	return t, ok
}

// Scopes returns every scope with at least one command, GlobalScope first.
func (r *Registry) Scopes() []Scope {
	cur := r.load()
	out := make([]Scope, 0, len(cur))
	for s := range cur {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Trees returns the trees of scope ordered by type, then name.
func (r *Registry) Trees(scope Scope) []*Tree {
	scoped := r.load()[scope]
	out := make([]*Tree, 0, len(scoped))
	for _, t := range scoped {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type() != out[j].Type() {
			return out[i].Type() < out[j].Type()
		}
		return out[i].Name() < out[j].Name()
	})
	return out
}

// Len returns the number of registered trees across all scopes.
func (r *Registry) Len() int {
	n := 0
	for _, trees := range r.load() {
		n += len(trees)
	}
	return n
}
