package commands

import "fmt"

// Resolution is the outcome of matching an interaction against the registry.
type Resolution struct {
	Scope    Scope
	Tree     *Tree
	Node     *Node
	Path     []string
	Options  Options
	TargetID string
	Resolved *Resolved
	// Focused names the option being typed, for autocomplete interactions.
	Focused string
}

// Resolve finds the command invoked by data and coerces its options. The
// scope the command was registered to is searched first, then the global
// scope.
func (r *Registry) Resolve(data InteractionData) (*Resolution, error) {
	return r.resolve(data, false)
}

// ResolveAutocomplete is Resolve for autocomplete interactions: required
// options may be absent and the focused option is kept as typed, unvalidated.
func (r *Registry) ResolveAutocomplete(data InteractionData) (*Resolution, error) {
	return r.resolve(data, true)
}

func (r *Registry) resolve(data InteractionData, partial bool) (*Resolution, error) {
	typ := data.Type
	if typ == 0 {
		typ = TypeChatInput
	}

	scope := GuildScope(data.GuildID)
	tree, ok := r.Lookup(scope, typ, data.Name)
	if !ok && scope != GlobalScope {
		scope = GlobalScope
		tree, ok = r.Lookup(scope, typ, data.Name)
	}
	if !ok {
		return nil, unknown([]string{data.Name}, fmt.Sprintf("no %s command registered", typ))
	}

	res, err := tree.Resolve(data, partial)
	if err != nil {
		return nil, err
	}
	res.Scope = scope
	return res, nil
}

// Resolve walks data's nested option list down tree to a leaf and coerces
// the leaf's options.
func (t *Tree) Resolve(data InteractionData, partial bool) (*Resolution, error) {
	node := t.Root()
	path := []string{node.Name}
	opts := data.Options

	for !node.IsLeaf() {
		var next *OptionValue
		for i := range opts {
			if opts[i].Type == OptionSubcommand || opts[i].Type == OptionSubcommandGroup {
				next = &opts[i]
				break
			}
		}
		if next == nil {
			return nil, malformed(path, "", "a subcommand is required")
		}
		child, ok := t.Child(node.ID, next.Name)
		if !ok {
			return nil, unknown(append(path, next.Name), "no such subcommand")
		}
		wantGroup := child.Kind == KindGroup
		if (next.Type == OptionSubcommandGroup) != wantGroup {
			return nil, malformed(append(path, next.Name), "", fmt.Sprintf("sent as %s, declared %s", next.Type, child.Kind))
		}
		node = child
		path = append(path, child.Name)
		opts = next.Options
	}

	values := make(Options, len(node.Options))
	res := &Resolution{
		Tree:     t,
		Node:     node,
		Path:     path,
		Options:  values,
		TargetID: data.TargetID,
		Resolved: data.Resolved,
	}

	supplied := make(map[string]OptionValue, len(opts))
	for _, ov := range opts {
		if ov.Type == OptionSubcommand || ov.Type == OptionSubcommandGroup {
			return nil, unknown(append(path, ov.Name), "command takes no subcommands")
		}
		supplied[ov.Name] = ov
		if ov.Focused {
			res.Focused = ov.Name
		}
	}

	// Unknown option names are ignored.
	for _, spec := range node.Options {
		ov, ok := supplied[spec.Name]
		if !ok {
			if spec.Required && !partial {
				return nil, malformed(path, spec.Name, "required option missing")
			}
			continue
		}
		if partial && ov.Focused {
			values[spec.Name] = unquote(orNull(ov.Value))
			continue
		}
		v, err := coerce(spec, ov, data.Resolved, path)
		if err != nil {
			return nil, err
		}
		values[spec.Name] = v
	}

	if t.typ != TypeChatInput && data.TargetID == "" {
		return nil, malformed(path, "", "target_id is required")
	}
	return res, nil
}

func orNull(raw []byte) []byte {
	if len(raw) == 0 {
		return []byte(`""`)
	}
	return raw
}
