package commands

import (
	"regexp"
	"unicode/utf8"
)

// NodeID indexes a node in its Tree's arena.
type NodeID int32

// NoParent is the Parent of a root node.
const NoParent NodeID = -1

const (
	maxOptions     = 25
	maxChoices     = 25
	maxNameLen     = 32
	maxDescription = 100
)

var chatInputName = regexp.MustCompile(`^[-_\p{Ll}\p{Lo}\p{N}]{1,32}$`)

// Node is one command, group or subcommand.
type Node struct {
	ID          NodeID
	Parent      NodeID
	Name        string
	Description string
	Kind        NodeKind
	Options     []OptionSpec

	children map[string]NodeID
	order    []NodeID
}

// IsLeaf reports whether the node is invoked directly rather than through a child.
func (n *Node) IsLeaf() bool {
	return len(n.order) == 0 && n.Kind != KindGroup
}

// Tree is one built root command and its descendants, stored as an arena.
// A Tree is immutable once Build returns and safe for concurrent reads.
type Tree struct {
	nodes []Node
	typ   CommandType

	defaultMemberPermissions *string
	dmPermission             *bool
	nsfw                     bool
}

// Build validates spec and turns it into a Tree.
func Build(spec *Spec) (*Tree, error) {
	if spec == nil {
		return nil, invalid(nil, "nil spec")
	}
	if spec.Kind != KindCommand {
		return nil, invalid([]string{spec.Name}, "root must be a command, got %s", spec.Kind)
	}
	t := &Tree{
		typ:                      spec.Type,
		defaultMemberPermissions: spec.DefaultMemberPermissions,
		dmPermission:             spec.DMPermission,
		nsfw:                     spec.NSFW,
	}
	switch spec.Type {
	case TypeChatInput:
	case TypeUser, TypeMessage:
		if len(spec.Params) > 0 || len(spec.Children) > 0 {
			return nil, invalid([]string{spec.Name}, "%s commands take no options", spec.Type)
		}
		if spec.Name == "" || utf8.RuneCountInString(spec.Name) > maxNameLen {
			return nil, invalid([]string{spec.Name}, "name must be 1-%d characters", maxNameLen)
		}
		t.nodes = append(t.nodes, Node{ID: 0, Parent: NoParent, Name: spec.Name, Kind: KindCommand})
		return t, nil
	default:
		return nil, invalid([]string{spec.Name}, "unknown command type %d", spec.Type)
	}

	if _, err := t.add(spec, NoParent, nil); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tree) add(spec *Spec, parent NodeID, path []string) (NodeID, error) {
	path = append(append([]string(nil), path...), spec.Name)
	if err := validateNode(spec, path); err != nil {
		return 0, err
	}

	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, Node{
		ID:          id,
		Parent:      parent,
		Name:        spec.Name,
		Description: spec.Description,
		Kind:        spec.Kind,
		Options:     append([]OptionSpec(nil), spec.Params...),
	})

	if len(spec.Children) == 0 {
		return id, nil
	}
	children := make(map[string]NodeID, len(spec.Children))
	order := make([]NodeID, 0, len(spec.Children))
	for _, child := range spec.Children {
		if child == nil {
			return 0, invalid(path, "nil child")
		}
		if _, dup := children[child.Name]; dup {
			return 0, invalid(path, "duplicate child %q", child.Name)
		}
		cid, err := t.add(child, id, path)
		if err != nil {
			return 0, err
		}
		children[child.Name] = cid
		order = append(order, cid)
	}
	// t.nodes may have been reallocated by the recursive adds.
	t.nodes[id].children = children
	t.nodes[id].order = order
	return id, nil
}

func validateNode(spec *Spec, path []string) error {
	if !chatInputName.MatchString(spec.Name) {
		return invalid(path, "name %q must be 1-%d lowercase letters, digits, '-' or '_'", spec.Name, maxNameLen)
	}
	if n := utf8.RuneCountInString(spec.Description); n == 0 || n > maxDescription {
		return invalid(path, "description must be 1-%d characters", maxDescription)
	}

	switch spec.Kind {
	case KindCommand:
		if len(spec.Children) > 0 && len(spec.Params) > 0 {
			return invalid(path, "a command with subcommands cannot take options")
		}
		for _, c := range spec.Children {
			if c != nil && c.Kind == KindCommand {
				return invalid(path, "child %q must be a group or subcommand", c.Name)
			}
		}
	case KindGroup:
		if len(path) != 2 {
			return invalid(path, "groups may only sit directly under a command")
		}
		if len(spec.Params) > 0 {
			return invalid(path, "groups cannot take options")
		}
		if len(spec.Children) == 0 {
			return invalid(path, "groups need at least one subcommand")
		}
		for _, c := range spec.Children {
			if c != nil && c.Kind != KindSubcommand {
				return invalid(path, "child %q of a group must be a subcommand", c.Name)
			}
		}
	case KindSubcommand:
		if len(spec.Children) > 0 {
			return invalid(path, "subcommands cannot have children")
		}
	default:
		return invalid(path, "unknown node kind %d", spec.Kind)
	}

	if len(spec.Children) > maxOptions {
		return invalid(path, "at most %d subcommands", maxOptions)
	}
	return validateOptions(spec.Params, path)
}

func validateOptions(opts []OptionSpec, path []string) error {
	if len(opts) > maxOptions {
		return invalid(path, "at most %d options", maxOptions)
	}
	seen := make(map[string]bool, len(opts))
	optional := false
	for _, o := range opts {
		if !chatInputName.MatchString(o.Name) {
			return invalid(path, "option name %q is not valid", o.Name)
		}
		if seen[o.Name] {
			return invalid(path, "duplicate option %q", o.Name)
		}
		seen[o.Name] = true
		if n := utf8.RuneCountInString(o.Description); n == 0 || n > maxDescription {
			return invalid(path, "option %q: description must be 1-%d characters", o.Name, maxDescription)
		}
		if !o.Type.isValue() {
			return invalid(path, "option %q: type %s is not a value type", o.Name, o.Type)
		}
		if o.Required && optional {
			return invalid(path, "required option %q must come before optional ones", o.Name)
		}
		if !o.Required {
			optional = true
		}
		if err := validateChoices(o, path); err != nil {
			return err
		}
		if o.MinValue != nil && o.MaxValue != nil && *o.MinValue > *o.MaxValue {
			return invalid(path, "option %q: min_value above max_value", o.Name)
		}
		if o.MinLength != nil && o.MaxLength != nil && *o.MinLength > *o.MaxLength {
			return invalid(path, "option %q: min_length above max_length", o.Name)
		}
	}
	return nil
}

func validateChoices(o OptionSpec, path []string) error {
	if len(o.Choices) == 0 {
		return nil
	}
	if o.Autocomplete {
		return invalid(path, "option %q: choices and autocomplete are exclusive", o.Name)
	}
	if len(o.Choices) > maxChoices {
		return invalid(path, "option %q: at most %d choices", o.Name, maxChoices)
	}
	for _, c := range o.Choices {
		ok := false
		switch o.Type {
		case OptionString:
			_, ok = c.Value.(string)
		case OptionInteger:
			_, ok = integral(c.Value)
		case OptionNumber:
			_, ok = numeric(c.Value)
		}
		if !ok {
			return invalid(path, "option %q: choice %q does not match type %s", o.Name, c.Name, o.Type)
		}
	}
	return nil
}

// Name returns the root command name.
func (t *Tree) Name() string { return t.nodes[0].Name }

// Type returns the command type.
func (t *Tree) Type() CommandType { return t.typ }

// Root returns the root node.
func (t *Tree) Root() *Node { return &t.nodes[0] }

// Node returns the node with the given id.
func (t *Tree) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(t.nodes) {
		return nil
	}
	return &t.nodes[id]
}

// Child looks up a direct child of id by exact name.
func (t *Tree) Child(id NodeID, name string) (*Node, bool) {
	n := t.Node(id)
	if n == nil {
		return nil, false
	}
	cid, ok := n.children[name]
	if !ok {
		return nil, false
	}
	return &t.nodes[cid], true
}

// Children returns the children of id in declaration order.
func (t *Tree) Children(id NodeID) []*Node {
	n := t.Node(id)
	if n == nil {
		return nil
	}
	out := make([]*Node, 0, len(n.order))
	for _, cid := range n.order {
		out = append(out, &t.nodes[cid])
	}
	return out
}

// Path returns the names from the root down to id.
func (t *Tree) Path(id NodeID) []string {
	var path []string
	for n := t.Node(id); n != nil; n = t.Node(n.Parent) {
		path = append(path, n.Name)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// Leaves returns the paths of every invocable node.
func (t *Tree) Leaves() [][]string {
	var out [][]string
	for i := range t.nodes {
		if t.nodes[i].IsLeaf() {
			out = append(out, t.Path(NodeID(i)))
		}
	}
	return out
}
