package commands

// ApplicationCommand is the platform's wire form of a command, as sent to
// the bulk overwrite endpoints.
type ApplicationCommand struct {
	ID                       string                     `json:"id,omitempty"`
	Type                     CommandType                `json:"type"`
	Name                     string                     `json:"name"`
	Description              string                     `json:"description"`
	Options                  []ApplicationCommandOption `json:"options,omitempty"`
	DefaultMemberPermissions *string                    `json:"default_member_permissions,omitempty"`
	DMPermission             *bool                      `json:"dm_permission,omitempty"`
	NSFW                     bool                       `json:"nsfw,omitempty"`
}

// ApplicationCommandOption is the wire form of an option, group or subcommand.
type ApplicationCommandOption struct {
	Type         OptionType                 `json:"type"`
	Name         string                     `json:"name"`
	Description  string                     `json:"description"`
	Required     bool                       `json:"required,omitempty"`
	Choices      []Choice                   `json:"choices,omitempty"`
	Options      []ApplicationCommandOption `json:"options,omitempty"`
	ChannelTypes []int                      `json:"channel_types,omitempty"`
	MinValue     *float64                   `json:"min_value,omitempty"`
	MaxValue     *float64                   `json:"max_value,omitempty"`
	MinLength    *int                       `json:"min_length,omitempty"`
	MaxLength    *int                       `json:"max_length,omitempty"`
	Autocomplete bool                       `json:"autocomplete,omitempty"`
}

// Payload converts t to its wire form.
func (t *Tree) Payload() ApplicationCommand {
	root := t.Root()
	return ApplicationCommand{
		Type:                     t.typ,
		Name:                     root.Name,
		Description:              root.Description,
		Options:                  t.optionPayload(root),
		DefaultMemberPermissions: t.defaultMemberPermissions,
		DMPermission:             t.dmPermission,
		NSFW:                     t.nsfw,
	}
}

func (t *Tree) optionPayload(n *Node) []ApplicationCommandOption {
	if children := t.Children(n.ID); len(children) > 0 {
		out := make([]ApplicationCommandOption, 0, len(children))
		for _, c := range children {
			typ := OptionSubcommand
			if c.Kind == KindGroup {
				typ = OptionSubcommandGroup
			}
			out = append(out, ApplicationCommandOption{
				Type:        typ,
				Name:        c.Name,
				Description: c.Description,
				Options:     t.optionPayload(c),
			})
		}
		return out
	}

	if len(n.Options) == 0 {
		return nil
	}
	out := make([]ApplicationCommandOption, 0, len(n.Options))
	for _, o := range n.Options {
		out = append(out, ApplicationCommandOption{
			Type:         o.Type,
			Name:         o.Name,
			Description:  o.Description,
			Required:     o.Required,
			Choices:      o.Choices,
			ChannelTypes: o.ChannelTypes,
			MinValue:     o.MinValue,
			MaxValue:     o.MaxValue,
			MinLength:    o.MinLength,
			MaxLength:    o.MaxLength,
			Autocomplete: o.Autocomplete,
		})
	}
	return out
}

// Payloads returns the wire form of every command in scope.
func (r *Registry) Payloads(scope Scope) []ApplicationCommand {
	trees := r.Trees(scope)
	out := make([]ApplicationCommand, 0, len(trees))
	for _, t := range trees {
		out = append(out, t.Payload())
	}
	return out
}
