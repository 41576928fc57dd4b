package commands

// Spec describes a command, group or subcommand before it is built into a
// Tree. Specs are assembled with the constructors below and passed to Build
// once at startup.
type Spec struct {
	Name        string
	Description string
	Type        CommandType
	Kind        NodeKind
	Params      []OptionSpec
	Children    []*Spec

	DefaultMemberPermissions *string
	DMPermission             *bool
	NSFW                     bool
}

// Command starts a chat-input (slash) command.
func Command(name, description string) *Spec {
	return &Spec{Name: name, Description: description, Type: TypeChatInput, Kind: KindCommand}
}

// UserCommand starts a user context-menu command.
func UserCommand(name string) *Spec {
	return &Spec{Name: name, Type: TypeUser, Kind: KindCommand}
}

// MessageCommand starts a message context-menu command.
func MessageCommand(name string) *Spec {
	return &Spec{Name: name, Type: TypeMessage, Kind: KindCommand}
}

// Group starts a subcommand group.
func Group(name, description string) *Spec {
	return &Spec{Name: name, Description: description, Type: TypeChatInput, Kind: KindGroup}
}

// Subcommand starts a subcommand.
func Subcommand(name, description string) *Spec {
	return &Spec{Name: name, Description: description, Type: TypeChatInput, Kind: KindSubcommand}
}

// With appends child groups or subcommands.
func (s *Spec) With(children ...*Spec) *Spec {
	s.Children = append(s.Children, children...)
	return s
}

// WithOptions appends value options.
func (s *Spec) WithOptions(opts ...OptionSpec) *Spec {
	s.Params = append(s.Params, opts...)
	return s
}

// RequirePermissions sets the default member permission bitset.
func (s *Spec) RequirePermissions(bits string) *Spec {
	s.DefaultMemberPermissions = &bits
	return s
}

// AllowInDM sets whether the command is usable in direct messages.
func (s *Spec) AllowInDM(allow bool) *Spec {
	s.DMPermission = &allow
	return s
}

// OptionMod adjusts an OptionSpec under construction.
type OptionMod func(*OptionSpec)

// Required marks the option as mandatory.
func Required() OptionMod {
	return func(o *OptionSpec) { o.Required = true }
}

// Choices restricts the option to the given values.
func Choices(choices ...Choice) OptionMod {
	return func(o *OptionSpec) { o.Choices = append(o.Choices, choices...) }
}

// Range bounds an integer or number option.
func Range(min, max float64) OptionMod {
	return func(o *OptionSpec) {
		o.MinValue = &min
		o.MaxValue = &max
	}
}

// Length bounds a string option.
func Length(min, max int) OptionMod {
	return func(o *OptionSpec) {
		o.MinLength = &min
		o.MaxLength = &max
	}
}

// ChannelTypes restricts a channel option to the given channel types.
func ChannelTypes(types ...int) OptionMod {
	return func(o *OptionSpec) { o.ChannelTypes = append(o.ChannelTypes, types...) }
}

// Autocomplete enables autocomplete interactions for the option.
func Autocomplete() OptionMod {
	return func(o *OptionSpec) { o.Autocomplete = true }
}

func option(t OptionType, name, description string, mods []OptionMod) OptionSpec {
	o := OptionSpec{Name: name, Description: description, Type: t}
	for _, m := range mods {
		m(&o)
	}
	return o
}

func String(name, description string, mods ...OptionMod) OptionSpec {
	return option(OptionString, name, description, mods)
}

func Integer(name, description string, mods ...OptionMod) OptionSpec {
	return option(OptionInteger, name, description, mods)
}

func Number(name, description string, mods ...OptionMod) OptionSpec {
	return option(OptionNumber, name, description, mods)
}

func Boolean(name, description string, mods ...OptionMod) OptionSpec {
	return option(OptionBoolean, name, description, mods)
}

func User(name, description string, mods ...OptionMod) OptionSpec {
	return option(OptionUser, name, description, mods)
}

func ChannelOption(name, description string, mods ...OptionMod) OptionSpec {
	return option(OptionChannel, name, description, mods)
}

func RoleOption(name, description string, mods ...OptionMod) OptionSpec {
	return option(OptionRole, name, description, mods)
}

func Mentionable(name, description string, mods ...OptionMod) OptionSpec {
	return option(OptionMentionable, name, description, mods)
}

func AttachmentOption(name, description string, mods ...OptionMod) OptionSpec {
	return option(OptionAttachment, name, description, mods)
}
