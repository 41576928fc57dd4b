package commands

// Options maps option names to coerced values:
//
//	string            -> string
//	integer           -> int64
//	number            -> float64
//	boolean           -> bool
//	user              -> UserValue
//	channel           -> ChannelValue
//	role              -> RoleValue
//	mentionable       -> MentionableValue
//	attachment        -> AttachmentValue
//
// Options that were not supplied are absent.
type Options map[string]any

// Has reports whether the option was supplied.
func (o Options) Has(name string) bool {
	_, ok := o[name]
	return ok
}

func (o Options) String(name string) (string, bool) {
	v, ok := o[name].(string)
	return v, ok
}

// StringOr returns the option or def when it is absent.
func (o Options) StringOr(name, def string) string {
	if v, ok := o.String(name); ok {
		return v
	}
	return def
}

func (o Options) Int(name string) (int64, bool) {
	v, ok := o[name].(int64)
	return v, ok
}

func (o Options) Float(name string) (float64, bool) {
	v, ok := o[name].(float64)
	return v, ok
}

func (o Options) Bool(name string) (bool, bool) {
	v, ok := o[name].(bool)
	return v, ok
}

func (o Options) User(name string) (UserValue, bool) {
	v, ok := o[name].(UserValue)
	return v, ok
}

func (o Options) Channel(name string) (ChannelValue, bool) {
	v, ok := o[name].(ChannelValue)
	return v, ok
}

func (o Options) Role(name string) (RoleValue, bool) {
	v, ok := o[name].(RoleValue)
	return v, ok
}

func (o Options) Mentionable(name string) (MentionableValue, bool) {
	v, ok := o[name].(MentionableValue)
	return v, ok
}

func (o Options) Attachment(name string) (AttachmentValue, bool) {
	v, ok := o[name].(AttachmentValue)
	return v, ok
}
