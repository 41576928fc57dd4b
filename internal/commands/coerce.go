package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/ziadkadry99/shardgate/internal/events"
)

// UserValue is a resolved user option.
type UserValue struct {
	ID     string
	User   *events.User
	Member *Member
}

// ChannelValue is a resolved channel option.
type ChannelValue struct {
	ID      string
	Channel *Channel
}

// RoleValue is a resolved role option.
type RoleValue struct {
	ID   string
	Role *Role
}

// MentionableValue is a resolved mentionable option: a user or a role.
type MentionableValue struct {
	ID     string
	User   *events.User
	Member *Member
	Role   *Role
}

// AttachmentValue is a resolved attachment option.
type AttachmentValue struct {
	ID         string
	Attachment *Attachment
}

// coerce converts a raw option value to the Go type of its declared option type.
func coerce(spec OptionSpec, ov OptionValue, res *Resolved, path []string) (any, error) {
	if ov.Type != 0 && ov.Type != spec.Type {
		return nil, malformed(path, spec.Name, fmt.Sprintf("sent as %s, declared %s", ov.Type, spec.Type))
	}
	raw := bytes.TrimSpace(ov.Value)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, malformed(path, spec.Name, "no value")
	}
	if res == nil {
		res = &Resolved{}
	}

	switch spec.Type {
	case OptionString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, malformed(path, spec.Name, "not a string")
		}
		n := utf8.RuneCountInString(s)
		if spec.MinLength != nil && n < *spec.MinLength {
			return nil, malformed(path, spec.Name, fmt.Sprintf("shorter than %d characters", *spec.MinLength))
		}
		if spec.MaxLength != nil && n > *spec.MaxLength {
			return nil, malformed(path, spec.Name, fmt.Sprintf("longer than %d characters", *spec.MaxLength))
		}
		if !matchesChoice(spec, func(v any) bool { c, ok := v.(string); return ok && c == s }) {
			return nil, malformed(path, spec.Name, fmt.Sprintf("%q is not one of the choices", s))
		}
		return s, nil

	case OptionInteger:
		n, err := parseInteger(raw)
		if err != nil {
			return nil, malformed(path, spec.Name, err.Error())
		}
		if err := checkRange(spec, float64(n)); err != nil {
			return nil, malformed(path, spec.Name, err.Error())
		}
		if !matchesChoice(spec, func(v any) bool { c, ok := integral(v); return ok && c == n }) {
			return nil, malformed(path, spec.Name, fmt.Sprintf("%d is not one of the choices", n))
		}
		return n, nil

	case OptionNumber:
		f, err := parseNumber(raw)
		if err != nil {
			return nil, malformed(path, spec.Name, err.Error())
		}
		if err := checkRange(spec, f); err != nil {
			return nil, malformed(path, spec.Name, err.Error())
		}
		if !matchesChoice(spec, func(v any) bool { c, ok := numeric(v); return ok && c == f }) {
			return nil, malformed(path, spec.Name, fmt.Sprintf("%g is not one of the choices", f))
		}
		return f, nil

	case OptionBoolean:
		var b bool
		if err := json.Unmarshal(raw, &b); err == nil {
			return b, nil
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if b, err := strconv.ParseBool(s); err == nil {
				return b, nil
			}
		}
		return nil, malformed(path, spec.Name, "not a boolean")

	case OptionUser:
		id, err := parseSnowflake(raw)
		if err != nil {
			return nil, malformed(path, spec.Name, err.Error())
		}
		v := UserValue{ID: id}
		if u, ok := res.Users[id]; ok {
			v.User = &u
		}
		if m, ok := res.Members[id]; ok {
			v.Member = &m
		}
		return v, nil

	case OptionChannel:
		id, err := parseSnowflake(raw)
		if err != nil {
			return nil, malformed(path, spec.Name, err.Error())
		}
		v := ChannelValue{ID: id}
		if c, ok := res.Channels[id]; ok {
			v.Channel = &c
			if len(spec.ChannelTypes) > 0 && !containsInt(spec.ChannelTypes, c.Type) {
				return nil, malformed(path, spec.Name, fmt.Sprintf("channel type %d not allowed", c.Type))
			}
		}
		return v, nil

	case OptionRole:
		id, err := parseSnowflake(raw)
		if err != nil {
			return nil, malformed(path, spec.Name, err.Error())
		}
		v := RoleValue{ID: id}
		if r, ok := res.Roles[id]; ok {
			v.Role = &r
		}
		return v, nil

	case OptionMentionable:
		id, err := parseSnowflake(raw)
		if err != nil {
			return nil, malformed(path, spec.Name, err.Error())
		}
		v := MentionableValue{ID: id}
		if u, ok := res.Users[id]; ok {
			v.User = &u
		}
		if m, ok := res.Members[id]; ok {
			v.Member = &m
		}
		if r, ok := res.Roles[id]; ok {
			v.Role = &r
		}
		return v, nil

	case OptionAttachment:
		id, err := parseSnowflake(raw)
		if err != nil {
			return nil, malformed(path, spec.Name, err.Error())
		}
		v := AttachmentValue{ID: id}
		if a, ok := res.Attachments[id]; ok {
			v.Attachment = &a
		}
		return v, nil
	}

	return nil, malformed(path, spec.Name, fmt.Sprintf("unsupported type %s", spec.Type))
}

// unquote returns the content of a JSON string, or raw itself for any other token.
func unquote(raw []byte) string {
	var s string
	if raw[0] == '"' && json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}

func parseInteger(raw []byte) (int64, error) {
	s := unquote(raw)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	if f != math.Trunc(f) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("%s is not an integer", s)
	}
	return int64(f), nil
}

func parseNumber(raw []byte) (float64, error) {
	s := unquote(raw)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	return f, nil
}

func parseSnowflake(raw []byte) (string, error) {
	s := unquote(raw)
	if s == "" {
		return "", fmt.Errorf("empty id")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%q is not an id", s)
		}
	}
	return s, nil
}

func checkRange(spec OptionSpec, v float64) error {
	if spec.MinValue != nil && v < *spec.MinValue {
		return fmt.Errorf("%g is below the minimum %g", v, *spec.MinValue)
	}
	if spec.MaxValue != nil && v > *spec.MaxValue {
		return fmt.Errorf("%g is above the maximum %g", v, *spec.MaxValue)
	}
	return nil
}

func matchesChoice(spec OptionSpec, eq func(any) bool) bool {
	if len(spec.Choices) == 0 {
		return true
	}
	for _, c := range spec.Choices {
		if eq(c.Value) {
			return true
		}
	}
	return false
}

// integral converts a Go numeric value without a fractional part to int64.
func integral(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n == math.Trunc(n) {
			return int64(n), true
		}
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
