package types

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ValueKind tags the variant held by a MetaValue
type ValueKind int

const (
	KindString ValueKind = iota
	KindNumber
	KindList
)

// MetaValue is a string, a number or a list of strings.
type MetaValue struct {
	Kind ValueKind
	str  string
	num  float64
	list []string
}

// StringValue wraps s
func StringValue(s string) MetaValue {
	return MetaValue{Kind: KindString, str: s}
}

// NumberValue wraps n
func NumberValue(n float64) MetaValue {
	return MetaValue{Kind: KindNumber, num: n}
}

// ListValue wraps a copy of items
func ListValue(items []string) MetaValue {
	cp := make([]string, len(items))
	copy(cp, items)
	return MetaValue{Kind: KindList, list: cp}
}

// String returns the value rendered as a string. Lists are not joined.
func (v MetaValue) String() string {
	switch v.Kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	}
	return ""
}

// Number returns the numeric value and whether v holds a number
func (v MetaValue) Number() (float64, bool) {
	return v.num, v.Kind == KindNumber
}

// List returns the list items. A string value yields a one-item list.
func (v MetaValue) List() []string {
	switch v.Kind {
	case KindList:
		cp := make([]string, len(v.list))
		copy(cp, v.list)
		return cp
	case KindString:
		if v.str == "" {
			return nil
		}
		return []string{v.str}
	}
	return nil
}

// MarshalJSON encodes the value as a native JSON string, number or array
func (v MetaValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	}
	return nil, fmt.Errorf("unknown metadata value kind %d", v.Kind)
}

// UnmarshalJSON decodes a JSON string, number or string array.
// Booleans are kept as their string form.
func (v *MetaValue) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case string:
		*v = StringValue(t)
	case float64:
		*v = NumberValue(t)
	case bool:
		*v = StringValue(strconv.FormatBool(t))
	case []any:
		items := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("metadata list item must be a string, got %T", item)
			}
			items = append(items, s)
		}
		*v = ListValue(items)
	case nil:
		*v = StringValue("")
	default:
		return fmt.Errorf("unsupported metadata value %T", raw)
	}
	return nil
}

// Well-known metadata keys
const (
	MetaStatus      = "status"
	MetaPriority    = "priority"
	MetaTags        = "tags"
	MetaConnections = "connections"
	MetaDescription = "description"
	MetaKeywords    = "keywords"
	MetaLinks       = "links"
	MetaCategory    = "category"
	MetaTaskType    = "task-type"
)

// Metadata is the open-schema field bag of a document
type Metadata map[string]MetaValue

// Get returns the value stored under key
func (m Metadata) Get(key string) (MetaValue, bool) {
	v, ok := m[key]
	return v, ok
}

// GetString returns the string form of key, or "" when absent
func (m Metadata) GetString(key string) string {
	if v, ok := m[key]; ok {
		return v.String()
	}
	return ""
}

// GetList returns key as a list, or nil when absent
func (m Metadata) GetList(key string) []string {
	if v, ok := m[key]; ok {
		return v.List()
	}
	return nil
}

// Status returns the normalized status, if one was recorded
func (m Metadata) Status() (TaskStatus, bool) {
	s := m.GetString(MetaStatus)
	if s == "" {
		return "", false
	}
	return ParseStatus(s)
}

// Priority returns the normalized priority, falling back to the default
func (m Metadata) Priority() Priority {
	p, _ := ParsePriority(m.GetString(MetaPriority))
	return p
}

// Tags returns the tag names declared for the document
func (m Metadata) Tags() []string {
	return m.GetList(MetaTags)
}
