package dbtypes

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// StringList stores menu selections as a Postgres text array.
type StringList []string

func (l *StringList) Scan(src any) error {
	if src == nil {
		*l = StringList{}
		return nil
	}

	switch v := src.(type) {
	case string:
		return l.parseFromString(v)
	case []byte:
		return l.parseFromString(string(v))
	default:
		return fmt.Errorf("StringList: unsupported Scan type %T", src)
	}
}

func (l StringList) Value() (driver.Value, error) {
	// Postgres array literal: {a,b}
	if len(l) == 0 {
		return "{}", nil
	}
	parts := make([]string, 0, len(l))
	for _, s := range l {
		parts = append(parts, `"`+strings.ReplaceAll(s, `"`, `\"`)+`"`)
	}
	return "{" + strings.Join(parts, ",") + "}", nil
}

// Contains reports whether the list holds the given value.
func (l StringList) Contains(value string) bool {
	for _, s := range l {
		if s == value {
			return true
		}
	}
	return false
}

func (l *StringList) parseFromString(s string) error {
	s = strings.TrimSpace(s)
	if s == "{}" || s == "" {
		*l = StringList{}
		return nil
	}
	s = strings.TrimPrefix(s, "{")
	s = strings.TrimSuffix(s, "}")
	if strings.TrimSpace(s) == "" {
		*l = StringList{}
		return nil
	}

	raw := strings.Split(s, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		r = strings.Trim(r, `"`)
		out = append(out, strings.ReplaceAll(r, `\"`, `"`))
	}
	*l = StringList(out)
	return nil
}
