package config

import (
	"fmt"
	"strconv"
	"unicode/utf8"
)

// Options is a free-form parser option bag decoded from JSON or YAML.
// Accessors tolerate the numeric types either decoder produces.
type Options map[string]any

func (o Options) Bool(key string, def bool) bool {
	switch v := o[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func (o Options) Int(key string, def int) int {
	switch v := o[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func (o Options) String(key string, def string) string {
	if v, ok := o[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return def
}

// Rune returns the first rune of a string option ("\t" and "tab" both mean a
// tab delimiter).
func (o Options) Rune(key string, def rune) rune {
	s, ok := o[key].(string)
	if !ok || s == "" {
		return def
	}
	if s == "tab" || s == `\t` {
		return '\t'
	}
	r, _ := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return def
	}
	return r
}

// StringMap reads a nested string->string map such as header_map.
func (o Options) StringMap(key string) map[string]string {
	out := map[string]string{}
	switch m := o[key].(type) {
	case map[string]string:
		for k, v := range m {
			out[k] = v
		}
	case map[string]any:
		for k, v := range m {
			out[k] = fmt.Sprint(v)
		}
	}
	return out
}
