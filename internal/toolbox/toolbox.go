package toolbox

import (
	"context"
	"time"
)

type ParamType string

const (
	TypeString     ParamType = "string"
	TypeStringList ParamType = "string_list"
	TypeDate       ParamType = "date"
	TypeInt        ParamType = "int"
)

func (t ParamType) label() string {
	switch t {
	case TypeString:
		return "non-empty string"
	case TypeStringList:
		return "string or list of strings"
	case TypeDate:
		return "date in YYYY-MM-DD form"
	case TypeInt:
		return "non-negative integer"
	default:
		return string(t)
	}
}

type Param struct {
	Name        string
	Type        ParamType
	Required    bool
	Description string
}

// Args holds coerced parameter values: TypeString entries are string,
// TypeStringList []string, TypeDate time.Time and TypeInt int. Optional
// parameters that were absent have no entry.
type Args map[string]any

func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

func (a Args) StringList(name string) []string {
	list, _ := a[name].([]string)
	return list
}

func (a Args) Date(name string) (time.Time, bool) {
	t, ok := a[name].(time.Time)
	return t, ok
}

func (a Args) Int(name string) (int, bool) {
	n, ok := a[name].(int)
	return n, ok
}

type Handler func(ctx context.Context, args Args) (any, error)

type Definition struct {
	Name        string
	Description string
	Params      []Param
	Handler     Handler
}
