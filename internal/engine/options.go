package engine

import (
	"fmt"
	"slices"

	"github.com/roach88/emdb/internal/codec"
	"github.com/roach88/emdb/internal/value"
)

// Feature names an experimental capability.
type Feature string

const (
	// FeatureSQLFunctions lets run call SQLite scalar functions by name.
	FeatureSQLFunctions Feature = "sql_functions"
)

// KnownFeatures lists every experimental feature.
var KnownFeatures = []Feature{FeatureSQLFunctions}

// Options are the parsed connect options.
type Options struct {
	// Strict requires tables to be defined before records are written.
	Strict       bool
	Capabilities Capabilities
}

// Capabilities controls optional behaviour. Arbitrary queries are always
// allowed and are not configurable.
type Capabilities struct {
	Experimental Targets
}

// Targets selects features by name. Deny wins over Allow.
type Targets struct {
	Allow TargetSet
	Deny  TargetSet
}

// TargetSet is either every feature (All) or the listed ones.
type TargetSet struct {
	All   bool
	Names []Feature
}

func (s TargetSet) contains(f Feature) bool {
	return s.All || slices.Contains(s.Names, f)
}

// Enabled reports whether feature f is switched on.
func (c Capabilities) Enabled(f Feature) bool {
	return c.Experimental.Allow.contains(f) && !c.Experimental.Deny.contains(f)
}

// DecodeOptions decodes and parses connect option bytes. Empty input means
// defaults.
func DecodeOptions(b []byte) (Options, error) {
	if len(b) == 0 {
		return Options{}, nil
	}
	v, err := codec.Decode(b)
	if err != nil {
		return Options{}, err
	}
	return ParseOptions(v)
}

// ParseOptions reads {strict, capabilities: {experimental: {allow, deny}}}.
// None and Null give defaults at every level. Unknown keys are ignored.
func ParseOptions(v value.Value) (Options, error) {
	var opts Options
	obj, ok, err := optionalObject(v)
	if err != nil || !ok {
		return opts, err
	}

	switch s := obj.Get("strict").(type) {
	case value.None, value.Null:
	case value.Bool:
		opts.Strict = bool(s)
	default:
		return opts, fmt.Errorf("strict: expected bool, found %s", s.Kind())
	}

	caps, ok, err := optionalObject(obj.Get("capabilities"))
	if err != nil {
		return opts, fmt.Errorf("capabilities: %w", err)
	}
	if !ok {
		return opts, nil
	}
	exp, ok, err := optionalObject(caps.Get("experimental"))
	if err != nil {
		return opts, fmt.Errorf("capabilities.experimental: %w", err)
	}
	if !ok {
		return opts, nil
	}
	if opts.Capabilities.Experimental.Allow, err = parseTargetSet(exp.Get("allow")); err != nil {
		return opts, fmt.Errorf("capabilities.experimental.allow: %w", err)
	}
	if opts.Capabilities.Experimental.Deny, err = parseTargetSet(exp.Get("deny")); err != nil {
		return opts, fmt.Errorf("capabilities.experimental.deny: %w", err)
	}
	return opts, nil
}

func optionalObject(v value.Value) (value.Object, bool, error) {
	switch o := v.(type) {
	case nil, value.None, value.Null:
		return nil, false, nil
	case value.Object:
		return o, true, nil
	default:
		return nil, false, fmt.Errorf("expected object, found %s", o.Kind())
	}
}

// parseTargetSet accepts a bool, an array of names, or the long form
// {bool, array} where a present array takes precedence.
func parseTargetSet(v value.Value) (TargetSet, error) {
	switch t := v.(type) {
	case nil, value.None, value.Null:
		return TargetSet{}, nil
	case value.Bool:
		return TargetSet{All: bool(t)}, nil
	case value.Array:
		return parseFeatureNames(t)
	case value.Object:
		if arr := t.Get("array"); !value.IsNullish(arr) {
			names, ok := arr.(value.Array)
			if !ok {
				return TargetSet{}, fmt.Errorf("array: expected array, found %s", arr.Kind())
			}
			return parseFeatureNames(names)
		}
		switch b := t.Get("bool").(type) {
		case value.None, value.Null:
			return TargetSet{}, nil
		case value.Bool:
			return TargetSet{All: bool(b)}, nil
		default:
			return TargetSet{}, fmt.Errorf("bool: expected bool, found %s", b.Kind())
		}
	default:
		return TargetSet{}, fmt.Errorf("expected bool or array, found %s", t.Kind())
	}
}

func parseFeatureNames(arr value.Array) (TargetSet, error) {
	set := TargetSet{Names: make([]Feature, 0, len(arr))}
	for _, elem := range arr {
		name, ok := elem.(value.String)
		if !ok {
			return TargetSet{}, fmt.Errorf("expected string, found %s", elem.Kind())
		}
		f := Feature(name)
		if !slices.Contains(KnownFeatures, f) {
			return TargetSet{}, fmt.Errorf("invalid experimental feature `%s`", name)
		}
		if !slices.Contains(set.Names, f) {
			set.Names = append(set.Names, f)
		}
	}
	return set, nil
}
