package engine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/emdb/internal/value"
)

// PatchOp is one JSON Patch (RFC 6902) operation. Paths are JSON Pointers
// already split into unescaped tokens.
type PatchOp struct {
	Op    string
	Path  []string
	From  []string
	Value value.Value
}

var errPathNotFound = errors.New("path not found")

// ParsePatch reads an array of {op, path, from?, value?} objects.
func ParsePatch(v value.Value) ([]PatchOp, error) {
	arr, ok := v.(value.Array)
	if !ok {
		return nil, invalidParams("patch: expected array, found %s", kindName(v))
	}
	ops := make([]PatchOp, 0, len(arr))
	for i, elem := range arr {
		op, err := parsePatchOp(elem)
		if err != nil {
			return nil, fmt.Errorf("patch op %d: %w", i, err)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func parsePatchOp(v value.Value) (PatchOp, error) {
	obj, ok := v.(value.Object)
	if !ok {
		return PatchOp{}, invalidParams("expected object, found %s", kindName(v))
	}
	name, ok := obj.Get("op").(value.String)
	if !ok {
		return PatchOp{}, invalidParams("op: expected string")
	}
	op := PatchOp{Op: string(name)}

	var err error
	if op.Path, err = pointerField(obj, "path"); err != nil {
		return PatchOp{}, err
	}
	switch op.Op {
	case "add", "replace", "test":
		if _, present := obj["value"]; !present {
			return PatchOp{}, invalidParams("%s: missing value", op.Op)
		}
		op.Value = obj.Get("value")
	case "move", "copy":
		if op.From, err = pointerField(obj, "from"); err != nil {
			return PatchOp{}, err
		}
	case "remove":
	default:
		return PatchOp{}, invalidParams("unknown op %q", op.Op)
	}
	return op, nil
}

func pointerField(obj value.Object, field string) ([]string, error) {
	s, ok := obj.Get(field).(value.String)
	if !ok {
		return nil, invalidParams("%s: expected string", field)
	}
	tokens, err := ParsePointer(string(s))
	if err != nil {
		return nil, invalidParams("%s: %v", field, err)
	}
	return tokens, nil
}

// ParsePointer splits a JSON Pointer (RFC 6901). The empty pointer is the
// whole document.
func ParsePointer(p string) ([]string, error) {
	if p == "" {
		return nil, nil
	}
	if p[0] != '/' {
		return nil, fmt.Errorf("pointer %q must start with /", p)
	}
	tokens := strings.Split(p[1:], "/")
	for i, t := range tokens {
		tokens[i] = strings.ReplaceAll(strings.ReplaceAll(t, "~1", "/"), "~0", "~")
	}
	return tokens, nil
}

func formatPointer(tokens []string) string {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteByte('/')
		b.WriteString(strings.ReplaceAll(strings.ReplaceAll(t, "~", "~0"), "/", "~1"))
	}
	return b.String()
}

// ApplyPatch applies ops in order to a copy of doc. Either every op
// applies or doc is left as it was.
func ApplyPatch(doc value.Value, ops []PatchOp) (value.Value, error) {
	out := value.Clone(doc)
	for i, op := range ops {
		var err error
		if out, err = applyOp(out, op); err != nil {
			return nil, fmt.Errorf("patch op %d (%s %s): %w", i, op.Op, formatPointer(op.Path), err)
		}
	}
	return out, nil
}

func applyOp(doc value.Value, op PatchOp) (value.Value, error) {
	switch op.Op {
	case "add":
		return addAt(doc, op.Path, value.Clone(op.Value))
	case "remove":
		out, _, err := removeAt(doc, op.Path)
		return out, err
	case "replace":
		if _, err := getAt(doc, op.Path); err != nil {
			return nil, err
		}
		return setAt(doc, op.Path, value.Clone(op.Value))
	case "move":
		if isPrefix(op.From, op.Path) && len(op.From) < len(op.Path) {
			return nil, fmt.Errorf("cannot move %s into itself", formatPointer(op.From))
		}
		out, moved, err := removeAt(doc, op.From)
		if err != nil {
			return nil, err
		}
		return addAt(out, op.Path, moved)
	case "copy":
		v, err := getAt(doc, op.From)
		if err != nil {
			return nil, err
		}
		return addAt(doc, op.Path, value.Clone(v))
	case "test":
		v, err := getAt(doc, op.Path)
		if err != nil {
			return nil, err
		}
		if !value.Equal(v, op.Value) {
			return nil, ErrPatchTest
		}
		return doc, nil
	default:
		return nil, invalidParams("unknown op %q", op.Op)
	}
}

func isPrefix(prefix, path []string) bool {
	if len(prefix) > len(path) {
		return false
	}
	for i := range prefix {
		if prefix[i] != path[i] {
			return false
		}
	}
	return true
}

func getAt(doc value.Value, path []string) (value.Value, error) {
	cur := doc
	for _, tok := range path {
		next, err := child(cur, tok)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

func child(container value.Value, tok string) (value.Value, error) {
	switch c := container.(type) {
	case value.Object:
		v, ok := c[tok]
		if !ok {
			return nil, errPathNotFound
		}
		return v, nil
	case value.Array:
		i, err := arrayIndex(tok, len(c)-1)
		if err != nil {
			return nil, err
		}
		return c[i], nil
	default:
		return nil, errPathNotFound
	}
}

// arrayIndex parses tok as an index no greater than limit.
func arrayIndex(tok string, limit int) (int, error) {
	if tok == "" || (len(tok) > 1 && tok[0] == '0') {
		return 0, fmt.Errorf("invalid array index %q", tok)
	}
	i, err := strconv.Atoi(tok)
	if err != nil || i < 0 {
		return 0, fmt.Errorf("invalid array index %q", tok)
	}
	if i > limit {
		return 0, errPathNotFound
	}
	return i, nil
}

// update rebuilds doc along path, handing the parent of the last token to
// fn and storing what it returns.
func update(doc value.Value, path []string, fn func(parent value.Value, tok string) (value.Value, error)) (value.Value, error) {
	if len(path) == 1 {
		return fn(doc, path[0])
	}
	next, err := child(doc, path[0])
	if err != nil {
		return nil, err
	}
	replaced, err := update(next, path[1:], fn)
	if err != nil {
		return nil, err
	}
	switch c := doc.(type) {
	case value.Object:
		c[path[0]] = replaced
	case value.Array:
		i, _ := arrayIndex(path[0], len(c)-1)
		c[i] = replaced
	}
	return doc, nil
}

func addAt(doc value.Value, path []string, v value.Value) (value.Value, error) {
	if len(path) == 0 {
		return v, nil
	}
	return update(doc, path, func(parent value.Value, tok string) (value.Value, error) {
		switch c := parent.(type) {
		case value.Object:
			c[tok] = v
			return c, nil
		case value.Array:
			if tok == "-" {
				return append(c, v), nil
			}
			i, err := arrayIndex(tok, len(c))
			if err != nil {
				return nil, err
			}
			out := make(value.Array, 0, len(c)+1)
			out = append(out, c[:i]...)
			out = append(out, v)
			return append(out, c[i:]...), nil
		default:
			return nil, errPathNotFound
		}
	})
}

func setAt(doc value.Value, path []string, v value.Value) (value.Value, error) {
	if len(path) == 0 {
		return v, nil
	}
	return update(doc, path, func(parent value.Value, tok string) (value.Value, error) {
		switch c := parent.(type) {
		case value.Object:
			c[tok] = v
			return c, nil
		case value.Array:
			i, err := arrayIndex(tok, len(c)-1)
			if err != nil {
				return nil, err
			}
			c[i] = v
			return c, nil
		default:
			return nil, errPathNotFound
		}
	})
}

func removeAt(doc value.Value, path []string) (value.Value, value.Value, error) {
	if len(path) == 0 {
		return nil, nil, errors.New("cannot remove the whole document")
	}
	var removed value.Value
	out, err := update(doc, path, func(parent value.Value, tok string) (value.Value, error) {
		switch c := parent.(type) {
		case value.Object:
			v, ok := c[tok]
			if !ok {
				return nil, errPathNotFound
			}
			removed = v
			delete(c, tok)
			return c, nil
		case value.Array:
			i, err := arrayIndex(tok, len(c)-1)
			if err != nil {
				return nil, err
			}
			removed = c[i]
			out := make(value.Array, 0, len(c)-1)
			out = append(out, c[:i]...)
			return append(out, c[i+1:]...), nil
		default:
			return nil, errPathNotFound
		}
	})
	return out, removed, err
}

// Diff returns the patch operations that turn before into after, as
// {op, path, value} objects. Objects are compared field by field; any
// other change replaces the value whole.
func Diff(before, after value.Value) value.Array {
	ops := value.Array{}
	diffInto(&ops, nil, before, after)
	return ops
}

func diffInto(ops *value.Array, path []string, a, b value.Value) {
	if value.Equal(a, b) {
		return
	}
	ao, aok := a.(value.Object)
	bo, bok := b.(value.Object)
	if !aok || !bok {
		*ops = append(*ops, patchObject("replace", path, b))
		return
	}
	for _, k := range ao.SortedKeys() {
		if _, ok := bo[k]; !ok {
			*ops = append(*ops, patchObject("remove", appendPath(path, k), nil))
		}
	}
	for _, k := range bo.SortedKeys() {
		p := appendPath(path, k)
		if av, ok := ao[k]; ok {
			diffInto(ops, p, av, bo[k])
		} else {
			*ops = append(*ops, patchObject("add", p, bo[k]))
		}
	}
}

func appendPath(path []string, tok string) []string {
	out := make([]string, len(path), len(path)+1)
	copy(out, path)
	return append(out, tok)
}

func patchObject(op string, path []string, v value.Value) value.Object {
	obj := value.Object{
		"op":   value.String(op),
		"path": value.String(formatPointer(path)),
	}
	if v != nil {
		obj["value"] = value.Clone(v)
	}
	return obj
}
