package rpc

import "fmt"

// Method is an operation code. Codes are part of the boundary protocol:
// new methods are appended and existing codes never change.
type Method int32

const (
	Ping           Method = 1
	Use            Method = 2
	Set            Method = 3
	Unset          Method = 4
	Select         Method = 5
	Insert         Method = 6
	Create         Method = 7
	Update         Method = 8
	Upsert         Method = 9
	Merge          Method = 10
	Patch          Method = 11
	Delete         Method = 12
	Version        Method = 13
	Query          Method = 14
	Relate         Method = 15
	Run            Method = 16
	InsertRelation Method = 17
	Sessions       Method = 18
	Attach         Method = 19
	Detach         Method = 20
	Begin          Method = 21
	Commit         Method = 22
	Cancel         Method = 23
	Reset          Method = 24
)

var methodNames = map[Method]string{
	Ping:           "ping",
	Use:            "use",
	Set:            "set",
	Unset:          "unset",
	Select:         "select",
	Insert:         "insert",
	Create:         "create",
	Update:         "update",
	Upsert:         "upsert",
	Merge:          "merge",
	Patch:          "patch",
	Delete:         "delete",
	Version:        "version",
	Query:          "query",
	Relate:         "relate",
	Run:            "run",
	InsertRelation: "insert_relation",
	Sessions:       "sessions",
	Attach:         "attach",
	Detach:         "detach",
	Begin:          "begin",
	Commit:         "commit",
	Cancel:         "cancel",
	Reset:          "reset",
}

var methodsByName = func() map[string]Method {
	m := make(map[string]Method, len(methodNames)+1)
	for code, name := range methodNames {
		m[name] = code
	}
	m["insertRelation"] = InsertRelation
	return m
}()

func (m Method) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return fmt.Sprintf("method(%d)", int32(m))
}

// Valid reports whether m is a known method code.
func (m Method) Valid() bool {
	_, ok := methodNames[m]
	return ok
}

// ParseMethod resolves a method name. insertRelation is accepted as an
// alias of insert_relation.
func ParseMethod(name string) (Method, error) {
	if m, ok := methodsByName[name]; ok {
		return m, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrMethodNotSupported, name)
}
