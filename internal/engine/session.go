package engine

import (
	"maps"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/emdb/internal/store"
	"github.com/roach88/emdb/internal/value"
)

// Session is the per-connection state: the selected namespace and
// database plus variables bound into queries.
type Session struct {
	NS   string
	DB   string
	Vars value.Object
}

// scope returns the storage scope, failing when nothing is selected.
func (s Session) scope() (store.Scope, error) {
	if s.NS == "" {
		return store.Scope{}, ErrNoNamespace
	}
	if s.DB == "" {
		return store.Scope{}, ErrNoDatabase
	}
	return store.Scope{NS: s.NS, DB: s.DB}, nil
}

// Session returns a copy of the session's state.
func (e *Engine) Session(c Call) (Session, error) {
	e.state.RLock()
	defer e.state.RUnlock()
	return e.snapshotLocked(c.Session)
}

func (e *Engine) snapshotLocked(id uuid.UUID) (Session, error) {
	s, ok := e.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return Session{NS: s.NS, DB: s.DB, Vars: maps.Clone(s.Vars)}, nil
}

// scopeFor returns the storage scope of the call's session.
func (e *Engine) scopeFor(c Call) (store.Scope, error) {
	s, err := e.Session(c)
	if err != nil {
		return store.Scope{}, err
	}
	return s.scope()
}

// mutate runs fn on the call's session under the write lock.
func (e *Engine) mutate(c Call, fn func(*Session) error) error {
	e.state.Lock()
	defer e.state.Unlock()
	s, ok := e.sessions[c.Session]
	if !ok {
		return ErrSessionNotFound
	}
	return fn(s)
}

// Use selects a namespace and database. None keeps the current selection,
// Null clears it.
func (e *Engine) Use(c Call, ns, db value.Value) error {
	nsVal, nsSet, err := useArg("namespace", ns)
	if err != nil {
		return err
	}
	dbVal, dbSet, err := useArg("database", db)
	if err != nil {
		return err
	}
	return e.mutate(c, func(s *Session) error {
		if nsSet {
			s.NS = nsVal
		}
		if dbSet {
			s.DB = dbVal
		}
		return nil
	})
}

func useArg(what string, v value.Value) (string, bool, error) {
	switch t := v.(type) {
	case nil, value.None:
		return "", false, nil
	case value.Null:
		return "", true, nil
	case value.String:
		return string(t), true, nil
	default:
		return "", false, invalidParams("%s: expected string, found %s", what, t.Kind())
	}
}

// Set binds a session variable. Setting None removes it.
func (e *Engine) Set(c Call, name string, v value.Value) error {
	name, err := varName(name)
	if err != nil {
		return err
	}
	return e.mutate(c, func(s *Session) error {
		if value.IsNone(v) {
			delete(s.Vars, name)
			return nil
		}
		if s.Vars == nil {
			s.Vars = value.Object{}
		}
		s.Vars[name] = value.Clone(v)
		return nil
	})
}

// Unset removes a session variable. Removing an unbound name is not an
// error.
func (e *Engine) Unset(c Call, name string) error {
	name, err := varName(name)
	if err != nil {
		return err
	}
	return e.mutate(c, func(s *Session) error {
		delete(s.Vars, name)
		return nil
	})
}

// varName accepts names with or without the leading $.
func varName(name string) (string, error) {
	name = strings.TrimPrefix(name, "$")
	if name == "" {
		return "", invalidParams("variable name must not be empty")
	}
	return name, nil
}

// Reset clears the session's namespace, database and variables.
func (e *Engine) Reset(c Call) error {
	return e.mutate(c, func(s *Session) error {
		*s = Session{}
		return nil
	})
}

// Attach creates the session named by the call.
func (e *Engine) Attach(c Call) error {
	if c.Session == uuid.Nil {
		return invalidParams("expected session id")
	}
	e.state.Lock()
	defer e.state.Unlock()
	if _, ok := e.sessions[c.Session]; ok {
		return ErrSessionExists
	}
	e.sessions[c.Session] = &Session{}
	return nil
}

// Detach removes the session named by the call. The default session
// cannot be detached.
func (e *Engine) Detach(c Call) error {
	if c.Session == uuid.Nil {
		return invalidParams("expected session id")
	}
	e.state.Lock()
	defer e.state.Unlock()
	if _, ok := e.sessions[c.Session]; !ok {
		return ErrSessionNotFound
	}
	delete(e.sessions, c.Session)
	return nil
}

// Sessions lists attached session ids in ascending order. The default
// session is not included.
func (e *Engine) Sessions() []uuid.UUID {
	e.state.RLock()
	ids := make([]uuid.UUID, 0, len(e.sessions))
	for id := range e.sessions {
		if id != uuid.Nil {
			ids = append(ids, id)
		}
	}
	e.state.RUnlock()
	slices.SortFunc(ids, func(a, b uuid.UUID) int {
		return strings.Compare(a.String(), b.String())
	})
	return ids
}

// Ping checks the call's session exists.
func (e *Engine) Ping(c Call) error {
	_, err := e.Session(c)
	return err
}
