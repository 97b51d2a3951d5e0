package host

import (
	"bytes"
	"context"

	"github.com/google/uuid"

	"github.com/roach88/emdb/internal/bridge"
	"github.com/roach88/emdb/internal/codec"
	"github.com/roach88/emdb/internal/engine"
	"github.com/roach88/emdb/internal/rpc"
	"github.com/roach88/emdb/internal/value"
)

// Connect opens endpoint and registers the engine under id. An engine
// already registered under id is replaced and disposed. Success carries an
// empty payload.
func (r *Runtime) Connect(id int32, endpoint string, options []byte, done *bridge.Completion) {
	options = bytes.Clone(options)
	r.submit("connect", "", done, func(context.Context) ([]byte, error) {
		opts, err := engine.DecodeOptions(options)
		if err != nil {
			return nil, connectError(err)
		}
		e, err := engine.Connect(endpoint, opts, r.engineOpts...)
		if err != nil {
			return nil, connectError(err)
		}
		if prev := r.engines.Insert(id, e); prev != nil {
			r.disposeEngine(id, prev, "replaced")
		}
		r.metrics.Engines.Set(float64(r.engines.Len()))
		r.logger.Info("engine connected", "engine_id", id, "endpoint", e.Endpoint().String())
		return nil, nil
	}, "engine_id", id)
}

// Execute runs one method on engine id. Session and transaction ids are
// used only when they are exactly 16 bytes long.
func (r *Runtime) Execute(id int32, method int32, session, txn, params []byte, done *bridge.Completion) {
	m := rpc.Method(method)
	session, txn, params = bytes.Clone(session), bytes.Clone(txn), bytes.Clone(params)
	r.submit("execute", m.String(), done, func(ctx context.Context) ([]byte, error) {
		sid, err := rpc.ParseID(session)
		if err != nil {
			return nil, err
		}
		tid, err := rpc.ParseID(txn)
		if err != nil {
			return nil, err
		}
		e, err := r.lookup(id)
		if err != nil {
			return nil, err
		}
		req := rpc.Request{Method: m, Params: params, Txn: tid}
		if sid.Valid {
			req.Session = sid.UUID
		}
		return rpc.Execute(ctx, e, req)
	}, "engine_id", id)
}

// Import runs dump against engine id in one transaction. Success carries
// an empty payload.
func (r *Runtime) Import(id int32, dump string, done *bridge.Completion) {
	r.submit("import", "", done, func(ctx context.Context) ([]byte, error) {
		e, err := r.lookup(id)
		if err != nil {
			return nil, err
		}
		return nil, e.Import(ctx, dump)
	}, "engine_id", id)
}

// Export renders engine id as a dump. config is an encoded export config
// object; empty means defaults. Success carries the dump as a String value.
func (r *Runtime) Export(id int32, config []byte, done *bridge.Completion) {
	config = bytes.Clone(config)
	r.submit("export", "", done, func(ctx context.Context) ([]byte, error) {
		e, err := r.lookup(id)
		if err != nil {
			return nil, err
		}
		var cfg value.Value = value.None{}
		if len(config) > 0 {
			if cfg, err = codec.Decode(config); err != nil {
				return nil, err
			}
		}
		opts, err := engine.ParseExportConfig(cfg)
		if err != nil {
			return nil, err
		}
		dump, err := e.Export(ctx, opts)
		if err != nil {
			return nil, err
		}
		return codec.EncodeString(dump), nil
	}, "engine_id", id)
}

// Dispose unregisters engine id at once and releases it on a worker.
// Unknown ids are ignored.
func (r *Runtime) Dispose(id int32) {
	e := r.engines.Remove(id)
	if e == nil {
		r.logger.Debug("dispose of unknown engine", "engine_id", id)
		return
	}
	r.metrics.Engines.Set(float64(r.engines.Len()))
	if !r.sched.Submit(func() { r.disposeEngine(id, e, "disposed") }) {
		r.disposeEngine(id, e, "disposed")
	}
}

// Free releases a buffer delivered by this runtime.
func (r *Runtime) Free(h bridge.BufferHandle) error {
	return r.alloc.Free(h)
}

func idBytes(id uuid.UUID) []byte {
	if id == uuid.Nil {
		return nil
	}
	return id[:]
}
