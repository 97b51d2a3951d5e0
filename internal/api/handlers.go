package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/roach88/emdb/internal/engine"
	"github.com/roach88/emdb/internal/host"
	"github.com/roach88/emdb/internal/rpc"
	"github.com/roach88/emdb/internal/value"
)

// ContentTypeCBOR is the media type of rpc bodies.
const ContentTypeCBOR = "application/cbor"

type healthResponse struct {
	Status  string `json:"status"`
	Engines int    `json:"engines"`
	Pending int    `json:"pending"`
}

type enginesResponse struct {
	Engines []int32 `json:"engines"`
}

// connectRequest is the body of POST /engines/{engine}. Both fields are
// optional.
type connectRequest struct {
	Endpoint string          `json:"endpoint"`
	Options  json.RawMessage `json:"options,omitempty"`
}

type connectResponse struct {
	Engine   int32  `json:"engine"`
	Endpoint string `json:"endpoint"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Engines: len(s.rt.Engines()),
		Pending: s.rt.Pending(),
	})
}

func (s *Server) handleListEngines(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, enginesResponse{Engines: s.rt.Engines()})
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	id, ok := s.engineID(w, r)
	if !ok {
		return
	}

	var req connectRequest
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
	}
	if req.Endpoint == "" {
		req.Endpoint = "memory"
	}
	var options value.Value = value.None{}
	if len(req.Options) > 0 {
		if options, err = value.FromJSON(req.Options); err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid options: %v", err))
			return
		}
	}

	if err := s.rt.Client(id).Connect(r.Context(), req.Endpoint, options); err != nil {
		s.writeCallError(w, err)
		return
	}
	s.logger.Info("engine connected", "engine_id", id, "endpoint", req.Endpoint)
	s.writeJSON(w, http.StatusCreated, connectResponse{Engine: id, Endpoint: req.Endpoint})
}

func (s *Server) handleDispose(w http.ResponseWriter, r *http.Request) {
	id, ok := s.engineID(w, r)
	if !ok {
		return
	}
	s.rt.Client(id).Dispose()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	id, ok := s.engineID(w, r)
	if !ok {
		return
	}
	dump, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
		return
	}
	if err := s.rt.Client(id).Import(r.Context(), string(dump)); err != nil {
		s.writeCallError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExport takes an optional JSON export config and returns the dump
// as plain text.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	id, ok := s.engineID(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
		return
	}
	var config value.Value = value.None{}
	if len(body) > 0 {
		if config, err = value.FromJSON(body); err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid export config: %v", err))
			return
		}
	}

	dump, err := s.rt.Client(id).Export(r.Context(), config)
	if err != nil {
		s.writeCallError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, dump); err != nil {
		s.logger.Error("write export response", "error", err)
	}
}

// handleRPC runs one method. The body is the CBOR parameter array and the
// response body is the CBOR result. {method} is a method name or code.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	id, ok := s.engineID(w, r)
	if !ok {
		return
	}
	method, err := parseMethod(chi.URLParam(r, "method"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	session, err := headerID(r, HeaderSession)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	txn, err := headerID(r, HeaderTransaction)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	params, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
		return
	}

	out, err := s.rt.Client(id).CallRaw(r.Context(), int32(method), session, txn, params)
	if err != nil {
		s.writeCallError(w, err)
		return
	}
	w.Header().Set("Content-Type", ContentTypeCBOR)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out); err != nil {
		s.logger.Error("write rpc response", "error", err)
	}
}

func (s *Server) engineID(w http.ResponseWriter, r *http.Request) (int32, bool) {
	raw := chi.URLParam(r, "engine")
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid engine id %q", raw))
		return 0, false
	}
	return int32(id), true
}

// parseMethod accepts a method name or its numeric code. Unknown codes are
// passed through so the call itself reports them.
func parseMethod(s string) (rpc.Method, error) {
	if n, err := strconv.ParseInt(s, 10, 32); err == nil {
		return rpc.Method(n), nil
	}
	return rpc.ParseMethod(s)
}

// headerID reads a UUID header as the 16 raw bytes the boundary expects.
func headerID(r *http.Request, name string) ([]byte, error) {
	raw := r.Header.Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return id[:], nil
}

// writeCallError maps a failed boundary call onto a status code. The
// message is the one the boundary delivered.
func (s *Server) writeCallError(w http.ResponseWriter, err error) {
	var failure *host.Failure
	if !errors.As(err, &failure) {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	status := http.StatusUnprocessableEntity
	if failure.Message == engine.ErrEngineNotFound.Error() {
		status = http.StatusNotFound
	}
	s.writeError(w, status, failure.Message)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
