// Package rpc exposes one notebook over JSON-RPC 2.0.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/sourcegraph/jsonrpc2"

	"nerdbook/internal/codegen"
	"nerdbook/internal/config"
	"nerdbook/internal/kernel"
	"nerdbook/internal/logging"
	"nerdbook/internal/notebook"
)

// Application error codes.
const (
	CodeCellNotFound   int64 = -32001
	CodeCodegenMissing int64 = -32002
)

var (
	errMethodNotFound = &jsonrpc2.Error{
		Code: jsonrpc2.CodeMethodNotFound, Message: "method not found"}
	errInvalidParams = &jsonrpc2.Error{
		Code: jsonrpc2.CodeInvalidParams, Message: "invalid params"}
	errCodegenMissing = &jsonrpc2.Error{
		Code: CodeCodegenMissing, Message: "code generation is not configured"}
)

// Server serves one notebook.
type Server struct {
	nb  *notebook.Notebook
	gen codegen.Generator
}

// NewServer creates a server for nb. gen may be nil, in which case
// notebook/generate fails with CodeCodegenMissing.
func NewServer(nb *notebook.Notebook, gen codegen.Generator) *Server {
	return &Server{nb: nb, gen: gen}
}

// Codec returns the object codec for a framing mode.
func Codec(framing string) (jsonrpc2.ObjectCodec, error) {
	switch framing {
	case config.FramingVSCode, "":
		return jsonrpc2.VSCodeObjectCodec{}, nil
	case config.FramingPlain:
		return jsonrpc2.PlainObjectCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown framing: %s", framing)
	}
}

// Serve handles requests on rwc until the peer disconnects or ctx is done.
func (s *Server) Serve(ctx context.Context, rwc io.ReadWriteCloser, framing string) error {
	codec, err := Codec(framing)
	if err != nil {
		return err
	}
	conn := jsonrpc2.NewConn(ctx, jsonrpc2.NewBufferedStream(rwc, codec), s.Handler())
	logging.RPC("serving notebook %s (framing=%s)", s.nb.SessionID(), framing)

	select {
	case <-conn.DisconnectNotify():
		logging.RPC("client disconnected")
	case <-ctx.Done():
		conn.Close()
		<-conn.DisconnectNotify()
		logging.RPC("server stopped: %v", ctx.Err())
	}
	return nil
}

// Handler returns the routing handler. Requests are handled synchronously, in
// arrival order.
func (s *Server) Handler() jsonrpc2.Handler {
	return routingHandler(map[string]method{
		"notebook/addCell":     s.addCell,
		"notebook/deleteCell":  s.deleteCell,
		"notebook/updateCell":  s.updateCell,
		"notebook/execute":     s.execute,
		"notebook/executeAll":  s.executeAll,
		"notebook/cells":       s.cells,
		"notebook/namespace":   s.namespace,
		"notebook/reset":       s.reset,
		"notebook/generate":    s.generate,
		"notebook/sessionInfo": s.sessionInfo,
	})
}

type method func(context.Context, json.RawMessage) (any, error)

func routingHandler(methods map[string]method) jsonrpc2.Handler {
	return jsonrpc2.HandlerWithError(func(ctx context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
		fn, ok := methods[req.Method]
		if !ok {
			logging.RPCDebug("unknown method %q", req.Method)
			return nil, errMethodNotFound
		}
		var params json.RawMessage
		if req.Params != nil {
			params = *req.Params
		}
		logging.RPCDebug("-> %s", req.Method)
		return fn(ctx, params)
	})
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errInvalidParams
	}
	if json.Unmarshal(raw, v) != nil {
		return errInvalidParams
	}
	return nil
}

func cellError(err error) error {
	if errors.Is(err, notebook.ErrCellNotFound) {
		return &jsonrpc2.Error{Code: CodeCellNotFound, Message: err.Error()}
	}
	return err
}

// =============================================================================
// PARAMS AND RESULTS
// =============================================================================

// CellParams names a cell.
type CellParams struct {
	ID int `json:"id"`
}

// AddCellParams carries the initial code of a new cell.
type AddCellParams struct {
	Code string `json:"code"`
}

// UpdateCellParams replaces a cell's code.
type UpdateCellParams struct {
	ID   int    `json:"id"`
	Code string `json:"code"`
}

// GenerateParams asks for code for a cell.
type GenerateParams struct {
	ID     int    `json:"id"`
	Prompt string `json:"prompt"`
}

// DeleteResult reports whether a cell was removed.
type DeleteResult struct {
	Deleted bool `json:"deleted"`
}

// ExecuteResult is the outcome of one execution. A failed execution is a
// successful call with OK false; the output carries the error display string.
type ExecuteResult struct {
	ID     int    `json:"id"`
	Output string `json:"output"`
	OK     bool   `json:"ok"`
}

// GenerateResult is the cell after generation.
type GenerateResult struct {
	Output string `json:"output"`
	Code   string `json:"code"`
	OK     bool   `json:"ok"`
}

// SessionInfo describes the served notebook.
type SessionInfo struct {
	SessionID string `json:"sessionId"`
	Language  string `json:"language"`
	Cells     int    `json:"cells"`
}

// =============================================================================
// METHODS
// =============================================================================

func (s *Server) addCell(_ context.Context, raw json.RawMessage) (any, error) {
	var p AddCellParams
	if len(raw) > 0 {
		if err := decode(raw, &p); err != nil {
			return nil, err
		}
	}
	return s.nb.AddCell(p.Code).Snapshot(), nil
}

func (s *Server) deleteCell(_ context.Context, raw json.RawMessage) (any, error) {
	var p CellParams
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	return DeleteResult{Deleted: s.nb.DeleteCell(p.ID)}, nil
}

func (s *Server) updateCell(_ context.Context, raw json.RawMessage) (any, error) {
	var p UpdateCellParams
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	if err := s.nb.UpdateCode(p.ID, p.Code); err != nil {
		return nil, cellError(err)
	}
	c, _ := s.nb.Cell(p.ID)
	return c.Snapshot(), nil
}

func (s *Server) execute(ctx context.Context, raw json.RawMessage) (any, error) {
	var p CellParams
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	out, err := s.nb.Execute(ctx, p.ID)
	if errors.Is(err, notebook.ErrCellNotFound) {
		return nil, cellError(err)
	}
	return ExecuteResult{ID: p.ID, Output: out, OK: err == nil}, nil
}

func (s *Server) executeAll(ctx context.Context, _ json.RawMessage) (any, error) {
	outcomes := s.nb.ExecuteAll(ctx)
	results := make([]ExecuteResult, 0, len(outcomes))
	for _, o := range outcomes {
		results = append(results, ExecuteResult{ID: o.ID, Output: o.Output, OK: o.Err == nil})
	}
	return results, nil
}

func (s *Server) cells(_ context.Context, _ json.RawMessage) (any, error) {
	cells := s.nb.Cells()
	out := make([]notebook.Snapshot, 0, len(cells))
	for _, c := range cells {
		out = append(out, c.Snapshot())
	}
	return out, nil
}

func (s *Server) namespace(_ context.Context, _ json.RawMessage) (any, error) {
	bindings := s.nb.Namespace()
	if bindings == nil {
		bindings = []kernel.Binding{}
	}
	return bindings, nil
}

func (s *Server) reset(_ context.Context, _ json.RawMessage) (any, error) {
	s.nb.Reset()
	return nil, nil
}

func (s *Server) generate(ctx context.Context, raw json.RawMessage) (any, error) {
	var p GenerateParams
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	if s.gen == nil {
		return nil, errCodegenMissing
	}
	out, err := s.nb.Generate(ctx, p.ID, s.gen, p.Prompt)
	if errors.Is(err, notebook.ErrCellNotFound) {
		return nil, cellError(err)
	}
	c, _ := s.nb.Cell(p.ID)
	return GenerateResult{Output: out, Code: c.Code(), OK: err == nil}, nil
}

func (s *Server) sessionInfo(_ context.Context, _ json.RawMessage) (any, error) {
	return SessionInfo{
		SessionID: s.nb.SessionID(),
		Language:  s.nb.Kernel().Language(),
		Cells:     s.nb.Len(),
	}, nil
}
