package server

import (
	"net/http"
	"strconv"

	"github.com/JonnyJiang123/smart-sql/pkg/core"
	qerr "github.com/JonnyJiang123/smart-sql/pkg/errors"
	"github.com/go-chi/chi/v5"
	"github.com/spf13/cast"
)

// QueryIDHeader carries the id of an executed query.
const QueryIDHeader = "X-Query-ID"

const defaultHistoryLimit = 100

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req core.QueryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.QueryID == "" {
		req.QueryID = s.svc.NewQueryID()
	}
	w.Header().Set(QueryIDHeader, req.QueryID)

	res, err := s.svc.Execute(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	var req core.ExplainRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	plan, err := s.svc.Explain(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	_, err := s.svc.ExecuteBatch(r.Context(), nil)
	s.writeError(w, r, err)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.svc.Cancel(id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "query canceled", "query_id": id})
}

func (s *Server) handleListConnections(w http.ResponseWriter, r *http.Request) {
	conns, err := s.svc.Connections(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conns)
}

func (s *Server) handleSaveConnection(w http.ResponseWriter, r *http.Request) {
	var conn core.Connection
	if err := decodeJSON(w, r, &conn); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.svc.SaveConnection(r.Context(), &conn); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, conn.Redacted())
}

func (s *Server) handleGetConnection(w http.ResponseWriter, r *http.Request) {
	id, err := connectionID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	conn, err := s.svc.Connection(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

func (s *Server) handleUpdateConnection(w http.ResponseWriter, r *http.Request) {
	id, err := connectionID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var conn core.Connection
	if err := decodeJSON(w, r, &conn); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.svc.UpdateConnection(r.Context(), id, &conn); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conn.Redacted())
}

func (s *Server) handleDeleteConnection(w http.ResponseWriter, r *http.Request) {
	id, err := connectionID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.svc.DeleteConnection(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleConnection(w http.ResponseWriter, r *http.Request) {
	id, err := connectionID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	conn, err := s.svc.ToggleConnection(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	var conn core.Connection
	if err := decodeJSON(w, r, &conn); err != nil {
		s.writeError(w, r, err)
		return
	}
	if kind, err := core.ParseBackendKind(string(conn.Kind)); err == nil {
		conn.Kind = kind
	}
	writeJSON(w, http.StatusOK, s.svc.TestConnection(r.Context(), &conn))
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	id, err := connectionID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	tables, err := s.svc.ListTables(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tables)
}

func (s *Server) handleTableSchema(w http.ResponseWriter, r *http.Request) {
	id, err := connectionID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	schema, err := s.svc.TableSchema(r.Context(), id, chi.URLParam(r, "table"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schema)
}

func (s *Server) handleIndexes(w http.ResponseWriter, r *http.Request) {
	id, err := connectionID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	indexes, err := s.svc.Indexes(r.Context(), id, chi.URLParam(r, "table"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, indexes)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	n := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := cast.ToIntE(raw)
		if err != nil || v <= 0 {
			s.writeError(w, r, qerr.Newf(qerr.CodeInvalidRequest, "invalid limit %q", raw))
			return
		}
		n = min(v, core.MaxLimit)
	}

	history, err := s.svc.History(r.Context(), n)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.writeError(w, r, qerr.Newf(qerr.CodeInvalidRequest, "invalid history id %q", raw))
		return
	}
	fav, err := s.svc.ToggleFavorite(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "is_favorite": fav})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	keep := false
	if raw := r.URL.Query().Get("keep_favorites"); raw != "" {
		v, err := cast.ToBoolE(raw)
		if err != nil {
			s.writeError(w, r, qerr.Newf(qerr.CodeInvalidRequest, "invalid keep_favorites %q", raw))
			return
		}
		keep = v
	}

	removed, err := s.svc.ClearHistory(r.Context(), keep)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "removed": removed})
}

func connectionID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, qerr.Newf(qerr.CodeInvalidRequest, "invalid connection id %q", raw)
	}
	return id, nil
}
