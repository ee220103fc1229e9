package ingest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Zentik-notifier/backend-sub001/internal/eventbus"
	"github.com/Zentik-notifier/backend-sub001/internal/parser"
	logx "github.com/Zentik-notifier/backend-sub001/pkg/logx"
)

// sourceAuto selects the first parser whose Validate accepts the payload.
const sourceAuto = "auto"

type acceptedResponse struct {
	ID           string             `json:"id"`
	BuiltInType  parser.BuiltInType `json:"builtInType"`
	Title        string             `json:"title"`
	DeliveryType string             `json:"deliveryType"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListParsers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.reg.Descriptors())
}

// userID prefers the X-User-Id header and falls back to the userId query
// parameter, matching how webhook providers let you template URLs but not
// headers.
func userID(r *http.Request) string {
	if v := r.Header.Get("X-User-Id"); v != "" {
		return v
	}
	return r.URL.Query().Get("userId")
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vs := range h {
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	return out
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	payload, err := parser.FromJSON(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "body is not a JSON object")
		return
	}

	pctx := parser.Context{
		UserID:   userID(r),
		Headers:  flattenHeaders(r.Header),
		RawBody:  body,
		Settings: s.store,
		Log:      s.log,
	}

	var p parser.Parser
	if strings.EqualFold(source, sourceAuto) {
		detected, ok := s.reg.Detect(r.Context(), payload, pctx)
		if !ok {
			s.publishRejected("", pctx.UserID)
			writeError(w, http.StatusBadRequest, "no parser accepted the payload")
			return
		}
		p = detected
	} else {
		resolved, ok := s.reg.Resolve(parser.BuiltInType(strings.ToUpper(source)))
		if !ok {
			writeError(w, http.StatusNotFound, "unknown source")
			return
		}
		if !resolved.Validate(r.Context(), payload, pctx) {
			s.publishRejected(resolved.Descriptor().BuiltInType, pctx.UserID)
			writeError(w, http.StatusBadRequest, "payload rejected by parser")
			return
		}
		p = resolved
	}

	m := p.Parse(r.Context(), payload, pctx)
	id := uuid.NewString()

	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.EventMessageParsed, Data: map[string]string{
			"id":          id,
			"builtInType": string(p.Descriptor().BuiltInType),
			"title":       m.Title,
		}})
	}
	s.log.Info("message accepted",
		logx.String("id", id),
		logx.String("source", string(p.Descriptor().BuiltInType)),
		logx.String("delivery_type", string(m.DeliveryType)))

	if s.dispatch != nil {
		s.dispatch(r.Context(), id, m)
	}

	writeJSON(w, http.StatusAccepted, acceptedResponse{
		ID:           id,
		BuiltInType:  p.Descriptor().BuiltInType,
		Title:        m.Title,
		DeliveryType: string(m.DeliveryType),
	})
}

func (s *Server) publishRejected(id parser.BuiltInType, user string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: eventbus.EventMessageRejected, Data: map[string]string{
		"builtInType": string(id),
		"user_id":     user,
	}})
}

type settingRequest struct {
	Value string `json:"value"`
}

func (s *Server) handlePutSetting(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "settings store disabled")
		return
	}
	user := chi.URLParam(r, "userID")
	name := chi.URLParam(r, "name")

	var req settingRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "expected {\"value\": \"...\"}")
		return
	}
	if err := s.store.PutSetting(r.Context(), user, name, req.Value); err != nil {
		s.log.Error("setting write failed", logx.String("name", name), logx.Err(err))
		writeError(w, http.StatusInternalServerError, "write failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteSetting(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "settings store disabled")
		return
	}
	user := chi.URLParam(r, "userID")
	name := chi.URLParam(r, "name")
	if err := s.store.DeleteSetting(r.Context(), user, name); err != nil {
		s.log.Error("setting delete failed", logx.String("name", name), logx.Err(err))
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
