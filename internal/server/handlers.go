package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/polyglot-llm-wire/internal/codec"
	"github.com/tjfontaine/polyglot-llm-wire/internal/domain"
	"github.com/tjfontaine/polyglot-llm-wire/internal/stream"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePairs(w http.ResponseWriter, r *http.Request) {
	type pair struct {
		From domain.APIType `json:"from"`
		To   domain.APIType `json:"to"`
	}
	pairs := s.engine.Pairs()
	out := make([]pair, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, pair{From: p[0], To: p[1]})
	}
	writeJSON(w, http.StatusOK, map[string]any{"pairs": out})
}

// handleTranscode converts one request or response body. Errors use the
// envelope of the source shape, which is what the caller sent.
func (s *Server) handleTranscode(w http.ResponseWriter, r *http.Request) {
	from, ok := s.apiParam(w, r, "from", domain.APITypeOpenAI)
	if !ok {
		return
	}
	to, ok := s.apiParam(w, r, "to", from)
	if !ok {
		return
	}
	kind, err := codec.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		s.writeError(w, r, domain.ErrNotFound(err.Error()), from)
		return
	}
	AddLogField(r.Context(), "from", string(from))
	AddLogField(r.Context(), "to", string(to))

	body, err := s.readBody(w, r)
	if err != nil {
		s.writeError(w, r, err, from)
		return
	}
	out, err := s.engine.Transcode(r.Context(), from, to, kind, body)
	if err != nil {
		s.writeError(w, r, err, from)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

// handleAssemble folds a streamed body into one response, encoded in the
// provider's shape or the ?to= shape. The framing comes from ?format= or
// the Content-Type.
func (s *Server) handleAssemble(w http.ResponseWriter, r *http.Request) {
	from, ok := s.apiParam(w, r, "provider", domain.APITypeOpenAI)
	if !ok {
		return
	}
	to := from
	if q := r.URL.Query().Get("to"); q != "" {
		api, ok := domain.ParseAPIType(q)
		if !ok {
			s.writeError(w, r, domain.ErrInvalidRequest("unknown api type "+q).WithParam("to"), from)
			return
		}
		to = api
	}
	format, err := s.streamFormat(r)
	if err != nil {
		s.writeError(w, r, err, from)
		return
	}
	AddLogField(r.Context(), "provider", string(from))

	body := http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	out, err := s.engine.AssembleTo(r.Context(), from, to, body, format)
	if err != nil {
		s.writeError(w, r, err, from)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

// handleRelay re-encodes a streamed body as server-sent events in the
// target shape. Once the first event is written the status is committed;
// later failures are reported as a final error event.
func (s *Server) handleRelay(w http.ResponseWriter, r *http.Request) {
	from, ok := s.apiParam(w, r, "from", domain.APITypeOpenAI)
	if !ok {
		return
	}
	to, ok := s.apiParam(w, r, "to", from)
	if !ok {
		return
	}
	format, err := s.streamFormat(r)
	if err != nil {
		s.writeError(w, r, err, from)
		return
	}
	AddLogField(r.Context(), "from", string(from))
	AddLogField(r.Context(), "to", string(to))

	flusher, _ := w.(http.Flusher)
	started := false
	emit := func(payload []byte) error {
		if !started {
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		if err := stream.WriteSSE(w, to, payload); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	body := http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	resp, err := s.engine.Relay(r.Context(), from, to, body, format, emit)
	if err != nil {
		if !started {
			s.writeError(w, r, err, from)
			return
		}
		AddError(r.Context(), err)
		stream.WriteSSE(w, to, codec.FormatError(to, err).Body)
		return
	}
	AddLogField(r.Context(), "response_id", resp.ID)
}

// handleTokens counts tokens for a request body, in the OpenAI shape unless
// ?provider= names another.
func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	api := domain.APITypeOpenAI
	if q := r.URL.Query().Get("provider"); q != "" {
		parsed, ok := domain.ParseAPIType(q)
		if !ok {
			s.writeError(w, r, domain.ErrInvalidRequest("unknown api type "+q).WithParam("provider"), api)
			return
		}
		api = parsed
	}
	body, err := s.readBody(w, r)
	if err != nil {
		s.writeError(w, r, err, api)
		return
	}
	count, err := s.engine.CountTokens(r.Context(), api, body)
	if err != nil {
		s.writeError(w, r, err, api)
		return
	}
	writeJSON(w, http.StatusOK, count)
}

// apiParam resolves a wire-shape path parameter. Unknown names get a 404 in
// the fallback envelope.
func (s *Server) apiParam(w http.ResponseWriter, r *http.Request, name string, fallback domain.APIType) (domain.APIType, bool) {
	raw := chi.URLParam(r, name)
	api, ok := domain.ParseAPIType(raw)
	if !ok {
		s.writeError(w, r, domain.ErrNotFound("unknown api type "+raw).WithParam(name), fallback)
		return "", false
	}
	return api, true
}

func (s *Server) streamFormat(r *http.Request) (stream.Format, error) {
	if q := r.URL.Query().Get("format"); q != "" {
		f, err := stream.ParseFormat(q)
		if err != nil {
			return 0, domain.ErrInvalidRequest(err.Error()).WithParam("format")
		}
		return f, nil
	}
	return stream.FormatForContentType(r.Header.Get("Content-Type")), nil
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, domain.ErrInvalidRequest("request body too large").WithStatusCode(http.StatusRequestEntityTooLarge)
		}
		return nil, domain.ErrInvalidRequest("read request body: " + err.Error())
	}
	return body, nil
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, api domain.APIType) {
	AddError(r.Context(), err)
	resp := codec.FormatError(api, err)
	if resp.StatusCode >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed",
			slog.String("request_id", GetRequestID(r.Context())),
			slog.String("error", err.Error()),
		)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	w.Write(resp.Body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
