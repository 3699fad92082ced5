// Package net exposes the sketch pipeline over HTTP: stroke input,
// submission, result listing, live websocket updates and shareable
// result links, advertised on the LAN over mDNS.
package net

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/justinas/alice"

	"clickart/internal/session"
	"clickart/internal/sketch"
	"clickart/internal/upload"
)

// Server serves the drawing and result API for one session.
type Server struct {
	pipeline *session.Pipeline
	hub      *Hub

	// OnMutate runs after every sketch mutation. The caller wires in
	// debounced rasterization and snapshot persistence.
	OnMutate func(snap sketch.Snapshot)

	upgrader websocket.Upgrader
}

// NewServer wires a server around the pipeline.
func NewServer(p *session.Pipeline) *Server {
	s := &Server{
		pipeline: p,
		hub:      NewHub(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	p.Session.Store().OnChange(s.Notify)
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/strokes", s.handleStroke)
	mux.HandleFunc("POST /api/undo", s.handleUndo)
	mux.HandleFunc("POST /api/clear", s.handleClear)
	mux.HandleFunc("GET /api/sketch", s.handleSketch)
	mux.HandleFunc("POST /api/submit", s.handleSubmit)
	mux.HandleFunc("GET /api/results", s.handleResults)
	mux.HandleFunc("GET /art/{id}", s.handleArt)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	chain := alice.New(logRequest)
	return chain.Then(mux)
}

// Notify pushes the current view to all websocket clients.
func (s *Server) Notify() {
	if s.hub.Count() == 0 {
		return
	}
	data, err := json.Marshal(session.BuildView(s.pipeline.Session))
	if err != nil {
		log.Printf("[net] marshal view: %v", err)
		return
	}
	s.hub.Broadcast(data)
}

func (s *Server) mutated() {
	if s.OnMutate != nil {
		s.OnMutate(s.pipeline.Buffer.Snapshot())
	}
}

func (s *Server) handleStroke(w http.ResponseWriter, r *http.Request) {
	var st sketch.Stroke
	if err := json.NewDecoder(r.Body).Decode(&st); err != nil {
		http.Error(w, "invalid stroke: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(st.Points) == 0 {
		http.Error(w, "stroke has no points", http.StatusBadRequest)
		return
	}
	s.pipeline.Buffer.Append(st)
	s.mutated()
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	undone := s.pipeline.Buffer.Undo()
	if undone {
		s.mutated()
	}
	writeJSON(w, map[string]bool{"undone": undone})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.pipeline.Buffer.Clear()
	s.mutated()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSketch(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.pipeline.Buffer.Snapshot())
}

type submitRequest struct {
	Prompt string `json:"prompt"`
}

type submitResponse struct {
	ID string `json:"id"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		http.Error(w, "prompt is required", http.StatusBadRequest)
		return
	}

	id, err := s.pipeline.Submit(r.Context(), req.Prompt)
	if err != nil {
		var netErr *upload.NetworkError
		var rejErr *upload.RejectedError
		switch {
		case errors.Is(err, session.ErrDuplicateSubmission):
			// Expected control flow, not an error.
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, session.ErrEmptySketch):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		case errors.As(err, &rejErr):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.As(err, &netErr):
			http.Error(w, err.Error(), http.StatusBadGateway)
		default:
			log.Printf("[net] submit: %v", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, submitResponse{ID: id})
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, session.BuildView(s.pipeline.Session))
}

func (s *Server) handleArt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sub, ok := s.pipeline.Session.Store().Get(id)
	if !ok {
		http.Error(w, "no such art", http.StatusNotFound)
		return
	}
	view := session.BuildView(s.pipeline.Session)
	for _, v := range view.Results {
		if v.ID == sub.ID {
			writeJSON(w, v)
			return
		}
	}
	http.Error(w, "no such art", http.StatusNotFound)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[net] websocket upgrade: %v", err)
		return
	}
	s.hub.Add(conn)

	// Seed the client with the current view. Through the hub, so the
	// write cannot collide with a broadcast already in flight.
	if data, err := json.Marshal(session.BuildView(s.pipeline.Session)); err == nil {
		if err := s.hub.Send(conn, data); err != nil {
			s.hub.Remove(conn)
			return
		}
	}

	// Drain control frames; drop the client when it goes away.
	go func() {
		defer s.hub.Remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[net] write response: %v", err)
	}
}

func logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[net] %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}
