package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dgnsrekt/gexdash/internal/api"
	"github.com/dgnsrekt/gexdash/internal/render"
	"github.com/dgnsrekt/gexdash/internal/session"
	"github.com/dgnsrekt/gexdash/internal/viewmodel"
)

type ctxKey struct{}

// snapshot is the websocket payload pushed after every session update.
type snapshot struct {
	View  session.View `json:"view"`
	Board render.Board `json:"board"`
}

type createResponse struct {
	ID    string       `json:"id"`
	WSURL string       `json:"ws_url,omitempty"`
	View  session.View `json:"view"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Source string `json:"source,omitempty"`
	Status int    `json:"status,omitempty"`
}

var charts = map[string]string{
	"price": render.ContainerPrice,
	"gex":   render.ContainerGex,
}

func (s *Server) sessionCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.manager.Get(chi.URLParam(r, "id"))
		if !ok {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "session not found"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, sess)))
	})
}

func sessionFrom(r *http.Request) *session.Session {
	return r.Context().Value(ctxKey{}).(*session.Session)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok", "sessions": s.manager.Len()}
	if s.wsOn {
		resp["ws_clients"] = s.hub.Clients()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCreateSession opens a session; an optional {"ticker"} body submits
// it straight away.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Ticker string `json:"ticker"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
			return
		}
	}

	sess := s.manager.Create()
	if body.Ticker != "" {
		if err := sess.SubmitTicker(cycleContext(r), body.Ticker); err != nil && !errors.Is(err, session.ErrSuperseded) {
			if code, _ := errorStatus(err); code == http.StatusBadRequest {
				s.manager.Delete(sess.ID())
				s.writeError(w, err)
				return
			}
		}
	}

	resp := createResponse{ID: sess.ID(), View: sess.View()}
	if s.wsOn {
		scheme := "ws"
		if r.TLS != nil {
			scheme = "wss"
		}
		resp.WSURL = fmt.Sprintf("%s://%s/ws?session=%s", scheme, r.Host, sess.ID())
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionFrom(r).View())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	s.manager.Delete(sessionFrom(r).ID())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTicker(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Ticker string `json:"ticker"`
	}
	if !decode(w, r, &body) {
		return
	}
	sess := sessionFrom(r)
	s.respond(w, sess, sess.SubmitTicker(cycleContext(r), body.Ticker))
}

func (s *Server) handleExpiry(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Expiry string `json:"expiry"`
	}
	if !decode(w, r, &body) {
		return
	}
	sess := sessionFrom(r)
	s.respond(w, sess, sess.ChangeExpiry(cycleContext(r), body.Expiry))
}

func (s *Server) handleTimeframe(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Days int `json:"days"`
	}
	if !decode(w, r, &body) {
		return
	}
	sess := sessionFrom(r)
	s.respond(w, sess, sess.ChangeTimeframe(cycleContext(r), body.Days))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	s.respond(w, sess, sess.Refresh(cycleContext(r)))
}

func (s *Server) handleOverlay(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Visible bool `json:"visible"`
	}
	if !decode(w, r, &body) {
		return
	}
	sess := sessionFrom(r)
	s.respond(w, sess, sess.SetOverlayVisible(chi.URLParam(r, "metric"), body.Visible))
}

func (s *Server) handleSort(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Key  string `json:"key"`
		Desc bool   `json:"desc"`
	}
	if !decode(w, r, &body) {
		return
	}
	sess := sessionFrom(r)
	sess.SetSort(viewmodel.ParseSortKey(body.Key), body.Desc)
	s.respond(w, sess, nil)
}

// handleTable returns the strike table ordered by ?sort= and ?desc=,
// defaulting to the session's own ordering.
func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	v := sessionFrom(r).View()
	key, desc := v.Sort, v.Desc
	if q := r.URL.Query().Get("sort"); q != "" {
		key = viewmodel.ParseSortKey(q)
	}
	if q := r.URL.Query().Get("desc"); q != "" {
		desc, _ = strconv.ParseBool(q)
	}
	writeJSON(w, http.StatusOK, viewmodel.TableRows(v.Model.GexByStrike, key, desc))
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	png, ok := sessionFrom(r).Renderer().(*render.PNGRenderer)
	if !ok {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "session has no board"})
		return
	}
	writeJSON(w, http.StatusOK, png.Board())
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	container, ok := charts[chi.URLParam(r, "chart")]
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown chart"})
		return
	}
	png, ok := sessionFrom(r).Renderer().(*render.PNGRenderer)
	if !ok {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "session has no charts"})
		return
	}
	img, ok := png.Canvas().Image(container)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "chart not rendered"})
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(img)
}

// respond writes the session view, or the error mapped to a status. A
// superseded cycle is not an error for the caller: the newer cycle owns
// the session now.
func (s *Server) respond(w http.ResponseWriter, sess *session.Session, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, sess.View())
	case errors.Is(err, session.ErrSuperseded):
		writeJSON(w, http.StatusAccepted, sess.View())
	default:
		s.writeError(w, err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code, resp := errorStatus(err)
	if code >= http.StatusInternalServerError {
		s.logger.Warn("request failed", zap.Int("status", code), zap.Error(err))
	}
	writeJSON(w, code, resp)
}

func errorStatus(err error) (int, errorResponse) {
	resp := errorResponse{Error: err.Error()}

	var fe *api.FetchError
	var se *api.SchemaError
	switch {
	case errors.Is(err, api.ErrInvalidTicker), errors.Is(err, session.ErrInvalidSelection):
		return http.StatusBadRequest, resp
	case errors.Is(err, session.ErrNoTicker):
		return http.StatusConflict, resp
	case errors.Is(err, session.ErrClosed):
		return http.StatusGone, resp
	case errors.As(err, &fe):
		resp.Source = string(fe.Source)
		resp.Status = fe.StatusCode
		return http.StatusBadGateway, resp
	case errors.As(err, &se):
		resp.Source = string(se.Source)
		return http.StatusBadGateway, resp
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, resp
	default:
		return http.StatusInternalServerError, resp
	}
}

// cycleContext detaches a refresh cycle from the client connection. The
// session's cycle timeout still bounds it.
func cycleContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
