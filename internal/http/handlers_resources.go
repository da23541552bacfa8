package http

import (
	"fmt"
	"net/http"

	"finanzas/internal/core"
	"finanzas/internal/services"
)

// resourceHandler serves the CRUD routes of one resource kind. I is the
// request body type decoded on create and update.
type resourceHandler[T core.Record, I services.Input[T]] struct {
	srv *Server
	svc *services.Service[T]
}

// mountResource registers /<name> and /<name>/{id} for svc.
func mountResource[T core.Record, I services.Input[T]](s *Server, mux *http.ServeMux, svc *services.Service[T]) *resourceHandler[T, I] {
	h := &resourceHandler[T, I]{srv: s, svc: svc}
	base := "/" + svc.Name()
	mux.HandleFunc("GET "+base, h.list)
	mux.HandleFunc("POST "+base, h.create)
	mux.HandleFunc("GET "+base+"/{id}", h.get)
	mux.HandleFunc("PUT "+base+"/{id}", h.update)
	mux.HandleFunc("DELETE "+base+"/{id}", h.delete)
	return h
}

func (h *resourceHandler[T, I]) list(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.List(r.Context())
	if err != nil {
		h.srv.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(records).Write(w)
}

func (h *resourceHandler[T, I]) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.srv.writeError(w, r, err)
		return
	}
	rec, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.srv.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(rec).Write(w)
}

func (h *resourceHandler[T, I]) create(w http.ResponseWriter, r *http.Request) {
	var in I
	if err := decodeJSON(w, r, &in); err != nil {
		h.srv.writeError(w, r, err)
		return
	}
	rec, err := h.svc.Create(r.Context(), ClaimFromContext(r.Context()), in)
	if err != nil {
		h.srv.writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(rec).Write(w)
}

func (h *resourceHandler[T, I]) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.srv.writeError(w, r, err)
		return
	}
	var in I
	if err := decodeJSON(w, r, &in); err != nil {
		h.srv.writeError(w, r, err)
		return
	}
	rec, err := h.svc.Update(r.Context(), ClaimFromContext(r.Context()), id, in)
	if err != nil {
		h.srv.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(rec).Write(w)
}

func (h *resourceHandler[T, I]) delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.srv.writeError(w, r, err)
		return
	}
	if err := h.svc.Delete(r.Context(), ClaimFromContext(r.Context()), id); err != nil {
		h.srv.writeError(w, r, err)
		return
	}
	MessageResponse(http.StatusOK, fmt.Sprintf("%s %d deleted", h.svc.Name(), id)).Write(w)
}
