package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var cartID string
	if err := decodeBody(r, map[string]field{"cart_id": str(&cartID)}); err != nil {
		fail(w, r, err)
		return
	}
	if err := required("cart_id", cartID); err != nil {
		fail(w, r, err)
		return
	}

	o, err := s.engine.CreateOrder(r.Context(), PrincipalFrom(r.Context()), cartID)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, o, encodeOrder)
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	list, err := s.engine.ListOrders(r.Context(), PrincipalFrom(r.Context()))
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, list, encodeOrders)
}

func (s *Server) myOrders(w http.ResponseWriter, r *http.Request) {
	list, err := s.engine.MyOrders(r.Context(), PrincipalFrom(r.Context()))
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, list, encodeOrders)
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.engine.Summary(r.Context(), PrincipalFrom(r.Context()))
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, sum, encodeSummary)
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := s.engine.GetOrder(r.Context(), PrincipalFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, o, encodeOrder)
}

func (s *Server) updateOrder(w http.ResponseWriter, r *http.Request) {
	var cartID string
	if err := decodeBody(r, map[string]field{"cart_id": str(&cartID)}); err != nil {
		fail(w, r, err)
		return
	}
	if err := required("cart_id", cartID); err != nil {
		fail(w, r, err)
		return
	}

	o, err := s.engine.UpdateOrder(r.Context(), PrincipalFrom(r.Context()), chi.URLParam(r, "id"), cartID)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, o, encodeOrder)
}

func (s *Server) cancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := s.engine.CancelOrder(r.Context(), PrincipalFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, o, encodeOrder)
}
