package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/kart-fulfillment/internal/domain/customer"
)

func (s *Server) listCustomers(w http.ResponseWriter, r *http.Request) {
	cs, err := s.engine.ListCustomers(r.Context(), PrincipalFrom(r.Context()))
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, cs, encodeCustomers)
}

func (s *Server) getCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := s.engine.GetCustomer(r.Context(), PrincipalFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, c, encodeCustomer)
}

func (s *Server) createCustomer(w http.ResponseWriter, r *http.Request) {
	var (
		in   customer.Customer
		role string
	)
	if err := decodeBody(r, map[string]field{
		"name": str(&in.Name),
		"mail": str(&in.Mail),
		"role": str(&role),
	}); err != nil {
		fail(w, r, err)
		return
	}
	if err := required("name", in.Name); err != nil {
		fail(w, r, err)
		return
	}
	if err := required("mail", in.Mail); err != nil {
		fail(w, r, err)
		return
	}
	in.Role = customer.Role(role)

	c, err := s.engine.CreateCustomer(r.Context(), PrincipalFrom(r.Context()), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, c, encodeCustomer)
}

func (s *Server) updateCustomer(w http.ResponseWriter, r *http.Request) {
	var (
		patch customer.Patch
		role  *string
	)
	if err := decodeBody(r, map[string]field{
		"name": optStr(&patch.Name),
		"mail": optStr(&patch.Mail),
		"role": optStr(&role),
	}); err != nil {
		fail(w, r, err)
		return
	}
	if role != nil {
		v := customer.Role(*role)
		patch.Role = &v
	}

	c, err := s.engine.UpdateCustomer(r.Context(), PrincipalFrom(r.Context()), chi.URLParam(r, "id"), patch)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, c, encodeCustomer)
}

func (s *Server) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeleteCustomer(r.Context(), PrincipalFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
