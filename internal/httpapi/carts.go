package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) openCart(w http.ResponseWriter, r *http.Request) {
	var customerID string
	if err := decodeBody(r, map[string]field{"customer_id": str(&customerID)}); err != nil {
		fail(w, r, err)
		return
	}
	if err := required("customer_id", customerID); err != nil {
		fail(w, r, err)
		return
	}

	c, err := s.engine.OpenCart(r.Context(), PrincipalFrom(r.Context()), customerID)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, c, encodeCart)
}

func (s *Server) listCarts(w http.ResponseWriter, r *http.Request) {
	cs, err := s.engine.ListCarts(r.Context(), PrincipalFrom(r.Context()))
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, cs, encodeCarts)
}

// myCart returns the caller's open cart, or null when there is none.
func (s *Server) myCart(w http.ResponseWriter, r *http.Request) {
	c, err := s.engine.MyOpenCart(r.Context(), PrincipalFrom(r.Context()))
	if err != nil {
		fail(w, r, err)
		return
	}
	if c == nil {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("null"))
		return
	}
	respond(w, http.StatusOK, c, encodeCart)
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	c, err := s.engine.GetCart(r.Context(), PrincipalFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, c, encodeCart)
}

func (s *Server) deleteCart(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeleteCart(r.Context(), PrincipalFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listCartItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.engine.ListCartItems(r.Context(), PrincipalFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, items, encodeItems)
}

func (s *Server) removeAllItems(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.RemoveAllItems(r.Context(), PrincipalFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) addItem(w http.ResponseWriter, r *http.Request) {
	var (
		cartID, productID string
		quantity          int
	)
	if err := decodeBody(r, map[string]field{
		"cart_id":    str(&cartID),
		"product_id": str(&productID),
		"quantity":   integer(&quantity),
	}); err != nil {
		fail(w, r, err)
		return
	}
	if err := required("cart_id", cartID); err != nil {
		fail(w, r, err)
		return
	}
	if err := required("product_id", productID); err != nil {
		fail(w, r, err)
		return
	}

	it, err := s.engine.AddItem(r.Context(), PrincipalFrom(r.Context()), cartID, productID, quantity)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, it, encodeItem)
}

func (s *Server) listAllItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.engine.ListAllItems(r.Context(), PrincipalFrom(r.Context()))
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, items, encodeItems)
}

func (s *Server) myItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.engine.MyOpenItems(r.Context(), PrincipalFrom(r.Context()))
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, items, encodeItems)
}

func (s *Server) getItem(w http.ResponseWriter, r *http.Request) {
	it, err := s.engine.GetItem(r.Context(), PrincipalFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, it, encodeItem)
}

func (s *Server) updateItem(w http.ResponseWriter, r *http.Request) {
	var quantity int
	if err := decodeBody(r, map[string]field{"quantity": integer(&quantity)}); err != nil {
		fail(w, r, err)
		return
	}

	it, err := s.engine.UpdateItem(r.Context(), PrincipalFrom(r.Context()), chi.URLParam(r, "id"), quantity)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, it, encodeItem)
}

func (s *Server) removeItem(w http.ResponseWriter, r *http.Request) {
	it, err := s.engine.RemoveItem(r.Context(), PrincipalFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, it, encodeItem)
}
