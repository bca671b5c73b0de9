package httpapi

import (
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-fulfillment/internal/domain/catalog"
	"github.com/xenking/kart-fulfillment/internal/domain/failure"
)

// Multipart forms may carry an image up to catalog.MaxImageSize plus the
// text fields.
const maxFormSize = catalog.MaxImageSize + 1<<20

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := s.engine.ListProducts(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, ps, encodeProducts)
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.engine.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, p, encodeProduct)
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request) {
	patch, cleanup, err := decodeProduct(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	defer cleanup()

	in := catalog.NewProduct{Image: patch.Image}
	if patch.Name != nil {
		in.Name = *patch.Name
	}
	if patch.Price == nil {
		fail(w, r, failure.New(failure.BadRequest, "price is required"))
		return
	}
	in.Price = *patch.Price
	if patch.Stock != nil {
		in.Stock = *patch.Stock
	}

	p, err := s.engine.CreateProduct(r.Context(), PrincipalFrom(r.Context()), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, p, encodeProduct)
}

func (s *Server) updateProduct(w http.ResponseWriter, r *http.Request) {
	patch, cleanup, err := decodeProduct(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	defer cleanup()

	p, err := s.engine.UpdateProduct(r.Context(), PrincipalFrom(r.Context()), chi.URLParam(r, "id"), patch)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, p, encodeProduct)
}

func (s *Server) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeleteProduct(r.Context(), PrincipalFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeProduct reads product fields from either a JSON body or a
// multipart form with an optional "image" file part.
func decodeProduct(w http.ResponseWriter, r *http.Request) (catalog.Patch, func(), error) {
	var patch catalog.Patch
	noop := func() {}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		err := decodeBody(r, map[string]field{
			"name":  optStr(&patch.Name),
			"price": optMoney(&patch.Price),
			"stock": optInt(&patch.Stock),
		})
		return patch, noop, err
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return patch, noop, catalog.ErrImageTooLarge
		}
		return patch, noop, badBody(err)
	}
	cleanup := func() { _ = r.MultipartForm.RemoveAll() }

	if v, ok := formValue(r, "name"); ok {
		patch.Name = &v
	}
	if v, ok := formValue(r, "price"); ok {
		price, err := decimal.NewFromString(v)
		if err != nil {
			cleanup()
			return patch, noop, failure.Errorf(failure.BadRequest, "invalid price %q", v)
		}
		patch.Price = &price
	}
	if v, ok := formValue(r, "stock"); ok {
		stock, err := strconv.Atoi(v)
		if err != nil {
			cleanup()
			return patch, noop, failure.Errorf(failure.BadRequest, "invalid stock %q", v)
		}
		patch.Stock = &stock
	}

	file, header, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		cleanup()
		return patch, noop, badBody(err)
	default:
		patch.Image = &catalog.Object{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Body:        file,
		}
		return patch, func() { _ = file.Close(); cleanup() }, nil
	}
	return patch, cleanup, nil
}

func formValue(r *http.Request, key string) (string, bool) {
	vs, ok := r.MultipartForm.Value[key]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}
