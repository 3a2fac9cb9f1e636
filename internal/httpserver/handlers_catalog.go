package httpserver

import (
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kwccc073/vuetify-shop-back/internal/audit"
	"github.com/kwccc073/vuetify-shop-back/internal/catalog"
	"github.com/kwccc073/vuetify-shop-back/internal/media"
	"github.com/kwccc073/vuetify-shop-back/internal/validation"
)

const (
	multipartMemory = 2 << 20
	pendingUpload   = "upload"
)

func (h *handler) createProduct(w http.ResponseWriter, r *http.Request, s session) {
	patch, upload, err := h.decodeProduct(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	in := inputFromPatch(patch)
	if upload != nil {
		// Image is satisfied by the upload once the rest of the input passes.
		in.Image = pendingUpload
		if err := h.Catalog.Check(in); err != nil {
			h.record(r, s.account.Handle, audit.ActionProductCreate, "", err)
			h.fail(w, r, err)
			return
		}
		if in.Image, err = h.Media.Save(r.Context(), *upload); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	p, err := h.Catalog.Create(r.Context(), in)
	h.record(r, s.account.Handle, audit.ActionProductCreate, p.ID, err)
	if err != nil {
		if upload != nil {
			h.discardImage(r, in.Image)
		}
		h.fail(w, r, err)
		return
	}
	writeOK(w, "product created", p)
}

func (h *handler) editProduct(w http.ResponseWriter, r *http.Request, s session) {
	id := r.PathValue("id")
	if err := catalog.ValidateID(id); err != nil {
		h.fail(w, r, err)
		return
	}
	patch, upload, err := h.decodeProduct(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if upload != nil {
		if err := h.Catalog.CheckEdit(r.Context(), id, patch); err != nil {
			h.record(r, s.account.Handle, audit.ActionProductEdit, id, err)
			h.fail(w, r, err)
			return
		}
		ref, err := h.Media.Save(r.Context(), *upload)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		patch.Image = &ref
	}
	p, err := h.Catalog.Edit(r.Context(), id, patch)
	h.record(r, s.account.Handle, audit.ActionProductEdit, id, err)
	if err != nil {
		if upload != nil {
			h.discardImage(r, *patch.Image)
		}
		h.fail(w, r, err)
		return
	}
	writeOK(w, "product updated", p)
}

func (h *handler) discardImage(r *http.Request, ref string) {
	if err := h.Media.Delete(r.Context(), ref); err != nil {
		h.logger.Warn("discard uploaded image", "ref", ref, "error", err, "request_id", requestIDFromContext(r.Context()))
	}
}

func (h *handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.Catalog.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, "", p)
}

func (h *handler) searchProducts(includeUnlisted bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := h.Catalog.Search(r.Context(), searchQuery(r, includeUnlisted))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeOK(w, "", page)
	}
}

func (h *handler) searchAllProducts(w http.ResponseWriter, r *http.Request, _ session) {
	h.searchProducts(true)(w, r)
}

// searchQuery reads the listing parameters. Unparseable numbers fall back to
// the defaults.
func searchQuery(r *http.Request, includeUnlisted bool) catalog.SearchQuery {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("itemsPerPage"))
	return catalog.SearchQuery{
		Search:          q.Get("search"),
		SortBy:          q.Get("sortBy"),
		SortOrder:       q.Get("sortOrder"),
		Page:            page,
		PageSize:        size,
		IncludeUnlisted: includeUnlisted,
	}
}

// decodeProduct reads product fields from a JSON body or a multipart form.
// A multipart "image" file is returned unsaved; callers store it once the
// product passes validation.
func (h *handler) decodeProduct(w http.ResponseWriter, r *http.Request) (catalog.ProductPatch, *media.Image, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var patch catalog.ProductPatch
		err := decodeJSON(w, r, &patch)
		return patch, nil, err
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return catalog.ProductPatch{}, nil, errBadRequestBody
	}
	form := r.MultipartForm.Value
	value := func(key string) *string {
		v, ok := form[key]
		if !ok || len(v) == 0 {
			return nil
		}
		return &v[0]
	}

	patch := catalog.ProductPatch{
		Name:        value("name"),
		Description: value("description"),
		Category:    value("category"),
		Image:       value("image"),
	}
	if raw := value("price"); raw != nil {
		price, err := decimal.NewFromString(strings.TrimSpace(*raw))
		if err != nil {
			return catalog.ProductPatch{}, nil, validation.Field("price", "price must be a number")
		}
		patch.Price = &price
	}
	if raw := value("sell"); raw != nil {
		sell, err := strconv.ParseBool(strings.TrimSpace(*raw))
		if err != nil {
			return catalog.ProductPatch{}, nil, validation.Field("sell", "sell must be true or false")
		}
		patch.OnSale = &sell
	}

	file, _, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return patch, nil, nil
	}
	if err != nil {
		return catalog.ProductPatch{}, nil, errBadRequestBody
	}
	defer file.Close()

	if h.Media == nil {
		return catalog.ProductPatch{}, nil, errMediaDisabled
	}
	img, err := media.Read(file)
	if err != nil {
		return catalog.ProductPatch{}, nil, err
	}
	return patch, &img, nil
}

func inputFromPatch(p catalog.ProductPatch) catalog.ProductInput {
	in := catalog.ProductInput{Price: p.Price, OnSale: p.OnSale}
	if p.Name != nil {
		in.Name = *p.Name
	}
	if p.Description != nil {
		in.Description = *p.Description
	}
	if p.Category != nil {
		in.Category = *p.Category
	}
	if p.Image != nil {
		in.Image = *p.Image
	}
	return in
}
