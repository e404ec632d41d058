// Package rest exposes the listing service over HTTP.
package rest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/urbanestate/listing-service/internal/listing/domain"
	"github.com/urbanestate/listing-service/internal/listing/query"
	"github.com/urbanestate/listing-service/internal/listing/usecase"
	"github.com/urbanestate/listing-service/internal/platform/logger"
)

// Multipart field names.
const (
	fieldFiles        = "Files[]"
	fieldFilesAlt     = "Files"
	fieldDeletedFiles = "deletedFiles"
	fieldFacilities   = "Facilities"
)

const defaultMaxUploadBytes = 32 << 20

// ListingService is the set of operations the handlers route to.
type ListingService interface {
	Authenticate(ctx context.Context, token string) (string, error)
	Create(ctx context.Context, token string, form domain.ListingForm, uploads []usecase.Upload) (*domain.Listing, error)
	Update(ctx context.Context, token, id string, form domain.ListingForm, uploads []usecase.Upload, deletedFiles []string) (*domain.Listing, error)
	Delete(ctx context.Context, token, id string) error
	Get(ctx context.Context, id string) (*domain.Listing, error)
	Images(ctx context.Context, id string) ([]string, error)
	List(ctx context.Context) ([]*domain.Listing, error)
	Search(ctx context.Context, params query.Params) ([]*domain.Listing, error)
	MyListings(ctx context.Context, token string) ([]*domain.Listing, error)
	MyListing(ctx context.Context, token, id string) (*domain.Listing, error)
}

// ListingHandler extracts request data and delegates to the ListingService.
// It never verifies tokens itself.
type ListingHandler struct {
	service        ListingService
	cookieName     string
	maxUploadBytes int64
	logger         *logger.Logger
}

func NewListingHandler(service ListingService, cookieName string, maxUploadBytes int64, log *logger.Logger) *ListingHandler {
	if cookieName == "" {
		cookieName = "token"
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &ListingHandler{
		service:        service,
		cookieName:     cookieName,
		maxUploadBytes: maxUploadBytes,
		logger:         log.Named("ListingHandler"),
	}
}

// token reads the identity token from the session cookie, falling back to a
// bearer Authorization header.
func (h *ListingHandler) token(r *http.Request) string {
	if c, err := r.Cookie(h.cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// authenticated rejects a request without a valid token before its body is
// read.
func (h *ListingHandler) authenticated(w http.ResponseWriter, r *http.Request) (string, bool) {
	token := h.token(r)
	if _, err := h.service.Authenticate(r.Context(), token); err != nil {
		writeError(w, h.logger, err)
		return "", false
	}
	return token, true
}

func (h *ListingHandler) HandleCreateListing(w http.ResponseWriter, r *http.Request) {
	token, ok := h.authenticated(w, r)
	if !ok {
		return
	}
	form, uploads, _, err := h.parseSubmission(w, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	listing, err := h.service.Create(r.Context(), token, form, uploads)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	resp := toListingResponse(listing)
	writeJSON(w, http.StatusCreated, messageResponse{Message: "Listing created successfully", Listing: &resp})
}

func (h *ListingHandler) HandleUpdateListing(w http.ResponseWriter, r *http.Request) {
	token, ok := h.authenticated(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	form, uploads, deleted, err := h.parseSubmission(w, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	listing, err := h.service.Update(r.Context(), token, id, form, uploads, deleted)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	resp := toListingResponse(listing)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Listing updated successfully", Listing: &resp})
}

func (h *ListingHandler) HandleDeleteListing(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), h.token(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Ad and associated files deleted successfully"})
}

func (h *ListingHandler) HandleListListings(w http.ResponseWriter, r *http.Request) {
	listings, err := h.service.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toListingResponses(listings))
}

func (h *ListingHandler) HandleFilteredListings(w http.ResponseWriter, r *http.Request) {
	listings, err := h.service.Search(r.Context(), query.ParamsFromValues(r.URL.Query()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toListingResponses(listings))
}

func (h *ListingHandler) HandleGetListing(w http.ResponseWriter, r *http.Request) {
	listing, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toListingResponse(listing))
}

func (h *ListingHandler) HandleGetImages(w http.ResponseWriter, r *http.Request) {
	files, err := h.service.Images(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(files))
}

func (h *ListingHandler) HandleMyListings(w http.ResponseWriter, r *http.Request) {
	listings, err := h.service.MyListings(r.Context(), h.token(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toListingResponses(listings))
}

func (h *ListingHandler) HandleMyListing(w http.ResponseWriter, r *http.Request) {
	listing, err := h.service.MyListing(r.Context(), h.token(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toListingResponse(listing))
}

// parseSubmission reads a multipart or urlencoded listing submission. Uploaded
// files are read fully into memory, bounded by maxUploadBytes for the whole body.
func (h *ListingHandler) parseSubmission(w http.ResponseWriter, r *http.Request) (domain.ListingForm, []usecase.Upload, []string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	err := r.ParseMultipartForm(h.maxUploadBytes)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.ListingForm{}, nil, nil, fmt.Errorf("%w: request body exceeds %d bytes", domain.ErrValidation, tooLarge.Limit)
		}
		return domain.ListingForm{}, nil, nil, fmt.Errorf("%w: malformed form: %w", domain.ErrValidation, err)
	}

	values := r.Form
	form := domain.ListingForm{
		Price:           values.Get("Price"),
		TransactionKind: values.Get("rent_sale"),
		Furnished:       values.Get("Furnished"),
		Facilities:      append(values[fieldFacilities], values[fieldFacilities+"[]"]...),
		City:            values.Get("City"),
		Bedrooms:        values.Get("Bedrooms"),
		Bathrooms:       values.Get("Bathrooms"),
		Size:            values.Get("PropertySize"),
		Age:             values.Get("PropertyAge"),
		Keywords:        values.Get("Keywords"),
		Description:     values.Get("Description"),
		PropertyType:    values.Get("PropType"),
		Title:           values.Get("Title"),
		Neighborhood:    values.Get("Neighborhood"),
		OwnerLabel:      values.Get("AdOwner"),
	}
	deleted := domain.SplitTags(append(values[fieldDeletedFiles], values[fieldDeletedFiles+"[]"]...)...)

	var uploads []usecase.Upload
	if r.MultipartForm != nil {
		for _, field := range []string{fieldFiles, fieldFilesAlt} {
			for _, fh := range r.MultipartForm.File[field] {
				u, err := readUpload(fh)
				if err != nil {
					h.logger.Warn("failed to read uploaded file", zap.String("name", fh.Filename), zap.Error(err))
					return domain.ListingForm{}, nil, nil, fmt.Errorf("%w: unreadable upload %s", domain.ErrValidation, fh.Filename)
				}
				uploads = append(uploads, u)
			}
		}
	}
	return form, uploads, deleted, nil
}

func readUpload(fh *multipart.FileHeader) (usecase.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return usecase.Upload{}, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return usecase.Upload{}, err
	}
	return usecase.Upload{Name: fh.Filename, Data: data}, nil
}
