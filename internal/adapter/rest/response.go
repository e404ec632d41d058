package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/urbanestate/listing-service/internal/listing/domain"
	"github.com/urbanestate/listing-service/internal/platform/logger"
)

// listingResponse keeps the document field names existing clients read.
type listingResponse struct {
	ID           string      `json:"_id"`
	UserID       string      `json:"UserId"`
	Price        float64     `json:"Price"`
	RentSale     string      `json:"rent_sale"`
	Furnished    interface{} `json:"Furnished,omitempty"`
	Facilities   []string    `json:"Facilities"`
	City         string      `json:"City"`
	Bedrooms     int         `json:"Bedrooms"`
	Bathrooms    int         `json:"Bathrooms"`
	PropertySize float64     `json:"PropertySize"`
	PropertyAge  float64     `json:"PropertyAge"`
	Keywords     string      `json:"Keywords"`
	Description  string      `json:"Description"`
	PropType     string      `json:"PropType"`
	Title        string      `json:"Title"`
	Neighborhood string      `json:"Neighborhood"`
	File         []string    `json:"File"`
	Status       string      `json:"status"`
	AdOwner      string      `json:"AdOwner,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

func toListingResponse(l *domain.Listing) listingResponse {
	resp := listingResponse{
		ID:           l.ID,
		UserID:       l.OwnerID,
		Price:        l.Price,
		RentSale:     string(l.TransactionKind),
		Facilities:   nonNil(l.Facilities),
		City:         l.City,
		Bedrooms:     l.Bedrooms,
		Bathrooms:    l.Bathrooms,
		PropertySize: l.Size,
		PropertyAge:  l.Age,
		Keywords:     l.Keywords,
		Description:  l.Description,
		PropType:     l.PropertyType,
		Title:        l.Title,
		Neighborhood: l.Neighborhood,
		File:         nonNil(l.Files),
		Status:       string(l.Status),
		AdOwner:      l.OwnerLabel,
		CreatedAt:    l.CreatedAt,
		UpdatedAt:    l.UpdatedAt,
	}
	if !l.Furnished.IsZero() {
		resp.Furnished = l.Furnished.Value()
	}
	return resp
}

func toListingResponses(ls []*domain.Listing) []listingResponse {
	out := make([]listingResponse, 0, len(ls))
	for _, l := range ls {
		out = append(out, toListingResponse(l))
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

type messageResponse struct {
	Message string          `json:"message"`
	Listing *listingResponse `json:"listing,omitempty"`
}

type fieldErrorResponse struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

type errorResponse struct {
	Message string               `json:"message"`
	Errors  []fieldErrorResponse `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps the domain error taxonomy to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrListingNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, log *logger.Logger, err error) {
	status := statusFor(err)
	resp := errorResponse{Message: err.Error()}

	switch status {
	case http.StatusBadRequest:
		var verrs domain.ValidationErrors
		if errors.As(err, &verrs) {
			resp.Message = domain.ErrValidation.Error()
			for _, fe := range verrs {
				resp.Errors = append(resp.Errors, fieldErrorResponse{Field: fe.Field, Reason: fe.Reason})
			}
		}
	case http.StatusUnauthorized:
		resp.Message = domain.ErrUnauthenticated.Error()
	case http.StatusServiceUnavailable:
		log.Error("storage unavailable", zap.Error(err))
		resp.Message = "service temporarily unavailable"
	case http.StatusInternalServerError:
		log.Error("unhandled error", zap.Error(err))
		resp.Message = "internal server error"
	}
	writeJSON(w, status, resp)
}
