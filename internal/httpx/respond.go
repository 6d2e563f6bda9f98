package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"reflect"
	"strings"

	"github.com/ariefcatur/go-shop-orders/internal/cart"
	"github.com/ariefcatur/go-shop-orders/internal/inventory"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/ariefcatur/go-shop-orders/internal/principal"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

// newValidator reports fields by their json names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code, Details: details})
}

var errEmptyBody = errors.New("request body is empty")

// decodeJSON reads and validates a request body. Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return validate.Struct(dst)
}

// decodeOptional is decodeJSON for endpoints whose body may be omitted.
func decodeOptional(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := decodeJSON(w, r, dst); err != nil && !errors.Is(err, errEmptyBody) {
		return err
	}
	return nil
}

func writeBadRequest(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		writeError(w, http.StatusBadRequest, "validation_failed", "request validation failed", fields)
		return
	}
	writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body", nil)
}

// writeServiceError maps domain errors to HTTP. Anything unrecognised is a
// 500 with a generic message; the cause goes to the log only.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ise *inventory.InsufficientStockError
	if errors.As(err, &ise) {
		writeError(w, http.StatusBadRequest, "insufficient_stock", ise.Error(), map[string]any{
			"product_id": ise.ProductID,
			"requested":  ise.Requested,
			"available":  ise.Available,
		})
		return
	}
	var ite *orders.InvalidTransitionError
	if errors.As(err, &ite) {
		writeError(w, http.StatusConflict, "invalid_transition", ite.Error(), map[string]string{
			"from": string(ite.From),
			"to":   string(ite.To),
		})
		return
	}

	switch {
	case errors.Is(err, principal.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthenticated", "authentication required", nil)
	case errors.Is(err, principal.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", "not allowed", nil)
	case errors.Is(err, orders.ErrOrderNotFound),
		errors.Is(err, inventory.ErrProductNotFound),
		errors.Is(err, cart.ErrItemNotFound):
		writeError(w, http.StatusNotFound, "not_found", "resource not found", nil)
	case errors.Is(err, orders.ErrInvalidTransition),
		errors.Is(err, orders.ErrAlreadyReviewed),
		errors.Is(err, orders.ErrNotReviewable):
		writeError(w, http.StatusConflict, codeOf(err), err.Error(), nil)
	case errors.Is(err, orders.ErrEmptyCart),
		errors.Is(err, orders.ErrInvalidAddress),
		errors.Is(err, orders.ErrInvalidShippingMethod),
		errors.Is(err, orders.ErrMissingTracking),
		errors.Is(err, orders.ErrInvalidReview),
		errors.Is(err, orders.ErrInvalidStatus),
		errors.Is(err, inventory.ErrInvalidQuantity),
		errors.Is(err, inventory.ErrNegativeStock),
		errors.Is(err, inventory.ErrInvalidAdjustment),
		errors.Is(err, inventory.ErrProductUnavailable):
		writeError(w, http.StatusBadRequest, codeOf(err), err.Error(), nil)
	default:
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
	}
}

var errorCodes = []struct {
	err  error
	code string
}{
	{orders.ErrInvalidTransition, "invalid_transition"},
	{orders.ErrAlreadyReviewed, "already_reviewed"},
	{orders.ErrNotReviewable, "not_reviewable"},
	{orders.ErrEmptyCart, "empty_cart"},
	{orders.ErrInvalidAddress, "invalid_address"},
	{orders.ErrInvalidShippingMethod, "invalid_shipping_method"},
	{orders.ErrMissingTracking, "missing_tracking"},
	{orders.ErrInvalidReview, "invalid_review"},
	{orders.ErrInvalidStatus, "invalid_status"},
	{inventory.ErrInvalidQuantity, "invalid_quantity"},
	{inventory.ErrNegativeStock, "negative_stock"},
	{inventory.ErrInvalidAdjustment, "invalid_adjustment"},
	{inventory.ErrProductUnavailable, "product_unavailable"},
}

func codeOf(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "bad_request"
}

func mustPrincipal(w http.ResponseWriter, r *http.Request) (principal.Principal, bool) {
	p, ok := principal.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "authentication required", nil)
	}
	return p, ok
}

func requireRole(w http.ResponseWriter, r *http.Request, roles ...principal.Role) (principal.Principal, bool) {
	p, ok := mustPrincipal(w, r)
	if !ok {
		return p, false
	}
	for _, role := range roles {
		if p.Role == role {
			return p, true
		}
	}
	writeError(w, http.StatusForbidden, "forbidden", fmt.Sprintf("role %s not allowed", p.Role), nil)
	return p, false
}
