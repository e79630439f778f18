package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"ygo-storefront-api/internal/cart"
	"ygo-storefront-api/internal/catalog"
	"ygo-storefront-api/internal/service"
	"ygo-storefront-api/pkg/apierror"
	"ygo-storefront-api/pkg/logger"
	"ygo-storefront-api/pkg/response"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

// decodeJSON reads a bounded JSON body into dest and validates it.
// Unknown fields are tolerated; storefront clients send display data along.
func decodeJSON(r *http.Request, dest any) error {
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
	}()

	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := decoder.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return apierror.BadRequest("request body is required")
		}
		return apierror.BadRequest("invalid JSON body").WithDetails(apierror.FieldError{Field: "body", Message: err.Error()})
	}
	if err := validate.Struct(dest); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

func formatValidationErrors(err error) *apierror.Error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return apierror.ValidationError("validation failed")
	}

	details := make([]apierror.FieldError, 0, len(errs))
	for _, fe := range errs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		details = append(details, apierror.FieldError{Field: field, Message: validationMessage(fe)})
	}
	return apierror.ValidationError("validation failed", details...)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	}
	return "is invalid"
}

// positiveID parses a required positive integer identifier.
func positiveID(raw, field string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, apierror.ValidationError(field+" is required", apierror.FieldError{Field: field, Message: "is required"})
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apierror.ValidationError(field+" must be a positive integer", apierror.FieldError{Field: field, Message: "must be a positive integer"})
	}
	return id, nil
}

// writeError maps domain errors onto API errors. Anything unrecognised is
// logged and reported as INTERNAL_ERROR.
func writeError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	var apiErr *apierror.Error
	switch {
	case errors.As(err, &apiErr):
	case errors.Is(err, catalog.ErrUpstreamUnavailable):
		apiErr = apierror.UpstreamUnavailable("")
	case errors.Is(err, catalog.ErrCardNotFound):
		apiErr = apierror.NotFound(err.Error())
	case errors.Is(err, service.ErrInvalidOrder):
		apiErr = apierror.InvalidOrder(err.Error())
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, cart.ErrInvalidCardID),
		errors.Is(err, cart.ErrInvalidQuantity):
		apiErr = apierror.ValidationError(err.Error())
	case errors.Is(err, cart.ErrInvalidClientID):
		apiErr = apierror.BadRequest(err.Error())
	default:
		log.Error(r.Context(), "request failed", err, "method", r.Method, "path", r.URL.Path)
		apiErr = apierror.InternalError("")
	}
	response.Error(w, apiErr)
}
