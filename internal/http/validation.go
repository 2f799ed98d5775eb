package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/BouzirJawad/cart-micro/internal/domain"
	"github.com/go-playground/validator/v10"
)

type ItemRequestDTO struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  *int   `json:"quantity" validate:"required,min=1"`
}

type RemoveItemRequestDTO struct {
	ProductID string `json:"productId" validate:"required"`
}

type ReplaceItemDTO struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

type ReplaceCartRequestDTO struct {
	Items []ReplaceItemDTO `json:"items" validate:"required,dive"`
}

type MergeRequestDTO struct {
	UserID  string `json:"userId" validate:"required"`
	GuestID string `json:"guestId" validate:"required"`
}

var errBodyTooLarge = errors.New("request body too large")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeAndValidate reads a JSON body into dst and runs its validate tags. Malformed input
// comes back as a *domain.ValidationError carrying the client-facing message.
func decodeAndValidate(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.As(err, &maxBytesErr):
			return errBodyTooLarge
		case errors.As(err, &typeErr):
			return typeMismatchError(typeErr.Field)
		case errors.Is(err, io.EOF):
			// An empty body is validated like an empty object.
		default:
			return domain.NewValidationError("body", "invalid JSON body")
		}
	}

	if err := validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return validationMessage(fieldErrs[0])
		}
		return domain.NewValidationError("body", err.Error())
	}
	return nil
}

func validationMessage(fe validator.FieldError) *domain.ValidationError {
	inItems := strings.Contains(fe.Namespace(), ".items[")

	switch {
	case strings.HasPrefix(fe.Namespace(), "MergeRequestDTO."):
		return domain.NewValidationError("userId", "userId and guestId are required")
	case inItems && fe.Field() == "productId":
		return domain.NewValidationError("items", "each item.productId is required")
	case inItems && fe.Field() == "quantity":
		return domain.NewValidationError("items", "each item.quantity must be >=1")
	case fe.Field() == "items":
		return domain.NewValidationError("items", "items must be an array")
	case fe.Field() == "quantity" && fe.Tag() == "required":
		return domain.NewValidationError("quantity", "quantity is required")
	case fe.Field() == "quantity":
		return domain.NewValidationError("quantity", "quantity must be an integer >= 1")
	default:
		return domain.NewValidationError(fe.Field(), fe.Field()+" is required")
	}
}

func typeMismatchError(field string) *domain.ValidationError {
	switch field {
	case "quantity":
		return domain.NewValidationError("quantity", "quantity must be an integer >= 1")
	case "items":
		return domain.NewValidationError("items", "items must be an array")
	case "items.quantity":
		return domain.NewValidationError("items", "each item.quantity must be >=1")
	case "items.productId":
		return domain.NewValidationError("items", "each item.productId is required")
	default:
		return domain.NewValidationError(field, "invalid JSON body")
	}
}
