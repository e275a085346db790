package domain

import (
	"errors"
	"fmt"
)

// Kind стабильный вид ошибки, который видит вызывающая сторона
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindInvalidInput Kind = "invalid_input"
	KindForbidden    Kind = "forbidden"
	KindConflict     Kind = "conflict"
	KindValidation   Kind = "validation_error"
	KindInvalidState Kind = "invalid_state"
	KindInternal     Kind = "internal"
)

// Error ошибка бизнес-операции
type Error struct {
	Kind    Kind
	Message string
	// Fields заполняется только для KindValidation: поле -> причина
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Kind == KindInternal {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func NotFound(msg string) *Error     { return &Error{Kind: KindNotFound, Message: msg} }
func InvalidInput(msg string) *Error { return &Error{Kind: KindInvalidInput, Message: msg} }
func Forbidden(msg string) *Error    { return &Error{Kind: KindForbidden, Message: msg} }
func Conflict(msg string) *Error     { return &Error{Kind: KindConflict, Message: msg} }
func InvalidState(msg string) *Error { return &Error{Kind: KindInvalidState, Message: msg} }

func Validation(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: "validation failed", Fields: fields}
}

// Internal оборачивает неожиданную ошибку хранилища
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf классифицирует любую ошибку; всё незнакомое считается внутренней
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Error message constants
const (
	ErrMsgProductNotFound   = "product not found"
	ErrMsgProductIDRequired = "product id is required"
	ErrMsgQuantityPositive  = "quantity must be a positive integer"
	ErrMsgItemNotInCart     = "line item not found in open cart"
	ErrMsgCartNotFound      = "no open cart for customer"
	ErrMsgCartEmpty         = "cart is empty"
	ErrMsgCartCheckedOut    = "cart is already checked out"
	ErrMsgCheckoutInFlight  = "checkout already in progress"
	ErrMsgPaymentMethod     = "unknown payment method"
	ErrMsgOrderNotFound     = "order not found"
	ErrMsgInvalidStatus     = "invalid status"
	ErrMsgIllegalTransition = "status transition not allowed"
	ErrMsgCustomerNotFound  = "customer not found"
	ErrMsgCustomerTaken     = "username or email already taken"
	ErrMsgInvalidRole       = "invalid role"
	ErrMsgPermissionDenied  = "permission denied"
)
