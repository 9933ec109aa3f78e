// Package apperr holds the error taxonomy shared by every service and the
// mapping of those errors onto HTTP responses.
package apperr

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindInsufficientStock
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindInsufficientStock:
		return "insufficient_stock"
	case KindConflict:
		return "conflict"
	}
	return "internal"
}

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// StockError carries the shortfall of a failed debit.
type StockError struct {
	ProductID   uint
	ProductName string
	Requested   int64
	Available   int64
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d (%s): requested %d, available %d",
		e.ProductID, e.ProductName, e.Requested, e.Available)
}

func (e *StockError) Shortfall() int64 {
	if e.Available < 0 {
		return e.Requested
	}
	return e.Requested - e.Available
}

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(entity string) error {
	return &Error{Kind: KindNotFound, Message: entity + " not found"}
}

func Conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func InsufficientStock(productID uint, name string, requested, available int64) error {
	return &StockError{ProductID: productID, ProductName: name, Requested: requested, Available: available}
}

// KindOf classifies err; anything unknown is internal.
func KindOf(err error) Kind {
	var se *StockError
	if errors.As(err, &se) {
		return KindInsufficientStock
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

func Is(err error, k Kind) bool { return err != nil && KindOf(err) == k }

// FromDB translates storage errors into the taxonomy. entity names the
// record for not-found messages.
func FromDB(err error, entity string) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindInternal {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFound(entity)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &Error{Kind: KindConflict, Message: "duplicate " + entity, Err: err}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return &Error{Kind: KindConflict, Message: "duplicate " + entity, Err: err}
	}
	return err
}

// Status maps err to an HTTP status code.
func Status(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	switch KindOf(err) {
	case KindValidation, KindInsufficientStock, KindConflict:
		return fiber.StatusBadRequest
	case KindNotFound:
		return fiber.StatusNotFound
	}
	return fiber.StatusInternalServerError
}

// Body builds the JSON error body. Internal errors never expose their text.
func Body(err error) fiber.Map {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fiber.Map{"error": fe.Message}
	}
	var se *StockError
	if errors.As(err, &se) {
		return fiber.Map{
			"error":      se.Error(),
			"kind":       KindInsufficientStock.String(),
			"product_id": se.ProductID,
			"requested":  se.Requested,
			"available":  max(se.Available, 0),
			"shortfall":  se.Shortfall(),
		}
	}
	var ae *Error
	if errors.As(err, &ae) {
		return fiber.Map{"error": ae.Message, "kind": ae.Kind.String()}
	}
	return fiber.Map{"error": "unexpected server error"}
}
