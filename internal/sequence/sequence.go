// Package sequence allocates the human readable codes of sales and
// purchase orders (V-00001, OP-00001).
package sequence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"tienda-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	PrefixSale          = "V"
	PrefixPurchaseOrder = "OP"
)

// owners maps a prefix to the table/column whose existing codes seed it.
var owners = map[string]struct{ table, column string }{
	PrefixSale:          {"sales", "code"},
	PrefixPurchaseOrder: {"purchase_orders", "order_number"},
}

func Format(prefix string, n int64) string {
	return fmt.Sprintf("%s-%05d", prefix, n)
}

// NextCode consumes the next value for prefix. It must run inside the
// transaction that stores the code; the counter row stays locked until
// that transaction ends.
func NextCode(tx *gorm.DB, prefix string) (string, error) {
	if err := ensure(tx, prefix); err != nil {
		return "", err
	}

	var seq models.CodeSequence
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("prefix = ?", prefix).Take(&seq).Error; err != nil {
		return "", fmt.Errorf("lock sequence %s: %w", prefix, err)
	}

	seq.LastValue++
	if err := tx.Model(&models.CodeSequence{}).Where("prefix = ?", prefix).
		Update("last_value", seq.LastValue).Error; err != nil {
		return "", fmt.Errorf("advance sequence %s: %w", prefix, err)
	}
	return Format(prefix, seq.LastValue), nil
}

// Peek returns the code NextCode would hand out now, without consuming it.
func Peek(db *gorm.DB, prefix string) (string, error) {
	var seq models.CodeSequence
	err := db.Where("prefix = ?", prefix).Take(&seq).Error
	switch {
	case err == nil:
		return Format(prefix, seq.LastValue+1), nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		last, err := maxExisting(db, prefix)
		if err != nil {
			return "", err
		}
		return Format(prefix, last+1), nil
	default:
		return "", err
	}
}

// ensure creates the counter row on first use, seeded from the codes
// already stored. A concurrent seeder wins silently.
func ensure(tx *gorm.DB, prefix string) error {
	var n int64
	if err := tx.Model(&models.CodeSequence{}).Where("prefix = ?", prefix).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	last, err := maxExisting(tx, prefix)
	if err != nil {
		return err
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.CodeSequence{Prefix: prefix, LastValue: last}).Error
}

// maxExisting scans stored codes, soft-deleted rows included, for the
// highest numeric suffix. Codes that do not parse are ignored.
func maxExisting(db *gorm.DB, prefix string) (int64, error) {
	owner, ok := owners[prefix]
	if !ok {
		return 0, nil
	}
	var codes []string
	if err := db.Table(owner.table).Where(owner.column+" LIKE ?", prefix+"-%").
		Pluck(owner.column, &codes).Error; err != nil {
		return 0, fmt.Errorf("scan %s codes: %w", prefix, err)
	}
	var last int64
	for _, code := range codes {
		n, err := strconv.ParseInt(strings.TrimPrefix(code, prefix+"-"), 10, 64)
		if err == nil && n > last {
			last = n
		}
	}
	return last, nil
}

// Observe raises the counter when a caller stores a code of its own
// choosing, so later allocations do not collide with it.
func Observe(tx *gorm.DB, prefix, code string) error {
	n, err := strconv.ParseInt(strings.TrimPrefix(code, prefix+"-"), 10, 64)
	if err != nil || !strings.HasPrefix(code, prefix+"-") {
		return nil
	}
	if err := ensure(tx, prefix); err != nil {
		return err
	}
	return tx.Model(&models.CodeSequence{}).
		Where("prefix = ? AND last_value < ?", prefix, n).
		Update("last_value", n).Error
}

// Resync raises the counter to the highest code already stored. It runs
// in its own transaction, after an allocation collided with an existing
// code.
func Resync(db *gorm.DB, prefix string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := ensure(tx, prefix); err != nil {
			return err
		}
		last, err := maxExisting(tx, prefix)
		if err != nil {
			return err
		}
		return tx.Model(&models.CodeSequence{}).
			Where("prefix = ? AND last_value < ?", prefix, last).
			Update("last_value", last).Error
	})
}
