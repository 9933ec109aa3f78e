// Package sales records sales and returns against the derived inventory.
package sales

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"tienda-backend/internal/apperr"
	"tienda-backend/internal/audit"
	"tienda-backend/internal/inventory"
	"tienda-backend/internal/listing"
	"tienda-backend/internal/models"
	"tienda-backend/internal/sequence"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	entitySale = "sale"

	// maxCreateAttempts bounds retries after a sale code collision.
	maxCreateAttempts = 3
)

type LineItem struct {
	ProductID uint             `json:"product_id"`
	Quantity  int64            `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price"` // product final price when empty
}

// SaleInput carries the totals computed by the till. They are stored as
// given.
type SaleInput struct {
	ClientID      *uint                `json:"client_id"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
	LineItems     []LineItem           `json:"line_items"`
	Subtotal      decimal.Decimal      `json:"subtotal"`
	Discount      decimal.Decimal      `json:"discount"`
	Tax           decimal.Decimal      `json:"tax"`
	Total         decimal.Decimal      `json:"total"`
	Received      decimal.Decimal      `json:"received"`
	Change        decimal.Decimal      `json:"change"`
	Notes         string               `json:"notes"`
}

type SaleFilter struct {
	Search         string
	PaymentMethod  models.PaymentMethod
	Range          listing.Range
	IncludeDeleted bool
}

func (in *SaleInput) validate() error {
	if in.PaymentMethod == "" {
		in.PaymentMethod = models.PaymentCash
	}
	if !in.PaymentMethod.Valid() {
		return apperr.Validation("unknown payment method %q", in.PaymentMethod)
	}
	if len(in.LineItems) == 0 {
		return apperr.Validation("line_items must be a non-empty list")
	}
	for i, it := range in.LineItems {
		switch {
		case it.ProductID == 0:
			return apperr.Validation("line %d: product_id is required", i+1)
		case it.Quantity <= 0:
			return apperr.Validation("line %d: quantity must be at least 1", i+1)
		case it.UnitPrice != nil && it.UnitPrice.IsNegative():
			return apperr.Validation("line %d: unit_price cannot be negative", i+1)
		}
	}
	for name, v := range map[string]decimal.Decimal{
		"subtotal": in.Subtotal, "discount": in.Discount, "tax": in.Tax,
		"total": in.Total, "received": in.Received, "change": in.Change,
	} {
		if v.IsNegative() {
			return apperr.Validation("%s cannot be negative", name)
		}
	}
	return nil
}

// CreateSale validates the request, then debits stock, allocates the code
// and stores the sale in one transaction. Any failure leaves no trace.
func CreateSale(db *gorm.DB, in SaleInput, actor audit.Actor) (models.Sale, error) {
	if err := in.validate(); err != nil {
		return models.Sale{}, err
	}

	var (
		id  uint
		err error
	)
	for attempt := 1; attempt <= maxCreateAttempts; attempt++ {
		id, err = createOnce(db, in, actor)
		if !apperr.Is(err, apperr.KindConflict) {
			break
		}
		if rerr := sequence.Resync(db, sequence.PrefixSale); rerr != nil {
			return models.Sale{}, rerr
		}
	}
	if err != nil {
		return models.Sale{}, err
	}
	return GetSale(db, id)
}

func createOnce(db *gorm.DB, in SaleInput, actor audit.Actor) (uint, error) {
	var sale models.Sale
	err := db.Transaction(func(tx *gorm.DB) error {
		code, err := sequence.NextCode(tx, sequence.PrefixSale)
		if err != nil {
			return err
		}

		if in.ClientID != nil {
			var client models.Client
			if err := tx.First(&client, *in.ClientID).Error; err != nil {
				return apperr.FromDB(err, "client")
			}
		}

		sale = models.Sale{
			Code:          code,
			ClientID:      in.ClientID,
			PaymentMethod: in.PaymentMethod,
			Subtotal:      in.Subtotal,
			Discount:      in.Discount,
			Tax:           in.Tax,
			Total:         in.Total,
			Received:      in.Received,
			Change:        in.Change,
			Notes:         strings.TrimSpace(in.Notes),
			CreatedByID:   actor.UserID,
		}
		if err := tx.Create(&sale).Error; err != nil {
			return apperr.FromDB(err, "sale")
		}

		// Lock products in id order with the cumulative quantity per
		// product, so two lines of one product are checked together.
		wanted := map[uint]int64{}
		for _, it := range in.LineItems {
			wanted[it.ProductID] += it.Quantity
		}
		ids := make([]uint, 0, len(wanted))
		for pid := range wanted {
			ids = append(ids, pid)
		}
		slices.Sort(ids)

		ref := inventory.Ref{Type: entitySale, ID: sale.ID, Actor: actor}
		products := make(map[uint]models.Product, len(ids))
		for _, pid := range ids {
			p, err := inventory.Debit(tx, pid, wanted[pid], ref)
			if err != nil {
				return err
			}
			products[pid] = p
		}

		sale.Lines = make([]models.SaleLine, 0, len(in.LineItems))
		for _, it := range in.LineItems {
			unit := products[it.ProductID].FinalPrice
			if it.UnitPrice != nil {
				unit = *it.UnitPrice
			}
			sale.Lines = append(sale.Lines, models.SaleLine{
				SaleID:    sale.ID,
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
				UnitPrice: unit,
			})
		}
		if err := tx.Omit("Product").Create(&sale.Lines).Error; err != nil {
			return err
		}

		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  entitySale,
			EntityID:    sale.ID,
			Action:      models.AuditActionCreate,
			Description: "sale created: " + sale.Code,
			After:       saleSnapshot(sale),
		})
	})
	return sale.ID, err
}

func preloadSale(db *gorm.DB) *gorm.DB {
	unscoped := func(db *gorm.DB) *gorm.DB { return db.Unscoped() }
	return db.Preload("Client", unscoped).Preload("CreatedBy", unscoped).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Lines.Product", unscoped)
}

func GetSale(db *gorm.DB, id uint) (models.Sale, error) {
	var s models.Sale
	err := preloadSale(db).First(&s, id).Error
	return s, apperr.FromDB(err, "sale")
}

// DeleteSale voids a sale. Its lines stop counting against stock.
func DeleteSale(db *gorm.DB, id uint, actor audit.Actor) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var sale models.Sale
		if err := lockSale(tx, id, &sale); err != nil {
			return err
		}
		if err := tx.Where("sale_id = ?", id).Order("id").Find(&sale.Lines).Error; err != nil {
			return err
		}

		ref := inventory.Ref{Type: entitySale, ID: sale.ID, Actor: actor}
		for _, l := range sale.Lines {
			if err := inventory.Credit(tx, l.ProductID, l.Quantity, models.MovementSaleVoid, ref); err != nil {
				return err
			}
		}
		// one timestamp marks the lines the sale held when it was voided
		now := time.Now()
		if err := tx.Model(&models.SaleLine{}).Where("sale_id = ?", id).Update("deleted_at", now).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Sale{}).Where("id = ?", id).Update("deleted_at", now).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  entitySale,
			EntityID:    sale.ID,
			Action:      models.AuditActionDelete,
			Description: "sale deleted: " + sale.Code,
			Before:      saleSnapshot(sale),
		})
	})
}

func ListSales(db *gorm.DB, f SaleFilter, page listing.Params) ([]models.Sale, int64, error) {
	q := db.Model(&models.Sale{}).
		Joins("LEFT JOIN clients ON clients.id = sales.client_id")
	if f.IncludeDeleted {
		q = q.Unscoped()
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(sales.code) LIKE ? OR LOWER(clients.name) LIKE ?", like, like)
	}
	if f.PaymentMethod != "" {
		q = q.Where("sales.payment_method = ?", f.PaymentMethod)
	}
	q = f.Range.Apply(q, "sales.created_at")

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return nil, 0, err
	}
	q = preloadSale(q)
	if f.IncludeDeleted {
		q = q.Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Unscoped().Order("id") })
	}
	var out []models.Sale
	if err := page.Apply(q.Order("sales.created_at DESC, sales.id DESC")).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	if f.IncludeDeleted {
		for i := range out {
			out[i].Lines = heldLines(out[i])
		}
	}
	return out, count, nil
}

// heldLines drops lines that had already left the sale before it was
// voided, such as fully returned ones. Live sales keep only live lines.
func heldLines(s models.Sale) []models.SaleLine {
	kept := s.Lines[:0]
	for _, l := range s.Lines {
		switch {
		case !l.DeletedAt.Valid:
		case s.DeletedAt.Valid && !l.DeletedAt.Time.Before(s.DeletedAt.Time):
		default:
			continue
		}
		kept = append(kept, l)
	}
	return kept
}

// NextCode previews the code the next sale would get.
func NextCode(db *gorm.DB) (string, error) {
	return sequence.Peek(db, sequence.PrefixSale)
}

// Units is the number of items on the loaded lines.
func Units(s models.Sale) int64 {
	var n int64
	for _, l := range s.Lines {
		n += l.Quantity
	}
	return n
}

func saleSnapshot(s models.Sale) map[string]any {
	lines := make([]map[string]any, 0, len(s.Lines))
	for _, l := range s.Lines {
		lines = append(lines, map[string]any{
			"product_id": l.ProductID,
			"quantity":   l.Quantity,
			"unit_price": l.UnitPrice,
		})
	}
	return map[string]any{
		"id":             s.ID,
		"code":           s.Code,
		"client_id":      s.ClientID,
		"payment_method": s.PaymentMethod,
		"subtotal":       s.Subtotal,
		"discount":       s.Discount,
		"tax":            s.Tax,
		"total":          s.Total,
		"lines":          lines,
	}
}

func lockSale(tx *gorm.DB, id uint, s *models.Sale) error {
	if err := tx.Clauses(lockClause).First(s, id).Error; err != nil {
		return apperr.FromDB(err, fmt.Sprintf("sale %d", id))
	}
	return nil
}
