package sales

import (
	"strconv"
	"strings"

	"tienda-backend/internal/apperr"
	"tienda-backend/internal/audit"
	"tienda-backend/internal/inventory"
	"tienda-backend/internal/listing"
	"tienda-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const entityReturn = "sale_return"

var lockClause = clause.Locking{Strength: "UPDATE"}

type ReturnInput struct {
	SaleID     uint   `json:"sale_id"`
	SaleLineID uint   `json:"sale_line_id"`
	SaleCode   string `json:"sale_code"`
	ProductID  uint   `json:"product_id"`
	Quantity   int64  `json:"quantity"`
}

// SaleTotals are the sale figures after a return was applied.
type SaleTotals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

type ReturnResult struct {
	Return models.SaleReturn
	Totals SaleTotals
}

type ReturnFilter struct {
	Search string
	Range  listing.Range
}

// CreateReturn hands units of one sale line back to stock and recomputes
// the sale. The discount is not reapplied; tax is the configured rate
// over the remaining subtotal.
func CreateReturn(db *gorm.DB, in ReturnInput, taxRate decimal.Decimal, actor audit.Actor) (ReturnResult, error) {
	var res ReturnResult
	if in.Quantity <= 0 {
		return res, apperr.Validation("quantity must be at least 1")
	}
	if in.SaleID == 0 || in.ProductID == 0 {
		return res, apperr.Validation("sale_id and product_id are required")
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		var sale models.Sale
		if err := lockSale(tx, in.SaleID, &sale); err != nil {
			return err
		}

		code := strings.TrimSpace(in.SaleCode)
		if code != "" && code != sale.Code {
			return apperr.Validation("sale code %s does not match sale %d", code, sale.ID)
		}

		var line models.SaleLine
		lq := tx.Where("sale_id = ? AND product_id = ?", sale.ID, in.ProductID)
		if in.SaleLineID != 0 {
			lq = lq.Where("id = ?", in.SaleLineID)
		}
		err := lq.Order("id").First(&line).Error
		if err != nil {
			if apperr.Is(apperr.FromDB(err, "sale line"), apperr.KindNotFound) {
				return apperr.Validation("product does not belong to this sale")
			}
			return err
		}
		if in.Quantity > line.Quantity {
			return apperr.Validation("cannot return %d units, the line has %d", in.Quantity, line.Quantity)
		}

		ret := models.SaleReturn{
			SaleID:      sale.ID,
			SaleCode:    sale.Code,
			SaleLineID:  line.ID,
			ProductID:   line.ProductID,
			Quantity:    in.Quantity,
			CreatedByID: actor.UserID,
		}
		if err := tx.Create(&ret).Error; err != nil {
			return err
		}

		if in.Quantity == line.Quantity {
			if err := tx.Delete(&line).Error; err != nil {
				return err
			}
		} else {
			line.Quantity -= in.Quantity
			line.Subtotal = line.UnitPrice.Mul(decimal.NewFromInt(line.Quantity)).Round(2)
			if err := tx.Model(&line).Updates(map[string]any{
				"quantity": line.Quantity,
				"subtotal": line.Subtotal,
			}).Error; err != nil {
				return err
			}
		}

		totals, err := recomputeSale(tx, &sale, taxRate)
		if err != nil {
			return err
		}

		ref := inventory.Ref{Type: entityReturn, ID: ret.ID, Actor: actor}
		if err := inventory.Credit(tx, line.ProductID, in.Quantity, models.MovementReturn, ref); err != nil {
			return err
		}

		res = ReturnResult{Return: ret, Totals: totals}
		return audit.WriteLog(tx, audit.LogOptions{
			Actor:       actor,
			EntityType:  entityReturn,
			EntityID:    ret.ID,
			Action:      models.AuditActionCreate,
			Description: "return on sale " + sale.Code,
			After: map[string]any{
				"sale_id":    sale.ID,
				"product_id": ret.ProductID,
				"quantity":   ret.Quantity,
				"subtotal":   totals.Subtotal,
				"tax":        totals.Tax,
				"total":      totals.Total,
			},
		})
	})
	return res, err
}

// recomputeSale sums the live lines of sale and stores subtotal, tax and
// total rounded to cents.
func recomputeSale(tx *gorm.DB, sale *models.Sale, taxRate decimal.Decimal) (SaleTotals, error) {
	var lines []models.SaleLine
	if err := tx.Where("sale_id = ?", sale.ID).Find(&lines).Error; err != nil {
		return SaleTotals{}, err
	}
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity)))
	}
	t := SaleTotals{Subtotal: subtotal.Round(2)}
	t.Tax = subtotal.Mul(taxRate).Round(2)
	t.Total = t.Subtotal.Add(t.Tax)

	sale.Subtotal, sale.Tax, sale.Total = t.Subtotal, t.Tax, t.Total
	err := tx.Model(sale).Updates(map[string]any{
		"subtotal": t.Subtotal,
		"tax":      t.Tax,
		"total":    t.Total,
	}).Error
	return t, err
}

func GetReturn(db *gorm.DB, id uint) (models.SaleReturn, error) {
	var r models.SaleReturn
	err := db.First(&r, id).Error
	return r, apperr.FromDB(err, "return")
}

// ListReturns searches by sale code, product name or numeric product id.
func ListReturns(db *gorm.DB, f ReturnFilter, page listing.Params) ([]models.SaleReturn, int64, error) {
	q := db.Model(&models.SaleReturn{}).
		Joins("LEFT JOIN products ON products.id = sale_returns.product_id")
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		if pid, err := strconv.ParseUint(s, 10, 64); err == nil {
			q = q.Where("LOWER(sale_returns.sale_code) LIKE ? OR LOWER(products.name) LIKE ? OR sale_returns.product_id = ?", like, like, pid)
		} else {
			q = q.Where("LOWER(sale_returns.sale_code) LIKE ? OR LOWER(products.name) LIKE ?", like, like)
		}
	}
	q = f.Range.Apply(q, "sale_returns.created_at")

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return nil, 0, err
	}
	var out []models.SaleReturn
	err := page.Apply(q.Order("sale_returns.created_at DESC, sale_returns.id DESC")).Find(&out).Error
	return out, count, err
}
