package services

import (
	"context"
	"sort"
	"strings"

	"crm-backoffice/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CurrencyTotals is billing volume for one destination currency.
type CurrencyTotals struct {
	Currency      string          `json:"currency"`
	Count         int64           `json:"count"`
	Volume        decimal.Decimal `json:"volume"`
	DeveloperFees decimal.Decimal `json:"developerFees"`
}

type AnalyticsService struct {
	DB *gorm.DB
}

func NewAnalyticsService(db *gorm.DB) *AnalyticsService {
	return &AnalyticsService{DB: db}
}

// BillingTotals sums amounts and developer fees per currency. Amounts are
// provider strings, so the sums are done here rather than in SQL.
func (s *AnalyticsService) BillingTotals(ctx context.Context, filter TransactionFilter) ([]CurrencyTotals, error) {
	totals := map[string]*CurrencyTotals{}

	var batch []models.Transaction
	err := filter.Apply(s.DB.WithContext(ctx)).
		Select("id", "amount", "developer_fee", "destination_currency").
		FindInBatches(&batch, 1000, func(tx *gorm.DB, _ int) error {
			for _, row := range batch {
				cur := strings.ToLower(row.DestinationCurrency)
				t := totals[cur]
				if t == nil {
					t = &CurrencyTotals{Currency: cur}
					totals[cur] = t
				}
				t.Count++
				if amt, err := decimal.NewFromString(row.Amount); err == nil {
					t.Volume = t.Volume.Add(amt)
				}
				if row.DeveloperFee != nil {
					if fee, err := decimal.NewFromString(*row.DeveloperFee); err == nil {
						t.DeveloperFees = t.DeveloperFees.Add(fee)
					}
				}
			}
			return nil
		}).Error
	if err != nil {
		return nil, err
	}

	out := make([]CurrencyTotals, 0, len(totals))
	for _, t := range totals {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out, nil
}

// GetBillingAnalytics handles GET /api/analytics/billing.
func (s *AnalyticsService) GetBillingAnalytics(c *fiber.Ctx) error {
	filter, err := ParseTransactionFilter(FilterParams{
		DateFrom: c.Query("dateFrom"),
		DateTo:   c.Query("dateTo"),
		Currency: c.Query("currency"),
	})
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid filter", err)
	}

	totals, err := s.BillingTotals(c.UserContext(), filter)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "failed to compute billing totals", err)
	}
	return c.JSON(fiber.Map{"success": true, "data": totals})
}
