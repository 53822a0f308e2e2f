package pos

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"ichiboo/backend/internal/domain"
	"ichiboo/backend/internal/store"
)

// AddExpense records a cash expense on the current session. Expenses live
// with the session and are gone after logout; they exist to feed the
// reconciliation report.
func (s *Service) AddExpense(ctx context.Context, description string, amount float64) ([]domain.ExpenseEntry, error) {
	description = strings.TrimSpace(description)
	if description == "" || amount <= 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessionLocked(ctx)
	if err != nil {
		return nil, err
	}
	sess.expenses = append(sess.expenses, domain.ExpenseEntry{Description: description, Amount: amount})
	return slices.Clone(sess.expenses), nil
}

func (s *Service) ListExpenses(ctx context.Context) ([]domain.ExpenseEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessionLocked(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Clone(sess.expenses), nil
}

// Reconcile aggregates the sales in the requested range against the cash
// figures entered by the operator. When the request carries no expense
// list, the session's recorded expenses are used.
func (s *Service) Reconcile(ctx context.Context, req domain.ReconciliationRequest) (*domain.ReconciliationReport, error) {
	expenses := req.Expenses
	if expenses == nil {
		s.mu.Lock()
		sess, err := s.sessionLocked(ctx)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		expenses = slices.Clone(sess.expenses)
		s.mu.Unlock()
	}

	from, to := NormalizeRange(req.From, req.To)
	sales, err := s.repo.ListSales(ctx, from, to)
	if err != nil {
		return nil, err
	}

	report := domain.ReconciliationReport{
		From:          from,
		To:            to,
		SaleCount:     len(sales),
		StartingFloat: req.StartingFloat,
		ActualCash:    req.ActualCash,
	}

	qtyByName := make(map[string]int)
	for _, sale := range sales {
		report.GrossRevenue += sale.Total
		report.TotalProfit += sale.Profit
		if strings.EqualFold(sale.PaymentMethod, domain.PaymentCash) {
			report.CashTotal += sale.Total
		} else {
			report.NonCashTotal += sale.Total
		}
		for _, item := range sale.Items {
			qtyByName[item.Name] += item.Qty
		}
	}

	for _, e := range expenses {
		report.TotalExpenses += e.Amount
	}

	report.ExpectedCash = (report.GrossRevenue - report.NonCashTotal) - report.TotalExpenses + report.StartingFloat
	report.Variance = report.ActualCash - report.ExpectedCash
	switch {
	case report.Variance > 1e-6:
		report.Status = domain.ReconOver
	case report.Variance < -1e-6:
		report.Status = domain.ReconShort
	default:
		report.Status = domain.ReconBalanced
	}

	report.TopSellers = topSellers(qtyByName, 5)
	return &report, nil
}

func topSellers(qtyByName map[string]int, limit int) []domain.TopSeller {
	sellers := make([]domain.TopSeller, 0, len(qtyByName))
	for name, qty := range qtyByName {
		sellers = append(sellers, domain.TopSeller{Name: name, Qty: qty})
	}
	slices.SortFunc(sellers, func(a, b domain.TopSeller) int {
		if a.Qty != b.Qty {
			return b.Qty - a.Qty
		}
		return cmpString(a.Name, b.Name)
	})
	if len(sellers) > limit {
		sellers = sellers[:limit]
	}
	return sellers
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

// QuickRange resolves the report shorthand ranges against the current
// clock: "today", "7d" and "30d".
func (s *Service) QuickRange(name string) (time.Time, time.Time, bool) {
	now := s.now()
	switch name {
	case "today":
		return now, now, true
	case "7d":
		return now.AddDate(0, 0, -6), now, true
	case "30d":
		return now.AddDate(0, 0, -29), now, true
	}
	return time.Time{}, time.Time{}, false
}

// Receipt renders a completed sale as printable plain text.
func (s *Service) Receipt(ctx context.Context, saleID string) (string, error) {
	sale, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return "", err
	}
	cfg, err := s.repo.GetConfig(ctx)
	if err != nil {
		return "", err
	}

	cur := cfg.CurrencySymbol
	var b strings.Builder
	line := strings.Repeat("-", 32)

	fmt.Fprintf(&b, "%s\n", centerText("ICHI BOO TAKOYAKI", 32))
	fmt.Fprintf(&b, "%s\n", centerText("Official Receipt", 32))
	fmt.Fprintf(&b, "%s\n", line)
	fmt.Fprintf(&b, "Sale: %s\n", sale.ID)
	fmt.Fprintf(&b, "Date: %s\n", sale.Date.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Cashier: %s\n", sale.EmployeeName)
	fmt.Fprintf(&b, "%s\n", line)
	for _, item := range sale.Items {
		fmt.Fprintf(&b, "%s\n", item.Name)
		fmt.Fprintf(&b, "  %d x %s%.2f = %s%.2f\n", item.Qty, cur, item.Price, cur, float64(item.Qty)*item.Price)
	}
	fmt.Fprintf(&b, "%s\n", line)
	fmt.Fprintf(&b, "Subtotal: %s%.2f\n", cur, sale.Subtotal)
	fmt.Fprintf(&b, "Tax:      %s%.2f\n", cur, sale.Tax)
	fmt.Fprintf(&b, "TOTAL:    %s%.2f\n", cur, sale.Total)
	fmt.Fprintf(&b, "%s:  %s%.2f\n", sale.PaymentMethod, cur, sale.Payment)
	fmt.Fprintf(&b, "Change:   %s%.2f\n", cur, sale.Change)
	fmt.Fprintf(&b, "%s\n", line)
	fmt.Fprintf(&b, "%s\n", centerText("Thank you, come again!", 32))
	return b.String(), nil
}

func centerText(text string, width int) string {
	if len(text) >= width {
		return text
	}
	pad := (width - len(text)) / 2
	return strings.Repeat(" ", pad) + text
}
