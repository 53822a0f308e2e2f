// Package pos implements the transaction engine: per-session carts with
// compensating stock adjustment, the checkout and void lifecycle, and the
// reporting operations built on top of the sale log.
package pos

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"ichiboo/backend/internal/domain"
	"ichiboo/backend/internal/pricing"
	"ichiboo/backend/internal/store"
	"ichiboo/backend/internal/xid"
)

var ErrAdminRequired = errors.New("admin role required")
var ErrConfirmationRequired = errors.New("confirmation required")
var ErrInvalidLine = errors.New("no cart line at index")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type session struct {
	id        string
	employee  domain.Employee
	cart      []domain.CartLine
	expenses  []domain.ExpenseEntry
	expiresAt time.Time
}

type confirmation struct {
	action    string
	subject   string
	expiresAt time.Time
}

const confirmationTTL = 2 * time.Minute

// sessionTTL bounds how long an abandoned session (no logout) can hold its
// cart reservations before a later login sweeps it.
const sessionTTL = 12 * time.Hour

type Service struct {
	repo store.Repository

	mu            sync.Mutex
	sessions      map[string]*session
	confirmations map[string]confirmation

	now func() time.Time
}

func New(repo store.Repository) *Service {
	return &Service{
		repo:          repo,
		sessions:      make(map[string]*session),
		confirmations: make(map[string]confirmation),
		now:           time.Now,
	}
}

// Login authenticates a 4-digit PIN and opens a session that will hold the
// cart and expense entries until logout.
func (s *Service) Login(ctx context.Context, pin string) (*domain.Employee, string, error) {
	employee, err := s.repo.GetEmployeeByPIN(ctx, pin)
	if err != nil {
		return nil, "", err
	}

	sess := &session{
		id:        xid.New("ses"),
		employee:  *employee,
		expiresAt: s.now().Add(sessionTTL),
	}

	s.mu.Lock()
	s.sweepSessionsLocked(ctx)
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	return employee, sess.id, nil
}

// sweepSessionsLocked drops sessions past their lifetime, returning any
// stock their carts still reserve. Caller holds s.mu.
func (s *Service) sweepSessionsLocked(ctx context.Context) {
	now := s.now()
	for id, sess := range s.sessions {
		if now.After(sess.expiresAt) {
			_ = s.restoreCartLocked(ctx, sess)
			delete(s.sessions, id)
		}
	}
}

// Logout closes the session. Any stock still reserved by the session's cart
// is restored first so an abandoned cart cannot leak reservations.
func (s *Service) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessionLocked(ctx)
	if err != nil {
		return err
	}
	if err := s.restoreCartLocked(ctx, sess); err != nil {
		return err
	}
	delete(s.sessions, sess.id)
	return nil
}

func (s *Service) sessionLocked(ctx context.Context) (*session, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return nil, store.ErrNoEmployeeSession
	}
	sess, ok := s.sessions[actor.SessionID]
	if !ok || s.now().After(sess.expiresAt) {
		return nil, store.ErrNoEmployeeSession
	}
	return sess, nil
}

func (s *Service) requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return store.ErrNoEmployeeSession
	}
	if actor.Role != domain.RoleAdmin {
		return ErrAdminRequired
	}
	return nil
}

// restoreCartLocked gives every reserved quantity back to the catalog and
// empties the cart. Caller holds s.mu.
func (s *Service) restoreCartLocked(ctx context.Context, sess *session) error {
	for len(sess.cart) > 0 {
		line := sess.cart[0]
		if _, err := s.repo.AdjustStock(ctx, line.ProductID, line.Qty); err != nil {
			if errors.Is(err, store.ErrProductNotFound) {
				sess.cart = sess.cart[1:]
				continue
			}
			return err
		}
		sess.cart = sess.cart[1:]
	}
	sess.cart = nil
	return nil
}

func (s *Service) ListProducts(ctx context.Context, category string, query string) ([]domain.ProductView, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	cfg, err := s.repo.GetConfig(ctx)
	if err != nil {
		return nil, err
	}

	category = strings.TrimSpace(category)
	query = strings.ToLower(strings.TrimSpace(query))

	views := make([]domain.ProductView, 0, len(products))
	for _, p := range products {
		if category != "" && !strings.EqualFold(p.Category, category) {
			continue
		}
		if query != "" && !matchesQuery(p, query) {
			continue
		}
		views = append(views, domain.ProductView{
			Product:  p,
			LowStock: p.Qty <= cfg.LowStockThreshold,
		})
	}
	return views, nil
}

func matchesQuery(p domain.Product, query string) bool {
	return strings.Contains(strings.ToLower(p.Name), query) ||
		strings.Contains(strings.ToLower(p.Barcode), query) ||
		strings.Contains(strings.ToLower(p.Category), query)
}

func (s *Service) FindProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	return s.repo.GetProductByBarcode(ctx, strings.TrimSpace(barcode))
}

func (s *Service) UpsertProduct(ctx context.Context, req domain.ProductUpsertRequest) (*domain.Product, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.repo.UpsertProductByName(ctx, req)
}

// RemoveProduct hard-deletes a catalog entry. Historical sales are
// unaffected because they snapshot item data by value.
func (s *Service) RemoveProduct(ctx context.Context, id string, confirmToken string) error {
	if err := s.requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.consumeConfirmation(domain.ConfirmRemoveProduct, id, confirmToken); err != nil {
		return err
	}
	return s.repo.RemoveProduct(ctx, id)
}

func (s *Service) Cart(ctx context.Context) (domain.CartView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessionLocked(ctx)
	if err != nil {
		return domain.CartView{}, err
	}
	return s.cartViewLocked(ctx, sess)
}

func (s *Service) cartViewLocked(ctx context.Context, sess *session) (domain.CartView, error) {
	cfg, err := s.repo.GetConfig(ctx)
	if err != nil {
		return domain.CartView{}, err
	}

	lines := make([]domain.CartLine, len(sess.cart))
	copy(lines, sess.cart)
	totals := pricing.CartTotals(lines, cfg.TaxRate)

	return domain.CartView{
		Lines:    lines,
		Subtotal: totals.Subtotal,
		Tax:      totals.Tax,
		Total:    totals.Total,
	}, nil
}

// AddItem reserves qty units of the product for this session's cart. Price
// and cost are copied at add time; later catalog edits do not alter the
// line. Adding a product already in the cart merges into its line.
func (s *Service) AddItem(ctx context.Context, productID string, qty int) (domain.CartView, error) {
	if qty < 1 {
		return domain.CartView{}, store.ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessionLocked(ctx)
	if err != nil {
		return domain.CartView{}, err
	}

	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return domain.CartView{}, err
	}
	if _, err := s.repo.AdjustStock(ctx, productID, -qty); err != nil {
		return domain.CartView{}, err
	}

	merged := false
	for i := range sess.cart {
		if sess.cart[i].ProductID == productID {
			sess.cart[i].Qty += qty
			merged = true
			break
		}
	}
	if !merged {
		sess.cart = append(sess.cart, domain.CartLine{
			ProductID: product.ID,
			Name:      product.Name,
			Qty:       qty,
			Price:     product.Price,
			CostPrice: product.CostPrice,
		})
	}

	return s.cartViewLocked(ctx, sess)
}

// UpdateLine sets a cart line to newQty, deducting or restoring catalog
// stock by the difference. A newQty of zero or less removes the line.
func (s *Service) UpdateLine(ctx context.Context, index int, newQty int) (domain.CartView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessionLocked(ctx)
	if err != nil {
		return domain.CartView{}, err
	}
	if index < 0 || index >= len(sess.cart) {
		return domain.CartView{}, ErrInvalidLine
	}

	if newQty <= 0 {
		return s.removeLineLocked(ctx, sess, index)
	}

	diff := newQty - sess.cart[index].Qty
	if diff != 0 {
		if _, err := s.repo.AdjustStock(ctx, sess.cart[index].ProductID, -diff); err != nil {
			return domain.CartView{}, err
		}
		sess.cart[index].Qty = newQty
	}
	return s.cartViewLocked(ctx, sess)
}

func (s *Service) RemoveLine(ctx context.Context, index int) (domain.CartView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessionLocked(ctx)
	if err != nil {
		return domain.CartView{}, err
	}
	if index < 0 || index >= len(sess.cart) {
		return domain.CartView{}, ErrInvalidLine
	}
	return s.removeLineLocked(ctx, sess, index)
}

func (s *Service) removeLineLocked(ctx context.Context, sess *session, index int) (domain.CartView, error) {
	line := sess.cart[index]
	if _, err := s.repo.AdjustStock(ctx, line.ProductID, line.Qty); err != nil && !errors.Is(err, store.ErrProductNotFound) {
		return domain.CartView{}, err
	}
	sess.cart = append(sess.cart[:index], sess.cart[index+1:]...)
	return s.cartViewLocked(ctx, sess)
}

// ClearCart cancels the in-progress sale, restoring every reserved
// quantity.
func (s *Service) ClearCart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessionLocked(ctx)
	if err != nil {
		return err
	}
	return s.restoreCartLocked(ctx, sess)
}

// Checkout converts the session cart into an immutable sale. Stock is not
// restored: the deduction made at cart time is realized as a completed
// sale. On any failure nothing is committed and the cart survives.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessionLocked(ctx)
	if err != nil {
		return nil, err
	}
	if len(sess.cart) == 0 {
		return nil, store.ErrEmptyCart
	}

	cfg, err := s.repo.GetConfig(ctx)
	if err != nil {
		return nil, err
	}

	totals := pricing.CartTotals(sess.cart, cfg.TaxRate)
	if totals.Total-req.Payment > 1e-6 {
		return nil, store.ErrInsufficientPayment
	}

	method := strings.TrimSpace(req.PaymentMethod)
	if method == "" {
		method = domain.PaymentCash
	}

	items := make([]domain.CartLine, len(sess.cart))
	copy(items, sess.cart)

	sale := domain.Sale{
		ID:            xid.New("sale"),
		Date:          s.now(),
		Items:         items,
		Subtotal:      totals.Subtotal,
		Tax:           totals.Tax,
		Total:         totals.Total,
		Cost:          totals.Cost,
		Profit:        totals.Profit,
		Payment:       req.Payment,
		Change:        req.Payment - totals.Total,
		PaymentMethod: method,
		EmployeeID:    sess.employee.ID,
		EmployeeName:  sess.employee.Name,
	}

	if err := s.repo.AppendSale(ctx, sale); err != nil {
		return nil, err
	}

	sess.cart = nil
	return &sale, nil
}

func (s *Service) ListSales(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	from, to = NormalizeRange(from, to)
	return s.repo.ListSales(ctx, from, to)
}

func (s *Service) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	return s.repo.GetSale(ctx, id)
}

// VoidSale irrevocably removes a completed sale and puts its snapshot
// quantities back into the catalog. It reverses inventory only, never
// payment.
func (s *Service) VoidSale(ctx context.Context, saleID string, confirmToken string) (*domain.Sale, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	if err := s.consumeConfirmation(domain.ConfirmVoidSale, saleID, confirmToken); err != nil {
		return nil, err
	}
	return s.repo.VoidSale(ctx, saleID)
}

// RequestConfirmation issues a short-lived single-use token for a
// destructive operation. The destructive call must present it back.
func (s *Service) RequestConfirmation(ctx context.Context, action string, subject string) (string, time.Time, error) {
	switch action {
	case domain.ConfirmRemoveProduct, domain.ConfirmVoidSale, domain.ConfirmResetSystem:
	default:
		return "", time.Time{}, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.sessionLocked(ctx); err != nil {
		return "", time.Time{}, err
	}
	s.sweepConfirmationsLocked()

	token := xid.New("cfm")
	expires := s.now().Add(confirmationTTL)
	s.confirmations[token] = confirmation{action: action, subject: subject, expiresAt: expires}
	return token, expires, nil
}

// sweepConfirmationsLocked drops expired tokens so the map cannot grow
// unbounded in a long-lived process. Caller holds s.mu.
func (s *Service) sweepConfirmationsLocked() {
	now := s.now()
	for token, c := range s.confirmations {
		if now.After(c.expiresAt) {
			delete(s.confirmations, token)
		}
	}
}

func (s *Service) consumeConfirmation(action string, subject string, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepConfirmationsLocked()

	c, ok := s.confirmations[token]
	if !ok {
		return ErrConfirmationRequired
	}
	delete(s.confirmations, token)
	if c.action != action || c.subject != subject {
		return ErrConfirmationRequired
	}
	return nil
}

// ResetSystem clears products, sales and raw materials. Employees and
// config survive. Every session cart is dropped since the products it
// references are gone.
func (s *Service) ResetSystem(ctx context.Context, confirmToken string) error {
	if err := s.requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.consumeConfirmation(domain.ConfirmResetSystem, "", confirmToken); err != nil {
		return err
	}
	if err := s.repo.ResetData(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	for _, sess := range s.sessions {
		sess.cart = nil
		sess.expenses = nil
	}
	s.mu.Unlock()
	return nil
}

// NormalizeRange widens from/to to full day boundaries so a range is
// inclusive of both end days.
func NormalizeRange(from time.Time, to time.Time) (time.Time, time.Time) {
	if !from.IsZero() {
		from = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	}
	if !to.IsZero() {
		to = time.Date(to.Year(), to.Month(), to.Day(), 23, 59, 59, 999_000_000, to.Location())
	}
	return from, to
}
