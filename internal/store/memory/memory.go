package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"ichiboo/backend/internal/domain"
	"ichiboo/backend/internal/store"
	"ichiboo/backend/internal/store/kv"
	"ichiboo/backend/internal/xid"
)

// Store holds every collection in memory and rewrites the full snapshot to
// the persister on each mutation. A failed write rolls the mutation back, so
// memory never silently diverges from the persisted state.
type Store struct {
	mu        sync.RWMutex
	persister kv.Store

	products     []domain.Product
	sales        []domain.Sale
	rawMaterials []domain.RawMaterialEntry
	employees    []domain.Employee
	config       domain.Config

	nextEmployeeID int
}

func defaultConfig() domain.Config {
	return domain.Config{
		TaxRate:           0,
		LowStockThreshold: 5,
		CurrencySymbol:    "₱",
	}
}

func defaultAdmin() domain.Employee {
	return domain.Employee{
		ID:   domain.DefaultAdminID,
		Name: "Admin",
		PIN:  "0000",
		Role: domain.RoleAdmin,
	}
}

// New loads the collections from the persister and seeds the default admin
// and config on first run.
func New(ctx context.Context, persister kv.Store) (*Store, error) {
	s := &Store{persister: persister}

	loaded, err := persister.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrPersistence, err)
	}

	if err := unmarshalInto(loaded, kv.CollectionProducts, &s.products); err != nil {
		return nil, err
	}
	if err := unmarshalInto(loaded, kv.CollectionSales, &s.sales); err != nil {
		return nil, err
	}
	if err := unmarshalInto(loaded, kv.CollectionRawMaterials, &s.rawMaterials); err != nil {
		return nil, err
	}
	if err := unmarshalInto(loaded, kv.CollectionEmployees, &s.employees); err != nil {
		return nil, err
	}

	if raw, ok := loaded[kv.CollectionConfig]; ok {
		if err := json.Unmarshal(raw, &s.config); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	} else {
		s.config = defaultConfig()
	}
	if s.config.CurrencySymbol == "" {
		s.config.CurrencySymbol = defaultConfig().CurrencySymbol
	}

	seeded := false
	if len(s.employees) == 0 {
		s.employees = []domain.Employee{defaultAdmin()}
		seeded = true
	}

	s.nextEmployeeID = domain.DefaultAdminID + 1
	for _, e := range s.employees {
		if e.ID >= s.nextEmployeeID {
			s.nextEmployeeID = e.ID + 1
		}
	}

	if seeded || len(loaded) == 0 {
		if err := s.persist(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// NewSeeded builds a volatile store preloaded with a small takoyaki menu,
// for dev mode and tests.
func NewSeeded(ctx context.Context) (*Store, error) {
	s, err := New(ctx, kv.NewVolatile())
	if err != nil {
		return nil, err
	}

	seed := []domain.ProductUpsertRequest{
		{Name: "Takoyaki Classic 4pcs", Category: "Takoyaki", Barcode: "4800001", Price: 60, CostPrice: 28, Qty: 50},
		{Name: "Takoyaki Classic 8pcs", Category: "Takoyaki", Barcode: "4800002", Price: 110, CostPrice: 52, Qty: 50},
		{Name: "Takoyaki Cheese Overload", Category: "Takoyaki", Barcode: "4800003", Price: 130, CostPrice: 64, Qty: 40},
		{Name: "Okonomiyaki Slice", Category: "Snacks", Barcode: "4800004", Price: 95, CostPrice: 45, Qty: 30},
		{Name: "Iced Tea", Category: "Drinks", Barcode: "4800005", Price: 35, CostPrice: 12, Qty: 80},
		{Name: "Bottled Water", Category: "Drinks", Barcode: "4800006", Price: 20, CostPrice: 9, Qty: 100},
	}
	for _, req := range seed {
		if _, err := s.UpsertProductByName(ctx, req); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func unmarshalInto[T any](loaded map[string][]byte, name string, dst *[]T) error {
	raw, ok := loaded[name]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

type snapshot struct {
	products     []domain.Product
	sales        []domain.Sale
	rawMaterials []domain.RawMaterialEntry
	employees    []domain.Employee
	config       domain.Config
}

func (s *Store) snapshot() snapshot {
	return snapshot{
		products:     slices.Clone(s.products),
		sales:        cloneSales(s.sales),
		rawMaterials: slices.Clone(s.rawMaterials),
		employees:    slices.Clone(s.employees),
		config:       s.config,
	}
}

func (s *Store) restore(snap snapshot) {
	s.products = snap.products
	s.sales = snap.sales
	s.rawMaterials = snap.rawMaterials
	s.employees = snap.employees
	s.config = snap.config
}

// persist serializes every collection and rewrites the persister. Caller
// holds the write lock.
func (s *Store) persist(ctx context.Context) error {
	collections := make(map[string][]byte, 5)
	for name, value := range map[string]any{
		kv.CollectionProducts:     s.products,
		kv.CollectionSales:        s.sales,
		kv.CollectionRawMaterials: s.rawMaterials,
		kv.CollectionEmployees:    s.employees,
		kv.CollectionConfig:       s.config,
	} {
		payload, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
		collections[name] = payload
	}

	if err := s.persister.SaveAll(ctx, collections); err != nil {
		return fmt.Errorf("%w: %v", store.ErrPersistence, err)
	}
	return nil
}

// commit persists the current state, restoring snap when the write fails so
// the rejected mutation never becomes visible.
func (s *Store) commit(ctx context.Context, snap snapshot) error {
	if err := s.persist(ctx); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := slices.Clone(s.products)
	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return cmpString(strings.ToLower(a.Name), strings.ToLower(b.Name))
		}
		return cmpString(a.Category, b.Category)
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := slices.IndexFunc(s.products, func(p domain.Product) bool { return p.ID == id })
	if idx < 0 {
		return nil, store.ErrProductNotFound
	}
	copyProduct := s.products[idx]
	return &copyProduct, nil
}

func (s *Store) GetProductByBarcode(_ context.Context, barcode string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if strings.TrimSpace(barcode) == "" {
		return nil, store.ErrProductNotFound
	}
	idx := slices.IndexFunc(s.products, func(p domain.Product) bool { return p.Barcode == barcode })
	if idx < 0 {
		return nil, store.ErrProductNotFound
	}
	copyProduct := s.products[idx]
	return &copyProduct, nil
}

// UpsertProductByName matches case-insensitively on name; an existing
// product keeps its id and has category/barcode/price/cost/qty overwritten,
// so repeated restocking entries accumulate under one catalog line.
func (s *Store) UpsertProductByName(ctx context.Context, req domain.ProductUpsertRequest) (*domain.Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, store.ErrInvalidInput
	}
	if req.Price < 0 || req.CostPrice < 0 || req.Qty < 0 {
		return nil, store.ErrInvalidInput
	}
	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = "Uncategorized"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshot()

	idx := slices.IndexFunc(s.products, func(p domain.Product) bool {
		return strings.EqualFold(p.Name, name)
	})
	if idx >= 0 {
		p := &s.products[idx]
		p.Category = category
		p.Barcode = req.Barcode
		p.Price = req.Price
		p.CostPrice = req.CostPrice
		p.Qty = req.Qty
		updated := *p
		if err := s.commit(ctx, snap); err != nil {
			return nil, err
		}
		return &updated, nil
	}

	created := domain.Product{
		ID:        xid.New("prd"),
		Name:      name,
		Category:  category,
		Barcode:   req.Barcode,
		Price:     req.Price,
		CostPrice: req.CostPrice,
		Qty:       req.Qty,
	}
	s.products = append(s.products, created)
	if err := s.commit(ctx, snap); err != nil {
		return nil, err
	}
	return &created, nil
}

// AdjustStock is the single enforcement point for the non-negative stock
// invariant: any delta that would drop qty below zero is rejected whole.
func (s *Store) AdjustStock(ctx context.Context, id string, delta int) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.products, func(p domain.Product) bool { return p.ID == id })
	if idx < 0 {
		return nil, store.ErrProductNotFound
	}

	remaining := s.products[idx].Qty + delta
	if remaining < 0 {
		return nil, store.ErrInsufficientStock
	}

	snap := s.snapshot()
	s.products[idx].Qty = remaining
	updated := s.products[idx]
	if err := s.commit(ctx, snap); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Store) RemoveProduct(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.products, func(p domain.Product) bool { return p.ID == id })
	if idx < 0 {
		return store.ErrProductNotFound
	}

	snap := s.snapshot()
	s.products = slices.Delete(s.products, idx, idx+1)
	return s.commit(ctx, snap)
}

func (s *Store) ListSales(_ context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		if !from.IsZero() && sale.Date.Before(from) {
			continue
		}
		if !to.IsZero() && sale.Date.After(to) {
			continue
		}
		sales = append(sales, cloneSale(sale))
	}

	slices.SortFunc(sales, func(a, b domain.Sale) int {
		return b.Date.Compare(a.Date)
	})
	return sales, nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := slices.IndexFunc(s.sales, func(sale domain.Sale) bool { return sale.ID == id })
	if idx < 0 {
		return nil, store.ErrSaleNotFound
	}
	copySale := cloneSale(s.sales[idx])
	return &copySale, nil
}

func (s *Store) AppendSale(ctx context.Context, sale domain.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	s.sales = append(s.sales, cloneSale(sale))
	return s.commit(ctx, snap)
}

// VoidSale restores the voided sale's snapshot quantities and removes it
// from the log in a single commit. Items whose product was since removed
// are skipped; their stock is unrecoverable and the void proceeds anyway.
func (s *Store) VoidSale(ctx context.Context, id string) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.sales, func(sale domain.Sale) bool { return sale.ID == id })
	if idx < 0 {
		return nil, store.ErrSaleNotFound
	}

	snap := s.snapshot()
	removed := cloneSale(s.sales[idx])
	for _, item := range removed.Items {
		pIdx := slices.IndexFunc(s.products, func(p domain.Product) bool { return p.ID == item.ProductID })
		if pIdx < 0 {
			continue
		}
		s.products[pIdx].Qty += item.Qty
	}
	s.sales = slices.Delete(s.sales, idx, idx+1)
	if err := s.commit(ctx, snap); err != nil {
		return nil, err
	}
	return &removed, nil
}

func (s *Store) ListEmployees(_ context.Context) ([]domain.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	employees := slices.Clone(s.employees)
	slices.SortFunc(employees, func(a, b domain.Employee) int { return a.ID - b.ID })
	return employees, nil
}

func (s *Store) GetEmployeeByPIN(_ context.Context, pin string) (*domain.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !validPIN(pin) {
		return nil, store.ErrInvalidPin
	}
	idx := slices.IndexFunc(s.employees, func(e domain.Employee) bool { return e.PIN == pin })
	if idx < 0 {
		return nil, store.ErrInvalidPin
	}
	copyEmployee := s.employees[idx]
	return &copyEmployee, nil
}

func (s *Store) CreateEmployee(ctx context.Context, name string, pin string, role string) (*domain.Employee, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, store.ErrInvalidInput
	}
	if !validPIN(pin) {
		return nil, store.ErrInvalidPin
	}
	if role != domain.RoleAdmin {
		role = domain.RoleCashier
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if slices.ContainsFunc(s.employees, func(e domain.Employee) bool { return e.PIN == pin }) {
		return nil, store.ErrDuplicatePin
	}

	snap := s.snapshot()
	created := domain.Employee{
		ID:   s.nextEmployeeID,
		Name: name,
		PIN:  pin,
		Role: role,
	}
	s.nextEmployeeID++
	s.employees = append(s.employees, created)
	if err := s.commit(ctx, snap); err != nil {
		s.nextEmployeeID--
		return nil, err
	}
	return &created, nil
}

func (s *Store) RemoveEmployee(ctx context.Context, id int) error {
	if id == domain.DefaultAdminID {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.employees, func(e domain.Employee) bool { return e.ID == id })
	if idx < 0 {
		return store.ErrEmployeeNotFound
	}

	snap := s.snapshot()
	s.employees = slices.Delete(s.employees, idx, idx+1)
	return s.commit(ctx, snap)
}

func (s *Store) ResetEmployeePIN(ctx context.Context, id int, pin string) error {
	if !validPIN(pin) {
		return store.ErrInvalidPin
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.employees, func(e domain.Employee) bool { return e.ID == id })
	if idx < 0 {
		return store.ErrEmployeeNotFound
	}
	for i, e := range s.employees {
		if i != idx && e.PIN == pin {
			return store.ErrDuplicatePin
		}
	}

	snap := s.snapshot()
	s.employees[idx].PIN = pin
	return s.commit(ctx, snap)
}

func (s *Store) ListRawMaterials(_ context.Context) ([]domain.RawMaterialEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	materials := slices.Clone(s.rawMaterials)
	slices.SortFunc(materials, func(a, b domain.RawMaterialEntry) int {
		return a.Expiry.Compare(b.Expiry)
	})
	return materials, nil
}

func (s *Store) AddRawMaterial(ctx context.Context, entry domain.RawMaterialEntry) (*domain.RawMaterialEntry, error) {
	entry.Name = strings.TrimSpace(entry.Name)
	if entry.Name == "" || entry.Qty < 1 {
		return nil, store.ErrInvalidInput
	}
	if entry.ID == "" {
		entry.ID = xid.New("raw")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	s.rawMaterials = append(s.rawMaterials, entry)
	if err := s.commit(ctx, snap); err != nil {
		return nil, err
	}
	created := entry
	return &created, nil
}

func (s *Store) RemoveRawMaterial(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.rawMaterials, func(m domain.RawMaterialEntry) bool { return m.ID == id })
	if idx < 0 {
		return store.ErrMaterialNotFound
	}

	snap := s.snapshot()
	s.rawMaterials = slices.Delete(s.rawMaterials, idx, idx+1)
	return s.commit(ctx, snap)
}

func (s *Store) GetConfig(_ context.Context) (domain.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config, nil
}

func (s *Store) UpdateConfig(ctx context.Context, cfg domain.Config) error {
	if cfg.TaxRate < 0 || cfg.LowStockThreshold < 0 {
		return store.ErrInvalidInput
	}
	if strings.TrimSpace(cfg.CurrencySymbol) == "" {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	s.config = cfg
	return s.commit(ctx, snap)
}

func (s *Store) ResetData(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	s.products = nil
	s.sales = nil
	s.rawMaterials = nil
	return s.commit(ctx, snap)
}

func validPIN(pin string) bool {
	if len(pin) != 4 {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
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

func cloneSale(src domain.Sale) domain.Sale {
	dup := src
	items := make([]domain.CartLine, len(src.Items))
	copy(items, src.Items)
	dup.Items = items
	return dup
}

func cloneSales(src []domain.Sale) []domain.Sale {
	dup := make([]domain.Sale, len(src))
	for i, sale := range src {
		dup[i] = cloneSale(sale)
	}
	return dup
}
