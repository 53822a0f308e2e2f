package domain

import "time"

type Product struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Category  string  `json:"category"`
	Barcode   string  `json:"barcode,omitempty"`
	Price     float64 `json:"price"`
	CostPrice float64 `json:"cost_price"`
	Qty       int     `json:"qty"`
}

// ProductView is the catalog read model; LowStock is derived from the
// configured threshold at listing time and never persisted.
type ProductView struct {
	Product
	LowStock bool `json:"low_stock"`
}

type ProductUpsertRequest struct {
	Name      string  `json:"name"`
	Category  string  `json:"category"`
	Barcode   string  `json:"barcode,omitempty"`
	Price     float64 `json:"price"`
	CostPrice float64 `json:"cost_price"`
	Qty       int     `json:"qty"`
}

type CartLine struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Qty       int     `json:"qty"`
	Price     float64 `json:"price"`
	CostPrice float64 `json:"cost_price"`
}

type CartView struct {
	Lines    []CartLine `json:"lines"`
	Subtotal float64    `json:"subtotal"`
	Tax      float64    `json:"tax"`
	Total    float64    `json:"total"`
}

type CartAddRequest struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type CartUpdateRequest struct {
	Qty int `json:"qty"`
}

type Employee struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	PIN  string `json:"pin"`
	Role string `json:"role"`
}

type EmployeeCreateRequest struct {
	Name string `json:"name"`
	PIN  string `json:"pin"`
	Role string `json:"role"`
}

type PinResetRequest struct {
	PIN string `json:"pin"`
}

type LoginRequest struct {
	PIN string `json:"pin"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	SessionID  string
	EmployeeID int
	Name       string
	Role       string
}

type Sale struct {
	ID            string     `json:"id"`
	Date          time.Time  `json:"date"`
	Items         []CartLine `json:"items"`
	Subtotal      float64    `json:"subtotal"`
	Tax           float64    `json:"tax"`
	Total         float64    `json:"total"`
	Cost          float64    `json:"cost"`
	Profit        float64    `json:"profit"`
	Payment       float64    `json:"payment"`
	Change        float64    `json:"change"`
	PaymentMethod string     `json:"payment_method"`
	EmployeeID    int        `json:"employee_id"`
	EmployeeName  string     `json:"employee_name"`
}

type CheckoutRequest struct {
	Payment       float64 `json:"payment"`
	PaymentMethod string  `json:"payment_method"`
}

type RawMaterialEntry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Delivered time.Time `json:"delivered"`
	Expiry    time.Time `json:"expiry"`
	Qty       int       `json:"qty"`
}

// RawMaterialView carries the derived freshness status.
type RawMaterialView struct {
	RawMaterialEntry
	Status string `json:"status"`
}

type RawMaterialCreateRequest struct {
	Name      string `json:"name"`
	Delivered string `json:"delivered"`
	Expiry    string `json:"expiry"`
	Qty       int    `json:"qty"`
}

type Config struct {
	TaxRate           float64 `json:"tax_rate"`
	LowStockThreshold int     `json:"low_stock_threshold"`
	CurrencySymbol    string  `json:"currency_symbol"`
}

type ExpenseEntry struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

type ReconciliationRequest struct {
	From          time.Time
	To            time.Time
	StartingFloat float64
	ActualCash    float64
	Expenses      []ExpenseEntry
}

type TopSeller struct {
	Name string `json:"name"`
	Qty  int    `json:"qty"`
}

type ReconciliationReport struct {
	From          time.Time   `json:"from"`
	To            time.Time   `json:"to"`
	SaleCount     int         `json:"sale_count"`
	GrossRevenue  float64     `json:"gross_revenue"`
	TotalProfit   float64     `json:"total_profit"`
	CashTotal     float64     `json:"cash_total"`
	NonCashTotal  float64     `json:"non_cash_total"`
	TotalExpenses float64     `json:"total_expenses"`
	StartingFloat float64     `json:"starting_float"`
	ExpectedCash  float64     `json:"expected_cash"`
	ActualCash    float64     `json:"actual_cash"`
	Variance      float64     `json:"variance"`
	Status        string      `json:"status"`
	TopSellers    []TopSeller `json:"top_sellers"`
}

type ConfirmationRequest struct {
	Action  string `json:"action"`
	Subject string `json:"subject,omitempty"`
}

type ConfirmationResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

// DefaultAdminID is the distinguished employee seeded at first run. It can
// never be removed, only have its PIN reset.
const DefaultAdminID = 1001

const (
	PaymentCash = "Cash"
)

const (
	ReconBalanced = "Balanced"
	ReconOver     = "Over"
	ReconShort    = "Short"
)

const (
	MaterialFresh    = "Fresh"
	MaterialExpiring = "Expiring-soon"
	MaterialExpired  = "Expired"
)

const (
	ConfirmRemoveProduct = "remove-product"
	ConfirmVoidSale      = "void-sale"
	ConfirmResetSystem   = "reset-system"
)
