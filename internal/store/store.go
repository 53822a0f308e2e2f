package store

import (
	"context"
	"errors"
	"time"

	"ichiboo/backend/internal/domain"
)

var (
	ErrProductNotFound     = errors.New("product not found")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrInvalidQuantity     = errors.New("invalid quantity")
	ErrInvalidPin          = errors.New("invalid pin")
	ErrDuplicatePin        = errors.New("duplicate pin")
	ErrEmptyCart           = errors.New("empty cart")
	ErrNoEmployeeSession   = errors.New("no employee session")
	ErrInsufficientPayment = errors.New("insufficient payment")
	ErrSaleNotFound        = errors.New("sale not found")
	ErrEmployeeNotFound    = errors.New("employee not found")
	ErrMaterialNotFound    = errors.New("raw material not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrPersistence         = errors.New("persistence failure")
)

type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error)
	UpsertProductByName(ctx context.Context, req domain.ProductUpsertRequest) (*domain.Product, error)
	AdjustStock(ctx context.Context, id string, delta int) (*domain.Product, error)
	RemoveProduct(ctx context.Context, id string) error

	ListSales(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	AppendSale(ctx context.Context, sale domain.Sale) error

	// VoidSale removes the sale and restores the quantities recorded in its
	// item snapshot in one atomic step. Snapshot items whose product no
	// longer exists are skipped.
	VoidSale(ctx context.Context, id string) (*domain.Sale, error)

	ListEmployees(ctx context.Context) ([]domain.Employee, error)
	GetEmployeeByPIN(ctx context.Context, pin string) (*domain.Employee, error)
	CreateEmployee(ctx context.Context, name string, pin string, role string) (*domain.Employee, error)
	RemoveEmployee(ctx context.Context, id int) error
	ResetEmployeePIN(ctx context.Context, id int, pin string) error

	ListRawMaterials(ctx context.Context) ([]domain.RawMaterialEntry, error)
	AddRawMaterial(ctx context.Context, entry domain.RawMaterialEntry) (*domain.RawMaterialEntry, error)
	RemoveRawMaterial(ctx context.Context, id string) error

	GetConfig(ctx context.Context) (domain.Config, error)
	UpdateConfig(ctx context.Context, cfg domain.Config) error

	// ResetData clears products, sales and raw materials while keeping
	// employees and config.
	ResetData(ctx context.Context) error
}
