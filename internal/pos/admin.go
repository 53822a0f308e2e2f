package pos

import (
	"context"
	"time"

	"ichiboo/backend/internal/domain"
	"ichiboo/backend/internal/store"
)

func (s *Service) ListEmployees(ctx context.Context) ([]domain.Employee, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListEmployees(ctx)
}

func (s *Service) CreateEmployee(ctx context.Context, req domain.EmployeeCreateRequest) (*domain.Employee, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.repo.CreateEmployee(ctx, req.Name, req.PIN, req.Role)
}

func (s *Service) RemoveEmployee(ctx context.Context, id int) error {
	if err := s.requireAdmin(ctx); err != nil {
		return err
	}
	return s.repo.RemoveEmployee(ctx, id)
}

func (s *Service) ResetEmployeePIN(ctx context.Context, id int, pin string) error {
	if err := s.requireAdmin(ctx); err != nil {
		return err
	}
	return s.repo.ResetEmployeePIN(ctx, id, pin)
}

func (s *Service) GetConfig(ctx context.Context) (domain.Config, error) {
	return s.repo.GetConfig(ctx)
}

func (s *Service) UpdateConfig(ctx context.Context, cfg domain.Config) (domain.Config, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return domain.Config{}, err
	}
	if err := s.repo.UpdateConfig(ctx, cfg); err != nil {
		return domain.Config{}, err
	}
	return s.repo.GetConfig(ctx)
}

// expiringSoonDays is the window in which a raw material counts as
// expiring.
const expiringSoonDays = 3

func (s *Service) ListRawMaterials(ctx context.Context) ([]domain.RawMaterialView, error) {
	materials, err := s.repo.ListRawMaterials(ctx)
	if err != nil {
		return nil, err
	}

	today := dayOf(s.now())
	views := make([]domain.RawMaterialView, 0, len(materials))
	for _, m := range materials {
		views = append(views, domain.RawMaterialView{
			RawMaterialEntry: m,
			Status:           materialStatus(today, dayOf(m.Expiry)),
		})
	}
	return views, nil
}

func materialStatus(today time.Time, expiry time.Time) string {
	days := int(expiry.Sub(today).Hours() / 24)
	switch {
	case days < 0:
		return domain.MaterialExpired
	case days <= expiringSoonDays:
		return domain.MaterialExpiring
	default:
		return domain.MaterialFresh
	}
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func (s *Service) AddRawMaterial(ctx context.Context, req domain.RawMaterialCreateRequest) (*domain.RawMaterialView, error) {
	delivered, err := time.ParseInLocation("2006-01-02", req.Delivered, time.Local)
	if err != nil {
		return nil, store.ErrInvalidInput
	}
	expiry, err := time.ParseInLocation("2006-01-02", req.Expiry, time.Local)
	if err != nil {
		return nil, store.ErrInvalidInput
	}
	if expiry.Before(delivered) {
		return nil, store.ErrInvalidInput
	}

	created, err := s.repo.AddRawMaterial(ctx, domain.RawMaterialEntry{
		Name:      req.Name,
		Delivered: delivered,
		Expiry:    expiry,
		Qty:       req.Qty,
	})
	if err != nil {
		return nil, err
	}
	return &domain.RawMaterialView{
		RawMaterialEntry: *created,
		Status:           materialStatus(dayOf(s.now()), dayOf(created.Expiry)),
	}, nil
}

func (s *Service) RemoveRawMaterial(ctx context.Context, id string) error {
	return s.repo.RemoveRawMaterial(ctx, id)
}
