package services

import (
	"context"

	"tg-bridge/runtime"
)

type IRegistrationService interface {
	Begin(ctx context.Context, phone string) (string, error)
	Confirm(ctx context.Context, phone, code, password string) (string, error)
}

// RegistrationService is the thin service facade over the registration
// coordinator, keeping the HTTP layer unaware of runtime types.
type RegistrationService struct {
	coordinator *runtime.Coordinator
}

func NewRegistrationService(coordinator *runtime.Coordinator) IRegistrationService {
	return &RegistrationService{coordinator: coordinator}
}

func (s *RegistrationService) Begin(ctx context.Context, phone string) (string, error) {
	return s.coordinator.Begin(ctx, phone)
}

func (s *RegistrationService) Confirm(ctx context.Context, phone, code, password string) (string, error) {
	return s.coordinator.Confirm(ctx, phone, code, password)
}
