package service

import (
	"context"
	"fmt"

	"farmland-checkout/internal/dto"
	"farmland-checkout/internal/model"
	"farmland-checkout/internal/repository"
)

type UserService interface {
	Profile(ctx context.Context, caller dto.Identity) (*dto.ProfileResponse, error)
}

type userServiceImpl struct {
	userRepo repository.UserRepository
}

func NewUserService(
	userRepo repository.UserRepository,
) UserService {
	return &userServiceImpl{
		userRepo: userRepo,
	}
}

// Profile returns the caller's profile, creating a zero-point account on first sight.
func (s *userServiceImpl) Profile(ctx context.Context, caller dto.Identity) (*dto.ProfileResponse, error) {
	err := s.userRepo.EnsureExists(ctx, &model.User{ID: caller.UserID, Name: caller.Name, Email: caller.Email})
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}

	user, err := s.userRepo.FindByID(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	return &dto.ProfileResponse{
		ID:     user.ID,
		Name:   user.Name,
		Email:  user.Email,
		Phone:  user.Phone,
		Points: user.Points,
	}, nil
}
