package db

import (
	"context"
	"errors"

	"github.com/geocoder89/userhub/internal/config"
	"github.com/geocoder89/userhub/internal/domain/user"
)

type userCreator interface {
	Create(ctx context.Context, req user.CreateUserRequest) (user.User, error)
}

// EnsureAdminUser creates the bootstrap admin account through the regular
// write pipeline. It is a no-op when no admin credentials are configured or
// the email is already registered.
func EnsureAdminUser(ctx context.Context, users userCreator, cfg config.Config) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	req := user.CreateUserRequest{
		FirstName: cfg.AdminFirstName,
		LastName:  cfg.AdminLastName,
		Email:     cfg.AdminEmail,
		Password:  cfg.AdminPassword,
		Role:      string(user.RoleAdmin),
	}
	req.Normalize()

	_, err := users.Create(ctx, req)

	if errors.Is(err, user.ErrDuplicateEmail) || errors.Is(err, user.ErrDuplicateValue) {
		return nil
	}

	return err
}
