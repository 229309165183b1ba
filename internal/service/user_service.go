package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/maninjwa/stock-count-backend/internal/apierror"
	"github.com/maninjwa/stock-count-backend/internal/dto"
	"github.com/maninjwa/stock-count-backend/internal/model"
	"github.com/maninjwa/stock-count-backend/internal/policy"
	"github.com/maninjwa/stock-count-backend/internal/repository"
)

type UserService interface {
	Create(ctx context.Context, actor policy.Actor, req dto.CreateUserRequest) (*model.User, error)
	Get(ctx context.Context, actor policy.Actor, id uuid.UUID) (*model.User, error)
	List(ctx context.Context, actor policy.Actor) ([]model.User, error)
	Update(ctx context.Context, actor policy.Actor, id uuid.UUID, req dto.UpdateUserRequest) (*model.User, error)
	Delete(ctx context.Context, actor policy.Actor, id uuid.UUID) error
}

type userService struct{ Deps }

func NewUserService(deps Deps) UserService {
	return &userService{Deps: deps}
}

func (s *userService) Create(ctx context.Context, actor policy.Actor, req dto.CreateUserRequest) (*model.User, error) {
	if err := s.Policy.Authorize(actor, policy.User, policy.Create, uuid.Nil); err != nil {
		return nil, err
	}
	if err := dto.Validate(req); err != nil {
		return nil, err
	}
	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		ID:           uuid.New(),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Name:         req.Name,
		Role:         model.Role(req.Role),
		Admin:        req.Admin,
		PasswordHash: hash,
	}
	if err := s.Store.Users().Create(ctx, user); err != nil {
		return nil, storeErr(err, "user", user.Email)
	}
	log.Info().Str("user_id", user.ID.String()).Str("role", string(user.Role)).Msg("user created")
	return user, nil
}

func (s *userService) Get(ctx context.Context, actor policy.Actor, id uuid.UUID) (*model.User, error) {
	user, err := s.Store.Users().FindByID(ctx, id)
	if err := s.authorizeRead(actor, policy.User, "user", id, id, err); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *userService) List(ctx context.Context, actor policy.Actor) ([]model.User, error) {
	scope, err := s.Policy.ListScope(actor, policy.User)
	if err != nil {
		return nil, err
	}
	users, err := s.Store.Users().List(ctx)
	if err != nil {
		return nil, err
	}
	return visible(scope, users, func(u model.User) uuid.UUID { return u.ID }), nil
}

// Update applies the present fields. Email, role and admin flag are privileged: the
// owner rule alone only covers name and password.
func (s *userService) Update(ctx context.Context, actor policy.Actor, id uuid.UUID, req dto.UpdateUserRequest) (*model.User, error) {
	user, err := s.Store.Users().FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "user", id)
	}
	if err := s.Policy.Authorize(actor, policy.User, policy.Update, user.ID); err != nil {
		return nil, err
	}
	if err := dto.Validate(req); err != nil {
		return nil, err
	}

	privileged := (req.Email != nil && !strings.EqualFold(*req.Email, user.Email)) ||
		(req.Role != nil && model.Role(*req.Role) != user.Role) ||
		(req.Admin != nil && *req.Admin != user.Admin)
	if privileged && !s.Policy.GroupAllows(actor, policy.User, policy.Update) {
		return nil, apierror.PermissionDenied("changing email, role or admin requires the %s group", policy.GroupAdmin)
	}

	if req.Email != nil {
		user.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Role != nil {
		user.Role = model.Role(*req.Role)
	}
	if req.Admin != nil {
		user.Admin = *req.Admin
	}
	if req.Password != nil {
		hash, err := HashPassword(*req.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}
	if err := s.Store.Users().Update(ctx, user); err != nil {
		return nil, storeErr(err, "user", id)
	}
	return user, nil
}

func (s *userService) Delete(ctx context.Context, actor policy.Actor, id uuid.UUID) error {
	if err := s.Policy.Authorize(actor, policy.User, policy.Delete, uuid.Nil); err != nil {
		return err
	}
	return s.Store.WithTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Users().FindByID(ctx, id); err != nil {
			return storeErr(err, "user", id)
		}
		asgs, err := tx.Assignments().ListByUser(ctx, id)
		if err != nil {
			return err
		}
		if len(asgs) > 0 {
			return apierror.Conflict("user %s still has %d assignments", id, len(asgs))
		}
		return storeErr(tx.Users().Delete(ctx, id), "user", id)
	})
}

// SeedUser creates the user described by req, or resets the name, role, admin flag
// and password of the user that already has its email. It runs without an actor and
// is meant for provisioning. created reports whether a new record was inserted.
func SeedUser(ctx context.Context, store repository.Store, req dto.CreateUserRequest) (user *model.User, created bool, err error) {
	if err := dto.Validate(req); err != nil {
		return nil, false, err
	}
	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, false, err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	err = store.WithTx(ctx, func(tx repository.Store) error {
		existing, err := tx.Users().FindByEmail(ctx, email)
		switch {
		case err == nil:
			existing.Name = req.Name
			existing.Role = model.Role(req.Role)
			existing.Admin = req.Admin
			existing.PasswordHash = hash
			user = existing
			return tx.Users().Update(ctx, existing)
		case errors.Is(err, repository.ErrNotFound):
			user = &model.User{
				ID:           uuid.New(),
				Email:        email,
				Name:         req.Name,
				Role:         model.Role(req.Role),
				Admin:        req.Admin,
				PasswordHash: hash,
			}
			created = true
			return tx.Users().Create(ctx, user)
		default:
			return err
		}
	})
	if err != nil {
		return nil, false, storeErr(err, "user", email)
	}
	return user, created, nil
}
