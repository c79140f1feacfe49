package vendors

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercadolocal/mercadito-backend/internal/shops"
	"github.com/mercadolocal/mercadito-backend/pkg/config"
	"github.com/mercadolocal/mercadito-backend/pkg/db"
	"github.com/mercadolocal/mercadito-backend/pkg/db/models"
	"github.com/mercadolocal/mercadito-backend/pkg/enums"
	pkgerrors "github.com/mercadolocal/mercadito-backend/pkg/errors"
	"github.com/mercadolocal/mercadito-backend/pkg/slug"
)

type userStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role enums.UserRole) error
}

// Context is the resolved actor plus their shop for one vendor request.
type Context struct {
	User *models.User
	Shop *models.Shop
}

// Resolver answers "who is this vendor and what is their shop" for every
// vendor-facing operation, provisioning the shop on first use.
type Resolver interface {
	// Resolve loads the actor and their shop without side effects. Shop is
	// nil when none exists yet.
	Resolve(ctx context.Context, userID uuid.UUID) (*Context, error)
	// ResolveForWrite additionally promotes a buyer to vendor and
	// provisions a draft shop when missing.
	ResolveForWrite(ctx context.Context, userID uuid.UUID) (*Context, error)
}

type resolver struct {
	users userStore
	shops shops.Repository
	cfg   config.ShopConfig
}

// NewResolver builds the vendor context resolver.
func NewResolver(users userStore, shopsRepo shops.Repository, cfg config.ShopConfig) (Resolver, error) {
	if users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if shopsRepo == nil {
		return nil, fmt.Errorf("shops repository required")
	}
	if cfg.SlugMaxAttempts < 1 {
		cfg.SlugMaxAttempts = 1
	}
	return &resolver{users: users, shops: shopsRepo, cfg: cfg}, nil
}

func (r *resolver) Resolve(ctx context.Context, userID uuid.UUID) (*Context, error) {
	user, err := r.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	shop, err := r.shops.FindShopByOwner(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &Context{User: user}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shop")
	}
	return &Context{User: user, Shop: shop}, nil
}

func (r *resolver) ResolveForWrite(ctx context.Context, userID uuid.UUID) (*Context, error) {
	user, err := r.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Buyers become vendors on their first vendor write, never on reads.
	if user.Role == enums.UserRoleBuyer {
		if err := r.users.UpdateRole(ctx, user.ID, enums.UserRoleVendor); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "promote role")
		}
		user.Role = enums.UserRoleVendor
	}

	shop, err := r.ensureShop(ctx, user)
	if err != nil {
		return nil, err
	}
	return &Context{User: user, Shop: shop}, nil
}

func (r *resolver) loadUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	user, err := r.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "unknown user")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user, nil
}

// ensureShop returns the vendor's shop, inserting a draft one on first use.
// Slug collisions are retried with a numeric suffix up to the configured
// attempt budget; a concurrent insert by the same owner wins the race and is
// returned as-is.
func (r *resolver) ensureShop(ctx context.Context, user *models.User) (*models.Shop, error) {
	existing, err := r.shops.FindShopByOwner(ctx, user.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shop")
	}

	base := slug.Make(user.DisplayName)
	if base == "" {
		base = "tienda"
	}

	for attempt := 1; attempt <= r.cfg.SlugMaxAttempts; attempt++ {
		shop := &models.Shop{
			OwnerID:    user.ID,
			Slug:       slug.WithSuffix(base, attempt),
			VendorName: user.DisplayName,
		}
		shop.SetStatus(enums.ShopStatusDraft)

		createErr := r.shops.Create(ctx, shop)
		if createErr == nil {
			return shop, nil
		}
		if db.IsUniqueViolation(createErr, "") {
			// A concurrent insert by the same owner wins; anything else
			// is a slug collision worth another attempt.
			winner, findErr := r.shops.FindShopByOwner(ctx, user.ID)
			if findErr == nil {
				return winner, nil
			}
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "load shop after race")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, createErr, "create shop")
	}
	return nil, pkgerrors.New(pkgerrors.CodeProvisioning,
		fmt.Sprintf("could not allocate shop slug after %d attempts", r.cfg.SlugMaxAttempts))
}
