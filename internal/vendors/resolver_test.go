package vendors

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercadolocal/mercadito-backend/internal/shops"
	"github.com/mercadolocal/mercadito-backend/pkg/config"
	"github.com/mercadolocal/mercadito-backend/pkg/db/models"
	"github.com/mercadolocal/mercadito-backend/pkg/enums"
	pkgerrors "github.com/mercadolocal/mercadito-backend/pkg/errors"
	"github.com/mercadolocal/mercadito-backend/pkg/pagination"
)

type stubUserStore struct {
	users        map[uuid.UUID]*models.User
	promoted     []uuid.UUID
	updateErr    error
	findOverride func(ctx context.Context, id uuid.UUID) (*models.User, error)
}

func (s *stubUserStore) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if s.findOverride != nil {
		return s.findOverride(ctx, id)
	}
	if user, ok := s.users[id]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserStore) UpdateRole(ctx context.Context, id uuid.UUID, role enums.UserRole) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.promoted = append(s.promoted, id)
	if user, ok := s.users[id]; ok {
		user.Role = role
	}
	return nil
}

// stubShopStore simulates the slug unique index so the collision retry path
// can be exercised without a database.
type stubShopStore struct {
	byOwner    map[uuid.UUID]*models.Shop
	takenSlugs map[string]bool
	createErr  error
	creates    int
}

func newStubShopStore() *stubShopStore {
	return &stubShopStore{
		byOwner:    map[uuid.UUID]*models.Shop{},
		takenSlugs: map[string]bool{},
	}
}

func (s *stubShopStore) WithTx(tx *gorm.DB) shops.Repository { return s }

func (s *stubShopStore) Create(ctx context.Context, shop *models.Shop) error {
	s.creates++
	if s.createErr != nil {
		return s.createErr
	}
	if s.takenSlugs[shop.Slug] {
		return errors.New("UNIQUE constraint failed: shops.slug")
	}
	if _, ok := s.byOwner[shop.OwnerID]; ok {
		return errors.New("UNIQUE constraint failed: shops.owner_id")
	}
	if shop.ID == uuid.Nil {
		shop.ID = uuid.New()
	}
	s.takenSlugs[shop.Slug] = true
	s.byOwner[shop.OwnerID] = shop
	return nil
}

func (s *stubShopStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Shop, error) {
	for _, shop := range s.byOwner {
		if shop.ID == id {
			return shop, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubShopStore) FindShopByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Shop, error) {
	if shop, ok := s.byOwner[ownerID]; ok {
		return shop, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubShopStore) FindActiveBySlug(ctx context.Context, slug string) (*models.Shop, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubShopStore) Update(ctx context.Context, shop *models.Shop) error { return nil }

func (s *stubShopStore) ListActive(ctx context.Context, params pagination.Params) ([]models.Shop, string, error) {
	return nil, "", nil
}

func (s *stubShopStore) FindPoliciesByShop(ctx context.Context, shopID uuid.UUID) (*models.ShopPolicies, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubShopStore) SavePolicies(ctx context.Context, policies *models.ShopPolicies) error {
	return nil
}

func newTestResolver(t *testing.T, users *stubUserStore, shopStore *stubShopStore) Resolver {
	t.Helper()
	r, err := NewResolver(users, shopStore, config.ShopConfig{SlugMaxAttempts: 5})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	return r
}

func buyer(name string) *models.User {
	return &models.User{ID: uuid.New(), Email: name + "@test.mx", DisplayName: name, Role: enums.UserRoleBuyer}
}

func TestResolveRequiresIdentity(t *testing.T) {
	r := newTestResolver(t, &stubUserStore{users: map[uuid.UUID]*models.User{}}, newStubShopStore())

	_, err := r.Resolve(context.Background(), uuid.Nil)
	if !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}

	_, err = r.ResolveForWrite(context.Background(), uuid.Nil)
	if !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized on write, got %v", err)
	}
}

func TestResolveNeverPromotesOnRead(t *testing.T) {
	user := buyer("Rosa Martinez")
	users := &stubUserStore{users: map[uuid.UUID]*models.User{user.ID: user}}
	store := newStubShopStore()
	r := newTestResolver(t, users, store)

	vctx, err := r.Resolve(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if vctx.User.Role != enums.UserRoleBuyer {
		t.Fatalf("read resolve changed role to %s", vctx.User.Role)
	}
	if len(users.promoted) != 0 {
		t.Fatal("read resolve must not promote")
	}
	if vctx.Shop != nil {
		t.Fatal("read resolve must not provision a shop")
	}
	if store.creates != 0 {
		t.Fatal("read resolve created a shop")
	}
}

func TestResolveForWritePromotesAndProvisions(t *testing.T) {
	user := buyer("Rosa Martinez")
	users := &stubUserStore{users: map[uuid.UUID]*models.User{user.ID: user}}
	store := newStubShopStore()
	r := newTestResolver(t, users, store)

	vctx, err := r.ResolveForWrite(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("resolve for write: %v", err)
	}
	if vctx.User.Role != enums.UserRoleVendor {
		t.Fatalf("expected vendor role, got %s", vctx.User.Role)
	}
	if vctx.Shop == nil {
		t.Fatal("expected provisioned shop")
	}
	if vctx.Shop.Slug != "rosa-martinez" {
		t.Fatalf("expected slug from display name, got %q", vctx.Shop.Slug)
	}
	if vctx.Shop.Status != enums.ShopStatusDraft || vctx.Shop.IsActive {
		t.Fatalf("new shop must be a draft, got %s", vctx.Shop.Status)
	}

	// Second write resolve reuses the same shop, no re-promotion.
	again, err := r.ResolveForWrite(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if again.Shop.ID != vctx.Shop.ID {
		t.Fatal("expected the existing shop")
	}
	if len(users.promoted) != 1 {
		t.Fatalf("expected one promotion, got %d", len(users.promoted))
	}
}

func TestEnsureShopDisambiguatesSlugCollisions(t *testing.T) {
	first := buyer("Maria Lopez")
	second := buyer("Maria Lopez")
	users := &stubUserStore{users: map[uuid.UUID]*models.User{
		first.ID:  first,
		second.ID: second,
	}}
	store := newStubShopStore()
	r := newTestResolver(t, users, store)

	ctxA, err := r.ResolveForWrite(context.Background(), first.ID)
	if err != nil {
		t.Fatalf("first vendor: %v", err)
	}
	ctxB, err := r.ResolveForWrite(context.Background(), second.ID)
	if err != nil {
		t.Fatalf("second vendor: %v", err)
	}

	if ctxA.Shop.Slug != "maria-lopez" {
		t.Fatalf("first slug: %q", ctxA.Shop.Slug)
	}
	if ctxB.Shop.Slug != "maria-lopez-2" {
		t.Fatalf("second slug: %q", ctxB.Shop.Slug)
	}
}

func TestEnsureShopExhaustsRetryBudget(t *testing.T) {
	users := &stubUserStore{users: map[uuid.UUID]*models.User{}}
	store := newStubShopStore()

	// Occupy the whole suffix budget for the name.
	for _, taken := range []string{"juan", "juan-2", "juan-3"} {
		store.takenSlugs[taken] = true
	}

	user := buyer("Juan")
	users.users[user.ID] = user
	r, err := NewResolver(users, store, config.ShopConfig{SlugMaxAttempts: 3})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	_, err = r.ResolveForWrite(context.Background(), user.ID)
	if !pkgerrors.IsCode(err, pkgerrors.CodeProvisioning) {
		t.Fatalf("expected provisioning error, got %v", err)
	}
	if store.creates != 3 {
		t.Fatalf("expected 3 attempts, got %d", store.creates)
	}
}

func TestEnsureShopFallsBackToDefaultSlug(t *testing.T) {
	user := buyer("!!!")
	users := &stubUserStore{users: map[uuid.UUID]*models.User{user.ID: user}}
	store := newStubShopStore()
	r := newTestResolver(t, users, store)

	vctx, err := r.ResolveForWrite(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if vctx.Shop.Slug != "tienda" {
		t.Fatalf("expected fallback slug, got %q", vctx.Shop.Slug)
	}
}
