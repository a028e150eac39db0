package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderstock-backend/internal/repo"
	"github.com/angelmondragon/orderstock-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderstock-backend/pkg/errors"
)

// Repository resolves the products, customers, and categories that orders
// and stock corrections reference.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	GetCategoryProducts(ctx context.Context, categoryID uuid.UUID) ([]models.Product, error)
	FindCategory(ctx context.Context, id uuid.UUID) (*models.Category, error)
}

type repository struct {
	repo.Base
}

// NewRepository builds a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: r.Rebind(tx)}
}

func (r *repository) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	found, err := r.First(ctx, &product, "id = ?", id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
			WithDetails(map[string]any{"product_id": id.String()})
	}
	return &product, nil
}

func (r *repository) GetCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	found, err := r.First(ctx, &customer, "id = ?", id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeCustomerNotFound, "customer not found").
			WithDetails(map[string]any{"customer_id": id.String()})
	}
	return &customer, nil
}

// GetCategoryProducts lists the category's products ordered by id. An empty
// slice means the category has nothing to adjust.
func (r *repository) GetCategoryProducts(ctx context.Context, categoryID uuid.UUID) ([]models.Product, error) {
	var products []models.Product
	err := r.DB(ctx).
		Where("category_id = ?", categoryID).
		Order("id ASC").
		Find(&products).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list category products")
	}
	return products, nil
}

func (r *repository) FindCategory(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var category models.Category
	found, err := r.First(ctx, &category, "id = ?", id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
	}
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeCategoryNotFound, "category not found").
			WithDetails(map[string]any{"category_id": id.String()})
	}
	return &category, nil
}
