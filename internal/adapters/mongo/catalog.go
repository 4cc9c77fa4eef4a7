package mongo

import (
	"context"
	"time"

	"github.com/campusmkt/campus-commerce-engine/internal/domain"
	"github.com/campusmkt/campus-commerce-engine/internal/observability"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// CatalogRepository holds the seller-editable listings. Bookings and
// carts never read prices from here after a claim is taken; they price
// from snapshots captured at that moment.
type CatalogRepository struct {
	services *mongo.Collection
	products *mongo.Collection
	logger   observability.Logger
}

func NewCatalogRepository(db *mongo.Database, logger observability.Logger) *CatalogRepository {
	return &CatalogRepository{
		services: db.Collection("services"),
		products: db.Collection("products"),
		logger:   logger,
	}
}

type ServiceDoc struct {
	ID             uuid.UUID `bson:"_id"`
	BusinessID     uuid.UUID `bson:"business_id"`
	Name           string    `bson:"name"`
	Description    string    `bson:"description"`
	Price          float64   `bson:"price"`
	DurationSec    int64     `bson:"duration_sec"`
	DepositKind    string    `bson:"deposit_kind"`
	DepositAmount  float64   `bson:"deposit_amount"`
	DepositPercent float64   `bson:"deposit_percent"`
	Cancellation   string    `bson:"cancellation_policy"`
	Active         bool      `bson:"active"`
	CreatedAt      time.Time `bson:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at"`
}

type ProductDoc struct {
	ID        uuid.UUID    `bson:"_id"`
	SellerID  uuid.UUID    `bson:"seller_id"`
	Name      string       `bson:"name"`
	BasePrice float64      `bson:"base_price"`
	SKU       string       `bson:"sku"`
	Quantity  int          `bson:"quantity"`
	Active    bool         `bson:"active"`
	Variants  []VariantDoc `bson:"variants"`
	CreatedAt time.Time    `bson:"created_at"`
	UpdatedAt time.Time    `bson:"updated_at"`
}

// VariantDoc.Quantity is the seller-declared stock baseline. The
// inventory ledger is seeded from it and owns the count afterwards.
type VariantDoc struct {
	ID         uuid.UUID         `bson:"variant_id"`
	Name       string            `bson:"name"`
	SKU        string            `bson:"sku"`
	Price      float64           `bson:"price"`
	Quantity   int               `bson:"quantity"`
	Attributes map[string]string `bson:"attributes"`
}

func (c *CatalogRepository) GetService(ctx context.Context, id uuid.UUID) (*domain.Service, error) {
	var doc ServiceDoc
	err := c.services.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		c.logger.WithError(err).Error("get service")
		return nil, err
	}
	svc := doc.toDomain()
	return &svc, nil
}

func (c *CatalogRepository) CreateService(ctx context.Context, doc ServiceDoc) error {
	doc.CreatedAt = time.Now()
	doc.UpdatedAt = time.Now()
	_, err := c.services.InsertOne(ctx, doc)
	if err != nil {
		c.logger.WithError(err).Error("create service")
	}
	return err
}

func (c *CatalogRepository) SetServiceActive(ctx context.Context, id uuid.UUID, active bool) error {
	_, err := c.services.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"active": active, "updated_at": time.Now()}},
	)
	if err != nil {
		c.logger.WithError(err).Error("set service active")
	}
	return err
}

func (c *CatalogRepository) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	var doc ProductDoc
	err := c.products.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		c.logger.WithError(err).Error("get product")
		return nil, err
	}
	p := doc.toDomain()
	return &p, nil
}

func (c *CatalogRepository) CreateProduct(ctx context.Context, doc ProductDoc) error {
	doc.CreatedAt = time.Now()
	doc.UpdatedAt = time.Now()
	_, err := c.products.InsertOne(ctx, doc)
	if err != nil {
		c.logger.WithError(err).Error("create product")
	}
	return err
}

// ListActiveProducts feeds the inventory ledger its baselines at
// startup and serves seller storefront reads.
func (c *CatalogRepository) ListActiveProducts(ctx context.Context) ([]ProductDoc, error) {
	cur, err := c.products.Find(ctx, bson.M{"active": true})
	if err != nil {
		c.logger.WithError(err).Error("list products")
		return nil, err
	}
	defer cur.Close(ctx)

	var out []ProductDoc
	for cur.Next(ctx) {
		var doc ProductDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, cur.Err()
}

func (d ServiceDoc) toDomain() domain.Service {
	return domain.Service{
		ID:         d.ID,
		BusinessID: d.BusinessID,
		Name:       d.Name,
		Price:      d.Price,
		Duration:   time.Duration(d.DurationSec) * time.Second,
		Deposit: domain.DepositPolicy{
			Kind:    domain.DepositKind(d.DepositKind),
			Amount:  d.DepositAmount,
			Percent: d.DepositPercent,
		},
		CancellationPolicy: d.Cancellation,
		Active:             d.Active,
	}
}

func (d ProductDoc) toDomain() domain.Product {
	p := domain.Product{
		ID:        d.ID,
		SellerID:  d.SellerID,
		Name:      d.Name,
		BasePrice: d.BasePrice,
		SKU:       d.SKU,
	}
	for _, v := range d.Variants {
		p.Variants = append(p.Variants, domain.ProductVariant{
			ID:         v.ID,
			Name:       v.Name,
			Price:      v.Price,
			SKU:        v.SKU,
			Attributes: v.Attributes,
		})
	}
	return p
}
