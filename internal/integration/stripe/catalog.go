package stripe

import (
	"context"

	"github.com/stripe/stripe-go/v82"
	"github.com/vexa-ai/billing/internal/config"
	ierr "github.com/vexa-ai/billing/internal/errors"
	"github.com/vexa-ai/billing/internal/logger"
	"github.com/vexa-ai/billing/internal/pricing"
)

// CatalogService resolves and maintains the product and price the billing
// flows operate on. The static pricing configuration is the single source of
// truth; Sync pushes it to Stripe, the lookup helpers read it back.
type CatalogService struct {
	client *Client
	config *config.Configuration
	logger *logger.Logger
}

func NewCatalogService(client *Client, cfg *config.Configuration, logger *logger.Logger) *CatalogService {
	return &CatalogService{
		client: client,
		config: cfg,
		logger: logger,
	}
}

// FindProductAndPrice looks up the configured product by name and its price
// by nickname. Both must already exist; a missing catalog entry means Sync
// has not been run.
func (s *CatalogService) FindProductAndPrice(ctx context.Context) (*stripe.Product, *stripe.Price, error) {
	product, err := s.findProductByName(ctx, s.config.Billing.ProductName)
	if err != nil {
		return nil, nil, err
	}
	if product == nil {
		return nil, nil, ierr.NewError("billing product not found").
			WithHintf("Product %q does not exist in Stripe; run catalog sync", s.config.Billing.ProductName).
			Mark(ierr.ErrNotFound)
	}

	price, err := s.findPriceByNickname(ctx, product.ID, s.config.Billing.PriceNickname)
	if err != nil {
		return nil, nil, err
	}
	if price == nil {
		return nil, nil, ierr.NewError("billing price not found").
			WithHintf("Price %q does not exist in Stripe; run catalog sync", s.config.Billing.PriceNickname).
			Mark(ierr.ErrNotFound)
	}

	return product, price, nil
}

// Sync makes the Stripe catalog match the static pricing configuration.
// It is idempotent: matching entries are left alone, outdated ones are
// archived and recreated. Prices are immutable in Stripe so a tier change
// always means a new price object.
func (s *CatalogService) Sync(ctx context.Context) error {
	table, err := s.config.Pricing.TierTable()
	if err != nil {
		return err
	}

	product, err := s.ensureProduct(ctx)
	if err != nil {
		return err
	}

	if _, err := s.ensureTieredPrice(ctx, product.ID, table); err != nil {
		return err
	}

	s.logger.Infow("Stripe catalog is in sync",
		"product", s.config.Billing.ProductName,
		"price", s.config.Billing.PriceNickname)
	return nil
}

func (s *CatalogService) ensureProduct(ctx context.Context) (*stripe.Product, error) {
	existing, err := s.findProductByName(ctx, s.config.Billing.ProductName)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.logger.Infow("product already up to date", "product_id", existing.ID)
		return existing, nil
	}

	params := &stripe.ProductCreateParams{
		Name: stripe.String(s.config.Billing.ProductName),
		Type: stripe.String("service"),
	}
	product, err := s.client.API().V1Products.Create(ctx, params)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Could not create product in Stripe").
			Mark(ierr.ErrProvider)
	}
	s.logger.Infow("created product", "product_id", product.ID)
	return product, nil
}

func (s *CatalogService) ensureTieredPrice(ctx context.Context, productID string, table pricing.TierTable) (*stripe.Price, error) {
	existing, err := s.findPriceByNickname(ctx, productID, s.config.Billing.PriceNickname)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if s.priceMatchesConfig(existing) {
			s.logger.Infow("price already up to date", "price_id", existing.ID)
			return existing, nil
		}
		s.logger.Infow("archiving outdated price", "price_id", existing.ID)
		if _, err := s.client.API().V1Prices.Update(ctx, existing.ID, &stripe.PriceUpdateParams{
			Active: stripe.Bool(false),
		}); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Could not archive outdated price in Stripe").
				Mark(ierr.ErrProvider)
		}
	}

	tiers := make([]*stripe.PriceCreateTierParams, 0, len(table))
	for _, tier := range table {
		tierParams := &stripe.PriceCreateTierParams{
			UnitAmount: stripe.Int64(tier.UnitAmount),
		}
		if tier.UpTo != nil {
			tierParams.UpTo = stripe.Int64(*tier.UpTo)
		} else {
			tierParams.UpToInf = stripe.Bool(true)
		}
		tiers = append(tiers, tierParams)
	}

	params := &stripe.PriceCreateParams{
		Product:       stripe.String(productID),
		Nickname:      stripe.String(s.config.Billing.PriceNickname),
		Currency:      stripe.String(s.config.Pricing.Currency),
		BillingScheme: stripe.String("tiered"),
		TiersMode:     stripe.String("graduated"),
		Recurring: &stripe.PriceCreateRecurringParams{
			Interval: stripe.String(s.config.Pricing.Interval),
		},
		Tiers: tiers,
	}
	price, err := s.client.API().V1Prices.Create(ctx, params)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Could not create price in Stripe").
			Mark(ierr.ErrProvider)
	}
	s.logger.Infow("created price", "price_id", price.ID, "tiers", len(tiers))
	return price, nil
}

func (s *CatalogService) priceMatchesConfig(price *stripe.Price) bool {
	if string(price.Currency) != s.config.Pricing.Currency {
		return false
	}
	if price.Recurring == nil || string(price.Recurring.Interval) != s.config.Pricing.Interval {
		return false
	}
	if price.BillingScheme != stripe.PriceBillingSchemeTiered {
		return false
	}
	return price.TiersMode == stripe.PriceTiersModeGraduated
}

func (s *CatalogService) findProductByName(ctx context.Context, name string) (*stripe.Product, error) {
	params := &stripe.ProductListParams{Active: stripe.Bool(true)}
	params.Limit = stripe.Int64(100)

	for product, err := range s.client.API().V1Products.List(ctx, params) {
		if err != nil {
			return nil, ierr.WithError(err).
				WithHint("Could not list products in Stripe").
				Mark(ierr.ErrProvider)
		}
		if product.Name == name {
			return product, nil
		}
	}
	return nil, nil
}

func (s *CatalogService) findPriceByNickname(ctx context.Context, productID, nickname string) (*stripe.Price, error) {
	params := &stripe.PriceListParams{
		Product: stripe.String(productID),
		Active:  stripe.Bool(true),
	}
	params.Limit = stripe.Int64(100)

	for price, err := range s.client.API().V1Prices.List(ctx, params) {
		if err != nil {
			return nil, ierr.WithError(err).
				WithHint("Could not list prices in Stripe").
				Mark(ierr.ErrProvider)
		}
		if price.Nickname == nickname {
			return price, nil
		}
	}
	return nil, nil
}
