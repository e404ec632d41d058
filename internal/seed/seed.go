// Package seed generates demo listings for development environments.
package seed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"go.uber.org/zap"

	"github.com/urbanestate/listing-service/internal/listing/domain"
	"github.com/urbanestate/listing-service/internal/platform/logger"
)

var (
	cities        = []string{"Riyadh", "Jeddah", "Dammam", "Khobar", "Mecca", "Medina"}
	propertyTypes = []string{"apartment", "villa", "duplex", "studio", "townhouse", "land"}
	facilities    = []string{"parking", "pool", "gym", "elevator", "garden", "maid room", "security", "balcony", "central ac"}
	furnishings   = []string{"true", "false", "semi"}
)

// DefaultOwners are used when Options.Owners is empty.
var DefaultOwners = []string{"seed-user-1", "seed-user-2", "seed-user-3"}

// Options configures a seeding run.
type Options struct {
	Count int
	// Owners are the user ids listings are spread across.
	Owners []string
	// MaxAge bounds how far back creation dates go. Values past the expiry age
	// give the sweeper something to do.
	MaxAge time.Duration
	// Seed makes the output reproducible; zero uses the clock.
	Seed int64
	Now  time.Time
}

func (o *Options) defaults() {
	if o.Count <= 0 {
		o.Count = 50
	}
	if len(o.Owners) == 0 {
		o.Owners = DefaultOwners
	}
	if o.MaxAge <= 0 {
		o.MaxAge = 60 * 24 * time.Hour
	}
	if o.Seed == 0 {
		o.Seed = time.Now().UnixNano()
	}
	if o.Now.IsZero() {
		o.Now = time.Now().UTC()
	}
}

// Factory builds fake listings.
type Factory struct {
	faker *gofakeit.Faker
	opts  Options
}

func NewFactory(opts Options) *Factory {
	opts.defaults()
	return &Factory{faker: gofakeit.New(opts.Seed), opts: opts}
}

// Build returns one live listing with a creation date spread over MaxAge.
func (f *Factory) Build(owner string) *domain.Listing {
	fk := f.faker
	city := fk.RandomString(cities)
	propType := fk.RandomString(propertyTypes)
	bedrooms := fk.Number(0, 6)

	kind := domain.TransactionRent
	price := float64(fk.Number(12, 300)) * 1000
	if fk.Bool() {
		kind = domain.TransactionSale
		price *= 25
	}

	tags := make([]string, 0, 4)
	for i, n := 0, fk.Number(0, 4); i < n; i++ {
		tags = append(tags, fk.RandomString(facilities))
	}

	neighborhood := fk.Street()
	fields := domain.ListingFields{
		Price:           price,
		TransactionKind: kind,
		Furnished:       domain.ParseFurnished(fk.RandomString(furnishings)),
		Facilities:      domain.SplitTags(tags...),
		City:            city,
		Bedrooms:        bedrooms,
		Bathrooms:       fk.Number(1, bedrooms+1),
		Size:            float64(fk.Number(35, 900)),
		Age:             float64(fk.Number(0, 40)),
		Keywords:        strings.Join([]string{propType, strings.ToLower(city), fk.Word()}, " "),
		Description:     fk.Paragraph(1, 3, 8, " "),
		PropertyType:    propType,
		Title:           fmt.Sprintf("%d bedroom %s in %s", bedrooms, propType, neighborhood),
		Neighborhood:    neighborhood,
		OwnerLabel:      fk.Company(),
	}

	maxMinutes := int(f.opts.MaxAge / time.Minute)
	created := f.opts.Now.Add(-time.Duration(fk.Number(0, maxMinutes)) * time.Minute)
	return domain.NewListing(owner, fields, nil, created)
}

// Generate builds Count listings round-robin across Owners.
func (f *Factory) Generate() []*domain.Listing {
	out := make([]*domain.Listing, 0, f.opts.Count)
	for i := 0; i < f.opts.Count; i++ {
		out = append(out, f.Build(f.opts.Owners[i%len(f.opts.Owners)]))
	}
	return out
}

// Run inserts generated listings and returns how many were stored.
func Run(ctx context.Context, repo domain.ListingRepository, opts Options, log *logger.Logger) (int, error) {
	log = log.Named("Seeder")
	listings := NewFactory(opts).Generate()
	for i, l := range listings {
		if err := repo.Insert(ctx, l); err != nil {
			return i, fmt.Errorf("insert listing %d: %w", i, err)
		}
	}
	log.Info("seeded listings", zap.Int("count", len(listings)))
	return len(listings), nil
}
