// Command seed fills the listings collection with demo data.
package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/urbanestate/listing-service/internal/adapter/auth"
	mongoRepo "github.com/urbanestate/listing-service/internal/adapter/repository/mongodb"
	"github.com/urbanestate/listing-service/internal/config"
	"github.com/urbanestate/listing-service/internal/platform/logger"
	"github.com/urbanestate/listing-service/internal/seed"
)

func main() {
	count := flag.Int("count", 50, "Number of listings to create")
	owners := flag.String("owners", "", "Comma separated owner user ids (default: three demo users)")
	maxAge := flag.Duration("max-age", 60*24*time.Hour, "Oldest creation date to generate")
	seedValue := flag.Int64("seed", 0, "Random seed for reproducible data (0 uses the clock)")
	printTokens := flag.Bool("tokens", true, "Print a one-day token for every owner")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		fmt.Printf("INFO: .env file not found or error loading: %v. Relying on OS environment variables.\n", err)
	}

	appLogger := logger.New(logger.ConfigFromEnv())
	defer func() { _ = appLogger.Sync() }()

	cfg, err := config.LoadConfig(appLogger)
	if err != nil {
		appLogger.Fatal("Failed to load configuration", zap.Error(err))
	}
	if cfg.StorageDriver != config.StorageDriverMongo {
		appLogger.Fatal("Seeding requires the mongo storage driver", zap.String("storage_driver", cfg.StorageDriver))
	}

	client, err := mongoRepo.NewMongoDBConnection(cfg.MongoURI, cfg.MongoConnectTimeout)
	if err != nil {
		appLogger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	repo := mongoRepo.NewListingRepository(client.Database(cfg.MongoDatabase), appLogger)

	opts := seed.Options{Count: *count, MaxAge: *maxAge, Seed: *seedValue}
	for _, o := range strings.Split(*owners, ",") {
		if o = strings.TrimSpace(o); o != "" {
			opts.Owners = append(opts.Owners, o)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	n, err := seed.Run(ctx, repo, opts, appLogger)
	if err != nil {
		appLogger.Fatal("Seeding failed", zap.Int("inserted", n), zap.Error(err))
	}

	if *printTokens {
		issuer := auth.NewJWTAuthenticator(cfg.JWTSecret, appLogger)
		if len(opts.Owners) == 0 {
			opts.Owners = seed.DefaultOwners
		}
		for _, owner := range opts.Owners {
			token, err := issuer.Issue(owner, 24*time.Hour)
			if err != nil {
				appLogger.Error("Failed to issue token", zap.String("owner", owner), zap.Error(err))
				continue
			}
			fmt.Printf("%s\t%s\n", owner, token)
		}
	}
}
