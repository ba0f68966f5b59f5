// Command seed-db provisions a demo tenant: menu, tables, coupons, a loyalty
// program, and a staff API key.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tably/order-engine/internal/domain/auth"
	"github.com/tably/order-engine/internal/repository"
)

type menuJSON struct {
	Products []struct {
		Name  string          `json:"name"`
		Price decimal.Decimal `json:"price"`
	} `json:"products"`
	Addons []struct {
		Name  string          `json:"name"`
		Price decimal.Decimal `json:"price"`
	} `json:"addons"`
	Tables []struct {
		Label string `json:"label"`
		Seats int    `json:"seats"`
	} `json:"tables"`
	Coupons []struct {
		Code          string           `json:"code"`
		DiscountType  string           `json:"discount_type"`
		Value         decimal.Decimal  `json:"value"`
		UsageLimit    *int             `json:"usage_limit,omitempty"`
		MinOrderValue *decimal.Decimal `json:"min_order_value,omitempty"`
		MaxDiscount   *decimal.Decimal `json:"max_discount,omitempty"`
	} `json:"coupons"`
}

func main() {
	var (
		databaseURL  string
		menuFile     string
		tenantSlug   string
		tenantName   string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&menuFile, "menu-file", "db/seed/menu.json", "path to menu JSON file")
	flag.StringVar(&tenantSlug, "tenant-slug", "demo", "slug for the seeded tenant")
	flag.StringVar(&tenantName, "tenant-name", "Demo Trattoria", "display name for the seeded tenant")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or TABLY_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or TABLY_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("TABLY_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or TABLY_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("TABLY_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, menuFile, tenantSlug, tenantName, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, menuFile, slug, name, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	data, err := os.ReadFile(menuFile)
	if err != nil {
		return errors.Wrap(err, "read menu file")
	}
	var menu menuJSON
	if err := json.Unmarshal(data, &menu); err != nil {
		return errors.Wrap(err, "parse menu JSON")
	}

	tenantID, err := seedTenant(ctx, pool, slug, name)
	if err != nil {
		return errors.Wrap(err, "seed tenant")
	}

	if err := seedMenu(ctx, pool, tenantID, menu); err != nil {
		return errors.Wrap(err, "seed menu")
	}
	if err := seedLoyaltyProgram(ctx, pool, tenantID); err != nil {
		return errors.Wrap(err, "seed loyalty program")
	}
	if err := seedAPIKey(ctx, pool, tenantID, apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

func seedTenant(ctx context.Context, pool *pgxpool.Pool, slug, name string) (string, error) {
	slog.Info("seeding tenant", slog.String("slug", slug))

	var id string
	err := pool.QueryRow(ctx, `INSERT INTO tenants (id, slug, name, delivery_fee, delivery_buffer_minutes)
		VALUES ($1, $2, $3, 5.00, 20)
		ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`,
		uuid.New().String(), slug, name,
	).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func seedMenu(ctx context.Context, pool *pgxpool.Pool, tenantID string, menu menuJSON) error {
	slog.Info("seeding menu",
		slog.Int("products", len(menu.Products)),
		slog.Int("addons", len(menu.Addons)),
		slog.Int("tables", len(menu.Tables)),
		slog.Int("coupons", len(menu.Coupons)),
	)

	for _, p := range menu.Products {
		_, err := pool.Exec(ctx, `INSERT INTO products (id, tenant_id, name, price)
			VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`,
			uuid.New().String(), tenantID, p.Name, p.Price,
		)
		if err != nil {
			return errors.Wrapf(err, "insert product %q", p.Name)
		}
	}

	for _, a := range menu.Addons {
		_, err := pool.Exec(ctx, `INSERT INTO addons (id, tenant_id, name, price)
			VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`,
			uuid.New().String(), tenantID, a.Name, a.Price,
		)
		if err != nil {
			return errors.Wrapf(err, "insert addon %q", a.Name)
		}
	}

	for _, t := range menu.Tables {
		_, err := pool.Exec(ctx, `INSERT INTO restaurant_tables (id, tenant_id, label, seats)
			VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`,
			uuid.New().String(), tenantID, t.Label, t.Seats,
		)
		if err != nil {
			return errors.Wrapf(err, "insert table %q", t.Label)
		}
	}

	for _, c := range menu.Coupons {
		_, err := pool.Exec(ctx, `INSERT INTO coupons
			(id, tenant_id, code, discount_type, value, usage_limit, min_order_value, max_discount)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (tenant_id, code) DO NOTHING`,
			uuid.New().String(), tenantID, c.Code, c.DiscountType, c.Value,
			c.UsageLimit, c.MinOrderValue, c.MaxDiscount,
		)
		if err != nil {
			return errors.Wrapf(err, "insert coupon %q", c.Code)
		}
	}

	return nil
}

func seedLoyaltyProgram(ctx context.Context, pool *pgxpool.Pool, tenantID string) error {
	slog.Info("seeding loyalty program")

	_, err := pool.Exec(ctx, `INSERT INTO loyalty_programs
		(tenant_id, points_per_currency, min_order_value, validity_days)
		VALUES ($1, 1, 0, 365)
		ON CONFLICT (tenant_id) DO NOTHING`,
		tenantID,
	)
	return err
}

func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, tenantID, apiKey, pepper string) error {
	slog.Info("seeding api key")

	_, err := pool.Exec(ctx, `INSERT INTO api_keys (id, tenant_id, key_hash, name, scopes)
		VALUES ($1, $2, $3, 'seed', '{orders:write}')
		ON CONFLICT (key_hash) DO NOTHING`,
		uuid.New().String(), tenantID, auth.HashKey([]byte(pepper), apiKey),
	)
	return err
}
