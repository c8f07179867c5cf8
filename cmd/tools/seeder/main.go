// Seeder provisions a demo tenant with cartons, shipping zones,
// services, weight brackets and a filled rate grid so a fresh
// deployment can price quotes immediately.
package main

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gopkg.in/yaml.v3"
)

//go:embed fixtures.yaml
var defaultFixtures []byte

type fixtures struct {
	Tenant struct {
		Slug string `yaml:"slug"`
		Name string `yaml:"name"`
	} `yaml:"tenant"`
	Cartons []struct {
		Ref         string  `yaml:"ref"`
		Length      float64 `yaml:"length"`
		Width       float64 `yaml:"width"`
		Height      float64 `yaml:"height"`
		Price       float64 `yaml:"price"`
		MaxWeightKg float64 `yaml:"maxWeightKg"`
		Default     bool    `yaml:"default"`
	} `yaml:"cartons"`
	Zones []struct {
		Code      string   `yaml:"code"`
		Name      string   `yaml:"name"`
		Countries []string `yaml:"countries"`
		// Base price per service for the first bracket. A null base
		// marks every cell of that zone/service pair explicitly
		// unavailable.
		BaseStandard *float64 `yaml:"baseStandard"`
		BaseExpress  *float64 `yaml:"baseExpress"`
	} `yaml:"zones"`
	Services []string  `yaml:"services"`
	Brackets []float64 `yaml:"brackets"`
	Settings struct {
		Policy  string  `yaml:"policy"`
		FlatFee float64 `yaml:"flatFee"`
		Message string  `yaml:"message"`
	} `yaml:"settings"`
}

func main() {
	app := kingpin.New("seeder", "Seed a demo tenant with cartons, zones, services and shipping rates")
	fixturesPath := app.Flag("fixtures", "Path to a YAML fixtures file (defaults to the embedded set)").String()
	databaseURL := app.Flag("database-url", "Postgres connection string (defaults to DATABASE_URL)").String()
	kingpin.MustParse(app.Parse(os.Args[1:]))

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := *databaseURL
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	raw := defaultFixtures
	if *fixturesPath != "" {
		var err error
		raw, err = os.ReadFile(*fixturesPath)
		if err != nil {
			log.Fatalf("Failed to read fixtures: %v", err)
		}
	}
	var fx fixtures
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		log.Fatalf("Failed to parse fixtures: %v", err)
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	tenantID := seedTenant(db, fx)
	log.Printf("Using Tenant ID: %s", tenantID)

	seedCartons(db, tenantID, fx)
	zoneIDs := seedZones(db, tenantID, fx)
	serviceIDs := seedServices(db, tenantID, fx)
	bracketIDs := seedBrackets(db, tenantID, fx)
	seedRates(db, tenantID, fx, zoneIDs, serviceIDs, bracketIDs)
	seedSettings(db, tenantID, fx)

	log.Println("Seeding completed successfully!")
}

func seedTenant(db *sql.DB, fx fixtures) string {
	slug := fx.Tenant.Slug
	if slug == "" {
		slug = "demo"
	}
	name := fx.Tenant.Name
	if name == "" {
		name = "Demo Forwarder"
	}
	var id string
	err := db.QueryRow(`
		INSERT INTO tenants (slug, name) VALUES ($1, $2)
		ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`, slug, name).Scan(&id)
	if err != nil {
		log.Fatalf("Failed to create tenant: %v", err)
	}
	return id
}

func seedCartons(db *sql.DB, tenantID string, fx fixtures) {
	for _, c := range fx.Cartons {
		_, err := db.Exec(`
			INSERT INTO cartons (tenant_id, ref, inner_length, inner_width, inner_height, price, max_weight_kg, is_default, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)
			ON CONFLICT (tenant_id, ref) DO UPDATE SET
				inner_length = EXCLUDED.inner_length,
				inner_width = EXCLUDED.inner_width,
				inner_height = EXCLUDED.inner_height,
				price = EXCLUDED.price,
				max_weight_kg = EXCLUDED.max_weight_kg,
				is_default = EXCLUDED.is_default,
				is_active = TRUE`,
			tenantID, c.Ref, c.Length, c.Width, c.Height, c.Price, c.MaxWeightKg, c.Default)
		if err != nil {
			log.Fatalf("Failed to seed carton %s: %v", c.Ref, err)
		}
	}
	log.Printf("Seeded %d cartons", len(fx.Cartons))
}

func seedZones(db *sql.DB, tenantID string, fx fixtures) map[string]string {
	ids := make(map[string]string, len(fx.Zones))
	for _, z := range fx.Zones {
		var id string
		err := db.QueryRow(`
			INSERT INTO shipping_zones (tenant_id, code, name, countries)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (tenant_id, code) DO UPDATE SET
				name = EXCLUDED.name, countries = EXCLUDED.countries
			RETURNING id`,
			tenantID, z.Code, z.Name, toTextArray(z.Countries)).Scan(&id)
		if err != nil {
			log.Fatalf("Failed to seed zone %s: %v", z.Code, err)
		}
		ids[z.Code] = id
	}
	log.Printf("Seeded %d zones", len(fx.Zones))
	return ids
}

func seedServices(db *sql.DB, tenantID string, fx fixtures) map[string]string {
	ids := make(map[string]string, len(fx.Services))
	for i, name := range fx.Services {
		var id string
		err := db.QueryRow(`
			INSERT INTO shipping_services (tenant_id, name, sort_order)
			VALUES ($1, $2, $3)
			ON CONFLICT (tenant_id, name) DO UPDATE SET sort_order = EXCLUDED.sort_order
			RETURNING id`,
			tenantID, name, i).Scan(&id)
		if err != nil {
			log.Fatalf("Failed to seed service %s: %v", name, err)
		}
		ids[name] = id
	}
	log.Printf("Seeded %d services", len(fx.Services))
	return ids
}

func seedBrackets(db *sql.DB, tenantID string, fx fixtures) []string {
	ids := make([]string, 0, len(fx.Brackets))
	for i, min := range fx.Brackets {
		var id string
		err := db.QueryRow(`
			INSERT INTO weight_brackets (tenant_id, min_weight_kg, sort_order)
			VALUES ($1, $2, $3)
			ON CONFLICT (tenant_id, min_weight_kg) DO UPDATE SET sort_order = EXCLUDED.sort_order
			RETURNING id`,
			tenantID, min, i).Scan(&id)
		if err != nil {
			log.Fatalf("Failed to seed bracket %.1f: %v", min, err)
		}
		ids = append(ids, id)
	}
	log.Printf("Seeded %d weight brackets", len(fx.Brackets))
	return ids
}

// seedRates fills the matrix from the per-zone base prices. The price
// grows with the bracket position; a nil base writes explicit NULL cells
// so lookups report the lane as unavailable rather than unconfigured.
func seedRates(db *sql.DB, tenantID string, fx fixtures, zones, services map[string]string, brackets []string) {
	count := 0
	for _, z := range fx.Zones {
		bases := map[string]*float64{"STANDARD": z.BaseStandard, "EXPRESS": z.BaseExpress}
		for _, svc := range fx.Services {
			base, known := bases[svc]
			if !known {
				continue
			}
			for i, bracketID := range brackets {
				var price sql.NullFloat64
				if base != nil {
					price = sql.NullFloat64{Float64: *base + float64(i)**base*0.8, Valid: true}
				}
				_, err := db.Exec(`
					INSERT INTO shipping_rates (tenant_id, zone_id, service_id, bracket_id, price)
					VALUES ($1, $2, $3, $4, $5)
					ON CONFLICT (tenant_id, zone_id, service_id, bracket_id)
					DO UPDATE SET price = EXCLUDED.price, updated_at = now()`,
					tenantID, zones[z.Code], services[svc], bracketID, price)
				if err != nil {
					log.Fatalf("Failed to seed rate %s/%s: %v", z.Code, svc, err)
				}
				count++
			}
		}
	}
	log.Printf("Seeded %d rate cells", count)
}

func seedSettings(db *sql.DB, tenantID string, fx fixtures) {
	policy := fx.Settings.Policy
	if policy == "" {
		policy = "UNSUPPORTED"
	}
	_, err := db.Exec(`
		INSERT INTO shipping_settings (tenant_id, overweight_policy, overweight_flat_fee, overweight_message)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id) DO UPDATE SET
			overweight_policy = EXCLUDED.overweight_policy,
			overweight_flat_fee = EXCLUDED.overweight_flat_fee,
			overweight_message = EXCLUDED.overweight_message,
			updated_at = now()`,
		tenantID, policy, fx.Settings.FlatFee, fx.Settings.Message)
	if err != nil {
		log.Fatalf("Failed to seed shipping settings: %v", err)
	}
	log.Println("Seeded shipping settings")
}

// toTextArray renders a Postgres text[] literal. Country codes are
// alphanumeric so no quoting is needed.
func toTextArray(values []string) string {
	out := "{"
	for i, v := range values {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf("%q", v)
	}
	return out + "}"
}
