// seed-admin creates or updates the back-office admin user and seeds reference data:
// the GST state code master and, when SELLER_NAME is set, the invoice letterhead.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//	ADMIN_EMAIL=owner@example.com ADMIN_PASSWORD=... go run ./cmd/seed-admin
//
// Flags override the environment; -skip-states leaves state_gst_master untouched.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/katariastoneworld/stoneworld_backend/config"
	"github.com/katariastoneworld/stoneworld_backend/models"
	"github.com/katariastoneworld/stoneworld_backend/utils"
	"gorm.io/gorm"
)

const defaultAdminName = "Stone World Admin"

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func main() {
	var (
		email      = flag.String("email", envOr("ADMIN_EMAIL", ""), "admin login email")
		password   = flag.String("password", envOr("ADMIN_PASSWORD", ""), "admin password (min 6 chars)")
		name       = flag.String("name", envOr("ADMIN_NAME", defaultAdminName), "admin display name")
		location   = flag.String("location", envOr("ADMIN_LOCATION", ""), "admin location (defaults to the first allowed location)")
		skipStates = flag.Bool("skip-states", false, "do not seed state_gst_master")
		migrate    = flag.Bool("migrate", false, "run AutoMigrate before seeding")
	)
	flag.Parse()

	*email = strings.ToLower(strings.TrimSpace(*email))
	if *email == "" || len(*password) < 6 {
		fmt.Fprintln(os.Stderr, "ADMIN_EMAIL and ADMIN_PASSWORD (min 6 chars) are required")
		os.Exit(2)
	}
	if *location == "" {
		*location = config.AllowedLocations()[0]
	}
	canonical, ok := config.IsAllowedLocation(*location)
	if !ok {
		fmt.Fprintf(os.Stderr, "location %q is not one of: %s\n", *location, strings.Join(config.AllowedLocations(), ", "))
		os.Exit(2)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	if *migrate {
		models.MigrateTable()
	}

	// Users are looked up across locations; email is globally unique.
	ctx := utils.SetSkipLocationScopeInContext(context.Background(), true)

	user, created, err := upsertAdmin(ctx, db, *email, *password, *name, canonical)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed admin: %v\n", err)
		os.Exit(1)
	}
	verb := "updated"
	if created {
		verb = "created"
	}
	fmt.Printf("admin %s: id=%d email=%s location=%s\n", verb, user.ID, user.Email, user.Location)

	if !*skipStates {
		n, err := models.SeedStateGstMaster(ctx, models.DefaultStateGstCodes)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to seed state_gst_master: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("state_gst_master: %d states upserted\n", n)
	}

	if sellerName := strings.TrimSpace(os.Getenv("SELLER_NAME")); sellerName != "" {
		seller, err := models.UpsertSeller(ctx, &models.NewSeller{
			Name:               sellerName,
			Gstin:              os.Getenv("SELLER_GSTIN"),
			Address:            os.Getenv("SELLER_ADDRESS"),
			Mobile:             os.Getenv("SELLER_MOBILE"),
			SubHeader:          os.Getenv("SELLER_SUB_HEADER"),
			BankName:           os.Getenv("SELLER_BANK_NAME"),
			AccountNumber:      os.Getenv("SELLER_ACCOUNT_NUMBER"),
			IfscCode:           os.Getenv("SELLER_IFSC"),
			TermsAndConditions: os.Getenv("SELLER_TERMS"),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to seed seller: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("seller: id=%d name=%s gstin=%s\n", seller.ID, seller.Name, seller.Gstin)
	}
}

// upsertAdmin resets the password and role of an existing user, or creates one.
func upsertAdmin(ctx context.Context, db *gorm.DB, email, password, name, location string) (*models.User, bool, error) {
	hashed, err := utils.HashPassword(password)
	if err != nil {
		return nil, false, err
	}

	var existing models.User
	err = db.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user := models.User{
			Name:     name,
			Email:    email,
			Password: string(hashed),
			Location: location,
			Role:     models.UserRoleAdmin,
		}
		if err := db.WithContext(ctx).Create(&user).Error; err != nil {
			return nil, false, err
		}
		return &user, true, nil
	}

	if err := db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
		"name":     name,
		"password": string(hashed),
		"location": location,
		"role":     models.UserRoleAdmin,
	}).Error; err != nil {
		return nil, false, err
	}
	existing.Name, existing.Location, existing.Role = name, location, models.UserRoleAdmin
	return &existing, false, nil
}
