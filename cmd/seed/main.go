// Command seed creates a company and its first admin user. This is the
// only path that produces a company-admin account; the runtime user
// creation endpoints are restricted to controller and viewer.
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	"golang.org/x/term"
	"gorm.io/gorm"

	"smartfiller-backend/config"
	"smartfiller-backend/internal/auth"
	"smartfiller-backend/internal/db"
	"smartfiller-backend/internal/model"
)

func prompt(reader *bufio.Reader, label string) (string, error) {
	fmt.Printf("%s: ", label)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func promptPassword(label string) (string, error) {
	fmt.Printf("%s: ", label)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(password), nil
}

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	reader := bufio.NewReader(os.Stdin)
	companyName, err := prompt(reader, "Company Name")
	if err != nil {
		log.Fatalf("failed to read input: %v", err)
	}
	location, err := prompt(reader, "Company Location")
	if err != nil {
		log.Fatalf("failed to read input: %v", err)
	}
	adminName, err := prompt(reader, "Admin Name")
	if err != nil {
		log.Fatalf("failed to read input: %v", err)
	}
	adminEmail, err := prompt(reader, "Admin Email")
	if err != nil {
		log.Fatalf("failed to read input: %v", err)
	}
	password, err := promptPassword("Admin Password")
	if err != nil {
		log.Fatalf("failed to read password: %v", err)
	}

	if companyName == "" || adminName == "" || adminEmail == "" || password == "" {
		log.Fatal("all fields except location are required")
	}

	hasher := auth.NewHasher(cfg.Auth.BcryptCost)
	hash, err := hasher.Hash(password)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	err = gormDB.Transaction(func(tx *gorm.DB) error {
		company := model.Company{Name: companyName, Location: location}
		if err := tx.Create(&company).Error; err != nil {
			return fmt.Errorf("failed to create company: %w", err)
		}

		admin := model.User{
			CompanyID:    company.ID,
			Name:         adminName,
			Email:        adminEmail,
			PasswordHash: hash,
			Role:         model.RoleAdmin,
		}
		if err := tx.Create(&admin).Error; err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}

		fmt.Printf("Seeded company %q (id %d) with admin %s (id %d)\n", company.Name, company.ID, admin.Email, admin.ID)
		return nil
	})
	if err != nil {
		log.Fatalf("seed failed: %v", err)
	}
}
