package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/primatransit/tour-audit-backend/internal/utils"
	"github.com/primatransit/tour-audit-backend/pkg/jwt"
)

func main() {
	operator := flag.String("operator", "", "Operator name to embed in the token")
	roles := flag.String("roles", "ops", "Comma-separated roles (e.g. admin,ops)")
	expiry := flag.Duration("expiry", 24*time.Hour, "Token lifetime")
	genSecret := flag.Bool("generate-secret", false, "Generate a new JWT secret instead of a token")
	flag.Parse()

	fmt.Println("===========================================")
	fmt.Println("Operator Token Tool for PrimaTransit Audit")
	fmt.Println("===========================================")
	fmt.Println()

	if *genSecret {
		secret, err := utils.GenerateJWTSecret()
		if err != nil {
			log.Fatalf("Failed to generate secret: %v", err)
		}
		fmt.Println("✅ Secret generated successfully!")
		fmt.Println()
		fmt.Println("Add this to your .env file:")
		fmt.Println()
		fmt.Printf("JWT_SECRET=%s\n", secret)
		fmt.Println()
		fmt.Println("⚠️  IMPORTANT: Keep this secret safe and never commit it to version control!")
		return
	}

	if *operator == "" {
		log.Fatal("-operator is required")
	}

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is not set")
	}

	jwtService := jwt.NewService(secret, *expiry)
	token, err := jwtService.GenerateToken(*operator, strings.Split(*roles, ","))
	if err != nil {
		log.Fatalf("Failed to generate token: %v", err)
	}

	fmt.Printf("✅ Token issued for %s (roles: %s, valid for %v)\n", *operator, *roles, *expiry)
	fmt.Println()
	fmt.Println(token)
}
