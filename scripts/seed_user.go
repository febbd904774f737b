package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linesmerrill/court-case-portal/config"
	"github.com/linesmerrill/court-case-portal/databases"
	"github.com/linesmerrill/court-case-portal/models"
)

// Quick utility to add a portal user, printing the id to send as X-User-ID
// Usage: go run scripts/seed_user.go <role> <email> <name>
func main() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: go run scripts/seed_user.go <role> <email> <name>")
		fmt.Println("Example: go run scripts/seed_user.go advocate jane@example.com \"Jane Doe\"")
		os.Exit(1)
	}
	role, email, name := os.Args[1], os.Args[2], os.Args[3]
	switch role {
	case models.RoleLitigant, models.RoleAdvocate, models.RoleCourtOfficer, models.RoleJudge:
	default:
		fmt.Printf("unknown role %q\n", role)
		os.Exit(1)
	}

	conf := config.New()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := databases.NewClient(conf)
	if err == nil {
		err = client.Connect(ctx)
	}
	if err != nil {
		fmt.Printf("Error connecting to database: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	now := primitive.NewDateTimeFromTime(time.Now())
	users := databases.NewUserDatabase(databases.NewDatabase(conf, client))
	res, err := users.InsertOne(ctx, models.UserDetails{
		Email:     email,
		Name:      name,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		fmt.Printf("Error creating user: %v\n", err)
		os.Exit(1)
	}

	id, _ := res.Decode().(primitive.ObjectID)
	fmt.Printf("Created %s %s\n", role, email)
	fmt.Printf("X-User-ID: %s\n", id.Hex())
}
