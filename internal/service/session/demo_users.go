package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/matrixhub/catalog-server/internal/service"
)

// DemoUser is a preset account installed by SeedDemoUsers
type DemoUser struct {
	ID         string
	Email      string
	Password   string
	Name       string
	Role       string
	AvatarSeed string
}

// DemoUsers are the accounts available out of the box for demos and local development
var DemoUsers = []DemoUser{
	{ID: "Unit-734", Email: "[email protected]", Password: "password123", Name: "Unit-734", Role: "Auto-GPT Agent", AvatarSeed: "Unit734"},
	{ID: "demo", Email: "[email protected]", Password: "demo123", Name: "Demo Agent", Role: "Demo AI Agent", AvatarSeed: "Demo"},
	{ID: "DataAnalyzer", Email: "[email protected]", Password: "data123", Name: "DataAnalyzer Pro", Role: "Data Processing Unit", AvatarSeed: "DataAnalyzer"},
	{ID: "SupportBot", Email: "[email protected]", Password: "support123", Name: "SupportBot 3000", Role: "Customer Service AI", AvatarSeed: "SupportBot"},
	{ID: "CyberGuard", Email: "[email protected]", Password: "cyber123", Name: "CyberGuard AI", Role: "Security Specialist", AvatarSeed: "CyberGuard"},
}

// SeedDemoUsers inserts users that are not yet present. Existing records are never
// modified. It returns the number of records inserted.
func SeedDemoUsers(ctx context.Context, store service.CredentialStore, hasher PasswordHasher, users []DemoUser) (int, error) {
	inserted := 0
	now := time.Now().UTC()
	for _, u := range users {
		hash, err := hasher.Hash(u.Password)
		if err != nil {
			return inserted, fmt.Errorf("failed to hash password for %s: %w", u.ID, err)
		}

		ok, err := store.InsertIfAbsent(ctx, &service.Credential{
			ID:           u.ID,
			PasswordHash: hash,
			Name:         u.Name,
			Role:         u.Role,
			Email:        u.Email,
			AvatarURL:    service.AvatarURL(u.AvatarSeed),
			CreatedAt:    now,
		})
		if err != nil {
			return inserted, fmt.Errorf("failed to seed user %s: %w", u.ID, err)
		}
		if ok {
			inserted++
			slog.DebugContext(ctx, "Seeded demo user", "user_id", u.ID)
		}
	}
	return inserted, nil
}
