// Command modtoken issues bearer tokens for the moderation routes when the
// service runs with MODERATION_POLICY=jwt.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"shop-service/config"
	"shop-service/internal/auth"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	subject := flag.String("subject", "", "moderator identity written to the sub claim")
	role := flag.String("role", auth.RoleModerator, "role claim")
	ttl := flag.Duration("ttl", cfg.Auth.TokenTTL, "token lifetime")
	flag.Parse()

	if *subject == "" {
		log.Fatal("-subject is required")
	}

	signing := cfg.Auth
	signing.ModerationPolicy = config.ModerationPolicyJWT
	if err := signing.Validate(); err != nil {
		log.Fatal(err)
	}
	if *ttl <= 0 {
		*ttl = time.Hour
	}

	manager := auth.NewJWTManager(cfg.Auth.JWTSecret, *ttl, zap.NewNop())
	token, err := manager.GenerateToken(*subject, *role)
	if err != nil {
		log.Fatalf("failed to issue token: %v", err)
	}

	fmt.Println(token)
}
