package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/storeforge/scanapi/internal/config"
	"github.com/storeforge/scanapi/internal/database"
	"github.com/storeforge/scanapi/internal/models"
	"github.com/storeforge/scanapi/internal/repository"
	"github.com/storeforge/scanapi/internal/service"
)

// createuser bootstraps an account and optionally assigns it to a tenant:
//
//	createuser -email ops@example.com -password ... -role admin
//	createuser -email clerk@example.com -password ... -tenant t1 -tenant-role member
func main() {
	email := flag.String("email", "", "login email (required)")
	password := flag.String("password", "", "initial password, at least 8 characters (required)")
	name := flag.String("name", "", "display name")
	role := flag.String("role", models.UserRoleUser, "platform role: admin or user")
	tenantID := flag.String("tenant", "", "tenant to assign the user to")
	tenantRole := flag.String("tenant-role", models.TenantRoleMember, "tenant role: owner, admin, member or viewer")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if *email == "" || *password == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	db, err := database.Connect(&cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	authSvc := service.NewAuthService(repository.NewUserRepository(db), cfg.JWTTTL)
	user, err := authSvc.CreateUser(ctx, *email, *password, *name, *role)
	if err != nil {
		log.Fatal().Err(err).Msg("create user failed")
	}
	log.Info().Str("user_id", user.ID).Str("email", user.Email).Str("role", user.Role).Msg("User created")

	if *tenantID == "" {
		return
	}
	switch *tenantRole {
	case models.TenantRoleOwner, models.TenantRoleAdmin, models.TenantRoleMember, models.TenantRoleViewer:
	default:
		log.Fatal().Str("tenant_role", *tenantRole).Msg("unknown tenant role")
	}
	if err := repository.NewTenantRepository(db).Assign(ctx, user.ID, *tenantID, *tenantRole); err != nil {
		log.Fatal().Err(err).Msg("assign tenant failed")
	}
	log.Info().Str("user_id", user.ID).Str("tenant_id", *tenantID).Str("tenant_role", *tenantRole).Msg("Tenant assigned")
}
