package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	pkgAuth "github.com/angelmondragon/benefits-logistics/pkg/auth"
	"github.com/angelmondragon/benefits-logistics/pkg/config"
	"github.com/angelmondragon/benefits-logistics/pkg/enums"
	"github.com/angelmondragon/benefits-logistics/pkg/logger"
)

// admin-token mints a bearer token for the back-office admin routes. Operators
// are managed outside this service, so tokens are issued from the shell.
func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "admin-token", Output: os.Stderr})
	_ = godotenv.Load()

	operator := flag.String("operator", "", "operator id recorded as the token subject")
	role := flag.String("role", string(enums.OperatorRoleOps), "operator role: admin|ops")
	ttl := flag.Int("ttl-minutes", 0, "token lifetime in minutes (defaults to BENEFITS_JWT_EXPIRATION_MINUTES)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}

	operatorRole, err := enums.ParseOperatorRole(*role)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	jwtCfg := cfg.JWT
	if *ttl > 0 {
		jwtCfg.ExpirationMinutes = *ttl
	}

	token, err := pkgAuth.MintAccessToken(jwtCfg, time.Now(), pkgAuth.AccessTokenPayload{
		OperatorID: *operator,
		Role:       operatorRole,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to mint token: %v\n", err)
		os.Exit(2)
	}

	logg.Info(logg.WithFields(ctx, map[string]any{
		"operator_id": *operator,
		"actor_role":  operatorRole.String(),
		"ttl_minutes": jwtCfg.ExpirationMinutes,
	}), "admin token issued")
	fmt.Println(token)
}
