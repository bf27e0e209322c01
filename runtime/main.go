package main

import (
	"github.com/alphabatem/common/context"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/folio-gate/gate_api/middleware"
	"github.com/folio-gate/gate_api/services"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Warn().Err(err).Msg("No .env file loaded")
	}

	ctx, err := context.NewCtx(
		&services.PostgresService{},
		&services.RedisService{},
		&services.MinIOService{},

		&services.JWTService{},
		&services.EmailService{},

		&services.RateLimitService{},
		&services.BlacklistService{},
		&services.ReflinkService{},
		&services.ContentService{},
		&services.ContextService{},
		&services.AIStatusService{},
		&services.ContextInjectorService{},

		&middleware.AuthMiddleware{},
		&middleware.GateMiddleware{},

		&services.MonitoringService{},
		&services.HttpService{},
	)
	if err != nil {
		log.Fatal().Err(err)
		return
	}

	err = ctx.Run()
	if err != nil {
		log.Fatal().Err(err)
		return
	}
}
