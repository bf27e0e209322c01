package services

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	fiberSwagger "github.com/gofiber/swagger"

	docs "github.com/folio-gate/gate_api/docs"
	"github.com/folio-gate/gate_api/services/handlers"
	"github.com/folio-gate/gate_api/shared"
)

type HttpService struct {
	context.DefaultService

	port int
	app  *fiber.App

	sqlSvc *PostgresService
}

const HTTP_SVC = "http_svc"

// The middleware services live in their own package; they are resolved by id
// to keep the import graph acyclic.
const (
	gateMiddlewareID = "gate"
	authMiddlewareID = "auth"
)

func (svc HttpService) Id() string {
	return HTTP_SVC
}

func (svc *HttpService) Configure(ctx *context.Context) error {
	if port := os.Getenv("HTTP_PORT"); port != "" {
		var err error
		if svc.port, err = strconv.Atoi(port); err != nil {
			return err
		}
	} else {
		svc.port = 8000
	}

	return svc.DefaultService.Configure(ctx)
}

func (svc *HttpService) Start() error {
	svc.sqlSvc = svc.Service(POSTGRES_SVC).(*PostgresService)
	injectorSvc := svc.Service(INJECTOR_SVC).(*ContextInjectorService)
	aiStatusSvc := svc.Service(AI_STATUS_SVC).(*AIStatusService)
	jwtSvc := svc.Service(JWT_SVC).(*JWTService)
	reflinkSvc := svc.Service(REFLINK_SVC).(*ReflinkService)
	blacklistSvc := svc.Service(BLACKLIST_SVC).(*BlacklistService)
	rateLimitSvc := svc.Service(RATE_LIMIT_SVC).(*RateLimitService)
	contentSvc := svc.Service(CONTENT_SVC).(*ContentService)
	contextSvc := svc.Service(CONTEXT_SVC).(*ContextService)

	gateMw := svc.Service(gateMiddlewareID).(handlers.GateMiddlewareInterface)
	authMw := svc.Service(authMiddlewareID).(handlers.AuthMiddlewareInterface)

	gateHandler := handlers.NewGateHandler(injectorSvc, aiStatusSvc)
	adminHandler := handlers.NewAdminHandler(jwtSvc, reflinkSvc, blacklistSvc, rateLimitSvc, contentSvc, contextSvc, aiStatusSvc)

	docs.SwaggerInfo.BasePath = ""

	svc.app = fiber.New(fiber.Config{
		ErrorHandler: svc.handleError,
	})

	svc.app.Use(recover.New())
	svc.app.Use(cors.New(cors.Config{
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Session-ID, X-Reflink-Code",
	}))

	if monitoringSvc, ok := svc.Service(MONITORING_SVC).(*MonitoringService); ok {
		svc.app.Use(MonitoringMiddleware(monitoringSvc))
	}

	svc.app.Get("/ping", svc.ping)
	svc.app.Get("/swagger/*", fiberSwagger.HandlerDefault)

	v1 := svc.app.Group("/api/v1")
	v1.Get("/ping", svc.ping)

	gate := v1.Group("/gate")
	gate.Post("/validate", gateHandler.Validate)
	gate.Post("/context", gateHandler.LoadContext)
	gate.Get("/status", gateMw.BlacklistCheck(), gateMw.RateLimit("status"), gateHandler.Status)

	admin := v1.Group("/admin")
	admin.Post("/login", adminHandler.Login)

	admin.Use(authMw.RequiredAuth())
	admin.Get("/reflinks", adminHandler.ListReflinks)
	admin.Post("/reflinks", adminHandler.CreateReflink)
	admin.Put("/reflinks/:id", adminHandler.UpdateReflink)
	admin.Delete("/reflinks/:id", adminHandler.DeactivateReflink)
	admin.Get("/reflinks/:id/usage", adminHandler.ReflinkUsage)

	admin.Get("/blacklist", adminHandler.ListBlacklist)
	admin.Post("/blacklist/violations", adminHandler.RecordViolation)
	admin.Post("/blacklist/reinstate", adminHandler.Reinstate)

	admin.Get("/rate-limits", adminHandler.RateLimitStats)
	admin.Put("/rate-limits/:tier", adminHandler.UpdateTierConfig)
	admin.Delete("/rate-limits/:identifier", adminHandler.ResetRateLimit)

	admin.Get("/content", adminHandler.ListContent)
	admin.Post("/content", adminHandler.CreateContent)
	admin.Put("/content/:id", adminHandler.UpdateContent)
	admin.Delete("/content/:id", adminHandler.DeleteContent)

	admin.Get("/documents", adminHandler.ListDocuments)
	admin.Post("/documents", adminHandler.UploadDocument)
	admin.Delete("/documents", adminHandler.DeleteDocument)
	admin.Get("/documents/url", adminHandler.DocumentURL)

	admin.Get("/cache", adminHandler.CacheInfo)
	admin.Delete("/cache", adminHandler.InvalidateCache)

	admin.Post("/status/refresh", adminHandler.RefreshAIStatus)

	return svc.app.Listen(fmt.Sprintf(":%v", svc.port))
}

func (svc *HttpService) Shutdown() {
	if svc.app != nil {
		_ = svc.app.Shutdown()
	}
}

// @Summary Ping
// @Description This endpoint checks the health of the service
// @Tags health
// @Accept  json
// @Produce json
// @Success 200 {object} shared.Response{data=string}
// @Router /ping [get]
func (svc *HttpService) ping(c *fiber.Ctx) error {
	c.Set(fiber.HeaderCacheControl, "max-age=10")

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", "pong")
}

func (svc *HttpService) handleError(c *fiber.Ctx, err error) error {
	if appErr, ok := shared.GetAppError(err); ok {
		return shared.ResponseJSON(c, appErr.StatusCode, appErr.Message, appErr.Data)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return shared.ResponseJSON(c, fiberErr.Code, fiberErr.Message, nil)
	}

	// Raw storage errors reaching this far still get a proper status code.
	if svc.sqlSvc != nil {
		if appErr, ok := shared.GetAppError(svc.sqlSvc.HandleError(err)); ok && appErr.StatusCode < fiber.StatusInternalServerError {
			return shared.ResponseJSON(c, appErr.StatusCode, appErr.Message, nil)
		}
	}

	return shared.ResponseInternalError(c, err)
}
