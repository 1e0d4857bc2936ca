package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	apiv1 "github.com/helioscale/billmigrate/internal/api/v1"
	"github.com/helioscale/billmigrate/internal/pkg/env"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "billmigrate api",
		})
	})

	// The migration endpoints are operator-facing and sit behind basic auth.
	v1 := api.Group("/v1", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("ADMIN_USER", "admin"): env.GetEnv("ADMIN_PASSWORD", "admin"),
		},
	}))

	server := apiv1.NewAPIServer()
	v1.Post("/providers/:id/migrate", server.PostProviderMigration)
	v1.Get("/providers/:id/migration", server.GetProviderMigration)
	v1.Post("/organizations/:id/migration/reverse", server.PostOrganizationReversal)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
