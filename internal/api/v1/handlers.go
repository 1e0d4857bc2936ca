package apiv1

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/helioscale/billmigrate/app/repository"
	"github.com/helioscale/billmigrate/internal/pkg/gateway"
	"github.com/helioscale/billmigrate/internal/pkg/migration"
)

var validate = validator.New()

// APIServer exposes the migration operations over HTTP. All endpoints are
// admin-facing; authentication is attached in the router.
type APIServer struct {
	migrator  *migration.ProviderMigrator
	clients   *migration.ClientMigrator
	projector *migration.ResultProjector
}

// NewAPIServer assembles the saga stack from the global repository factory,
// the gateway configured by environment, and the Redis progress store.
func NewAPIServer() *APIServer {
	repos := repository.GetGlobalRepositories()
	gw := gateway.NewClientFromEnv()
	progress := migration.NewProgressStoreFromEnv()

	gate := migration.NewEligibilityGate(repos.Provider, repos.ProviderOrgLink, repos.Organization)
	clients := migration.NewClientMigrator(repos.Organization, repos.MigrationRecord, gw, progress)
	migrator := migration.NewProviderMigrator(
		gate, clients, repos.Provider, repos.PlanConfig, gw, gateway.NewProviderBilling(gw), progress,
	)

	return &APIServer{
		migrator:  migrator,
		clients:   clients,
		projector: migration.NewResultProjector(progress, repos.MigrationRecord),
	}
}

// PostProviderMigration runs the consolidation saga for one provider. The
// call is synchronous and safe to repeat: an already-migrated provider is a
// no-op and a partially-migrated one resumes from its checkpoints.
func (s *APIServer) PostProviderMigration(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return badID(c)
	}
	providerID := uint(id)

	if err := s.migrator.Migrate(c.Context(), providerID); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":   "migration_failed",
			"message": err.Error(),
		})
	}

	result, err := s.projector.GetResult(c.Context(), providerID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "status_unavailable",
			"message": err.Error(),
		})
	}
	if result == nil {
		// Ineligible provider: the saga declined to start.
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"skipped": true})
	}
	return c.Status(fiber.StatusOK).JSON(result)
}

// GetProviderMigration reports the checkpoint state of a provider migration.
func (s *APIServer) GetProviderMigration(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return badID(c)
	}

	result, err := s.projector.GetResult(c.Context(), uint(id))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "status_unavailable",
			"message": err.Error(),
		})
	}
	if result == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "not_found",
			"message": "no migration progress for this provider",
		})
	}
	return c.Status(fiber.StatusOK).JSON(result)
}

// ReverseMigrationRequest selects one compensation step for an organization.
type ReverseMigrationRequest struct {
	ProviderID uint   `json:"provider_id" validate:"required"`
	Step       string `json:"step" validate:"required,oneof=recreate_subscription reset_organization"`
}

// PostOrganizationReversal runs one manual compensation step for a migrated
// organization.
func (s *APIServer) PostOrganizationReversal(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return badID(c)
	}
	orgID := uint(id)

	var req ReverseMigrationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "bad_request",
			"message": "invalid request body",
		})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "validation_failed",
			"message": err.Error(),
		})
	}

	err = s.clients.Reverse(c.Context(), req.ProviderID, orgID, migration.ReversalStep(req.Step))
	switch {
	case errors.Is(err, migration.ErrNoMigrationRecord):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "no_migration_record",
			"message": err.Error(),
		})
	case errors.Is(err, migration.ErrNoGatewayCustomer):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":   "no_gateway_customer",
			"message": err.Error(),
		})
	case err != nil:
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":   "reversal_failed",
			"message": err.Error(),
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"reversed_step": req.Step})
}

func badID(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":   "bad_request",
		"message": "id must be a positive integer",
	})
}
