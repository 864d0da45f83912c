package provision

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/orbitlabs/provision/internal/deployer"
	"github.com/orbitlabs/provision/internal/kai"
	"github.com/orbitlabs/provision/internal/model"
)

// GeoMigrator runs the geolocation reference migration against the resolved
// database target. It is responsible for its own atomicity.
type GeoMigrator interface {
	Migrate(ctx context.Context, connURI string, ref model.GeoReference) error
}

// SchemaService configures the KAI schema service in a fixed three-call
// sequence: register the connection, refresh its table descriptions, sync
// schemas over every described table.
type SchemaService interface {
	WaitReady(ctx context.Context, timeout time.Duration) error
	RegisterConnection(ctx context.Context, alias, connectionURI string) (string, error)
	RefreshTables(ctx context.Context, connectionID string) ([]kai.TableDescription, error)
	SyncSchemas(ctx context.Context, tableIDs []string) error
}

// readyTimeout bounds the post-deploy wait for KAI to accept configuration
// calls.
const readyTimeout = 60 * time.Second

// Orchestrator drives one provisioning run through its stages in fixed
// order: infrastructure deployment (initial provisioning only), geolocation
// migration (iff a fact table is referenced), schema configuration, and the
// final completion report (iff part of a remote workflow). The first stage
// failure aborts the run; nothing is retried here, retry belongs to the
// workflow layer above.
type Orchestrator struct {
	req      *model.Request
	deployer deployer.Deployer
	geo      GeoMigrator
	schema   SchemaService
	reporter *Reporter
	log      zerolog.Logger
}

// NewOrchestrator creates the orchestrator for one validated request.
func NewOrchestrator(req *model.Request, d deployer.Deployer, g GeoMigrator, s SchemaService, r *Reporter, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		req:      req,
		deployer: d,
		geo:      g,
		schema:   s,
		reporter: r,
		log:      log,
	}
}

// Run executes the provisioning pipeline. The request must have been
// validated; the run is strictly sequential and is aborted by the first
// failing stage or undeliverable report.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.req.ProcessType == model.ProcessInitialProvisioning {
		if err := o.runStage(ctx, StageDeploy, o.deployInfrastructure); err != nil {
			return err
		}
		if err := o.reporter.Report(ctx, StageDeploy, "infrastructure deployed"); err != nil {
			return err
		}
	}

	if o.req.Geo.Active() {
		if err := o.runStage(ctx, StageGeolocation, o.configureGeolocation); err != nil {
			return err
		}
		if err := o.reporter.Report(ctx, StageGeolocation, "geolocation configured"); err != nil {
			return err
		}
	}

	if err := o.runStage(ctx, StageSchema, o.configureSchema); err != nil {
		return err
	}
	if err := o.reporter.Report(ctx, StageSchema, "schema configured"); err != nil {
		return err
	}

	if err := o.reporter.Complete(ctx); err != nil {
		return err
	}

	o.log.Info().Msg("provisioning completed")
	return nil
}

func (o *Orchestrator) deployInfrastructure(ctx context.Context) error {
	if err := o.deployer.Deploy(ctx); err != nil {
		return err
	}
	// A freshly started stack needs a moment before KAI accepts calls.
	return o.schema.WaitReady(ctx, readyTimeout)
}

func (o *Orchestrator) configureGeolocation(ctx context.Context) error {
	return o.geo.Migrate(ctx, o.req.ConnectionURI(), o.req.Geo)
}

func (o *Orchestrator) configureSchema(ctx context.Context) error {
	connID, err := o.schema.RegisterConnection(ctx, kai.ConnectionAlias, o.req.ConnectionURI())
	if err != nil {
		return err
	}
	o.log.Info().Str("connection_id", connID).Msg("database connection registered")

	tables, err := o.schema.RefreshTables(ctx, connID)
	if err != nil {
		return err
	}
	o.log.Info().Int("tables", len(tables)).Msg("table descriptions refreshed")

	ids := make([]string, 0, len(tables))
	for _, t := range tables {
		ids = append(ids, t.ID)
	}
	return o.schema.SyncSchemas(ctx, ids)
}
