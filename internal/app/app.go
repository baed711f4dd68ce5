package app

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/orderdesk/internal/cache"
	"github.com/Additional-Code/orderdesk/internal/config"
	"github.com/Additional-Code/orderdesk/internal/database"
	"github.com/Additional-Code/orderdesk/internal/logger"
	"github.com/Additional-Code/orderdesk/internal/messaging"
	"github.com/Additional-Code/orderdesk/internal/migration"
	"github.com/Additional-Code/orderdesk/internal/observability"
	"github.com/Additional-Code/orderdesk/internal/ordersapi"
	repositoryorder "github.com/Additional-Code/orderdesk/internal/repository/order"
	"github.com/Additional-Code/orderdesk/internal/seeder"
	grpcserver "github.com/Additional-Code/orderdesk/internal/server/grpc"
	httpserver "github.com/Additional-Code/orderdesk/internal/server/http"
	serviceorder "github.com/Additional-Code/orderdesk/internal/service/order"
	transporthttp "github.com/Additional-Code/orderdesk/internal/transport/http"
	"github.com/Additional-Code/orderdesk/internal/transport/web"
	"github.com/Additional-Code/orderdesk/internal/worker"
	workerorder "github.com/Additional-Code/orderdesk/internal/worker/order"
)

// Base is shared by every executable.
var Base = fx.Options(
	config.Module,
	logger.Module,
	observability.Module,
)

// Persistence provides storage, caching, and event publishing for orders.
var Persistence = fx.Options(
	cache.Module,
	database.Module,
	messaging.Module,
	repositoryorder.Module,
	serviceorder.Module,
)

// Store serves the order REST API plus gRPC health.
var Store = fx.Options(
	Base,
	Persistence,
	httpserver.Module,
	transporthttp.Module,
	grpcserver.Module,
)

// Dashboard serves the operator dashboard against a remote order store.
var Dashboard = fx.Options(
	Base,
	cache.Module,
	ordersapi.Module,
	httpserver.DashboardModule,
	web.Module,
)

// Worker consumes order events.
var Worker = fx.Options(
	Base,
	messaging.Module,
	worker.Module,
	workerorder.Module,
)

// Client talks to the order store API without starting servers.
var Client = fx.Options(
	Base,
	ordersapi.Module,
)

// Migrate exposes the schema migrator.
var Migrate = fx.Options(
	Base,
	database.Module,
	migration.Module,
)

// Seed exposes the demo data seeder.
var Seed = fx.Options(
	Base,
	Persistence,
	seeder.Module,
)
