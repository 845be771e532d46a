package app

import (
	"go.uber.org/fx"

	"github.com/brewline/brewline/internal/auth"
	"github.com/brewline/brewline/internal/cache"
	"github.com/brewline/brewline/internal/config"
	"github.com/brewline/brewline/internal/database"
	"github.com/brewline/brewline/internal/feed"
	"github.com/brewline/brewline/internal/logger"
	"github.com/brewline/brewline/internal/messaging"
	"github.com/brewline/brewline/internal/observability"
	repositorymenu "github.com/brewline/brewline/internal/repository/menu"
	repositoryorder "github.com/brewline/brewline/internal/repository/order"
	grpcserver "github.com/brewline/brewline/internal/server/grpc"
	httpserver "github.com/brewline/brewline/internal/server/http"
	servicemenu "github.com/brewline/brewline/internal/service/menu"
	serviceorder "github.com/brewline/brewline/internal/service/order"
	transporthttp "github.com/brewline/brewline/internal/transport/http"
	"github.com/brewline/brewline/internal/worker"
	workerorder "github.com/brewline/brewline/internal/worker/order"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	auth.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
	feed.Module,
	repositoryorder.Module,
	repositorymenu.Module,
	serviceorder.Module,
	servicemenu.Module,
)

// HTTP wires the HTTP transport on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerorder.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
