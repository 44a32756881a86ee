package statistics

import (
	"github.com/smallbiznis/tirta/internal/statistics/repository"
	"github.com/smallbiznis/tirta/internal/statistics/service"
	"go.uber.org/fx"
)

var Module = fx.Module("statistics.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
