package reading

import (
	"github.com/smallbiznis/tirta/internal/reading/repository"
	"github.com/smallbiznis/tirta/internal/reading/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reading.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
