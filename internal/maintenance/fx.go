package maintenance

import (
	"github.com/smallbiznis/societyops/internal/maintenance/repository"
	"github.com/smallbiznis/societyops/internal/maintenance/service"
	"go.uber.org/fx"
)

var Module = fx.Module("maintenance.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(service.NewSettings),
)
