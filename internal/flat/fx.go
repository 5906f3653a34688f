package flat

import (
	"github.com/smallbiznis/societyops/internal/flat/repository"
	"github.com/smallbiznis/societyops/internal/flat/service"
	"go.uber.org/fx"
)

var Module = fx.Module("flat.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
