package eventledger

import (
	"github.com/smallbiznis/subsync/internal/eventledger/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("eventledger",
	fx.Provide(repository.Provide),
)
