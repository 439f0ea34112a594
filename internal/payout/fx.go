package payout

import (
	"github.com/tutorbase/tutorbase/internal/payout/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payout.service",
	fx.Provide(service.NewService),
)
