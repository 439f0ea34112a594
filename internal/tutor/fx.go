package tutor

import (
	"github.com/tutorbase/tutorbase/internal/tutor/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tutor.service",
	fx.Provide(service.NewService),
)
