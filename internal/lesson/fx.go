package lesson

import (
	"github.com/tutorbase/tutorbase/internal/lesson/service"
	"go.uber.org/fx"
)

var Module = fx.Module("lesson.service",
	fx.Provide(service.NewService),
)
