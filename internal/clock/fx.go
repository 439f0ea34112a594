package clock

import (
	"github.com/tutorbase/tutorbase/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("clock",
	fx.Provide(func(cfg config.Config) (Clock, error) {
		return NewSystemClock(cfg.Timezone)
	}),
)
