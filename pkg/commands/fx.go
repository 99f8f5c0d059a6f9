package commands

import (
	"go.uber.org/fx"
)

// Module provides the shared command registry. Plugins fill it from their
// own fx.Invoke hooks.
var Module = fx.Module("commands",
	fx.Provide(NewRegistry),
)
