// Package autoload configures the global logger from LOG_* environment variables
// when imported for side effects.
package autoload

import (
	configx "github.com/tanpawarit/freight-aiflow/pkg/config"
	logx "github.com/tanpawarit/freight-aiflow/pkg/logger"
)

func init() {
	logx.Init(*configx.MustNew[logx.Config]("LOG"))
}
