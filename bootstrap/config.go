package bootstrap

import (
	"github.com/kbukum/voicememo/config"
)

// Config is the constraint for application configuration types. A struct
// embedding config.ServiceConfig gets GetServiceConfig through promotion.
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}
