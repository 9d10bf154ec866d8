package cache

import (
	"sort"

	"gorm.io/gorm"

	"medid-server-go/internal/platform/errors"
)

// Driver identifiers supported by the label cache.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverNone   = "none"
)

// Dependencies carries shared handles some drivers reuse.
type Dependencies struct {
	SQLiteDB *gorm.DB
}

type constructor func(Config, Dependencies) (Cache, error)

var drivers = map[string]constructor{
	DriverNone: func(Config, Dependencies) (Cache, error) { return nil, nil },
	DriverMemory: func(cfg Config, _ Dependencies) (Cache, error) {
		return NewMemory(cfg), nil
	},
	DriverSQLite: func(cfg Config, deps Dependencies) (Cache, error) {
		if deps.SQLiteDB == nil {
			return nil, errors.New(errors.KindConfig, "cache.new", "sqlite label cache needs storage enabled")
		}
		return NewSQLite(deps.SQLiteDB, cfg)
	},
	DriverRedis: func(cfg Config, _ Dependencies) (Cache, error) {
		return NewRedis(cfg)
	},
}

// Drivers lists the accepted driver names.
func Drivers() []string {
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New creates the label cache for cfg.Driver, memory when unset. The none
// driver yields a nil Cache and lookups go straight to the API.
func New(cfg Config, deps Dependencies) (Cache, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverMemory
	}
	build, ok := drivers[driver]
	if !ok {
		return nil, errors.New(errors.KindConfig, "cache.new", "unsupported label cache driver: "+driver)
	}
	return build(cfg, deps)
}
