// Package app wires the bounded contexts together on one event bus.
package app

import (
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"libraryflow/internal/acquisitions"
	"libraryflow/internal/catalog"
	"libraryflow/internal/circulation"
	"libraryflow/internal/eventhandlers"
	"libraryflow/internal/events"
	"libraryflow/internal/membership"
	"libraryflow/internal/server"
)

// Store provides the repositories of every context. Both the memory and the
// postgres stores satisfy it.
type Store interface {
	Catalog() catalog.Repositories
	Circulation() circulation.Repositories
	Acquisitions() acquisitions.Repositories
	Membership() membership.Repositories
}

type Options struct {
	// Policies default to circulation.DefaultPolicies when unset.
	Policies circulation.Policies
	// Limiter throttles patron registration and staff login. Nil means
	// unlimited.
	Limiter  *rate.Limiter
	Clock    func() time.Time
	Barcodes catalog.BarcodeGenerator
	Journal  events.Journal
	Logger   *log.Logger
}

// App holds the bus and the services subscribed to it.
type App struct {
	Bus      *events.Bus
	Services server.Services
}

// New builds the services on store and registers the cross-context event
// handlers.
func New(store Store, opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	busOpts := []events.Option{events.WithLogger(logger)}
	if opts.Journal != nil {
		busOpts = append(busOpts, events.WithJournal(opts.Journal))
	}
	bus := events.NewBus(busOpts...)

	policies := opts.Policies
	if policies.Loan.BaseDays == 0 {
		policies = circulation.DefaultPolicies()
	}

	svc := server.Services{
		Catalog:      catalog.NewService(store.Catalog(), bus, opts.Barcodes, opts.Clock),
		Circulation:  circulation.NewService(store.Circulation(), bus, policies, opts.Clock, logger),
		Acquisitions: acquisitions.NewService(store.Acquisitions(), bus, opts.Clock),
		Membership:   membership.NewService(store.Membership(), bus, opts.Limiter, opts.Clock),
	}
	eventhandlers.Register(bus, eventhandlers.Deps{
		Catalog:     svc.Catalog,
		Circulation: svc.Circulation,
		Membership:  svc.Membership,
		Logger:      logger,
	})

	return &App{Bus: bus, Services: svc}
}
