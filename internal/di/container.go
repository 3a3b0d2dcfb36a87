package di

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/masala-table/api/internal/handlers"
	"github.com/masala-table/api/internal/platform/auth"
	"github.com/masala-table/api/internal/platform/config"
	pfirestore "github.com/masala-table/api/internal/platform/firestore"
	"github.com/masala-table/api/internal/platform/notify"
	"github.com/masala-table/api/internal/platform/observability"
	"github.com/masala-table/api/internal/platform/requestctx"
	"github.com/masala-table/api/internal/repositories"
	fsrepo "github.com/masala-table/api/internal/repositories/firestore"
	"github.com/masala-table/api/internal/services"
)

// Repositories bundles the persistence contracts services rely upon.
type Repositories struct {
	Orders   repositories.OrderRepository
	Ledger   repositories.LedgerRepository
	Users    repositories.UserRepository
	Menu     repositories.MenuRepository
	Carts    repositories.CartRepository
	Tables   repositories.TableRepository
	Bookings repositories.BookingRepository
	Contact  repositories.ContactRepository
	Audit    repositories.AuditLogRepository
}

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Audit     services.AuditLogService
	Auth      services.AuthService
	Menu      services.MenuService
	Pricing   services.PricingEngine
	Loyalty   services.LoyaltyService
	Orders    services.OrderService
	Cart      services.CartService
	Tables    services.TableService
	Bookings  services.BookingService
	Contact   services.ContactService
	Dashboard services.DashboardService
}

// Container wires repositories, services, and the HTTP router for runtime use.
type Container struct {
	Config       config.Config
	Logger       *zap.Logger
	Repositories Repositories
	Services     Services
	Router       chi.Router

	provider     *pfirestore.Provider
	pubsubClient *pubsub.Client
	pubsubTopic  *pubsub.Topic
}

// NewContainer constructs the runtime dependency graph from configuration.
func NewContainer(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Container, error) {
	if ctx == nil {
		return nil, errors.New("di: context is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Container{
		Config: cfg,
		Logger: logger,
	}

	c.provider = pfirestore.NewProvider(cfg.Firestore)

	repos, err := buildRepositories(c.provider)
	if err != nil {
		c.closeQuietly(ctx)
		return nil, err
	}
	c.Repositories = repos

	notifier, err := c.buildNotifier(ctx, cfg)
	if err != nil {
		c.closeQuietly(ctx)
		return nil, err
	}

	tokens, err := auth.NewTokenManager(
		cfg.Auth.AccessTokenSecret,
		cfg.Auth.RefreshTokenSecret,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
	)
	if err != nil {
		c.closeQuietly(ctx)
		return nil, fmt.Errorf("build token manager: %w", err)
	}

	svc, err := buildServices(cfg, repos, notifier, tokens, serviceLogger(logger))
	if err != nil {
		c.closeQuietly(ctx)
		return nil, err
	}
	c.Services = svc

	c.Router = buildRouter(logger, svc, tokens, c.provider)
	return c, nil
}

// Close releases the Pub/Sub and Firestore clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}

	var errs []error
	if c.pubsubTopic != nil {
		c.pubsubTopic.Stop()
		c.pubsubTopic = nil
	}
	if c.pubsubClient != nil {
		if err := c.pubsubClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pubsub client: %w", err))
		}
		c.pubsubClient = nil
	}
	if c.provider != nil {
		if err := c.provider.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close firestore provider: %w", err))
		}
		c.provider = nil
	}
	return errors.Join(errs...)
}

func (c *Container) closeQuietly(ctx context.Context) {
	if err := c.Close(ctx); err != nil {
		c.Logger.Warn("container cleanup failed", zap.Error(err))
	}
}

func buildRepositories(provider *pfirestore.Provider) (Repositories, error) {
	orders, err := fsrepo.NewOrderRepository(provider)
	if err != nil {
		return Repositories{}, fmt.Errorf("build order repository: %w", err)
	}
	ledger, err := fsrepo.NewLedgerRepository(provider)
	if err != nil {
		return Repositories{}, fmt.Errorf("build ledger repository: %w", err)
	}
	users, err := fsrepo.NewUserRepository(provider)
	if err != nil {
		return Repositories{}, fmt.Errorf("build user repository: %w", err)
	}
	menu, err := fsrepo.NewMenuRepository(provider)
	if err != nil {
		return Repositories{}, fmt.Errorf("build menu repository: %w", err)
	}
	carts, err := fsrepo.NewCartRepository(provider)
	if err != nil {
		return Repositories{}, fmt.Errorf("build cart repository: %w", err)
	}
	tables, err := fsrepo.NewTableRepository(provider)
	if err != nil {
		return Repositories{}, fmt.Errorf("build table repository: %w", err)
	}
	bookings, err := fsrepo.NewBookingRepository(provider)
	if err != nil {
		return Repositories{}, fmt.Errorf("build booking repository: %w", err)
	}
	contact, err := fsrepo.NewContactRepository(provider)
	if err != nil {
		return Repositories{}, fmt.Errorf("build contact repository: %w", err)
	}
	audit, err := fsrepo.NewAuditLogRepository(provider)
	if err != nil {
		return Repositories{}, fmt.Errorf("build audit log repository: %w", err)
	}

	return Repositories{
		Orders:   orders,
		Ledger:   ledger,
		Users:    users,
		Menu:     menu,
		Carts:    carts,
		Tables:   tables,
		Bookings: bookings,
		Contact:  contact,
		Audit:    audit,
	}, nil
}

// buildNotifier returns nil when no topic is configured; notification sinks
// are optional throughout the service layer.
func (c *Container) buildNotifier(ctx context.Context, cfg config.Config) (services.Notifier, error) {
	topicID := cfg.Notifications.TopicID
	if topicID == "" {
		c.Logger.Info("notifications disabled; no topic configured")
		return nil, nil
	}
	if cfg.Firestore.ProjectID == "" {
		return nil, errors.New("di: notification topic configured without a project id")
	}

	client, err := pubsub.NewClient(ctx, cfg.Firestore.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("build pubsub client: %w", err)
	}
	c.pubsubClient = client
	c.pubsubTopic = client.Topic(topicID)

	notifier, err := notify.NewPubSubNotifier(c.pubsubTopic)
	if err != nil {
		return nil, fmt.Errorf("build notifier: %w", err)
	}
	return notifier, nil
}

func buildServices(cfg config.Config, repos Repositories, notifier services.Notifier, tokens *auth.TokenManager, logFn func(context.Context, string, map[string]any)) (Services, error) {
	var svc Services

	audit, err := services.NewAuditLogService(services.AuditLogServiceDeps{
		Entries: repos.Audit,
		Logger:  logFn,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build audit log service: %w", err)
	}
	svc.Audit = audit

	loyalty, err := services.NewLoyaltyService(services.LoyaltyServiceDeps{
		Ledger:      repos.Ledger,
		Users:       repos.Users,
		Audit:       audit,
		EarnRate:    cfg.Loyalty.EarnRate,
		RedeemValue: cfg.Loyalty.RedeemValue,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build loyalty service: %w", err)
	}
	svc.Loyalty = loyalty

	pricing, err := services.NewCatalogPricingEngine(services.CatalogPricingEngineDeps{
		Menu: repos.Menu,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build pricing engine: %w", err)
	}
	svc.Pricing = pricing

	orders, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:   repos.Orders,
		Pricing:  pricing,
		Loyalty:  loyalty,
		Audit:    audit,
		Notifier: notifier,
		Logger:   logFn,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orders

	accounts, err := services.NewAuthService(services.AuthServiceDeps{
		Users:            repos.Users,
		Tokens:           tokens,
		Audit:            audit,
		MaxRefreshTokens: cfg.Auth.MaxRefreshTokens,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build auth service: %w", err)
	}
	svc.Auth = accounts

	menu, err := services.NewMenuService(services.MenuServiceDeps{
		Menu:  repos.Menu,
		Audit: audit,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build menu service: %w", err)
	}
	svc.Menu = menu

	cart, err := services.NewCartService(services.CartServiceDeps{
		Carts:  repos.Carts,
		Menu:   repos.Menu,
		Orders: orders,
		Logger: logFn,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}
	svc.Cart = cart

	tables, err := services.NewTableService(services.TableServiceDeps{
		Tables: repos.Tables,
		Audit:  audit,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build table service: %w", err)
	}
	svc.Tables = tables

	bookings, err := services.NewBookingService(services.BookingServiceDeps{
		Bookings: repos.Bookings,
		Tables:   repos.Tables,
		Audit:    audit,
		Notifier: notifier,
		Logger:   logFn,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build booking service: %w", err)
	}
	svc.Bookings = bookings

	contact, err := services.NewContactService(services.ContactServiceDeps{
		Messages:   repos.Contact,
		Notifier:   notifier,
		AdminEmail: cfg.Notifications.AdminEmail,
		Logger:     logFn,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build contact service: %w", err)
	}
	svc.Contact = contact

	dashboard, err := services.NewDashboardService(services.DashboardServiceDeps{
		Orders:   repos.Orders,
		Users:    repos.Users,
		Bookings: repos.Bookings,
		Messages: repos.Contact,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build dashboard service: %w", err)
	}
	svc.Dashboard = dashboard

	return svc, nil
}

func buildRouter(logger *zap.Logger, svc Services, verifier auth.AccessTokenVerifier, provider *pfirestore.Provider) chi.Router {
	health := handlers.NewHealthHandlers(map[string]handlers.ReadinessCheck{
		"firestore": func(ctx context.Context) error {
			_, err := provider.Client(ctx)
			return err
		},
	})

	bookingHandlers := handlers.NewBookingHandlers(verifier, svc.Bookings, svc.Tables)

	return handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.TraceMiddleware(),
			observability.InjectLoggerMiddleware(logger),
			observability.RequestLoggerMiddleware(),
			observability.RecoveryMiddleware(logger),
		),
		handlers.WithHealthHandlers(health),
		handlers.WithAuthRoutes(handlers.NewAuthHandlers(verifier, svc.Auth).Routes),
		handlers.WithMenuRoutes(handlers.NewMenuHandlers(svc.Menu).Routes),
		handlers.WithOrderRoutes(handlers.NewOrderHandlers(verifier, svc.Orders).Routes),
		handlers.WithCartRoutes(handlers.NewCartHandlers(verifier, svc.Cart).Routes),
		handlers.WithLoyaltyRoutes(handlers.NewLoyaltyHandlers(verifier, svc.Loyalty).Routes),
		handlers.WithBookingRoutes(bookingHandlers.Routes),
		handlers.WithTableRoutes(bookingHandlers.TableRoutes),
		handlers.WithContactRoutes(handlers.NewContactHandlers(svc.Contact).Routes),
		handlers.WithAdminRoutes(handlers.NewAdminHandlers(handlers.AdminHandlersDeps{
			Verifier:  verifier,
			Orders:    svc.Orders,
			Menu:      svc.Menu,
			Tables:    svc.Tables,
			Bookings:  svc.Bookings,
			Contact:   svc.Contact,
			Dashboard: svc.Dashboard,
		}).Routes),
	)
}

// serviceLogger adapts the zap logger to the event-and-fields shape service
// side effects report through. The request-scoped logger wins when present.
func serviceLogger(base *zap.Logger) func(context.Context, string, map[string]any) {
	return func(ctx context.Context, event string, fields map[string]any) {
		logger := observability.FromContext(ctx)
		if logger == requestctx.NoopLogger() {
			logger = base
		}
		zapped := make([]zap.Field, 0, len(fields))
		for key, value := range fields {
			zapped = append(zapped, zap.Any(key, value))
		}
		logger.Warn(event, zapped...)
	}
}
