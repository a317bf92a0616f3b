package api

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/loadxpress/loadxpress/internal/account"
	"github.com/loadxpress/loadxpress/internal/config"
	"github.com/loadxpress/loadxpress/internal/logger"
	"github.com/loadxpress/loadxpress/internal/model"
	"github.com/loadxpress/loadxpress/internal/orders"
	"github.com/loadxpress/loadxpress/internal/store"
)

const localUserKey = "authenticated_user"

// Server is the HTTP surface: auth flows, the dashboard JSON API and
// order placement.
type Server struct {
	cfg       *config.Config
	logger    logger.Logger
	app       *fiber.App
	sessions  *session.Store
	lifecycle *account.Lifecycle
	orders    *orders.Service
	repo      store.RepositoryManager
}

// NewServer wires routes and middleware. The redis client backs the
// cookie sessions; the same client serves the login code store.
func NewServer(
	cfg *config.Config,
	log logger.Logger,
	rdb *redis.Client,
	repo store.RepositoryManager,
	lifecycle *account.Lifecycle,
	orderSvc *orders.Service,
) *Server {
	s := &Server{
		cfg:       cfg,
		logger:    log,
		lifecycle: lifecycle,
		orders:    orderSvc,
		repo:      repo,
	}

	s.sessions = session.New(session.Config{
		Storage:        NewRedisStorage(rdb),
		Expiration:     cfg.App.SessionTTL,
		KeyLookup:      "cookie:loadxpress_session",
		CookieHTTPOnly: true,
		CookieSecure:   cfg.IsProd(),
		CookieSameSite: "Lax",
	})

	s.app = fiber.New(fiber.Config{
		AppName:               "loadxpress",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
	})

	s.app.Use(recover.New())
	s.app.Use(s.requestLogger())

	s.routes()

	return s
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen blocks serving HTTP on the configured address.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.App.HTTPAddr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) routes() {
	auth := s.app.Group("/auth")
	auth.Post("/signup", s.handleSignup)
	auth.Post("/signup/google", s.handleGoogleSignup)
	auth.Get("/activate", s.handleActivate)
	auth.Post("/signin", s.handleSignin)
	auth.Post("/signin/google", s.handleGoogleSignin)
	auth.Post("/verify-otp", s.handleVerifyOTP)
	auth.Post("/resend-otp", s.handleResendOTP)

	s.app.Post("/logout", s.handleLogout)

	s.app.Get("/plans", s.handlePlans)
	s.app.Get("/get-transactions", s.requireUser(s.handleTransactions))

	me := s.app.Group("/me")
	me.Get("/", s.requireUser(s.handleMe))
	me.Post("/order", s.requireUser(s.handleOrder))

	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
}

func (s *Server) requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		s.logger.Info("http request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"client_ip", c.IP(),
			"latency", time.Since(start).String(),
		)
		return err
	}
}

// requireUser gates a route behind an authenticated session and puts
// the resolved account in locals.
func (s *Server) requireUser(next fiber.Handler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fs, err := s.sessions.Get(c)
		if err != nil {
			return s.respondError(c, err)
		}

		sess := loadSession(fs)
		user, err := s.lifecycle.Authenticate(c.Context(), sess)
		if err != nil {
			// the guard may have cleared a stale session
			if saveErr := saveSession(fs, sess); saveErr != nil {
				s.logger.Error("failed to persist session", "error", saveErr)
			}
			return s.respondError(c, err)
		}

		c.Locals(localUserKey, user)
		return next(c)
	}
}

func currentUser(c *fiber.Ctx) *model.Account {
	user, _ := c.Locals(localUserKey).(*model.Account)
	return user
}

func (s *Server) handleSignup(c *fiber.Ctx) error {
	var input account.SignupInput
	if err := c.BodyParser(&input); err != nil {
		return s.respondError(c, account.ErrCannotRegister)
	}
	input.RemoteIP = c.IP()

	if err := s.lifecycle.Signup(c.Context(), input); err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "account created, check your email for the activation link",
	})
}

type providerTokenInput struct {
	Credential string `form:"credential" json:"credential"`
}

func (s *Server) handleGoogleSignup(c *fiber.Ctx) error {
	var input providerTokenInput
	if err := c.BodyParser(&input); err != nil {
		return s.respondError(c, account.ErrCannotRegister)
	}

	return s.withSession(c, func(sess *account.Session) error {
		return s.lifecycle.SignupWithGoogle(c.Context(), sess, input.Credential)
	}, fiber.Map{"success": true})
}

func (s *Server) handleActivate(c *fiber.Ctx) error {
	token := c.Query("token")

	fs, err := s.sessions.Get(c)
	if err != nil {
		return s.respondError(c, err)
	}

	sess := loadSession(fs)
	outcome, err := s.lifecycle.Activate(c.Context(), sess, token)
	if err != nil {
		return s.respondError(c, err)
	}

	if err := saveSession(fs, sess); err != nil {
		return s.respondError(c, err)
	}

	if outcome == account.ActivationAlreadyDone {
		return c.JSON(fiber.Map{
			"success": true,
			"message": "account already activated, sign in to continue",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "account activated",
	})
}

func (s *Server) handleSignin(c *fiber.Ctx) error {
	var input account.SigninInput
	if err := c.BodyParser(&input); err != nil {
		return s.respondError(c, account.ErrInvalidCredentials)
	}
	input.RemoteIP = c.IP()

	return s.withSession(c, func(sess *account.Session) error {
		return s.lifecycle.Signin(c.Context(), sess, input)
	}, fiber.Map{
		"success": true,
		"message": "enter the code sent to your email",
	})
}

func (s *Server) handleGoogleSignin(c *fiber.Ctx) error {
	var input providerTokenInput
	if err := c.BodyParser(&input); err != nil {
		return s.respondError(c, account.ErrInvalidCredentials)
	}

	return s.withSession(c, func(sess *account.Session) error {
		if err := s.lifecycle.SigninWithGoogle(c.Context(), sess, input.Credential); err != nil {
			return err
		}
		loginsTotal.WithLabelValues("google").Inc()
		return nil
	}, fiber.Map{"success": true})
}

func (s *Server) handleVerifyOTP(c *fiber.Ctx) error {
	var input account.OTPInput
	if err := c.BodyParser(&input); err != nil {
		return s.respondError(c, account.ErrInvalidOrExpiredCode)
	}

	return s.withSession(c, func(sess *account.Session) error {
		if err := s.lifecycle.VerifyOTP(c.Context(), sess, input); err != nil {
			return err
		}
		loginsTotal.WithLabelValues("otp").Inc()
		return nil
	}, fiber.Map{"success": true})
}

func (s *Server) handleResendOTP(c *fiber.Ctx) error {
	return s.withSession(c, func(sess *account.Session) error {
		return s.lifecycle.ResendOTP(c.Context(), sess)
	}, fiber.Map{
		"success": true,
		"message": "a new code is on its way",
	})
}

func (s *Server) handleLogout(c *fiber.Ctx) error {
	fs, err := s.sessions.Get(c)
	if err != nil {
		return s.respondError(c, err)
	}

	if err := fs.Destroy(); err != nil {
		s.logger.Error("failed to destroy session", "error", err)
	}

	return c.JSON(fiber.Map{"success": true})
}

func (s *Server) handlePlans(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"plans":   orders.Catalog(),
	})
}

func (s *Server) handleMe(c *fiber.Ctx) error {
	user := currentUser(c)
	return c.JSON(fiber.Map{
		"success": true,
		"user": fiber.Map{
			"uid":       user.UID,
			"email":     user.Email,
			"phone":     user.Phone,
			"firstName": user.FirstName,
			"lastName":  user.LastName,
			"picture":   user.Picture,
			"balance":   user.Balance,
			"role":      user.Role,
		},
	})
}

func (s *Server) handleTransactions(c *fiber.Ctx) error {
	user := currentUser(c)

	history, err := s.repo.Transactions().HistoryFor(c.Context(), user.ID, store.HistoryDefaultLimit)
	if err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"details": history,
	})
}

func (s *Server) handleOrder(c *fiber.Ctx) error {
	user := currentUser(c)

	var input orders.OrderInput
	if err := c.BodyParser(&input); err != nil {
		return s.respondError(c, orders.ErrUnknownPlan)
	}

	receipt, err := s.orders.PlaceOrder(c.Context(), user, input)
	if err != nil {
		if errors.Is(err, orders.ErrPurchaseFailed) {
			ordersTotal.WithLabelValues("failed").Inc()
		}
		return s.respondError(c, err)
	}
	ordersTotal.WithLabelValues("completed").Inc()

	return c.JSON(fiber.Map{
		"success": true,
		"details": receipt,
	})
}

// withSession runs op against the request's session, persists the
// mutated session and renders ok on success.
func (s *Server) withSession(c *fiber.Ctx, op func(*account.Session) error, ok fiber.Map) error {
	fs, err := s.sessions.Get(c)
	if err != nil {
		return s.respondError(c, err)
	}

	sess := loadSession(fs)
	opErr := op(sess)

	if err := saveSession(fs, sess); err != nil {
		s.logger.Error("failed to persist session", "error", err)
	}

	if opErr != nil {
		return s.respondError(c, opErr)
	}
	return c.JSON(ok)
}
