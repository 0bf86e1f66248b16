package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fatfood/internal/config"
	"fatfood/internal/handler"
	"fatfood/internal/infra/db"
	"fatfood/internal/infra/notify"
	infraRepo "fatfood/internal/infra/repository"
	"fatfood/internal/logger"
	"fatfood/internal/server"
	"fatfood/internal/usecase"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/plutov/paypal/v4"
	"github.com/spf13/cobra"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type uuidGenerator struct{}

func (g *uuidGenerator) NewID() string {
	return uuid.NewString()
}

type realClock struct{}

func (c *realClock) Now() time.Time {
	return time.Now()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "fatfood",
		Short:         "FatFood order and payment API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			//.envは無くてもよい（本番は環境変数のみ）
			_ = godotenv.Load(envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	root.AddCommand(newServeCmd(), newMigrateCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, gormDB, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			if migrate {
				if err := db.Migrate(gormDB); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e, cleanup, err := buildServer(ctx, cfg, log, gormDB)
			if err != nil {
				return err
			}
			defer cleanup()

			return server.Start(ctx, e, cfg.Addr(), log)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "run AutoMigrate before serving")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, gormDB, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			if err := db.Migrate(gormDB); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			log.Info("migration completed")
			return nil
		},
	}
}

func bootstrap() (config.Config, *zap.Logger, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	log, err := logger.New(cfg.GoEnv)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	gormDB, err := db.Connect(cfg.DSN(), log)
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("db connect: %w", err)
	}
	return cfg, log, gormDB, nil
}

// 依存の組み立て。SDKクライアントはここで1回だけ作って渡す
func buildServer(ctx context.Context, cfg config.Config, log *zap.Logger, gormDB *gorm.DB) (*echo.Echo, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	//Repository（GORM実装）生成
	orderRepo := infraRepo.NewOrderGormRepository(gormDB)
	paymentRepo := infraRepo.NewPaymentGormRepository(gormDB)
	cartRepo := infraRepo.NewCartGormRepository(gormDB)
	shiftRepo := infraRepo.NewStaffShiftGormRepository(gormDB)
	auditRepo := infraRepo.NewAuditLogGormRepository(gormDB)
	txm := infraRepo.NewTxManagerGorm(gormDB)

	//usecaseに渡す部品
	idGen := &uuidGenerator{}
	clock := &realClock{}

	//通知先（設定があるものだけ）
	targets := []usecase.Notifier{notify.NewLogNotifier(log)}
	if cfg.RedisAddr != "" {
		rdb, err := notify.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, func() {}, err
		}
		closers = append(closers, func() { _ = rdb.Close() })
		targets = append(targets, notify.NewRedisNotifier(rdb))
	}
	if cfg.AMQPURL != "" {
		mq, err := notify.DialAMQP(cfg.AMQPURL)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		closers = append(closers, func() { _ = mq.Close() })
		targets = append(targets, mq)
	}
	notifier := notify.NewMulti(targets...)

	audit := usecase.NewAuditRecorder(auditRepo, clock, log)
	staff := usecase.NewStaffAssignment(shiftRepo, orderRepo, audit, clock)
	carts := usecase.NewCartUsecase(cartRepo)
	fulfillment := usecase.NewFulfillment(carts, staff, audit, notifier, log)
	reconciler := usecase.NewReconciler(txm, fulfillment, clock, log)

	//PayPal / Stripe のクライアントは設定があるときだけ
	var paypalAPI usecase.PaypalAPI
	if cfg.PayPal.Ready() {
		base := paypal.APIBaseSandBox
		if cfg.PayPal.Mode == "live" {
			base = paypal.APIBaseLive
		}
		pc, err := paypal.NewClient(cfg.PayPal.ClientID, cfg.PayPal.ClientSecret, base)
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("paypal client: %w", err)
		}
		paypalAPI = pc
	}
	var stripeIntents usecase.StripeIntents
	if cfg.Stripe.Ready() {
		sc := &client.API{}
		sc.Init(cfg.Stripe.SecretKey, nil)
		stripeIntents = sc.PaymentIntents
	}

	//Usecase生成
	orderUC := usecase.NewOrderUsecase(txm, audit, notifier, clock, log)
	vnpayUC := usecase.NewVNPayUsecase(cfg.VNPay, orderRepo, paymentRepo, reconciler, clock, log)
	paypalUC := usecase.NewPaypalUsecase(cfg.PayPal, paypalAPI, orderRepo, paymentRepo, reconciler, log)
	stripeUC := usecase.NewStripeUsecase(cfg.Stripe, stripeIntents, orderRepo, paymentRepo, reconciler, log)
	codUC := usecase.NewCODUsecase(orderRepo, paymentRepo, staff, idGen, log)
	vietqrUC := usecase.NewVietQRUsecase(cfg.VietQR, orderRepo, paymentRepo, idGen, clock, log)

	//Handler生成
	e := server.New(cfg, log, server.Handlers{
		Orders:  handler.NewOrderHandler(orderUC),
		VNPay:   handler.NewVNPayHandler(vnpayUC),
		Paypal:  handler.NewPaypalHandler(paypalUC),
		Stripe:  handler.NewStripeHandler(stripeUC),
		Offline: handler.NewOfflinePaymentHandler(codUC, vietqrUC),
	})
	return e, cleanup, nil
}
