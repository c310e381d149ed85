package cmd

import (
	"context"
	"os"
	"time"

	coreconfig "github.com/AzielCF/az-relay/core/config"
	coreDB "github.com/AzielCF/az-relay/core/database"
	domainBroadcast "github.com/AzielCF/az-relay/domains/broadcast"
	domainCrm "github.com/AzielCF/az-relay/domains/crm"
	domainEvents "github.com/AzielCF/az-relay/domains/events"
	domainInbound "github.com/AzielCF/az-relay/domains/inbound"
	domainLedger "github.com/AzielCF/az-relay/domains/ledger"
	domainProvider "github.com/AzielCF/az-relay/domains/provider"
	domainSession "github.com/AzielCF/az-relay/domains/session"
	"github.com/AzielCF/az-relay/infrastructure/events"
	"github.com/AzielCF/az-relay/infrastructure/valkey"
	"github.com/AzielCF/az-relay/integrations/replygen"
	"github.com/AzielCF/az-relay/pkg/crypto"
	"github.com/AzielCF/az-relay/pkg/logger"
	"github.com/AzielCF/az-relay/pkg/msgworker"
	"github.com/AzielCF/az-relay/pkg/relaymonitor"
	"github.com/AzielCF/az-relay/pkg/utils"
	"github.com/AzielCF/az-relay/repository"
	"github.com/AzielCF/az-relay/ui/websocket"
	"github.com/AzielCF/az-relay/usecase"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/gorm"
)

var (
	appConfig *coreconfig.Config
	serverID  string

	// Infrastructure
	db            *gorm.DB
	vkClient      *valkey.Client
	amqpPublisher *events.AMQPPublisher
	inboundPool   *msgworker.MessageWorkerPool
	monitor       *relaymonitor.Monitor

	// Stores
	channelRepo    *repository.ChannelGormRepository
	tokenBlacklist domainSession.ITokenBlacklist
	resolver       *usecase.CredentialResolver

	// Usecase
	broadcastUsecase  domainBroadcast.IBroadcastUsecase
	inboundUsecase    domainInbound.IInboundUsecase
	channelOpsUsecase domainProvider.IChannelOpsUsecase
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "az-relay",
	Short: "Multi-tenant WhatsApp dispatch and inbound relay",
	Long: `az-relay sends paced broadcasts through the WhatsApp Cloud API or an
Evolution-style bridge, and normalizes inbound webhooks from both into one
conversation history.`,
}

func init() {
	// Load .env before flags so defaults reflect it
	utils.LoadConfig(".")

	time.Local = time.UTC

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	initFlags()

	cobra.OnInitialize(initEnvConfig, initApp)
}

func initFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("port", "p", "", "change port number with --port <number> | example: --port=8080")
	flags.BoolP("debug", "d", false, "hide or displaying log with --debug <true/false> | example: --debug=true")
	flags.String("db-driver", "", `database driver --db-driver <sqlite|postgres> | example: --db-driver="postgres"`)
	flags.String("base-path", "", `base path for subpath deployment --base-path <string> | example: --base-path="/relay"`)
	flags.Int("message-workers", 0, "number of concurrent inbound workers --message-workers <number> | example: --message-workers=30 (default: 20)")

	_ = viper.BindPFlag("app_port", flags.Lookup("port"))
	_ = viper.BindPFlag("app_debug", flags.Lookup("debug"))
	_ = viper.BindPFlag("db_driver", flags.Lookup("db-driver"))
	_ = viper.BindPFlag("app_base_path", flags.Lookup("base-path"))
	_ = viper.BindPFlag("message_worker_pool_size", flags.Lookup("message-workers"))
}

// initEnvConfig loads configuration from the environment, then applies the
// command line flags on top.
func initEnvConfig() {
	cfg, err := coreconfig.LoadConfig()
	if err != nil {
		logrus.Fatalf("[CONFIG] %v", err)
	}

	if viper.IsSet("app_port") && viper.GetString("app_port") != "" {
		cfg.App.Port = viper.GetString("app_port")
	}
	if viper.IsSet("app_debug") && viper.GetBool("app_debug") {
		cfg.App.Debug = true
		cfg.Log.Level = "debug"
	}
	if viper.IsSet("db_driver") && viper.GetString("db_driver") != "" {
		cfg.Database.Driver = viper.GetString("db_driver")
	}
	if viper.IsSet("app_base_path") && viper.GetString("app_base_path") != "" {
		cfg.App.BasePath = viper.GetString("app_base_path")
	}
	if viper.IsSet("message_worker_pool_size") && viper.GetInt("message_worker_pool_size") > 0 {
		cfg.WorkerPool.Size = viper.GetInt("message_worker_pool_size")
	}

	if err := logger.Init(cfg.Log); err != nil {
		logrus.Fatalf("[CONFIG] Failed to configure logging: %v", err)
	}
	appConfig = cfg
}

func initApp() {
	ctx := context.Background()

	if err := utils.CreateFolder(appConfig.Paths.Storages, appConfig.Paths.Statics, appConfig.Paths.Media); err != nil {
		logrus.Errorln(err)
	}
	serverID = utils.GetPersistentServerID(appConfig.App.ServerID, appConfig.Paths.Storages)

	var err error
	db, err = coreDB.NewDatabase(appConfig)
	if err != nil {
		logrus.Fatalf("[DB] %v", err)
	}
	if err := repository.AutoMigrate(ctx, db); err != nil {
		logrus.Fatalf("[DB] Failed to migrate schema: %v", err)
	}

	if appConfig.Database.ValkeyEnabled {
		vkClient, err = valkey.NewClient(valkey.ConfigFrom(appConfig.Database))
		if err != nil {
			logrus.Fatalf("[VALKEY] %v", err)
		}
		logrus.WithField("address", appConfig.Database.ValkeyAddress).Info("[VALKEY] Connected, shared stores enabled")
	}

	var (
		quotas domainLedger.IDailyQuotaStore
		dedup  domainInbound.IDeduplicator
	)
	if vkClient != nil {
		quotas = repository.NewValkeyQuotaStore(vkClient)
		dedup = repository.NewValkeyDeduplicator(vkClient, appConfig.Dispatch.InboundDedupTTL)
		tokenBlacklist = repository.NewValkeyTokenBlacklist(vkClient)
	} else {
		quotas = repository.NewQuotaGormStore(db)
		dedup = repository.NewMemoryDeduplicator(appConfig.Dispatch.InboundDedupTTL)
		tokenBlacklist = repository.NewMemoryTokenBlacklist()
	}

	sealer, err := crypto.NewSealer(appConfig.Security.SecretKey)
	if err != nil {
		logrus.WithError(err).Warn("[SECURITY] Channel secrets are stored in plain text")
	}
	channelRepo = repository.NewChannelGormRepository(db).WithSecrets(sealer)
	leads := repository.NewLeadGormRepository(db)
	recorder := repository.NewConversationGormRecorder(db)
	campaigns := repository.NewCampaignGormRepository(db)

	resolver = usecase.NewCredentialResolver(appConfig.Providers)
	adapters := usecase.NewAdapterFactory(appConfig)
	publisher := newPublisher(ctx)

	var replies domainCrm.IReplyGenerator
	replies, err = replygen.New(appConfig.AI, recorder)
	if err != nil {
		logrus.WithError(err).Warn("[AI] Reply generation disabled")
	}

	broadcastUsecase = usecase.NewBroadcastService(usecase.BroadcastDeps{
		Channels:   channelRepo,
		Resolver:   resolver,
		Recipients: usecase.NewRecipientResolver(leads),
		Adapters:   adapters,
		Quotas:     quotas,
		Campaigns:  campaigns,
		Recorder:   recorder,
		Publisher:  publisher,
		Dispatch:   appConfig.Dispatch,
	})
	inboundUsecase = usecase.NewInboundService(usecase.InboundDeps{
		Channels:          channelRepo,
		Resolver:          resolver,
		Adapters:          adapters,
		Dedup:             dedup,
		Recorder:          recorder,
		Publisher:         publisher,
		Replies:           replies,
		VerifyToken:       appConfig.Providers.Official.VerifyToken,
		MediaLookupBudget: appConfig.Dispatch.MediaLookupBudget,
	})
	channelOpsUsecase = usecase.NewChannelOpsService(channelRepo, resolver, adapters)

	inboundPool = msgworker.NewMessageWorkerPool(appConfig.WorkerPool.Size, appConfig.WorkerPool.QueueSize)
	inboundPool.Start(ctx)
}

// newPublisher always feeds the activity monitor and the websocket hub, and
// adds the message bus when AMQP_URL is set. A bus that cannot be reached is
// logged and skipped.
func newPublisher(ctx context.Context) domainEvents.IPublisher {
	monitor = relaymonitor.New(appConfig.Monitor.BufferSize, appConfig.Monitor.TTL)
	publishers := events.Multi{monitor, websocket.Publisher{}}
	if appConfig.Events.AMQPURL == "" {
		return publishers
	}

	p, err := events.NewAMQPPublisher(ctx, appConfig.Events)
	if err != nil {
		logrus.WithError(err).Error("[EVENTS] AMQP unavailable, events go to websocket clients only")
		return publishers
	}
	amqpPublisher = p
	return append(publishers, p)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// StopApp performs a clean shutdown of the worker pool and every connection.
func StopApp() {
	logrus.Info("[APP] Stopping application...")

	if inboundPool != nil {
		inboundPool.Stop()
	}
	if amqpPublisher != nil {
		if err := amqpPublisher.Close(); err != nil {
			logrus.WithError(err).Warn("[EVENTS] Failed to close AMQP connection")
		}
	}
	if vkClient != nil {
		vkClient.Close()
	}
	if err := coreDB.Close(); err != nil {
		logrus.WithError(err).Warn("[DB] Failed to close database")
	}

	logrus.Info("[APP] Application stopped cleanly.")
}
