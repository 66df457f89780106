package main

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"net/url"
	"os"
	"reflect"
	"strings"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/aukilabs/yggdrasil/featureflag"
	ygghttp "github.com/aukilabs/yggdrasil/http"
	"github.com/aukilabs/yggdrasil/models"
	"github.com/aukilabs/yggdrasil/modules"
	"github.com/aukilabs/yggdrasil/modules/eihwaz"
	"github.com/aukilabs/yggdrasil/smoketest"
	ywebsocket "github.com/aukilabs/yggdrasil/websocket"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

var (
	// The Yggdrasil version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "yggdrasil_info",
		Help:        "Yggdrasil information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string        `cli:""        env:"YGGDRASIL_ADDR"                 help:"Listening address for client connections."`
	AdminAddr          string        `cli:""        env:"YGGDRASIL_ADMIN_ADDR"           help:"Admin listening address."`
	PublicEndpoint     string        `cli:""        env:"YGGDRASIL_PUBLIC_ENDPOINT"      help:"The public endpoint where this Yggdrasil server is reachable."`
	ServerID           string        `cli:""        env:"YGGDRASIL_SERVER_ID"            help:"The identifier prefixed to global session ids."`
	PrivateKey         string        `cli:""        env:"YGGDRASIL_PRIVATE_KEY"          help:"The private key of a server-unique Ethereum-compatible wallet."`
	PrivateKeyFile     string        `cli:""        env:"YGGDRASIL_PRIVATE_KEY_FILE"     help:"The file that contains the private key of a server-unique Ethereum-compatible wallet."`
	AllowedSigners     []string      `cli:""        env:"YGGDRASIL_ALLOWED_SIGNERS"      help:"Comma separated wallet addresses allowed to sign user tokens. Empty disables authentication."`
	LogLevel           string        `cli:""        env:"YGGDRASIL_LOG_LEVEL"            help:"Log level (debug|info|warning|error)."`
	LogIndent          bool          `cli:""        env:"YGGDRASIL_LOG_INDENT"           help:"Indent logs."`
	SyncClockInterval  time.Duration `cli:",hidden" env:"YGGDRASIL_SYNC_CLOCK_INTERVAL"  help:"Client sync clock (heartbeat) message interval."`
	ClientIdleTimeout  time.Duration `cli:",hidden" env:"YGGDRASIL_CLIENT_IDLE_TIMEOUT"  help:"Time until an idle client will be disconnected"`
	FrameDuration      time.Duration `cli:",hidden" env:"YGGDRASIL_FRAME_DURATION"       help:"The duration of a session frame."`
	LogSummaryInterval time.Duration `cli:",hidden" env:"YGGDRASIL_LOG_SUMMARY_INTERVAL" help:"The duration between each log summary by connection."`
	Index              indexConfig   `cli:",hidden" env:"-"                              help:"Spatial index configuration."`
	Events             eventsConfig  `cli:",hidden" env:"-"                              help:"Event pusher configuration."`
	FeatureFlags       []string      `cli:",hidden" env:"YGGDRASIL_FEATURE_FLAGS"        help:"Comma separated feature flags"`
	Version            bool          `cli:""        env:"-"                              help:"Show version."`
	Help               bool          `cli:""        env:"-"                              help:"Show help."`
}

type indexConfig struct {
	Capacity         int `cli:",hidden" env:"YGGDRASIL_INDEX_CAPACITY"          help:"The initial per session volume capacity of the spatial index."`
	LeafSwaps        int `cli:",hidden" env:"YGGDRASIL_INDEX_LEAF_SWAPS"        help:"The number of randomized leaf swaps per optimization pass."`
	GrandchildTricks int `cli:",hidden" env:"YGGDRASIL_INDEX_GRANDCHILD_TRICKS" help:"The number of randomized grandchild rotations per optimization pass."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"YGGDRASIL_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed."`
	FlushInterval time.Duration `cli:",hidden" env:"YGGDRASIL_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"YGGDRASIL_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"YGGDRASIL_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:               ":4000",
		AdminAddr:          ":18190",
		PublicEndpoint:     "http://localhost:4000",
		ServerID:           "ygg",
		LogLevel:           logs.InfoLevel.String(),
		SyncClockInterval:  time.Second * 5,
		ClientIdleTimeout:  time.Minute * 5,
		FrameDuration:      time.Millisecond * 15,
		LogSummaryInterval: time.Minute,
		Index: indexConfig{
			Capacity: eihwaz.DefaultCapacity,
		},
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts Yggdrasil server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	privateKey, err := loadPrivateKey(conf)
	if err != nil {
		logs.Fatal(errors.New("error loading private key").Wrap(err))
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	transport := metrics.HTTPTransport(http.DefaultTransport)

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     transport,
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "yggdrasil",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	tokenVerifier := ygghttp.NewTokenVerifier(conf.AllowedSigners)

	var service http.ServeMux

	service.Handle("/health", ygghttp.HandleWithCORS(http.HandlerFunc(ygghttp.HandleHealthCheck)))
	service.Handle("/version", ygghttp.HandleWithCORS(http.HandlerFunc(ygghttp.HandleVersion(version))))

	service.HandleFunc("/smoke-test", ygghttp.VerifyAuthTokenHandler(tokenVerifier, smoketest.HandleSmokeTest(ctx, smoketest.Options{
		Endpoint:  conf.PublicEndpoint,
		UserAgent: fmt.Sprintf("Yggdrasil %s", version),
	})))

	readinessCheck := func() bool {
		return true
	}
	service.Handle("/ready", ygghttp.HandleWithCORS(http.HandlerFunc(ygghttp.HandleReadyCheck(readinessCheck))))

	sessions := models.SessionStore{
		ServerID: conf.ServerID,
	}

	service.Handle("/", ygghttp.HandleWithCORS(websocket.Server{
		Handshake: ygghttp.VerifyAuthToken(tokenVerifier),
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			var rh ywebsocket.Handler = &ywebsocket.RealtimeHandler{
				ClientSyncClockInterval: conf.SyncClockInterval,
				ClientIdleTimeout:       conf.ClientIdleTimeout,
				FrameDuration:           conf.FrameDuration,
				Sessions:                &sessions,
				Modules: []modules.Module{
					&eihwaz.Module{
						Capacity:                 conf.Index.Capacity,
						OptimizeLeafSwaps:        conf.Index.LeafSwaps,
						OptimizeGrandchildTricks: conf.Index.GrandchildTricks,
						FeatureFlags:             featureflag.New(conf.FeatureFlags),
					},
				},
				FeatureFlags: featureflag.New(conf.FeatureFlags),
			}
			h := ywebsocket.HandlerWithLogs(rh, conf.LogSummaryInterval)
			h = ywebsocket.HandlerWithMetrics(h, conf.PublicEndpoint)
			defer h.Close()

			ywebsocket.Handle(ctx, conn, h)
		},
	}))

	service.Handle("/ping", websocket.Server{
		Handler: func(ws *websocket.Conn) {
			defer ws.Close()
			io.Copy(ws, ws)
		},
	})

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", ygghttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))
	admin.HandleFunc("/ready", ygghttp.HandleReadyCheck(readinessCheck))

	startLog := logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("endpoint", conf.PublicEndpoint).
		WithTag("server_id", conf.ServerID)
	if privateKey != nil {
		walletAddress := strings.ToLower(crypto.PubkeyToAddress(privateKey.PublicKey).Hex())
		startLog = startLog.WithTag("wallet_address", walletAddress)
	}
	startLog.Info("starting yggdrasil server")

	ygghttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
			ygghttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)
}

// loadPrivateKey returns the server wallet key, nil when none is configured.
func loadPrivateKey(conf config) (*ecdsa.PrivateKey, error) {
	privateKey := conf.PrivateKey

	if len(conf.PrivateKeyFile) != 0 {
		privateKeyBytes, err := os.ReadFile(conf.PrivateKeyFile)
		if err != nil {
			return nil, errors.New("error loading private key from file").
				WithTag("file_name", conf.PrivateKeyFile).
				Wrap(err)
		}
		privateKey = string(privateKeyBytes)
	}

	privateKey = strings.TrimPrefix(strings.TrimSpace(privateKey), "0x")

	if len(privateKey) == 0 {
		return nil, nil
	}

	return crypto.HexToECDSA(privateKey)
}

func validateConfig(conf config) error {
	if _, err := url.ParseRequestURI(conf.PublicEndpoint); err != nil {
		return errors.New("invalid public endpoint").Wrap(err)
	}

	if conf.ServerID == "" {
		return errors.New("server id is empty")
	}

	if len(conf.PrivateKey) != 0 &&
		len(conf.PrivateKeyFile) != 0 {
		return errors.New("have to specify either private key or private key file, not both")
	}

	return nil
}
