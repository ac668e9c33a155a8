package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"oebrowse/errors"
	"oebrowse/logging"
	"oebrowse/messaging"
	"oebrowse/messaging/natsjetstream"
	"oebrowse/record"
	"oebrowse/rpc"
	"oebrowse/schema/redisstore"
	"oebrowse/stub"
	"oebrowse/transport"
	"oebrowse/validation"
)

// cliParams 全局参数，未显式给出时取 OEBROWSE_* 环境变量
type cliParams struct {
	host     string
	port     int
	codec    string
	database string
	user     string
	password string
	logLevel string

	// useStub 在进程内启动演示桩服务并连接它
	useStub bool
	// redisAddr 非空时在 Redis 中共享字段结构
	redisAddr string
	// natsURL 非空时把记录变更发布到 JetStream
	natsURL string
}

func envString(name, def string) string {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		return v
	}
	return def
}

func envInt(name string, def int) int {
	if v, ok := os.LookupEnv(name); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(name string) bool {
	b, _ := strconv.ParseBool(os.Getenv(name))
	return b
}

var logLevels = []string{"debug", "info", "warn", "error"}

func newRootCmd() *cobra.Command {
	params := &cliParams{}
	cmd := &cobra.Command{
		Use:           "oebrowse",
		Short:         "Browse and edit records of a remote object service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := validation.ValidateEnum(params.logLevel, "log-level", logLevels); err != nil {
				return err
			}
			logging.SetLogger(logging.NewWriterLogger(os.Stderr, "oebrowse", logging.ParseLevel(params.logLevel)))
			return nil
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true

	flags := cmd.PersistentFlags()
	flags.StringVar(&params.host, "host", envString("OEBROWSE_HOST", "localhost"), "server host")
	flags.IntVar(&params.port, "port", envInt("OEBROWSE_PORT", 8070), "server port")
	flags.StringVar(&params.codec, "codec", envString("OEBROWSE_CODEC", "pickle"), "payload codec (pickle|msgpack)")
	flags.StringVarP(&params.database, "db", "d", envString("OEBROWSE_DB", "demo"), "database name")
	flags.StringVarP(&params.user, "user", "u", envString("OEBROWSE_USER", "admin"), "login")
	flags.StringVarP(&params.password, "password", "p", envString("OEBROWSE_PASSWORD", "admin"), "password")
	flags.StringVar(&params.logLevel, "log-level", envString("OEBROWSE_LOG_LEVEL", "warn"), "debug|info|warn|error")
	flags.BoolVar(&params.useStub, "stub", envBool("OEBROWSE_STUB"), "start an in-process demo server and use it")
	flags.StringVar(&params.redisAddr, "redis", envString("OEBROWSE_REDIS", ""), "redis address for the shared schema store")
	flags.StringVar(&params.natsURL, "nats", envString("OEBROWSE_NATS", ""), "NATS URL for record change events")

	cmd.AddCommand(
		newVersionCmd(),
		newDatabasesCmd(params),
		newFieldsCmd(params),
		newReadCmd(params),
		newSearchCmd(params),
		newNameSearchCmd(params),
		newCreateCmd(params),
		newWriteCmd(params),
		newUnlinkCmd(params),
		newCallCmd(params),
		newServeCmd(params),
		newWatchCmd(params),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "oebrowse", version)
		},
	}
}

// session 一次命令执行期间的客户端与类工厂
type session struct {
	client  *rpc.Client
	factory *record.Factory
	db      string

	cleanups []func()
}

func (s *session) close() {
	for i := len(s.cleanups) - 1; i >= 0; i-- {
		s.cleanups[i]()
	}
}

func (s *session) model(ctx context.Context, name string) (*record.Model, error) {
	return s.factory.Get(ctx, s.db, name)
}

// connect 建立客户端，不登录
func connect(ctx context.Context, p *cliParams) (*session, error) {
	codec, err := transport.LookupCodec(p.codec)
	if err != nil {
		return nil, err
	}
	s := &session{db: p.database}

	host, port := p.host, p.port
	if p.useStub {
		srv, err := stub.Start(ctx, stub.Config{
			Addr:      "127.0.0.1:0",
			Codec:     codec,
			Databases: []string{p.database},
			Users:     []stub.User{{ID: 1, Login: p.user, Password: p.password, Lang: "en_US", TZ: "UTC"}},
			Seed:      true,
		})
		if err != nil {
			return nil, err
		}
		s.cleanups = append(s.cleanups, func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		})
		h, portText, _ := net.SplitHostPort(srv.Addr())
		host = h
		port, _ = strconv.Atoi(portText)
	}

	client, err := rpc.Dial(transport.Config{Host: host, Port: port, Codec: codec})
	if err != nil {
		s.close()
		return nil, err
	}
	s.client = client
	return s, nil
}

// openSession 连接、登录并创建类工厂
func openSession(ctx context.Context, p *cliParams) (*session, error) {
	s, err := connect(ctx, p)
	if err != nil {
		return nil, err
	}

	ok, err := s.client.Login(ctx, p.database, p.user, p.password)
	if err != nil {
		s.close()
		return nil, err
	}
	if !ok {
		s.close()
		return nil, errors.Precondition("login refused for %s on %s", p.user, p.database)
	}

	cfg := record.Config{Client: s.client}
	if p.redisAddr != "" {
		store := redisstore.New(redisstore.Config{Addr: p.redisAddr})
		s.cleanups = append(s.cleanups, func() { _ = store.Close() })
		cfg.Store = store
	}
	if p.natsURL != "" {
		events := natsjetstream.NewTransport(natsjetstream.Config{URL: p.natsURL})
		if err := events.Start(ctx); err != nil {
			s.close()
			return nil, err
		}
		s.cleanups = append(s.cleanups, func() { _ = events.Close() })
		bus := messaging.NewMessageBus(events)
		bus.Use(messaging.LoggingMiddleware{Logger: logging.Component("events")})
		cfg.Publisher = bus
	}

	s.factory, err = record.NewFactory(cfg)
	if err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

// withSession 为 RunE 打开会话并在结束后释放
func withSession(p *cliParams, fn func(ctx context.Context, s *session, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx, p)
		if err != nil {
			return err
		}
		defer s.close()
		return fn(ctx, s, cmd, args)
	}
}
