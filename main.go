package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fiffu/slotwatch/app"
	"github.com/fiffu/slotwatch/config"
	"github.com/fiffu/slotwatch/lib"
	"github.com/fiffu/slotwatch/lib/scheduler"
	"github.com/fiffu/slotwatch/senders"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	Version   = "dev"
	CommitSHA = "none"
)

func NewLogger() (*zap.Logger, error) {
	switch os.Getenv("ENVIRONMENT") {
	default:
		return zap.NewDevelopment()

	case "production":
		logCfg := zap.NewProductionConfig()
		logCfg.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			t = t.UTC()
			zapcore.ISO8601TimeEncoder(t, enc)
		}
		return logCfg.Build()
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler, the Telegram bot and the HTTP API",
		Run: func(cmd *cobra.Command, args []string) {
			fx.New(
				fx.Provide(NewLogger),
				fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
					return &fxevent.ZapLogger{Logger: log}
				}),
				fx.Provide(config.NewConfig),

				fx.Provide(app.NewTransport),
				fx.Provide(app.NewDatabase),
				fx.Provide(app.NewStore),

				fx.Provide(app.NewRenderer),
				fx.Provide(app.NewScraper),
				fx.Provide(app.NewTelegramClient),
				fx.Provide(senders.NewSenderRegistry),
				fx.Provide(app.NewNotifier),
				fx.Provide(app.NewScheduler),

				fx.Provide(lib.NewService),
				fx.Provide(app.NewAPI),
				fx.Provide(app.NewBot),

				fx.Invoke(func(*http.Server, *scheduler.Scheduler, *app.Bot) {}),
			).Run()
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("slotwatch %s (commit=%s)\n", Version, CommitSHA)
		},
	}
}

func main() {
	root := &cobra.Command{
		Use:   "slotwatch",
		Short: "Watches interview scheduling pages and notifies subscribers about new time slots",
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newCheckCmd())
	root.AddCommand(newVersionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
