package main

import (
	"context"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v4"

	"github.com/susnake/Lyssa/internal/access"
	"github.com/susnake/Lyssa/internal/api"
	"github.com/susnake/Lyssa/internal/cas"
	"github.com/susnake/Lyssa/internal/config"
	"github.com/susnake/Lyssa/internal/logging"
	"github.com/susnake/Lyssa/internal/monitor"
	"github.com/susnake/Lyssa/internal/platform"
	"github.com/susnake/Lyssa/internal/scheduler"
	"github.com/susnake/Lyssa/internal/settings"
	"github.com/susnake/Lyssa/internal/verify"
)

func main() {
	config.SetupCommon()
	logging.Init()

	cfg := config.New()
	logrus.Debugf("config: %+v", cfg)

	store := settings.NewStore(cfg.SettingsFile)
	if err := store.Load(); err != nil {
		logrus.Fatalf("Failed to load settings: %v", err)
	}

	bot, err := telebot.NewBot(telebot.Settings{
		Token: cfg.TelegramToken,
		Poller: &telebot.LongPoller{
			Timeout: 10 * time.Second,
		},
	})
	if err != nil {
		logrus.Fatalf("Failed to create bot: %v", err)
	}

	engine := verify.New(store, platform.New(bot), scheduler.New(), cfg.BotHandleTimeout)
	checker := access.NewChecker(bot)
	casClient := cas.New(cfg.CASBaseURL)

	mon := monitor.New(cfg, store, bot, engine, checker, casClient)

	for _, updateType := range []string{
		telebot.OnText,
		telebot.OnUserJoined,
		telebot.OnUserLeft,
	} {
		bot.Handle(updateType, mon.HandleAnyUpdate)
	}
	bot.Handle(telebot.OnCallback, mon.HandleCallback)

	bot.Handle("/help", mon.HandleHelpCommand)
	bot.Handle("/captcha", mon.HandleCaptchaCommand)
	bot.Handle("/timeLimit", mon.HandleTimeLimitCommand)
	bot.Handle("/lock", mon.HandleLockCommand)
	bot.Handle("/banUsers", mon.HandleBanUsersCommand)
	bot.Handle("/cas", mon.HandleCASCommand)
	bot.Handle("/buttonText", mon.HandleButtonTextCommand)
	bot.Handle("/captchaMessage", mon.HandleCaptchaMessageCommand)
	bot.Handle("/viewConfig", mon.HandleViewConfigCommand)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	e := echo.New()
	e.HideBanner = true
	api.NewService(store, engine).Register(e)

	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		bot.Start()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := e.Start(cfg.OpsListenAddr); err != nil && err != http.ErrServerClosed {
			logrus.Errorf("ops server stopped: %v", err)
		}
	}()

	<-ctx.Done()

	bot.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("shutting down ops server: %v", err)
	}

	logrus.Info("waiting for services to finish")
	wg.Wait()
}
