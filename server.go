// SPDX-License-Identifier: GPL-3.0-only

package main

import (
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"whoistel/cache"
	"whoistel/commons"
	"whoistel/db"
	"whoistel/handlers"
	"whoistel/history"
	"whoistel/lookup"
	"whoistel/rabbitmq"
	"whoistel/routes"
)

func main() {
	commons.LoadEnvFile()
	commons.InitLogger()

	e := echo.New()
	e.HideBanner = true

	e.Logger.SetLevel(commons.Logger.Level())
	e.Logger.SetHeader("${time_rfc3339} ${level} ${short_file}:${line} -")

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logMsg := func(format string, args ...any) {
				switch {
				case v.Status >= 500:
					e.Logger.Errorf(format, args...)
				case v.Status >= 400:
					e.Logger.Warnf(format, args...)
				default:
					e.Logger.Infof(format, args...)
				}
			}
			logMsg("%s %s - %d - %.2fms - %s",
				v.Method,
				v.URI,
				v.Status,
				float64(v.Latency.Microseconds())/1000.0,
				v.RemoteIP,
			)
			return nil
		},
	}))
	debugMode := slices.Contains(os.Args[1:], "--debug")
	if debugMode {
		e.Logger.Warn("Debug mode is enabled.")
		e.Debug = true
		e.Logger.SetLevel(log.DEBUG)
		commons.Logger.SetLevel(log.DEBUG)
	}

	if commons.GetEnv("SECRET_KEY") == "" && !debugMode {
		e.Logger.Warn("SECRET_KEY is not set, flash cookies are signed with the default key.")
	}

	e.Use(middleware.Recover())

	renderer, err := handlers.NewTemplateRenderer()
	if err != nil {
		e.Logger.Fatal("Failed to parse templates: ", err)
	}
	e.Renderer = renderer
	e.HTTPErrorHandler = handlers.HTTPErrorHandler(e)

	snapshot := db.NewSnapshot(db.SnapshotPath())
	defer snapshot.Close()
	if err := snapshot.Reload(); err != nil {
		e.Logger.Warnf("Snapshot not loaded yet (%s): %v", snapshot.Path(), err)
	}
	go reloadOnHangup(snapshot)

	historyDB, err := db.OpenHistory()
	if err != nil {
		e.Logger.Fatal("Failed to open history database: ", err)
	}
	defer db.Close(historyDB)
	commons.Logger.Debug("Running history migrations")
	if err := db.MigrateHistory(historyDB); err != nil {
		e.Logger.Fatal("Failed to migrate history database: ", err)
	}

	var opts []lookup.Option
	if client := cache.OpenRedisFromEnv(); client != nil {
		defer client.Close()
		ttl := commons.GetEnvDuration("LOOKUP_CACHE_TTL", 24*time.Hour)
		opts = append(opts, lookup.WithCache(cache.NewLookupCache(client, ttl)))
	}

	h := &handlers.Handler{
		Lookup:  lookup.NewService(snapshot, opts...),
		Reports: history.NewStore(historyDB),
	}

	publisher, err := rabbitmq.NewPublisherFromEnv()
	if err != nil {
		e.Logger.Warn("Report events disabled: ", err)
	} else if publisher != nil {
		defer publisher.Close()
		h.Events = publisher
	}

	routes.RegisterRoutes(e, h, routes.OptionsFromEnv())

	port := commons.GetEnv("PORT")
	if port == "" {
		port = ":8080"
	}
	if port[0] != ':' {
		port = ":" + port
	}
	e.Logger.Fatal(e.Start(port))
}

func reloadOnHangup(snapshot *db.Snapshot) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	for range hup {
		commons.Logger.Info("SIGHUP received, reloading snapshot")
		if err := snapshot.Reload(); err != nil {
			commons.Logger.Error("Snapshot reload failed: ", err)
		}
	}
}
