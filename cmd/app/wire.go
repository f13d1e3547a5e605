//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/gustwatch/gustwatch/internal/bootstrap"
	"github.com/gustwatch/gustwatch/internal/domain/weather"
	"github.com/gustwatch/gustwatch/internal/infra/config"
	httpiface "github.com/gustwatch/gustwatch/internal/interface/http"
	"github.com/gustwatch/gustwatch/pkg/logger"
)

func initializeApp() (*bootstrap.App, error) {
	wire.Build(
		config.Load,
		logger.New,
		provideClock,
		provideMetrics,
		provideWeatherConfig,
		provideWeatherProvider,
		weather.NewService,
		provideWeatherSource,
		provideSubscriberRepository,
		provideSuppressionStore,
		provideGate,
		provideSenders,
		provideDispatcher,
		provideTokenSigner,
		provideAlertService,
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil
}
