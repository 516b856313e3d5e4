package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	forseti "github.com/daztec2025/forseti-recorder"
	"github.com/daztec2025/forseti-recorder/internal/bridge"
	"github.com/daztec2025/forseti-recorder/internal/recorder"
)

var configPath string

func init() {
	flag.StringVar(&configPath, "c", "./config.yml", "config path")
	flag.Parse()
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	logger.SetLevel(logrus.DebugLevel)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	logger.Infof("Starting Forseti telemetry recorder")

	config, err := forseti.ReadConfig(configPath)

	if err != nil {
		logger.WithError(err).Fatalf("Could not read config at %s", configPath)
	}

	store, err := forseti.NewSessionStore(config.Storage.DataFile)

	if err != nil {
		logger.WithError(err).Fatal("Could not open session store")
	}

	defer store.Close()

	handoff, err := forseti.NewSessionHandoff(config.Storage.StagingDir)

	if err != nil {
		logger.WithError(err).Fatal("Could not initialise session handoff")
	}

	client := bridge.NewClient(config.Bridge.URL, config.Bridge.GetRequestTimeout())

	rec := recorder.New(recorder.Config{
		Client:       client,
		History:      store,
		Sink:         handoff,
		Profile:      config.Profile,
		Logger:       logger,
		ResolveTrack: forseti.ResolveTrackVariant,
	})

	bridgeProcess := forseti.NewBridgeProcess(config.Bridge.ScriptPath)

	httpServer := recorder.NewHTTP(config.HTTP.Port, rec, logger)
	httpServer.Handle("/debug", forseti.NewDebugger(config, bridgeProcess, store))

	ctx, cfn := context.WithCancel(context.Background())
	defer cfn()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	go func() {
		<-c
		logger.Infof("Shutting down")
		cfn()
	}()

	group, ctx := errgroup.WithContext(ctx)

	if config.Bridge.ScriptPath != "" {
		monitor := forseti.NewBridgeAvailabilityMonitor(
			config.Bridge.BundledRuntimePath,
			config.Bridge.GetRuntimeRetryWait(),
			config.Bridge.RuntimeRetryLimit,
		)

		group.Go(func() error {
			monitor.Start(ctx)
			return nil
		})

		group.Go(func() error {
			select {
			case runtimePath := <-monitor.Runtime():
				if err := bridgeProcess.Start(runtimePath); err != nil {
					logger.WithError(err).Error("Could not start bridge process")
				}
			case <-ctx.Done():
			}

			return nil
		})
	}

	// persist finished sessions locally: fetch each staged document
	// exactly once and store it as drill history. The recorder guarantees
	// delivery on Finalized, so no session slips through unpersisted.
	group.Go(func() error {
		for {
			select {
			case reference := <-rec.Finalized():
				doc, err := handoff.Fetch(reference)

				if err != nil {
					logger.WithError(err).Error("Could not fetch staged session")
					continue
				}

				if err := store.SaveSession(doc); err != nil {
					logger.WithError(err).Error("Could not persist session")
				} else {
					logger.Infof("Session persisted: %s / %s, %d laps", doc.SessionData.TrackName, doc.SessionData.CarName, len(doc.LapData))
				}
			case <-ctx.Done():
				return nil
			}
		}
	})

	group.Go(func() error {
		return rec.Run(ctx)
	})

	if err := httpServer.Listen(); err != nil {
		logger.WithError(err).Fatal("Could not start HTTP API")
	}

	err = group.Wait()

	if err != nil && err != context.Canceled {
		logger.WithError(err).Fatal("Recorder exited with error")
	}

	// ask the bridge to release the sim before killing it, so the next
	// recorder run starts from a clean connection.
	disconnectCtx, disconnectCfn := context.WithTimeout(context.Background(), config.Bridge.GetRequestTimeout())

	if err := client.Disconnect(disconnectCtx); err != nil {
		logger.WithError(err).Debug("Could not request bridge disconnect")
	}

	disconnectCfn()

	if err := bridgeProcess.Stop(); err != nil {
		logger.WithError(err).Error("Could not stop bridge process")
	}

	if err := httpServer.Close(); err != nil {
		logger.WithError(err).Error("Could not close HTTP API")
	}

	logger.Infof("Recorder stopped. Exiting")
}
