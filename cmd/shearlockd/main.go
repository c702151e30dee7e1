package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopfloor/shearlock/internal/config"
	"github.com/shopfloor/shearlock/internal/db"
	"github.com/shopfloor/shearlock/internal/httpapi"
	"github.com/shopfloor/shearlock/internal/hw"
	"github.com/shopfloor/shearlock/internal/shear/broadcast"
	"github.com/shopfloor/shearlock/internal/shear/iomon"
	"github.com/shopfloor/shearlock/internal/shear/lock"
	"github.com/shopfloor/shearlock/internal/shear/service"
	"github.com/shopfloor/shearlock/internal/shear/store/sqlite"
	"github.com/shopfloor/shearlock/internal/shear/types"
)

func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "shearlockd ", log.LstdFlags|log.LUTC)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sqlDB, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer sqlDB.Close()

	if cfg.Env == "dev" {
		if err := db.SeedDev(ctx, sqlDB); err != nil {
			logger.Fatalf("seed dev data: %v", err)
		}
	}

	writer := db.NewWorker(sqlDB)
	defer writer.Close()

	users := sqlite.NewUserStore(sqlDB, writer)
	audit := sqlite.NewScanEventStore(sqlDB, writer)

	settings, err := config.LoadSettings(cfg.SettingsPath)
	if err != nil {
		logger.Fatalf("load settings: %v", err)
	}

	queue := broadcast.NewQueue()

	// Hardware backends.  "sim" wires in-process stand-ins so the whole
	// stack runs on a dev machine; "none" skips the device loops.
	var (
		reader hw.ReportReader
		daq    hw.DAQ
	)
	switch cfg.Hardware {
	case "sim":
		simReader := hw.NewSimReader()
		simDAQ := hw.NewSimDAQ()
		_ = simReader.Connect()
		_ = simDAQ.Connect()
		reader = simReader
		daq = simDAQ
	case "none":
		// API-only operation.
	}

	var outputs hw.Outputs = nopOutputs{}
	if daq != nil {
		outputs = daq
	}

	controller := lock.New(lock.Config{
		Outputs:  outputs,
		Audit:    audit,
		Queue:    queue,
		Logger:   logger,
		Settings: settings,
		Persist: func(s types.Settings) error {
			return config.SaveSettings(cfg.SettingsPath, s)
		},
	})
	defer controller.Close()

	accessSvc := service.New(service.Config{
		Users:  users,
		Audit:  audit,
		Queue:  queue,
		Lock:   controller,
		Logger: logger,
	})

	if reader != nil {
		readerLoop := hw.NewReaderLoop(reader, hw.ReaderLoopConfig{
			PollInterval:  cfg.ReaderPollInterval,
			RetryInterval: cfg.ReconnectInterval,
		}, func(scan types.CardScan) {
			accessSvc.HandleScan(ctx, scan)
		}, logger)
		readerLoop.Start(ctx)
		defer readerLoop.Stop()
	}

	if daq != nil {
		monitor := iomon.New(daq, iomon.Config{
			DigitalChannels: types.MotionChannels,
			PollInterval:    cfg.InputPollInterval,
			RetryInterval:   cfg.ReconnectInterval,
		}, controller.HandleInputChange, logger)
		monitor.Start(ctx)
		defer monitor.Stop()
	}

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:     logger,
		Addr:       cfg.HTTPAddr,
		Controller: controller,
		Audit:      audit,
		Queue:      queue,
	})

	go func() {
		logger.Printf("listening on %s (env=%s, hardware=%s)", cfg.HTTPAddr, cfg.Env, cfg.Hardware)
		if err := srv.Start(); err != nil {
			logger.Printf("server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// nopOutputs discards output commands when no DAQ is configured.
type nopOutputs struct{}

func (nopOutputs) SetDigitalOutput(string, bool) error { return nil }
