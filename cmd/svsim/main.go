// Command svsim runs the seed-vault and wallet-adapter simulator behind an
// HTTP facade.
//
// @title           Seed Vault Simulator API
// @version         1.0
// @description     Simulated hardware-backed key custody and mobile-wallet-adapter signing for dApp development.
// @BasePath        /
package main

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/akarpov/svsim/internal/api"
	"github.com/akarpov/svsim/internal/approval"
	"github.com/akarpov/svsim/internal/config"
	"github.com/akarpov/svsim/internal/device"
	"github.com/akarpov/svsim/internal/handler"
	"github.com/akarpov/svsim/internal/logger"
	"github.com/akarpov/svsim/internal/model"
	"github.com/akarpov/svsim/internal/mwa"
	"github.com/akarpov/svsim/internal/storage"
	"github.com/akarpov/svsim/internal/tracker"
	"github.com/akarpov/svsim/internal/vault"
)

func main() {
	if err := config.Init(); err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	cfg := config.Get()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		os.Stderr.WriteString("failed to build logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("svsim failed", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	v := vault.New(store, log)
	defer v.Close()
	if err := v.Initialize(ctx, model.VaultConfig{
		AutoLockTimeout:     cfg.AutoLockTimeout,
		ConfirmationTimeout: cfg.ConfirmationDelay,
		Network:             cfg.Network,
	}); err != nil {
		return err
	}

	// On an interactive terminal the vault unlocks at startup; otherwise
	// it stays locked until POST /vault/unlock.
	if err := config.PromptForPassword(); err != nil {
		log.Info("vault stays locked until unlocked via API", zap.String("reason", err.Error()))
	} else {
		password, err := config.GetVaultPasswordBytes()
		if err != nil {
			return err
		}
		err = v.Unlock(ctx, password)
		clear(password)
		if err != nil {
			return err
		}
	}

	var rng *rand.Rand
	if cfg.RandSeed != 0 {
		rng = rand.New(rand.NewSource(cfg.RandSeed))
	}
	approver := approval.NewSimulator(approval.Options{
		Delay:                  cfg.ApprovalDelay,
		BaseRejectionRate:      cfg.BaseRejectionRate,
		RiskWeight:             cfg.RiskWeight,
		AutoApproveMaxLamports: cfg.AutoApproveMaxLamports,
		HighValueLamports:      cfg.HighValueLamports,
		ApproveAll:             cfg.ApproveAll,
		Rand:                   rng,
	}, log)
	defer approver.Close()

	tr := tracker.New(tracker.Options{
		RetentionAge:  cfg.RetentionAge,
		MaxEntries:    cfg.RetentionMaxEntries,
		SweepInterval: cfg.RetentionSweepInterval,
	}, log)
	tr.StartSweeper()
	defer tr.StopSweeper()

	service := mwa.NewService(v, tr, approver, mwa.Options{IdleTimeout: cfg.SessionIdleTimeout}, log)
	defer service.Close()

	devices := device.NewOrchestrator(log)
	if _, err := devices.Launch("pixel-seedvault"); err != nil {
		log.Warn("failed to launch simulated device", zap.Error(err))
	}

	h := handler.New(v, service, tr, approver, devices, log)
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: api.SetupRouter(h),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http facade listening", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.StorageBackend {
	case "bolt":
		return storage.NewBoltStore(filepath.Join(cfg.StorageDir, "svsim.db"))
	case "mem":
		return storage.NewMemStore(), nil
	default:
		return storage.NewFileStore(cfg.StorageDir)
	}
}
