package services

import (
	"os"
	"strconv"
	"time"

	"github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"

	"github.com/folio-gate/gate_api/dto"
	"github.com/folio-gate/gate_api/model"
	"github.com/folio-gate/gate_api/services/repositories"
)

// BlacklistService tracks abuse violations per IP. Entries move through
// clean -> flagged -> blocked -> reinstated; they are never deleted, so the
// violation history survives reinstatement.
type BlacklistService struct {
	context.DefaultService

	repo *repositories.BlacklistRepository

	blockThreshold     int
	autoReinstateAfter time.Duration

	closed chan struct{}
}

const BLACKLIST_SVC = "blacklist_svc"

func (svc BlacklistService) Id() string {
	return BLACKLIST_SVC
}

func (svc *BlacklistService) Configure(ctx *context.Context) error {
	svc.blockThreshold = 5
	if raw := os.Getenv("BLACKLIST_BLOCK_THRESHOLD"); raw != "" {
		if threshold, err := strconv.Atoi(raw); err == nil && threshold > 0 {
			svc.blockThreshold = threshold
		}
	}

	// Zero disables the automatic sweep; blocks then only lift manually.
	if raw := os.Getenv("BLACKLIST_AUTO_REINSTATE_DAYS"); raw != "" {
		if days, err := strconv.Atoi(raw); err == nil && days > 0 {
			svc.autoReinstateAfter = time.Duration(days) * 24 * time.Hour
		}
	}

	return svc.DefaultService.Configure(ctx)
}

func (svc *BlacklistService) Start() error {
	sqlSvc := svc.Service(POSTGRES_SVC).(*PostgresService)
	svc.repo = sqlSvc.Blacklist()

	svc.closed = make(chan struct{})
	if svc.autoReinstateAfter > 0 {
		go svc.startReinstateJob()
	}

	return nil
}

func (svc *BlacklistService) Shutdown() {
	close(svc.closed)
}

// IsBlacklisted is a pure read; it is checked before rate limiting so
// blocked IPs never consume quota.
func (svc *BlacklistService) IsBlacklisted(ip string) (*dto.BlacklistCheck, error) {
	entry, err := svc.repo.Get(ip)
	if err != nil {
		return nil, err
	}

	if entry == nil || !entry.Blocked() {
		return &dto.BlacklistCheck{Blacklisted: false}, nil
	}

	return &dto.BlacklistCheck{
		Blacklisted:    true,
		Reason:         entry.Reason,
		ViolationCount: entry.ViolationCount,
	}, nil
}

// RecordViolation increments the counter for ip, creating the entry on the
// first offense. The increment is atomic; concurrent violations from the
// same IP each land.
func (svc *BlacklistService) RecordViolation(ip, reason, metadata string) (*model.IPBlacklistEntry, error) {
	entry, err := svc.repo.RecordViolation(ip, reason, metadata, svc.blockThreshold)
	if err != nil {
		return nil, err
	}

	logEntry := log.WithFields(log.Fields{
		"ip":         ip,
		"reason":     reason,
		"violations": entry.ViolationCount,
	})

	if entry.Blocked() && entry.ViolationCount == svc.blockThreshold {
		logEntry.Warn("IP blocked after crossing violation threshold")
	} else {
		logEntry.Info("IP violation recorded")
	}

	return entry, nil
}

// Reinstate lifts a block by explicit administrative action.
func (svc *BlacklistService) Reinstate(ip, by string) (*model.IPBlacklistEntry, error) {
	entry, err := svc.repo.Reinstate(ip, by)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"ip": ip,
		"by": by,
	}).Info("IP reinstated")

	return entry, nil
}

func (svc *BlacklistService) List(blockedOnly bool) ([]model.IPBlacklistEntry, error) {
	return svc.repo.List(blockedOnly)
}

func (svc *BlacklistService) startReinstateJob() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-svc.autoReinstateAfter)
			reinstated, err := svc.repo.AutoReinstate(cutoff)
			if err != nil {
				log.Printf("Blacklist auto-reinstate error: %v", err)
			} else if reinstated > 0 {
				log.WithField("reinstated", reinstated).Info("Auto-reinstated expired blocks")
			}
		case <-svc.closed:
			return
		}
	}
}
