package service

import (
	"sync"
	"sync/atomic"

	"github.com/arpankumarde/havoc-machine/internal/adapter/adversary"
	"github.com/arpankumarde/havoc-machine/internal/adapter/artifact"
	"github.com/arpankumarde/havoc-machine/internal/adapter/target"
	"github.com/arpankumarde/havoc-machine/internal/config"
	"github.com/arpankumarde/havoc-machine/internal/repository"
	"github.com/arpankumarde/havoc-machine/policy"
)

type Service struct {
	store        store.Store
	adversary    adversary.Adversary
	targetDialer target.Dialer
	artifacts    artifact.Store
	policyEngine *policy.Engine
	config       *config.Config

	mu       sync.Mutex
	trackers map[string]*groupTracker
}

// groupTracker counts the sessions of one in-flight group that have not yet
// reached a terminal state.
type groupTracker struct {
	remaining int32
}

func (t *groupTracker) done() bool {
	return atomic.AddInt32(&t.remaining, -1) == 0
}

func New(store store.Store, adv adversary.Adversary, dialer target.Dialer, artifacts artifact.Store, policyEngine *policy.Engine, cfg *config.Config) *Service {
	return &Service{
		store:        store,
		adversary:    adv,
		targetDialer: dialer,
		artifacts:    artifacts,
		policyEngine: policyEngine,
		config:       cfg,
		trackers:     make(map[string]*groupTracker),
	}
}
