// Copyright 2026 The Retroflow Authors
// SPDX-License-Identifier: Apache-2.0

package retro

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/retroflow-foundation/retroflow/lib/address"
	"github.com/retroflow-foundation/retroflow/lib/authority"
	"github.com/retroflow-foundation/retroflow/lib/identity"
	"github.com/retroflow-foundation/retroflow/lib/schema/retro"
	"github.com/retroflow-foundation/retroflow/lib/store"
)

// InitRegistry creates the per-principal workflow registry with its
// counter at zero. Not idempotent: a second call for the same
// principal fails with ErrRegistryExists.
func (e *Engine) InitRegistry(ctx context.Context, auth authority.Authority) error {
	return e.records.Update(ctx, func(tx *store.Tx) error {
		principal, err := e.gate.Resolve(tx, auth)
		if err != nil {
			return err
		}

		registry := retro.Registry{Principal: principal}
		if err := e.insert(tx, retro.RegistryAddress(principal), &registry); err != nil {
			if errors.Is(err, store.ErrRecordExists) {
				return ErrRegistryExists
			}
			return err
		}

		e.logger.Info("registry initialized", "principal", principal)
		return nil
	})
}

// WorkflowConfig holds the creation parameters for a workflow.
type WorkflowConfig struct {
	// Categories are the note categories, 1–5 entries of at most 32
	// characters each.
	Categories []string

	// Allowlist is the initial participant set. Each entry gets an
	// allowlist record and an eagerly created membership record.
	Allowlist []identity.PublicKey

	// CreditBudget is the per-participant voting budget. Zero
	// selects the default (5).
	CreditBudget uint8

	// NoteCap is the per-participant note limit. Zero selects the
	// default (10).
	NoteCap uint8

	// AllowlistEnabled gates the allowlist join path and Setup-stage
	// allowlist management.
	AllowlistEnabled bool

	// OpenJoin gates the open join path. An open joiner is written
	// to the allowlist as a side effect, so the allowlist stays
	// authoritative for every participant afterward.
	OpenJoin bool
}

// CreateWorkflow creates a workflow at the address derived from
// (principal, registry counter), initializes it in Setup stage with
// the caller as facilitator, bulk-creates allowlist and membership
// records for the initial allow-list, and increments the registry
// counter — all in one transaction.
func (e *Engine) CreateWorkflow(ctx context.Context, auth authority.Authority, cfg WorkflowConfig) (address.Address, error) {
	if len(cfg.Categories) == 0 {
		return address.Address{}, ErrNoCategories
	}
	if len(cfg.Categories) > retro.MaxCategories {
		return address.Address{}, ErrTooManyCategories
	}
	for _, category := range cfg.Categories {
		if utf8.RuneCountInString(category) > retro.MaxCategoryNameChars {
			return address.Address{}, fmt.Errorf("%w: %q", ErrCategoryNameTooLong, category)
		}
	}
	if len(cfg.Allowlist) > retro.MaxParticipants {
		return address.Address{}, ErrAllowlistTooLarge
	}
	if !cfg.AllowlistEnabled && !cfg.OpenJoin && len(cfg.Allowlist) == 0 {
		// No join path and no seeded participants: nobody could
		// ever act on this workflow.
		return address.Address{}, ErrNoParticipants
	}

	creditBudget := cfg.CreditBudget
	if creditBudget == 0 {
		creditBudget = retro.DefaultCreditBudget
	}
	noteCap := cfg.NoteCap
	if noteCap == 0 {
		noteCap = retro.DefaultNoteCap
	}

	var workflowAddr address.Address
	err := e.records.Update(ctx, func(tx *store.Tx) error {
		principal, err := e.gate.Resolve(tx, auth)
		if err != nil {
			return err
		}

		registryAddr := retro.RegistryAddress(principal)
		registry, err := load[retro.Registry](tx, registryAddr, ErrRegistryNotFound)
		if err != nil {
			return err
		}
		if registry.Principal != principal {
			return ErrNotPrincipal
		}

		now := e.clock.Now().Unix()
		workflowAddr = retro.WorkflowAddress(principal, registry.WorkflowCount)
		workflow := retro.Workflow{
			Principal:        principal,
			Facilitator:      principal,
			Index:            registry.WorkflowCount,
			Stage:            retro.StageSetup,
			Categories:       cfg.Categories,
			NoteCap:          noteCap,
			CreditBudget:     creditBudget,
			AllowlistEnabled: cfg.AllowlistEnabled,
			OpenJoin:         cfg.OpenJoin,
			CreatedAt:        now,
			StageChangedAt:   now,
		}

		for _, participant := range cfg.Allowlist {
			if participant.IsZero() {
				return fmt.Errorf("retro: zero identity in allowlist")
			}
			entry := retro.AllowlistEntry{
				Workflow:    workflowAddr,
				Participant: participant,
				Allowed:     true,
			}
			if err := e.insert(tx, retro.AllowlistAddress(workflowAddr, participant), &entry); err != nil {
				if errors.Is(err, store.ErrRecordExists) {
					return fmt.Errorf("%w: %s", ErrAlreadyAllowlisted, participant)
				}
				return err
			}
			membership := retro.Membership{
				Workflow:    workflowAddr,
				Participant: participant,
				Joined:      true,
			}
			if err := e.insert(tx, retro.MembershipAddress(workflowAddr, participant), &membership); err != nil {
				return err
			}
			workflow.ParticipantCount++
		}

		if err := e.insert(tx, workflowAddr, &workflow); err != nil {
			return err
		}

		next, ok := addUint64(registry.WorkflowCount, 1)
		if !ok {
			return ErrCounterOverflow
		}
		registry.WorkflowCount = next
		if err := e.save(tx, registryAddr, registry); err != nil {
			return err
		}

		e.logger.Info("workflow created",
			"workflow", workflowAddr,
			"principal", principal,
			"index", workflow.Index,
			"participants", workflow.ParticipantCount,
		)
		return nil
	})
	if err != nil {
		return address.Address{}, err
	}
	return workflowAddr, nil
}
