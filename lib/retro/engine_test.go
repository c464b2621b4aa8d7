// Copyright 2026 The Retroflow Authors
// SPDX-License-Identifier: Apache-2.0

package retro

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/retroflow-foundation/retroflow/lib/address"
	"github.com/retroflow-foundation/retroflow/lib/authority"
	"github.com/retroflow-foundation/retroflow/lib/clock"
	"github.com/retroflow-foundation/retroflow/lib/identity"
	"github.com/retroflow-foundation/retroflow/lib/schema/retro"
	"github.com/retroflow-foundation/retroflow/lib/session"
	"github.com/retroflow-foundation/retroflow/lib/store"
	"github.com/retroflow-foundation/retroflow/lib/testutil"
)

type fixture struct {
	engine      *Engine
	tokens      *session.Store
	records     *store.Store
	clock       *clock.FakeClock
	service     identity.PublicKey
	facilitator identity.PublicKey
	alice       identity.PublicKey
	bob         identity.PublicKey
	carol       identity.PublicKey
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	records, err := store.Open(store.Config{Path: testutil.DBPath(t), PoolSize: 1})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { records.Close() })

	fake := clock.Fake(time.Date(2026, 5, 11, 9, 0, 0, 0, time.UTC))

	key := func() identity.PublicKey {
		kp, err := identity.Generate()
		if err != nil {
			t.Fatalf("identity.Generate: %v", err)
		}
		return kp.Public
	}
	service := key()

	tokens, err := session.New(session.Config{Records: records, Owner: service, Clock: fake})
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	gate, err := authority.NewGate(service, service, fake)
	if err != nil {
		t.Fatalf("authority.NewGate: %v", err)
	}
	engine, err := New(Config{Records: records, Gate: gate, Clock: fake, Self: service})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return &fixture{
		engine:      engine,
		tokens:      tokens,
		records:     records,
		clock:       fake,
		service:     service,
		facilitator: key(),
		alice:       key(),
		bob:         key(),
		carol:       key(),
	}
}

// newWorkflow initializes the facilitator's registry and creates a
// workflow seeded with alice, bob, and carol.
func (f *fixture) newWorkflow(t *testing.T, cfg WorkflowConfig) address.Address {
	t.Helper()
	ctx := context.Background()
	auth := authority.Direct(f.facilitator)
	if err := f.engine.InitRegistry(ctx, auth); err != nil {
		t.Fatalf("InitRegistry: %v", err)
	}
	if cfg.Categories == nil {
		cfg.Categories = []string{"went well", "needs work", "ideas"}
	}
	if cfg.Allowlist == nil {
		cfg.Allowlist = []identity.PublicKey{f.alice, f.bob, f.carol}
	}
	addr, err := f.engine.CreateWorkflow(ctx, auth, cfg)
	if err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}
	return addr
}

// advanceTo walks the workflow forward from its current stage to the
// target stage, one transition at a time.
func (f *fixture) advanceTo(t *testing.T, workflow address.Address, target retro.Stage) {
	t.Helper()
	ctx := context.Background()
	auth := authority.Direct(f.facilitator)
	for stage := f.workflow(t, workflow).Stage + 1; stage <= target; stage++ {
		if err := f.engine.AdvanceStage(ctx, auth, workflow, stage); err != nil {
			t.Fatalf("AdvanceStage(%s): %v", stage, err)
		}
	}
}

func (f *fixture) workflow(t *testing.T, addr address.Address) *retro.Workflow {
	t.Helper()
	workflow, err := f.engine.GetWorkflow(context.Background(), addr)
	if err != nil {
		t.Fatalf("GetWorkflow: %v", err)
	}
	return workflow
}

func TestInitRegistryRejectsSecondInit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	auth := authority.Direct(f.facilitator)

	if err := f.engine.InitRegistry(ctx, auth); err != nil {
		t.Fatalf("InitRegistry: %v", err)
	}
	if err := f.engine.InitRegistry(ctx, auth); !errors.Is(err, ErrRegistryExists) {
		t.Fatalf("second InitRegistry: got %v, want ErrRegistryExists", err)
	}

	registry, err := f.engine.GetRegistry(ctx, f.facilitator)
	if err != nil {
		t.Fatalf("GetRegistry: %v", err)
	}
	if registry.WorkflowCount != 0 {
		t.Fatalf("WorkflowCount = %d, want 0", registry.WorkflowCount)
	}
}

func TestCreateWorkflowRequiresRegistry(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.CreateWorkflow(context.Background(), authority.Direct(f.facilitator), WorkflowConfig{
		Categories: []string{"went well"},
		Allowlist:  []identity.PublicKey{f.alice},
	})
	if !errors.Is(err, ErrRegistryNotFound) {
		t.Fatalf("got %v, want ErrRegistryNotFound", err)
	}
}

func TestCreateWorkflowValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	auth := authority.Direct(f.facilitator)
	if err := f.engine.InitRegistry(ctx, auth); err != nil {
		t.Fatalf("InitRegistry: %v", err)
	}

	tests := []struct {
		name string
		cfg  WorkflowConfig
		want error
	}{
		{"no categories", WorkflowConfig{Allowlist: []identity.PublicKey{f.alice}}, ErrNoCategories},
		{"too many categories", WorkflowConfig{
			Categories: []string{"a", "b", "c", "d", "e", "f"},
			Allowlist:  []identity.PublicKey{f.alice},
		}, ErrTooManyCategories},
		{"category name too long", WorkflowConfig{
			Categories: []string{strings.Repeat("x", retro.MaxCategoryNameChars+1)},
			Allowlist:  []identity.PublicKey{f.alice},
		}, ErrCategoryNameTooLong},
		{"no join path", WorkflowConfig{
			Categories: []string{"went well"},
		}, ErrNoParticipants},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.engine.CreateWorkflow(ctx, auth, tt.cfg); !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCreateWorkflowSeedsParticipants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	addr := f.newWorkflow(t, WorkflowConfig{})

	workflow := f.workflow(t, addr)
	if workflow.Stage != retro.StageSetup {
		t.Fatalf("Stage = %s, want %s", workflow.Stage, retro.StageSetup)
	}
	if workflow.ParticipantCount != 3 {
		t.Fatalf("ParticipantCount = %d, want 3", workflow.ParticipantCount)
	}
	if workflow.CreditBudget != retro.DefaultCreditBudget {
		t.Fatalf("CreditBudget = %d, want default %d", workflow.CreditBudget, retro.DefaultCreditBudget)
	}
	if workflow.NoteCap != retro.DefaultNoteCap {
		t.Fatalf("NoteCap = %d, want default %d", workflow.NoteCap, retro.DefaultNoteCap)
	}

	for _, participant := range []identity.PublicKey{f.alice, f.bob, f.carol} {
		allowed, err := f.engine.IsAllowlisted(ctx, addr, participant)
		if err != nil {
			t.Fatalf("IsAllowlisted: %v", err)
		}
		if !allowed {
			t.Fatalf("participant %s not allowlisted", participant)
		}
		membership, err := f.engine.GetMembership(ctx, addr, participant)
		if err != nil {
			t.Fatalf("GetMembership: %v", err)
		}
		if !membership.Joined {
			t.Fatalf("participant %s membership not joined", participant)
		}
	}

	registry, err := f.engine.GetRegistry(ctx, f.facilitator)
	if err != nil {
		t.Fatalf("GetRegistry: %v", err)
	}
	if registry.WorkflowCount != 1 {
		t.Fatalf("WorkflowCount = %d, want 1", registry.WorkflowCount)
	}
}

func TestWorkflowAddressesAreSequential(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	auth := authority.Direct(f.facilitator)
	first := f.newWorkflow(t, WorkflowConfig{})

	second, err := f.engine.CreateWorkflow(ctx, auth, WorkflowConfig{
		Categories: []string{"went well"},
		Allowlist:  []identity.PublicKey{f.alice},
	})
	if err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}

	if first != retro.WorkflowAddress(f.facilitator, 0) {
		t.Fatal("first workflow address does not derive from index 0")
	}
	if second != retro.WorkflowAddress(f.facilitator, 1) {
		t.Fatal("second workflow address does not derive from index 1")
	}
	if f.workflow(t, second).Index != 1 {
		t.Fatalf("Index = %d, want 1", f.workflow(t, second).Index)
	}
}

func TestAdvanceStageWalksTheFullLifecycle(t *testing.T) {
	f := newFixture(t)
	addr := f.newWorkflow(t, WorkflowConfig{})
	f.advanceTo(t, addr, retro.StageDiscuss)

	if got := f.workflow(t, addr).Stage; got != retro.StageDiscuss {
		t.Fatalf("Stage = %s, want %s", got, retro.StageDiscuss)
	}
}

func TestAdvanceStageRejectsSkipsAndReversals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	auth := authority.Direct(f.facilitator)
	addr := f.newWorkflow(t, WorkflowConfig{})

	// Skip from Setup directly to GroupDuplicates.
	err := f.engine.AdvanceStage(ctx, auth, addr, retro.StageGroupDuplicates)
	if !errors.Is(err, ErrInvalidStageTransition) {
		t.Fatalf("skip: got %v, want ErrInvalidStageTransition", err)
	}

	f.advanceTo(t, addr, retro.StageVote)

	// Reverse from Vote back to WriteNotes.
	err = f.engine.AdvanceStage(ctx, auth, addr, retro.StageWriteNotes)
	if !errors.Is(err, ErrInvalidStageTransition) {
		t.Fatalf("reversal: got %v, want ErrInvalidStageTransition", err)
	}

	// Stay in place.
	err = f.engine.AdvanceStage(ctx, auth, addr, retro.StageVote)
	if !errors.Is(err, ErrInvalidStageTransition) {
		t.Fatalf("no-op advance: got %v, want ErrInvalidStageTransition", err)
	}
}

func TestAdvanceStageIsFacilitatorOnly(t *testing.T) {
	f := newFixture(t)
	addr := f.newWorkflow(t, WorkflowConfig{})

	err := f.engine.AdvanceStage(context.Background(), authority.Direct(f.alice), addr, retro.StageWriteNotes)
	if !errors.Is(err, ErrNotFacilitator) {
		t.Fatalf("got %v, want ErrNotFacilitator", err)
	}
}

func TestCloseWorkflowRequiresDiscussStage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	auth := authority.Direct(f.facilitator)
	addr := f.newWorkflow(t, WorkflowConfig{})

	if err := f.engine.CloseWorkflow(ctx, auth, addr); !errors.Is(err, ErrInvalidStage) {
		t.Fatalf("close in Setup: got %v, want ErrInvalidStage", err)
	}

	f.advanceTo(t, addr, retro.StageDiscuss)
	if err := f.engine.CloseWorkflow(ctx, auth, addr); err != nil {
		t.Fatalf("CloseWorkflow: %v", err)
	}
	if !f.workflow(t, addr).Closed {
		t.Fatal("workflow not closed")
	}

	// Closure is one-way and terminal for stage changes too.
	if err := f.engine.CloseWorkflow(ctx, auth, addr); !errors.Is(err, ErrWorkflowClosed) {
		t.Fatalf("second close: got %v, want ErrWorkflowClosed", err)
	}
	if err := f.engine.AdvanceStage(ctx, auth, addr, retro.StageDiscuss); !errors.Is(err, ErrWorkflowClosed) {
		t.Fatalf("advance after close: got %v, want ErrWorkflowClosed", err)
	}
}

func TestAllowlistManagement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	auth := authority.Direct(f.facilitator)
	addr := f.newWorkflow(t, WorkflowConfig{AllowlistEnabled: true, Allowlist: []identity.PublicKey{f.alice}})

	// Add, duplicate add, remove, remove again.
	if err := f.engine.AddAllowlistEntry(ctx, auth, addr, f.bob); err != nil {
		t.Fatalf("AddAllowlistEntry: %v", err)
	}
	if err := f.engine.AddAllowlistEntry(ctx, auth, addr, f.bob); !errors.Is(err, ErrAlreadyAllowlisted) {
		t.Fatalf("duplicate add: got %v, want ErrAlreadyAllowlisted", err)
	}
	if err := f.engine.RemoveAllowlistEntry(ctx, auth, addr, f.bob); err != nil {
		t.Fatalf("RemoveAllowlistEntry: %v", err)
	}
	if err := f.engine.RemoveAllowlistEntry(ctx, auth, addr, f.bob); !errors.Is(err, ErrNotAllowlisted) {
		t.Fatalf("second remove: got %v, want ErrNotAllowlisted", err)
	}

	// Facilitator only.
	if err := f.engine.AddAllowlistEntry(ctx, authority.Direct(f.alice), addr, f.bob); !errors.Is(err, ErrNotFacilitator) {
		t.Fatalf("non-facilitator add: got %v, want ErrNotFacilitator", err)
	}

	// Setup stage only.
	f.advanceTo(t, addr, retro.StageWriteNotes)
	if err := f.engine.AddAllowlistEntry(ctx, auth, addr, f.bob); !errors.Is(err, ErrInvalidStage) {
		t.Fatalf("add after Setup: got %v, want ErrInvalidStage", err)
	}
}

func TestAllowlistManagementRequiresEnabledAllowlist(t *testing.T) {
	f := newFixture(t)
	addr := f.newWorkflow(t, WorkflowConfig{})

	err := f.engine.AddAllowlistEntry(context.Background(), authority.Direct(f.facilitator), addr, f.bob)
	if !errors.Is(err, ErrAllowlistDisabled) {
		t.Fatalf("got %v, want ErrAllowlistDisabled", err)
	}
}

func TestJoinWorkflowAllowlistPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	addr := f.newWorkflow(t, WorkflowConfig{AllowlistEnabled: true, Allowlist: []identity.PublicKey{}})

	if err := f.engine.AddAllowlistEntry(ctx, authority.Direct(f.facilitator), addr, f.alice); err != nil {
		t.Fatalf("AddAllowlistEntry: %v", err)
	}

	if err := f.engine.JoinWorkflow(ctx, authority.Direct(f.alice), addr); err != nil {
		t.Fatalf("JoinWorkflow: %v", err)
	}
	if err := f.engine.JoinWorkflow(ctx, authority.Direct(f.alice), addr); !errors.Is(err, ErrAlreadyJoined) {
		t.Fatalf("second join: got %v, want ErrAlreadyJoined", err)
	}

	// Not on the allowlist.
	if err := f.engine.JoinWorkflow(ctx, authority.Direct(f.bob), addr); !errors.Is(err, ErrNotAllowlisted) {
		t.Fatalf("unlisted join: got %v, want ErrNotAllowlisted", err)
	}

	if got := f.workflow(t, addr).ParticipantCount; got != 1 {
		t.Fatalf("ParticipantCount = %d, want 1", got)
	}
}

func TestJoinWorkflowOpenJoinPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	addr := f.newWorkflow(t, WorkflowConfig{OpenJoin: true, Allowlist: []identity.PublicKey{}})

	if err := f.engine.JoinWorkflow(ctx, authority.Direct(f.bob), addr); err != nil {
		t.Fatalf("JoinWorkflow: %v", err)
	}

	// Open join admits the joiner to the allowlist.
	allowed, err := f.engine.IsAllowlisted(ctx, addr, f.bob)
	if err != nil {
		t.Fatalf("IsAllowlisted: %v", err)
	}
	if !allowed {
		t.Fatal("open joiner not admitted to allowlist")
	}
}

func TestJoinWorkflowRejectedWhenNoPathEnabled(t *testing.T) {
	f := newFixture(t)
	addr := f.newWorkflow(t, WorkflowConfig{})

	// Seeded participants exist but no join path is enabled for
	// outsiders.
	outsider, err := identity.Generate()
	if err != nil {
		t.Fatalf("identity.Generate: %v", err)
	}
	joinErr := f.engine.JoinWorkflow(context.Background(), authority.Direct(outsider.Public), addr)
	if !errors.Is(joinErr, ErrJoinDisabled) {
		t.Fatalf("got %v, want ErrJoinDisabled", joinErr)
	}
}

func TestCreateNote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	addr := f.newWorkflow(t, WorkflowConfig{})
	f.advanceTo(t, addr, retro.StageWriteNotes)

	noteID, err := f.engine.CreateNote(ctx, authority.Direct(f.alice), addr, 1, "retro board kept timing out")
	if err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	if noteID != 0 {
		t.Fatalf("noteID = %d, want 0", noteID)
	}

	note, err := f.engine.GetNote(ctx, addr, noteID)
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if note.Author != f.alice {
		t.Fatal("note author is not the caller")
	}
	if note.CategoryID != 1 {
		t.Fatalf("CategoryID = %d, want 1", note.CategoryID)
	}
	if note.GroupID != nil {
		t.Fatal("new note has a group assignment")
	}

	membership, err := f.engine.GetMembership(ctx, addr, f.alice)
	if err != nil {
		t.Fatalf("GetMembership: %v", err)
	}
	if membership.NotesSubmitted != 1 {
		t.Fatalf("NotesSubmitted = %d, want 1", membership.NotesSubmitted)
	}
	if got := f.workflow(t, addr).NoteCount; got != 1 {
		t.Fatalf("NoteCount = %d, want 1", got)
	}
}

func TestCreateNoteValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	addr := f.newWorkflow(t, WorkflowConfig{NoteCap: 2})

	// Wrong stage.
	_, err := f.engine.CreateNote(ctx, authority.Direct(f.alice), addr, 0, "too early")
	if !errors.Is(err, ErrInvalidStage) {
		t.Fatalf("Setup stage: got %v, want ErrInvalidStage", err)
	}

	f.advanceTo(t, addr, retro.StageWriteNotes)

	// Not allowlisted.
	outsider, err2 := identity.Generate()
	if err2 != nil {
		t.Fatalf("identity.Generate: %v", err2)
	}
	_, err = f.engine.CreateNote(ctx, authority.Direct(outsider.Public), addr, 0, "outsider note")
	if !errors.Is(err, ErrNotAllowlisted) {
		t.Fatalf("outsider: got %v, want ErrNotAllowlisted", err)
	}

	// Category out of range.
	_, err = f.engine.CreateNote(ctx, authority.Direct(f.alice), addr, 3, "bad category")
	if !errors.Is(err, ErrInvalidCategory) {
		t.Fatalf("category: got %v, want ErrInvalidCategory", err)
	}

	// Empty and oversized content. The limit is in characters, not
	// bytes: 280 multibyte runes must pass.
	_, err = f.engine.CreateNote(ctx, authority.Direct(f.alice), addr, 0, "")
	if !errors.Is(err, ErrEmptyNote) {
		t.Fatalf("empty: got %v, want ErrEmptyNote", err)
	}
	_, err = f.engine.CreateNote(ctx, authority.Direct(f.alice), addr, 0, strings.Repeat("長", retro.MaxNoteChars))
	if err != nil {
		t.Fatalf("note at limit: %v", err)
	}
	_, err = f.engine.CreateNote(ctx, authority.Direct(f.alice), addr, 0, strings.Repeat("a", retro.MaxNoteChars+1))
	if !errors.Is(err, ErrNoteTooLong) {
		t.Fatalf("over limit: got %v, want ErrNoteTooLong", err)
	}

	// Note cap: alice has 1 of 2, one more fits, the third does not.
	if _, err := f.engine.CreateNote(ctx, authority.Direct(f.alice), addr, 0, "second"); err != nil {
		t.Fatalf("second note: %v", err)
	}
	_, err = f.engine.CreateNote(ctx, authority.Direct(f.alice), addr, 0, "third")
	if !errors.Is(err, ErrNoteCapReached) {
		t.Fatalf("over cap: got %v, want ErrNoteCapReached", err)
	}
}

func TestGroupingLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	addr := f.newWorkflow(t, WorkflowConfig{})
	f.advanceTo(t, addr, retro.StageWriteNotes)

	aliceNote, err := f.engine.CreateNote(ctx, authority.Direct(f.alice), addr, 0, "builds are slow")
	if err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	bobNote, err := f.engine.CreateNote(ctx, authority.Direct(f.bob), addr, 0, "CI takes forever")
	if err != nil {
		t.Fatalf("CreateNote: %v", err)
	}

	// Grouping calls are stage-gated.
	if _, err := f.engine.CreateGroup(ctx, authority.Direct(f.alice), addr, "build speed"); !errors.Is(err, ErrInvalidStage) {
		t.Fatalf("group in WriteNotes: got %v, want ErrInvalidStage", err)
	}

	f.advanceTo(t, addr, retro.StageGroupDuplicates)

	groupID, err := f.engine.CreateGroup(ctx, authority.Direct(f.alice), addr, "build speed")
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	if err := f.engine.AssignNoteToGroup(ctx, authority.Direct(f.alice), addr, aliceNote, groupID); err != nil {
		t.Fatalf("AssignNoteToGroup: %v", err)
	}
	if err := f.engine.AssignNoteToGroup(ctx, authority.Direct(f.bob), addr, bobNote, groupID); err != nil {
		t.Fatalf("AssignNoteToGroup: %v", err)
	}

	// A grouped note cannot be reassigned without an unassign.
	secondGroup, err := f.engine.CreateGroup(ctx, authority.Direct(f.bob), addr, "infrastructure")
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	err = f.engine.AssignNoteToGroup(ctx, authority.Direct(f.alice), addr, aliceNote, secondGroup)
	if !errors.Is(err, ErrNoteAlreadyGrouped) {
		t.Fatalf("reassign: got %v, want ErrNoteAlreadyGrouped", err)
	}

	if err := f.engine.UnassignNote(ctx, authority.Direct(f.alice), addr, aliceNote); err != nil {
		t.Fatalf("UnassignNote: %v", err)
	}
	if err := f.engine.UnassignNote(ctx, authority.Direct(f.alice), addr, aliceNote); !errors.Is(err, ErrNoteNotGrouped) {
		t.Fatalf("second unassign: got %v, want ErrNoteNotGrouped", err)
	}
	if err := f.engine.AssignNoteToGroup(ctx, authority.Direct(f.alice), addr, aliceNote, secondGroup); err != nil {
		t.Fatalf("assign after unassign: %v", err)
	}

	note, err := f.engine.GetNote(ctx, addr, aliceNote)
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if note.GroupID == nil || *note.GroupID != secondGroup {
		t.Fatalf("GroupID = %v, want %d", note.GroupID, secondGroup)
	}

	// Title edit, and its character limit.
	if err := f.engine.SetGroupTitle(ctx, authority.Direct(f.bob), addr, groupID, "build and CI speed"); err != nil {
		t.Fatalf("SetGroupTitle: %v", err)
	}
	err = f.engine.SetGroupTitle(ctx, authority.Direct(f.bob), addr, groupID, strings.Repeat("x", retro.MaxGroupTitleChars+1))
	if !errors.Is(err, ErrGroupTitleTooLong) {
		t.Fatalf("long title: got %v, want ErrGroupTitleTooLong", err)
	}

	// Assignment to a nonexistent group fails cleanly.
	if err := f.engine.UnassignNote(ctx, authority.Direct(f.bob), addr, bobNote); err != nil {
		t.Fatalf("UnassignNote: %v", err)
	}
	err = f.engine.AssignNoteToGroup(ctx, authority.Direct(f.bob), addr, bobNote, 99)
	if !errors.Is(err, ErrGroupNotFound) {
		t.Fatalf("missing group: got %v, want ErrGroupNotFound", err)
	}
}

// TestCastVoteBudget is the credit exhaustion scenario: with a budget
// of 5, a participant spends 3, then a further 3 must fail with the
// ledger untouched, then 2 exactly exhausts the budget.
func TestCastVoteBudget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	addr := f.newWorkflow(t, WorkflowConfig{})
	f.advanceTo(t, addr, retro.StageGroupDuplicates)

	groupID, err := f.engine.CreateGroup(ctx, authority.Direct(f.alice), addr, "build speed")
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	f.advanceTo(t, addr, retro.StageVote)

	auth := authority.Direct(f.alice)
	if err := f.engine.CastVote(ctx, auth, addr, groupID, 3); err != nil {
		t.Fatalf("first vote: %v", err)
	}
	if err := f.engine.CastVote(ctx, auth, addr, groupID, 3); !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("over budget: got %v, want ErrInsufficientCredits", err)
	}

	// The failed vote left every record unchanged.
	membership, err := f.engine.GetMembership(ctx, addr, f.alice)
	if err != nil {
		t.Fatalf("GetMembership: %v", err)
	}
	if membership.CreditsSpent != 3 {
		t.Fatalf("CreditsSpent = %d, want 3", membership.CreditsSpent)
	}
	group, err := f.engine.GetGroup(ctx, addr, groupID)
	if err != nil {
		t.Fatalf("GetGroup: %v", err)
	}
	if group.VoteTally != 3 {
		t.Fatalf("VoteTally = %d, want 3", group.VoteTally)
	}

	if err := f.engine.CastVote(ctx, auth, addr, groupID, 2); err != nil {
		t.Fatalf("exact exhaustion: %v", err)
	}
	if err := f.engine.CastVote(ctx, auth, addr, groupID, 1); !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("after exhaustion: got %v, want ErrInsufficientCredits", err)
	}

	vote, err := f.engine.GetVoteRecord(ctx, addr, f.alice, groupID)
	if err != nil {
		t.Fatalf("GetVoteRecord: %v", err)
	}
	if vote == nil || vote.CreditsSpent != 5 {
		t.Fatalf("vote record = %+v, want CreditsSpent 5", vote)
	}
}

func TestCastVoteTallyConservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	addr := f.newWorkflow(t, WorkflowConfig{})
	f.advanceTo(t, addr, retro.StageGroupDuplicates)

	first, err := f.engine.CreateGroup(ctx, authority.Direct(f.alice), addr, "first")
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	second, err := f.engine.CreateGroup(ctx, authority.Direct(f.alice), addr, "second")
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	f.advanceTo(t, addr, retro.StageVote)

	// Spread credits across voters and groups.
	casts := []struct {
		voter identity.PublicKey
		group uint64
		delta uint8
	}{
		{f.alice, first, 2},
		{f.alice, second, 3},
		{f.bob, first, 5},
		{f.carol, second, 1},
	}
	for _, c := range casts {
		if err := f.engine.CastVote(ctx, authority.Direct(c.voter), addr, c.group, c.delta); err != nil {
			t.Fatalf("CastVote(%d on %d): %v", c.delta, c.group, err)
		}
	}

	var tally, spent uint64
	for _, g := range []uint64{first, second} {
		group, err := f.engine.GetGroup(ctx, addr, g)
		if err != nil {
			t.Fatalf("GetGroup: %v", err)
		}
		tally += group.VoteTally
	}
	for _, voter := range []identity.PublicKey{f.alice, f.bob, f.carol} {
		membership, err := f.engine.GetMembership(ctx, addr, voter)
		if err != nil {
			t.Fatalf("GetMembership: %v", err)
		}
		spent += uint64(membership.CreditsSpent)
	}
	if tally != spent {
		t.Fatalf("tally sum %d != credits spent %d", tally, spent)
	}
}

func TestCastVoteValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	addr := f.newWorkflow(t, WorkflowConfig{})
	f.advanceTo(t, addr, retro.StageGroupDuplicates)
	groupID, err := f.engine.CreateGroup(ctx, authority.Direct(f.alice), addr, "group")
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	// Zero delta is rejected before any I/O.
	if err := f.engine.CastVote(ctx, authority.Direct(f.alice), addr, groupID, 0); !errors.Is(err, ErrZeroCreditDelta) {
		t.Fatalf("zero delta: got %v, want ErrZeroCreditDelta", err)
	}

	// Wrong stage.
	if err := f.engine.CastVote(ctx, authority.Direct(f.alice), addr, groupID, 1); !errors.Is(err, ErrInvalidStage) {
		t.Fatalf("vote in grouping: got %v, want ErrInvalidStage", err)
	}

	f.advanceTo(t, addr, retro.StageVote)

	// Unknown group.
	if err := f.engine.CastVote(ctx, authority.Direct(f.alice), addr, 42, 1); !errors.Is(err, ErrGroupNotFound) {
		t.Fatalf("missing group: got %v, want ErrGroupNotFound", err)
	}

	// Outsider.
	outsider, err := identity.Generate()
	if err != nil {
		t.Fatalf("identity.Generate: %v", err)
	}
	if err := f.engine.CastVote(ctx, authority.Direct(outsider.Public), addr, groupID, 1); !errors.Is(err, ErrNotAllowlisted) {
		t.Fatalf("outsider: got %v, want ErrNotAllowlisted", err)
	}
}

// closedWorkflow builds a workflow through its full lifecycle and
// closes it, leaving one group with votes on it. Extra participants
// are added to the usual alice/bob/carol allowlist.
func (f *fixture) closedWorkflow(t *testing.T, extraParticipants ...identity.PublicKey) address.Address {
	t.Helper()
	ctx := context.Background()
	var cfg WorkflowConfig
	if len(extraParticipants) > 0 {
		cfg.Allowlist = append([]identity.PublicKey{f.alice, f.bob, f.carol}, extraParticipants...)
	}
	addr := f.newWorkflow(t, cfg)
	f.advanceTo(t, addr, retro.StageWriteNotes)
	if _, err := f.engine.CreateNote(ctx, authority.Direct(f.alice), addr, 0, "deploys need a checklist"); err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	f.advanceTo(t, addr, retro.StageGroupDuplicates)
	groupID, err := f.engine.CreateGroup(ctx, authority.Direct(f.alice), addr, "deploy hygiene")
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	f.advanceTo(t, addr, retro.StageVote)
	if err := f.engine.CastVote(ctx, authority.Direct(f.bob), addr, groupID, 2); err != nil {
		t.Fatalf("CastVote: %v", err)
	}
	f.advanceTo(t, addr, retro.StageDiscuss)
	if err := f.engine.CloseWorkflow(ctx, authority.Direct(f.facilitator), addr); err != nil {
		t.Fatalf("CloseWorkflow: %v", err)
	}
	return addr
}

func TestClosureFreezesContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	addr := f.closedWorkflow(t)

	if _, err := f.engine.CreateNote(ctx, authority.Direct(f.alice), addr, 0, "late note"); !errors.Is(err, ErrWorkflowClosed) {
		t.Fatalf("note after close: got %v, want ErrWorkflowClosed", err)
	}
	if _, err := f.engine.CreateGroup(ctx, authority.Direct(f.alice), addr, "late group"); !errors.Is(err, ErrWorkflowClosed) {
		t.Fatalf("group after close: got %v, want ErrWorkflowClosed", err)
	}
	if err := f.engine.CastVote(ctx, authority.Direct(f.alice), addr, 0, 1); !errors.Is(err, ErrWorkflowClosed) {
		t.Fatalf("vote after close: got %v, want ErrWorkflowClosed", err)
	}
}

func TestCreateActionItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	addr := f.closedWorkflow(t)
	auth := authority.Direct(f.facilitator)

	itemID, err := f.engine.CreateActionItem(ctx, auth, addr, "add a deploy checklist",
		f.alice, []identity.PublicKey{f.bob, f.carol}, 2)
	if err != nil {
		t.Fatalf("CreateActionItem: %v", err)
	}

	item, err := f.engine.GetActionItem(ctx, addr, itemID)
	if err != nil {
		t.Fatalf("GetActionItem: %v", err)
	}
	if item.Status != retro.ActionItemPending {
		t.Fatalf("Status = %s, want pending", item.Status)
	}
	if item.Owner != f.alice || len(item.Verifiers) != 2 || item.Threshold != 2 {
		t.Fatalf("item = %+v", item)
	}
	if got := f.workflow(t, addr).ActionItemCount; got != 1 {
		t.Fatalf("ActionItemCount = %d, want 1", got)
	}
}

func TestCreateActionItemValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	addr := f.closedWorkflow(t)
	auth := authority.Direct(f.facilitator)
	verifiers := []identity.PublicKey{f.bob, f.carol}

	outsider, err := identity.Generate()
	if err != nil {
		t.Fatalf("identity.Generate: %v", err)
	}

	tests := []struct {
		name        string
		auth        authority.Authority
		description string
		owner       identity.PublicKey
		verifiers   []identity.PublicKey
		threshold   uint8
		want        error
	}{
		{"not facilitator", authority.Direct(f.alice), "x", f.alice, verifiers, 1, ErrNotFacilitator},
		{"empty description", auth, "", f.alice, verifiers, 1, ErrEmptyDescription},
		{"description too long", auth, strings.Repeat("x", retro.MaxActionItemDescriptionChars+1), f.alice, verifiers, 1, ErrDescriptionTooLong},
		{"no verifiers", auth, "x", f.alice, nil, 1, ErrNoVerifiers},
		{"zero threshold", auth, "x", f.alice, verifiers, 0, ErrInvalidThreshold},
		{"threshold above verifier count", auth, "x", f.alice, verifiers, 3, ErrInvalidThreshold},
		{"owner in verifier set", auth, "x", f.alice, []identity.PublicKey{f.alice, f.bob}, 1, ErrOwnerIsVerifier},
		{"duplicate verifier", auth, "x", f.alice, []identity.PublicKey{f.bob, f.bob}, 1, ErrDuplicateVerifier},
		{"outsider owner", auth, "x", outsider.Public, verifiers, 1, ErrNotAllowlisted},
		{"outsider verifier", auth, "x", f.alice, []identity.PublicKey{outsider.Public}, 1, ErrNotAllowlisted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.CreateActionItem(ctx, tt.auth, addr, tt.description, tt.owner, tt.verifiers, tt.threshold)
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCreateActionItemRequiresClosure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	addr := f.newWorkflow(t, WorkflowConfig{})
	f.advanceTo(t, addr, retro.StageDiscuss)

	_, err := f.engine.CreateActionItem(ctx, authority.Direct(f.facilitator), addr, "too early",
		f.alice, []identity.PublicKey{f.bob}, 1)
	if !errors.Is(err, ErrWorkflowNotClosed) {
		t.Fatalf("got %v, want ErrWorkflowNotClosed", err)
	}
}

// TestVerificationThreshold is the threshold consensus scenario: an
// item with verifiers [bob, carol] and threshold 2 completes on the
// second approval, credits the owner's score exactly once, and
// rejects any further votes.
func TestVerificationThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A fourth allowlisted participant serves as the third verifier
	// for the post-completion vote.
	dave, err := identity.Generate()
	if err != nil {
		t.Fatalf("identity.Generate: %v", err)
	}
	addr := f.closedWorkflow(t, dave.Public)

	itemID, err := f.engine.CreateActionItem(ctx, authority.Direct(f.facilitator), addr,
		"add a deploy checklist", f.alice, []identity.PublicKey{f.bob, f.carol, dave.Public}, 2)
	if err != nil {
		t.Fatalf("CreateActionItem: %v", err)
	}

	if err := f.engine.CastVerificationVote(ctx, authority.Direct(f.bob), addr, itemID, true); err != nil {
		t.Fatalf("first approval: %v", err)
	}
	item, err := f.engine.GetActionItem(ctx, addr, itemID)
	if err != nil {
		t.Fatalf("GetActionItem: %v", err)
	}
	if item.Status != retro.ActionItemPending || item.Approvals != 1 {
		t.Fatalf("after first vote: status %s approvals %d", item.Status, item.Approvals)
	}

	// Duplicate vote from the same verifier.
	err = f.engine.CastVerificationVote(ctx, authority.Direct(f.bob), addr, itemID, true)
	if !errors.Is(err, ErrDuplicateVote) {
		t.Fatalf("duplicate: got %v, want ErrDuplicateVote", err)
	}

	// Second approval reaches the threshold.
	if err := f.engine.CastVerificationVote(ctx, authority.Direct(f.carol), addr, itemID, true); err != nil {
		t.Fatalf("second approval: %v", err)
	}
	item, err = f.engine.GetActionItem(ctx, addr, itemID)
	if err != nil {
		t.Fatalf("GetActionItem: %v", err)
	}
	if item.Status != retro.ActionItemCompleted {
		t.Fatalf("Status = %s, want completed", item.Status)
	}

	membership, err := f.engine.GetMembership(ctx, addr, f.alice)
	if err != nil {
		t.Fatalf("GetMembership: %v", err)
	}
	if membership.Score != 1 {
		t.Fatalf("owner Score = %d, want 1", membership.Score)
	}

	// Votes after completion are rejected, so the score cannot be
	// credited twice.
	err = f.engine.CastVerificationVote(ctx, authority.Direct(dave.Public), addr, itemID, true)
	if !errors.Is(err, ErrActionItemCompleted) {
		t.Fatalf("post-completion: got %v, want ErrActionItemCompleted", err)
	}
}

func TestVerificationRejectionsDoNotCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	addr := f.closedWorkflow(t)

	itemID, err := f.engine.CreateActionItem(ctx, authority.Direct(f.facilitator), addr,
		"migrate the retro board", f.alice, []identity.PublicKey{f.bob, f.carol}, 1)
	if err != nil {
		t.Fatalf("CreateActionItem: %v", err)
	}

	if err := f.engine.CastVerificationVote(ctx, authority.Direct(f.bob), addr, itemID, false); err != nil {
		t.Fatalf("rejection: %v", err)
	}
	item, err := f.engine.GetActionItem(ctx, addr, itemID)
	if err != nil {
		t.Fatalf("GetActionItem: %v", err)
	}
	if item.Approvals != 0 || item.Status != retro.ActionItemPending {
		t.Fatalf("after rejection: approvals %d status %s", item.Approvals, item.Status)
	}

	// The rejection is still a spent vote.
	err = f.engine.CastVerificationVote(ctx, authority.Direct(f.bob), addr, itemID, true)
	if !errors.Is(err, ErrDuplicateVote) {
		t.Fatalf("revote: got %v, want ErrDuplicateVote", err)
	}

	vote, err := f.engine.GetVerificationVote(ctx, addr, itemID, f.bob)
	if err != nil {
		t.Fatalf("GetVerificationVote: %v", err)
	}
	if vote == nil || vote.Approved {
		t.Fatalf("vote = %+v, want recorded rejection", vote)
	}
}

func TestVerificationRequiresDesignatedVerifier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	addr := f.closedWorkflow(t)

	itemID, err := f.engine.CreateActionItem(ctx, authority.Direct(f.facilitator), addr,
		"write the runbook", f.alice, []identity.PublicKey{f.bob}, 1)
	if err != nil {
		t.Fatalf("CreateActionItem: %v", err)
	}

	// Allowlisted but not in the verifier set — including the owner.
	for _, caller := range []identity.PublicKey{f.carol, f.alice} {
		err := f.engine.CastVerificationVote(ctx, authority.Direct(caller), addr, itemID, true)
		if !errors.Is(err, ErrNotVerifier) {
			t.Fatalf("caller %s: got %v, want ErrNotVerifier", caller, err)
		}
	}
}

// TestDelegatedAuthority is the delegation scenario: a delegate with
// a valid token acts as the principal, the resulting records name the
// principal, and revocation cuts the delegate off immediately.
func TestDelegatedAuthority(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	addr := f.newWorkflow(t, WorkflowConfig{})
	f.advanceTo(t, addr, retro.StageWriteNotes)

	delegate, err := identity.Generate()
	if err != nil {
		t.Fatalf("identity.Generate: %v", err)
	}
	tokenAddr, err := f.tokens.Create(ctx, f.alice, delegate.Public, f.service, 0, 0)
	if err != nil {
		t.Fatalf("tokens.Create: %v", err)
	}

	auth := authority.Delegated(delegate.Public, f.alice, tokenAddr)
	noteID, err := f.engine.CreateNote(ctx, auth, addr, 0, "filed by the session agent")
	if err != nil {
		t.Fatalf("delegated CreateNote: %v", err)
	}

	// The note names the principal, not the delegate.
	note, err := f.engine.GetNote(ctx, addr, noteID)
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if note.Author != f.alice {
		t.Fatalf("Author = %s, want principal %s", note.Author, f.alice)
	}
	membership, err := f.engine.GetMembership(ctx, addr, f.alice)
	if err != nil {
		t.Fatalf("GetMembership: %v", err)
	}
	if membership.NotesSubmitted != 1 {
		t.Fatalf("principal NotesSubmitted = %d, want 1", membership.NotesSubmitted)
	}

	// Revocation cuts the delegate off.
	if err := f.tokens.Revoke(ctx, f.alice, delegate.Public, f.service); err != nil {
		t.Fatalf("tokens.Revoke: %v", err)
	}
	_, err = f.engine.CreateNote(ctx, auth, addr, 0, "after revocation")
	if !errors.Is(err, session.ErrTokenNotFound) {
		t.Fatalf("after revocation: got %v, want ErrTokenNotFound", err)
	}
}

func TestDelegatedAuthorityExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	addr := f.newWorkflow(t, WorkflowConfig{})
	f.advanceTo(t, addr, retro.StageWriteNotes)

	delegate, err := identity.Generate()
	if err != nil {
		t.Fatalf("identity.Generate: %v", err)
	}
	tokenAddr, err := f.tokens.Create(ctx, f.bob, delegate.Public, f.service, 0, 0)
	if err != nil {
		t.Fatalf("tokens.Create: %v", err)
	}
	auth := authority.Delegated(delegate.Public, f.bob, tokenAddr)

	// Default validity is one hour; the boundary instant is usable.
	f.clock.Advance(time.Hour)
	if _, err := f.engine.CreateNote(ctx, auth, addr, 0, "at the boundary"); err != nil {
		t.Fatalf("at expiry boundary: %v", err)
	}
	f.clock.Advance(time.Second)
	_, err = f.engine.CreateNote(ctx, auth, addr, 0, "past the boundary")
	if !errors.Is(err, session.ErrTokenExpired) {
		t.Fatalf("past boundary: got %v, want ErrTokenExpired", err)
	}
}

func TestParticipantCapReached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	allowlist := make([]identity.PublicKey, retro.MaxParticipants)
	for i := range allowlist {
		kp, err := identity.Generate()
		if err != nil {
			t.Fatalf("identity.Generate: %v", err)
		}
		allowlist[i] = kp.Public
	}
	addr := f.newWorkflow(t, WorkflowConfig{OpenJoin: true, Allowlist: allowlist})

	// The workflow is at capacity; an open joiner is turned away.
	err := f.engine.JoinWorkflow(ctx, authority.Direct(f.alice), addr)
	if !errors.Is(err, ErrParticipantCapReached) {
		t.Fatalf("got %v, want ErrParticipantCapReached", err)
	}
}

func TestCreateWorkflowRejectsOversizedAllowlist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	auth := authority.Direct(f.facilitator)
	if err := f.engine.InitRegistry(ctx, auth); err != nil {
		t.Fatalf("InitRegistry: %v", err)
	}

	allowlist := make([]identity.PublicKey, retro.MaxParticipants+1)
	for i := range allowlist {
		kp, err := identity.Generate()
		if err != nil {
			t.Fatalf("identity.Generate: %v", err)
		}
		allowlist[i] = kp.Public
	}
	_, err := f.engine.CreateWorkflow(ctx, auth, WorkflowConfig{
		Categories: []string{"went well"},
		Allowlist:  allowlist,
	})
	if !errors.Is(err, ErrAllowlistTooLarge) {
		t.Fatalf("got %v, want ErrAllowlistTooLarge", err)
	}
}
