package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/veleth/ansuz/internal/apperr"
	"github.com/veleth/ansuz/internal/extract"
	"github.com/veleth/ansuz/internal/history"
	"github.com/veleth/ansuz/internal/models"
	"github.com/veleth/ansuz/internal/reconcile"
	"github.com/veleth/ansuz/internal/source"
	"github.com/veleth/ansuz/internal/storage"
	"github.com/veleth/ansuz/internal/testutil"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newPipeline(t *testing.T, store storage.Provider, fake *testutil.FakeStore,
	triggers []string, ledger *history.DB, opts Options) *Pipeline {
	t.Helper()
	logger := discard()
	rec := reconcile.New(fake, nil, reconcile.Config{
		Policy:      reconcile.PolicySkip,
		CreateDecks: true,
		ClozeModel:  "Cloze",
		BasicModel:  "Basic",
		Tags:        []string{"ansuz"},
	}, logger)
	return New(store, fake, rec, extract.NewExtractor(triggers), nil, ledger, nil, logger, opts)
}

func TestPipeline_RunSyncsVault(t *testing.T) {
	vaultDir, store := testutil.TestVault(t)
	testutil.WriteFile(t, vaultDir, "notes/physics.md",
		"## Defs\n\ndefinition: A car is a vehicle.\n\n==wheel==\n")

	fake := testutil.NewFakeStore()
	p := newPipeline(t, store, fake, []string{"definition"}, nil, Options{
		Folders:      []string{"notes"},
		FallbackDeck: "Default",
	})

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Created != 2 {
		t.Errorf("Created = %d, want 2 (errors: %v)", report.Created, report.Errors)
	}
	if report.Failed != 0 {
		t.Errorf("Failed = %d, errors: %v", report.Failed, report.Errors)
	}
	if fake.DeckNoteCount("definition") != 1 {
		t.Errorf("definition deck has %d notes, want 1", fake.DeckNoteCount("definition"))
	}
	if fake.DeckNoteCount("Default") != 1 {
		t.Errorf("Default deck has %d notes, want 1 (the highlight cloze)", fake.DeckNoteCount("Default"))
	}
}

func TestPipeline_RunIsIdempotentUnderSkip(t *testing.T) {
	vaultDir, store := testutil.TestVault(t)
	testutil.WriteFile(t, vaultDir, "notes/a.md", "definition: A mole is a unit of amount.\n")

	fake := testutil.NewFakeStore()
	p := newPipeline(t, store, fake, []string{"definition"}, nil, Options{Folders: []string{"notes"}})

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	second, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if second.Created != 0 || second.Skipped != 1 {
		t.Errorf("second run = %+v, want 0 created 1 skipped", second)
	}
	if fake.DeckNoteCount("definition") != 1 {
		t.Errorf("deck has %d notes after two runs", fake.DeckNoteCount("definition"))
	}
}

func TestPipeline_ProbeFailureAborts(t *testing.T) {
	vaultDir, store := testutil.TestVault(t)
	testutil.WriteFile(t, vaultDir, "a.md", "definition: something.\n")

	fake := testutil.NewFakeStore()
	fake.VersionErr = apperr.ErrUnreachable
	p := newPipeline(t, store, fake, []string{"definition"}, nil, Options{Folders: []string{""}})

	_, err := p.Run(context.Background())
	if !errors.Is(err, apperr.ErrUnreachable) {
		t.Fatalf("error = %v, want ErrUnreachable", err)
	}
	if fake.Calls["addNote"] != 0 || fake.Calls["addNotes"] != 0 {
		t.Error("probe failure must prevent any write")
	}
}

func TestPipeline_DuplicateFoldersListOnce(t *testing.T) {
	vaultDir, store := testutil.TestVault(t)
	testutil.WriteFile(t, vaultDir, "notes/a.md", "definition: A watt is a unit of power.\n")

	fake := testutil.NewFakeStore()
	p := newPipeline(t, store, fake, []string{"definition"}, nil, Options{
		Folders: []string{"notes", "notes"},
	})

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Created != 1 {
		t.Errorf("Created = %d, want 1 despite overlapping folders", report.Created)
	}
}

func TestPipeline_OnlyChangedSkipsUnchangedFiles(t *testing.T) {
	vaultDir, store := testutil.TestVault(t)
	testutil.WriteFile(t, vaultDir, "notes/a.md", "definition: An ohm is a unit of resistance.\n")

	ledger, err := history.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer ledger.Close()

	fake := testutil.NewFakeStore()
	full := newPipeline(t, store, fake, []string{"definition"}, ledger, Options{Folders: []string{"notes"}})
	if _, err := full.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	incremental := newPipeline(t, store, fake, []string{"definition"}, ledger, Options{
		Folders:     []string{"notes"},
		OnlyChanged: true,
	})
	report, err := incremental.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Created+report.Updated+report.Skipped+report.Failed != 0 {
		t.Errorf("unchanged file produced work: %+v", report)
	}

	// An edit makes the file visible again.
	testutil.WriteFile(t, vaultDir, "notes/a.md", "definition: An ohm measures electrical resistance.\n")
	report, err = incremental.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Created+report.Skipped == 0 {
		t.Errorf("edited file was not re-synced: %+v", report)
	}
}

func TestPipeline_NotifierReceivesLifecycleEvents(t *testing.T) {
	vaultDir, store := testutil.TestVault(t)
	testutil.WriteFile(t, vaultDir, "a.md", "definition: An amp is a unit of current.\n")

	var events []string
	fake := testutil.NewFakeStore()
	logger := discard()
	rec := reconcile.New(fake, nil, reconcile.Config{
		Policy: reconcile.PolicySkip, CreateDecks: true,
		ClozeModel: "Cloze", BasicModel: "Basic",
	}, logger)
	p := New(store, fake, rec, extract.NewExtractor([]string{"definition"}), nil, nil,
		func(event string, _ any) { events = append(events, event) },
		logger, Options{Folders: []string{""}})

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := []string{"run_started", "bucket_done", "run_finished"}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("events[%d] = %q, want %q", i, events[i], want[i])
		}
	}
}

func TestPipeline_ExtractPreview(t *testing.T) {
	fake := testutil.NewFakeStore()
	_, store := testutil.TestVault(t)
	p := newPipeline(t, store, fake, []string{"definition"}, nil, Options{})

	got := p.ExtractPreview(source.InlineSource{
		Name:    "scratch",
		Content: "definition: A byte is eight bits.\n",
	})
	if len(got) != 1 {
		t.Fatalf("cards = %v", got)
	}
	if got[0].Kind != models.KindShortAnswer {
		t.Errorf("kind = %v", got[0].Kind)
	}
	if fake.Calls["addNote"] != 0 || fake.Calls["version"] != 0 {
		t.Error("preview must never touch the remote store")
	}
}
