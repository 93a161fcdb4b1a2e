package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ledgerfeed-dev/ledgerfeed/internal/category"
	"github.com/ledgerfeed-dev/ledgerfeed/internal/config"
	"github.com/ledgerfeed-dev/ledgerfeed/internal/ingest"
	"github.com/ledgerfeed-dev/ledgerfeed/internal/model"
	"github.com/ledgerfeed-dev/ledgerfeed/internal/recipient"
	"github.com/ledgerfeed-dev/ledgerfeed/internal/store"
)

const (
	configFile = "ledgerfeed.yaml"
	rulesFile  = "rules/categories.yaml"
	storeFile  = "ledger.json"
)

// workspace bundles everything a command needs from a ledgerfeed directory.
type workspace struct {
	dir   string
	cfg   *config.Config
	store *store.MemoryStore
}

// openWorkspace loads config, the store snapshot, and the category-rules
// file, reconciling file rules into the store by name so rule ids stay
// stable across runs.
func openWorkspace(dir string) (*workspace, error) {
	cfg, err := config.Load(filepath.Join(dir, configFile))
	if err != nil {
		return nil, fmt.Errorf("%s is not a ledgerfeed workspace (run init first): %w", dir, err)
	}

	st, err := store.LoadSnapshot(filepath.Join(dir, storeFile))
	if err != nil {
		return nil, err
	}

	rulesPath := filepath.Join(dir, rulesFile)
	if _, err := os.Stat(rulesPath); err == nil {
		fileRules, err := config.LoadRules(rulesPath)
		if err != nil {
			return nil, err
		}
		if err := syncRules(st, fileRules); err != nil {
			return nil, err
		}
	}

	return &workspace{dir: dir, cfg: cfg, store: st}, nil
}

// newPipeline wires a pipeline over the workspace store with the configured
// thresholds.
func newPipeline(ws *workspace) *ingest.Pipeline {
	matcher := category.NewMatcher(ws.store)
	resolver := recipient.NewResolver(ws.store, ws.store, ws.cfg.Matching.RecipientSimilarity)
	return ingest.NewPipeline(ws.store, matcher, resolver, ingest.Options{
		DefaultCurrency:       ws.cfg.Import.DefaultCurrency,
		ErrorSample:           ws.cfg.Import.ErrorSample,
		TransferMinConfidence: ws.cfg.Matching.TransferMinConfidence,
	})
}

// save writes the store snapshot back to disk.
func (w *workspace) save() error {
	return w.store.SaveSnapshot(filepath.Join(w.dir, storeFile))
}

// syncRules replaces the stored rule set with the file's, keeping the stored
// id when a rule of the same name already exists so category references on
// persisted transactions survive rule edits.
func syncRules(st *store.MemoryStore, fileRules []model.CategoryRule) error {
	ctx := context.Background()
	stored, err := st.ListCategoryRules(ctx)
	if err != nil {
		return err
	}
	byName := make(map[string]model.CategoryRule, len(stored))
	for _, r := range stored {
		byName[r.Name] = r
	}
	for i := range fileRules {
		if existing, ok := byName[fileRules[i].Name]; ok {
			fileRules[i].ID = existing.ID
		}
	}
	return st.PutCategoryRules(ctx, fileRules)
}
