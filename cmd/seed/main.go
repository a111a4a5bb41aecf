package main

import (
	"context"
	"encoding/json"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	"workflow-registry/backend/internal/config"
	"workflow-registry/backend/internal/logging"
	"workflow-registry/backend/internal/repository"
	"workflow-registry/backend/pkg/models"
)

func main() {
	ctx := context.Background()
	logger := logging.NewLogger()
	defer logger.Sync()

	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to DB
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pool.Close()

	// Apply schema
	if err := repository.ApplySchema(ctx, pool); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}
	logger.Info("Schema applied")

	stepStore := repository.NewStepTemplateStore(pool, logger)
	templateStore := repository.NewWorkflowTemplateStore(pool, logger)

	// Builtin step templates
	boolTrue := true
	stepTemplates := []*models.StepTemplate{
		{
			ID:    "collect-input",
			Ver:   1,
			Title: "Collect Input",
			Desc:  "Gathers the initial data the workflow operates on.",
			Src:   models.StepSource{PluginID: "builtin/collect-input"},
			InputManifest: &models.InputManifest{
				Sections: []models.InputSection{{
					Title: "Input",
					Children: []models.InputEntry{
						{Name: "prompt", Type: "string"},
						{Name: "source", Type: "string"},
					},
				}},
			},
		},
		{
			ID:        "review",
			Ver:       1,
			Title:     "Review",
			Desc:      "A human review checkpoint.",
			Skippable: true,
			Src:       models.StepSource{PluginID: "builtin/review"},
			InputManifest: &models.InputManifest{
				Sections: []models.InputSection{{
					Title: "Review",
					Children: []models.InputEntry{
						{Name: "reviewer", Type: "string"},
						{Name: "computedDeadline", Type: models.InputEntryNonInteractive},
					},
				}},
			},
		},
		{
			ID:    "publish-result",
			Ver:   1,
			Title: "Publish Result",
			Desc:  "Publishes the workflow outcome to its destination.",
			Src:   models.StepSource{PluginID: "builtin/publish-result"},
		},
	}

	for _, st := range stepTemplates {
		if err := seedVersion(ctx, stepStore, st.ID, st.Ver, st, "seed-script"); err != nil {
			log.Printf("Failed to seed step template %s: %v", st.ID, err)
		} else {
			logger.Info("Seeded step template", "id", st.ID, "version", st.Ver)
		}
	}

	// Builtin workflow template composing the builtin steps
	tpl := &models.WorkflowTemplate{
		ID:          "standard-review-flow",
		Ver:         1,
		Title:       "Standard Review Flow",
		Desc:        "Collects input, routes it through review, publishes the result.",
		Builtin:     true,
		InstanceTTL: 30,
		RunSpec:     models.DefaultRunSpec(),
		PropsOverrideOption: models.OverrideOption{
			Allowed: []string{"title", "desc", "instanceTtl"},
		},
		SelectedSteps: []models.SelectedStep{
			{
				ID:              "collect",
				StepTemplateID:  "collect-input",
				StepTemplateVer: 1,
				Defaults:        map[string]string{"source": "manual"},
				PropsOverrideOption: models.OverrideOption{
					Allowed: []string{"title", "desc"},
				},
				ConfigOverrideOption: models.OverrideOption{
					Allowed: []string{"prompt", "source"},
				},
			},
			{
				ID:              "review",
				StepTemplateID:  "review",
				StepTemplateVer: 1,
				Skippable:       &boolTrue,
				PropsOverrideOption: models.OverrideOption{
					Allowed: []string{"skippable"},
				},
				ConfigOverrideOption: models.OverrideOption{
					Allowed: []string{"reviewer"},
				},
			},
			{
				ID:                   "publish",
				StepTemplateID:       "publish-result",
				StepTemplateVer:      1,
				PropsOverrideOption:  models.OverrideOption{Allowed: []string{}},
				ConfigOverrideOption: models.OverrideOption{Allowed: []string{}},
			},
		},
	}

	if err := seedVersion(ctx, templateStore, tpl.ID, tpl.Ver, tpl, "seed-script"); err != nil {
		log.Printf("Failed to seed workflow template %s: %v", tpl.ID, err)
	} else {
		logger.Info("Seeded workflow template", "id", tpl.ID, "version", tpl.Ver)
	}

	logger.Info("Seeding complete!")
}

// seedVersion writes one version record; an already-existing version is left
// untouched so the seed is safe to rerun.
func seedVersion(ctx context.Context, store repository.VersionStore, id string, ver int, body any, createdBy string) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	err = store.CreateVersion(ctx, &repository.VersionRecord{
		ID:        id,
		Ver:       ver,
		Body:      raw,
		CreatedBy: createdBy,
	})
	if err != nil {
		// Conflict means this id/version pair was seeded on a previous run.
		existing, findErr := store.FindVersion(ctx, id, ver)
		if findErr == nil && existing != nil {
			return nil
		}
		return err
	}
	return nil
}
