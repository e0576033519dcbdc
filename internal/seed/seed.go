// Package seed provisions a demo workspace from a YAML fixture. Every
// card is created through the graph service, so seeded data satisfies the
// same invariants (lineage, inherited context, cycle safety) as data
// created interactively.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"loom/internal/domain/models"
	"loom/internal/domain/services"
)

//go:embed fixture.yaml
var defaultFixture []byte

// Fixture is the YAML shape of a demo workspace. Cards are referenced by
// name within the fixture; names never leave the seeder.
type Fixture struct {
	Workspace struct {
		Title        string   `yaml:"title"`
		Tags         []string `yaml:"tags"`
		Instructions string   `yaml:"instructions"`
	} `yaml:"workspace"`

	Cards []FixtureCard `yaml:"cards"`

	Branches []FixtureBranch `yaml:"branches"`

	Merge *FixtureMerge `yaml:"merge"`
}

// FixtureCard is a root conversation.
type FixtureCard struct {
	Name     string           `yaml:"name"`
	Title    string           `yaml:"title"`
	Tags     []string         `yaml:"tags"`
	Messages []FixtureMessage `yaml:"messages"`
}

// FixtureBranch branches off a named card.
type FixtureBranch struct {
	Name         string           `yaml:"name"`
	From         string           `yaml:"from"`
	MessageIndex int              `yaml:"message_index"`
	Reason       string           `yaml:"reason"`
	Mode         string           `yaml:"mode"`
	Summary      string           `yaml:"summary"`
	Messages     []FixtureMessage `yaml:"messages"`
}

// FixtureMerge merges named cards into a synthesis node.
type FixtureMerge struct {
	Sources         []string         `yaml:"sources"`
	SynthesisPrompt string           `yaml:"synthesis_prompt"`
	Messages        []FixtureMessage `yaml:"messages"`
}

// FixtureMessage is one dialogue turn.
type FixtureMessage struct {
	Role    string `yaml:"role"`
	Content string `yaml:"content"`
}

// Load parses a fixture file, or the embedded demo fixture when path is
// empty.
func Load(path string) (*Fixture, error) {
	data := defaultFixture
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read fixture: %w", err)
		}
	}
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	return &f, nil
}

// Seeder writes fixtures through the graph service.
type Seeder struct {
	graph  services.GraphService
	logger *slog.Logger
}

// NewSeeder creates a new seeder
func NewSeeder(graph services.GraphService, logger *slog.Logger) *Seeder {
	return &Seeder{
		graph:  graph,
		logger: logger,
	}
}

// Apply provisions the fixture into a fresh workspace and navigates to it.
func (s *Seeder) Apply(ctx context.Context, f *Fixture) error {
	ws, err := s.graph.CreateWorkspace(ctx, &services.CreateWorkspaceRequest{
		Title: f.Workspace.Title,
		Tags:  f.Workspace.Tags,
	})
	if err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	if f.Workspace.Instructions != "" {
		if _, err := s.graph.UpdateWorkspace(ctx, ws.ID, &services.UpdateWorkspaceRequest{
			Instructions: &f.Workspace.Instructions,
		}); err != nil {
			return fmt.Errorf("set workspace instructions: %w", err)
		}
	}
	if err := s.graph.NavigateToWorkspace(ctx, ws.ID); err != nil {
		return fmt.Errorf("activate workspace: %w", err)
	}

	// name -> created card id
	ids := map[string]string{}

	for _, fc := range f.Cards {
		card, err := s.graph.CreateCard(ctx, &services.CreateCardRequest{
			Title: fc.Title,
			Tags:  fc.Tags,
		})
		if err != nil {
			return fmt.Errorf("create card %q: %w", fc.Name, err)
		}
		if err := s.appendAll(ctx, card.ID, fc.Messages); err != nil {
			return fmt.Errorf("card %q: %w", fc.Name, err)
		}
		ids[fc.Name] = card.ID
		s.logger.Info("seeded card", "name", fc.Name, "card_id", card.ID)
	}

	for _, fb := range f.Branches {
		sourceID, ok := ids[fb.From]
		if !ok {
			return fmt.Errorf("branch %q references unknown card %q", fb.Name, fb.From)
		}
		card, err := s.graph.BranchFromMessage(ctx, &services.BranchRequest{
			SourceCardID:    sourceID,
			MessageIndex:    fb.MessageIndex,
			BranchReason:    fb.Reason,
			InheritanceMode: models.InheritanceMode(fb.Mode),
			SummaryText:     fb.Summary,
		})
		if err != nil {
			return fmt.Errorf("branch %q: %w", fb.Name, err)
		}
		if err := s.appendAll(ctx, card.ID, fb.Messages); err != nil {
			return fmt.Errorf("branch %q: %w", fb.Name, err)
		}
		ids[fb.Name] = card.ID
		s.logger.Info("seeded branch", "name", fb.Name, "card_id", card.ID, "from", fb.From)
	}

	if f.Merge != nil {
		sources := make([]string, 0, len(f.Merge.Sources))
		for _, name := range f.Merge.Sources {
			id, ok := ids[name]
			if !ok {
				return fmt.Errorf("merge references unknown card %q", name)
			}
			sources = append(sources, id)
		}
		result, err := s.graph.CreateMergeNode(ctx, &services.MergeRequest{
			SourceCardIDs:   sources,
			SynthesisPrompt: f.Merge.SynthesisPrompt,
		})
		if err != nil {
			return fmt.Errorf("merge: %w", err)
		}
		if err := s.appendAll(ctx, result.Card.ID, f.Merge.Messages); err != nil {
			return fmt.Errorf("merge: %w", err)
		}
		for _, w := range result.Warnings {
			s.logger.Warn("merge warning", "warning", w)
		}
		s.logger.Info("seeded merge", "card_id", result.Card.ID, "sources", len(sources))
	}

	return nil
}

func (s *Seeder) appendAll(ctx context.Context, cardID string, msgs []FixtureMessage) error {
	for i, m := range msgs {
		if _, err := s.graph.AppendMessage(ctx, cardID, &services.AppendMessageRequest{
			Role:    m.Role,
			Content: m.Content,
		}); err != nil {
			return fmt.Errorf("append message %d: %w", i, err)
		}
	}
	return nil
}
