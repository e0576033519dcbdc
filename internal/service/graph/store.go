// Package graph owns the conversation graph: the map of cards, the edge
// list, branch/merge mutations, workspace partitioning, and the bounded
// undo/redo history. Lineage on cards is authoritative; edges are the
// rendering projection and only mutations in this package write them, so
// the two cannot drift.
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"loom/internal/config"
	"loom/internal/domain"
	"loom/internal/domain/models"
	"loom/internal/domain/services"
	"loom/internal/layout"
	"loom/internal/service/inheritance"
	"loom/internal/storage"
)

// Store is the stateful core of the engine. There is exactly one logical
// writer; the mutex makes each mutation atomic so no partial graph state
// is ever observable, even with a concurrent HTTP front end.
type Store struct {
	mu      sync.Mutex
	logger  *slog.Logger
	inherit *inheritance.Engine
	rng     layout.RandFunc

	cards             map[string]*models.Card
	edges             []models.Edge
	workspaces        []*models.Workspace
	activeWorkspaceID string
	hist              *history
	selected          map[string]bool

	graphStore *storage.VersionedStore[persistedGraph]
	wsStore    *storage.VersionedStore[persistedWorkspaces]
	saver      *storage.Debouncer
}

var _ services.GraphService = (*Store)(nil)

// NewStore creates a graph store persisting through the given backend.
// A nil rng makes card placement non-deterministic; pass a seeded one for
// reproducible layouts.
func NewStore(backend storage.Backend, rng layout.RandFunc, logger *slog.Logger) *Store {
	s := &Store{
		logger:   logger,
		inherit:  inheritance.NewEngine(logger),
		rng:      rng,
		cards:    map[string]*models.Card{},
		selected: map[string]bool{},
		hist:     newHistory(config.MaxHistoryLength),
	}
	s.graphStore = storage.NewVersionedStore[persistedGraph](backend, GraphKey, GraphSchemaVersion, graphMigrations(), logger)
	s.wsStore = storage.NewVersionedStore[persistedWorkspaces](backend, WorkspacesKey, WorkspaceSchemaVersion, workspaceMigrations(), logger)
	s.saver = storage.NewDebouncer(config.SaveDebounce, s.persistNow)
	return s
}

// LoadInfo summarizes what startup loading found.
type LoadInfo struct {
	Migrated        bool
	WorkspaceCount  int
	CardCount       int
	CorruptionError error
}

// Load restores persisted state, creating a default workspace when
// nothing (or only corrupt data) is stored. Corruption degrades to seed
// state rather than blocking startup.
func (s *Store) Load() LoadInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	var info LoadInfo

	wsResult := s.wsStore.Load(persistedWorkspaces{})
	graphResult := s.graphStore.Load(persistedGraph{Cards: map[string]*models.Card{}})
	info.Migrated = wsResult.Migrated || graphResult.Migrated
	if wsResult.Err != nil {
		info.CorruptionError = wsResult.Err
	}
	if graphResult.Err != nil {
		info.CorruptionError = graphResult.Err
	}

	s.workspaces = wsResult.Data.Workspaces
	if len(s.workspaces) == 0 {
		ws := s.newWorkspace("My Workspace", nil)
		s.workspaces = []*models.Workspace{ws}
	}
	for _, ws := range s.workspaces {
		ws.Metadata.SchemaVersion = WorkspaceSchemaVersion
	}

	s.activeWorkspaceID = graphResult.Data.ActiveWorkspaceID
	if s.findWorkspace(s.activeWorkspaceID) == nil {
		s.activeWorkspaceID = s.workspaces[0].ID
	}

	s.cards = graphResult.Data.Cards
	if s.cards == nil {
		s.cards = map[string]*models.Card{}
	}
	s.edges = graphResult.Data.Edges

	s.hist.reset(s.snapshot())

	info.WorkspaceCount = len(s.workspaces)
	info.CardCount = len(s.cards)
	s.logger.Info("graph loaded",
		"workspaces", info.WorkspaceCount,
		"cards", info.CardCount,
		"migrated", info.Migrated,
	)
	return info
}

// Flush writes any pending debounced save immediately. Call on shutdown.
func (s *Store) Flush() {
	s.saver.Flush()
}

// CreateCard creates a root conversation card with no lineage.
func (s *Store) CreateCard(ctx context.Context, req *services.CreateCardRequest) (*models.Card, error) {
	if err := validation.ValidateStruct(req,
		validation.Field(&req.Title, validation.Length(0, config.MaxTitleLength)),
	); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	title := req.Title
	if title == "" {
		title = "New Conversation"
	}
	now := time.Now()
	card := &models.Card{
		ID:               uuid.New().String(),
		WorkspaceID:      s.activeWorkspaceID,
		Position:         s.rootPosition(req.Position),
		Content:          []models.Message{},
		InheritedContext: map[string]models.InheritedContext{},
		Metadata: models.CardMetadata{
			Title:      title,
			CreatedAt:  now,
			UpdatedAt:  now,
			Tags:       append([]string(nil), req.Tags...),
			IsExpanded: true,
		},
	}
	before := s.snapshot()
	s.cards[card.ID] = card

	s.commit(before)
	s.logger.Info("card created", "card_id", card.ID, "title", title)
	return card.Clone(), nil
}

// BranchFromMessage creates a child card branching from a message offset
// in the source card. The inherited context is materialized once, here.
func (s *Store) BranchFromMessage(ctx context.Context, req *services.BranchRequest) (*models.Card, error) {
	if err := validateBranchRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	source, ok := s.cards[req.SourceCardID]
	if !ok {
		s.logger.Warn("branch requested from missing card", "source_card_id", req.SourceCardID)
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("card %s not found", req.SourceCardID)}
	}
	if len(source.Content) == 0 {
		return nil, &domain.ValidationError{Message: "source card has no messages to branch from"}
	}
	if req.MessageIndex < 0 || req.MessageIndex >= len(source.Content) {
		return nil, &domain.ValidationError{Message: fmt.Sprintf(
			"message index %d out of bounds (card has %d messages)", req.MessageIndex, len(source.Content))}
	}

	inherited, err := s.inherit.Build(inheritance.BuildParams{
		ParentID:       source.ID,
		ParentMessages: source.Content,
		BranchIndex:    req.MessageIndex,
		Mode:           req.InheritanceMode,
		SummaryText:    req.SummaryText,
		CustomIDs:      req.CustomMessageIDs,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	card := &models.Card{
		ID:            uuid.New().String(),
		WorkspaceID:   s.activeWorkspaceID,
		Position:      s.childPosition(source, req.Position),
		Content:       []models.Message{},
		ParentCardIDs: []string{source.ID},
		BranchPoint: &models.BranchPoint{
			ParentCardID: source.ID,
			MessageIndex: req.MessageIndex,
		},
		InheritedContext: map[string]models.InheritedContext{source.ID: inherited},
		Metadata: models.CardMetadata{
			Title:      branchTitle(req.BranchReason, source, req.MessageIndex),
			CreatedAt:  now,
			UpdatedAt:  now,
			IsExpanded: true,
		},
	}

	// Defensive re-check: a fresh child can never close a cycle by
	// construction, but edge creation is always gated.
	check := CanConnect(source.ID, card.ID, s.edges, s.withCard(card))
	if !check.Valid {
		s.logger.Error("branch edge rejected by cycle check", "reason", check.Reason)
		return nil, &domain.CycleError{Message: check.Reason}
	}

	before := s.snapshot()
	s.cards[card.ID] = card
	s.edges = append(s.edges, models.Edge{
		ID:           uuid.New().String(),
		Source:       source.ID,
		Target:       card.ID,
		RelationType: models.RelationBranch,
		CurveStyle:   "bezier",
	})

	s.commit(before)
	s.logger.Info("branch created",
		"card_id", card.ID,
		"source_card_id", source.ID,
		"message_index", req.MessageIndex,
		"mode", inherited.Mode,
	)
	return card.Clone(), nil
}

// CreateMergeNode creates a card synthesizing multiple source threads.
// Exceeding the parent limit is a structured, non-fatal rejection with an
// actionable remedy; crossing the warn threshold only warns.
func (s *Store) CreateMergeNode(ctx context.Context, req *services.MergeRequest) (*services.MergeResult, error) {
	if len(req.SourceCardIDs) > config.MaxMergeParents {
		s.logger.Warn("merge rejected: too many sources",
			"requested", len(req.SourceCardIDs),
			"limit", config.MaxMergeParents,
		)
		return nil, &domain.MergeLimitError{
			Requested: len(req.SourceCardIDs),
			Limit:     config.MaxMergeParents,
			Remedy:    fmt.Sprintf("merge at most %d cards at once, or create an intermediate merge first", config.MaxMergeParents),
		}
	}
	if err := validateMergeRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var warnings []string
	if len(req.SourceCardIDs) >= config.MergeWarnThreshold {
		warnings = append(warnings, fmt.Sprintf(
			"merging %d threads may dilute context; consider merging fewer at a time", len(req.SourceCardIDs)))
	}

	sources := make([]*models.Card, 0, len(req.SourceCardIDs))
	for _, id := range req.SourceCardIDs {
		card, ok := s.cards[id]
		if !ok {
			s.logger.Warn("merge source missing, skipping", "card_id", id)
			warnings = append(warnings, fmt.Sprintf("source card %s no longer exists and was skipped", id))
			continue
		}
		sources = append(sources, card)
	}
	if len(sources) < 2 {
		return nil, &domain.ValidationError{Message: "a merge needs at least two existing source cards"}
	}

	now := time.Now()
	card := &models.Card{
		ID:               uuid.New().String(),
		WorkspaceID:      s.activeWorkspaceID,
		Position:         s.mergePosition(sources, req.Position),
		Content:          []models.Message{},
		IsMergeNode:      true,
		InheritedContext: map[string]models.InheritedContext{},
		MergeMetadata: &models.MergeMetadata{
			SourceCardIDs:   make([]string, 0, len(sources)),
			SynthesisPrompt: req.SynthesisPrompt,
			CreatedAt:       now,
		},
		Metadata: models.CardMetadata{
			Title:      fmt.Sprintf("Merge of %d threads", len(sources)),
			CreatedAt:  now,
			UpdatedAt:  now,
			IsExpanded: true,
		},
	}

	bundled := len(sources) >= config.EdgeBundleThreshold
	var newEdges []models.Edge
	for _, source := range sources {
		// Every candidate edge passes the cycle gate; failures skip
		// that edge with a warning instead of aborting the merge.
		check := CanConnect(source.ID, card.ID, append(s.edges, newEdges...), s.withCard(card))
		if !check.Valid {
			s.logger.Warn("merge edge skipped", "source_card_id", source.ID, "reason", check.Reason)
			warnings = append(warnings, fmt.Sprintf("edge from %s skipped: %s", source.ID, check.Reason))
			continue
		}

		mode := models.InheritFull
		if m, ok := req.InheritanceModes[source.ID]; ok {
			mode = m
		}
		inherited, err := s.inherit.Build(inheritance.BuildParams{
			ParentID:       source.ID,
			ParentMessages: source.Content,
			BranchIndex:    inheritance.EntireContent,
			Mode:           mode,
			SummaryText:    req.SummaryTexts[source.ID],
		})
		if err != nil {
			return nil, err
		}

		card.ParentCardIDs = append(card.ParentCardIDs, source.ID)
		card.MergeMetadata.SourceCardIDs = append(card.MergeMetadata.SourceCardIDs, source.ID)
		card.InheritedContext[source.ID] = inherited

		edge := models.Edge{
			ID:           uuid.New().String(),
			Source:       source.ID,
			Target:       card.ID,
			RelationType: models.RelationMerge,
			CurveStyle:   "bezier",
			Animated:     true,
			Bundled:      bundled,
		}
		// Only the first edge of a bundle carries the count label.
		if bundled && len(newEdges) == 0 {
			edge.BundleCount = len(sources)
		}
		newEdges = append(newEdges, edge)
	}

	if len(card.ParentCardIDs) < 2 {
		return nil, &domain.ValidationError{Message: "merge aborted: fewer than two sources could be connected"}
	}

	before := s.snapshot()
	s.cards[card.ID] = card
	s.edges = append(s.edges, newEdges...)

	s.commit(before)
	s.logger.Info("merge node created",
		"card_id", card.ID,
		"sources", len(card.ParentCardIDs),
		"bundled", bundled,
	)
	return &services.MergeResult{Card: card.Clone(), Warnings: warnings}, nil
}

// CreateEdge adds a manual edge, gated by the cycle-safety check.
func (s *Store) CreateEdge(ctx context.Context, req *services.ConnectRequest) (*models.Edge, error) {
	if err := validateConnectRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range []string{req.SourceID, req.TargetID} {
		if _, ok := s.cards[id]; !ok {
			s.logger.Warn("connect requested with missing card", "card_id", id)
			return nil, &domain.NotFoundError{Message: fmt.Sprintf("card %s not found", id)}
		}
	}

	check := CanConnect(req.SourceID, req.TargetID, s.edges, s.cards)
	if !check.Valid {
		s.logger.Warn("edge rejected",
			"source", req.SourceID,
			"target", req.TargetID,
			"reason", check.Reason,
		)
		return nil, &domain.CycleError{Message: check.Reason}
	}

	relation := req.RelationType
	if relation == "" {
		relation = models.RelationReference
	}
	edge := models.Edge{
		ID:           uuid.New().String(),
		Source:       req.SourceID,
		Target:       req.TargetID,
		RelationType: relation,
		CurveStyle:   "bezier",
	}
	before := s.snapshot()
	s.edges = append(s.edges, edge)

	s.commit(before)
	s.logger.Info("edge created", "source", req.SourceID, "target", req.TargetID, "relation", relation)
	return &edge, nil
}

// DeleteConversation removes a card, its incident edges, and its entry in
// the selection set. Past history snapshots retain the card so undo can
// restore it.
func (s *Store) DeleteConversation(ctx context.Context, cardID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cards[cardID]; !ok {
		// Guard against races between UI events and deletions.
		s.logger.Warn("delete requested for missing card", "card_id", cardID)
		return &domain.NotFoundError{Message: fmt.Sprintf("card %s not found", cardID)}
	}

	before := s.snapshot()
	delete(s.cards, cardID)
	delete(s.selected, cardID)

	kept := s.edges[:0]
	removed := 0
	for _, e := range s.edges {
		if e.Source == cardID || e.Target == cardID {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.edges = kept

	s.commit(before)
	s.logger.Info("conversation deleted", "card_id", cardID, "edges_removed", removed)
	return nil
}

// UpdateConversation shallow-merges display fields. ParentCardIDs and
// InheritedContext are only ever written at creation time or by
// UpdateInheritedSummary, never here. Metadata edits are not
// history-tracked.
func (s *Store) UpdateConversation(ctx context.Context, cardID string, req *services.UpdateCardRequest) (*models.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	card, ok := s.cards[cardID]
	if !ok {
		s.logger.Warn("update requested for missing card", "card_id", cardID)
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("card %s not found", cardID)}
	}

	if req.Title != nil {
		if len(*req.Title) == 0 || len(*req.Title) > config.MaxTitleLength {
			return nil, &domain.ValidationError{Message: fmt.Sprintf("title must be 1-%d characters", config.MaxTitleLength)}
		}
		card.Metadata.Title = *req.Title
	}
	if req.Tags != nil {
		card.Metadata.Tags = append([]string(nil), req.Tags...)
	}
	if req.IsExpanded != nil {
		card.Metadata.IsExpanded = *req.IsExpanded
	}
	if req.Position != nil {
		card.Position = *req.Position
	}
	card.Metadata.UpdatedAt = time.Now()

	s.saver.Trigger()
	return card.Clone(), nil
}

// AppendMessage appends one immutable message to a card's content.
func (s *Store) AppendMessage(ctx context.Context, cardID string, req *services.AppendMessageRequest) (*models.Card, error) {
	if err := validateAppendRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	card, ok := s.cards[cardID]
	if !ok {
		s.logger.Warn("message append to missing card", "card_id", cardID)
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("card %s not found", cardID)}
	}

	card.Content = append(card.Content, models.Message{
		ID:        ulid.Make().String(),
		Role:      req.Role,
		Content:   req.Content,
		Timestamp: time.Now(),
	})
	card.Metadata.MessageCount = len(card.Content)
	card.Metadata.UpdatedAt = time.Now()

	s.saver.Trigger()
	return card.Clone(), nil
}

// UpdateInheritedSummary replaces the synthetic summary for one parent
// link and re-timestamps that entry. Other parents' entries are never
// touched.
func (s *Store) UpdateInheritedSummary(ctx context.Context, cardID, parentID, summaryText string) (*models.Card, error) {
	if summaryText == "" {
		return nil, &domain.ValidationError{Message: "summary text is required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	card, ok := s.cards[cardID]
	if !ok {
		s.logger.Warn("summary update for missing card", "card_id", cardID)
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("card %s not found", cardID)}
	}
	entry, ok := card.InheritedContext[parentID]
	if !ok {
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("card %s has no inherited context from %s", cardID, parentID)}
	}

	entry.Mode = models.InheritSummary
	entry.Messages = []models.Message{inheritance.SummaryMessage(summaryText, entry.TotalParentMessages)}
	entry.Timestamp = time.Now()
	card.InheritedContext[parentID] = entry
	card.Metadata.UpdatedAt = time.Now()

	s.saver.Trigger()
	s.logger.Info("inherited summary regenerated", "card_id", cardID, "parent_id", parentID)
	return card.Clone(), nil
}

// MoveCard updates a card's position. Intermediate drag positions only
// trigger the debounced save; the completed drag is history-tracked.
func (s *Store) MoveCard(ctx context.Context, cardID string, position models.Position, final bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	card, ok := s.cards[cardID]
	if !ok {
		s.logger.Warn("move requested for missing card", "card_id", cardID)
		return &domain.NotFoundError{Message: fmt.Sprintf("card %s not found", cardID)}
	}

	if final {
		before := s.snapshot()
		card.Position = position
		s.commit(before)
	} else {
		card.Position = position
		s.saver.Trigger()
	}
	return nil
}

// SetSelection replaces the selected-card set. Selection is transient UI
// state: never history-tracked, but unknown ids are dropped so it cannot
// corrupt structural state.
func (s *Store) SetSelection(ctx context.Context, cardIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selected = map[string]bool{}
	for _, id := range cardIDs {
		if _, ok := s.cards[id]; ok {
			s.selected[id] = true
		}
	}
	return nil
}

// Undo swaps state back to the previous history snapshot.
func (s *Store) Undo(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.hist.undo()
	if snap == nil {
		return false, nil
	}
	s.restore(snap)
	s.logger.Info("undo applied", "cards", len(s.cards))
	return true, nil
}

// Redo swaps state forward to the next history snapshot.
func (s *Store) Redo(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.hist.redo()
	if snap == nil {
		return false, nil
	}
	s.restore(snap)
	s.logger.Info("redo applied", "cards", len(s.cards))
	return true, nil
}

// GetCard returns a copy of one card.
func (s *Store) GetCard(ctx context.Context, cardID string) (*models.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	card, ok := s.cards[cardID]
	if !ok {
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("card %s not found", cardID)}
	}
	return card.Clone(), nil
}

// Projection returns the rendering-oriented view of the active graph.
func (s *Store) Projection(ctx context.Context) (*services.GraphProjection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return &services.GraphProjection{
		WorkspaceID: s.activeWorkspaceID,
		Nodes:       s.projectNodes(),
		Edges:       models.CloneEdges(s.edges),
		CanUndo:     s.hist.canUndo(),
		CanRedo:     s.hist.canRedo(),
	}, nil
}

// Workspaces lists all workspaces.
func (s *Store) Workspaces(ctx context.Context) ([]*models.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Workspace, len(s.workspaces))
	for i, ws := range s.workspaces {
		out[i] = ws.Clone()
	}
	return out, nil
}

// CreateWorkspace adds an empty workspace. The active workspace does not
// change; navigate explicitly.
func (s *Store) CreateWorkspace(ctx context.Context, req *services.CreateWorkspaceRequest) (*models.Workspace, error) {
	if err := validation.ValidateStruct(req,
		validation.Field(&req.Title, validation.Required, validation.Length(1, config.MaxTitleLength)),
	); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ws := s.newWorkspace(req.Title, req.Tags)
	s.workspaces = append(s.workspaces, ws)

	s.saver.Trigger()
	s.logger.Info("workspace created", "workspace_id", ws.ID, "title", ws.Title)
	return ws.Clone(), nil
}

// UpdateWorkspace edits workspace title, tags, or context instructions.
func (s *Store) UpdateWorkspace(ctx context.Context, id string, req *services.UpdateWorkspaceRequest) (*models.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws := s.findWorkspace(id)
	if ws == nil {
		s.logger.Warn("update requested for missing workspace", "workspace_id", id)
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("workspace %s not found", id)}
	}

	if req.Title != nil {
		if len(*req.Title) == 0 || len(*req.Title) > config.MaxTitleLength {
			return nil, &domain.ValidationError{Message: fmt.Sprintf("title must be 1-%d characters", config.MaxTitleLength)}
		}
		ws.Title = *req.Title
	}
	if req.Tags != nil {
		ws.Tags = append([]string(nil), req.Tags...)
	}
	if req.Instructions != nil {
		ws.Context.Instructions = *req.Instructions
	}
	ws.Metadata.UpdatedAt = time.Now()

	s.saver.Trigger()
	return ws.Clone(), nil
}

// NavigateToWorkspace saves the active graph into its workspace record,
// swaps in the target's cards/edges, clears the selection, and reseeds
// history with a single snapshot. Undo never crosses this boundary.
func (s *Store) NavigateToWorkspace(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.findWorkspace(id)
	if target == nil {
		s.logger.Warn("navigation to missing workspace", "workspace_id", id)
		return &domain.NotFoundError{Message: fmt.Sprintf("workspace %s not found", id)}
	}
	if id == s.activeWorkspaceID {
		return nil
	}

	s.stashActiveWorkspace()

	s.activeWorkspaceID = target.ID
	s.cards = map[string]*models.Card{}
	for _, c := range target.Cards {
		s.cards[c.ID] = c.Clone()
	}
	s.edges = models.CloneEdges(target.Edges)
	s.selected = map[string]bool{}
	s.hist.reset(s.snapshot())

	s.saver.Trigger()
	s.logger.Info("workspace activated", "workspace_id", id, "cards", len(s.cards))
	return nil
}

// --- internals (callers hold s.mu) ---

// commit records a tracked mutation: the current history slot is amended
// to the pre-mutation state (capturing untracked drift such as appended
// messages), the post-mutation state is pushed, and a save is scheduled.
// Every structural mutation funnels through here.
func (s *Store) commit(before *models.HistorySnapshot) {
	s.hist.amend(before)
	s.hist.push(s.snapshot())
	s.saver.Trigger()
}

// snapshot deep-copies the current card/edge state.
func (s *Store) snapshot() *models.HistorySnapshot {
	snap := &models.HistorySnapshot{
		Edges: models.CloneEdges(s.edges),
		Cards: make(map[string]*models.Card, len(s.cards)),
	}
	for id, c := range s.cards {
		snap.Cards[id] = c.Clone()
	}
	snap.Nodes = make([]models.GraphNode, 0, len(snap.Cards))
	for id, c := range snap.Cards {
		snap.Nodes = append(snap.Nodes, models.GraphNode{
			ID:       id,
			Position: c.Position,
			Data:     models.NodeData{Card: c, IsExpanded: c.Metadata.IsExpanded},
		})
	}
	return snap
}

// restore replaces live state with a deep copy of the snapshot, prunes
// the selection of vanished cards, and resaves.
func (s *Store) restore(snap *models.HistorySnapshot) {
	copied := snap.Clone()
	s.cards = copied.Cards
	s.edges = copied.Edges
	for id := range s.selected {
		if _, ok := s.cards[id]; !ok {
			delete(s.selected, id)
		}
	}
	s.saver.Trigger()
}

// persistNow writes both collections. Runs on the debounce timer
// goroutine; it takes the lock to read a consistent state. Persistence is
// idempotent: it always writes the full current state.
func (s *Store) persistNow() {
	s.mu.Lock()
	s.stashActiveWorkspace()
	graph := persistedGraph{
		ActiveWorkspaceID: s.activeWorkspaceID,
		Cards:             make(map[string]*models.Card, len(s.cards)),
		Edges:             models.CloneEdges(s.edges),
	}
	for id, c := range s.cards {
		graph.Cards[id] = c.Clone()
	}
	workspaces := persistedWorkspaces{Workspaces: make([]*models.Workspace, len(s.workspaces))}
	for i, ws := range s.workspaces {
		workspaces.Workspaces[i] = ws.Clone()
	}
	s.mu.Unlock()

	if !s.graphStore.Save(graph) {
		s.logger.Warn("graph save failed; in-memory state remains authoritative")
	}
	if !s.wsStore.Save(workspaces) {
		s.logger.Warn("workspace save failed; in-memory state remains authoritative")
	}
}

// stashActiveWorkspace folds the live cards/edges back into the active
// workspace record so the workspace list stays navigable.
func (s *Store) stashActiveWorkspace() {
	ws := s.findWorkspace(s.activeWorkspaceID)
	if ws == nil {
		return
	}
	ws.Cards = make([]*models.Card, 0, len(s.cards))
	for _, c := range s.cards {
		ws.Cards = append(ws.Cards, c.Clone())
	}
	ws.Edges = models.CloneEdges(s.edges)
	ws.Metadata.UpdatedAt = time.Now()
}

func (s *Store) findWorkspace(id string) *models.Workspace {
	for _, ws := range s.workspaces {
		if ws.ID == id {
			return ws
		}
	}
	return nil
}

func (s *Store) newWorkspace(title string, tags []string) *models.Workspace {
	now := time.Now()
	return &models.Workspace{
		ID:    uuid.New().String(),
		Title: title,
		Cards: []*models.Card{},
		Edges: []models.Edge{},
		Tags:  append([]string(nil), tags...),
		Metadata: models.WorkspaceMetadata{
			SchemaVersion: WorkspaceSchemaVersion,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
	}
}

// withCard returns the card map including a card not yet committed, for
// cycle checks against the candidate state.
func (s *Store) withCard(card *models.Card) map[string]*models.Card {
	out := make(map[string]*models.Card, len(s.cards)+1)
	for id, c := range s.cards {
		out[id] = c
	}
	out[card.ID] = card
	return out
}

func (s *Store) projectNodes() []models.GraphNode {
	nodes := make([]models.GraphNode, 0, len(s.cards))
	for id, c := range s.cards {
		nodes = append(nodes, models.GraphNode{
			ID:       id,
			Position: c.Position,
			Data: models.NodeData{
				Card:       c.Clone(),
				IsExpanded: c.Metadata.IsExpanded,
				IsSelected: s.selected[id],
			},
		})
	}
	return nodes
}

// rootPosition lays new root cards out on the default grid, offset by how
// many roots already exist.
func (s *Store) rootPosition(requested *models.Position) models.Position {
	if requested != nil {
		return *requested
	}
	roots := 0
	for _, c := range s.cards {
		if c.IsRoot() {
			roots++
		}
	}
	grid := layout.GridPositions(roots+1, layout.DefaultColumns, layout.DefaultSpacingX, layout.DefaultSpacingY, 24, s.rng)
	return grid[roots]
}

func (s *Store) childPosition(parent *models.Card, requested *models.Position) models.Position {
	if requested != nil {
		return *requested
	}
	siblings := 0
	for _, c := range s.cards {
		for _, pid := range c.ParentCardIDs {
			if pid == parent.ID {
				siblings++
				break
			}
		}
	}
	return layout.ChildPosition(parent.Position, siblings, s.rng)
}

func (s *Store) mergePosition(sources []*models.Card, requested *models.Position) models.Position {
	if requested != nil {
		return *requested
	}
	positions := make([]models.Position, len(sources))
	for i, c := range sources {
		positions[i] = c.Position
	}
	return layout.MergePosition(positions, s.rng)
}

// branchTitle derives a card title from the branch reason, falling back
// to a generated placeholder.
func branchTitle(reason string, source *models.Card, messageIndex int) string {
	if reason != "" {
		if len(reason) > config.MaxTitleLength {
			return reason[:config.MaxTitleLength]
		}
		return reason
	}
	parentTitle := source.Metadata.Title
	if parentTitle == "" {
		parentTitle = "untitled"
	}
	return fmt.Sprintf("Branch of %s (message %d)", parentTitle, messageIndex+1)
}

// --- request validation ---

func validateBranchRequest(req *services.BranchRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.SourceCardID, validation.Required),
		validation.Field(&req.MessageIndex, validation.Min(0)),
		validation.Field(&req.BranchReason, validation.Length(0, config.MaxTitleLength)),
		validation.Field(&req.InheritanceMode, validation.In(
			models.InheritanceMode(""), models.InheritFull, models.InheritSummary, models.InheritCustom)),
	)
}

func validateMergeRequest(req *services.MergeRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.SourceCardIDs, validation.Required, validation.Length(2, 0)),
		validation.Field(&req.SynthesisPrompt, validation.Length(0, config.MaxSynthesisPromptLength)),
	)
}

func validateConnectRequest(req *services.ConnectRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.SourceID, validation.Required),
		validation.Field(&req.TargetID, validation.Required),
		validation.Field(&req.RelationType, validation.In(
			models.RelationType(""), models.RelationBranch, models.RelationMerge, models.RelationReference)),
	)
}

func validateAppendRequest(req *services.AppendMessageRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Role, validation.Required, validation.In(
			models.RoleUser, models.RoleAssistant, models.RoleSystem)),
		validation.Field(&req.Content, validation.Required),
	)
}
