package conflict

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mschirtzinger/td/internal/merge"
	"github.com/mschirtzinger/td/internal/record"
)

// Decision is the per-block choice made during resolution.
type Decision int

const (
	// KeepLocal keeps the lines from our side of the block.
	KeepLocal Decision = iota + 1
	// KeepIncoming keeps the lines pulled from the remote.
	KeepIncoming
	// KeepBoth keeps local lines followed by incoming lines.
	KeepBoth
	// Discarded means no valid choice was made and the block was dropped.
	Discarded
)

// Choices are the prompt options, in the order they are offered.
var Choices = []string{"keep-local", "keep-incoming", "keep-both"}

func (d Decision) String() string {
	switch d {
	case KeepLocal:
		return "keep-local"
	case KeepIncoming:
		return "keep-incoming"
	case KeepBoth:
		return "keep-both"
	case Discarded:
		return "discarded"
	}
	return fmt.Sprintf("Decision(%d)", int(d))
}

// ParseDecision maps a prompt answer to a Decision.
func ParseDecision(s string) (Decision, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "keep-local", "local", "ours":
		return KeepLocal, true
	case "keep-incoming", "incoming", "theirs":
		return KeepIncoming, true
	case "keep-both", "both":
		return KeepBoth, true
	}
	return 0, false
}

// Strategy selects how blocks are decided.
type Strategy string

const (
	// StrategyManual asks the user about every block (default).
	StrategyManual Strategy = "manual"
	// StrategyOurs keeps the local side of every block.
	StrategyOurs Strategy = "ours"
	// StrategyTheirs keeps the incoming side of every block.
	StrategyTheirs Strategy = "theirs"
	// StrategyBoth keeps both sides of every block.
	StrategyBoth Strategy = "both"
	// StrategyUnion ignores block boundaries and merges the two whole-file
	// views record by record.
	StrategyUnion Strategy = "union"
)

var validStrategies = map[Strategy]bool{
	StrategyManual: true,
	StrategyOurs:   true,
	StrategyTheirs: true,
	StrategyBoth:   true,
	StrategyUnion:  true,
}

// ParseStrategy validates a configured strategy name.
func ParseStrategy(s string) (Strategy, error) {
	strategy := Strategy(strings.ToLower(strings.TrimSpace(s)))
	if strategy == "" {
		return StrategyManual, nil
	}
	if !validStrategies[strategy] {
		return "", fmt.Errorf("invalid conflict strategy %q (valid: manual, ours, theirs, both, union)", s)
	}
	return strategy, nil
}

// Renderer shows both sides of a block to the user.
type Renderer interface {
	RenderSideBySide(local, incoming []record.Record) error
}

// Prompter asks the user to pick one of options. Returning an error aborts
// the whole resolution.
type Prompter interface {
	PromptChoice(ctx context.Context, options []string) (string, error)
}

// DefaultMaxPrompts is how many answers are accepted per block before it is
// discarded.
const DefaultMaxPrompts = 3

// Options configures a Resolver.
type Options struct {
	Strategy   Strategy
	Renderer   Renderer
	Prompter   Prompter
	MaxPrompts int
	Logger     *slog.Logger
}

// Resolver turns a file containing conflict markers into clean content.
// It never commits; the caller stages the result.
type Resolver struct {
	strategy   Strategy
	renderer   Renderer
	prompter   Prompter
	maxPrompts int
	logger     *slog.Logger
}

// Outcome describes a finished resolution.
type Outcome struct {
	Content   []byte
	Decisions []Decision
}

// Blocks returns how many conflict blocks were found.
func (o *Outcome) Blocks() int {
	return len(o.Decisions)
}

// New returns a Resolver for opts.
func New(opts Options) *Resolver {
	if opts.Strategy == "" {
		opts.Strategy = StrategyManual
	}
	if opts.MaxPrompts <= 0 {
		opts.MaxPrompts = DefaultMaxPrompts
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{
		strategy:   opts.Strategy,
		renderer:   opts.Renderer,
		prompter:   opts.Prompter,
		maxPrompts: opts.MaxPrompts,
		logger:     opts.Logger,
	}
}

// Resolve applies one decision per block, in document order, and returns
// the resolved content. Input without conflict markers is returned
// unchanged.
func (r *Resolver) Resolve(ctx context.Context, raw []byte) (*Outcome, error) {
	doc, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	blocks := doc.Blocks()
	if len(blocks) == 0 {
		return &Outcome{Content: raw}, nil
	}

	if r.strategy == StrategyUnion {
		return r.resolveUnion(doc, len(blocks))
	}

	out := &Outcome{}
	var lines []string
	for _, seg := range doc.Segments {
		if seg.Conflict == nil {
			lines = append(lines, seg.Lines...)
			continue
		}

		decision, err := r.decide(ctx, seg.Conflict)
		if err != nil {
			return nil, err
		}
		out.Decisions = append(out.Decisions, decision)

		switch decision {
		case KeepLocal:
			lines = append(lines, seg.Conflict.Local...)
		case KeepIncoming:
			lines = append(lines, seg.Conflict.Incoming...)
		case KeepBoth:
			lines = append(lines, seg.Conflict.Local...)
			lines = append(lines, seg.Conflict.Incoming...)
		}
	}

	out.Content = joinLines(lines, true)
	return out, nil
}

// ResolveFile resolves the file at path in place. The file is only
// rewritten when it contained conflicts and every block was decided.
func (r *Resolver) ResolveFile(ctx context.Context, path string) (*Outcome, error) {
	// #nosec G304 - store path comes from configuration
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	out, err := r.Resolve(ctx, raw)
	if err != nil {
		return nil, err
	}
	if out.Blocks() == 0 {
		return out, nil
	}

	if err := record.WriteFileAtomic(path, out.Content); err != nil {
		return nil, err
	}
	r.logger.Info("conflicts resolved", "path", path, "blocks", out.Blocks())
	return out, nil
}

func (r *Resolver) decide(ctx context.Context, block *Block) (Decision, error) {
	switch r.strategy {
	case StrategyOurs:
		return KeepLocal, nil
	case StrategyTheirs:
		return KeepIncoming, nil
	case StrategyBoth:
		return KeepBoth, nil
	}

	if r.prompter == nil {
		return 0, ErrNoPrompter
	}

	if r.renderer != nil {
		local := record.DecodeLenient(block.Local)
		incoming := record.DecodeLenient(block.Incoming)
		if err := r.renderer.RenderSideBySide(local, incoming); err != nil {
			return 0, fmt.Errorf("failed to render conflict: %w", err)
		}
	}

	for attempt := 1; attempt <= r.maxPrompts; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrConflictUnresolved, err)
		}

		answer, err := r.prompter.PromptChoice(ctx, Choices)
		if err != nil {
			if errors.Is(err, ErrConflictUnresolved) {
				return 0, err
			}
			return 0, fmt.Errorf("%w: %w", ErrConflictUnresolved, err)
		}

		if decision, ok := ParseDecision(answer); ok {
			r.logger.Debug("conflict block decided", "line", block.Line, "decision", decision.String())
			return decision, nil
		}
		r.logger.Warn("invalid conflict choice", "line", block.Line, "answer", answer, "attempt", attempt)
	}

	r.logger.Warn("no valid choice for conflict block, discarding it",
		"line", block.Line, "local_lines", len(block.Local), "incoming_lines", len(block.Incoming))
	return Discarded, nil
}

func (r *Resolver) resolveUnion(doc *Document, blocks int) (*Outcome, error) {
	localLines, incomingLines := doc.Views()

	local, err := record.Parse(joinLines(localLines, true))
	if err != nil {
		return nil, fmt.Errorf("local side: %w", err)
	}
	incoming, err := record.Parse(joinLines(incomingLines, true))
	if err != nil {
		return nil, fmt.Errorf("incoming side: %w", err)
	}

	merged := merge.Union(local, incoming)
	content, err := record.Format(merged)
	if err != nil {
		return nil, err
	}

	decisions := make([]Decision, blocks)
	for i := range decisions {
		decisions[i] = KeepBoth
	}
	r.logger.Info("conflict resolved by record union",
		"local", len(local), "incoming", len(incoming), "merged", len(merged))
	return &Outcome{Content: content, Decisions: decisions}, nil
}
