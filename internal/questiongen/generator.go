package questiongen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"

	"github.com/lexiworks/lexisurvey/internal/discriminator"
	"github.com/lexiworks/lexisurvey/internal/itembank"
)

// Generator builds multiple-choice questions from an item repository.
// It is safe for concurrent use.
type Generator struct {
	repo    itembank.Repository
	checker discriminator.Checker
	config  Config
	logger  *slog.Logger

	onDegraded func()
	onRejected func()

	mu  sync.Mutex
	rng *rand.Rand
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithSeed makes target selection, sampling order and shuffling
// deterministic.
func WithSeed(seed uint64) GeneratorOption {
	return func(g *Generator) {
		g.rng = rand.New(rand.NewPCG(seed, seed+1))
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) GeneratorOption {
	return func(g *Generator) { g.logger = l }
}

// WithHooks registers callbacks for degraded questions and rejected
// distractors.
func WithHooks(onDegraded, onRejected func()) GeneratorOption {
	return func(g *Generator) {
		g.onDegraded = onDegraded
		g.onRejected = onRejected
	}
}

// New creates a Generator. A nil checker selects one from the
// repository's capabilities.
func New(repo itembank.Repository, checker discriminator.Checker, cfg Config, opts ...GeneratorOption) *Generator {
	g := &Generator{
		repo:    repo,
		checker: checker,
		config:  cfg.withDefaults(),
		logger:  slog.Default(),
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.checker == nil {
		g.checker = discriminator.New(repo, discriminator.Options{Logger: g.logger})
	}
	return g
}

// Window returns the half-width searched around target ranks.
func (g *Generator) Window() int { return g.config.Window }

// Checker returns the distractor checker in use.
func (g *Generator) Checker() discriminator.Checker { return g.checker }

// Generate builds a question near req.TargetRank. Transient repository
// failures are retried with backoff. It fails with
// itembank.ErrItemNotFound only when the repository is empty.
func (g *Generator) Generate(ctx context.Context, req Request) (*Question, error) {
	var lastErr error
	for attempt := range g.config.Retry.MaxAttempts {
		q, err := g.build(ctx, req)
		if err == nil {
			return q, nil
		}
		lastErr = err
		if !errors.Is(err, itembank.ErrUnavailable) {
			return nil, err
		}
		if attempt == g.config.Retry.MaxAttempts-1 {
			break
		}

		wait := g.backoff(attempt)
		g.logger.WarnContext(ctx, "item repository unavailable, retrying",
			"event", "repository_retry",
			"attempt", attempt+1,
			"wait", wait,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-after(wait):
		}
	}
	return nil, lastErr
}

// assembly accumulates distractors while keeping option texts unique.
type assembly struct {
	target  itembank.Item
	used    map[string]bool
	texts   map[string]bool
	options []Option
}

func newAssembly(target itembank.Item) *assembly {
	a := &assembly{
		target: target,
		used:   map[string]bool{target.ID: true},
		texts:  map[string]bool{normalizeText(target.Gloss): true, normalizeText(UnknownOptionText): true},
	}
	a.options = append(a.options, Option{Text: target.Gloss, Kind: KindCorrect, ItemID: target.ID})
	return a
}

// fits reports whether it could be added without duplicating an item or
// an option text.
func (a *assembly) fits(it itembank.Item) bool {
	return !a.used[it.ID] && !a.texts[normalizeText(it.Gloss)]
}

// distractors counts options other than the correct answer.
func (a *assembly) distractors() int { return len(a.options) - 1 }

func (a *assembly) add(it itembank.Item, kind OptionKind) {
	a.used[it.ID] = true
	a.texts[normalizeText(it.Gloss)] = true
	a.options = append(a.options, Option{Text: it.Gloss, Kind: kind, ItemID: it.ID})
}

func (g *Generator) build(ctx context.Context, req Request) (*Question, error) {
	target, err := g.pickTarget(ctx, req)
	if err != nil {
		return nil, err
	}

	// One slot belongs to the correct answer and one to "I don't know".
	slots := g.config.Options - 2
	a := newAssembly(*target)
	rejected := 0

	confused, err := g.repo.Relationships(ctx, target.ID, itembank.RelationConfused)
	if err != nil {
		return nil, fmt.Errorf("confused relations of %q: %w", target.ID, err)
	}
	for _, i := range g.perm(len(confused)) {
		if !a.fits(confused[i]) {
			continue
		}
		ok, err := g.offer(ctx, a, confused[i], KindConfused)
		if err != nil {
			return nil, err
		}
		if !ok {
			rejected++
		}
		break
	}

	var pool []itembank.Item
	var kinds []OptionKind
	for _, rk := range []itembank.RelationKind{itembank.RelationRelated, itembank.RelationOpposite} {
		rel, err := g.repo.Relationships(ctx, target.ID, rk)
		if err != nil {
			return nil, fmt.Errorf("%s relations of %q: %w", rk, target.ID, err)
		}
		for _, it := range rel {
			pool = append(pool, it)
			kinds = append(kinds, OptionKind(rk))
		}
	}
	g.shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
		kinds[i], kinds[j] = kinds[j], kinds[i]
	})
	taken := 0
	for i := range pool {
		if taken >= g.config.MaxRelated || a.distractors() >= slots {
			break
		}
		if !a.fits(pool[i]) {
			continue
		}
		ok, err := g.offer(ctx, a, pool[i], kinds[i])
		if err != nil {
			return nil, err
		}
		if !ok {
			rejected++
		}
		taken++
	}

	// Far items fill the remaining slots, including those of rejected
	// relationship distractors.
	need := slots - a.distractors()
	if need > 0 {
		far, err := g.repo.Sample(ctx, itembank.SampleQuery{
			Center:      target.Rank,
			MinDistance: g.config.FarDistance,
			Limit:       need * 2,
			Exclude:     a.used,
		})
		if err != nil {
			return nil, fmt.Errorf("sample far items: %w", err)
		}
		for _, it := range far {
			if a.distractors() >= slots {
				break
			}
			if a.fits(it) {
				a.add(it, KindFar)
			}
		}
	}

	lowQuality := false
	need = slots - a.distractors()
	if need > 0 {
		lowQuality = true
		pad, err := g.repo.Sample(ctx, itembank.SampleQuery{
			Center:  target.Rank,
			Limit:   need * 3,
			Exclude: a.used,
		})
		if err != nil {
			return nil, fmt.Errorf("sample padding items: %w", err)
		}
		for _, it := range pad {
			if a.distractors() >= slots {
				break
			}
			if a.fits(it) {
				a.add(it, KindPadding)
			}
		}
	}

	a.options = append(a.options, Option{Text: UnknownOptionText, Kind: KindUnknown})
	if len(a.options) < g.config.Options {
		lowQuality = true
	}

	q := g.finish(req, *target, a.options)
	q.LowQuality = lowQuality
	if lowQuality {
		g.logger.WarnContext(ctx, "not enough valid distractors, question padded",
			"event", "question_degraded",
			"item_id", target.ID,
			"target_rank", req.TargetRank,
			"options", len(q.Options),
			"rejected", rejected,
		)
		if g.onDegraded != nil {
			g.onDegraded()
		}
	}

	for _, v := range g.config.Validators {
		if verr := v.Validate(q); verr != nil {
			return nil, verr
		}
	}
	return q, nil
}

// offer runs a relationship-derived candidate through the checker and
// adds it when accepted. A rejected candidate is not replaced by another
// of the same kind; its slot is left for a far item.
func (g *Generator) offer(ctx context.Context, a *assembly, cand itembank.Item, kind OptionKind) (bool, error) {
	ok, err := g.checker.IsValidTrap(ctx, cand, a.target)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		g.logger.WarnContext(ctx, "distractor check failed, treating as rejected",
			"event", "distractor_check_failed",
			"item_id", cand.ID,
			"target", a.target.ID,
			"error", err,
		)
		ok = false
	}
	if !ok {
		// Keep it out of far and padding samples too.
		a.used[cand.ID] = true
		if g.onRejected != nil {
			g.onRejected()
		}
		return false, nil
	}
	a.add(cand, kind)
	return true, nil
}

// pickTarget selects a random item within the window, avoiding excluded
// items when possible. An empty window falls back to the nearest item.
func (g *Generator) pickTarget(ctx context.Context, req Request) (*itembank.Item, error) {
	near, err := g.repo.FindNearRank(ctx, req.TargetRank, g.config.Window)
	if err != nil {
		return nil, fmt.Errorf("find near rank %d: %w", req.TargetRank, err)
	}
	if len(near) == 0 {
		it, err := g.repo.Nearest(ctx, req.TargetRank)
		if err != nil {
			return nil, fmt.Errorf("nearest to rank %d: %w", req.TargetRank, err)
		}
		near, err = g.repo.FindNearRank(ctx, it.Rank, g.config.Window)
		if err != nil {
			return nil, fmt.Errorf("find near rank %d: %w", it.Rank, err)
		}
		if len(near) == 0 {
			near = []itembank.Item{*it}
		}
	}

	fresh := make([]itembank.Item, 0, len(near))
	for _, it := range near {
		if !req.Exclude[it.ID] {
			fresh = append(fresh, it)
		}
	}
	if len(fresh) > 0 {
		near = fresh
	}
	it := near[g.intN(len(near))]
	return &it, nil
}

func (g *Generator) finish(req Request, target itembank.Item, opts []Option) *Question {
	g.shuffle(len(opts), func(i, j int) { opts[i], opts[j] = opts[j], opts[i] })

	q := &Question{
		Ref:        uuid.NewString(),
		SessionID:  req.SessionID,
		ItemID:     target.ID,
		Word:       target.Word,
		Phase:      req.Phase,
		TargetRank: req.TargetRank,
		ItemRank:   target.Rank,
		Options:    opts,
	}
	letter := 'a'
	for i := range q.Options {
		if q.Options[i].Kind == KindUnknown {
			q.Options[i].ID = UnknownOptionID
			continue
		}
		q.Options[i].ID = string(letter)
		letter++
		if q.Options[i].Kind == KindCorrect {
			q.CorrectOptionID = q.Options[i].ID
		}
	}
	return q
}

func (g *Generator) intN(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.IntN(n)
}

func (g *Generator) perm(n int) []int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Perm(n)
}

func (g *Generator) shuffle(n int, swap func(i, j int)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rng.Shuffle(n, swap)
}
