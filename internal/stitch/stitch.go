package stitch

import (
	"context"
	"sort"
	"strings"

	"github.com/jonathan/cv-pipeline/internal/types"
)

const (
	defaultMinBulletsPerRole = 2
	defaultMaxTopUps         = 1
)

// TopUpFunc requests additional candidate bullets for a role when the
// assembled body falls short of the word budget. Returned bullets go through
// the same dedup as the originals.
type TopUpFunc func(ctx context.Context, role *types.RoleRecord) ([]types.CandidateBullet, error)

// Options configures assembly. MinWords/MaxWords bound the full document;
// HeaderReserveWords is subtracted to get the body budget since the header is
// composed after stitching. Negative reserve is treated as zero.
type Options struct {
	MinWords           int
	MaxWords           int
	MinBulletsPerRole  int
	HeaderReserveWords int

	// SimilarityThreshold treats bullets whose dedup keys overlap at or above
	// this Jaccard index as duplicates. Zero disables near-duplicate matching;
	// exact key collisions are always duplicates.
	SimilarityThreshold float64

	// MaxTopUps bounds generator re-invocation rounds when the body falls
	// short. Zero takes the default single round; negative disables top-up.
	MaxTopUps int
	TopUp     TopUpFunc
}

func (o Options) withDefaults() Options {
	if o.MinBulletsPerRole <= 0 {
		o.MinBulletsPerRole = defaultMinBulletsPerRole
	}
	if o.HeaderReserveWords < 0 {
		o.HeaderReserveWords = 0
	}
	if o.MaxTopUps == 0 {
		o.MaxTopUps = defaultMaxTopUps
	}
	return o
}

// Stitcher assembles validated role bullet sets into one document body. All of
// its decisions are deterministic functions of role metadata and bullet
// content, never of arrival order.
type Stitcher struct {
	opts Options
}

// New creates a stitcher with defaults applied.
func New(opts Options) *Stitcher {
	return &Stitcher{opts: opts.withDefaults()}
}

// roleSelection tracks the bullets currently selected for one role, ordered by
// boost score descending with ID as tiebreak.
type roleSelection struct {
	role    *types.RoleRecord
	bullets []types.CandidateBullet
}

// Stitch merges the per-role bullet sets into an ordered, deduplicated body
// within the word budget. Failed roles are skipped; budget shortfalls surface
// as warnings, never as silent out-of-range output.
func (s *Stitcher) Stitch(ctx context.Context, roles []*types.RoleRecord, sets map[string]*types.RoleBulletSet) (*types.StitchedDocument, []string, error) {
	ordered := make([]*types.RoleRecord, len(roles))
	copy(ordered, roles)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Recency != ordered[j].Recency {
			return ordered[i].Recency < ordered[j].Recency
		}
		return ordered[i].ID < ordered[j].ID
	})

	seen := newKeyIndex(s.opts.SimilarityThreshold)
	selections := make([]*roleSelection, 0, len(ordered))
	for _, role := range ordered {
		set, ok := sets[role.ID]
		if !ok || set.Failed() {
			continue
		}

		candidates := make([]types.CandidateBullet, len(set.Accepted))
		copy(candidates, set.Accepted)
		sortByBoost(candidates)

		sel := &roleSelection{role: role}
		for _, b := range candidates {
			if seen.claim(Key(b.Text)) {
				sel.bullets = append(sel.bullets, b)
			}
		}
		if len(sel.bullets) > 0 {
			selections = append(selections, sel)
		}
	}

	bodyMin := s.opts.MinWords - s.opts.HeaderReserveWords
	if bodyMin < 0 {
		bodyMin = 0
	}
	bodyMax := s.opts.MaxWords - s.opts.HeaderReserveWords
	if bodyMax < bodyMin {
		bodyMax = bodyMin
	}

	s.trimToBudget(selections, bodyMax)

	var warnings []string
	if totalWords(selections) < bodyMin {
		if err := s.topUp(ctx, selections, seen, bodyMin, bodyMax); err != nil {
			return nil, nil, err
		}
	}

	words := totalWords(selections)
	if (bodyMax > 0 && words > bodyMax) || words < bodyMin {
		warnings = append(warnings, types.WarnBudgetUnattainable)
	}

	doc := &types.StitchedDocument{WordCount: words}
	for _, sel := range selections {
		if len(sel.bullets) == 0 {
			continue
		}
		doc.Sections = append(doc.Sections, types.RoleSection{
			RoleID:   sel.role.ID,
			Employer: sel.role.Employer,
			Title:    sel.role.Title,
			Period:   sel.role.Period,
			Bullets:  sel.bullets,
		})
	}

	return doc, warnings, nil
}

// trimToBudget drops whole bullets, lowest boost first, until the body fits.
// Per-role minimums are respected while any role still has surplus; if the
// body is still over budget every role is then allowed to shrink to a single
// bullet. Bullets are never truncated.
func (s *Stitcher) trimToBudget(selections []*roleSelection, bodyMax int) {
	if bodyMax <= 0 {
		return
	}
	for _, floor := range []int{s.opts.MinBulletsPerRole, 1} {
		for totalWords(selections) > bodyMax {
			victim := dropCandidate(selections, floor)
			if victim == nil {
				break
			}
			victim.bullets = victim.bullets[:len(victim.bullets)-1]
		}
	}
}

// dropCandidate picks the role whose tail bullet should go next: lowest boost
// score wins, with older roles and larger IDs dropped first on ties.
func dropCandidate(selections []*roleSelection, floor int) *roleSelection {
	var pick *roleSelection
	for _, sel := range selections {
		if len(sel.bullets) <= floor {
			continue
		}
		if pick == nil {
			pick = sel
			continue
		}
		a, b := tail(sel), tail(pick)
		switch {
		case a.BoostScore != b.BoostScore:
			if a.BoostScore < b.BoostScore {
				pick = sel
			}
		case sel.role.Recency != pick.role.Recency:
			if sel.role.Recency > pick.role.Recency {
				pick = sel
			}
		case a.ID > b.ID:
			pick = sel
		}
	}
	return pick
}

func tail(sel *roleSelection) types.CandidateBullet {
	return sel.bullets[len(sel.bullets)-1]
}

// topUp re-invokes the generator for additional candidates, bounded by
// MaxTopUps rounds, until the body reaches the minimum or candidates run out.
// Top-up failures for individual roles are skipped; the budget warning covers
// any remaining shortfall.
func (s *Stitcher) topUp(ctx context.Context, selections []*roleSelection, seen *keyIndex, bodyMin, bodyMax int) error {
	if s.opts.TopUp == nil {
		return nil
	}

	for round := 0; round < s.opts.MaxTopUps && totalWords(selections) < bodyMin; round++ {
		for _, sel := range selections {
			if totalWords(selections) >= bodyMin {
				break
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			extra, err := s.opts.TopUp(ctx, sel.role)
			if err != nil {
				continue
			}
			sortByBoost(extra)
			for _, b := range extra {
				if totalWords(selections) >= bodyMin {
					break
				}
				if bodyMax > 0 && totalWords(selections)+wordCount(b.Text) > bodyMax {
					continue
				}
				if seen.claim(Key(b.Text)) {
					sel.bullets = append(sel.bullets, b)
				}
			}
			sortByBoost(sel.bullets)
		}
	}
	return nil
}

// keyIndex tracks claimed dedup keys. claim returns true when the key is new;
// the first claimer wins, which with recency-ordered iteration means the more
// recent role (or the higher-boost bullet within a role) keeps the content.
type keyIndex struct {
	threshold float64
	keys      []types.DedupKey
	exact     map[types.DedupKey]struct{}
}

func newKeyIndex(threshold float64) *keyIndex {
	return &keyIndex{
		threshold: threshold,
		exact:     make(map[types.DedupKey]struct{}),
	}
}

func (k *keyIndex) claim(key types.DedupKey) bool {
	if _, dup := k.exact[key]; dup {
		return false
	}
	if k.threshold > 0 {
		for _, prev := range k.keys {
			if Similarity(prev, key) >= k.threshold {
				return false
			}
		}
	}
	k.exact[key] = struct{}{}
	k.keys = append(k.keys, key)
	return true
}

func sortByBoost(bullets []types.CandidateBullet) {
	sort.Slice(bullets, func(i, j int) bool {
		if bullets[i].BoostScore != bullets[j].BoostScore {
			return bullets[i].BoostScore > bullets[j].BoostScore
		}
		return bullets[i].ID < bullets[j].ID
	})
}

func totalWords(selections []*roleSelection) int {
	total := 0
	for _, sel := range selections {
		for _, b := range sel.bullets {
			total += wordCount(b.Text)
		}
	}
	return total
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}
