// ABOUTME: Search planner evaluating parsed terms against the metadata index
// ABOUTME: Intersects per-term candidates across the query and system namespaces

package query

import (
	"context"
	"sort"

	"github.com/nainya/metacatalog/pkg/entity"
)

// Finder looks up the entities of a namespace carrying an index term.
type Finder interface {
	FindEntities(ctx context.Context, namespace, term string, prefix bool) ([]entity.ID, error)
}

// Planner executes queries against a Finder.
type Planner struct {
	finder Finder
}

func NewPlanner(finder Finder) *Planner {
	return &Planner{finder: finder}
}

// Search returns the entities of namespace, plus those of the system
// namespace, that match every term and the target. Results are unique and
// ordered by their string form.
func (p *Planner) Search(ctx context.Context, namespace string, terms []Term, target Target) ([]entity.ID, error) {
	namespaces := []string{namespace}
	if namespace != entity.SystemNamespace {
		namespaces = append(namespaces, entity.SystemNamespace)
	}

	var matched map[string]entity.ID
	for _, term := range terms {
		candidates := make(map[string]entity.ID)
		for _, ns := range namespaces {
			ids, err := p.finder.FindEntities(ctx, ns, term.IndexTerm(), term.Prefix)
			if err != nil {
				return nil, err
			}
			for _, id := range ids {
				if !target.Matches(id) {
					continue
				}
				key := id.String()
				if matched == nil || hasKey(matched, key) {
					candidates[key] = id
				}
			}
		}
		matched = candidates
		if len(matched) == 0 {
			return []entity.ID{}, nil
		}
	}

	keys := make([]string, 0, len(matched))
	for k := range matched {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	result := make([]entity.ID, len(keys))
	for i, k := range keys {
		result[i] = matched[k]
	}
	return result, nil
}

func hasKey(m map[string]entity.ID, key string) bool {
	_, ok := m[key]
	return ok
}
