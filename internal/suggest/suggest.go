package suggest

import (
	"sort"
	"strings"
)

// Known is the registry view the provider needs. Lookups must not mutate.
type Known interface {
	Players() []string
	HasKey(name, key string) bool
}

type Provider struct {
	known        Known
	searchWorld  bool
	excludeKnown bool
	keyToCheck   string
}

func New() *Provider { return &Provider{} }

func (p *Provider) SearchInWorld() *Provider {
	p.searchWorld = true
	return p
}

// ExcludeKnown removes registered players from the world names.
func (p *Provider) ExcludeKnown(k Known) *Provider {
	p.known = k
	p.excludeKnown = true
	return p
}

// SearchKnown adds registered players.
func (p *Provider) SearchKnown(k Known) *Provider {
	p.known = k
	return p
}

// CheckForKey keeps only names whose registry entry has key.
func (p *Provider) CheckForKey(key string) *Provider {
	p.keyToCheck = key
	return p
}

// Suggest returns the sorted, de-duplicated candidates that start with
// prefix (case-insensitive). online is the list of players in the world.
func (p *Provider) Suggest(online []string, prefix string) []string {
	set := map[string]struct{}{}
	if p.searchWorld {
		for _, n := range online {
			set[n] = struct{}{}
		}
	}
	if p.known != nil {
		for _, n := range p.known.Players() {
			if p.excludeKnown {
				delete(set, n)
			} else {
				set[n] = struct{}{}
			}
		}
		if p.keyToCheck != "" {
			for n := range set {
				if !p.known.HasKey(n, p.keyToCheck) {
					delete(set, n)
				}
			}
		}
	}

	lower := strings.ToLower(prefix)
	out := make([]string, 0, len(set))
	for n := range set {
		if n == "" {
			continue
		}
		if strings.HasPrefix(strings.ToLower(n), lower) {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}
