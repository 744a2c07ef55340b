package artifact

import (
	"cmp"
	"math"
	"slices"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/pagerank"
	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/similarity"
	apperrors "github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/errors"
)

// On-disk shapes. Document ids are decimal strings because they are JSON
// object keys; they are converted to ordinals here and nowhere else.
type (
	IndexWire    map[string]map[string]uint32
	GraphWire    map[string]map[string]float64
	PageRankWire map[string]float64
)

// Artifact kinds, used as segment kinds and key sections.
const (
	KindManifest = "manifest"
	KindMetadata = "metadata"
	KindIndex    = "index"
	KindGraph    = "graph"
	KindPageRank = "pagerank"
)

func indexToWire(c *document.Corpus, ix *index.InvertedIndex) IndexWire {
	out := make(IndexWire, ix.NumTerms())
	for term, postings := range ix.All() {
		m := make(map[string]uint32, len(postings))
		for _, p := range postings {
			m[c.Doc(p.Doc).ID.String()] = p.Freq
		}
		out[term] = m
	}
	return out
}

func graphToWire(c *document.Corpus, g *similarity.Graph) GraphWire {
	out := make(GraphWire, g.Len())
	for i := 0; i < g.Len(); i++ {
		edges := g.Neighbors(document.Ord(i))
		m := make(map[string]float64, len(edges))
		for _, e := range edges {
			m[c.Doc(e.To).ID.String()] = e.Weight
		}
		out[c.Doc(document.Ord(i)).ID.String()] = m
	}
	return out
}

func pageRankToWire(c *document.Corpus, v pagerank.Vector) PageRankWire {
	out := make(PageRankWire, len(v))
	for i, s := range v {
		out[c.Doc(document.Ord(i)).ID.String()] = s
	}
	return out
}

type resolver struct {
	corpus *document.Corpus
}

func (r resolver) ord(kind, key string) (document.Ord, error) {
	id, err := document.ParseID(key)
	if err != nil {
		return 0, apperrors.DataIntegrityf("%s: %v", kind, err)
	}
	o, ok := r.corpus.Lookup(id)
	if !ok {
		return 0, apperrors.DataIntegrityf("%s references book %d absent from metadata", kind, id)
	}
	return o, nil
}

// assemble converts wire artifacts into a validated Set.
func assemble(m Manifest, meta []document.Metadata, iw IndexWire, gw GraphWire, pw PageRankWire) (*Set, error) {
	corpus, err := document.NewCorpus(meta)
	if err != nil {
		return nil, apperrors.DataIntegrityf("metadata: %v", err)
	}
	r := resolver{corpus: corpus}

	terms := make([]string, 0, len(iw))
	for term := range iw {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	entries := make([]index.TermEntry, 0, len(terms))
	for _, term := range terms {
		postings := make(index.PostingList, 0, len(iw[term]))
		for key, freq := range iw[term] {
			o, err := r.ord("index", key)
			if err != nil {
				return nil, err
			}
			if freq == 0 {
				return nil, apperrors.DataIntegrityf("index: term %q has zero frequency for book %s", term, key)
			}
			postings = append(postings, index.Posting{Doc: o, Freq: freq})
		}
		slices.SortFunc(postings, func(a, b index.Posting) int { return cmp.Compare(a.Doc, b.Doc) })
		entries = append(entries, index.TermEntry{Term: term, Postings: postings})
	}
	ix, err := index.New(corpus.Len(), entries)
	if err != nil {
		return nil, apperrors.DataIntegrityf("index: %v", err)
	}

	adj := make([][]similarity.Edge, corpus.Len())
	for i := range adj {
		adj[i] = []similarity.Edge{}
	}
	for key, neighbours := range gw {
		from, err := r.ord("graph", key)
		if err != nil {
			return nil, err
		}
		for nkey, w := range neighbours {
			to, err := r.ord("graph", nkey)
			if err != nil {
				return nil, err
			}
			adj[from] = append(adj[from], similarity.Edge{To: to, Weight: w})
		}
	}
	g, err := similarity.NewGraph(adj)
	if err != nil {
		return nil, apperrors.DataIntegrityf("graph: %v", err)
	}

	// documents absent from the pagerank artifact score 0
	pr := make(pagerank.Vector, corpus.Len())
	for key, score := range pw {
		o, err := r.ord("pagerank", key)
		if err != nil {
			return nil, err
		}
		if score < 0 || math.IsNaN(score) || math.IsInf(score, 0) {
			return nil, apperrors.DataIntegrityf("pagerank: invalid score %v for book %s", score, key)
		}
		pr[o] = score
	}

	set := &Set{
		Generation: m.Generation,
		BuiltAt:    m.BuiltAt,
		Corpus:     corpus,
		Index:      ix,
		Graph:      g,
		PageRank:   pr,
	}
	got := set.Manifest()
	if got.Documents != m.Documents || got.Terms != m.Terms || got.Edges != m.Edges {
		return nil, apperrors.DataIntegrityf("generation %d: manifest expects %d docs/%d terms/%d edges, loaded %d/%d/%d",
			m.Generation, m.Documents, m.Terms, m.Edges, got.Documents, got.Terms, got.Edges)
	}
	return set, nil
}
