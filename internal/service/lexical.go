package service

import (
	"math"
	"sort"

	"ragchat/internal/domain"
	"ragchat/internal/textproc"
)

// keywordSearch ranks chunks by term overlap with query and drops those
// scoring below min_keyword_score. Distance is reported as 1 - score.
func (s *RAGService) keywordSearch(st *indexState, query string) []domain.SearchResult {
	qset := textproc.TermSet(query)
	if len(qset) == 0 {
		return nil
	}
	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, 0, len(st.chunks))
	for i, ch := range st.chunks {
		score := overlapOchiai(qset, ch.Content)
		if score > 0 && score >= s.opts.MinKeywordScore {
			scores = append(scores, pair{i, score})
		}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	topK := min(s.opts.TopK, len(scores))
	out := make([]domain.SearchResult, 0, topK)
	for _, p := range scores[:topK] {
		out = append(out, domain.SearchResult{Chunk: st.chunks[p.idx], Distance: 1 - p.score})
	}
	return out
}

// overlapOchiai returns |A∩B| / sqrt(|A||B|) over the distinct terms of the
// query and of text.
func overlapOchiai(qset map[string]struct{}, text string) float64 {
	tset := textproc.TermSet(text)
	if len(qset) == 0 || len(tset) == 0 {
		return 0
	}
	inter := 0
	for t := range tset {
		if _, ok := qset[t]; ok {
			inter++
		}
	}
	return float64(inter) / math.Sqrt(float64(len(qset))*float64(len(tset)))
}
