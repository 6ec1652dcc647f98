package server

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/stdin/venezuelawatch/internal/domain"
)

type GraphNodeData struct {
	RiskScore       float64 `json:"risk_score"`
	SanctionsStatus bool    `json:"sanctions_status"`
	EntityType      string  `json:"entity_type"`
	MentionCount    int     `json:"mention_count"`
	Community       int     `json:"community"`
}

type GraphNode struct {
	ID    string        `json:"id"`
	Label string        `json:"label"`
	Data  GraphNodeData `json:"data"`
}

type GraphEdgeData struct {
	EventIDs []string `json:"event_ids"`
	Strength float64  `json:"strength"`
}

type GraphEdge struct {
	ID     string        `json:"id"`
	Source string        `json:"source"`
	Target string        `json:"target"`
	Weight int           `json:"weight"`
	Data   GraphEdgeData `json:"data"`
}

type ClusterStat struct {
	Community int     `json:"community"`
	Size      int     `json:"size"`
	AvgRisk   float64 `json:"avg_risk"`
}

type GraphResponse struct {
	Nodes           []GraphNode   `json:"nodes"`
	Edges           []GraphEdge   `json:"edges"`
	HighRiskCluster int           `json:"high_risk_cluster"`
	ClusterStats    []ClusterStat `json:"cluster_stats"`
}

const defaultGraphWindow = 30 * 24 * time.Hour

// handleGraphEntities implements GET /graph/entities: nodes are
// canonical entities co-mentioned in at least min_cooccurrence events
// within time_range, edges carry the connecting event ids, and
// communities are labeled by connected component. graph_builder.py's
// community detection shells out to a Node.js/Graphology Louvain pass;
// nothing in this stack provides a Go-native equivalent, so connected
// components stands in as a cheaper, dependency-free community label
// (see DESIGN.md).
func (s *Server) handleGraphEntities(w http.ResponseWriter, r *http.Request) {
	window := defaultGraphWindow
	if tr := r.URL.Query().Get("time_range"); tr != "" {
		if d, err := time.ParseDuration(tr); err == nil {
			window = d
		}
	}
	minCooccurrence := 2
	if mc := r.URL.Query().Get("min_cooccurrence"); mc != "" {
		if v, err := strconv.Atoi(mc); err == nil && v > 0 {
			minCooccurrence = v
		}
	}
	var themeFilter map[string]bool
	if tc := r.URL.Query().Get("theme_categories"); tc != "" {
		themeFilter = make(map[string]bool)
		for _, t := range strings.Split(tc, ",") {
			themeFilter[strings.TrimSpace(t)] = true
		}
	}

	cutoff := time.Now().Add(-window)
	byEvent, err := s.mentions.EntitiesByEvent(r.Context(), cutoff)
	if err != nil {
		s.log.Error().Err(err).Msg("server: graph co-occurrence query failed")
		writeJSON(w, http.StatusOK, GraphResponse{})
		return
	}

	pairs := make(map[[2]string][]string) // pair -> connecting event ids
	mentionCounts := make(map[string]int)
	for eventID, ids := range byEvent {
		unique := dedupeStrings(ids)
		for _, id := range unique {
			mentionCounts[id]++
		}
		for i := 0; i < len(unique); i++ {
			for j := i + 1; j < len(unique); j++ {
				key := pairKey(unique[i], unique[j])
				pairs[key] = append(pairs[key], eventID)
			}
		}
	}

	if themeFilter != nil {
		pairs = filterPairsByTheme(r.Context(), s, pairs, themeFilter)
	}

	uf := newUnionFind()
	entitySet := make(map[string]bool)
	for key, eventIDs := range pairs {
		if len(eventIDs) < minCooccurrence {
			delete(pairs, key)
			continue
		}
		uf.union(key[0], key[1])
		entitySet[key[0]] = true
		entitySet[key[1]] = true
	}
	entityIDs := keysOf(entitySet)

	metas, err := s.entities.EntitiesWithMetadata(r.Context(), entityIDs)
	if err != nil {
		s.log.Error().Err(err).Msg("server: graph entity metadata lookup failed")
		metas = map[string]domain.CanonicalEntity{}
	}
	communities := uf.labelComponents(entityIDs)

	nodes := make([]GraphNode, 0, len(entityIDs))
	for _, id := range entityIDs {
		meta := metas[id]
		risk, _ := meta.Metadata["avg_risk_score"].(float64)
		sanctioned, _ := meta.Metadata["is_sanctioned"].(bool)
		nodes = append(nodes, GraphNode{
			ID:    id,
			Label: meta.PrimaryName,
			Data: GraphNodeData{
				RiskScore:       risk,
				SanctionsStatus: sanctioned,
				EntityType:      string(meta.EntityType),
				MentionCount:    mentionCounts[id],
				Community:       communities[id],
			},
		})
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	edges := make([]GraphEdge, 0, len(pairs))
	for key, eventIDs := range pairs {
		edges = append(edges, GraphEdge{
			ID:     fmt.Sprintf("%s-%s", key[0], key[1]),
			Source: key[0],
			Target: key[1],
			Weight: len(eventIDs),
			Data: GraphEdgeData{
				EventIDs: eventIDs,
				Strength: float64(len(eventIDs)) / float64(len(byEvent)+1),
			},
		})
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })

	stats := clusterStats(nodes)
	writeJSON(w, http.StatusOK, GraphResponse{
		Nodes:           nodes,
		Edges:           edges,
		HighRiskCluster: highRiskCluster(stats),
		ClusterStats:    stats,
	})
}

func filterPairsByTheme(ctx context.Context, s *Server, pairs map[[2]string][]string, themeFilter map[string]bool) map[[2]string][]string {
	allEventIDs := make(map[string]bool)
	for _, eventIDs := range pairs {
		for _, id := range eventIDs {
			allEventIDs[id] = true
		}
	}
	events, err := s.events.GetEvents(ctx, keysOf(allEventIDs))
	if err != nil {
		s.log.Warn().Err(err).Msg("server: graph theme filter event lookup failed, skipping filter")
		return pairs
	}
	eventThemes := make(map[string][]string, len(events))
	for _, e := range events {
		eventThemes[e.ID] = e.Themes
	}

	out := make(map[[2]string][]string, len(pairs))
	for key, eventIDs := range pairs {
		if anyThemeMatches(eventIDs, eventThemes, themeFilter) {
			out[key] = eventIDs
		}
	}
	return out
}

func anyThemeMatches(eventIDs []string, eventThemes map[string][]string, filter map[string]bool) bool {
	for _, id := range eventIDs {
		for _, theme := range eventThemes[id] {
			if filter[theme] {
				return true
			}
		}
	}
	return false
}

func clusterStats(nodes []GraphNode) []ClusterStat {
	sums := make(map[int]float64)
	counts := make(map[int]int)
	for _, n := range nodes {
		sums[n.Data.Community] += n.Data.RiskScore
		counts[n.Data.Community]++
	}
	out := make([]ClusterStat, 0, len(counts))
	for community, count := range counts {
		out = append(out, ClusterStat{Community: community, Size: count, AvgRisk: sums[community] / float64(count)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Community < out[j].Community })
	return out
}

// highRiskCluster picks the community with the highest average node
// risk score, or -1 if there are no communities.
func highRiskCluster(stats []ClusterStat) int {
	best, bestRisk := -1, -1.0
	for _, st := range stats {
		if st.AvgRisk > bestRisk {
			best, bestRisk = st.Community, st.AvgRisk
		}
	}
	return best
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func pairKey(a, b string) [2]string {
	if a < b {
		return [2]string{a, b}
	}
	return [2]string{b, a}
}

func keysOf(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// unionFind is a union-by-assignment, path-compressing disjoint-set
// over entity ids -- the connected-components substitute for Louvain
// community detection.
type unionFind struct {
	parent map[string]string
}

func newUnionFind() *unionFind {
	return &unionFind{parent: make(map[string]string)}
}

func (u *unionFind) find(x string) string {
	if _, ok := u.parent[x]; !ok {
		u.parent[x] = x
	}
	if u.parent[x] != x {
		u.parent[x] = u.find(u.parent[x])
	}
	return u.parent[x]
}

func (u *unionFind) union(a, b string) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[ra] = rb
	}
}

// labelComponents assigns a stable, zero-based community id to each
// connected component among ids, ordered by ids' sorted order so the
// labeling is deterministic across calls given the same edge set.
func (u *unionFind) labelComponents(ids []string) map[string]int {
	labels := make(map[string]int)
	next := 0
	out := make(map[string]int, len(ids))
	for _, id := range ids {
		root := u.find(id)
		label, ok := labels[root]
		if !ok {
			label = next
			labels[root] = label
			next++
		}
		out[id] = label
	}
	return out
}
