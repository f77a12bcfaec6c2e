// Package group clusters scanned candidates into duplicate groups using a
// union-find over pairwise signal/penalty scores (spec.md §4.6, component
// C6). Grounded conceptually on bitorbiter-photo-sorter/pkg/duplicates.go's
// cascading comparison (size → EXIF signature → pixel hash → full hash),
// generalized here into weighted signals/penalties summed per pair rather
// than a short-circuiting cascade, and on
// JustinTDCT-CineVault's task_fingerprint.go for the duration-tolerance
// pre-filter and bucketed O(n^2) comparison shape.
package group

import (
	"fmt"
	"sort"

	"github.com/user/mediadupe/internal/model"
	"github.com/user/mediadupe/internal/videofp"
)

// Candidate is the value-copy view GroupBuilder operates on (spec.md §3
// ownership note: every component but FileIndex works on copies).
type Candidate struct {
	File           model.File
	Metadata       model.MediaMetadata
	HasMetadata    bool
	ImageSignature model.ImageSignature
	HasImageSig    bool
	VideoSignature model.VideoSignature
	HasVideoSig    bool
	ContentHash    string // optional exact-bytes hash, spec.md §4.6 ExactBytes
}

// Thresholds bounds clustering decisions (spec.md §6).
type Thresholds struct {
	ImageDistance       int
	ImageNearDistance   int
	VideoComparison     videofp.ComparisonOptions
	ConfidenceDuplicate float64
	ConfidenceSimilar   float64
	MaxGroupSize        int
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		ImageDistance:       0,
		ImageNearDistance:   5,
		VideoComparison:     videofp.DefaultComparisonOptions(),
		ConfidenceDuplicate: 8,
		ConfidenceSimilar:   3,
		MaxGroupSize:        0, // 0 = unbounded
	}
}

type edge struct {
	i, j      int
	signals   []model.Signal
	penalties []model.Penalty
}

// Build clusters candidates into DuplicateGroups (spec.md §4.6 algorithm).
func Build(candidates []Candidate, w Weights, th Thresholds) []model.DuplicateGroup {
	n := len(candidates)
	uf := newUnionFind(n)

	buckets := bucketize(candidates)

	var edges []edge
	for _, idxs := range buckets {
		for ai := 0; ai < len(idxs); ai++ {
			for bi := ai + 1; bi < len(idxs); bi++ {
				i, j := idxs[ai], idxs[bi]
				signals, penalties, forbidden := pairScore(candidates[i], candidates[j], w, th)
				if forbidden {
					continue
				}
				total := sumSignals(signals) - sumPenalties(penalties)
				if total >= th.ConfidenceSimilar {
					uf.union(i, j)
					edges = append(edges, edge{i: i, j: j, signals: signals, penalties: penalties})
				}
			}
		}
	}

	componentOf := make(map[int][]int)
	for i := 0; i < n; i++ {
		root := uf.find(i)
		componentOf[root] = append(componentOf[root], i)
	}

	var groups []model.DuplicateGroup
	// Stable iteration: sort roots for deterministic output ordering.
	roots := make([]int, 0, len(componentOf))
	for r := range componentOf {
		roots = append(roots, r)
	}
	sort.Ints(roots)

	for _, root := range roots {
		members := componentOf[root]
		if len(members) < 2 {
			continue // singletons are not duplicate groups
		}
		groups = append(groups, buildGroup(members, candidates, edges, th))
	}

	return groups
}

func sumSignals(s []model.Signal) float64 {
	var total float64
	for _, sig := range s {
		total += sig.Weight
	}
	return total
}

func sumPenalties(p []model.Penalty) float64 {
	var total float64
	for _, pen := range p {
		if pen.Weight > 1e9 { // hard veto sentinel, never reached here (forbidden short-circuits)
			continue
		}
		total += pen.Weight
	}
	return total
}

// bucketize groups candidate indices by (class, dimension band, dHash
// top-16-bits) to bound pairwise comparison cost (spec.md §4.6 step 1).
func bucketize(candidates []Candidate) map[string][]int {
	buckets := make(map[string][]int)
	for i, c := range candidates {
		key := bucketKey(c)
		buckets[key] = append(buckets[key], i)
	}
	return buckets
}

func bucketKey(c Candidate) string {
	band := 0
	if c.HasMetadata && c.Metadata.Width > 0 {
		band = c.Metadata.Width / 200
	}
	prefix := uint16(0)
	if c.HasImageSig {
		prefix = uint16(c.ImageSignature.Hash >> 48)
	}
	return fmt.Sprintf("%s|%d|%04x", c.File.Class, band, prefix)
}

// buildGroup computes per-member confidence against the centroid (the
// member with the most within-group edges) and a deterministic rationale.
func buildGroup(members []int, candidates []Candidate, allEdges []edge, th Thresholds) model.DuplicateGroup {
	memberSet := make(map[int]bool, len(members))
	for _, m := range members {
		memberSet[m] = true
	}

	edgeCount := make(map[int]int)
	edgeWeight := make(map[[2]int]float64)
	rationaleSignals := make(map[string]bool)

	for _, e := range allEdges {
		if !memberSet[e.i] || !memberSet[e.j] {
			continue
		}
		edgeCount[e.i]++
		edgeCount[e.j]++
		w := sumSignals(e.signals) - sumPenalties(e.penalties)
		edgeWeight[[2]int{e.i, e.j}] = w
		edgeWeight[[2]int{e.j, e.i}] = w
		for _, s := range e.signals {
			rationaleSignals[s.Kind.String()] = true
		}
	}

	centroid := members[0]
	for _, m := range members {
		if edgeCount[m] > edgeCount[centroid] {
			centroid = m
		}
	}

	groupMembers := make([]model.GroupMember, 0, len(members))
	incomplete := false
	var totalConfidence float64

	for _, m := range members {
		c := candidates[m]
		if !hasExpectedSignature(c) {
			incomplete = true
		}

		var signals []model.Signal
		var penalties []model.Penalty
		for _, e := range allEdges {
			if !memberSet[e.i] || !memberSet[e.j] {
				continue
			}
			if e.i == m || e.j == m {
				signals = append(signals, e.signals...)
				penalties = append(penalties, e.penalties...)
			}
		}

		confidence := 0.0
		if w, ok := edgeWeight[[2]int{m, centroid}]; ok {
			confidence = clamp01(w / th.ConfidenceDuplicate)
		} else if edgeCount[m] > 0 {
			confidence = clamp01(averageEdgeWeight(m, memberSet, allEdges) / th.ConfidenceDuplicate)
		}
		totalConfidence += confidence

		groupMembers = append(groupMembers, model.GroupMember{
			FileID:     c.File.ID,
			Confidence: confidence,
			Signals:    signals,
			Penalties:  penalties,
		})
	}

	if th.MaxGroupSize > 0 && len(groupMembers) > th.MaxGroupSize {
		incomplete = true
	}

	markKeeperSuggestion(groupMembers, candidates)

	rationale := make([]string, 0, len(rationaleSignals))
	for k := range rationaleSignals {
		rationale = append(rationale, k)
	}
	sort.Strings(rationale)

	return model.DuplicateGroup{
		ID:         groupID(members, candidates),
		MediaClass: candidates[members[0]].File.Class,
		Confidence: totalConfidence / float64(len(groupMembers)),
		Rationale:  rationale,
		Incomplete: incomplete,
		State:      model.GroupComplete,
		Members:    groupMembers,
	}
}

func averageEdgeWeight(m int, memberSet map[int]bool, allEdges []edge) float64 {
	var sum float64
	var count int
	for _, e := range allEdges {
		if !memberSet[e.i] || !memberSet[e.j] {
			continue
		}
		if e.i == m || e.j == m {
			sum += sumSignals(e.signals) - sumPenalties(e.penalties)
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func hasExpectedSignature(c Candidate) bool {
	switch c.File.Class {
	case model.ClassPhoto:
		return c.HasImageSig
	case model.ClassVideo:
		return c.HasVideoSig && len(c.VideoSignature.FrameHashes) > 0
	default:
		return true
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// groupID is deterministic given the same member set (spec.md §8 property 4
// depends on deterministic downstream keeper selection, which in turn needs
// a stable group identity across runs).
func groupID(members []int, candidates []Candidate) string {
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = candidates[m].File.ID.String()
	}
	sort.Strings(ids)
	return "grp-" + ids[0]
}

// markKeeperSuggestion is a light hint only — KeeperSelector (C7) makes the
// authoritative choice; this flags the largest-pixel-count member so a UI
// can pre-highlight a likely keeper before planning runs.
func markKeeperSuggestion(members []model.GroupMember, candidates []Candidate) {
	if len(members) == 0 {
		return
	}
	best := 0
	bestPixels := -1
	for i := range members {
		for _, c := range candidates {
			if c.File.ID == members[i].FileID {
				pixels := c.Metadata.Width * c.Metadata.Height
				if pixels > bestPixels {
					bestPixels = pixels
					best = i
				}
				break
			}
		}
	}
	members[best].KeeperSuggestion = true
}
