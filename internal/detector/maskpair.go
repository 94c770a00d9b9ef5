package detector

import (
	"fmt"
	"math"
	"sort"

	"github.com/banshee-data/detector.report/internal/monitoring"
)

// BuildMaskPairs discovers up to MaxPeaks signal clusters in the p-value
// map and pairs each with an annular background mask offset outward from
// the cluster.
//
// Discovery is largest-first: each iteration takes the largest connected
// component remaining in the working mask, so results are deterministic
// for identical inputs. Pixels inside the background ROI are never
// eligible as signal, and every pixel assigned to a signal or background
// mask is removed from consideration for later clusters, so all returned
// masks are mutually disjoint.
//
// An empty result is a valid outcome, not an error: it means no component
// reached MinPeakSize.
func BuildMaskPairs(pv *PValueMap, roi ROI, params GenerationParams) ([]MaskPair, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("generation params: %w", err)
	}
	if err := roi.Validate(pv.Rows, pv.Cols); err != nil {
		return nil, fmt.Errorf("background roi: %w", err)
	}

	available := Binarize(pv, params.Threshold)
	available.ClearROI(roi)

	// consumed blocks halo growth: the ROI plus every pixel already
	// assigned to a signal or background mask.
	consumed := NewMask(pv.Rows, pv.Cols)
	for y := roi.YStart; y < roi.YEnd; y++ {
		for x := roi.XStart; x < roi.XEnd; x++ {
			consumed.Set(x, y, true)
		}
	}

	var pairs []MaskPair
	for len(pairs) < params.MaxPeaks {
		cluster, size := LargestComponent(available)
		if cluster == nil {
			break
		}
		available.Subtract(cluster)

		if size < params.MinPeakSize {
			// Undersized components are dropped but discovery continues:
			// a qualifying cluster may still remain elsewhere.
			continue
		}

		halo := backgroundHalo(cluster, size, consumed, params)

		for i, b := range cluster.Bits {
			if b || halo.Bits[i] {
				consumed.Bits[i] = true
			}
		}
		available.Subtract(halo)

		pairs = append(pairs, MaskPair{Signal: cluster, Background: halo, Size: size})
	}

	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].Size > pairs[j].Size })

	monitoring.Logf("[MaskPairs] discovered %d pairs (threshold=%g max_peaks=%d min_peak_size=%d)",
		len(pairs), params.Threshold, params.MaxPeaks, params.MinPeakSize)

	return pairs, nil
}

// backgroundHalo builds the annular background mask for one cluster. The
// annulus covers pixels whose city-block BFS distance d from the cluster
// satisfies mult*r <= d < mult*r + thickness, where r = sqrt(size/pi) is
// the radius of a disc with the cluster's pixel count. Larger clusters
// therefore sample background proportionally farther out.
//
// The BFS walks only unconsumed pixels, so halos route around previously
// assigned regions, and it truncates silently at grid edges.
func backgroundHalo(cluster *Mask, size int, consumed *Mask, params GenerationParams) *Mask {
	r := math.Sqrt(float64(size) / math.Pi)
	lo := params.BgMaskMult * r
	hi := lo + float64(params.BgMaskThickness)

	dist := make([]int, len(cluster.Bits))
	for i := range dist {
		dist[i] = -1
	}

	var queue []int
	for i, b := range cluster.Bits {
		if b {
			dist[i] = 0
			queue = append(queue, i)
		}
	}

	halo := NewMask(cluster.Rows, cluster.Cols)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		d := dist[cur]
		if float64(d+1) >= hi {
			continue
		}

		y := cur / cluster.Cols
		x := cur % cluster.Cols
		for _, n := range [4][2]int{{x, y - 1}, {x, y + 1}, {x - 1, y}, {x + 1, y}} {
			nx, ny := n[0], n[1]
			if nx < 0 || nx >= cluster.Cols || ny < 0 || ny >= cluster.Rows {
				continue
			}
			nIdx := ny*cluster.Cols + nx
			if dist[nIdx] >= 0 || consumed.Bits[nIdx] || cluster.Bits[nIdx] {
				continue
			}
			nd := d + 1
			dist[nIdx] = nd
			queue = append(queue, nIdx)
			if float64(nd) >= lo {
				halo.Bits[nIdx] = true
			}
		}
	}
	return halo
}
