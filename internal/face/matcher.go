// Package face matches browser-produced face descriptors against the
// registered roster and drives face-based clock transitions.
package face

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"

	"github.com/your-org/timeclock/internal/models"
)

// DefaultThreshold is the Euclidean distance under which two descriptors
// are taken to be the same person.
const DefaultThreshold = 0.6

type Match struct {
	UserID   uuid.UUID
	Name     string
	Role     models.Role
	Distance float64
}

// Matcher finds the registered descriptor nearest to probe. ok is false when
// no candidate is strictly closer than the threshold.
type Matcher interface {
	Nearest(ctx context.Context, probe []float32) (m Match, ok bool, err error)
}

// EuclideanDistance returns the L2 distance between a and b, or +Inf when
// their lengths differ.
func EuclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Confidence maps a distance to a display percentage. It carries no weight
// in the accept decision.
func Confidence(distance float64) float64 {
	return math.Max(0, (1-distance)*100)
}

type DescriptorLister interface {
	ListFaceDescriptors(ctx context.Context) ([]models.FaceDescriptor, error)
}

// LinearMatcher scans every stored descriptor.
type LinearMatcher struct {
	store     DescriptorLister
	threshold float64
}

func NewLinearMatcher(store DescriptorLister, threshold float64) *LinearMatcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &LinearMatcher{store: store, threshold: threshold}
}

func (m *LinearMatcher) Nearest(ctx context.Context, probe []float32) (Match, bool, error) {
	faces, err := m.store.ListFaceDescriptors(ctx)
	if err != nil {
		return Match{}, false, fmt.Errorf("list face descriptors: %w", err)
	}

	best := Match{Distance: math.Inf(1)}
	found := false
	runnerUp := math.Inf(1)
	for _, f := range faces {
		d := EuclideanDistance(probe, f.Descriptor)
		if d < best.Distance && d < m.threshold {
			if found {
				runnerUp = best.Distance
			}
			best = Match{UserID: f.UserID, Name: f.Name, Role: f.Role, Distance: d}
			found = true
		} else if d < runnerUp {
			runnerUp = d
		}
	}
	if found {
		logRunnerUp(best, runnerUp, m.threshold)
	}
	return best, found, nil
}

type NearestLister interface {
	NearestFaceDescriptors(ctx context.Context, probe []float32, k int) ([]models.FaceCandidate, error)
}

// VectorIndexMatcher delegates the nearest-neighbour search to the store
// (pgvector's <-> operator) and applies the same threshold.
type VectorIndexMatcher struct {
	store     NearestLister
	threshold float64
}

func NewVectorIndexMatcher(store NearestLister, threshold float64) *VectorIndexMatcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &VectorIndexMatcher{store: store, threshold: threshold}
}

func (m *VectorIndexMatcher) Nearest(ctx context.Context, probe []float32) (Match, bool, error) {
	candidates, err := m.store.NearestFaceDescriptors(ctx, probe, 2)
	if err != nil {
		return Match{}, false, fmt.Errorf("nearest face descriptors: %w", err)
	}
	if len(candidates) == 0 || !(candidates[0].Distance < m.threshold) {
		return Match{}, false, nil
	}

	c := candidates[0]
	best := Match{UserID: c.UserID, Name: c.Name, Role: c.Role, Distance: c.Distance}
	runnerUp := math.Inf(1)
	if len(candidates) > 1 {
		runnerUp = candidates[1].Distance
	}
	logRunnerUp(best, runnerUp, m.threshold)
	return best, true, nil
}

// logRunnerUp records a second candidate that also clears the threshold.
// The best match is still accepted.
func logRunnerUp(best Match, runnerUp, threshold float64) {
	if runnerUp < threshold {
		slog.Debug("ambiguous face match",
			"user_id", best.UserID,
			"distance", best.Distance,
			"runner_up_distance", runnerUp,
		)
	}
}
