package eihwaz

import (
	"math"
	"sync"

	"github.com/aukilabs/yggdrasil/bvh"
	"github.com/aukilabs/yggdrasil/geom"
	"github.com/aukilabs/yggdrasil/models"
	"github.com/aukilabs/yggdrasil/protocol"
)

// boxVolume and ballVolume adapt a session volume to the two tree variants.
type boxVolume struct {
	v *models.Volume
}

func (b boxVolume) ID() uint64 {
	return b.v.ID
}

func (b boxVolume) Bound() geom.Box {
	return b.v.Box()
}

type ballVolume struct {
	v *models.Volume
}

func (b ballVolume) ID() uint64 {
	return b.v.ID
}

func (b ballVolume) Bound() geom.Sphere {
	return b.v.Sphere()
}

// State holds the session-wide spatial index: a box-tree and a ball-tree kept
// in step over the same volumes. Box, polygon, ray and frustum queries are
// answered by the box-tree, sphere, nearest and capsule queries by the
// ball-tree.
type State struct {
	mutex    sync.RWMutex
	boxTree  *bvh.Tree[boxVolume, geom.Box]
	ballTree *bvh.Tree[ballVolume, geom.Sphere]

	// serialQueries forces batched queries through their serial form.
	serialQueries bool

	optimizeOnce sync.Once
}

func NewState(capacity int) *State {
	return &State{
		boxTree:  bvh.NewBoxTree[boxVolume](capacity, 0),
		ballTree: bvh.NewBallTree[ballVolume](capacity, 0),
	}
}

func (s *State) Add(v *models.Volume) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.boxTree.Insert(boxVolume{v})
	s.ballTree.Insert(ballVolume{v})
}

func (s *State) AddBatch(volumes []*models.Volume) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, v := range volumes {
		s.boxTree.Insert(boxVolume{v})
		s.ballTree.Insert(ballVolume{v})
	}
}

func (s *State) Update(v *models.Volume) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.boxTree.Update(boxVolume{v})
	s.ballTree.Update(ballVolume{v})
}

func (s *State) UpdateBatch(volumes []*models.Volume) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	boxes := make([]boxVolume, len(volumes))
	balls := make([]ballVolume, len(volumes))
	for i, v := range volumes {
		boxes[i] = boxVolume{v}
		balls[i] = ballVolume{v}
	}
	s.boxTree.UpdateAll(boxes)
	s.ballTree.UpdateAll(balls)
}

func (s *State) Remove(v *models.Volume) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	removed := s.boxTree.Remove(boxVolume{v})
	s.ballTree.Remove(ballVolume{v})
	return removed
}

func (s *State) RemoveBatch(volumes []*models.Volume) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	boxes := make([]boxVolume, len(volumes))
	balls := make([]ballVolume, len(volumes))
	for i, v := range volumes {
		boxes[i] = boxVolume{v}
		balls[i] = ballVolume{v}
	}
	removed := s.boxTree.RemoveAll(boxes)
	s.ballTree.RemoveAll(balls)
	return removed
}

// Optimize runs one randomized rebalancing round on both trees.
func (s *State) Optimize(leafSwaps, grandchildTricks int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.boxTree.Optimize(leafSwaps, grandchildTricks)
	s.ballTree.Optimize(leafSwaps, grandchildTricks)
}

func (s *State) SearchBox(region geom.Box, contained bool) []uint64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if contained {
		return boxIDs(s.boxTree.SearchBoxContained(region))
	}
	return boxIDs(s.boxTree.SearchBoxOverlapping(region))
}

func (s *State) SearchSphere(region geom.Sphere, contained bool) []uint64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if contained {
		return ballIDs(s.ballTree.SearchSphereContained(region))
	}
	return ballIDs(s.ballTree.SearchSphereOverlapping(region))
}

func (s *State) SearchPolygon(polygon geom.Polygon) []uint64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return boxIDs(s.boxTree.SearchPolygon(polygon))
}

func (s *State) Nearest(points []geom.Vector3) []uint64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if s.ballTree.Len() == 0 || len(points) == 0 {
		return nil
	}

	if s.serialQueries {
		ids := make([]uint64, len(points))
		for i, p := range points {
			item, _ := s.ballTree.NearestNeighbor(p)
			ids[i] = item.ID()
		}
		return ids
	}
	return ballIDs(s.ballTree.NearestNeighbors(points))
}

func (s *State) Raycast(ray geom.Ray, maxDistance float32) []protocol.RayHit {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if maxDistance <= 0 {
		maxDistance = math.MaxFloat32
	}

	hits := s.boxTree.Raycast(ray, maxDistance, nil)
	res := make([]protocol.RayHit, len(hits))
	for i, h := range hits {
		points := make([]geom.Vector3, h.PointCount)
		copy(points, h.Points[:h.PointCount])
		res[i] = protocol.RayHit{
			VolumeID: h.Item.ID(),
			Points:   points,
			Distance: h.Distance,
		}
	}
	return res
}

func (s *State) FrustumQuery(frustum geom.Frustum) []uint64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return boxIDs(s.boxTree.FrustumQuery(frustum))
}

func (s *State) ShapeCast(capsule geom.Capsule) []uint64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return ballIDs(s.ballTree.ShapeCast(capsule))
}

func (s *State) Stats() (volumes, boxNodes, ballNodes int) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.boxTree.Len(), s.boxTree.NodeCount(), s.ballTree.NodeCount()
}

func boxIDs(items []boxVolume) []uint64 {
	ids := make([]uint64, len(items))
	for i, item := range items {
		ids[i] = item.ID()
	}
	return ids
}

func ballIDs(items []ballVolume) []uint64 {
	ids := make([]uint64, len(items))
	for i, item := range items {
		ids[i] = item.ID()
	}
	return ids
}
