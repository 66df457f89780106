package protocol

import "github.com/aukilabs/yggdrasil/geom"

// Message types handled by the eihwaz spatial index module.
const (
	MsgTypeVolumeAddRequest   MsgType = "eihwaz_volume_add_request"
	MsgTypeVolumeAddResponse  MsgType = "eihwaz_volume_add_response"
	MsgTypeVolumeAddBroadcast MsgType = "eihwaz_volume_add_broadcast"

	MsgTypeVolumeUpdate          MsgType = "eihwaz_volume_update"
	MsgTypeVolumeUpdateBroadcast MsgType = "eihwaz_volume_update_broadcast"

	MsgTypeVolumeRemoveRequest   MsgType = "eihwaz_volume_remove_request"
	MsgTypeVolumeRemoveResponse  MsgType = "eihwaz_volume_remove_response"
	MsgTypeVolumeRemoveBroadcast MsgType = "eihwaz_volume_remove_broadcast"

	MsgTypeVolumeAddBatchRequest     MsgType = "eihwaz_volume_add_batch_request"
	MsgTypeVolumeAddBatchResponse    MsgType = "eihwaz_volume_add_batch_response"
	MsgTypeVolumeUpdateBatch         MsgType = "eihwaz_volume_update_batch"
	MsgTypeVolumeRemoveBatchRequest  MsgType = "eihwaz_volume_remove_batch_request"
	MsgTypeVolumeRemoveBatchResponse MsgType = "eihwaz_volume_remove_batch_response"

	MsgTypeRegionQueryRequest  MsgType = "eihwaz_region_query_request"
	MsgTypeRegionQueryResponse MsgType = "eihwaz_region_query_response"

	MsgTypePolygonQueryRequest  MsgType = "eihwaz_polygon_query_request"
	MsgTypePolygonQueryResponse MsgType = "eihwaz_polygon_query_response"

	MsgTypeNearestRequest  MsgType = "eihwaz_nearest_request"
	MsgTypeNearestResponse MsgType = "eihwaz_nearest_response"

	MsgTypeRaycastRequest  MsgType = "eihwaz_raycast_request"
	MsgTypeRaycastResponse MsgType = "eihwaz_raycast_response"

	MsgTypeFrustumQueryRequest  MsgType = "eihwaz_frustum_query_request"
	MsgTypeFrustumQueryResponse MsgType = "eihwaz_frustum_query_response"

	MsgTypeShapeCastRequest  MsgType = "eihwaz_shape_cast_request"
	MsgTypeShapeCastResponse MsgType = "eihwaz_shape_cast_response"

	MsgTypeStatsRequest  MsgType = "eihwaz_stats_request"
	MsgTypeStatsResponse MsgType = "eihwaz_stats_response"
)

// VolumeShape is the client-provided geometry of a volume: a center with box
// extents and a bounding radius. A zero radius derives it from the extents.
type VolumeShape struct {
	Center  geom.Vector3 `json:"center"`
	Extents geom.Vector3 `json:"extents"`
	Radius  float32      `json:"radius,omitempty"`
}

// Volume is the wire form of an indexed volume.
type Volume struct {
	ID            uint64      `json:"id"`
	ParticipantID uint32      `json:"participant_id"`
	Shape         VolumeShape `json:"shape"`
}

type VolumeAddRequest struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id,omitempty"`

	Shape VolumeShape `json:"shape"`
}

type VolumeAddResponse struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id,omitempty"`

	Volume Volume `json:"volume"`
}

type VolumeAddBroadcast struct {
	Type            MsgType `json:"type"`
	Timestamp       int64   `json:"timestamp"`
	OriginTimestamp int64   `json:"origin_timestamp"`

	Volume Volume `json:"volume"`
}

// VolumeUpdate is fire-and-forget: no response is sent and updates are
// deferred to the frame flush.
type VolumeUpdate struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`

	VolumeID uint64      `json:"volume_id"`
	Shape    VolumeShape `json:"shape"`
}

type VolumeUpdateBroadcast struct {
	Type            MsgType `json:"type"`
	Timestamp       int64   `json:"timestamp"`
	OriginTimestamp int64   `json:"origin_timestamp"`

	Volume Volume `json:"volume"`
}

type VolumeRemoveRequest struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id,omitempty"`

	VolumeID uint64 `json:"volume_id"`
}

type VolumeRemoveResponse struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id,omitempty"`
}

type VolumeRemoveBroadcast struct {
	Type            MsgType `json:"type"`
	Timestamp       int64   `json:"timestamp"`
	OriginTimestamp int64   `json:"origin_timestamp"`

	VolumeID uint64 `json:"volume_id"`
}

type VolumeAddBatchRequest struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id,omitempty"`

	Shapes []VolumeShape `json:"shapes"`
}

type VolumeAddBatchResponse struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id,omitempty"`

	Volumes []Volume `json:"volumes"`
}

// VolumeUpdateBatch carries many shape updates at once; like VolumeUpdate it
// has no response.
type VolumeUpdateBatch struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`

	Updates []VolumeStateUpdate `json:"updates"`
}

type VolumeStateUpdate struct {
	VolumeID uint64      `json:"volume_id"`
	Shape    VolumeShape `json:"shape"`
}

type VolumeRemoveBatchRequest struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id,omitempty"`

	VolumeIDs []uint64 `json:"volume_ids"`
}

type VolumeRemoveBatchResponse struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id,omitempty"`

	RemovedCount int `json:"removed_count"`
}

// RegionQueryRequest asks for the volumes inside or overlapping a region.
// Exactly one of Box or Sphere must be set: box regions are answered by the
// box-tree, sphere regions by the ball-tree.
type RegionQueryRequest struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id,omitempty"`

	Box    *BoxRegion    `json:"box,omitempty"`
	Sphere *SphereRegion `json:"sphere,omitempty"`

	// Contained restricts the result to volumes wholly inside the region
	// instead of merely overlapping it.
	Contained bool `json:"contained,omitempty"`
}

type BoxRegion struct {
	Min geom.Vector3 `json:"min"`
	Max geom.Vector3 `json:"max"`
}

type SphereRegion struct {
	Center geom.Vector3 `json:"center"`
	Radius float32      `json:"radius"`
}

type RegionQueryResponse struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id,omitempty"`

	VolumeIDs []uint64 `json:"volume_ids"`
}

type PolygonQueryRequest struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id,omitempty"`

	// Points are the polygon corners on the horizontal plane, in order.
	Points []geom.Vector2 `json:"points"`
}

type PolygonQueryResponse struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id,omitempty"`

	VolumeIDs []uint64 `json:"volume_ids"`
}

type NearestRequest struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id,omitempty"`

	Points []geom.Vector3 `json:"points"`
}

// NearestResponse lists one volume id per requested point, in request order.
// It is empty when the session holds no volumes.
type NearestResponse struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id,omitempty"`

	VolumeIDs []uint64 `json:"volume_ids"`
}

type RaycastRequest struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id,omitempty"`

	Origin      geom.Vector3 `json:"origin"`
	Direction   geom.Vector3 `json:"direction"`
	MaxDistance float32      `json:"max_distance"`
}

type RayHit struct {
	VolumeID uint64         `json:"volume_id"`
	Points   []geom.Vector3 `json:"points"`
	Distance float32        `json:"distance"`
}

type RaycastResponse struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id,omitempty"`

	Hits []RayHit `json:"hits"`
}

type FrustumPlane struct {
	Normal geom.Vector3 `json:"normal"`
	D      float32      `json:"d"`
}

type FrustumQueryRequest struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id,omitempty"`

	Planes []FrustumPlane `json:"planes"`
}

type FrustumQueryResponse struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id,omitempty"`

	VolumeIDs []uint64 `json:"volume_ids"`
}

type ShapeCastRequest struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id,omitempty"`

	A      geom.Vector3 `json:"a"`
	B      geom.Vector3 `json:"b"`
	Radius float32      `json:"radius"`
}

type ShapeCastResponse struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id,omitempty"`

	VolumeIDs []uint64 `json:"volume_ids"`
}

type StatsRequest struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id,omitempty"`
}

type StatsResponse struct {
	Type      MsgType `json:"type"`
	Timestamp int64   `json:"timestamp"`
	RequestID uint32  `json:"request_id,omitempty"`

	VolumeCount   int `json:"volume_count"`
	BoxNodeCount  int `json:"box_node_count"`
	BallNodeCount int `json:"ball_node_count"`
}
