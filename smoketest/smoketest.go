// Package smoketest exercises a running server end to end: it joins a
// session over websocket, indexes a volume, queries it back and reports the
// measured latencies.
package smoketest

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/yggdrasil/geom"
	yhttp "github.com/aukilabs/yggdrasil/http"
	"github.com/aukilabs/yggdrasil/protocol"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const defaultTimeout = time.Second * 10

type Options struct {
	// Endpoint is the websocket address of the server under test.
	Endpoint string

	UserAgent string
	Timeout   time.Duration
}

// Results reports the outcome of a smoke test run. Latencies are round trip
// times in milliseconds.
type Results struct {
	Endpoint      string `json:"endpoint"`
	SessionID     string `json:"session_id,omitempty"`
	ParticipantID uint32 `json:"participant_id,omitempty"`

	PingLatency  int64 `json:"ping_latency_ms"`
	JoinLatency  int64 `json:"join_latency_ms"`
	AddLatency   int64 `json:"add_latency_ms"`
	QueryLatency int64 `json:"query_latency_ms"`

	Error string `json:"error,omitempty"`
}

// Run dials the endpoint and walks through a ping, a session join, a volume
// add and a region query.
func Run(ctx context.Context, opts Options) (Results, error) {
	res := Results{Endpoint: opts.Endpoint}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := dial(opts)
	if err != nil {
		return res, errors.New("dialing server failed").Wrap(err)
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		return res, errors.New("setting connection deadline failed").Wrap(err)
	}

	pingLatency, err := roundTrip(conn, protocol.Request{
		Type:      protocol.MsgTypePingRequest,
		Timestamp: protocol.Now(),
		RequestID: 1,
	}, protocol.MsgTypePingResponse, nil)
	if err != nil {
		return res, errors.New("ping failed").Wrap(err)
	}
	res.PingLatency = pingLatency.Milliseconds()

	var join protocol.ParticipantJoinResponse
	joinLatency, err := roundTrip(conn, protocol.ParticipantJoinRequest{
		Type:      protocol.MsgTypeParticipantJoinRequest,
		Timestamp: protocol.Now(),
		RequestID: 2,
	}, protocol.MsgTypeParticipantJoinResponse, &join)
	if err != nil {
		return res, errors.New("joining session failed").Wrap(err)
	}
	res.SessionID = join.SessionID
	res.ParticipantID = join.ParticipantID
	res.JoinLatency = joinLatency.Milliseconds()

	var add protocol.VolumeAddResponse
	addLatency, err := roundTrip(conn, protocol.VolumeAddRequest{
		Type:      protocol.MsgTypeVolumeAddRequest,
		Timestamp: protocol.Now(),
		RequestID: 3,
		Shape: protocol.VolumeShape{
			Center:  geom.Vector3{X: 1, Y: 1, Z: 1},
			Extents: geom.Vector3{X: 0.5, Y: 0.5, Z: 0.5},
		},
	}, protocol.MsgTypeVolumeAddResponse, &add)
	if err != nil {
		return res, errors.New("adding volume failed").Wrap(err)
	}
	res.AddLatency = addLatency.Milliseconds()

	var query protocol.RegionQueryResponse
	queryLatency, err := roundTrip(conn, protocol.RegionQueryRequest{
		Type:      protocol.MsgTypeRegionQueryRequest,
		Timestamp: protocol.Now(),
		RequestID: 4,
		Box: &protocol.BoxRegion{
			Min: geom.Vector3{X: 0, Y: 0, Z: 0},
			Max: geom.Vector3{X: 2, Y: 2, Z: 2},
		},
	}, protocol.MsgTypeRegionQueryResponse, &query)
	if err != nil {
		return res, errors.New("querying region failed").Wrap(err)
	}
	if len(query.VolumeIDs) != 1 || query.VolumeIDs[0] != add.Volume.ID {
		return res, errors.New("region query did not return the indexed volume").
			WithTag("volume_id", add.Volume.ID).
			WithTag("volume_ids", query.VolumeIDs)
	}
	res.QueryLatency = queryLatency.Milliseconds()

	return res, nil
}

// HandleSmokeTest runs a smoke test on each request and responds with the
// results.
func HandleSmokeTest(ctx context.Context, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := Run(ctx, opts)
		if err != nil {
			logs.WithTag("endpoint", opts.Endpoint).Error(err)
			res.Error = err.Error()
		}

		b, err := json.Marshal(res)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if res.Error != "" {
			w.WriteHeader(http.StatusInternalServerError)
		}
		w.Write(b)
	}
}

func dial(opts Options) (*websocket.Conn, error) {
	endpoint := opts.Endpoint
	endpoint = strings.ReplaceAll(endpoint, "http://", "ws://")
	endpoint = strings.ReplaceAll(endpoint, "https://", "wss://")

	config, err := websocket.NewConfig(endpoint, "http://localhost")
	if err != nil {
		return nil, err
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "yggdrasil-smoketest"
	}
	config.Header.Set("User-Agent", userAgent)
	config.Header.Set(yhttp.HeaderClientID, uuid.NewString())

	return websocket.DialConfig(config)
}

func roundTrip(conn *websocket.Conn, payload any, wantType protocol.MsgType, out any) (time.Duration, error) {
	msg, err := protocol.MsgFromPayload(payload)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	if _, err := protocol.Send(conn, msg); err != nil {
		return 0, err
	}

	for {
		msg, _, err := protocol.Receive(conn)
		if err != nil {
			return 0, err
		}
		if msg.Type != wantType {
			continue
		}

		if out != nil {
			if err := msg.DataTo(out); err != nil {
				return 0, err
			}
		}
		return time.Since(start), nil
	}
}
