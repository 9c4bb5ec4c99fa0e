package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/starwell/coherence/internal/reality"
	"github.com/starwell/coherence/internal/stabilize"
)

// marshalJSON converts a value to JSON TEXT for storage. HTML escaping
// is disabled so < > & stay literal; struct fields encode in
// declaration order, so equal states store equal bytes.
func marshalJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

func marshalHealth(h reality.Health) (string, error) {
	data, err := marshalJSON(h)
	if err != nil {
		return "", fmt.Errorf("marshal health: %w", err)
	}
	return data, nil
}

func unmarshalHealth(data string) (reality.Health, error) {
	var h reality.Health
	if err := json.Unmarshal([]byte(data), &h); err != nil {
		return reality.Health{}, fmt.Errorf("unmarshal health: %w", err)
	}
	return h, nil
}

func marshalAnchors(anchors []reality.AnchorPoint) (string, error) {
	data, err := marshalJSON(anchors)
	if err != nil {
		return "", fmt.Errorf("marshal anchors: %w", err)
	}
	return data, nil
}

func unmarshalAnchors(data string) ([]reality.AnchorPoint, error) {
	if data == "" || data == "null" {
		return nil, nil
	}
	var anchors []reality.AnchorPoint
	if err := json.Unmarshal([]byte(data), &anchors); err != nil {
		return nil, fmt.Errorf("unmarshal anchors: %w", err)
	}
	return anchors, nil
}

func marshalNodes(nodes []*reality.Node) (string, error) {
	data, err := marshalJSON(nodes)
	if err != nil {
		return "", fmt.Errorf("marshal nodes: %w", err)
	}
	return data, nil
}

func unmarshalNodes(data string) ([]*reality.Node, error) {
	if data == "" || data == "null" {
		return nil, nil
	}
	var nodes []*reality.Node
	if err := json.Unmarshal([]byte(data), &nodes); err != nil {
		return nil, fmt.Errorf("unmarshal nodes: %w", err)
	}
	return nodes, nil
}

func marshalMatrix(m [][]float64) (string, error) {
	data, err := marshalJSON(m)
	if err != nil {
		return "", fmt.Errorf("marshal matrix: %w", err)
	}
	return data, nil
}

func unmarshalMatrix(data string) ([][]float64, error) {
	if data == "" || data == "null" {
		return nil, nil
	}
	var m [][]float64
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, fmt.Errorf("unmarshal matrix: %w", err)
	}
	return m, nil
}

// marshalResultDetail stores the complete result; the scalar columns
// beside it are projections for filtering, never the source of truth.
func marshalResultDetail(res stabilize.Result) (string, error) {
	data, err := marshalJSON(res)
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	return data, nil
}

func unmarshalResultDetail(data string) (stabilize.Result, error) {
	var res stabilize.Result
	if err := json.Unmarshal([]byte(data), &res); err != nil {
		return stabilize.Result{}, fmt.Errorf("unmarshal result: %w", err)
	}
	return res, nil
}

// timeToNS converts a timestamp to its stored form. The zero time maps
// to 0, never to the epoch offset of the zero instant.
func timeToNS(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

// nsToTime is the inverse of timeToNS. Restored times are UTC.
func nsToTime(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}
