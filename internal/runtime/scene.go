package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/luma/internal/ir"
)

// Scene is a scripted marker timeline, used in place of a camera.
//
//	interval: 100ms
//	repeat: 3
//	frames:
//	  - markers:
//	      - id: 12
//	        rect: [100, 100, 200, 150]
//	  - at: 250ms
//	    markers:
//	      - id: 12
//	        corners: [[100, 100], [300, 100], [300, 250], [100, 250]]
//	    appearance: "table photo"
type Scene struct {
	Interval time.Duration `yaml:"interval"`
	Repeat   int           `yaml:"repeat"`
	Frames   []SceneFrame  `yaml:"frames"`
}

// SceneFrame is one scripted frame. At is the offset from scene start; a
// zero At after the first frame means index times Interval.
type SceneFrame struct {
	At         time.Duration `yaml:"at"`
	Markers    []SceneMarker `yaml:"markers"`
	Appearance string        `yaml:"appearance"`
}

// SceneMarker places a marker by corners or by rect (x, y, width, height).
type SceneMarker struct {
	ID      int          `yaml:"id"`
	Corners [][2]float64 `yaml:"corners"`
	Rect    []float64    `yaml:"rect"`
}

// Marker converts the scene marker.
func (m SceneMarker) Marker() (Marker, error) {
	out := Marker{ID: m.ID}
	switch {
	case len(m.Corners) == 4 && m.Rect == nil:
		for i, c := range m.Corners {
			out.Corners[i] = ir.Point{X: c[0], Y: c[1]}
		}
	case len(m.Rect) == 4 && m.Corners == nil:
		x, y, w, h := m.Rect[0], m.Rect[1], m.Rect[2], m.Rect[3]
		out.Corners = [4]ir.Point{{X: x, Y: y}, {X: x + w, Y: y}, {X: x + w, Y: y + h}, {X: x, Y: y + h}}
	default:
		return Marker{}, fmt.Errorf("marker %d: need exactly one of 4 corners or a 4-value rect", m.ID)
	}
	return out, nil
}

// LoadScene reads a scene file. Unknown fields are rejected.
func LoadScene(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene: %w", err)
	}
	return ParseScene(data)
}

// ParseScene decodes a scene document.
func ParseScene(data []byte) (*Scene, error) {
	var scene Scene
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scene); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse scene: empty document")
		}
		return nil, fmt.Errorf("parse scene: %w", err)
	}
	if _, err := scene.onePass(time.Time{}); err != nil {
		return nil, err
	}
	return &scene, nil
}

// onePass expands one pass of the scene starting at start.
func (s *Scene) onePass(start time.Time) ([]Frame, error) {
	frames := make([]Frame, 0, len(s.Frames))
	for i, sf := range s.Frames {
		at := sf.At
		if at == 0 && i > 0 {
			at = time.Duration(i) * s.Interval
		}
		f := Frame{Time: start.Add(at)}
		for _, sm := range sf.Markers {
			m, err := sm.Marker()
			if err != nil {
				return nil, fmt.Errorf("frame %d: %w", i, err)
			}
			f.Markers = append(f.Markers, m)
		}
		if sf.Appearance != "" {
			f.Appearance = sf.Appearance
		}
		frames = append(frames, f)
	}
	return frames, nil
}

// Expand returns every frame of the scene, repeats included, with sequence
// numbers from 1.
func (s *Scene) Expand(start time.Time) ([]Frame, error) {
	passes := max(s.Repeat, 1)
	var out []Frame
	offset := time.Duration(0)
	for range passes {
		frames, err := s.onePass(start.Add(offset))
		if err != nil {
			return nil, err
		}
		out = append(out, frames...)
		if n := len(frames); n > 0 {
			offset += frames[n-1].Time.Sub(start.Add(offset)) + s.Interval
		}
	}
	for i := range out {
		out[i].Seq = int64(i + 1)
	}
	return out, nil
}

// SceneSource replays expanded scene frames. When paced, Next waits until
// each frame's offset from the first call has elapsed.
type SceneSource struct {
	frames  []Frame
	next    int
	paced   bool
	started time.Time
}

// NewSceneSource creates a source over frames.
func NewSceneSource(frames []Frame, paced bool) *SceneSource {
	return &SceneSource{frames: frames, paced: paced}
}

// Next implements Source.
func (s *SceneSource) Next(ctx context.Context) (Frame, error) {
	if s.next >= len(s.frames) {
		return Frame{}, io.EOF
	}
	f := s.frames[s.next]
	if s.paced {
		if s.started.IsZero() {
			s.started = time.Now()
		}
		wait := f.Time.Sub(s.frames[0].Time) - time.Since(s.started)
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return Frame{}, ctx.Err()
			case <-timer.C:
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	s.next++
	return f, nil
}
