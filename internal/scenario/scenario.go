// Package scenario loads and runs scripted bus sessions: a set of frames and
// a list of subscribe, unsubscribe, publish and resize steps.
package scenario

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted session.
type Scenario struct {
	Name   string  `yaml:"name"`
	Frames []Frame `yaml:"frames"`
	Steps  []Step  `yaml:"steps"`
	Expect Expect  `yaml:"expect,omitempty"`
}

// Frame declares one frame element.
type Frame struct {
	ID string `yaml:"id"`
	// Object starts the frame as a legacy <object> that the broker converts.
	Object  bool     `yaml:"object,omitempty"`
	Classes []string `yaml:"classes,omitempty"`
}

// Size is a resize request in CSS pixels.
type Size struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// Step is one action taken by a frame. Exactly one action field is set.
type Step struct {
	Frame       string `yaml:"frame"`
	Subscribe   string `yaml:"subscribe,omitempty"`
	Unsubscribe string `yaml:"unsubscribe,omitempty"`
	Publish     string `yaml:"publish,omitempty"`
	Data        any    `yaml:"data,omitempty"`
	Resize      *Size  `yaml:"resize,omitempty"`
}

// Expect holds optional checks applied after the run.
type Expect struct {
	Deliveries *int `yaml:"deliveries,omitempty"`
}

// Action names the step's action.
func (s Step) Action() string {
	switch {
	case s.Subscribe != "":
		return "subscribe"
	case s.Unsubscribe != "":
		return "unsubscribe"
	case s.Publish != "":
		return "publish"
	case s.Resize != nil:
		return "resize"
	default:
		return ""
	}
}

func (s Step) String() string {
	switch s.Action() {
	case "subscribe":
		return fmt.Sprintf("%s subscribes to %s", s.Frame, s.Subscribe)
	case "unsubscribe":
		return fmt.Sprintf("%s unsubscribes from %s", s.Frame, s.Unsubscribe)
	case "publish":
		return fmt.Sprintf("%s publishes on %s", s.Frame, s.Publish)
	case "resize":
		return fmt.Sprintf("%s resizes to %gx%g", s.Frame, s.Resize.Width, s.Resize.Height)
	default:
		return s.Frame + " does nothing"
	}
}

// Load reads a scenario file.
func Load(path string) (*Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scenario: %w", err)
	}
	sc, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return sc, nil
}

// Parse decodes and validates a YAML scenario.
func Parse(b []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(b, &sc); err != nil {
		return nil, err
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks frame ids and steps, reporting every problem found.
func (sc *Scenario) Validate() error {
	var errs []error
	if len(sc.Frames) == 0 {
		errs = append(errs, errors.New("no frames"))
	}
	ids := make(map[string]bool, len(sc.Frames))
	for i, f := range sc.Frames {
		switch {
		case strings.TrimSpace(f.ID) == "":
			errs = append(errs, fmt.Errorf("frame %d: missing id", i))
		case ids[f.ID]:
			errs = append(errs, fmt.Errorf("frame %d: duplicate id %q", i, f.ID))
		}
		ids[f.ID] = true
	}
	for i, s := range sc.Steps {
		if !ids[s.Frame] {
			errs = append(errs, fmt.Errorf("step %d: unknown frame %q", i, s.Frame))
		}
		actions := 0
		for _, set := range []bool{s.Subscribe != "", s.Unsubscribe != "", s.Publish != "", s.Resize != nil} {
			if set {
				actions++
			}
		}
		if actions != 1 {
			errs = append(errs, fmt.Errorf("step %d: want exactly one action, got %d", i, actions))
		}
		if s.Data != nil && s.Publish == "" {
			errs = append(errs, fmt.Errorf("step %d: data is only valid with publish", i))
		}
		if s.Resize != nil && (s.Resize.Width < 0 || s.Resize.Height < 0) {
			errs = append(errs, fmt.Errorf("step %d: negative size", i))
		}
	}
	return errors.Join(errs...)
}

var frameNames = []string{"ALPHA", "BETA", "GAMMA", "DELTA", "EPSILON", "ZETA", "ETA", "THETA"}

// FrameName returns a readable id for the i-th generated frame.
func FrameName(i int) string {
	if i < len(frameNames) {
		return frameNames[i]
	}
	return fmt.Sprintf("FRAME%d", i+1)
}

// Default builds the standard demo: every frame but the first subscribes to
// "ping", the first publishes one event, then each frame resizes.
func Default(frames int) *Scenario {
	if frames < 2 {
		frames = 2
	}
	sc := &Scenario{Name: fmt.Sprintf("ping across %d frames", frames)}
	for i := range frames {
		sc.Frames = append(sc.Frames, Frame{ID: FrameName(i)})
	}
	for _, f := range sc.Frames[1:] {
		sc.Steps = append(sc.Steps, Step{Frame: f.ID, Subscribe: "ping"})
	}
	sc.Steps = append(sc.Steps, Step{
		Frame:   sc.Frames[0].ID,
		Publish: "ping",
		Data:    map[string]any{"msg": "hi", "from": sc.Frames[0].ID},
	})
	for i, f := range sc.Frames {
		sc.Steps = append(sc.Steps, Step{Frame: f.ID, Resize: &Size{Width: float64(150 + 10*i), Height: 250}})
	}
	want := frames - 1
	sc.Expect.Deliveries = &want
	return sc
}
