package fiducial

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestLoadMarkerConfig(t *testing.T) {
	cfg, err := LoadMarkerConfig(filepath.Join("data", "markers.json"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.DictionaryID, test.ShouldEqual, 6)
	test.That(t, cfg.Boards, test.ShouldHaveLength, 2)
	test.That(t, cfg.Boards[0].Name, test.ShouldEqual, "table")
	test.That(t, cfg.Boards[0].Bounds, test.ShouldNotBeNil)
	test.That(t, cfg.Boards[0].Bounds.Max.Z, test.ShouldEqual, 0.3)
	test.That(t, cfg.String(), test.ShouldContainSubstring, "[door: 2 marks]")

	w, ok := cfg.WidthFor(21)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, w, test.ShouldEqual, 0.25)
	_, ok = cfg.WidthFor(30)
	test.That(t, ok, test.ShouldBeFalse)

	bi, mark, ok := cfg.BoardFor(3)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, bi, test.ShouldEqual, 0)
	test.That(t, mark.Position, test.ShouldResemble, [2]float64{0.4, 0.3})
	_, _, ok = cfg.BoardFor(21)
	test.That(t, ok, test.ShouldBeFalse)

	_, err = LoadMarkerConfig(filepath.Join("data", "nope.json"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestNewMarkerConfig(t *testing.T) {
	groups := []WidthGroup{{IDs: []int{1, 2}, Width: 0.05}}
	boards := []BoardConfig{{Name: "shelf", Marks: []Mark{{ID: 1}, {ID: 2, Position: [2]float64{0.2, 0}}}}}
	cfg, err := NewMarkerConfig(DefaultDictionaryID, groups, boards)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.ResolveWidth(2, 0), test.ShouldEqual, 0.05)

	groups[0].Width = 1
	test.That(t, cfg.ResolveWidth(2, 0), test.ShouldEqual, 0.05)

	_, err = NewMarkerConfig(DefaultDictionaryID, nil, append(boards, BoardConfig{Name: "wall", Marks: []Mark{{ID: 2}}}))
	test.That(t, errors.Is(err, ErrAmbiguousMarkerAssignment), test.ShouldBeTrue)
}

func TestReadMarkerConfigDefaults(t *testing.T) {
	cfg, err := ReadMarkerConfig(strings.NewReader(`{}`))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.DictionaryID, test.ShouldEqual, DefaultDictionaryID)
	test.That(t, cfg.ResolveWidth(5, 0), test.ShouldEqual, DefaultMarkerWidth)

	_, err = ReadMarkerConfig(strings.NewReader(`{"boardz": []}`))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = ReadMarkerConfig(strings.NewReader(`{`))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestResolveWidthPrecedence(t *testing.T) {
	cfg, err := LoadMarkerConfig(filepath.Join("data", "markers.json"))
	test.That(t, err, test.ShouldBeNil)

	// a width group always wins
	test.That(t, cfg.ResolveWidth(1, 0.5), test.ShouldEqual, 0.1)
	test.That(t, cfg.ResolveWidth(20, 3), test.ShouldEqual, 0.25)
	// then the declared width
	test.That(t, cfg.ResolveWidth(30, 0.5), test.ShouldEqual, 0.5)
	// then the board mark
	test.That(t, cfg.ResolveWidth(30, 0), test.ShouldEqual, 0.15)
	// then the default
	test.That(t, cfg.ResolveWidth(99, 0), test.ShouldEqual, DefaultMarkerWidth)
	test.That(t, cfg.ResolveWidth(99, -2), test.ShouldEqual, DefaultMarkerWidth)
}

func TestAmbiguousMarkerAssignment(t *testing.T) {
	_, err := ReadMarkerConfig(strings.NewReader(`{
		"boards": [
			{"name": "a", "marks": [{"id": 7, "position": [0, 0]}]},
			{"name": "b", "marks": [{"id": 8, "position": [0, 0]}, {"id": 7, "position": [1, 0]}]}
		]
	}`))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, ErrAmbiguousMarkerAssignment), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, `marker 7 is on boards "a" and "b"`)
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := &MarkerConfig{
		WidthGroups: []WidthGroup{
			{IDs: []int{1, 2}, Width: 0.1},
			{IDs: []int{2}, Width: -1},
		},
		Boards: []BoardConfig{
			{Name: "", Marks: []Mark{{ID: 1}}},
			{Name: "x", Marks: []Mark{{ID: 3}, {ID: 3}, {ID: 4, Width: -0.2}}},
			{Name: "x"},
		},
	}
	err := cfg.Validate()
	test.That(t, err, test.ShouldNotBeNil)
	msg := err.Error()
	test.That(t, msg, test.ShouldContainSubstring, "marker 2 already in width group 0")
	test.That(t, msg, test.ShouldContainSubstring, "width must be positive, got -1")
	test.That(t, msg, test.ShouldContainSubstring, "name")
	test.That(t, msg, test.ShouldContainSubstring, `marker 3 listed twice on board "x"`)
	test.That(t, msg, test.ShouldContainSubstring, "width must be positive, got -0.2")
	test.That(t, msg, test.ShouldContainSubstring, `board name "x" already used by boards.1`)
	test.That(t, errors.Is(err, ErrAmbiguousMarkerAssignment), test.ShouldBeFalse)
}

func TestCloneDoesNotAlias(t *testing.T) {
	cfg, err := LoadMarkerConfig(filepath.Join("data", "markers.json"))
	test.That(t, err, test.ShouldBeNil)
	clone := cfg.Clone()
	test.That(t, clone, test.ShouldResemble, cfg)

	clone.WidthGroups[0].IDs[0] = 100
	clone.Boards[0].Marks[0].Position[0] = 9
	clone.Boards[0].Bounds.Min.X = -9
	test.That(t, cfg.WidthGroups[0].IDs[0], test.ShouldEqual, 1)
	test.That(t, cfg.Boards[0].Marks[0].Position[0], test.ShouldEqual, 0.)
	test.That(t, cfg.Boards[0].Bounds.Min.X, test.ShouldEqual, -0.1)
}

func TestJSONSchema(t *testing.T) {
	data, err := json.Marshal(JSONSchema())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(data), test.ShouldContainSubstring, "width_groups")
	test.That(t, string(data), test.ShouldContainSubstring, "position")
}
