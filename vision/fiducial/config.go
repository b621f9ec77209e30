package fiducial

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/fiducial/spatialmath"
)

// DefaultDictionaryID is the ArUco 5x5 dictionary with 250 markers.
const DefaultDictionaryID = 6

// MarkerConfig is the static description of the markers in a scene: which ids share a physical width
// and which ids are rigidly mounted together on a board. Once validated it must not be modified.
type MarkerConfig struct {
	Dictionary   string        `json:"dictionary,omitempty" jsonschema:"description=human readable dictionary name"`
	DictionaryID int           `json:"dictionary_id"`
	WidthGroups  []WidthGroup  `json:"width_groups,omitempty"`
	Boards       []BoardConfig `json:"boards,omitempty"`
}

// WidthGroup is a set of marker ids printed at the same width.
type WidthGroup struct {
	IDs   []int   `json:"ids"`
	Width float64 `json:"width"`
}

// BoardConfig is a named rigid layout of markers. Board order in the config is the order in which
// boards are reported.
type BoardConfig struct {
	Name   string           `json:"name"`
	Bounds *spatialmath.Box `json:"bounds,omitempty"`
	Marks  []Mark           `json:"marks"`
}

// Mark places a marker on a board. Position is the marker centre in the board's XY plane; Width is
// used only when no width group covers the id.
type Mark struct {
	ID       int        `json:"id"`
	Width    float64    `json:"width,omitempty"`
	Position [2]float64 `json:"position"`
}

// NewMarkerConfig builds and validates a config from its parts. The parts are copied.
func NewMarkerConfig(dictionaryID int, widthGroups []WidthGroup, boards []BoardConfig) (*MarkerConfig, error) {
	cfg := (&MarkerConfig{DictionaryID: dictionaryID, WidthGroups: widthGroups, Boards: boards}).Clone()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadMarkerConfig reads and validates a marker config file.
func LoadMarkerConfig(path string) (*MarkerConfig, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "error opening marker config")
	}
	defer utils.UncheckedErrorFunc(f.Close)
	cfg, err := ReadMarkerConfig(f)
	if err != nil {
		return nil, errors.Wrapf(err, "error loading marker config %q", path)
	}
	return cfg, nil
}

// ReadMarkerConfig decodes and validates a marker config.
func ReadMarkerConfig(r io.Reader) (*MarkerConfig, error) {
	cfg := &MarkerConfig{DictionaryID: DefaultDictionaryID}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, errors.Wrap(err, "error parsing marker config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem with the config at once.
func (cfg *MarkerConfig) Validate() error {
	var errs error
	if cfg.DictionaryID < 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationError("dictionary_id",
			errors.Errorf("dictionary id cannot be negative, got %d", cfg.DictionaryID)))
	}

	grouped := map[int]int{}
	for gi, grp := range cfg.WidthGroups {
		path := fmt.Sprintf("width_groups.%d", gi)
		if !validWidth(grp.Width) {
			errs = multierr.Append(errs, utils.NewConfigValidationError(path,
				errors.Errorf("width must be positive, got %v", grp.Width)))
		}
		for _, id := range grp.IDs {
			if prev, ok := grouped[id]; ok {
				errs = multierr.Append(errs, utils.NewConfigValidationError(path,
					errors.Errorf("marker %d already in width group %d", id, prev)))
				continue
			}
			grouped[id] = gi
		}
	}

	names := map[string]int{}
	owner := map[int]string{}
	for bi := range cfg.Boards {
		board := &cfg.Boards[bi]
		path := fmt.Sprintf("boards.%d", bi)
		if board.Name == "" {
			errs = multierr.Append(errs, utils.NewConfigValidationFieldRequiredError(path, "name"))
		} else if prev, ok := names[board.Name]; ok {
			errs = multierr.Append(errs, utils.NewConfigValidationError(path,
				errors.Errorf("board name %q already used by boards.%d", board.Name, prev)))
		} else {
			names[board.Name] = bi
		}
		if board.Bounds != nil {
			if _, err := spatialmath.NewBox(board.Bounds.Min, board.Bounds.Max); err != nil {
				errs = multierr.Append(errs, utils.NewConfigValidationError(path+".bounds", err))
			}
		}
		seen := map[int]bool{}
		for mi, mark := range board.Marks {
			markPath := fmt.Sprintf("%s.marks.%d", path, mi)
			if mark.Width != 0 && !validWidth(mark.Width) {
				errs = multierr.Append(errs, utils.NewConfigValidationError(markPath,
					errors.Errorf("width must be positive, got %v", mark.Width)))
			}
			if math.IsNaN(mark.Position[0]) || math.IsNaN(mark.Position[1]) ||
				math.IsInf(mark.Position[0], 0) || math.IsInf(mark.Position[1], 0) {
				errs = multierr.Append(errs, utils.NewConfigValidationError(markPath,
					errors.Errorf("position must be finite, got %v", mark.Position)))
			}
			if seen[mark.ID] {
				errs = multierr.Append(errs, utils.NewConfigValidationError(markPath,
					errors.Errorf("marker %d listed twice on board %q", mark.ID, board.Name)))
				continue
			}
			seen[mark.ID] = true
			if other, ok := owner[mark.ID]; ok {
				errs = multierr.Append(errs, errors.Wrapf(ErrAmbiguousMarkerAssignment,
					"marker %d is on boards %q and %q", mark.ID, other, board.Name))
				continue
			}
			owner[mark.ID] = board.Name
		}
	}
	return errs
}

func validWidth(w float64) bool {
	return w > 0 && !math.IsInf(w, 0)
}

// WidthFor returns the width of the group containing id.
func (cfg *MarkerConfig) WidthFor(id int) (float64, bool) {
	for _, grp := range cfg.WidthGroups {
		for _, gid := range grp.IDs {
			if gid == id {
				return grp.Width, true
			}
		}
	}
	return 0, false
}

// BoardFor returns the index of the board carrying id and the mark placing it.
func (cfg *MarkerConfig) BoardFor(id int) (int, Mark, bool) {
	for bi, board := range cfg.Boards {
		for _, mark := range board.Marks {
			if mark.ID == id {
				return bi, mark, true
			}
		}
	}
	return -1, Mark{}, false
}

// ResolveWidth picks the physical width of a marker: its width group first, then the width the
// detection declares, then the width on its board, and finally DefaultMarkerWidth.
func (cfg *MarkerConfig) ResolveWidth(id int, declared float64) float64 {
	if w, ok := cfg.WidthFor(id); ok {
		return w
	}
	if validWidth(declared) {
		return declared
	}
	if _, mark, ok := cfg.BoardFor(id); ok && validWidth(mark.Width) {
		return mark.Width
	}
	return DefaultMarkerWidth
}

// Clone returns a deep copy of the config.
func (cfg *MarkerConfig) Clone() *MarkerConfig {
	out := &MarkerConfig{Dictionary: cfg.Dictionary, DictionaryID: cfg.DictionaryID}
	for _, grp := range cfg.WidthGroups {
		out.WidthGroups = append(out.WidthGroups, WidthGroup{IDs: append([]int(nil), grp.IDs...), Width: grp.Width})
	}
	for _, board := range cfg.Boards {
		b := BoardConfig{Name: board.Name, Marks: append([]Mark(nil), board.Marks...)}
		if board.Bounds != nil {
			bounds := *board.Bounds
			b.Bounds = &bounds
		}
		out.Boards = append(out.Boards, b)
	}
	return out
}

func (cfg *MarkerConfig) String() string {
	s := fmt.Sprintf("dictionary=%q(%d) width_groups=%d boards=%d", cfg.Dictionary, cfg.DictionaryID,
		len(cfg.WidthGroups), len(cfg.Boards))
	for _, b := range cfg.Boards {
		s += fmt.Sprintf(" [%s: %d marks]", b.Name, len(b.Marks))
	}
	return s
}

// JSONSchema describes the marker config file.
func JSONSchema() *jsonschema.Schema {
	return jsonschema.Reflect(&MarkerConfig{})
}
