// Package aruco finds ArUco and AprilTag markers with OpenCV and reports them as fiducial detections.
package aruco

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// dictionaries maps the OpenCV predefined dictionary names to their ids.
var dictionaries = map[string]int{
	"DICT_4X4_50":         0,
	"DICT_4X4_100":        1,
	"DICT_4X4_250":        2,
	"DICT_4X4_1000":       3,
	"DICT_5X5_50":         4,
	"DICT_5X5_100":        5,
	"DICT_5X5_250":        6,
	"DICT_5X5_1000":       7,
	"DICT_6X6_50":         8,
	"DICT_6X6_100":        9,
	"DICT_6X6_250":        10,
	"DICT_6X6_1000":       11,
	"DICT_7X7_50":         12,
	"DICT_7X7_100":        13,
	"DICT_7X7_250":        14,
	"DICT_7X7_1000":       15,
	"DICT_ARUCO_ORIGINAL": 16,
	"DICT_APRILTAG_16h5":  17,
	"DICT_APRILTAG_25h9":  18,
	"DICT_APRILTAG_36h10": 19,
	"DICT_APRILTAG_36h11": 20,
}

// ParseDictionary accepts a dictionary name such as "DICT_5X5_250", in any case and with or without
// the DICT_ prefix, or its numeric id, and returns the id.
func ParseDictionary(s string) (int, error) {
	s = strings.TrimSpace(s)
	if id, err := strconv.Atoi(s); err == nil {
		if id < 0 || id >= len(dictionaries) {
			return 0, errors.Errorf("dictionary id %d out of range [0, %d)", id, len(dictionaries))
		}
		return id, nil
	}
	want := strings.ToUpper(s)
	if !strings.HasPrefix(want, "DICT_") {
		want = "DICT_" + want
	}
	for name, id := range dictionaries {
		if strings.ToUpper(name) == want {
			return id, nil
		}
	}
	return 0, errors.Errorf("unknown dictionary %q, expected one of %s", s, strings.Join(DictionaryNames(), ", "))
}

// DictionaryName returns the name of a dictionary id.
func DictionaryName(id int) (string, bool) {
	for name, did := range dictionaries {
		if did == id {
			return name, true
		}
	}
	return "", false
}

// DictionaryNames lists the known dictionaries in id order.
func DictionaryNames() []string {
	names := make([]string, 0, len(dictionaries))
	for name := range dictionaries {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return dictionaries[names[i]] < dictionaries[names[j]] })
	return names
}
