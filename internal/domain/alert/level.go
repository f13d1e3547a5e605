package alert

import (
	"fmt"
	"strings"
)

// Level is the ordered alert severity: normal < caution < warning < danger.
type Level int

const (
	LevelNormal Level = iota
	LevelCaution
	LevelWarning
	LevelDanger
)

func (l Level) String() string {
	switch l {
	case LevelNormal:
		return "normal"
	case LevelCaution:
		return "caution"
	case LevelWarning:
		return "warning"
	case LevelDanger:
		return "danger"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel converts the wire representation back into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "normal":
		return LevelNormal, nil
	case "caution":
		return LevelCaution, nil
	case "warning":
		return LevelWarning, nil
	case "danger":
		return LevelDanger, nil
	default:
		return LevelNormal, fmt.Errorf("unknown alert level %q", s)
	}
}

// Classify maps a wind value against a positive threshold onto a Level.
// The mapping is monotonic in maxWind/threshold:
//
//	ratio <  1.0  normal
//	ratio <  1.2  caution
//	ratio <  1.5  warning
//	ratio >= 1.5  danger
func Classify(maxWindKMH, thresholdKMH float64) Level {
	if thresholdKMH <= 0 {
		return LevelNormal
	}
	ratio := maxWindKMH / thresholdKMH
	switch {
	case ratio >= 1.5:
		return LevelDanger
	case ratio >= 1.2:
		return LevelWarning
	case ratio >= 1.0:
		return LevelCaution
	default:
		return LevelNormal
	}
}
