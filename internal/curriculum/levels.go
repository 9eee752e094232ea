package curriculum

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// DepthLevel is a topic's content depth.
type DepthLevel string

const (
	DepthOverview     DepthLevel = "overview"
	DepthIntroductory DepthLevel = "introductory"
	DepthIntermediate DepthLevel = "intermediate"
	DepthAdvanced     DepthLevel = "advanced"
	DepthGraduate     DepthLevel = "graduate"
	DepthResearch     DepthLevel = "research"
)

// LevelInfo describes one depth level.
type LevelInfo struct {
	ID         DepthLevel `yaml:"id"`
	MinMinutes int        `yaml:"min_minutes"`
	MaxMinutes int        `yaml:"max_minutes"`
	Directive  string     `yaml:"directive"`
}

// MinDuration is the low end of the expected study time.
func (l LevelInfo) MinDuration() time.Duration {
	return time.Duration(l.MinMinutes) * time.Minute
}

// MaxDuration is the high end of the expected study time.
func (l LevelInfo) MaxDuration() time.Duration {
	return time.Duration(l.MaxMinutes) * time.Minute
}

//go:embed levels.yaml
var levelsYAML []byte

var (
	levelsOnce sync.Once
	levels     map[DepthLevel]LevelInfo
	levelOrder []DepthLevel
)

func loadLevels() {
	levelsOnce.Do(func() {
		var file struct {
			Levels []LevelInfo `yaml:"levels"`
		}
		if err := yaml.Unmarshal(levelsYAML, &file); err != nil {
			panic(fmt.Sprintf("curriculum: parse embedded levels.yaml: %v", err))
		}
		levels = make(map[DepthLevel]LevelInfo, len(file.Levels))
		for _, l := range file.Levels {
			levels[l.ID] = l
			levelOrder = append(levelOrder, l.ID)
		}
	})
}

// Levels returns all depth levels, shallowest first.
func Levels() []LevelInfo {
	loadLevels()
	out := make([]LevelInfo, 0, len(levelOrder))
	for _, id := range levelOrder {
		out = append(out, levels[id])
	}
	return out
}

// ParseDepthLevel maps a free-form depth name to a known level.
func ParseDepthLevel(s string) (DepthLevel, bool) {
	loadLevels()
	d := DepthLevel(strings.ToLower(strings.TrimSpace(s)))
	_, ok := levels[d]
	return d, ok
}

// Info returns the catalog entry for the level. Unknown levels fall back to intermediate.
func (d DepthLevel) Info() LevelInfo {
	loadLevels()
	if l, ok := levels[d]; ok {
		return l
	}
	return levels[DepthIntermediate]
}

// Directive is the prose style instruction used verbatim in generated context.
func (d DepthLevel) Directive() string {
	return d.Info().Directive
}
