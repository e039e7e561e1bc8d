// Package stage enumerates the production pipeline stages and the resume
// planning rules used when a failed or finished item is retried.
package stage

import "strings"

// Name identifies one pipeline stage.
type Name string

const (
	Script     Name = "script"
	Scenes     Name = "scenes"
	Metadata   Name = "metadata"
	Voice      Name = "voice"
	Keywords   Name = "keywords"
	Direction  Name = "direction"
	Prompts    Name = "prompts"
	Entities   Name = "entities"
	RefPrompts Name = "refprompts"
	SceneBuild Name = "scenebuild"
	Assembly   Name = "assembly"
	SEO        Name = "seo"
	Export     Name = "export"
)

var order = []Name{
	Script,
	Scenes,
	Metadata,
	Voice,
	Keywords,
	Direction,
	Prompts,
	Entities,
	RefPrompts,
	SceneBuild,
	Assembly,
	SEO,
	Export,
}

var labels = map[Name]string{
	Script:     "Splitting script",
	Scenes:     "Generating scenes",
	Metadata:   "Generating metadata",
	Voice:      "Generating voiceover",
	Keywords:   "Extracting keywords",
	Direction:  "Planning video direction",
	Prompts:    "Writing video prompts",
	Entities:   "Extracting entities",
	RefPrompts: "Writing reference prompts",
	SceneBuild: "Building scenes",
	Assembly:   "Assembling video",
	SEO:        "Generating SEO",
	Export:     "Exporting",
}

var indexByName = func() map[Name]int {
	m := make(map[Name]int, len(order))
	for i, name := range order {
		m[name] = i
	}
	return m
}()

// All returns the ordered list of pipeline stages.
func All() []Name {
	cp := make([]Name, len(order))
	copy(cp, order)
	return cp
}

// Count returns the number of pipeline stages.
func Count() int {
	return len(order)
}

// Parse converts a string into a known stage name.
func Parse(value string) (Name, bool) {
	normalized := Name(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := indexByName[normalized]
	return normalized, ok
}

// Label returns the human-readable progress label for a stage.
func (n Name) Label() string {
	if label, ok := labels[n]; ok {
		return label
	}
	return string(n)
}

// Index returns the zero-based position of a stage, or -1 when unknown.
func (n Name) Index() int {
	if idx, ok := indexByName[n]; ok {
		return idx
	}
	return -1
}

// Before reports whether n runs earlier than other in the pipeline.
func (n Name) Before(other Name) bool {
	return n.Index() < other.Index()
}

// Plan returns the stages a run must execute. With an empty retryFrom the
// whole pipeline runs. With a resume point, stages upstream of it that are
// recorded as completed are skipped; uncompleted upstream stages still run
// because their outputs cannot be trusted to exist.
func Plan(retryFrom Name, completed []Name) []Name {
	if retryFrom == "" {
		return All()
	}
	resumeIdx := retryFrom.Index()
	if resumeIdx < 0 {
		return All()
	}
	done := make(map[Name]struct{}, len(completed))
	for _, name := range completed {
		done[name] = struct{}{}
	}
	plan := make([]Name, 0, len(order))
	for i, name := range order {
		if i < resumeIdx {
			if _, ok := done[name]; ok {
				continue
			}
		}
		plan = append(plan, name)
	}
	return plan
}
