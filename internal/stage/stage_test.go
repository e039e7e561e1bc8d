package stage_test

import (
	"testing"

	"reelpipe/internal/stage"
)

func TestParse(t *testing.T) {
	cases := []struct {
		input string
		want  stage.Name
		ok    bool
	}{
		{"voice", stage.Voice, true},
		{" Voice ", stage.Voice, true},
		{"SCENEBUILD", stage.SceneBuild, true},
		{"", "", false},
		{"render", "", false},
	}
	for _, tc := range cases {
		got, ok := stage.Parse(tc.input)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("Parse(%q) = (%q, %v), want (%q, %v)", tc.input, got, ok, tc.want, tc.ok)
		}
	}
}

func TestOrdering(t *testing.T) {
	all := stage.All()
	if len(all) != stage.Count() {
		t.Fatalf("All returned %d stages, Count says %d", len(all), stage.Count())
	}
	if all[0] != stage.Script || all[len(all)-1] != stage.Export {
		t.Fatalf("unexpected pipeline boundaries: %v", all)
	}
	if !stage.Voice.Before(stage.Assembly) {
		t.Fatal("expected voice to run before assembly")
	}
	if stage.SEO.Before(stage.Script) {
		t.Fatal("expected seo to run after script")
	}
	if stage.Name("bogus").Index() != -1 {
		t.Fatal("expected unknown stage index to be -1")
	}
}

func TestPlanFullRun(t *testing.T) {
	plan := stage.Plan("", []stage.Name{stage.Script, stage.Scenes})
	if len(plan) != stage.Count() {
		t.Fatalf("retry from scratch should run every stage, got %d", len(plan))
	}
}

func TestPlanResumeSkipsCompletedUpstream(t *testing.T) {
	completed := []stage.Name{stage.Script, stage.Scenes, stage.Metadata}
	plan := stage.Plan(stage.Voice, completed)

	for _, name := range completed {
		for _, planned := range plan {
			if planned == name {
				t.Fatalf("completed upstream stage %s should be skipped", name)
			}
		}
	}
	if plan[0] != stage.Voice {
		t.Fatalf("expected plan to start at voice, got %s", plan[0])
	}
	if len(plan) != stage.Count()-len(completed) {
		t.Fatalf("unexpected plan length %d: %v", len(plan), plan)
	}
}

func TestPlanResumeKeepsUncompletedUpstream(t *testing.T) {
	// Metadata never completed, so a resume at voice must still run it.
	completed := []stage.Name{stage.Script, stage.Scenes}
	plan := stage.Plan(stage.Voice, completed)

	if plan[0] != stage.Metadata {
		t.Fatalf("expected uncompleted upstream stage first, got %s", plan[0])
	}
	if plan[1] != stage.Voice {
		t.Fatalf("expected voice after metadata, got %s", plan[1])
	}
}

func TestPlanUnknownResumePointRunsEverything(t *testing.T) {
	plan := stage.Plan(stage.Name("bogus"), []stage.Name{stage.Script})
	if len(plan) != stage.Count() {
		t.Fatalf("unknown resume point should fall back to a full run, got %d stages", len(plan))
	}
}
