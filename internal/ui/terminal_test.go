package ui

import (
	"strings"
	"testing"
)

func TestShouldUseColor(t *testing.T) {
	tests := []struct {
		name          string
		noColor       string
		cliColor      string
		cliColorForce string
		wantColor     bool
		ttyDependent  bool // result depends on TTY state, skip assertion
	}{
		{
			name:      "NO_COLOR disables color",
			noColor:   "1",
			wantColor: false,
		},
		{
			name:         "no overrides falls back to TTY detection",
			ttyDependent: true,
		},
		{
			name:      "CLICOLOR=0 disables color",
			cliColor:  "0",
			wantColor: false,
		},
		{
			name:          "CLICOLOR_FORCE enables color even in non-TTY",
			cliColorForce: "1",
			wantColor:     true,
		},
		{
			name:          "NO_COLOR takes precedence over CLICOLOR_FORCE",
			noColor:       "1",
			cliColorForce: "1",
			wantColor:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("NO_COLOR", tt.noColor)
			t.Setenv("CLICOLOR", tt.cliColor)
			t.Setenv("CLICOLOR_FORCE", tt.cliColorForce)

			got := ShouldUseColor()
			if tt.ttyDependent {
				return
			}
			if got != tt.wantColor {
				t.Errorf("ShouldUseColor() = %v, want %v", got, tt.wantColor)
			}
		})
	}
}

func TestShouldUseEmoji(t *testing.T) {
	t.Setenv("RWM_NO_EMOJI", "1")
	if ShouldUseEmoji() {
		t.Error("ShouldUseEmoji() = true with RWM_NO_EMOJI set")
	}
}

func TestGetWidth(t *testing.T) {
	// Not a TTY in tests, expect the default
	if w := GetWidth(); w <= 0 {
		t.Errorf("GetWidth() = %d, want positive", w)
	}
}

func TestRenderSearchResults(t *testing.T) {
	vm := &SearchViewModel{
		Query: "timeout",
		Events: []SearchResultItem{
			{ID: "E-abc123", Text: "raised client timeout to 30s", When: "2h ago"},
		},
		Facts: []SearchResultItem{
			{ID: "F-deadbeef", Text: "build.cmd = make test", When: "1d ago"},
		},
	}

	out := RenderSearchResults(vm, 80)
	if !strings.Contains(out, "timeout") {
		t.Error("rendered output missing query")
	}
	if !strings.Contains(out, "E-abc123") {
		t.Error("rendered output missing event ID")
	}
	if !strings.Contains(out, "F-deadbeef") {
		t.Error("rendered output missing fact ID")
	}
}

func TestRenderSearchResultsEmpty(t *testing.T) {
	out := RenderSearchResults(&SearchViewModel{Query: "nothing"}, 80)
	if !strings.Contains(out, "No matches.") {
		t.Error("empty results should render the no-match hint")
	}
}

func TestRenderBundle(t *testing.T) {
	vm := &BundleViewModel{
		SessionID: "proj@main",
		Now:       "## NOW\nObjective: fix the resolver",
		Pointers: []PointerItem{
			{Type: "TASK", ID: "T-fix-resolver", Text: "fix the resolver [doing]", Cost: 12},
			{Type: "EVENT", ID: "E-aaa111", Text: "DECISION: use walk-up discovery", Cost: 9},
		},
		TokenEstimate: 21,
		Budget:        4500,
	}

	out := RenderBundle(vm, 100)
	if !strings.Contains(out, "T-fix-resolver") {
		t.Error("rendered bundle missing task pointer")
	}
	if !strings.Contains(out, "proj@main") {
		t.Error("rendered bundle missing session summary")
	}
}

func TestRenderCheckpointTree(t *testing.T) {
	out := RenderCheckpointTree("fix the resolver", []CheckpointSection{
		{Label: "Tasks", Items: []string{"T-fix-resolver fix the resolver [doing]"}},
		{Label: "Facts", Items: []string{"build.cmd = make test"}},
	})
	if !strings.Contains(out, "fix the resolver") {
		t.Error("tree missing objective root")
	}
	if !strings.Contains(out, "Facts") {
		t.Error("tree missing facts branch")
	}
}

func TestRenderCheckpointTreeEmpty(t *testing.T) {
	out := RenderCheckpointTree("idle", nil)
	if !strings.Contains(out, "Empty snapshot.") {
		t.Error("empty snapshot should render the hint")
	}
}

func TestRenderInitReport(t *testing.T) {
	res := InitResult{
		DBPath:             "/tmp/proj/.rwm/rwm.db",
		ArtifactsDir:       "/tmp/proj/.rwm/rwm_artifacts",
		SessionID:          "proj@main",
		Budget:             4500,
		QuickstartCommands: []string{"rwm commit --task \"first task\"", "rwm resume"},
	}

	out := RenderInitReport(res, 100)
	if !strings.Contains(out, "rwm.db") {
		t.Error("report missing database path")
	}
	if !strings.Contains(out, "proj@main") {
		t.Error("report missing session")
	}
	if !strings.Contains(out, "Next Steps:") {
		t.Error("report missing next steps")
	}
}
