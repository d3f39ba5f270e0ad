package intent

import "testing"

func TestFunctionName(t *testing.T) {
	tests := []struct {
		label string
		want  string
	}{
		{"Convert name to base64", "convert_name_to_base64"},
		{"Check status of a project", "check_status_of_a_project"},
		{"check   the\tweather", "check_the_weather"},
		{"Add task to a project!", "add_task_to_a_project"},
		{"Café order (v2)", "caf_order_v2"},
		{"already_snake_case", "already_snake_case"},
		{" padded ", "_padded_"},
		{"UPPER-case", "uppercase"},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			if got := FunctionName(tt.label); got != tt.want {
				t.Errorf("FunctionName(%q) = %q, want %q", tt.label, got, tt.want)
			}
			if got := FunctionName(FunctionName(tt.label)); got != tt.want {
				t.Errorf("FunctionName is not idempotent for %q: %q", tt.label, got)
			}
		})
	}
}
