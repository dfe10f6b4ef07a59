package app

import "testing"

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want Command
	}{
		{"empty args defaults to monitor", []string{}, CommandMonitor},
		{"monitor", []string{"monitor"}, CommandMonitor},
		{"validate", []string{"validate"}, CommandValidate},
		{"healthcheck", []string{"healthcheck"}, CommandHealthcheck},
		{"unknown defaults to monitor", []string{"bogus"}, CommandMonitor},
		{"extra args ignored", []string{"validate", "--verbose"}, CommandValidate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseCommand(tt.args); got != tt.want {
				t.Errorf("ParseCommand(%v) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}
