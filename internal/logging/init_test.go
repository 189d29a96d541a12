package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

func TestResolveLevel(t *testing.T) {
	tests := []struct {
		name string
		set  map[string]any
		want logrus.Level
	}{
		{"default", nil, logrus.InfoLevel},
		{"log_level", map[string]any{"log_level": "warning"}, logrus.WarnLevel},
		{"debug", map[string]any{"debug": true}, logrus.DebugLevel},
		{"verbose", map[string]any{"verbose": true}, logrus.DebugLevel},
		{"debug wins over log_level", map[string]any{"debug": true, "log_level": "error"}, logrus.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer viper.Reset()
			for k, v := range tt.set {
				viper.Set(k, v)
			}

			if got := resolveLevel(); got != tt.want {
				t.Errorf("resolveLevel() = %s, want %s", got, tt.want)
			}
		})
	}
}
