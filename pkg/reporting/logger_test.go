package reporting_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/kbenson/ride-harness/pkg/reporting"
)

func TestForTrialTagsEveryLine(t *testing.T) {
	var buf bytes.Buffer
	logger := reporting.NewLogger(reporting.LoggerConfig{
		Level:  reporting.LogLevelInfo,
		Format: reporting.LogFormatJSON,
		Output: &buf,
	})

	trial := logger.ForTrial("trial-7")
	trial.Info("starting trial")
	trial.Info("trial completed")

	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var fields map[string]interface{}
		if err := json.Unmarshal(line, &fields); err != nil {
			t.Fatalf("unmarshal log line: %v", err)
		}
		if fields["trial_id"] != "trial-7" {
			t.Errorf("line %q missing trial_id=trial-7", line)
		}
	}
}
