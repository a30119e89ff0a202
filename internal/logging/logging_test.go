package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestWithComponentTagsLines(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	logger := WithComponent(base, "pipeline")
	logger.Info().Msg("starting detection")

	if !strings.Contains(buf.String(), `"component":"pipeline"`) {
		t.Errorf("log line missing component field: %s", buf.String())
	}
}

func TestWithComponentLeavesBaseUntouched(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	_ = WithComponent(base, "cli")
	base.Info().Msg("plain")

	if strings.Contains(buf.String(), "component") {
		t.Errorf("base logger gained a component field: %s", buf.String())
	}
}
