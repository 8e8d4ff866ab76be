package sl_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Maksim200738-droid/rockvpn/internal/lib/sl"
)

func TestErr_ReturnsCorrectAttr(t *testing.T) {
	attr := sl.Err(errors.New("panel unreachable"))

	assert.Equal(t, "error", attr.Key)
	assert.Equal(t, slog.StringValue("panel unreachable"), attr.Value)
}

func TestErr_NilError(t *testing.T) {
	assert.NotPanics(t, func() {
		attr := sl.Err(nil)
		assert.Equal(t, "<nil>", attr.Value.String())
	})
}

func TestOp(t *testing.T) {
	attr := sl.Op("lifecycle.Approve")

	assert.Equal(t, "op", attr.Key)
	assert.Equal(t, "lifecycle.Approve", attr.Value.String())
}

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		env        string
		wantJSON   bool
		debugLevel bool
	}{
		{env: "local", debugLevel: true},
		{env: "dev", wantJSON: true, debugLevel: true},
		{env: "prod", wantJSON: true},
		{env: "", debugLevel: true},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			var buf bytes.Buffer
			log := sl.SetupLogger(tt.env, &buf)

			assert.Equal(t, tt.debugLevel, log.Enabled(context.Background(), slog.LevelDebug))
			log.Info("started", sl.Op("main"))
			if tt.wantJSON {
				assert.Contains(t, buf.String(), `"msg":"started"`)
			} else {
				assert.Contains(t, buf.String(), "msg=started")
			}
		})
	}
}
