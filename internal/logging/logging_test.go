package logging_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/askiada/go-martian/internal/config"
	"github.com/askiada/go-martian/internal/logging"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		cfg       config.Logging
		wantLevel zapcore.Level
		wantErr   error
	}{
		"info console": {
			cfg:       config.Logging{Level: "info", Format: "console"},
			wantLevel: zapcore.InfoLevel,
		},
		"debug json": {
			cfg:       config.Logging{Level: "DEBUG", Format: "json"},
			wantLevel: zapcore.DebugLevel,
		},
		"warn default format": {
			cfg:       config.Logging{Level: "warn"},
			wantLevel: zapcore.WarnLevel,
		},
		"unknown level": {
			cfg:     config.Logging{Level: "loud", Format: "json"},
			wantErr: config.ErrInvalidLogLevel,
		},
		"unknown format": {
			cfg:     config.Logging{Level: "info", Format: "xml"},
			wantErr: config.ErrInvalidLogFormat,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			logger, err := logging.New(tc.cfg)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tc.wantLevel))
			assert.False(t, logger.Core().Enabled(tc.wantLevel-1))
		})
	}
}

func TestNop(t *testing.T) {
	t.Parallel()

	assert.False(t, logging.Nop().Core().Enabled(zapcore.ErrorLevel))
}
