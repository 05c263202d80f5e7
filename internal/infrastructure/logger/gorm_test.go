package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

func sqlFunc(sql string, rows int64) func() (string, int64) {
	return func() (string, int64) { return sql, rows }
}

func TestGormLogger_Trace(t *testing.T) {
	tests := []struct {
		name      string
		level     gormlogger.LogLevel
		elapsed   time.Duration
		err       error
		wantMsg   string
		wantLevel zapcore.Level
	}{
		{"error", gormlogger.Error, 0, errors.New("deadlock"), "SQL error", zapcore.ErrorLevel},
		{"record not found is quiet", gormlogger.Error, 0, gormlogger.ErrRecordNotFound, "", 0},
		{"slow", gormlogger.Warn, time.Second, nil, "Slow SQL", zapcore.WarnLevel},
		{"normal query at warn", gormlogger.Warn, 0, nil, "", 0},
		{"normal query at info", gormlogger.Info, 0, nil, "SQL query", zapcore.DebugLevel},
		{"silent", gormlogger.Silent, time.Second, errors.New("deadlock"), "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, logs := observed()
			gl := NewGormLogger(log, tt.level, WithSlowThreshold(100*time.Millisecond))

			gl.Trace(context.Background(), time.Now().Add(-tt.elapsed), sqlFunc("SELECT * FROM invoices", 3), tt.err)

			if tt.wantMsg == "" {
				assert.Zero(t, logs.Len())
				return
			}
			require.Equal(t, 1, logs.Len())
			entry := logs.All()[0]
			assert.Equal(t, tt.wantMsg, entry.Message)
			assert.Equal(t, tt.wantLevel, entry.Level)
			assert.Equal(t, "gorm", entry.LoggerName)
			assert.Equal(t, "SELECT * FROM invoices", entry.ContextMap()["sql"])
		})
	}
}

func TestGormLogger_TraceCarriesRequestID(t *testing.T) {
	log, logs := observed()
	gl := NewGormLogger(log, gormlogger.Info)

	ctx, _ := WithRequestID(context.Background(), log, "req-9")
	gl.Trace(ctx, time.Now(), sqlFunc("UPDATE invoices SET status='PAID'", 1), nil)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "req-9", logs.All()[0].ContextMap()["request_id"])
}

func TestGormLogger_LogModeReturnsCopy(t *testing.T) {
	log, logs := observed()
	gl := NewGormLogger(log, gormlogger.Warn)

	verbose := gl.LogMode(gormlogger.Info)
	verbose.Info(context.Background(), "migrating %s", "invoices")
	gl.Info(context.Background(), "hidden")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "migrating invoices", logs.All()[0].Message)
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("error"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("warn"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel(""))
}
