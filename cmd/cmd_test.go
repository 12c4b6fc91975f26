package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibliotheque/apiserver/config"
	"github.com/bibliotheque/apiserver/internal/mq"
	"github.com/bibliotheque/apiserver/types"
)

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"server"},
		{"migrate", "up"},
		{"migrate", "down"},
		{"reminders"},
		{"events", "tail"},
		{"export", "loans"},
	} {
		found, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], found.Name())
	}
}

func TestLogEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := logEvent(logger)

	data, err := json.Marshal(types.LoanEvent{ID: "evt-1", Type: types.LoanEventOverdue, LoanID: 7, DaysOverdue: 3})
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), mq.Message{ID: "m-1", Data: data}))
	assert.Contains(t, buf.String(), `"type":"loan.overdue"`)
	assert.Contains(t, buf.String(), `"loan_id":7`)

	buf.Reset()
	require.NoError(t, handler(context.Background(), mq.Message{ID: "m-2", Data: []byte("garbage")}))
	assert.Contains(t, buf.String(), "undecodable loan event")
}

func TestBatchCommandsNeedPostgres(t *testing.T) {
	_, _, err := openLoans(context.Background(), config.Config{Store: config.StoreBackendMemory})
	assert.Error(t, err)

	_, err = openQueue(context.Background(), config.Config{})
	assert.ErrorContains(t, err, "MQ_BACKEND")
}

func TestNewLogger(t *testing.T) {
	logger := newLogger("warn")
	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelWarn))
}

func TestReminderInterval(t *testing.T) {
	newCmd := func(args ...string) *cobra.Command {
		c := &cobra.Command{Use: "reminders"}
		c.Flags().Duration("interval", 0, "")
		require.NoError(t, c.Flags().Parse(args))
		return c
	}

	got, err := reminderInterval(newCmd(), 6*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 6*time.Hour, got)

	got, err = reminderInterval(newCmd("--interval", "0"), 6*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, got)

	got, err = reminderInterval(newCmd("--interval", "24h"), 0)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, got)

	_, err = reminderInterval(newCmd("--interval", "-1m"), 0)
	assert.ErrorContains(t, err, "must not be negative")

	_, err = reminderInterval(&cobra.Command{Use: "bare"}, 0)
	assert.NoError(t, err)
}
