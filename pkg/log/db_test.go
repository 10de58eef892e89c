// SPDX-License-Identifier: GPL-2.0-or-later

package log

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) (*DB, func()) {
	dbPath := filepath.Join(t.TempDir(), "logs.db")

	logDB := NewDB(dbPath, &sync.WaitGroup{})

	ctx, cancel := context.WithCancel(context.Background())
	if err := logDB.Init(ctx); err != nil {
		t.Fatal(err)
	}

	return logDB, cancel
}

func TestQuery(t *testing.T) {
	msg1 := Log{
		Level: LevelError,
		Time:  4000,
		Src:   "encoder",
		File:  "a.mp4",
		Msg:   "msg1",
	}
	msg2 := Log{
		Level: LevelWarning,
		Time:  3000,
		Src:   "encoder",
		Msg:   "msg2",
	}
	msg3 := Log{
		Level: LevelInfo,
		Time:  2000,
		Src:   "verifier",
		File:  "b.mp4",
		Msg:   "msg3",
	}

	logDB, cancel := newTestDB(t)
	defer cancel()

	require.NoError(t, logDB.saveLog(msg1))
	require.NoError(t, logDB.saveLog(msg2))
	require.NoError(t, logDB.saveLog(msg3))

	cases := []struct {
		name     string
		input    Query
		expected []Log
	}{
		{
			name: "singleLevel",
			input: Query{
				Levels:  []Level{LevelWarning},
				Sources: []string{"encoder"},
				Time:    5000,
			},
			expected: []Log{msg2},
		},
		{
			name: "multipleLevels",
			input: Query{
				Levels: []Level{LevelError, LevelWarning},
				Time:   5000,
			},
			expected: []Log{msg1, msg2},
		},
		{
			name: "file",
			input: Query{
				Files: []string{"b.mp4"},
				Time:  5000,
			},
			expected: []Log{msg3},
		},
		{
			name: "singleSource",
			input: Query{
				Sources: []string{"verifier"},
				Time:    5000,
			},
			expected: []Log{msg3},
		},
		{
			name:     "limit",
			input:    Query{Limit: 1, Time: 5000},
			expected: []Log{msg1},
		},
		{
			name:     "none",
			input:    Query{Sources: []string{"nonexistent"}, Time: 5000},
			expected: nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			logs, err := logDB.Query(tc.input)
			require.NoError(t, err)
			require.Equal(t, tc.expected, *logs)
		})
	}
}

func TestDBMaxKeys(t *testing.T) {
	logDB, cancel := newTestDB(t)
	defer cancel()
	logDB.maxKeys = 2

	require.NoError(t, logDB.saveLog(Log{Time: 1, Msg: "a"}))
	require.NoError(t, logDB.saveLog(Log{Time: 2, Msg: "b"}))
	require.NoError(t, logDB.saveLog(Log{Time: 3, Msg: "c"}))

	logs, err := logDB.Query(Query{Time: 4})
	require.NoError(t, err)
	require.Len(t, *logs, 2)
	require.Equal(t, "c", (*logs)[0].Msg)
	require.Equal(t, "b", (*logs)[1].Msg)
}

func TestDBInitErr(t *testing.T) {
	logDB := NewDB(filepath.Join("/dev/null", "logs.db"), &sync.WaitGroup{})
	require.Error(t, logDB.Init(context.Background()))
}

func TestSaveLogs(t *testing.T) {
	logDB, cancelDB := newTestDB(t)
	defer cancelDB()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := NewMockLogger()
	require.NoError(t, logger.Start(ctx))

	go logDB.SaveLogs(ctx, logger)
	time.Sleep(10 * time.Millisecond)

	logger.Info().Src("app").Time(time.Unix(1, 0)).Msg("saved")
	time.Sleep(50 * time.Millisecond)

	logs, err := logDB.Query(Query{Time: UnixMillisecond(time.Now().UnixNano() / 1000)})
	require.NoError(t, err)
	require.Len(t, *logs, 1)
	require.Equal(t, "saved", (*logs)[0].Msg)
}
