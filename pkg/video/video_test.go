// SPDX-License-Identifier: GPL-2.0-or-later

package video

import (
	"context"
	"io"
	"os"
	"os/exec"
	"testing"

	"github.com/javantanna/mpx/pkg/mpxerr"
	"github.com/stretchr/testify/require"
)

func TestFakeProcess(t *testing.T) {
	if os.Getenv("GO_TEST_PROCESS") != "1" {
		return
	}

	if os.Getenv("STDOUT") != "" {
		os.Stdout.WriteString(os.Getenv("STDOUT"))
	}
	io.Copy(io.Discard, os.Stdin) //nolint:errcheck

	if os.Getenv("FAIL") == "1" {
		os.Exit(1)
	}
	os.Exit(0)
}

func fakeExecCommand(env ...string) func(...string) *exec.Cmd {
	return func(...string) *exec.Cmd {
		cmd := exec.Command(os.Args[0], "-test.run=TestFakeProcess")
		cmd.Env = append([]string{"GO_TEST_PROCESS=1"}, env...)
		return cmd
	}
}

const probeJSON = `{
	"streams": [
		{
			"codec_type": "video",
			"codec_name": "h264",
			"width": 64,
			"height": 48,
			"avg_frame_rate": "30000/1001",
			"nb_frames": "300"
		},
		{
			"codec_type": "audio",
			"codec_name": "aac"
		}
	],
	"format": {
		"duration": "10.010000"
	}
}`

func TestParseProbeOutput(t *testing.T) {
	t.Run("working", func(t *testing.T) {
		info, err := parseProbeOutput([]byte(probeJSON))
		require.NoError(t, err)

		require.Equal(t, 64, info.Width)
		require.Equal(t, 48, info.Height)
		require.Equal(t, "h264", info.Codec)
		require.Equal(t, 300, info.FrameCount)
		require.InDelta(t, 29.97, info.FPS, 0.01)
		require.InDelta(t, 10.01, info.Duration, 0.001)
		require.True(t, info.HasAudio)
		require.Equal(t, 64*48*3, info.SamplesPerFrame())
	})
	t.Run("frameCountFallback", func(t *testing.T) {
		raw := `{
			"streams": [{
				"codec_type": "video",
				"width": 10, "height": 10,
				"avg_frame_rate": "25/1"
			}],
			"format": {"duration": "4.0"}
		}`
		info, err := parseProbeOutput([]byte(raw))
		require.NoError(t, err)
		require.Equal(t, 100, info.FrameCount)
		require.False(t, info.HasAudio)
	})
	t.Run("noVideoStream", func(t *testing.T) {
		_, err := parseProbeOutput([]byte(`{"streams":[],"format":{}}`))
		require.Error(t, err)
	})
	t.Run("invalidJSON", func(t *testing.T) {
		_, err := parseProbeOutput([]byte("nil"))
		require.Error(t, err)
	})
}

func TestParseFrameRate(t *testing.T) {
	require.Equal(t, 25.0, parseFrameRate("25/1"))
	require.Equal(t, 0.0, parseFrameRate("0/0"))
	require.Equal(t, 30.0, parseFrameRate("30"))
	require.Equal(t, 0.0, parseFrameRate("x/y"))
}

func TestProbe(t *testing.T) {
	t.Run("working", func(t *testing.T) {
		probe := &FFprobe{command: fakeExecCommand("STDOUT=" + probeJSON)}
		info, err := probe.Probe(context.Background(), "a.mp4")
		require.NoError(t, err)
		require.Equal(t, 64, info.Width)
	})
	t.Run("processError", func(t *testing.T) {
		probe := &FFprobe{command: fakeExecCommand("FAIL=1")}
		_, err := probe.Probe(context.Background(), "a.mp4")
		require.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	supported := []string{".mp4", ".mov"}

	t.Run("working", func(t *testing.T) {
		probe := &FFprobe{command: fakeExecCommand("STDOUT=" + probeJSON)}
		_, err := probe.Validate(context.Background(), "a.mp4", supported)
		require.NoError(t, err)
	})
	t.Run("unsupportedFormat", func(t *testing.T) {
		probe := &FFprobe{command: fakeExecCommand("STDOUT=" + probeJSON)}
		_, err := probe.Validate(context.Background(), "a.webm", supported)
		require.Equal(t, mpxerr.KindValidation, mpxerr.KindOf(err))
	})
	t.Run("probeFailure", func(t *testing.T) {
		probe := &FFprobe{command: fakeExecCommand("FAIL=1")}
		_, err := probe.Validate(context.Background(), "a.mp4", supported)
		require.Equal(t, mpxerr.KindValidation, mpxerr.KindOf(err))
	})
}

func TestSource(t *testing.T) {
	t.Run("frames", func(t *testing.T) {
		ffmpeg := &FFmpeg{command: fakeExecCommand("STDOUT=abcdef")}

		source, err := ffmpeg.NewSource("a.mp4", 1, 1)
		require.NoError(t, err)
		defer source.Close()

		frame, err := source.Next()
		require.NoError(t, err)
		require.Equal(t, []byte("abc"), frame)

		frame, err = source.Next()
		require.NoError(t, err)
		require.Equal(t, []byte("def"), frame)

		_, err = source.Next()
		require.ErrorIs(t, err, io.EOF)
	})
	t.Run("shortFrame", func(t *testing.T) {
		ffmpeg := &FFmpeg{command: fakeExecCommand("STDOUT=abcde")}

		source, err := ffmpeg.NewSource("a.mp4", 1, 1)
		require.NoError(t, err)
		defer source.Close()

		_, err = source.Next()
		require.NoError(t, err)

		_, err = source.Next()
		require.Error(t, err)
		require.NotErrorIs(t, err, io.EOF)
	})
}

func TestSink(t *testing.T) {
	opts := SinkOptions{
		Width:       1,
		Height:      1,
		FPS:         30,
		AudioSource: "a.mp4",
		Output:      "out.mp4",
	}

	t.Run("working", func(t *testing.T) {
		ffmpeg := &FFmpeg{command: fakeExecCommand()}

		sink, err := ffmpeg.NewSink(opts)
		require.NoError(t, err)

		require.NoError(t, sink.WriteFrame([]byte("abc")))
		require.NoError(t, sink.Close())
		require.NoError(t, sink.Close()) // Idempotent.
	})
	t.Run("badFrameSize", func(t *testing.T) {
		ffmpeg := &FFmpeg{command: fakeExecCommand()}

		sink, err := ffmpeg.NewSink(opts)
		require.NoError(t, err)
		defer sink.Close()

		err = sink.WriteFrame([]byte("ab"))
		require.Equal(t, mpxerr.KindEncoding, mpxerr.KindOf(err))
	})
	t.Run("muxFailure", func(t *testing.T) {
		ffmpeg := &FFmpeg{command: fakeExecCommand("FAIL=1")}

		sink, err := ffmpeg.NewSink(opts)
		require.NoError(t, err)

		sink.WriteFrame([]byte("abc")) //nolint:errcheck
		err = sink.Close()
		require.Equal(t, mpxerr.KindEncoding, mpxerr.KindOf(err))
	})
}
