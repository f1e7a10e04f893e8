package whisperx

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestTranscribeVideoRunsToolChain(t *testing.T) {
	workDir := t.TempDir()
	var calls []string
	svc := NewService(Config{Model: "small", Language: "EN"})
	svc.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		calls = append(calls, name)
		switch name {
		case YtDlpCommand:
			return os.WriteFile(filepath.Join(workDir, "source.webm"), []byte("audio"), 0o644)
		case FFmpegCommand:
			if !slices.Contains(args, filepath.Join(workDir, "source.webm")) || !slices.Contains(args, filepath.Join(workDir, "audio.wav")) {
				t.Errorf("unexpected ffmpeg args %v", args)
			}
			if !slices.Contains(args, "16000") {
				t.Errorf("expected sample rate in ffmpeg args %v", args)
			}
			return nil
		case UVXCommand:
			if !slices.Contains(args, "--language") || !slices.Contains(args, "en") || !slices.Contains(args, "small") {
				t.Errorf("unexpected whisperx args %v", args)
			}
			payload := `{"segments":[{"text":" Hello there. "},{"text":""},{"text":"General Kenobi."}]}`
			return os.WriteFile(filepath.Join(workDir, "audio.json"), []byte(payload), 0o644)
		}
		return errors.New("unexpected command " + name)
	})

	text, err := svc.TranscribeVideo(context.Background(), "https://www.youtube.com/watch?v=abc", workDir)
	if err != nil {
		t.Fatalf("TranscribeVideo: %v", err)
	}
	if text != "Hello there. General Kenobi." {
		t.Fatalf("text = %q", text)
	}
	if strings.Join(calls, ",") != "yt-dlp,ffmpeg,uvx" {
		t.Fatalf("unexpected call order %v", calls)
	}
}

func TestTranscribeVideoDownloadFailure(t *testing.T) {
	svc := NewService(Config{})
	svc.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		return errors.New("network down")
	})
	if _, err := svc.TranscribeVideo(context.Background(), "https://youtu.be/x", t.TempDir()); err == nil || !strings.Contains(err.Error(), "yt-dlp") {
		t.Fatalf("expected yt-dlp error, got %v", err)
	}
}

func TestTranscribeVideoNoAudioWritten(t *testing.T) {
	svc := NewService(Config{})
	svc.WithCommandRunner(func(ctx context.Context, name string, args ...string) error { return nil })
	if _, err := svc.TranscribeVideo(context.Background(), "https://youtu.be/x", t.TempDir()); err == nil {
		t.Fatal("expected missing download error")
	}
}

func TestBuildArgsDevice(t *testing.T) {
	cpu := NewService(Config{}).whisperArgs("a.wav", "out")
	if !slices.Contains(cpu, CPUDevice) || !slices.Contains(cpu, DefaultModel) {
		t.Fatalf("unexpected cpu args %v", cpu)
	}
	gpu := NewService(Config{CUDAEnabled: true}).whisperArgs("a.wav", "out")
	if !slices.Contains(gpu, CUDADevice) || !slices.Contains(gpu, CUDAIndexURL) {
		t.Fatalf("unexpected gpu args %v", gpu)
	}
}
