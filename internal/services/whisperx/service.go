package whisperx

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// CommandRunner executes an external tool.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Service provides WhisperX transcription capabilities.
type Service struct {
	cfg           Config
	commandRunner CommandRunner
}

// NewService creates a WhisperX service with the given configuration.
func NewService(cfg Config) *Service {
	if cfg.FFmpegBinary == "" {
		cfg.FFmpegBinary = FFmpegCommand
	}
	if cfg.YtDlpBinary == "" {
		cfg.YtDlpBinary = YtDlpCommand
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &Service{cfg: cfg}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner CommandRunner) {
	s.commandRunner = runner
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	return s.cfg.Model
}

// run executes a command, using the custom runner if set.
func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	// pyannote checkpoints fail to load under torch's weights_only default.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// TranscribeVideo downloads the audio of videoURL into workDir and returns
// the transcript text. An empty string with a nil error means WhisperX ran
// but produced no speech.
func (s *Service) TranscribeVideo(ctx context.Context, videoURL, workDir string) (string, error) {
	if strings.TrimSpace(videoURL) == "" {
		return "", fmt.Errorf("transcribe video: url required")
	}
	if workDir == "" {
		return "", fmt.Errorf("transcribe video: workDir required")
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", fmt.Errorf("transcribe video: ensure workDir: %w", err)
	}

	downloaded, err := s.DownloadAudio(ctx, videoURL, workDir)
	if err != nil {
		return "", err
	}
	wav := filepath.Join(workDir, "audio.wav")
	if err := s.NormalizeAudio(ctx, downloaded, wav); err != nil {
		return "", err
	}
	return s.Transcribe(ctx, wav, workDir)
}

// DownloadAudio fetches the best audio stream with yt-dlp and returns the
// downloaded file path.
func (s *Service) DownloadAudio(ctx context.Context, videoURL, workDir string) (string, error) {
	template := filepath.Join(workDir, "source.%(ext)s")
	args := []string{"--no-playlist", "--quiet", "-f", "bestaudio/best", "-o", template, videoURL}
	if err := s.run(ctx, s.cfg.YtDlpBinary, args...); err != nil {
		return "", fmt.Errorf("yt-dlp download: %w", err)
	}
	matches, err := filepath.Glob(filepath.Join(workDir, "source.*"))
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("yt-dlp download: no audio file written to %s", workDir)
	}
	sort.Strings(matches)
	return matches[0], nil
}

// NormalizeAudio converts source to the mono 16kHz PCM WAV WhisperX expects.
func (s *Service) NormalizeAudio(ctx context.Context, source, dest string) error {
	if err := s.run(ctx, s.cfg.FFmpegBinary, ffmpegArgs(source, dest)...); err != nil {
		return fmt.Errorf("ffmpeg normalize: %w", err)
	}
	return nil
}

func ffmpegArgs(source, dest string) []string {
	return ffmpeg.Input(source).
		Output(dest, ffmpeg.KwArgs{"ac": "1", "ar": strconv.Itoa(SampleRate), "acodec": "pcm_s16le"}).
		OverWriteOutput().
		GetArgs()
}

// Transcribe runs WhisperX on a normalized WAV file and returns the joined
// segment text. WhisperX writes {base}.json into outputDir.
func (s *Service) Transcribe(ctx context.Context, wav, outputDir string) (string, error) {
	if wav == "" {
		return "", fmt.Errorf("whisperx: audio path required")
	}
	if outputDir == "" {
		outputDir = filepath.Dir(wav)
	}
	if err := s.run(ctx, UVXCommand, s.whisperArgs(wav, outputDir)...); err != nil {
		return "", fmt.Errorf("whisperx: %w", err)
	}
	base := strings.TrimSuffix(filepath.Base(wav), filepath.Ext(wav))
	text, err := readTranscript(filepath.Join(outputDir, base+".json"))
	if err != nil {
		return "", fmt.Errorf("whisperx: %w", err)
	}
	return text, nil
}

func (s *Service) whisperArgs(wav, outputDir string) []string {
	var args []string
	device := []string{"--device", CPUDevice, "--compute_type", CPUComputeType}
	if s.cfg.CUDAEnabled {
		args = []string{"--index-url", CUDAIndexURL, "--extra-index-url", PypiIndexURL}
		device = []string{"--device", CUDADevice}
	} else {
		args = []string{"--index-url", PypiIndexURL}
	}
	args = append(args, "whisperx", wav,
		"--model", s.cfg.Model,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--batch_size", BatchSize,
		"--chunk_size", ChunkSize,
		"--beam_size", BeamSize,
		"--temperature", Temperature,
		"--segment_resolution", SegmentResolution,
		"--vad_method", VADMethodSilero,
	)
	if lang := strings.ToLower(strings.TrimSpace(s.cfg.Language)); len(lang) == 2 {
		args = append(args, "--language", lang)
	}
	return append(args, device...)
}

// readTranscript joins the non-blank segment texts of a WhisperX JSON file.
func readTranscript(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var out struct {
		Segments []struct {
			Text string `json:"text"`
		} `json:"segments"`
	}
	if err := json.NewDecoder(f).Decode(&out); err != nil {
		return "", fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	parts := make([]string, 0, len(out.Segments))
	for _, seg := range out.Segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}
