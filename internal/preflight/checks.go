package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"contentpipe/internal/config"
	"contentpipe/internal/deps"
	"contentpipe/internal/services/llm"
	"contentpipe/internal/services/whisperx"
)

// CheckGeneration verifies that the generation API is reachable and the key
// is valid. Providers without a health endpoint only have their key checked.
// It uses a 30-second timeout and a single attempt (no retries).
func CheckGeneration(ctx context.Context, cfg config.Generation) Result {
	name := "Generation (" + providerLabel(cfg.Provider) + ")"
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	var gen llm.Generator
	if cfg.Provider == config.ProviderOpenRouter || cfg.Provider == "" {
		gen = llm.NewClient(llm.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Referer: cfg.Referer,
			Title:   cfg.Title,
		}, llm.WithRetryMaxAttempts(1))
	} else {
		built, err := llm.NewFromConfig(cfg, "")
		if err != nil {
			return Result{Name: name, Detail: err.Error()}
		}
		gen = built
	}

	checker, ok := gen.(llm.HealthChecker)
	if !ok {
		return Result{Name: name, Passed: true, Detail: "API key set (not verified)"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := checker.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeLLMError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

func providerLabel(provider string) string {
	if provider == "" {
		return config.ProviderOpenRouter
	}
	return provider
}

// CheckNtfy verifies that the ntfy server hosting the topic answers its
// health endpoint.
func CheckNtfy(ctx context.Context, topicURL string) Result {
	const name = "ntfy"

	parsed, err := url.Parse(strings.TrimSpace(topicURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return Result{Name: name, Detail: fmt.Sprintf("invalid topic url %q", topicURL)}
	}
	healthURL := parsed.Scheme + "://" + parsed.Host + "/v1/health"

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, healthURL, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("health check failed (%v)", err)}
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("health check failed (%v)", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{Name: name, Detail: fmt.Sprintf("health check failed (%d)", resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckDocuments verifies that the configured review document backend can be
// constructed.
func CheckDocuments(cfg *config.Config) Result {
	name := "Documents (" + cfg.Documents.Backend + ")"
	if err := cfg.RequireDocuments(); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if cfg.Documents.Backend == config.DocumentsLocal {
		result := CheckDirectoryAccess(name, cfg.Documents.LocalDir)
		return result
	}
	return Result{Name: name, Passed: true, Detail: cfg.Documents.CredentialsFile}
}

// CheckFile verifies that a configuration file exists and is readable.
func CheckFile(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external binaries the enabled features shell
// out to. Transcript fallback tools are optional unless whisper is enabled.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "git",
			Command:     cfg.GitBinary(),
			Description: "Commits and pushes published artifacts",
			Optional:    !cfg.Publish.AutoCommit,
		},
	}
	whisperOptional := !cfg.Ingest.WhisperEnabled
	requirements = append(requirements,
		deps.Requirement{
			Name:        "yt-dlp",
			Command:     whisperx.YtDlpCommand,
			Description: "Downloads video audio for transcript fallback",
			Optional:    whisperOptional,
		},
		deps.Requirement{
			Name:        "FFmpeg",
			Command:     whisperx.FFmpegCommand,
			Description: "Converts downloaded audio for transcription",
			Optional:    whisperOptional,
		},
		deps.Requirement{
			Name:        "uvx",
			Command:     whisperx.UVXCommand,
			Description: "Runs WhisperX transcription",
			Optional:    whisperOptional,
		},
	)
	return deps.CheckBinaries(requirements)
}

// summarizeLLMError produces a human-readable summary for generation health failures.
func summarizeLLMError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (generation API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (generation API unreachable)"
	}
	return err.Error()
}
