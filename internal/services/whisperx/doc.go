// Package whisperx transcribes videos that have no published captions.
//
// The fallback downloads the audio track with yt-dlp, normalises it to mono
// 16kHz WAV with ffmpeg (arguments built by ffmpeg-go), and runs WhisperX
// through uvx. All three tools run through a replaceable command runner.
package whisperx
