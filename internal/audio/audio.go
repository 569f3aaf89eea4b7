package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	ffmpegbin "github.com/mgpai22/letra/internal/ffmpeg"
)

var (
	ErrUnsupported = errors.New("unsupported media file")
	ErrEmpty       = errors.New("audio file is empty")
)

// settings for audio compression
type CompressionOptions struct {
	Format     string // Output format (mp3, aac, etc.)
	SampleRate int    // Sample rate in Hz
	Channels   int    // Number of channels (1=mono, 2=stereo)
	Bitrate    string // Bitrate (e.g., "64k", "128k")
}

// defaults for lyric transcription; stereo keeps backing vocals audible
func DefaultCompressionOptions() CompressionOptions {
	return CompressionOptions{
		Format:     "mp3",
		SampleRate: 44100,
		Channels:   2,
		Bitrate:    "128k",
	}
}

type LoadOptions struct {
	// Transcode re-encodes the input to mp3 before it is sent anywhere.
	// Video inputs are always transcoded.
	Transcode   bool
	Compression CompressionOptions
}

// Asset is one selected piece of audio. It owns a scratch directory for
// transcoded or uploaded copies, released by Close.
type Asset struct {
	Name     string
	MIMEType string
	Data     []byte
	// Path is a playable copy on disk.
	Path string

	tempDir   string
	closeOnce sync.Once
	closeErr  error
}

func (a *Asset) Size() int {
	return len(a.Data)
}

// Close releases the scratch directory. Safe to call more than once.
func (a *Asset) Close() error {
	if a == nil {
		return nil
	}
	a.closeOnce.Do(func() {
		if a.tempDir != "" {
			a.closeErr = os.RemoveAll(a.tempDir)
		}
	})
	return a.closeErr
}

// Duration probes the on-disk copy with ffprobe.
func (a *Asset) Duration() (time.Duration, error) {
	if a.Path == "" {
		return 0, fmt.Errorf("asset %q has no file on disk", a.Name)
	}
	return GetDuration(a.Path)
}

// Load reads a media file from disk.
func Load(ctx context.Context, path string, opts LoadOptions) (*Asset, error) {
	if !IsMediaFile(path) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Base(path))
	}

	if !opts.Transcode && !IsVideoFile(path) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read audio file: %w", err)
		}
		if len(data) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrEmpty, filepath.Base(path))
		}
		return &Asset{
			Name:     filepath.Base(path),
			MIMEType: DetectMIMEType(path, data),
			Data:     data,
			Path:     path,
		}, nil
	}

	tempDir, err := os.MkdirTemp("", "letra-audio-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	asset, err := transcodeInto(ctx, tempDir, path, filepath.Base(path), opts)
	if err != nil {
		_ = os.RemoveAll(tempDir)
		return nil, err
	}
	return asset, nil
}

// FromBytes builds an asset from uploaded content. The bytes are written to
// a scratch file so ffmpeg and ffprobe can work on them.
func FromBytes(ctx context.Context, name string, data []byte, opts LoadOptions) (*Asset, error) {
	name = filepath.Base(name)
	if !IsMediaFile(name) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, name)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, name)
	}

	tempDir, err := os.MkdirTemp("", "letra-upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	srcPath := filepath.Join(tempDir, "source"+strings.ToLower(filepath.Ext(name)))
	if err := os.WriteFile(srcPath, data, 0600); err != nil {
		_ = os.RemoveAll(tempDir)
		return nil, fmt.Errorf("failed to write upload: %w", err)
	}

	if !opts.Transcode && !IsVideoFile(name) {
		return &Asset{
			Name:     name,
			MIMEType: DetectMIMEType(name, data),
			Data:     data,
			Path:     srcPath,
			tempDir:  tempDir,
		}, nil
	}

	asset, err := transcodeInto(ctx, tempDir, srcPath, name, opts)
	if err != nil {
		_ = os.RemoveAll(tempDir)
		return nil, err
	}
	return asset, nil
}

func transcodeInto(ctx context.Context, tempDir, inputPath, name string, opts LoadOptions) (*Asset, error) {
	compression := opts.Compression
	if compression.Format == "" {
		compression = DefaultCompressionOptions()
	}

	outPath := filepath.Join(tempDir, "transcoded."+compression.Format)
	if err := CompressAudio(ctx, inputPath, outPath, compression); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcoded audio: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: transcoding %s produced no output", ErrEmpty, name)
	}

	return &Asset{
		Name:     name,
		MIMEType: DetectMIMEType(outPath, data),
		Data:     data,
		Path:     outPath,
		tempDir:  tempDir,
	}, nil
}

// JSON output from ffprobe
type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// duration of an audio/video file
func GetDuration(filePath string) (time.Duration, error) {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return 0, fmt.Errorf("file not found: %s", filePath)
	}

	ffprobePath, err := ffmpegbin.FFprobePath()
	if err != nil {
		return 0, err
	}

	cmd := exec.Command(ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		filePath,
	)

	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseProbeDuration(out.Bytes())
}

func parseProbeDuration(raw []byte) (time.Duration, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(raw, &probe); err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	var seconds float64
	if _, err := fmt.Sscanf(probe.Format.Duration, "%f", &seconds); err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}

	return time.Duration(seconds * float64(time.Second)), nil
}

// re-encodes the input with the given options, dropping any video stream
func CompressAudio(
	ctx context.Context,
	inputPath, outputPath string,
	opts CompressionOptions,
) error {
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return fmt.Errorf("input file not found: %s", inputPath)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	ffmpegPath, err := ffmpegbin.FFmpegPath()
	if err != nil {
		return err
	}

	err = ffmpeg.Input(inputPath).
		Output(outputPath, compressionArgs(opts)).
		OverWriteOutput().
		SetFfmpegPath(ffmpegPath).
		Run()
	if err != nil {
		return fmt.Errorf("transcoding failed: %w", err)
	}

	return nil
}

func compressionArgs(opts CompressionOptions) ffmpeg.KwArgs {
	kwargs := ffmpeg.KwArgs{
		"vn": "", // no video
	}
	if opts.SampleRate > 0 {
		kwargs["ar"] = opts.SampleRate
	}
	if opts.Channels > 0 {
		kwargs["ac"] = opts.Channels
	}

	switch opts.Format {
	case "aac":
		kwargs["acodec"] = "aac"
	case "wav":
		kwargs["acodec"] = "pcm_s16le"
	default:
		kwargs["acodec"] = "libmp3lame"
	}
	if opts.Bitrate != "" && opts.Format != "wav" {
		kwargs["b:a"] = opts.Bitrate
	}

	return kwargs
}

var audioMIMETypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".aac":  "audio/aac",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".opus": "audio/ogg",
	".m4a":  "audio/mp4",
	".wma":  "audio/x-ms-wma",
	".aiff": "audio/aiff",
	".aif":  "audio/aiff",
}

var videoExts = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".webm": true,
	".m4v":  true,
	".mpeg": true,
	".mpg":  true,
}

// DetectMIMEType prefers the extension and falls back to content sniffing.
func DetectMIMEType(name string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(name))
	if mt, ok := audioMIMETypes[ext]; ok {
		return mt
	}
	if mt := mime.TypeByExtension(ext); strings.HasPrefix(mt, "audio/") {
		if base, _, err := mime.ParseMediaType(mt); err == nil {
			return base
		}
	}
	if len(data) > 0 {
		if mt := http.DetectContentType(data); strings.HasPrefix(mt, "audio/") {
			base, _, _ := mime.ParseMediaType(mt)
			return base
		}
	}
	return "application/octet-stream"
}

// checks if the file is a video based on extension
func IsVideoFile(path string) bool {
	return videoExts[strings.ToLower(filepath.Ext(path))]
}

// checks if the file is an audio file based on extension
func IsAudioFile(path string) bool {
	_, ok := audioMIMETypes[strings.ToLower(filepath.Ext(path))]
	return ok
}

// checks if the file is either audio or video
func IsMediaFile(path string) bool {
	return IsAudioFile(path) || IsVideoFile(path)
}
