package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
)

// Sample is one encoded media frame handed to a local track.
type Sample = pionmedia.Sample

// oggSampleRate is the clock rate Opus granule positions count in.
const oggSampleRate = 48000

// FileProvider feeds local tracks from pre-encoded capture files: VP8 in
// an IVF container for video, Opus in an Ogg container for audio. This is
// the terminal stand-in for camera/microphone capture; files loop until
// the stream stops.
type FileProvider struct {
	// AudioPath is an Ogg/Opus file. Empty means no microphone.
	AudioPath string
	// VideoPath is an IVF/VP8 file. Empty means no camera.
	VideoPath string
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Acquire opens the capture files and starts their sample pumps. A
// requested kind with no configured file yields ErrNoDevice; the caller
// surfaces it as a permission-style media fault.
func (p *FileProvider) Acquire(ctx context.Context, audio, video bool) (*Stream, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if (audio && p.AudioPath == "") || (video && p.VideoPath == "") {
		return nil, fmt.Errorf("%w: set --audio-file/--video-file or the DOJO_AUDIO_FILE/DOJO_VIDEO_FILE environment variables", ErrNoDevice)
	}
	if !audio && !video {
		return nil, fmt.Errorf("%w: nothing requested", ErrNoDevice)
	}

	// Validate the files up front so acquisition fails before any track
	// is attached anywhere.
	for _, path := range []string{p.AudioPath, p.VideoPath} {
		if path == "" {
			continue
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
		}
		f.Close()
	}

	stream, err := NewSilentStream(audio, video)
	if err != nil {
		return nil, fmt.Errorf("media: create tracks: %w", err)
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	stream.cancel = cancel

	if audio {
		go p.pumpAudio(pumpCtx, stream.TrackOfKind(KindAudio), logger)
	}
	if video {
		go p.pumpVideo(pumpCtx, stream.TrackOfKind(KindVideo), logger)
	}

	_ = ctx // acquisition itself is synchronous once files are validated
	return stream, nil
}

// pumpVideo reads IVF frames and writes them at the container's timebase,
// reopening the file at EOF so the capture loops.
func (p *FileProvider) pumpVideo(ctx context.Context, track *Track, logger *slog.Logger) {
	for {
		file, err := os.Open(p.VideoPath)
		if err != nil {
			logger.Warn("video capture file unavailable", "path", p.VideoPath, "error", err)
			return
		}

		reader, header, err := ivfreader.NewWith(file)
		if err != nil {
			logger.Warn("invalid IVF capture file", "path", p.VideoPath, "error", err)
			file.Close()
			return
		}

		frameDuration := time.Duration(
			float64(header.TimebaseNumerator) / float64(header.TimebaseDenominator) * float64(time.Second))
		ticker := time.NewTicker(frameDuration)

		for {
			frame, _, err := reader.ParseNextFrame()
			if err == io.EOF {
				break
			}
			if err != nil {
				logger.Warn("video frame parse failed", "error", err)
				break
			}

			if err := track.WriteSample(Sample{Data: frame, Duration: frameDuration}); err != nil {
				logger.Debug("video sample write failed", "error", err)
			}

			select {
			case <-ctx.Done():
				ticker.Stop()
				file.Close()
				return
			case <-ticker.C:
			}
		}

		ticker.Stop()
		file.Close()

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// pumpAudio reads Ogg pages and paces them by granule position,
// reopening the file at EOF so the capture loops.
func (p *FileProvider) pumpAudio(ctx context.Context, track *Track, logger *slog.Logger) {
	for {
		file, err := os.Open(p.AudioPath)
		if err != nil {
			logger.Warn("audio capture file unavailable", "path", p.AudioPath, "error", err)
			return
		}

		reader, _, err := oggreader.NewWith(file)
		if err != nil {
			logger.Warn("invalid Ogg capture file", "path", p.AudioPath, "error", err)
			file.Close()
			return
		}

		var lastGranule uint64
		for {
			page, pageHeader, err := reader.ParseNextPage()
			if err == io.EOF {
				break
			}
			if err != nil {
				logger.Warn("audio page parse failed", "error", err)
				break
			}

			sampleCount := pageHeader.GranulePosition - lastGranule
			lastGranule = pageHeader.GranulePosition
			pageDuration := time.Duration(sampleCount) * time.Second / oggSampleRate

			if err := track.WriteSample(Sample{Data: page, Duration: pageDuration}); err != nil {
				logger.Debug("audio sample write failed", "error", err)
			}

			select {
			case <-ctx.Done():
				file.Close()
				return
			case <-time.After(pageDuration):
			}
		}

		file.Close()

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}
