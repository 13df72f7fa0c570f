package camera

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/pion/mediadevices"
	_ "github.com/pion/mediadevices/pkg/driver/camera" // Register the camera driver
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/prop"

	"github.com/rolfea/book-buddy/internal/application"
	"github.com/rolfea/book-buddy/internal/domain"
)

// MediaDevicesCamera implements application.Camera with pion/mediadevices
type MediaDevicesCamera struct {
	config domain.VideoConfig
	logger application.Logger
}

// NewMediaDevicesCamera creates a camera that opens streams with the given constraints
func NewMediaDevicesCamera(config domain.VideoConfig, logger application.Logger) *MediaDevicesCamera {
	return &MediaDevicesCamera{
		config: config,
		logger: logger,
	}
}

// Available reports whether any video input device is present
func (m *MediaDevicesCamera) Available() bool {
	for _, device := range mediadevices.EnumerateDevices() {
		if device.Kind == mediadevices.VideoInput {
			return true
		}
	}
	return false
}

// ListDevices returns the available capture devices
func (m *MediaDevicesCamera) ListDevices() ([]domain.VideoDevice, error) {
	devices := mediadevices.EnumerateDevices()
	result := make([]domain.VideoDevice, 0, len(devices))

	for _, device := range devices {
		result = append(result, domain.VideoDevice{
			ID:    device.DeviceID,
			Label: device.Label,
			Kind:  deviceKind(device.Kind),
		})
	}

	return result, nil
}

// Open opens the camera. Preferred constraints are tried first, then the
// device alone.
func (m *MediaDevicesCamera) Open(ctx context.Context) (application.StreamHandle, error) {
	constraints := mediadevices.MediaStreamConstraints{
		Video: func(c *mediadevices.MediaTrackConstraints) {
			if m.config.Width > 0 && m.config.Height > 0 {
				c.Width = prop.Int(int32(m.config.Width))
				c.Height = prop.Int(int32(m.config.Height))
			}
			if m.config.DeviceID != "" {
				c.DeviceID = prop.String(m.config.DeviceID)
			}
		},
	}

	stream, err := mediadevices.GetUserMedia(constraints)
	if err != nil {
		if denied(err) {
			return nil, domain.Wrap(domain.ErrPermissionDenied, err)
		}
		m.logger.Warn("Camera rejected preferred constraints: %v", err)
		m.logger.Info("Retrying with minimal constraints...")

		constraints = mediadevices.MediaStreamConstraints{
			Video: func(c *mediadevices.MediaTrackConstraints) {
				if m.config.DeviceID != "" {
					c.DeviceID = prop.String(m.config.DeviceID)
				}
			},
		}

		stream, err = mediadevices.GetUserMedia(constraints)
		if err != nil {
			if denied(err) {
				return nil, domain.Wrap(domain.ErrPermissionDenied, err)
			}
			return nil, domain.Wrap(domain.ErrDevice, fmt.Errorf("camera: get user media: %w", err))
		}
	}

	if ctx.Err() != nil {
		closeTracks(stream.GetTracks())
		return nil, ctx.Err()
	}

	tracks := stream.GetVideoTracks()
	if len(tracks) == 0 {
		closeTracks(stream.GetTracks())
		return nil, domain.Wrap(domain.ErrDevice, errors.New("camera: no video track"))
	}

	videoTrack, ok := tracks[0].(*mediadevices.VideoTrack)
	if !ok {
		closeTracks(stream.GetTracks())
		return nil, domain.Wrap(domain.ErrDevice, fmt.Errorf("camera: unexpected track type %T", tracks[0]))
	}

	m.logger.Info("Using camera track %s", videoTrack.ID())

	return &mediaStream{
		tracks: stream.GetTracks(),
		video: &mediaTrack{
			track:  videoTrack,
			reader: videoTrack.NewReader(true),
		},
	}, nil
}

// mediaStream is the live stream handle
type mediaStream struct {
	tracks []mediadevices.Track
	video  *mediaTrack

	once sync.Once
}

func (s *mediaStream) VideoTrack() application.VideoTrack {
	return s.video
}

func (s *mediaStream) OnEnded(f func(error)) {
	s.video.track.OnEnded(f)
}

// Stop closes every track of the stream once
func (s *mediaStream) Stop() error {
	var err error
	s.once.Do(func() {
		err = closeTracks(s.tracks)
	})
	return err
}

// mediaTrack grabs still frames from a video track
type mediaTrack struct {
	track  *mediadevices.VideoTrack
	reader video.Reader

	mu sync.Mutex
}

func (t *mediaTrack) ID() string {
	return t.track.ID()
}

// GrabFrame reads the next decoded frame. The frame carries the reader's
// release func.
func (t *mediaTrack) GrabFrame(ctx context.Context) (*domain.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	img, release, err := t.reader.Read()
	t.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("camera: read frame: %w", err)
	}

	return domain.NewFrame(img, release), nil
}

func closeTracks(tracks []mediadevices.Track) error {
	var errs []error
	for _, track := range tracks {
		if err := track.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// denied reports whether the OS refused access to the device
func denied(err error) bool {
	return errors.Is(err, os.ErrPermission) || strings.Contains(strings.ToLower(err.Error()), "permission denied")
}

func deviceKind(kind mediadevices.MediaDeviceType) string {
	switch kind {
	case mediadevices.VideoInput:
		return "videoinput"
	case mediadevices.AudioInput:
		return "audioinput"
	case mediadevices.AudioOutput:
		return "audiooutput"
	default:
		return "unknown"
	}
}
