package media

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/core/coretest"
	"github.com/dkeye/Meet/internal/core/mocks"
	"github.com/dkeye/Meet/internal/domain"
)

func newController(t *testing.T) (*Controller, *mocks.MockCapturer) {
	t.Helper()
	capturer := mocks.NewMockCapturer(gomock.NewController(t))
	return NewController(capturer), capturer
}

func withCamera(t *testing.T) (*Controller, *mocks.MockCapturer, *coretest.Track, *coretest.Track) {
	t.Helper()
	c, capturer := newController(t)
	video, audio := coretest.Camera()
	capturer.EXPECT().UserMedia(gomock.Any()).Return(coretest.AsTracks(video, audio), nil)
	require.NoError(t, c.AcquireCamera(context.Background()))
	return c, capturer, video, audio
}

func TestAcquireCamera(t *testing.T) {
	c, _, video, audio := withCamera(t)

	assert.Equal(t, domain.MediaState{ActiveSource: domain.SourceCamera, VideoEnabled: true, AudioEnabled: true}, c.State())
	assert.True(t, video.Enabled())
	assert.True(t, audio.Enabled())

	s := c.Stream()
	require.NotNil(t, s)
	assert.Equal(t, domain.SourceCamera, s.Source)
	assert.Len(t, s.Tracks, 2)
	assert.True(t, s.HasVideo())

	// a second call keeps the existing source
	require.NoError(t, c.AcquireCamera(context.Background()))
	assert.Equal(t, 2, coretest.LiveCount(video, audio))
}

func TestAcquireCamera_denied(t *testing.T) {
	c, capturer := newController(t)
	capturer.EXPECT().UserMedia(gomock.Any()).Return(nil, fmt.Errorf("getUserMedia: %w", domain.ErrPermissionDenied))

	err := c.AcquireCamera(context.Background())
	require.ErrorIs(t, err, domain.ErrPermissionDenied)
	assert.Equal(t, domain.MediaState{}, c.State())
	assert.Nil(t, c.Stream())
	assert.False(t, c.Stream().HasVideo())
}

func TestToggles_lastValueWinsAndNeverStopTracks(t *testing.T) {
	c, _, video, audio := withCamera(t)

	rng := rand.New(rand.NewSource(7))
	wantVideo, wantAudio := true, true
	for i := 0; i < 500; i++ {
		v := rng.Intn(2) == 0
		if rng.Intn(2) == 0 {
			c.SetVideoEnabled(v)
			wantVideo = v
		} else {
			c.SetMicEnabled(v)
			wantAudio = v
		}
		st := c.State()
		require.Equal(t, wantVideo, st.VideoEnabled)
		require.Equal(t, wantAudio, st.AudioEnabled)
	}
	assert.Equal(t, wantVideo, video.Enabled())
	assert.Equal(t, wantAudio, audio.Enabled())
	assert.Zero(t, video.Stops())
	assert.Zero(t, audio.Stops())
}

func TestToggles_noSource(t *testing.T) {
	c, _ := newController(t)
	c.SetVideoEnabled(true)
	c.SetMicEnabled(true)
	assert.Equal(t, domain.MediaState{}, c.State())
}

func TestToggle_concurrentFlipsAreNotLost(t *testing.T) {
	c, _, video, audio := withCamera(t)

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(2)
		go func() { defer wg.Done(); assert.True(t, c.ToggleVideo()) }()
		go func() { defer wg.Done(); assert.True(t, c.ToggleMic()) }()
	}
	wg.Wait()

	// an even number of flips lands back where it started
	assert.Equal(t, domain.MediaState{ActiveSource: domain.SourceCamera, VideoEnabled: true, AudioEnabled: true}, c.State())
	assert.True(t, video.Enabled())
	assert.True(t, audio.Enabled())

	assert.True(t, c.ToggleVideo())
	assert.False(t, c.State().VideoEnabled)
	assert.False(t, video.Enabled())
}

func TestToggle_noSource(t *testing.T) {
	c, _ := newController(t)
	assert.False(t, c.ToggleVideo())
	assert.False(t, c.ToggleMic())
	assert.Equal(t, domain.MediaState{}, c.State())
}

func TestScreenShare_roundTripRestoresCamera(t *testing.T) {
	c, capturer, video, audio := withCamera(t)
	c.SetVideoEnabled(false)

	screen := coretest.NewTrack(core.TrackVideo)
	capturer.EXPECT().DisplayMedia(gomock.Any()).Return(coretest.AsTracks(screen), nil)
	require.NoError(t, c.StartScreenShare(context.Background()))

	assert.Equal(t, domain.SourceScreen, c.State().ActiveSource)
	assert.True(t, c.State().VideoEnabled)
	assert.False(t, c.State().AudioEnabled)
	assert.Zero(t, coretest.LiveCount(video, audio))

	video2, audio2 := coretest.Camera()
	capturer.EXPECT().UserMedia(gomock.Any()).Return(coretest.AsTracks(video2, audio2), nil)
	require.NoError(t, c.StopScreenShare(context.Background()))

	assert.Equal(t, domain.MediaState{ActiveSource: domain.SourceCamera, VideoEnabled: false, AudioEnabled: true}, c.State())
	assert.False(t, video2.Enabled())
	assert.True(t, audio2.Enabled())
	assert.False(t, screen.Live())
	assert.Equal(t, 2, coretest.LiveCount(video, audio, screen, video2, audio2))
}

func TestStartScreenShare_cancelledKeepsCamera(t *testing.T) {
	c, capturer, video, audio := withCamera(t)
	capturer.EXPECT().DisplayMedia(gomock.Any()).Return(nil, fmt.Errorf("picker: %w", domain.ErrDeviceUnavailable))

	err := c.StartScreenShare(context.Background())
	require.ErrorIs(t, err, domain.ErrDeviceUnavailable)
	assert.Equal(t, domain.SourceCamera, c.State().ActiveSource)
	assert.Equal(t, 2, coretest.LiveCount(video, audio))
}

func TestStopScreenShare_reacquireFails(t *testing.T) {
	c, capturer, _, _ := withCamera(t)
	screen := coretest.NewTrack(core.TrackVideo)
	capturer.EXPECT().DisplayMedia(gomock.Any()).Return(coretest.AsTracks(screen), nil)
	require.NoError(t, c.StartScreenShare(context.Background()))

	capturer.EXPECT().UserMedia(gomock.Any()).Return(nil, domain.ErrDeviceUnavailable)
	err := c.StopScreenShare(context.Background())
	require.ErrorIs(t, err, domain.ErrDeviceUnavailable)
	assert.Equal(t, domain.MediaState{}, c.State())
	assert.False(t, screen.Live())
}

func TestStopScreenShare_notSharing(t *testing.T) {
	c, _, video, _ := withCamera(t)
	require.NoError(t, c.StopScreenShare(context.Background()))
	assert.True(t, video.Live())
}

func TestRelease(t *testing.T) {
	c, _, video, audio := withCamera(t)
	c.Release()
	assert.Zero(t, coretest.LiveCount(video, audio))
	assert.Equal(t, domain.MediaState{}, c.State())
	c.Release()
}

func TestRelease_midAcquisition(t *testing.T) {
	c, capturer := newController(t)
	video, audio := coretest.Camera()
	started := make(chan struct{})
	unblock := make(chan struct{})
	capturer.EXPECT().UserMedia(gomock.Any()).DoAndReturn(func(context.Context) ([]core.Track, error) {
		close(started)
		<-unblock
		return coretest.AsTracks(video, audio), nil
	})

	errc := make(chan error, 1)
	go func() { errc <- c.AcquireCamera(context.Background()) }()
	<-started
	c.Release()
	close(unblock)

	select {
	case err := <-errc:
		require.ErrorIs(t, err, ErrAbandoned)
	case <-time.After(time.Second):
		t.Fatal("acquisition did not return")
	}
	assert.Zero(t, coretest.LiveCount(video, audio))
	assert.Equal(t, domain.SourceNone, c.State().ActiveSource)
}

func TestDeviceEnded_camera(t *testing.T) {
	c, _, video, audio := withCamera(t)
	events := make(chan Event, 1)
	c.OnEvent(func(ev Event) { events <- ev })

	video.End(fmt.Errorf("unplugged"))

	ev := <-events
	require.ErrorIs(t, ev.Err, domain.ErrDeviceUnavailable)
	assert.Equal(t, domain.SourceNone, ev.State.ActiveSource)
	assert.False(t, audio.Live())
}

func TestDeviceEnded_screenRevertsToCamera(t *testing.T) {
	c, capturer, _, _ := withCamera(t)
	screen := coretest.NewTrack(core.TrackVideo)
	capturer.EXPECT().DisplayMedia(gomock.Any()).Return(coretest.AsTracks(screen), nil)
	require.NoError(t, c.StartScreenShare(context.Background()))

	video2, audio2 := coretest.Camera()
	capturer.EXPECT().UserMedia(gomock.Any()).Return(coretest.AsTracks(video2, audio2), nil)
	events := make(chan Event, 1)
	c.OnEvent(func(ev Event) { events <- ev })

	screen.End(fmt.Errorf("sharing stopped by system"))

	select {
	case ev := <-events:
		require.NoError(t, ev.Err)
		assert.Equal(t, domain.SourceCamera, ev.State.ActiveSource)
	case <-time.After(time.Second):
		t.Fatal("no event after screen ended")
	}
	assert.Equal(t, 2, coretest.LiveCount(video2, audio2))
}
