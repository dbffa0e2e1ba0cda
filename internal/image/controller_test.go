package image

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFullPromptJoinsSuffixes(t *testing.T) {
	req := Request{Prompt: "a cat", StyleSuffix: "charcoal sketch", BackgroundSuffix: "on white"}
	require.Equal(t, "a cat. charcoal sketch. on white", req.FullPrompt())

	req.BackgroundSuffix = ""
	require.Equal(t, "a cat. charcoal sketch. ", req.FullPrompt())
}

func TestGenerateEmptyPromptIsNoop(t *testing.T) {
	calls := 0
	ctrl := NewController(nil, GeneratorFunc(func(context.Context, Request) (string, error) {
		calls++
		return "data:image/png;base64,AA==", nil
	}))

	require.NoError(t, ctrl.Generate(context.Background(), "   ", "", "", ""))
	require.Zero(t, calls)
	require.Equal(t, State{}, ctrl.State())
}

func TestGenerateClearsPriorResultBeforeRequest(t *testing.T) {
	var seenDuringCall State
	var ctrl *Controller
	ctrl = NewController(nil, GeneratorFunc(func(_ context.Context, req Request) (string, error) {
		seenDuringCall = ctrl.State()
		require.Equal(t, "a cat. charcoal sketch, hand drawn, artistic, textured paper. with a blurry urban city background", req.FullPrompt())
		require.Equal(t, "16:9", req.AspectRatio)
		return "data:image/png;base64,bmV3", nil
	}))
	ctrl.state.Result = "data:image/png;base64,b2xk"

	require.NoError(t, ctrl.Generate(context.Background(), "a cat", "sketch", "city", "16:9"))

	require.True(t, seenDuringCall.Generating)
	require.Empty(t, seenDuringCall.Result)
	final := ctrl.State()
	require.False(t, final.Generating)
	require.Equal(t, "data:image/png;base64,bmV3", final.Result)
}

func TestGenerateClearsFlagOnEveryOutcome(t *testing.T) {
	tests := []struct {
		name   string
		result string
		err    error
	}{
		{name: "failure", err: errors.New("quota")},
		{name: "no image"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := NewController(nil, GeneratorFunc(func(context.Context, Request) (string, error) {
				return tc.result, tc.err
			}))
			ctrl.state.Result = "data:image/png;base64,b2xk"

			require.NoError(t, ctrl.Generate(context.Background(), "a cat", "", "", ""))

			state := ctrl.State()
			require.False(t, state.Generating)
			require.Empty(t, state.Result)
		})
	}
}

func TestGenerateRejectsUnknownSelections(t *testing.T) {
	ctrl := NewController(nil, nil)

	require.ErrorIs(t, ctrl.Generate(context.Background(), "x", "oil", "", ""), ErrUnknownStyle)
	require.ErrorIs(t, ctrl.Generate(context.Background(), "x", "", "space", ""), ErrUnknownBackground)
	require.ErrorIs(t, ctrl.Generate(context.Background(), "x", "", "", "2:1"), ErrUnknownAspectRatio)
	require.False(t, ctrl.State().Generating)
}

func TestGenerateNotifiesChanges(t *testing.T) {
	ctrl := NewController(nil, GeneratorFunc(func(context.Context, Request) (string, error) {
		return "data:image/png;base64,AA==", nil
	}))
	var changes []State
	ctrl.OnChange(func(s State) { changes = append(changes, s) })

	require.NoError(t, ctrl.Generate(context.Background(), "a cat", "", "", ""))

	require.Len(t, changes, 3)
	require.True(t, changes[0].Generating)
	require.Equal(t, "data:image/png;base64,AA==", changes[1].Result)
	require.False(t, changes[2].Generating)
}

type gatedGenerator struct {
	mu      sync.Mutex
	entered map[string]chan struct{}
	release map[string]chan struct{}
}

func newGatedGenerator(prompts ...string) *gatedGenerator {
	g := &gatedGenerator{entered: map[string]chan struct{}{}, release: map[string]chan struct{}{}}
	for _, p := range prompts {
		g.entered[p] = make(chan struct{})
		g.release[p] = make(chan struct{})
	}
	return g
}

func (g *gatedGenerator) GenerateImage(ctx context.Context, req Request) (string, error) {
	g.mu.Lock()
	entered, release := g.entered[req.Prompt], g.release[req.Prompt]
	g.mu.Unlock()

	close(entered)
	select {
	case <-release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return EncodeDataURI("image/png", []byte(req.Prompt)), nil
}

func TestGenerateOverlapKeepsLatestRequest(t *testing.T) {
	gen := newGatedGenerator("first", "second")
	ctrl := NewController(nil, gen)

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		_ = ctrl.Generate(context.Background(), "first", "", "", "")
	}()
	<-gen.entered["first"]

	secondDone := make(chan struct{})
	go func() {
		defer close(secondDone)
		_ = ctrl.Generate(context.Background(), "second", "", "", "")
	}()
	<-gen.entered["second"]

	close(gen.release["first"])
	<-firstDone

	state := ctrl.State()
	require.True(t, state.Generating)
	require.Empty(t, state.Result)
	require.Equal(t, "second", state.Prompt)

	close(gen.release["second"])
	<-secondDone

	state = ctrl.State()
	require.False(t, state.Generating)
	require.Equal(t, "second", state.Prompt)
	require.Equal(t, EncodeDataURI("image/png", []byte("second")), state.Result)
}

func TestClearAbandonsGenerationInFlight(t *testing.T) {
	gen := newGatedGenerator("a cat")
	ctrl := NewController(nil, gen)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = ctrl.Generate(context.Background(), "a cat", "", "", "")
	}()
	<-gen.entered["a cat"]

	ctrl.Clear()
	require.Equal(t, State{}, ctrl.State())

	close(gen.release["a cat"])
	<-done
	require.Equal(t, State{}, ctrl.State())
}

func TestDataURIRoundTrip(t *testing.T) {
	uri := EncodeDataURI("image/png", []byte("png-bytes"))
	require.Equal(t, "data:image/png;base64,cG5nLWJ5dGVz", uri)

	mime, data, err := DecodeDataURI(uri)
	require.NoError(t, err)
	require.Equal(t, "image/png", mime)
	require.Equal(t, []byte("png-bytes"), data)

	_, _, err = DecodeDataURI("https://example.com/x.png")
	require.ErrorIs(t, err, ErrNotDataURI)
}

func TestCatalogDefaults(t *testing.T) {
	style, err := LookupStyle("")
	require.NoError(t, err)
	require.Equal(t, "realistic", style.ID)

	bg, err := LookupBackground("")
	require.NoError(t, err)
	require.Empty(t, bg.Suffix)

	ratio, err := ValidateAspectRatio("")
	require.NoError(t, err)
	require.Equal(t, "1:1", ratio)

	require.Len(t, Styles(), 6)
	require.Len(t, Backgrounds(), 6)
	require.Equal(t, []string{"1:1", "16:9", "9:16", "4:3"}, AspectRatios())
}

func TestBuildRequestResolvesDefaults(t *testing.T) {
	req, err := BuildRequest("  a red fox ", "", "", "")
	require.NoError(t, err)
	require.Equal(t, "a red fox", req.Prompt)
	require.Equal(t, "1:1", req.AspectRatio)
	require.Contains(t, req.StyleSuffix, "photorealistic")
	require.Empty(t, req.BackgroundSuffix)

	_, err = BuildRequest("fox", "anime", "moon", "")
	require.ErrorIs(t, err, ErrUnknownBackground)
}
