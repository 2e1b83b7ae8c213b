//go:build js && wasm

package main

import (
	"errors"
	"fmt"
	"syscall/js"

	"github.com/himanishpuri/VoiceGate/pkg/voicegate/audio"
	"github.com/himanishpuri/VoiceGate/pkg/voicegate/features"
	"github.com/himanishpuri/VoiceGate/pkg/voicegate/liveness"
)

// Error codes returned to JavaScript
const (
	ErrorNone = iota
	ErrorInvalidArgs
	ErrorProcessing
	ErrorInvalidAudio
	ErrorDegenerateAudio
)

var (
	detector  *liveness.Detector
	extractor *features.Extractor
)

// readBuffer converts (audioArray, sampleRate, channels) into a mono Buffer.
// On failure it returns a ready error response.
func readBuffer(args []js.Value) (audio.Buffer, js.Value, bool) {
	if len(args) < 3 {
		return audio.Buffer{}, makeErrorResponse(ErrorInvalidArgs, "Expected 3 arguments: audioArray, sampleRate, channels"), false
	}

	audioDataJS := args[0]
	sampleRateJS := args[1]
	channelsJS := args[2]

	if audioDataJS.Type() != js.TypeObject {
		return audio.Buffer{}, makeErrorResponse(ErrorInvalidArgs, "audioArray must be an Array or Float32Array"), false
	}
	if sampleRateJS.Type() != js.TypeNumber {
		return audio.Buffer{}, makeErrorResponse(ErrorInvalidArgs, "sampleRate must be a number"), false
	}
	if channelsJS.Type() != js.TypeNumber {
		return audio.Buffer{}, makeErrorResponse(ErrorInvalidArgs, "channels must be a number"), false
	}

	sampleRate := sampleRateJS.Int()
	channels := channelsJS.Int()

	if sampleRate <= 0 {
		return audio.Buffer{}, makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("Invalid sample rate: %d", sampleRate)), false
	}
	if channels < 1 || channels > 2 {
		return audio.Buffer{}, makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("Channels must be 1 (mono) or 2 (stereo), got: %d", channels)), false
	}

	length := audioDataJS.Length()
	if length == 0 {
		return audio.Buffer{}, makeErrorResponse(ErrorInvalidArgs, "audioArray is empty"), false
	}

	samples := make([]float64, length)
	for i := 0; i < length; i++ {
		val := audioDataJS.Index(i)
		if val.Type() != js.TypeNumber {
			return audio.Buffer{}, makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("audioArray element %d is not a number", i)), false
		}
		samples[i] = val.Float()
	}

	if channels == 2 {
		samples = stereoToMono(samples)
	}
	return audio.Buffer{Samples: samples, SampleRate: sampleRate}, js.Undefined(), true
}

func errorCode(err error) int {
	switch {
	case errors.Is(err, audio.ErrInvalidAudio):
		return ErrorInvalidAudio
	case errors.Is(err, features.ErrDegenerateAudio):
		return ErrorDegenerateAudio
	default:
		return ErrorProcessing
	}
}

// checkLiveness lets a page reject silent or synthetic recordings before
// uploading them.
// Returns: {error: number, data: {live, reason, zeroCrossingRate, energy, frames} | string}
func checkLiveness(this js.Value, args []js.Value) any {
	buf, errResp, ok := readBuffer(args)
	if !ok {
		return errResp
	}

	report, err := detector.Check(buf)
	if err != nil {
		return makeErrorResponse(errorCode(err), err.Error())
	}

	data := js.Global().Get("Object").New()
	data.Set("live", report.Live)
	data.Set("reason", string(report.Reason))
	data.Set("zeroCrossingRate", report.ZeroCrossingRate)
	data.Set("energy", report.Energy)
	data.Set("frames", report.Frames)

	result := js.Global().Get("Object").New()
	result.Set("error", ErrorNone)
	result.Set("data", data)
	return result
}

// extractFeatures returns the normalized MFCC frames of a recording.
// Returns: {error: number, data: number[][] | string}
func extractFeatures(this js.Value, args []js.Value) any {
	buf, errResp, ok := readBuffer(args)
	if !ok {
		return errResp
	}

	seq, err := extractor.Extract(buf)
	if err != nil {
		return makeErrorResponse(errorCode(err), err.Error())
	}

	frames := js.Global().Get("Array").New()
	for i := 0; i < seq.Len(); i++ {
		frame := js.Global().Get("Array").New()
		for j, v := range seq.At(i) {
			frame.SetIndex(j, v)
		}
		frames.SetIndex(i, frame)
	}

	result := js.Global().Get("Object").New()
	result.Set("error", ErrorNone)
	result.Set("data", frames)
	return result
}

func stereoToMono(stereo []float64) []float64 {
	if len(stereo)%2 != 0 {
		stereo = stereo[:len(stereo)-1]
	}

	monoLength := len(stereo) / 2
	mono := make([]float64, monoLength)

	for i := 0; i < monoLength; i++ {
		mono[i] = (stereo[i*2] + stereo[i*2+1]) / 2.0
	}

	return mono
}

func makeErrorResponse(errorCode int, message string) js.Value {
	result := js.Global().Get("Object").New()
	result.Set("error", errorCode)
	result.Set("data", message)
	return result
}

func main() {
	console := js.Global().Get("console")
	logf := func(method, msg string) {
		if !console.IsUndefined() {
			console.Call(method, msg)
		}
	}
	logf("log", "🔧 VoiceGate WASM module initializing...")

	var err error
	if detector, err = liveness.NewDetector(liveness.DefaultConfig()); err != nil {
		logf("error", "❌ liveness detector: "+err.Error())
		return
	}
	if extractor, err = features.NewExtractor(features.DefaultConfig()); err != nil {
		logf("error", "❌ feature extractor: "+err.Error())
		return
	}

	done := make(chan struct{})

	js.Global().Set("voicegateCheckLiveness", js.FuncOf(checkLiveness))
	js.Global().Set("voicegateExtractFeatures", js.FuncOf(extractFeatures))
	logf("log", "📝 voicegateCheckLiveness and voicegateExtractFeatures registered")

	window := js.Global().Get("window")
	if !window.IsUndefined() {
		eventInit := js.Global().Get("Object").New()
		event := js.Global().Get("CustomEvent").New("wasmReady", eventInit)
		window.Call("dispatchEvent", event)
		logf("log", "✅ wasmReady event dispatched")
	} else {
		logf("error", "❌ window object is undefined!")
	}

	<-done
}
