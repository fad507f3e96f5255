// Package decode implements the audio decoder collaborator (C7): turning an
// uploaded file of an accepted container type into a mono PCM stream
// resampled to the fingerprint engine's fixed sample rate.
package decode

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"

	"github.com/tefkah-labs/fingerprint-engine/apperrors"
)

// acceptedExtensions is the set of containers the decoder will attempt,
// per the fingerprint contract's audio decoder interface.
var acceptedExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".flac": true,
}

// Decoder decodes audio files into mono PCM at a fixed target sample rate.
// FFmpegBin names the executable used to normalize containers neither the
// WAV nor MP3 path can read natively (.m4a, .flac).
type Decoder struct {
	FFmpegBin string
}

// New constructs a Decoder that shells out to ffmpegBin for containers it
// cannot parse natively.
func New(ffmpegBin string) *Decoder {
	return &Decoder{FFmpegBin: ffmpegBin}
}

// Decode reads path, downmixes to mono, and resamples to targetSR, returning
// the PCM vector and the file's own sample rate before resampling.
// Unrecognized extensions fail fast with UnsupportedFormat before any file
// I/O beyond the extension check itself.
func (d *Decoder) Decode(ctx context.Context, path string, targetSR int) (pcm []float64, sourceSR int, err error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !acceptedExtensions[ext] {
		return nil, 0, apperrors.UnsupportedFormatf("unsupported audio extension %q", ext)
	}

	workPath := path
	switch ext {
	case ".m4a", ".flac":
		converted, convErr := d.normalizeToWAV(ctx, path)
		if convErr != nil {
			return nil, 0, convErr
		}
		defer os.Remove(converted)
		workPath, ext = converted, ".wav"
	}

	switch ext {
	case ".wav":
		pcm, sourceSR, err = decodeWAV(workPath)
	case ".mp3":
		pcm, sourceSR, err = decodeMP3(workPath)
	}
	if err != nil {
		return nil, 0, err
	}

	if sourceSR != targetSR {
		pcm = resample(pcm, sourceSR, targetSR)
	}

	return pcm, sourceSR, nil
}

func decodeWAV(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, apperrors.Wrap(apperrors.DecodeFailure, "open wav file", err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, 0, apperrors.New(apperrors.DecodeFailure, "not a valid wav file")
	}

	format := decoder.Format()
	sampleRate := int(format.SampleRate)

	buffer := &audio.IntBuffer{
		Data:   make([]int, 8192),
		Format: format,
	}

	var samples []int
	for {
		n, err := decoder.PCMBuffer(buffer)
		if err != nil && err != io.EOF {
			return nil, 0, apperrors.Wrap(apperrors.DecodeFailure, "read wav pcm", err)
		}
		samples = append(samples, buffer.Data[:n]...)
		if err == io.EOF || n < len(buffer.Data) {
			break
		}
	}

	pcm := intsToMonoFloat64(samples, int(format.NumChannels))
	return pcm, sampleRate, nil
}

func decodeMP3(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, apperrors.Wrap(apperrors.DecodeFailure, "open mp3 file", err)
	}
	defer f.Close()

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, 0, apperrors.Wrap(apperrors.DecodeFailure, "initialize mp3 decoder", err)
	}

	sampleRate := decoder.SampleRate()

	raw, err := io.ReadAll(decoder)
	if err != nil {
		return nil, 0, apperrors.Wrap(apperrors.DecodeFailure, "read mp3 pcm", err)
	}

	// go-mp3 always emits 16-bit little-endian stereo.
	nSamples := len(raw) / 2
	samples := make([]int, nSamples)
	for i := 0; i < nSamples; i++ {
		lo, hi := raw[2*i], raw[2*i+1]
		samples[i] = int(int16(uint16(lo) | uint16(hi)<<8))
	}

	pcm := intsToMonoFloat64(samples, 2)
	return pcm, sampleRate, nil
}

// intsToMonoFloat64 downmixes interleaved integer PCM samples to mono by
// channel averaging and normalizes to [-1, 1], treating the input as 16-bit
// signed range.
func intsToMonoFloat64(samples []int, channels int) []float64 {
	if channels < 1 {
		channels = 1
	}
	n := len(samples) / channels
	out := make([]float64, n)

	for i := 0; i < n; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(samples[i*channels+c])
		}
		out[i] = (sum / float64(channels)) / 32768.0
	}

	return out
}

// resample performs linear interpolation resampling, sufficient for
// landmark extraction which depends only on STFT bin alignment, not
// high-fidelity audio reconstruction.
func resample(pcm []float64, sourceSR, targetSR int) []float64 {
	if sourceSR <= 0 || targetSR <= 0 || len(pcm) == 0 {
		return pcm
	}

	ratio := float64(sourceSR) / float64(targetSR)
	outLen := int(float64(len(pcm)) / ratio)
	out := make([]float64, outLen)

	for i := range out {
		srcPos := float64(i) * ratio
		idx := int(srcPos)
		frac := srcPos - float64(idx)

		if idx+1 < len(pcm) {
			out[i] = pcm[idx]*(1-frac) + pcm[idx+1]*frac
		} else if idx < len(pcm) {
			out[i] = pcm[idx]
		}
	}

	return out
}

// normalizeToWAV shells out to ffmpeg to convert an .m4a or .flac input to a
// temporary mono 16-bit PCM WAV file, since neither native decoder reads
// those formats. The caller is responsible for removing the returned path.
func (d *Decoder) normalizeToWAV(ctx context.Context, path string) (string, error) {
	if _, err := exec.LookPath(d.FFmpegBin); err != nil {
		return "", apperrors.Wrap(apperrors.DecodeFailure, d.FFmpegBin+" not found on PATH", err)
	}

	out := path + ".normalized.wav"
	cmd := exec.CommandContext(ctx, d.FFmpegBin,
		"-y", "-i", path,
		"-c", "pcm_s16le",
		"-ac", "1",
		out,
	)

	if output, err := cmd.CombinedOutput(); err != nil {
		return "", apperrors.Wrap(apperrors.DecodeFailure, "ffmpeg normalize: "+string(output), err)
	}

	return out, nil
}
