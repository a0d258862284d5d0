package audioio

import "math"

// Downsample reduces samples from inRate to outRate by averaging the input
// samples that fall into each output slot. Equal rates return samples
// unchanged (the same slice). When outRate is above inRate it falls back
// to linear interpolation, since averaging cannot create samples.
func Downsample(samples []float32, inRate, outRate int) []float32 {
	if inRate == outRate || inRate <= 0 || outRate <= 0 {
		return samples
	}
	if outRate > inRate {
		return Resample(samples, inRate, outRate)
	}

	ratio := float64(inRate) / float64(outRate)
	n := int(math.Round(float64(len(samples)) / ratio))
	result := make([]float32, n)

	offset := 0
	for i := range result {
		next := int(math.Round(float64(i+1) * ratio))
		end := min(next, len(samples))

		var sum float64
		count := 0
		for j := offset; j < end; j++ {
			sum += float64(samples[j])
			count++
		}
		if count > 0 {
			result[i] = float32(sum / float64(count))
		}
		offset = next
	}

	return result
}

// Resample converts audio from one sample rate to another using linear interpolation.
// This is a simple resampler suitable for speech audio.
func Resample(samples []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate || len(samples) == 0 {
		return samples
	}

	ratio := float64(fromRate) / float64(toRate)
	newLen := int(float64(len(samples)) / ratio)
	result := make([]float32, newLen)

	for i := range result {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := float32(srcPos - float64(srcIdx))

		if srcIdx >= len(samples)-1 {
			result[i] = samples[len(samples)-1]
		} else {
			s1 := samples[srcIdx]
			s2 := samples[srcIdx+1]
			result[i] = s1 + frac*(s2-s1)
		}
	}

	return result
}

// Downmix averages interleaved frames of the given channel count into mono.
// Mono input is returned unchanged.
func Downmix(interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		return interleaved
	}
	mono := make([]float32, len(interleaved)/channels)
	for i := range mono {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += interleaved[i*channels+c]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}

// CalculateRMS calculates the root mean square of samples in [0, 1].
func CalculateRMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
