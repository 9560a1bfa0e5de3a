package transcription

// assumedBytesPerSecond approximates meeting recordings encoded at
// 128 kbit/s, the rate the upload pipeline produces.
const assumedBytesPerSecond = 16000

// ApproxDurationFromSize estimates audio duration in seconds from the file
// size alone, for assets whose duration was never probed. It is a coarse
// approximation (bytes divided by an assumed bitrate) and must never be
// blended with a provider-reported duration; callers pick one or the other.
func ApproxDurationFromSize(sizeBytes int64) float64 {
	if sizeBytes <= 0 {
		return 0
	}
	return float64(sizeBytes) / assumedBytesPerSecond
}
