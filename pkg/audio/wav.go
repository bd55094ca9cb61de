package audio

import (
	"bytes"
	"encoding/binary"
)

// Codec identifies an output audio codec reported by the inference session.
type Codec string

const (
	CodecPCM16  Codec = "pcm16"
	CodecULaw   Codec = "g711_ulaw"
	CodecMP3    Codec = "mp3"
	CodecOpus   Codec = "opus"
	CodecUnknown Codec = ""
)

// Extension returns the artifact file extension for a codec, per the TTS
// artifact filesystem layout table.
func (c Codec) Extension() string {
	switch c {
	case CodecPCM16:
		return ".wav"
	case CodecULaw:
		return ".ulaw"
	case CodecMP3:
		return ".mp3"
	case CodecOpus:
		return ".opus"
	default:
		return ".raw"
	}
}

// NewWavBuffer wraps linear PCM16 mono audio with a RIFF/WAVE header.
func NewWavBuffer(pcm []byte, sampleRate int) []byte {
	buf := new(bytes.Buffer)

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(buf, binary.LittleEndian, uint16(2))
	binary.Write(buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

// WrapForArtifact applies the format header appropriate to codec: a
// RIFF/WAVE header for linear PCM, and pass-through for every other codec
// (compressed codecs and mu-law already carry or need no container here).
func WrapForArtifact(pcm []byte, codec Codec, sampleRate int) []byte {
	if codec == CodecPCM16 {
		return NewWavBuffer(pcm, sampleRate)
	}
	return pcm
}
