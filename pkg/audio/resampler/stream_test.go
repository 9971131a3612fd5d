package resampler

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestStream_Passthrough(t *testing.T) {
	src := makePCM(1, 2, 3, 4, 5, 6, 7, 8)
	fmt16k := Format{SampleRate: 16000}

	s, err := NewStream(bytes.NewReader(src), fmt16k, fmt16k)
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}
	defer s.Close()

	got, err := io.ReadAll(s)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, src) {
		t.Errorf("passthrough altered data: got %v, want %v", got, src)
	}
}

func TestStream_Downmix(t *testing.T) {
	stereo := MonoToStereo(makePCM(100, 200, 300, 400))

	s, err := NewStream(bytes.NewReader(stereo),
		Format{SampleRate: 24000, Stereo: true},
		Format{SampleRate: 24000})
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}
	defer s.Close()

	got, err := io.ReadAll(s)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	want := makePCM(100, 200, 300, 400)
	if !bytes.Equal(got, want) {
		t.Errorf("downmix got %v, want %v", got, want)
	}
}

func TestStream_ShortBuffer(t *testing.T) {
	s, err := NewStream(bytes.NewReader(makePCM(1)),
		Format{SampleRate: 16000}, Format{SampleRate: 16000})
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}
	defer s.Close()

	if _, err := s.Read(make([]byte, 1)); !errors.Is(err, io.ErrShortBuffer) {
		t.Errorf("Read(1 byte) error = %v, want io.ErrShortBuffer", err)
	}
}

func TestStream_Close(t *testing.T) {
	s, err := NewStream(bytes.NewReader(makePCM(1, 2)),
		Format{SampleRate: 16000}, Format{SampleRate: 16000})
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := s.Read(make([]byte, 4)); !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("Read after Close error = %v, want io.ErrClosedPipe", err)
	}
}
