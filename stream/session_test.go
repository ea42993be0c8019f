package stream

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/samber/lo"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/afero"

	"github.com/decibelle-cli/decibelle/filesystem"
	"github.com/decibelle-cli/decibelle/library"
)

// wavBytes builds a mono 16-bit PCM WAV of silence.
func wavBytes(rate, samples int) []byte {
	var buf bytes.Buffer
	data := samples * 2

	buf.WriteString("RIFF")
	lo.Must0(binary.Write(&buf, binary.LittleEndian, uint32(36+data)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	lo.Must0(binary.Write(&buf, binary.LittleEndian, uint32(16)))
	lo.Must0(binary.Write(&buf, binary.LittleEndian, uint16(1))) // PCM
	lo.Must0(binary.Write(&buf, binary.LittleEndian, uint16(1))) // mono
	lo.Must0(binary.Write(&buf, binary.LittleEndian, uint32(rate)))
	lo.Must0(binary.Write(&buf, binary.LittleEndian, uint32(rate*2)))
	lo.Must0(binary.Write(&buf, binary.LittleEndian, uint16(2)))
	lo.Must0(binary.Write(&buf, binary.LittleEndian, uint16(16)))

	buf.WriteString("data")
	lo.Must0(binary.Write(&buf, binary.LittleEndian, uint32(data)))
	buf.Write(make([]byte, data))

	return buf.Bytes()
}

func writeTrack(path string, rate, samples int) {
	lo.Must0(afero.WriteFile(filesystem.API(), path, wavBytes(rate, samples), 0o644))
}

func TestSession(t *testing.T) {
	Convey("A stream session", t, func() {
		filesystem.SetMemMapFs()
		out := SetNullOutput()
		ctx := context.Background()
		track := library.Track{Title: "Chapter 1", MimeType: "audio/wav"}

		const second = int(sampleRate)
		writeTrack("/tracks/a.wav", second, second) // one second of audio

		Convey("Open leaves the session ready and paused", func() {
			s, err := Open(ctx, "/tracks/a.wav", track)
			So(err, ShouldBeNil)
			defer s.Close()

			So(s.State(), ShouldEqual, Ready)
			So(s.Duration(), ShouldEqual, time.Second)
			So(s.Position(), ShouldEqual, 0)
		})

		Convey("Open fails with ErrUnavailable for a missing file", func() {
			_, err := Open(ctx, "/tracks/missing.wav", track)
			So(errors.Is(err, ErrUnavailable), ShouldBeTrue)
		})

		Convey("Open fails with ErrNotDecodable for garbage audio", func() {
			lo.Must0(afero.WriteFile(filesystem.API(), "/tracks/bad.wav", []byte("nope"), 0o644))
			_, err := Open(ctx, "/tracks/bad.wav", track)
			So(errors.Is(err, ErrNotDecodable), ShouldBeTrue)
		})

		Convey("Play and Pause are idempotent transitions", func() {
			s := lo.Must(Open(ctx, "/tracks/a.wav", track))
			defer s.Close()

			So(s.Play(), ShouldBeNil)
			So(s.State(), ShouldEqual, Playing)
			So(s.Play(), ShouldBeNil) // no-op, not a toggle
			So(s.State(), ShouldEqual, Playing)

			So(s.Pause(), ShouldBeNil)
			So(s.State(), ShouldEqual, Paused)
			So(s.Pause(), ShouldBeNil)
			So(s.State(), ShouldEqual, Paused)
		})

		Convey("The playhead advances only while playing", func() {
			s := lo.Must(Open(ctx, "/tracks/a.wav", track))
			defer s.Close()

			lo.Must0(s.Play())
			out.Pump(second / 10)
			So(s.Position(), ShouldEqual, 100*time.Millisecond)

			lo.Must0(s.Pause())
			out.Pump(second / 10)
			So(s.Position(), ShouldEqual, 100*time.Millisecond)
		})

		Convey("SeekTo clamps to the track bounds and keeps the prior state", func() {
			s := lo.Must(Open(ctx, "/tracks/a.wav", track))
			defer s.Close()
			lo.Must0(s.Play())
			lo.Must0(s.Pause())

			So(s.SeekTo(-5*time.Second), ShouldBeNil)
			So(s.Position(), ShouldEqual, 0)
			So(s.State(), ShouldEqual, Paused)

			So(s.SeekTo(10*time.Second), ShouldBeNil)
			So(s.Position(), ShouldEqual, time.Second)

			So(s.SeekTo(500*time.Millisecond), ShouldBeNil)
			So(s.Position(), ShouldEqual, 500*time.Millisecond)
		})

		Convey("Exhausting the track ends the session cleanly", func() {
			s := lo.Must(Open(ctx, "/tracks/a.wav", track))
			defer s.Close()

			lo.Must0(s.Play())
			out.Pump(second * 2)

			select {
			case <-s.Done():
			case <-time.After(time.Second):
				t.Fatal("session never ended")
			}
			So(s.State(), ShouldEqual, Ended)
			So(s.Err(), ShouldBeNil)
			So(s.Position(), ShouldEqual, time.Second)
		})

		Convey("Commands after the end are rejected", func() {
			s := lo.Must(Open(ctx, "/tracks/a.wav", track))
			defer s.Close()

			lo.Must0(s.Play())
			out.Pump(second * 2)
			<-s.Done()

			So(s.Play(), ShouldNotBeNil)
			So(s.SeekTo(0), ShouldNotBeNil)
		})

		Convey("Close is idempotent and closes Done", func() {
			s := lo.Must(Open(ctx, "/tracks/a.wav", track))

			So(s.Close(), ShouldBeNil)
			So(s.Close(), ShouldBeNil)
			So(s.State(), ShouldEqual, Closed)
			select {
			case <-s.Done():
			default:
				t.Fatal("Done not closed after Close")
			}
		})

		Convey("Tracks at a different sample rate are resampled", func() {
			writeTrack("/tracks/slow.wav", second/2, second/2)

			s := lo.Must(Open(ctx, "/tracks/slow.wav", track))
			defer s.Close()

			So(s.Duration(), ShouldEqual, time.Second)
			lo.Must0(s.Play())
			out.Pump(second * 3)
			<-s.Done()
			So(s.State(), ShouldEqual, Ended)
		})

		Convey("A canceled context aborts Open", func() {
			canceled, cancel := context.WithCancel(ctx)
			cancel()
			_, err := Open(canceled, "/tracks/a.wav", track)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}
